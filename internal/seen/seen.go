// Package seen はユーザーごとの既読カーソルを扱う。
//
// カーソルは (user, order, class) ごとに1行で、最後に既読にした項目の Marker を持つ。
// 更新は単一のUPSERT文の中で「より新しい場合のみ」という条件付きで行うため、
// 同時に書き込まれても後退しない。
package seen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	marketdb "github.com/nao1215/market/internal/market/db"
	"github.com/nao1215/market/internal/order"
)

// Class はカーソルの種別。
type Class string

const (
	// ClassMessage はメッセージの既読位置。
	ClassMessage Class = "message"
	// ClassOrderStatus は注文イベントの既読位置。
	ClassOrderStatus Class = "order_status"
)

// ErrUnknownClass は未知のClassが指定された場合に返される。
var ErrUnknownClass = errors.New("unknown cursor class")

// Valid は既知のClassかどうかを返す。
func (c Class) Valid() bool {
	return c == ClassMessage || c == ClassOrderStatus
}

// Store は既読カーソルをSQLiteに保存する。
type Store struct {
	queries *marketdb.Queries
	now     func() time.Time
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{
		queries: marketdb.New(db),
		now:     time.Now,
	}
}

// Get はカーソルを返す。未作成の場合はゼロ値のMarkerとfalseを返す。
func (s *Store) Get(ctx context.Context, userID, orderID string, class Class) (order.Marker, bool, error) {
	row, err := s.queries.GetSeenCursor(ctx, marketdb.GetSeenCursorParams{
		UserID:  userID,
		OrderID: orderID,
		Class:   string(class),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return order.Marker{}, false, nil
		}
		return order.Marker{}, false, fmt.Errorf("既読カーソルの取得に失敗: %w", err)
	}
	return order.NewMarker(time.UnixMilli(row.SeenAt), row.SeenID), true, nil
}

// Advance はmarkerが保存済みの位置より厳密に新しい場合のみカーソルを進める。
// 進めた場合にtrueを返す。古いmarkerや同じmarkerは何もせずfalseを返す。
func (s *Store) Advance(ctx context.Context, userID, orderID string, class Class, marker order.Marker) (bool, error) {
	if !class.Valid() {
		return false, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}
	if marker.IsZero() {
		return false, nil
	}

	n, err := s.queries.AdvanceSeenCursor(ctx, marketdb.AdvanceSeenCursorParams{
		UserID:    userID,
		OrderID:   orderID,
		Class:     string(class),
		SeenAt:    marker.At.UnixMilli(),
		SeenID:    marker.ID,
		UpdatedAt: s.now().UnixMilli(),
	})
	if err != nil {
		return false, fmt.Errorf("既読カーソルの更新に失敗: %w", err)
	}
	return n > 0, nil
}
