package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	marketdb "github.com/nao1215/market/internal/market/db"
	"github.com/nao1215/market/pkg/event"
)

// Store は注文をSQLiteに保存する。
type Store struct {
	// db はSQLiteデータベース接続。トランザクションの開始に使用する。
	db *sql.DB
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *marketdb.Queries
	// now は現在時刻を返す関数。テストで差し替える。
	now func() time.Time
}

// StoreOption はStoreの設定を変更する関数。
type StoreOption func(*Store)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB, opts ...StoreOption) *Store {
	s := &Store{
		db:      db,
		queries: marketdb.New(db),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create はpendingの注文を作成し、OrderPlacedイベントを記録する。
// 購入者自身を出品者とする明細がある場合は ErrSelfPurchase を返す。
func (s *Store) Create(ctx context.Context, buyerID string, items []NewLineItem, addr Address) (*Order, error) {
	if buyerID == "" {
		return nil, fmt.Errorf("%w: 購入者IDが空です", ErrInvalidOrder)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: 明細が1件以上必要です", ErrInvalidOrder)
	}
	for i, it := range items {
		switch {
		case strings.TrimSpace(it.SellerUserID) == "":
			return nil, fmt.Errorf("%w: 明細%dの出品者IDが空です", ErrInvalidOrder, i)
		case strings.TrimSpace(it.Title) == "":
			return nil, fmt.Errorf("%w: 明細%dの商品名が空です", ErrInvalidOrder, i)
		case it.PriceCents < 0:
			return nil, fmt.Errorf("%w: 明細%dの価格が負です", ErrInvalidOrder, i)
		case it.SellerUserID == buyerID:
			return nil, ErrSelfPurchase
		}
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	o := &Order{
		ID:          uuid.New().String(),
		BuyerUserID: buyerID,
		Status:      StatusPending,
		Address:     addr,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, it := range items {
		o.Items = append(o.Items, LineItem{
			ID:           uuid.New().String(),
			SellerUserID: strings.TrimSpace(it.SellerUserID),
			Title:        strings.TrimSpace(it.Title),
			PriceCents:   it.PriceCents,
		})
	}

	addrJSON, err := json.Marshal(addr)
	if err != nil {
		return nil, fmt.Errorf("配送先のシリアライズに失敗: %w", err)
	}

	placed, err := event.New(o.ID, event.AggregateTypeOrder, event.TypeOrderPlaced, buyerID, o.Version, now, event.OrderPlacedData{
		BuyerUserID:   buyerID,
		SellerUserIDs: o.SellerIDs(),
		TotalCents:    o.TotalCents(),
	})
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(q *marketdb.Queries) error {
		if err := q.CreateOrder(ctx, marketdb.CreateOrderParams{
			ID:          o.ID,
			BuyerUserID: o.BuyerUserID,
			Status:      string(o.Status),
			Address:     string(addrJSON),
			Version:     o.Version,
			CreatedAt:   now.UnixMilli(),
			UpdatedAt:   now.UnixMilli(),
		}); err != nil {
			return fmt.Errorf("注文の保存に失敗: %w", err)
		}
		for i, it := range o.Items {
			if err := q.CreateOrderItem(ctx, marketdb.CreateOrderItemParams{
				ID:           it.ID,
				OrderID:      o.ID,
				SellerUserID: it.SellerUserID,
				Title:        it.Title,
				PriceCents:   it.PriceCents,
				Position:     int64(i),
			}); err != nil {
				return fmt.Errorf("注文明細の保存に失敗: %w", err)
			}
		}
		return appendEvent(ctx, q, placed)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Get は注文を明細付きで取得する。存在しない場合は ErrNotFound を返す。
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	return getOrder(ctx, s.queries, orderID)
}

// ListParticipantOrders はユーザーが購入者または出品者である注文を新しい順に返す。
func (s *Store) ListParticipantOrders(ctx context.Context, userID string) ([]Order, error) {
	rows, err := s.queries.ListParticipantOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("参加注文一覧の取得に失敗: %w", err)
	}

	orders := make([]Order, 0, len(rows))
	for _, row := range rows {
		items, err := s.queries.ListOrderItems(ctx, row.ID)
		if err != nil {
			return nil, fmt.Errorf("注文明細の取得に失敗: %w", err)
		}
		o, err := fromRow(row, items)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

// UpdateStatus は注文を読み込み、Transitionを適用して保存する。
// 注文の更新とイベントの追記は1トランザクションで行う。
// 読み込み後に他の更新が先に確定していた場合は ErrInvalidTransition を返す。
func (s *Store) UpdateStatus(ctx context.Context, orderID string, target Status, p Payload, actorID string) (*Order, error) {
	var updated *Order
	err := s.inTx(ctx, func(q *marketdb.Queries) error {
		o, err := getOrder(ctx, q, orderID)
		if err != nil {
			return err
		}
		if err := o.RequireParticipant(actorID); err != nil {
			return err
		}

		expected := o.Version
		ev, err := Transition(o, target, actorID, p, s.now())
		if err != nil {
			return err
		}

		n, err := q.UpdateOrderStatus(ctx, marketdb.UpdateOrderStatusParams{
			Status:          string(o.Status),
			TrackingNumber:  nullString(o.TrackingNumber),
			CancelReason:    nullString(o.CancelReason),
			Version:         o.Version,
			UpdatedAt:       o.UpdatedAt.UnixMilli(),
			ID:              o.ID,
			ExpectedVersion: expected,
		})
		if err != nil {
			return fmt.Errorf("注文ステータスの更新に失敗: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: 注文が他の操作で更新されました", ErrInvalidTransition)
		}
		if err := appendEvent(ctx, q, ev); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListEvents は注文のイベントをバージョン順に返す。
func (s *Store) ListEvents(ctx context.Context, orderID string) ([]Event, error) {
	rows, err := s.queries.ListOrderEvents(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("注文イベントの取得に失敗: %w", err)
	}

	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		ev, err := decodeEvent(&event.Event{
			ID:            row.ID,
			AggregateID:   row.OrderID,
			AggregateType: event.AggregateTypeOrder,
			EventType:     event.Type(row.EventType),
			ActorUserID:   row.ActorUserID,
			Data:          json.RawMessage(row.Data),
			Version:       row.Version,
			CreatedAt:     time.UnixMilli(row.CreatedAt).UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("注文イベント %s のデコードに失敗: %w", row.ID, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// inTx はトランザクション内でfnを実行する。fnがエラーを返した場合はロールバックする。
func (s *Store) inTx(ctx context.Context, fn func(q *marketdb.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗: %w", err)
	}
	return nil
}

func getOrder(ctx context.Context, q *marketdb.Queries, orderID string) (*Order, error) {
	row, err := q.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("注文の取得に失敗: %w", err)
	}
	items, err := q.ListOrderItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("注文明細の取得に失敗: %w", err)
	}
	return fromRow(row, items)
}

func appendEvent(ctx context.Context, q *marketdb.Queries, ev *event.Event) error {
	if err := q.CreateOrderEvent(ctx, marketdb.CreateOrderEventParams{
		ID:          ev.ID,
		OrderID:     ev.AggregateID,
		EventType:   string(ev.EventType),
		ActorUserID: ev.ActorUserID,
		Data:        string(ev.Data),
		Version:     ev.Version,
		CreatedAt:   ev.CreatedAt.UnixMilli(),
	}); err != nil {
		return fmt.Errorf("注文イベントの保存に失敗: %w", err)
	}
	return nil
}

// fromRow はDB行を注文に変換する。
func fromRow(row marketdb.Order, items []marketdb.OrderItem) (*Order, error) {
	o := &Order{
		ID:             row.ID,
		BuyerUserID:    row.BuyerUserID,
		Status:         Status(row.Status),
		TrackingNumber: row.TrackingNumber.String,
		CancelReason:   row.CancelReason.String,
		Version:        row.Version,
		CreatedAt:      time.UnixMilli(row.CreatedAt).UTC(),
		UpdatedAt:      time.UnixMilli(row.UpdatedAt).UTC(),
		Items:          make([]LineItem, 0, len(items)),
	}
	if err := json.Unmarshal([]byte(row.Address), &o.Address); err != nil {
		return nil, fmt.Errorf("配送先のデシリアライズに失敗: %w", err)
	}
	for _, it := range items {
		o.Items = append(o.Items, LineItem{
			ID:           it.ID,
			SellerUserID: it.SellerUserID,
			Title:        it.Title,
			PriceCents:   it.PriceCents,
		})
	}
	return o, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
