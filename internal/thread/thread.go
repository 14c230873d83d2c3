// Package thread は注文ごとの追記専用メッセージスレッドを扱う。
//
// メッセージは (created_at, id) の昇順で全順序付けされ、編集・削除されない。
package thread

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	marketdb "github.com/nao1215/market/internal/market/db"
	"github.com/nao1215/market/internal/order"
)

// ErrEmptyMessage は本文が空白のみの場合に返される。
var ErrEmptyMessage = errors.New("message body is empty")

// DefaultPageSize はListSinceが1回のクエリで取得する件数。
const DefaultPageSize = 100

// Message は注文スレッドのメッセージ。
type Message struct {
	// ID はメッセージの一意識別子（UUIDv7）。
	ID string `json:"id"`
	// OrderID は対象の注文ID。
	OrderID string `json:"order_id"`
	// SenderUserID は送信者のユーザーID。
	SenderUserID string `json:"sender_user_id"`
	// Body は前後の空白を除いた本文。
	Body string `json:"body"`
	// CreatedAt は送信日時（ミリ秒精度）。
	CreatedAt time.Time `json:"created_at"`
}

// Marker はメッセージの既読位置を返す。
func (m Message) Marker() order.Marker {
	return order.NewMarker(m.CreatedAt, m.ID)
}

// OrderReader は投稿時に注文の参加者を確認するための読み取り口。
type OrderReader interface {
	Get(ctx context.Context, orderID string) (*order.Order, error)
}

// Thread はメッセージをSQLiteに保存する。
type Thread struct {
	db       *sql.DB
	queries  *marketdb.Queries
	orders   OrderReader
	now      func() time.Time
	pageSize int
}

// Option はThreadの設定を変更する関数。
type Option func(*Thread)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(t *Thread) {
		t.now = now
	}
}

// WithPageSize はListSinceのページサイズを変更する。
func WithPageSize(n int) Option {
	return func(t *Thread) {
		if n > 0 {
			t.pageSize = n
		}
	}
}

// New は新しいThreadを生成する。
func New(db *sql.DB, orders OrderReader, opts ...Option) *Thread {
	t := &Thread{
		db:       db,
		queries:  marketdb.New(db),
		orders:   orders,
		now:      time.Now,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Post はメッセージを追記し、保存したメッセージを返す。
// 本文が空白のみなら ErrEmptyMessage、注文が無ければ order.ErrNotFound、
// 送信者が購入者でも出品者でもなければ order.ErrNotParticipant を返す。
func (t *Thread) Post(ctx context.Context, orderID, senderID, body string) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}

	o, err := t.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := o.RequireParticipant(senderID); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("メッセージIDの生成に失敗: %w", err)
	}
	msg := &Message{
		ID:           id.String(),
		OrderID:      orderID,
		SenderUserID: senderID,
		Body:         body,
	}

	// 送信日時は書き込みロックを取ってから決める。日時の順とコミットの順が一致する。
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	msg.CreatedAt = t.now().UTC().Truncate(time.Millisecond)
	if err := t.queries.WithTx(tx).CreateMessage(ctx, marketdb.CreateMessageParams{
		ID:           msg.ID,
		OrderID:      msg.OrderID,
		SenderUserID: msg.SenderUserID,
		Body:         msg.Body,
		CreatedAt:    msg.CreatedAt.UnixMilli(),
	}); err != nil {
		return nil, fmt.Errorf("メッセージの保存に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("トランザクションのコミットに失敗: %w", err)
	}
	return msg, nil
}

// List はスレッドの全メッセージを (created_at, id) の昇順で返す。
func (t *Thread) List(ctx context.Context, orderID string) ([]Message, error) {
	rows, err := t.queries.ListMessages(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗: %w", err)
	}
	return fromRows(rows), nil
}

// ListSince はcursorより厳密に新しいメッセージを昇順に返すシーケンスを返す。
// ページ単位で必要になった時点で取得する。rangeするたびに先頭から再取得する。
func (t *Thread) ListSince(ctx context.Context, orderID string, cursor order.Marker) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		after := cursor
		for {
			rows, err := t.queries.ListMessagesAfter(ctx, marketdb.ListMessagesAfterParams{
				OrderID:  orderID,
				AfterAt:  markerMillis(after),
				AfterID:  after.ID,
				PageSize: int64(t.pageSize),
			})
			if err != nil {
				yield(Message{}, fmt.Errorf("メッセージの取得に失敗: %w", err))
				return
			}

			for _, m := range fromRows(rows) {
				if !yield(m, nil) {
					return
				}
				after = m.Marker()
			}
			if len(rows) < t.pageSize {
				return
			}
		}
	}
}

// markerMillis はゼロ値のMarkerを全メッセージより前の位置として扱う。
func markerMillis(m order.Marker) int64 {
	if m.IsZero() {
		return -1
	}
	return m.At.UnixMilli()
}

func fromRows(rows []marketdb.Message) []Message {
	msgs := make([]Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, Message{
			ID:           r.ID,
			OrderID:      r.OrderID,
			SenderUserID: r.SenderUserID,
			Body:         r.Body,
			CreatedAt:    time.UnixMilli(r.CreatedAt).UTC(),
		})
	}
	return msgs
}
