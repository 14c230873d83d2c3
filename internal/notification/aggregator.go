package notification

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/nao1215/market/internal/metrics"
	"github.com/nao1215/market/internal/order"
	"github.com/nao1215/market/internal/seen"
	"github.com/nao1215/market/internal/thread"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// OrderSource は注文と注文イベントの読み取り口。
type OrderSource interface {
	ListParticipantOrders(ctx context.Context, userID string) ([]order.Order, error)
	Get(ctx context.Context, orderID string) (*order.Order, error)
	ListEvents(ctx context.Context, orderID string) ([]order.Event, error)
}

// MessageSource はメッセージスレッドの読み取り口。
type MessageSource interface {
	List(ctx context.Context, orderID string) ([]thread.Message, error)
	ListSince(ctx context.Context, orderID string, cursor order.Marker) iter.Seq2[thread.Message, error]
}

// CursorStore は既読カーソルの読み書き口。
type CursorStore interface {
	Get(ctx context.Context, userID, orderID string, class seen.Class) (order.Marker, bool, error)
	Advance(ctx context.Context, userID, orderID string, class seen.Class, marker order.Marker) (bool, error)
}

// Options は集約の設定。
type Options struct {
	// MaxEntries は1回のポーリングで返す最大件数。
	MaxEntries int
	// SummaryLength は要約の最大文字数。
	SummaryLength int
	// FetchConcurrency は注文単位の取得を並行実行する上限。
	FetchConcurrency int
}

// DefaultOptions はデフォルトの設定を返す。
func DefaultOptions() Options {
	return Options{
		MaxEntries:       10,
		SummaryLength:    50,
		FetchConcurrency: 8,
	}
}

// Aggregator は未読通知を計算し、既読化を行う。
type Aggregator struct {
	orders   OrderSource
	messages MessageSource
	cursors  CursorStore
	logger   *zap.Logger
	metrics  *metrics.Metrics
	opts     Options
	now      func() time.Time
}

// NewAggregator は新しいAggregatorを生成する。optsの0以下の値はデフォルト値で補う。
func NewAggregator(orders OrderSource, messages MessageSource, cursors CursorStore, logger *zap.Logger, m *metrics.Metrics, opts Options) *Aggregator {
	def := DefaultOptions()
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = def.MaxEntries
	}
	if opts.SummaryLength <= 0 {
		opts.SummaryLength = def.SummaryLength
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = def.FetchConcurrency
	}
	return &Aggregator{
		orders:   orders,
		messages: messages,
		cursors:  cursors,
		logger:   logger,
		metrics:  m,
		opts:     opts,
		now:      time.Now,
	}
}

// Poll はuserIDから見た時刻nowでの未読通知を返す。カーソルは変更しない。
//
// 参加注文一覧の取得に失敗した場合はエラーを返す。注文単位の取得に失敗した場合は
// その注文を結果から除外し、警告ログとメトリクスを記録して処理を続ける。
func (a *Aggregator) Poll(ctx context.Context, userID string, now time.Time) ([]Entry, error) {
	start := time.Now()
	entries, err := a.poll(ctx, userID, now)
	a.metrics.NotificationPollDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		a.metrics.NotificationPolls.WithLabelValues("error").Inc()
		return nil, err
	}
	a.metrics.NotificationPolls.WithLabelValues("ok").Inc()
	a.metrics.NotificationEntries.Observe(float64(len(entries)))
	return entries, nil
}

func (a *Aggregator) poll(ctx context.Context, userID string, now time.Time) ([]Entry, error) {
	orders, err := a.orders.ListParticipantOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("参加注文一覧の取得に失敗: %w", err)
	}

	perOrder := make([][]Entry, len(orders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.FetchConcurrency)
	for i := range orders {
		o := &orders[i]
		g.Go(func() error {
			entries, err := a.orderEntries(gctx, userID, o, now)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				err = fmt.Errorf("%w: order %s: %w", ErrUpstreamUnavailable, o.ID, err)
				a.logger.Warn("order omitted from notification poll",
					zap.String("user_id", userID),
					zap.String("order_id", o.ID),
					zap.Error(err),
				)
				a.metrics.OrdersOmitted.Inc()
				return nil
			}
			perOrder[i] = entries
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var merged []Entry
	for _, entries := range perOrder {
		merged = append(merged, entries...)
	}
	return a.finalize(merged), nil
}

// finalize は新しい順に並べ、(注文, 種別) ごとに最新の1件に絞り、上限件数で切り詰める。
func (a *Aggregator) finalize(entries []Entry) []Entry {
	slices.SortFunc(entries, compareEntries)

	type key struct {
		orderID string
		kind    Kind
	}
	seenKeys := make(map[key]struct{}, len(entries))
	out := make([]Entry, 0, min(len(entries), a.opts.MaxEntries))
	for _, e := range entries {
		k := key{e.OrderID, e.Kind}
		if _, dup := seenKeys[k]; dup {
			continue
		}
		seenKeys[k] = struct{}{}
		out = append(out, e)
		if len(out) == a.opts.MaxEntries {
			break
		}
	}
	return out
}

// compareEntries は時刻の降順、注文IDの昇順、種別の昇順、IDの降順で比較する。
func compareEntries(x, y Entry) int {
	if c := y.Timestamp.Compare(x.Timestamp); c != 0 {
		return c
	}
	if c := cmp.Compare(x.OrderID, y.OrderID); c != 0 {
		return c
	}
	if c := cmp.Compare(x.Kind, y.Kind); c != 0 {
		return c
	}
	return cmp.Compare(y.ID, x.ID)
}

// orderEntries は1注文分の通知を計算する。
func (a *Aggregator) orderEntries(ctx context.Context, userID string, o *order.Order, now time.Time) ([]Entry, error) {
	if !o.Roles(userID).Participant() {
		return nil, nil
	}

	var entries []Entry

	msgs, err := a.unseenMessages(ctx, userID, o, now)
	if err != nil {
		return nil, err
	}
	if n := len(msgs); n > 0 {
		newest := msgs[n-1]
		entries = append(entries, Entry{
			ID:             newest.ID,
			Kind:           KindMessage,
			OrderID:        o.ID,
			Title:          messageTitle(o.ID, n),
			Summary:        Truncate(newest.Body, a.opts.SummaryLength),
			Timestamp:      newest.CreatedAt,
			AggregateCount: n,
		})
	}

	events, err := a.unseenEvents(ctx, userID, o, now)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		entries = append(entries, Entry{
			ID:             ev.ID,
			Kind:           KindOrderStatus,
			OrderID:        o.ID,
			Title:          statusTitle(ev),
			Summary:        Truncate(statusSummary(ev), a.opts.SummaryLength),
			Timestamp:      ev.CreatedAt,
			AggregateCount: 1,
			Status: &StatusDetail{
				Event:          ev.Type,
				Status:         ev.Status,
				TrackingNumber: ev.TrackingNumber,
				CancelReason:   ev.CancelReason,
			},
		})
	}
	return entries, nil
}

// unseenMessages はカーソルより新しく、userIDから見えるメッセージを昇順で返す。
func (a *Aggregator) unseenMessages(ctx context.Context, userID string, o *order.Order, now time.Time) ([]thread.Message, error) {
	cursor, _, err := a.cursors.Get(ctx, userID, o.ID, seen.ClassMessage)
	if err != nil {
		return nil, err
	}

	roles := o.Roles(userID)
	var out []thread.Message
	for m, err := range a.messages.ListSince(ctx, o.ID, cursor) {
		if err != nil {
			return nil, err
		}
		if m.CreatedAt.After(now) {
			break
		}
		if visibleMessage(o, roles, userID, m) {
			out = append(out, m)
		}
	}
	return out, nil
}

// visibleMessage は購入者には出品者の、出品者には購入者のメッセージだけを見せる。
func visibleMessage(o *order.Order, roles order.Roles, userID string, m thread.Message) bool {
	if m.SenderUserID == userID {
		return false
	}
	if roles.Buyer && o.IsSeller(m.SenderUserID) {
		return true
	}
	if roles.Seller && m.SenderUserID == o.BuyerUserID {
		return true
	}
	return false
}

// unseenEvents はカーソルより新しく、userID以外が起こした注文イベントを返す。
func (a *Aggregator) unseenEvents(ctx context.Context, userID string, o *order.Order, now time.Time) ([]order.Event, error) {
	cursor, _, err := a.cursors.Get(ctx, userID, o.ID, seen.ClassOrderStatus)
	if err != nil {
		return nil, err
	}
	events, err := a.orders.ListEvents(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	var out []order.Event
	for _, ev := range events {
		if ev.ActorUserID == userID || ev.CreatedAt.After(now) {
			continue
		}
		if ev.Marker().After(cursor) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Acknowledge はkindに対応するカーソルを、現在見えている最新の候補まで進める。
// 候補が無い場合は何もしない。カーソルを進めた場合にtrueを返す。
func (a *Aggregator) Acknowledge(ctx context.Context, userID, orderID string, kind Kind) (bool, error) {
	if kind.class() == "" {
		return false, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	o, err := a.orders.Get(ctx, orderID)
	if err != nil {
		return false, err
	}
	if err := o.RequireParticipant(userID); err != nil {
		return false, err
	}
	return a.acknowledge(ctx, userID, o, kind, a.now())
}

func (a *Aggregator) acknowledge(ctx context.Context, userID string, o *order.Order, kind Kind, now time.Time) (bool, error) {
	var newest order.Marker
	switch kind {
	case KindMessage:
		msgs, err := a.unseenMessages(ctx, userID, o, now)
		if err != nil {
			return false, err
		}
		if len(msgs) > 0 {
			newest = msgs[len(msgs)-1].Marker()
		}
	case KindOrderStatus:
		events, err := a.unseenEvents(ctx, userID, o, now)
		if err != nil {
			return false, err
		}
		for _, ev := range events {
			if m := ev.Marker(); m.After(newest) {
				newest = m
			}
		}
	}
	if newest.IsZero() {
		return false, nil
	}

	advanced, err := a.cursors.Advance(ctx, userID, o.ID, kind.class(), newest)
	if err != nil {
		return false, err
	}
	if advanced {
		a.metrics.Acknowledgments.WithLabelValues(string(kind)).Inc()
	}
	return advanced, nil
}

// AcknowledgeAll は全ての参加注文の両種別を既読にする。
// 注文単位の失敗は残りの処理を止めず、まとめてエラーとして返す。
// カーソルを進めた数を返す。
func (a *Aggregator) AcknowledgeAll(ctx context.Context, userID string) (int, error) {
	orders, err := a.orders.ListParticipantOrders(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("参加注文一覧の取得に失敗: %w", err)
	}

	now := a.now()
	advancedCount := 0
	var errs []error
	for i := range orders {
		for _, kind := range Kinds {
			advanced, err := a.acknowledge(ctx, userID, &orders[i], kind, now)
			if err != nil {
				errs = append(errs, fmt.Errorf("order %s kind %s: %w", orders[i].ID, kind, err))
				continue
			}
			if advanced {
				advancedCount++
			}
		}
	}
	return advancedCount, errors.Join(errs...)
}
