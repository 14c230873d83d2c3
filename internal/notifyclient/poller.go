// Package notifyclient はmarketサーバーの未読通知を定期的に取得するクライアント。
//
// Poller はセッションごとに1つのティッカーで通知を取得し、最新のスナップショットを保持する。
// 前回の取得が終わっていない間に来たティックは読み飛ばす。
// 既読化はその場でサーバーへ送り、一時的な失敗は次の操作時に再送する。
package notifyclient

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/market/internal/notification"
	"github.com/nao1215/market/pkg/httpclient"
	"go.uber.org/zap"
)

// ErrStopped は停止済みのPollerを操作した場合に返される。
var ErrStopped = errors.New("poller is stopped")

// APIパス。
const (
	pathUnread = "/api/v1/notifications/unread"
	pathAck    = "/api/v1/notifications/ack"
	pathAckAll = "/api/v1/notifications/ack-all"
)

// Counts は種別ごとの未読件数。
type Counts struct {
	// Entries は通知の件数。
	Entries int
	// Messages はメッセージ通知にまとめられた未読メッセージの合計。
	Messages int
	// StatusUpdates は注文ステータス通知の件数。
	StatusUpdates int
}

// ack は送信待ちの既読化要求。all がtrueの場合は全件の既読化。
type ack struct {
	orderID string
	kind    notification.Kind
	all     bool
}

type entryKey struct {
	orderID string
	kind    notification.Kind
}

// Poller は未読通知を定期的に取得する。
type Poller struct {
	// client はmarket APIのクライアント。
	client *httpclient.Client
	// interval はポーリング間隔。
	interval time.Duration
	// logger はポーラーのロガー。
	logger *zap.Logger
	// onUpdate はスナップショットが変わるたびに呼ばれる。
	onUpdate func([]notification.Entry)
	// onUnauthenticated はサーバーが401を返した場合に1度だけ呼ばれる。
	onUnauthenticated func()

	// inFlight は取得処理が実行中かどうか。
	inFlight atomic.Bool
	// wg は実行中の取得処理とティッカーの終了を待つ。
	wg sync.WaitGroup
	// cancel はセッションのコンテキストを取り消す。
	cancel context.CancelFunc
	// unauthOnce はonUnauthenticatedを1度だけ呼ぶ。
	unauthOnce sync.Once

	// mu は以下のフィールドを保護する。
	mu       sync.Mutex
	entries  []notification.Entry
	pending  []ack
	acked    map[entryKey]time.Time
	ackedAll time.Time
	lastErr  error
	lastPoll time.Time
	started  bool
	stopped  bool
}

// Option はPollerの設定を変更する関数。
type Option func(*Poller)

// WithOnUpdate はスナップショット更新時のコールバックを設定する。
func WithOnUpdate(fn func([]notification.Entry)) Option {
	return func(p *Poller) {
		p.onUpdate = fn
	}
}

// WithOnUnauthenticated はセッション終了時のコールバックを設定する。
func WithOnUnauthenticated(fn func()) Option {
	return func(p *Poller) {
		p.onUnauthenticated = fn
	}
}

// WithLogger はロガーを設定する。
func WithLogger(logger *zap.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// New は新しいPollerを生成する。Startを呼ぶまで取得は行わない。
func New(client *httpclient.Client, interval time.Duration, opts ...Option) *Poller {
	p := &Poller{
		client:   client,
		interval: interval,
		logger:   zap.NewNop(),
		acked:    make(map[entryKey]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start はすぐに1回取得し、その後interval毎の取得を開始する。
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.logger.Info("notification polling started", zap.Duration("interval", p.interval))

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				p.logger.Info("notification polling stopped")
				return
			case <-ticker.C:
				p.tick(ctx)
			}
		}
	}()
}

// tick は取得処理が実行中でなければ新しい取得を開始する。
func (p *Poller) tick(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.logger.Debug("poll skipped, previous poll still in flight")
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)
		_ = p.poll(ctx)
	}()
}

// Stop はポーリングを止め、実行中の取得の終了を待つ。
// 実行中だった取得の結果は反映しない。Stopが戻った後はコールバックは呼ばれない。
func (p *Poller) Stop() {
	p.mu.Lock()
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// Refresh は送信待ちの既読化を再送し、すぐに通知を取得する。
func (p *Poller) Refresh(ctx context.Context) error {
	if p.isStopped() {
		return ErrStopped
	}
	p.flushPending(ctx)
	return p.poll(ctx)
}

// Snapshot は最新の通知一覧のコピーを返す。
func (p *Poller) Snapshot() []notification.Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.entries)
}

// Counts は最新の通知一覧の件数を返す。
func (p *Poller) Counts() Counts {
	p.mu.Lock()
	defer p.mu.Unlock()
	return CountEntries(p.entries)
}

// LastError は直近の取得で発生したエラーを返す。成功した場合はnil。
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// LastPoll は直近の取得が成功した時刻を返す。
func (p *Poller) LastPoll() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPoll
}

// Pending は送信待ちの既読化の数を返す。
func (p *Poller) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// CountEntries は通知一覧を種別ごとに数える。
func CountEntries(entries []notification.Entry) Counts {
	c := Counts{Entries: len(entries)}
	for _, e := range entries {
		switch e.Kind {
		case notification.KindMessage:
			c.Messages += e.AggregateCount
		case notification.KindOrderStatus:
			c.StatusUpdates++
		}
	}
	return c
}

// poll は通知を取得してスナップショットを置き換える。
func (p *Poller) poll(ctx context.Context) error {
	started := time.Now()

	var entries []notification.Entry
	err := p.client.GetJSON(ctx, pathUnread, &entries)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		p.mu.Lock()
		p.lastErr = err
		p.mu.Unlock()
		p.handleError(err)
		return err
	}

	snapshot, ok := p.apply(entries, started)
	if ok {
		p.notify(snapshot)
	}
	return nil
}

// apply は取得結果を反映する。取得開始後にローカルで既読にした通知は除外する。
// 停止済みの場合は何もせずfalseを返す。
func (p *Poller) apply(entries []notification.Entry, started time.Time) ([]notification.Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil, false
	}

	for k, at := range p.acked {
		if at.Before(started) {
			delete(p.acked, k)
		}
	}
	if p.ackedAll.Before(started) {
		p.ackedAll = time.Time{}
	}

	filtered := make([]notification.Entry, 0, len(entries))
	for _, e := range entries {
		if p.suppressed(e) {
			continue
		}
		filtered = append(filtered, e)
	}

	p.entries = filtered
	p.lastErr = nil
	p.lastPoll = time.Now()
	return slices.Clone(filtered), true
}

// suppressed はローカルで既読にした、または既読化の送信待ちの通知かどうかを返す。
func (p *Poller) suppressed(e notification.Entry) bool {
	if !p.ackedAll.IsZero() {
		return true
	}
	if _, ok := p.acked[entryKey{e.OrderID, e.Kind}]; ok {
		return true
	}
	for _, a := range p.pending {
		if a.all || (a.orderID == e.OrderID && a.kind == e.Kind) {
			return true
		}
	}
	return false
}

// Acknowledge は1注文1種別の通知を既読にする。
// ローカルのスナップショットからはすぐに取り除く。送信に一時的に失敗した場合は
// 次の操作時に再送し、エラーを返す。
func (p *Poller) Acknowledge(ctx context.Context, orderID string, kind notification.Kind) error {
	if p.isStopped() {
		return ErrStopped
	}
	p.flushPending(ctx)

	p.mu.Lock()
	p.entries = slices.DeleteFunc(p.entries, func(e notification.Entry) bool {
		return e.OrderID == orderID && e.Kind == kind
	})
	p.acked[entryKey{orderID, kind}] = time.Now()
	snapshot := slices.Clone(p.entries)
	p.mu.Unlock()
	p.notify(snapshot)

	return p.send(ctx, ack{orderID: orderID, kind: kind})
}

// AcknowledgeAll は全ての通知を既読にする。
func (p *Poller) AcknowledgeAll(ctx context.Context) error {
	if p.isStopped() {
		return ErrStopped
	}
	p.flushPending(ctx)

	p.mu.Lock()
	p.entries = nil
	p.ackedAll = time.Now()
	p.mu.Unlock()
	p.notify(nil)

	return p.send(ctx, ack{all: true})
}

// send は既読化を送信する。一時的な失敗の場合は送信待ちに積む。
func (p *Poller) send(ctx context.Context, a ack) error {
	err := p.post(ctx, a)
	if err == nil {
		return nil
	}
	p.handleError(err)
	if retryable(err) {
		p.mu.Lock()
		if !slices.Contains(p.pending, a) {
			p.pending = append(p.pending, a)
		}
		p.mu.Unlock()
	}
	return err
}

func (p *Poller) post(ctx context.Context, a ack) error {
	if a.all {
		return p.client.PostJSON(ctx, pathAckAll, struct{}{}, nil)
	}
	return p.client.PostJSON(ctx, pathAck, map[string]string{
		"order_id": a.orderID,
		"kind":     string(a.kind),
	}, nil)
}

// flushPending は送信待ちの既読化を順に再送する。失敗したものは残す。
func (p *Poller) flushPending(ctx context.Context) {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	var remaining []ack
	for _, a := range pending {
		if err := p.post(ctx, a); err != nil {
			p.handleError(err)
			if retryable(err) {
				remaining = append(remaining, a)
			}
			continue
		}
		p.logger.Debug("pending acknowledgment delivered", zap.String("order_id", a.orderID), zap.Bool("all", a.all))
	}
	if len(remaining) == 0 {
		return
	}

	p.mu.Lock()
	for _, a := range remaining {
		if !slices.Contains(p.pending, a) {
			p.pending = append(p.pending, a)
		}
	}
	p.mu.Unlock()
}

// retryable は再送で成功する見込みがあるエラーかどうかを返す。4xxは再送しない。
func retryable(err error) bool {
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled)
}

// handleError はエラーを記録し、401の場合はセッションを終了する。
func (p *Poller) handleError(err error) {
	if httpclient.IsStatus(err, http.StatusUnauthorized) {
		p.unauthOnce.Do(func() {
			p.logger.Warn("session ended, server rejected credentials", zap.Error(err))
			p.mu.Lock()
			p.stopped = true
			cancel := p.cancel
			p.mu.Unlock()
			if cancel != nil {
				cancel()
			}
			if p.onUnauthenticated != nil {
				p.onUnauthenticated()
			}
		})
		return
	}
	p.logger.Warn("notification request failed", zap.Error(err))
}

// notify はスナップショットの変更をコールバックに通知する。
func (p *Poller) notify(snapshot []notification.Entry) {
	if p.onUpdate == nil || p.isStopped() {
		return
	}
	p.onUpdate(snapshot)
}

func (p *Poller) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}
