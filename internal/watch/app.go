// Package watch はmarketの未読通知をターミナルに表示するUI。
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/nao1215/market/internal/notification"
	"github.com/nao1215/market/internal/notifyclient"
	"github.com/nao1215/market/pkg/httpclient"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

// requestTimeout は操作ごとのリクエストのタイムアウト。
const requestTimeout = 10 * time.Second

// App は通知一覧のターミナルUI。
type App struct {
	app     *tview.Application
	table   *tview.Table
	status  *tview.TextView
	poller  *notifyclient.Poller
	logger  *zap.Logger
	entries []notification.Entry
	ctx     context.Context
	cancel  context.CancelFunc
}

// New は新しいAppを生成する。
func New(client *httpclient.Client, interval time.Duration, logger *zap.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:    tview.NewApplication(),
		table:  tview.NewTable().SetSelectable(true, false).SetBorders(false),
		status: tview.NewTextView().SetDynamicColors(true),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	a.table.SetBorder(true).SetTitle(" Notifications ")

	a.poller = notifyclient.New(client, interval,
		notifyclient.WithLogger(logger),
		notifyclient.WithOnUpdate(func(entries []notification.Entry) {
			a.app.QueueUpdateDraw(func() { a.render(entries) })
		}),
		notifyclient.WithOnUnauthenticated(func() {
			a.app.QueueUpdateDraw(func() {
				a.status.SetText("[red]認証に失敗しました。トークンを確認してください (q:quit)")
			})
		}),
	)

	a.setupKeys()
	a.app.SetRoot(tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.table, 0, 1, true).
		AddItem(a.status, 1, 0, false), true)
	a.render(nil)
	return a
}

// Run はポーリングを開始してUIを表示する。UIが終了するまでブロックする。
func (a *App) Run() error {
	a.poller.Start(a.ctx)
	defer func() {
		a.cancel()
		a.poller.Stop()
	}()
	return a.app.Run()
}

func (a *App) setupKeys() {
	a.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() != tcell.KeyRune {
			return ev
		}
		switch ev.Rune() {
		case 'q':
			a.app.Stop()
			return nil
		case 'r':
			a.do(func(ctx context.Context) error { return a.poller.Refresh(ctx) })
			return nil
		case 'a':
			if e, ok := a.selected(); ok {
				a.do(func(ctx context.Context) error { return a.poller.Acknowledge(ctx, e.OrderID, e.Kind) })
			}
			return nil
		case 'A':
			a.do(func(ctx context.Context) error { return a.poller.AcknowledgeAll(ctx) })
			return nil
		}
		return ev
	})
}

// do は操作をバックグラウンドで実行し、失敗した場合はステータス行に表示する。
func (a *App) do(fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, requestTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			a.logger.Warn("notification action failed", zap.Error(err))
			a.app.QueueUpdateDraw(func() {
				a.status.SetText(fmt.Sprintf("[red]%s", tview.Escape(err.Error())))
			})
		}
	}()
}

func (a *App) selected() (notification.Entry, bool) {
	row, _ := a.table.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(a.entries) {
		return notification.Entry{}, false
	}
	return a.entries[idx], true
}

// render はテーブルとステータス行を描き直す。UIのゴルーチンから呼ぶ。
func (a *App) render(entries []notification.Entry) {
	a.entries = entries
	a.table.Clear()

	for col, h := range []string{" Kind", " Order", " Title", " Summary", " Age"} {
		a.table.SetCell(0, col, tview.NewTableCell(h).SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	}
	now := time.Now()
	for i, e := range entries {
		for col, text := range formatRow(e, now) {
			cell := tview.NewTableCell(" " + tview.Escape(text))
			if col == 3 {
				cell.SetExpansion(1)
			}
			a.table.SetCell(i+1, col, cell)
		}
	}

	a.status.SetText(statusLine(notifyclient.CountEntries(entries), a.poller.Pending(), a.poller.LastError()))
}

// formatRow は通知1件を表の1行分の文字列にする。
func formatRow(e notification.Entry, now time.Time) []string {
	kind := "msg"
	if e.Kind == notification.KindOrderStatus {
		kind = "status"
	}
	if e.AggregateCount > 1 {
		kind = fmt.Sprintf("%s x%d", kind, e.AggregateCount)
	}
	return []string{kind, notification.ShortOrderID(e.OrderID), e.Title, e.Summary, formatAge(now.Sub(e.Timestamp))}
}

// formatAge は経過時間を "now", "5m", "3h", "2d" の形式にする。
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
}

func statusLine(c notifyclient.Counts, pending int, lastErr error) string {
	line := fmt.Sprintf(" %d unread (%d messages, %d status)  a:ack A:ack all r:refresh q:quit", c.Entries, c.Messages, c.StatusUpdates)
	if pending > 0 {
		line += fmt.Sprintf("  [yellow]%d pending[-]", pending)
	}
	if lastErr != nil {
		line += "  [red]offline[-]"
	}
	return line
}
