package notification

import (
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/market/internal/order"
	"github.com/nao1215/market/internal/seen"
	"github.com/nao1215/market/pkg/event"
)

// ErrUnknownKind は未知の通知種別が指定された場合に返される。
var ErrUnknownKind = errors.New("unknown notification kind")

// ErrUpstreamUnavailable は集約中に注文単位の取得が失敗した場合に使われる。
// 該当注文はそのポーリングの結果から除外され、呼び出し元には返さない。
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// Kind は通知の種別。
type Kind string

const (
	// KindMessage は未読メッセージをまとめた通知。
	KindMessage Kind = "message"
	// KindOrderStatus は注文イベントの通知。
	KindOrderStatus Kind = "order_status"
)

// ParseKind は文字列をKindに変換する。未知の値は ErrUnknownKind になる。
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindMessage, KindOrderStatus:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// class は種別に対応する既読カーソルのクラスを返す。
func (k Kind) class() seen.Class {
	switch k {
	case KindMessage:
		return seen.ClassMessage
	case KindOrderStatus:
		return seen.ClassOrderStatus
	}
	return ""
}

// Kinds は全ての通知種別。
var Kinds = []Kind{KindMessage, KindOrderStatus}

// StatusDetail はorder_status通知に付随する情報。
type StatusDetail struct {
	// Event はOrderPlacedまたはOrderStatusChanged。
	Event event.Type `json:"event"`
	// Status は遷移後のステータス。
	Status order.Status `json:"status"`
	// TrackingNumber は追跡番号。
	TrackingNumber string `json:"tracking_number,omitempty"`
	// CancelReason はキャンセル理由。
	CancelReason string `json:"cancel_reason,omitempty"`
}

// Entry はポーリングごとに計算される通知。永続化しない。
type Entry struct {
	// ID はmessageでは最新メッセージのID、order_statusではイベントID。
	ID string `json:"id"`
	// Kind は通知種別。
	Kind Kind `json:"kind"`
	// OrderID は対象の注文ID。
	OrderID string `json:"order_id"`
	// Title は表示用タイトル。
	Title string `json:"title"`
	// Summary は本文の要約。
	Summary string `json:"summary"`
	// Timestamp は通知対象の発生日時。
	Timestamp time.Time `json:"timestamp"`
	// AggregateCount はまとめた件数。order_statusでは常に1。
	AggregateCount int `json:"aggregate_count"`
	// Status はorder_statusの場合のみ設定される。
	Status *StatusDetail `json:"status,omitempty"`
}

// Truncate はsがmaxRunes文字を超える場合に先頭maxRunes文字と "..." を返す。
func Truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}

// ShortOrderID は注文IDの先頭8文字を返す。要約や一覧で注文を示すのに使う。
func ShortOrderID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func messageTitle(orderID string, count int) string {
	if count > 1 {
		return fmt.Sprintf("New messages in Order #%s", orderID)
	}
	return fmt.Sprintf("New message in Order #%s", orderID)
}

func statusTitle(ev order.Event) string {
	if ev.Type == event.TypeOrderPlaced {
		return "New Order"
	}
	return "Order Status Update"
}

func statusSummary(ev order.Event) string {
	ref := ShortOrderID(ev.OrderID)
	if ev.Type == event.TypeOrderPlaced {
		return fmt.Sprintf("New order #%s received", ref)
	}
	switch ev.Status {
	case order.StatusShipped:
		return fmt.Sprintf("Your order #%s has been shipped (tracking: %s)", ref, ev.TrackingNumber)
	case order.StatusCancelled:
		return fmt.Sprintf("Your order #%s has been cancelled. Reason: %s", ref, ev.CancelReason)
	case order.StatusDelivered:
		return fmt.Sprintf("Order #%s has been confirmed as delivered", ref)
	}
	return fmt.Sprintf("Order #%s is now %s", ref, ev.Status)
}
