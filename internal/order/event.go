package order

import (
	"fmt"
	"time"

	"github.com/nao1215/market/pkg/event"
)

// Event は注文に記録されたイベントをデコードしたもの。
type Event struct {
	// ID はイベントの一意識別子（UUIDv7）。
	ID string
	// OrderID は対象の注文ID。
	OrderID string
	// Type はOrderPlacedまたはOrderStatusChanged。
	Type event.Type
	// ActorUserID はイベントを発生させたユーザー。
	ActorUserID string
	// Status は遷移後のステータス。OrderPlacedではpending。
	Status Status
	// From は遷移前のステータス。OrderPlacedでは空。
	From Status
	// TrackingNumber は遷移時点の追跡番号。
	TrackingNumber string
	// CancelReason はキャンセル理由。
	CancelReason string
	// Version は遷移後の注文バージョン。
	Version int64
	// CreatedAt はイベント発生日時。
	CreatedAt time.Time
}

// Marker はイベントの既読位置を返す。
func (e Event) Marker() Marker {
	return NewMarker(e.CreatedAt, e.ID)
}

// decodeEvent は保存形式のイベントを注文イベントに変換する。
func decodeEvent(ev *event.Event) (Event, error) {
	out := Event{
		ID:          ev.ID,
		OrderID:     ev.AggregateID,
		Type:        ev.EventType,
		ActorUserID: ev.ActorUserID,
		Version:     ev.Version,
		CreatedAt:   ev.CreatedAt,
	}

	switch ev.EventType {
	case event.TypeOrderPlaced:
		out.Status = StatusPending
	case event.TypeOrderStatusChanged:
		data, err := event.DecodeData[event.OrderStatusChangedData](ev)
		if err != nil {
			return Event{}, err
		}
		out.From = Status(data.From)
		out.Status = Status(data.To)
		out.TrackingNumber = data.TrackingNumber
		out.CancelReason = data.CancelReason
	default:
		return Event{}, fmt.Errorf("未知のイベント種別です: %s", ev.EventType)
	}
	return out, nil
}
