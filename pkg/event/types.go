package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

const (
	// AggregateTypeOrder は注文エンティティを表す。
	AggregateTypeOrder AggregateType = "Order"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeOrderPlaced は購入者が注文を確定したことを表す。
	TypeOrderPlaced Type = "OrderPlaced"
	// TypeOrderStatusChanged は注文ステータスが遷移したことを表す。
	TypeOrderStatusChanged Type = "OrderStatusChanged"
)

// Event は注文に対して追記される不変のイベントレコードを表す。
// 注文ステータスの変更はすべてこの構造体として order_events テーブルに永続化される。
type Event struct {
	// ID はイベントの一意識別子（UUIDv7）。時刻順に並ぶため同時刻の順序付けに使用する。
	ID string `json:"id"`
	// AggregateID は対象注文の識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// ActorUserID はイベントを発生させたユーザーのID。
	ActorUserID string `json:"actor_user_id"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// Version は注文内でのイベントの順序番号。楽観的排他制御に使用する。
	Version int64 `json:"version"`
	// CreatedAt はイベントが作成された日時（ミリ秒精度）。
	CreatedAt time.Time `json:"created_at"`
}

// OrderPlacedData はOrderPlacedイベントのデータ。
type OrderPlacedData struct {
	// BuyerUserID は購入者のユーザーID。
	BuyerUserID string `json:"buyer_user_id"`
	// SellerUserIDs は注文に含まれる出品者のユーザーID（重複なし）。
	SellerUserIDs []string `json:"seller_user_ids"`
	// TotalCents は注文合計金額（セント単位）。
	TotalCents int64 `json:"total_cents"`
}

// OrderStatusChangedData はOrderStatusChangedイベントのデータ。
type OrderStatusChangedData struct {
	// From は遷移前のステータス。
	From string `json:"from"`
	// To は遷移後のステータス。
	To string `json:"to"`
	// TrackingNumber は発送時の追跡番号。発送以外では空。
	TrackingNumber string `json:"tracking_number,omitempty"`
	// CancelReason はキャンセル理由。キャンセル以外では空。
	CancelReason string `json:"cancel_reason,omitempty"`
}
