package order

import (
	"fmt"
	"slices"
	"time"

	"github.com/nao1215/market/pkg/event"
)

// validTransitions は各ステータスから遷移可能なステータスの一覧。
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {},
	StatusCancelled: {},
}

// CanTransition はfromからtoへの遷移がグラフ上許可されているかを返す。
func CanTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// Transition は注文のステータスをtargetに遷移させ、記録すべきイベントを返す。
//
// 検証は次の順で行う。
//  1. 未知のステータス、現在と同じステータス、到達不能なステータスは ErrInvalidTransition
//  2. shipped/cancelled は出品者、delivered は購入者でなければ ErrUnauthorized
//  3. shipped は追跡番号、cancelled は理由が空なら ErrMissingPayload
//
// エラー時は注文を変更しない。成功時はステータス、追跡番号またはキャンセル理由、
// バージョン、更新日時を書き換える。
func Transition(o *Order, target Status, actor string, p Payload, at time.Time) (*event.Event, error) {
	if !target.Valid() || !CanTransition(o.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, target)
	}

	roles := o.Roles(actor)
	switch target {
	case StatusShipped, StatusCancelled:
		if !roles.Seller {
			return nil, fmt.Errorf("%w: %sへの遷移は出品者のみ可能です", ErrUnauthorized, target)
		}
	case StatusDelivered:
		if !roles.Buyer {
			return nil, fmt.Errorf("%w: 受け取り確認は購入者のみ可能です", ErrUnauthorized)
		}
	}

	p = p.normalize()
	data := event.OrderStatusChangedData{
		From: string(o.Status),
		To:   string(target),
	}
	switch target {
	case StatusShipped:
		if p.TrackingNumber == "" {
			return nil, fmt.Errorf("%w: 追跡番号が必要です", ErrMissingPayload)
		}
		data.TrackingNumber = p.TrackingNumber
	case StatusCancelled:
		if p.CancelReason == "" {
			return nil, fmt.Errorf("%w: キャンセル理由が必要です", ErrMissingPayload)
		}
		data.CancelReason = p.CancelReason
	case StatusDelivered:
		data.TrackingNumber = o.TrackingNumber
	}

	at = at.UTC().Truncate(time.Millisecond)
	ev, err := event.New(o.ID, event.AggregateTypeOrder, event.TypeOrderStatusChanged, actor, o.Version+1, at, data)
	if err != nil {
		return nil, fmt.Errorf("ステータス変更イベントの生成に失敗: %w", err)
	}

	o.Status = target
	switch target {
	case StatusShipped:
		o.TrackingNumber = p.TrackingNumber
	case StatusCancelled:
		o.CancelReason = p.CancelReason
	}
	o.Version++
	o.UpdatedAt = at

	return ev, nil
}
