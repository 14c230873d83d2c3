package order

import "errors"

var (
	// ErrNotFound は注文が存在しない場合に返される。
	ErrNotFound = errors.New("order not found")
	// ErrNotParticipant はユーザーが注文の購入者でも出品者でもない場合に返される。
	ErrNotParticipant = errors.New("user is not a participant of the order")
	// ErrInvalidTransition は遷移グラフ上到達できないステータスが指定された場合に返される。
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnauthorized は操作者の役割がその遷移を許可されていない場合に返される。
	ErrUnauthorized = errors.New("actor is not allowed to perform the transition")
	// ErrMissingPayload は追跡番号やキャンセル理由が空の場合に返される。
	ErrMissingPayload = errors.New("required transition payload is missing")
	// ErrSelfPurchase は購入者が自分自身を出品者とする明細を含めた場合に返される。
	ErrSelfPurchase = errors.New("buyer cannot purchase own item")
	// ErrInvalidOrder は注文内容が不正な場合に返される。
	ErrInvalidOrder = errors.New("invalid order")
)
