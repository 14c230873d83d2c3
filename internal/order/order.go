package order

import (
	"slices"
	"strings"
	"time"
)

// Status は注文ステータスを表す。
type Status string

const (
	// StatusPending は注文直後の状態。
	StatusPending Status = "pending"
	// StatusShipped は出品者が発送した状態。
	StatusShipped Status = "shipped"
	// StatusDelivered は購入者が受け取りを確認した状態。終端。
	StatusDelivered Status = "delivered"
	// StatusCancelled は出品者がキャンセルした状態。終端。
	StatusCancelled Status = "cancelled"
)

// Valid は既知のステータスかどうかを返す。
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal は以降の遷移が無い状態かどうかを返す。
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Address は注文時点の配送先スナップショット。注文後に変更されない。
type Address struct {
	Name    string `json:"name"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// LineItem は注文明細。明細ごとに出品者が異なりうる。
type LineItem struct {
	// ID は明細の一意識別子。
	ID string `json:"id"`
	// SellerUserID は出品者のユーザーID。
	SellerUserID string `json:"seller_user_id"`
	// Title は商品名。
	Title string `json:"title"`
	// PriceCents は価格（セント単位）。
	PriceCents int64 `json:"price_cents"`
}

// NewLineItem は注文作成時に指定する明細。
type NewLineItem struct {
	SellerUserID string `json:"seller_user_id"`
	Title        string `json:"title"`
	PriceCents   int64  `json:"price_cents"`
}

// Order は注文を表す。
type Order struct {
	// ID は注文の一意識別子（UUID）。
	ID string `json:"id"`
	// BuyerUserID は購入者のユーザーID。
	BuyerUserID string `json:"buyer_user_id"`
	// Items は注文明細。
	Items []LineItem `json:"items"`
	// Status は現在の注文ステータス。
	Status Status `json:"status"`
	// TrackingNumber は追跡番号。shipped以降のみ設定される。
	TrackingNumber string `json:"tracking_number,omitempty"`
	// CancelReason はキャンセル理由。cancelledのみ設定される。
	CancelReason string `json:"cancel_reason,omitempty"`
	// Address は注文時点の配送先。
	Address Address `json:"address"`
	// Version は遷移ごとに増加するバージョン。
	Version int64 `json:"version"`
	// CreatedAt は注文日時。
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt は最終更新日時。
	UpdatedAt time.Time `json:"updated_at"`
}

// Roles はある注文におけるユーザーの役割。
type Roles struct {
	// Buyer は購入者である場合にtrue。
	Buyer bool
	// Seller は1件以上の明細の出品者である場合にtrue。
	Seller bool
}

// Participant は購入者か出品者のいずれかである場合にtrueを返す。
func (r Roles) Participant() bool {
	return r.Buyer || r.Seller
}

// Roles は指定ユーザーの役割を返す。
func (o *Order) Roles(userID string) Roles {
	if userID == "" {
		return Roles{}
	}
	return Roles{
		Buyer:  o.BuyerUserID == userID,
		Seller: o.IsSeller(userID),
	}
}

// IsSeller は指定ユーザーがいずれかの明細の出品者かどうかを返す。
func (o *Order) IsSeller(userID string) bool {
	return slices.ContainsFunc(o.Items, func(it LineItem) bool {
		return it.SellerUserID == userID
	})
}

// SellerIDs は出品者IDを重複なしで昇順に返す。
func (o *Order) SellerIDs() []string {
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.SellerUserID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// RequireParticipant は指定ユーザーが注文の参加者でない場合に ErrNotParticipant を返す。
func (o *Order) RequireParticipant(userID string) error {
	if !o.Roles(userID).Participant() {
		return ErrNotParticipant
	}
	return nil
}

// TotalCents は明細の合計金額を返す。
func (o *Order) TotalCents() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.PriceCents
	}
	return total
}

// Payload はステータス遷移に付随する情報。
type Payload struct {
	// TrackingNumber はshippedへの遷移で必須。
	TrackingNumber string `json:"tracking_number,omitempty"`
	// CancelReason はcancelledへの遷移で必須。
	CancelReason string `json:"cancel_reason,omitempty"`
}

func (p Payload) normalize() Payload {
	return Payload{
		TrackingNumber: strings.TrimSpace(p.TrackingNumber),
		CancelReason:   strings.TrimSpace(p.CancelReason),
	}
}

// Marker は既読位置を表す (時刻, ID) の組。
// 時刻を比較し、同時刻の場合はIDを辞書順で比較する。ゼロ値は「何も見ていない」を表す。
type Marker struct {
	At time.Time
	ID string
}

// NewMarker はミリ秒精度のMarkerを生成する。
func NewMarker(at time.Time, id string) Marker {
	return Marker{At: at.UTC().Truncate(time.Millisecond), ID: id}
}

// IsZero はゼロ値かどうかを返す。
func (m Marker) IsZero() bool {
	return m.At.IsZero() && m.ID == ""
}

// Compare はmがoより前なら-1、同じなら0、後なら1を返す。
func (m Marker) Compare(o Marker) int {
	switch {
	case m.IsZero() && o.IsZero():
		return 0
	case m.IsZero():
		return -1
	case o.IsZero():
		return 1
	}
	if a, b := m.At.UnixMilli(), o.At.UnixMilli(); a != b {
		if a < b {
			return -1
		}
		return 1
	}
	return strings.Compare(m.ID, o.ID)
}

// After はmがoより厳密に新しい場合にtrueを返す。
func (m Marker) After(o Marker) bool {
	return m.Compare(o) > 0
}
