package order

import (
	"errors"
	"testing"
	"time"

	"github.com/nao1215/market/pkg/event"
)

// newTestOrder は購入者buyer、出品者seller-a/seller-bの2明細を持つpending注文を生成する。
func newTestOrder() *Order {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &Order{
		ID:          "order-1",
		BuyerUserID: "buyer",
		Items: []LineItem{
			{ID: "item-1", SellerUserID: "seller-a", Title: "Book", PriceCents: 1200},
			{ID: "item-2", SellerUserID: "seller-b", Title: "Pen", PriceCents: 300},
		},
		Status:    StatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TestTransition はTransition関数を検証する。
func TestTransition(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 2, 12, 0, 0, 123_456_789, time.UTC)

	t.Run("出品者が追跡番号付きで発送できること", func(t *testing.T) {
		t.Parallel()

		o := newTestOrder()
		ev, err := Transition(o, StatusShipped, "seller-a", Payload{TrackingNumber: "  TRK1 "}, at)
		if err != nil {
			t.Fatalf("Transition()でエラーが発生: %v", err)
		}

		if o.Status != StatusShipped {
			t.Errorf("Status = %q, want %q", o.Status, StatusShipped)
		}
		if o.TrackingNumber != "TRK1" {
			t.Errorf("TrackingNumber = %q, want %q", o.TrackingNumber, "TRK1")
		}
		if o.Version != 2 {
			t.Errorf("Version = %d, want 2", o.Version)
		}
		if !o.UpdatedAt.Equal(at.Truncate(time.Millisecond)) {
			t.Errorf("UpdatedAt = %v, want %v", o.UpdatedAt, at.Truncate(time.Millisecond))
		}

		if ev.EventType != event.TypeOrderStatusChanged {
			t.Errorf("EventType = %q, want %q", ev.EventType, event.TypeOrderStatusChanged)
		}
		if ev.ActorUserID != "seller-a" {
			t.Errorf("ActorUserID = %q, want %q", ev.ActorUserID, "seller-a")
		}
		if ev.Version != 2 {
			t.Errorf("イベントのVersion = %d, want 2", ev.Version)
		}
		data, err := event.DecodeData[event.OrderStatusChangedData](ev)
		if err != nil {
			t.Fatalf("DecodeData()でエラーが発生: %v", err)
		}
		if data.From != "pending" || data.To != "shipped" || data.TrackingNumber != "TRK1" {
			t.Errorf("イベントデータ = %+v", data)
		}
	})

	t.Run("発送後に購入者が受け取りを確認でき追跡番号が保持されること", func(t *testing.T) {
		t.Parallel()

		o := newTestOrder()
		if _, err := Transition(o, StatusShipped, "seller-b", Payload{TrackingNumber: "TRK2"}, at); err != nil {
			t.Fatalf("発送でエラーが発生: %v", err)
		}
		if _, err := Transition(o, StatusDelivered, "buyer", Payload{}, at.Add(time.Hour)); err != nil {
			t.Fatalf("受け取り確認でエラーが発生: %v", err)
		}
		if o.Status != StatusDelivered {
			t.Errorf("Status = %q, want %q", o.Status, StatusDelivered)
		}
		if o.TrackingNumber != "TRK2" {
			t.Errorf("TrackingNumber = %q, want %q", o.TrackingNumber, "TRK2")
		}
		if o.Version != 3 {
			t.Errorf("Version = %d, want 3", o.Version)
		}
	})

	t.Run("出品者が理由付きでキャンセルできること", func(t *testing.T) {
		t.Parallel()

		o := newTestOrder()
		if _, err := Transition(o, StatusCancelled, "seller-a", Payload{CancelReason: "在庫切れ"}, at); err != nil {
			t.Fatalf("Transition()でエラーが発生: %v", err)
		}
		if o.CancelReason != "在庫切れ" {
			t.Errorf("CancelReason = %q, want %q", o.CancelReason, "在庫切れ")
		}
		if o.TrackingNumber != "" {
			t.Errorf("TrackingNumber = %q, want 空文字列", o.TrackingNumber)
		}
	})

	tests := []struct {
		name    string
		prepare func(o *Order)
		target  Status
		actor   string
		payload Payload
		wantErr error
	}{
		{
			name:    "未知のステータスはErrInvalidTransitionになること",
			target:  Status("returned"),
			actor:   "seller-a",
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "現在と同じステータスはErrInvalidTransitionになること",
			target:  StatusPending,
			actor:   "seller-a",
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "pendingから直接deliveredへはErrInvalidTransitionになること",
			target:  StatusDelivered,
			actor:   "buyer",
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "shippedからcancelledへはErrInvalidTransitionになること",
			prepare: func(o *Order) { o.Status = StatusShipped; o.TrackingNumber = "T" },
			target:  StatusCancelled,
			actor:   "seller-a",
			payload: Payload{CancelReason: "x"},
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "購入者は発送できないこと",
			target:  StatusShipped,
			actor:   "buyer",
			payload: Payload{TrackingNumber: "TRK"},
			wantErr: ErrUnauthorized,
		},
		{
			name:    "購入者はキャンセルできないこと",
			target:  StatusCancelled,
			actor:   "buyer",
			payload: Payload{CancelReason: "気が変わった"},
			wantErr: ErrUnauthorized,
		},
		{
			name:    "出品者は受け取りを確認できないこと",
			prepare: func(o *Order) { o.Status = StatusShipped; o.TrackingNumber = "T" },
			target:  StatusDelivered,
			actor:   "seller-a",
			wantErr: ErrUnauthorized,
		},
		{
			name:    "参加者でないユーザーは発送できないこと",
			target:  StatusShipped,
			actor:   "stranger",
			payload: Payload{TrackingNumber: "TRK"},
			wantErr: ErrUnauthorized,
		},
		{
			name:    "追跡番号が空白のみの場合はErrMissingPayloadになること",
			target:  StatusShipped,
			actor:   "seller-a",
			payload: Payload{TrackingNumber: "   "},
			wantErr: ErrMissingPayload,
		},
		{
			name:    "キャンセル理由が空の場合はErrMissingPayloadになること",
			target:  StatusCancelled,
			actor:   "seller-a",
			wantErr: ErrMissingPayload,
		},
		{
			name:    "到達不能な遷移は権限より先に検証されること",
			prepare: func(o *Order) { o.Status = StatusCancelled; o.CancelReason = "x" },
			target:  StatusShipped,
			actor:   "buyer",
			wantErr: ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o := newTestOrder()
			if tt.prepare != nil {
				tt.prepare(o)
			}
			before := *o

			ev, err := Transition(o, tt.target, tt.actor, tt.payload, at)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("エラー = %v, want %v", err, tt.wantErr)
			}
			if ev != nil {
				t.Error("エラー時にイベントが返された")
			}
			if o.Status != before.Status || o.Version != before.Version || o.TrackingNumber != before.TrackingNumber {
				t.Errorf("エラー時に注文が変更された: %+v", o)
			}
		})
	}
}

// TestTransitionFromTerminal は終端状態からの遷移が全て拒否されることを検証する。
func TestTransitionFromTerminal(t *testing.T) {
	t.Parallel()

	targets := []Status{StatusPending, StatusShipped, StatusDelivered, StatusCancelled}
	actors := []string{"buyer", "seller-a"}
	payload := Payload{TrackingNumber: "TRK", CancelReason: "reason"}

	for _, terminal := range []Status{StatusDelivered, StatusCancelled} {
		for _, target := range targets {
			for _, actor := range actors {
				t.Run(string(terminal)+"から"+string(target)+"へ"+actor+"が遷移できないこと", func(t *testing.T) {
					t.Parallel()

					o := newTestOrder()
					o.Status = terminal
					_, err := Transition(o, target, actor, payload, time.Now())
					if !errors.Is(err, ErrInvalidTransition) {
						t.Errorf("エラー = %v, want ErrInvalidTransition", err)
					}
				})
			}
		}
	}
}

// TestMarker はMarkerの比較を検証する。
func TestMarker(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b Marker
		want int
	}{
		{name: "ゼロ値同士は等しいこと", a: Marker{}, b: Marker{}, want: 0},
		{name: "ゼロ値は任意のMarkerより前であること", a: Marker{}, b: NewMarker(base, "a"), want: -1},
		{name: "時刻が早い方が前であること", a: NewMarker(base, "z"), b: NewMarker(base.Add(time.Millisecond), "a"), want: -1},
		{name: "同時刻ではIDの辞書順で比較すること", a: NewMarker(base, "b"), b: NewMarker(base, "a"), want: 1},
		{name: "ミリ秒未満の差は無視されること", a: NewMarker(base.Add(100*time.Microsecond), "a"), b: NewMarker(base, "a"), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.a.Compare(tt.b); got != tt.want {
				t.Errorf("Compare() = %d, want %d", got, tt.want)
			}
			if got := tt.a.After(tt.b); got != (tt.want > 0) {
				t.Errorf("After() = %v, want %v", got, tt.want > 0)
			}
		})
	}
}

// TestRoles はRolesメソッドを検証する。
func TestRoles(t *testing.T) {
	t.Parallel()

	o := newTestOrder()
	o.Items = append(o.Items, LineItem{ID: "item-3", SellerUserID: "seller-a", Title: "Ink"})

	tests := []struct {
		name string
		user string
		want Roles
	}{
		{name: "購入者", user: "buyer", want: Roles{Buyer: true}},
		{name: "出品者", user: "seller-b", want: Roles{Seller: true}},
		{name: "無関係のユーザー", user: "stranger", want: Roles{}},
		{name: "空のユーザーID", user: "", want: Roles{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := o.Roles(tt.user); got != tt.want {
				t.Errorf("Roles(%q) = %+v, want %+v", tt.user, got, tt.want)
			}
		})
	}

	t.Run("出品者IDは重複なしで返ること", func(t *testing.T) {
		t.Parallel()

		ids := o.SellerIDs()
		if len(ids) != 2 || ids[0] != "seller-a" || ids[1] != "seller-b" {
			t.Errorf("SellerIDs() = %v, want [seller-a seller-b]", ids)
		}
	})
}
