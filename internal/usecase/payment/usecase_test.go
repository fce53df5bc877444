package payment

import (
	"context"
	"errors"
	"strings"
	"testing"

	domainBorrow "library-fines/internal/domain/borrow"
	"library-fines/internal/domain/event"
	"library-fines/internal/domain/gateway"
	domainPayment "library-fines/internal/domain/payment"
	domainUser "library-fines/internal/domain/user"
	"library-fines/internal/infrastructure/metrics"
)

func finedBorrow(id, userID, fine string) domainBorrow.Record {
	return domainBorrow.Record{BorrowID: id, UserID: userID, BookID: "bk1", Fine: dec(fine)}
}

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		status  domainBorrow.PaymentStatus
		in      CreateOrderInput
		wantErr error
	}{
		{"missing borrow id", domainBorrow.PaymentNone, CreateOrderInput{UserID: "u1", Amount: dec("5")}, ErrInvalidInput},
		{"zero amount", domainBorrow.PaymentNone, CreateOrderInput{BorrowID: "b1", UserID: "u1"}, ErrInvalidInput},
		{"unknown borrow", domainBorrow.PaymentNone, CreateOrderInput{BorrowID: "nope", UserID: "u1", Amount: dec("5")}, domainBorrow.ErrNotFound},
		{"other user", domainBorrow.PaymentNone, CreateOrderInput{BorrowID: "b1", UserID: "u2", Amount: dec("5")}, domainPayment.ErrForbidden},
		{"already paid", domainBorrow.PaymentCompleted, CreateOrderInput{BorrowID: "b1", UserID: "u1", Amount: dec("5")}, domainPayment.ErrAlreadyPaid},
		{"amount off by more than a paisa", domainBorrow.PaymentNone, CreateOrderInput{BorrowID: "b1", UserID: "u1", Amount: dec("5.02")}, domainPayment.ErrAmountMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorld()
			b := finedBorrow("b1", "u1", "5.00")
			b.PaymentStatus = tt.status
			w.PutBorrow(b)
			gwCalls := 0
			w.gw.CreateOrderFn = func(context.Context, gateway.OrderRequest) (*gateway.Order, error) {
				gwCalls++
				return &gateway.Order{ID: "order_X"}, nil
			}

			_, err := w.usecase().CreateOrder(context.Background(), tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if gwCalls != 0 {
				t.Fatalf("gateway must not be called on rejected input")
			}
			if len(w.Orders) != 0 {
				t.Fatalf("no order should be stored")
			}
		})
	}
}

func TestCreateOrder_Success(t *testing.T) {
	w := newWorld()
	w.PutBorrow(finedBorrow("b1", "u1", "12.50"))
	var req gateway.OrderRequest
	w.gw.CreateOrderFn = func(_ context.Context, r gateway.OrderRequest) (*gateway.Order, error) {
		req = r
		return &gateway.Order{ID: "order_1", AmountMinor: r.AmountMinor}, nil
	}

	dto, err := w.usecase().CreateOrder(context.Background(), CreateOrderInput{BorrowID: "b1", UserID: "u1", Amount: dec("12.505")})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if req.AmountMinor != 1251 || req.Currency != "INR" || req.Notes["borrow_id"] != "b1" {
		t.Fatalf("gateway request = %+v", req)
	}
	if dto.GatewayOrderID != "order_1" || dto.AmountMinor != 1251 || dto.KeyID != "key_test" || dto.Status != "created" {
		t.Fatalf("dto = %+v", dto)
	}
	if dto.Display != "₹12.51" {
		t.Fatalf("display = %q", dto.Display)
	}
	if !dto.ExpiresAt.Equal(testNow.Add(DefaultOrderTTL)) {
		t.Fatalf("expires at = %v", dto.ExpiresAt)
	}

	b := w.borrow(t, "b1")
	if b.PaymentStatus != domainBorrow.PaymentPending || domainBorrow.Deref(b.GatewayOrderID) != "order_1" {
		t.Fatalf("borrow = %+v", b)
	}
	if !b.Fine.Equal(dec("12.50")) {
		t.Fatalf("creating an order must not touch the fine, got %s", b.Fine)
	}
	if o := w.order(t, "order_1"); o.Status != domainPayment.StatusCreated || o.UserID != "u1" {
		t.Fatalf("order = %+v", o)
	}
	if w.metrics.Counter(metrics.PaymentOrdersCreated) != 1 {
		t.Fatalf("orders created counter not incremented")
	}
	if types := w.events.Types(); len(types) != 1 || types[0] != event.PaymentOrderCreated {
		t.Fatalf("events = %v", types)
	}
}

func TestCreateOrder_AbandonsPreviousOrder(t *testing.T) {
	w := newWorld()
	w.PutBorrow(finedBorrow("b1", "u1", "5"))
	uc := w.usecase()
	in := CreateOrderInput{BorrowID: "b1", UserID: "u1", Amount: dec("5")}

	first, err := uc.CreateOrder(context.Background(), in)
	if err != nil {
		t.Fatalf("first CreateOrder: %v", err)
	}
	second, err := uc.CreateOrder(context.Background(), in)
	if err != nil {
		t.Fatalf("second CreateOrder: %v", err)
	}
	if first.GatewayOrderID == second.GatewayOrderID {
		t.Fatalf("expected a fresh gateway order")
	}
	if o := w.order(t, first.GatewayOrderID); o.Status != domainPayment.StatusAbandoned {
		t.Fatalf("previous order status = %s", o.Status)
	}
	if b := w.borrow(t, "b1"); domainBorrow.Deref(b.GatewayOrderID) != second.GatewayOrderID {
		t.Fatalf("borrow points at %q", domainBorrow.Deref(b.GatewayOrderID))
	}
	types := w.events.Types()
	if len(types) != 3 || types[2] != event.PaymentOrderAbandoned {
		t.Fatalf("events = %v", types)
	}
}

func TestCreateOrder_GatewayFailure(t *testing.T) {
	w := newWorld()
	w.PutBorrow(finedBorrow("b1", "u1", "5"))
	w.gw.CreateOrderFn = func(context.Context, gateway.OrderRequest) (*gateway.Order, error) {
		return nil, gateway.ErrUnavailable
	}

	_, err := w.usecase().CreateOrder(context.Background(), CreateOrderInput{BorrowID: "b1", UserID: "u1", Amount: dec("5")})
	if !errors.Is(err, gateway.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if b := w.borrow(t, "b1"); b.PaymentStatus != domainBorrow.PaymentNone || b.GatewayOrderID != nil {
		t.Fatalf("borrow must be untouched, got %+v", b)
	}
	if len(w.Orders) != 0 || len(w.events.Events()) != 0 {
		t.Fatalf("nothing should be recorded")
	}
}

// pendingWorld has b1 waiting on order_1 for 5.00.
func pendingWorld(t *testing.T) (*world, *Usecase) {
	t.Helper()
	w := newWorld()
	w.PutBorrow(finedBorrow("b1", "u1", "5"))
	w.gw.CreateOrderFn = func(_ context.Context, r gateway.OrderRequest) (*gateway.Order, error) {
		return &gateway.Order{ID: "order_1", AmountMinor: r.AmountMinor}, nil
	}
	uc := w.usecase()
	if _, err := uc.CreateOrder(context.Background(), CreateOrderInput{BorrowID: "b1", UserID: "u1", Amount: dec("5")}); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return w, uc
}

func TestVerifyPayment_Success(t *testing.T) {
	w, uc := pendingWorld(t)

	conf, err := uc.VerifyPayment(context.Background(), VerifyInput{
		GatewayOrderID: "order_1",
		PaymentID:      "pay_1",
		Signature:      gateway.Sign(testSecret, "order_1", "pay_1"),
	})
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if conf.AlreadyRecorded || conf.BorrowID != "b1" || !conf.Amount.Equal(dec("5")) || conf.PaymentStatus != "completed" {
		t.Fatalf("confirmation = %+v", conf)
	}

	b := w.borrow(t, "b1")
	if b.PaymentStatus != domainBorrow.PaymentCompleted || domainBorrow.Deref(b.GatewayPaymentID) != "pay_1" || b.GatewayOrderID != nil {
		t.Fatalf("borrow = %+v", b)
	}
	if !b.Fine.Equal(dec("5")) {
		t.Fatalf("verification must not change the fine")
	}
	o := w.order(t, "order_1")
	if o.Status != domainPayment.StatusPaid || domainBorrow.Deref(o.GatewayPaymentID) != "pay_1" {
		t.Fatalf("order = %+v", o)
	}
	hist := w.history("u1")
	if len(hist) != 1 || hist[0].PaymentID != "pay_1" || hist[0].Source != domainUser.SourceVerification {
		t.Fatalf("history = %+v", hist)
	}
	if w.metrics.Counter(metrics.PaymentVerifySuccess) != 1 {
		t.Fatalf("success counter not incremented")
	}
}

func TestVerifyPayment_IsIdempotent(t *testing.T) {
	w, uc := pendingWorld(t)
	in := VerifyInput{GatewayOrderID: "order_1", PaymentID: "pay_1", Signature: gateway.Sign(testSecret, "order_1", "pay_1")}

	first, err := uc.VerifyPayment(context.Background(), in)
	if err != nil {
		t.Fatalf("first VerifyPayment: %v", err)
	}
	eventsAfterFirst := len(w.events.Events())
	second, err := uc.VerifyPayment(context.Background(), in)
	if err != nil {
		t.Fatalf("second VerifyPayment: %v", err)
	}
	if !second.AlreadyRecorded || second.BorrowID != first.BorrowID || !second.PaidAt.Equal(first.PaidAt) {
		t.Fatalf("second confirmation = %+v", second)
	}
	if n := len(w.history("u1")); n != 1 {
		t.Fatalf("history has %d entries, want 1", n)
	}
	if len(w.events.Events()) != eventsAfterFirst {
		t.Fatalf("replay must not publish again")
	}
}

func TestVerifyPayment_RejectsTamperedSignature(t *testing.T) {
	good := gateway.Sign(testSecret, "order_1", "pay_1")
	tampered := []VerifyInput{
		{GatewayOrderID: "order_1", PaymentID: "pay_1", Signature: ""},
		{GatewayOrderID: "order_1", PaymentID: "pay_2", Signature: good},
		{GatewayOrderID: "order_2", PaymentID: "pay_1", Signature: good},
		{GatewayOrderID: "order_1", PaymentID: "pay_1", Signature: strings.ToUpper(good)},
		{GatewayOrderID: "order_1", PaymentID: "pay_1", Signature: gateway.Sign("other", "order_1", "pay_1")},
		{GatewayOrderID: "", PaymentID: "pay_1", Signature: good},
	}
	for i, in := range tampered {
		w, uc := pendingWorld(t)
		_, err := uc.VerifyPayment(context.Background(), in)
		if !errors.Is(err, domainPayment.ErrVerificationFailed) {
			t.Fatalf("case %d: err = %v", i, err)
		}
		if b := w.borrow(t, "b1"); b.PaymentStatus != domainBorrow.PaymentPending {
			t.Fatalf("case %d: borrow status = %s", i, b.PaymentStatus)
		}
		if w.metrics.Counter(metrics.PaymentVerifyFailure) != 1 {
			t.Fatalf("case %d: failure counter not incremented", i)
		}
	}
}

func TestVerifyPayment_DifferentPaymentAfterCompletion(t *testing.T) {
	_, uc := pendingWorld(t)
	sig := func(p string) string { return gateway.Sign(testSecret, "order_1", p) }
	if _, err := uc.VerifyPayment(context.Background(), VerifyInput{GatewayOrderID: "order_1", PaymentID: "pay_1", Signature: sig("pay_1")}); err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	_, err := uc.VerifyPayment(context.Background(), VerifyInput{GatewayOrderID: "order_1", PaymentID: "pay_2", Signature: sig("pay_2")})
	if !errors.Is(err, domainPayment.ErrAlreadyPaid) {
		t.Fatalf("err = %v, want ErrAlreadyPaid", err)
	}
}

func TestVerifyPayment_AbandonedOrderIsNotResurrected(t *testing.T) {
	w, uc := pendingWorld(t)
	o := w.order(t, "order_1")
	o.Status = domainPayment.StatusAbandoned
	w.PutOrder(o)

	_, err := uc.VerifyPayment(context.Background(), VerifyInput{GatewayOrderID: "order_1", PaymentID: "pay_1", Signature: gateway.Sign(testSecret, "order_1", "pay_1")})
	if !errors.Is(err, domainPayment.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestVerifyPayment_UnknownOrder(t *testing.T) {
	w := newWorld()
	_, err := w.usecase().VerifyPayment(context.Background(), VerifyInput{GatewayOrderID: "order_9", PaymentID: "pay_9", Signature: gateway.Sign(testSecret, "order_9", "pay_9")})
	if !errors.Is(err, domainBorrow.ErrNotFound) {
		t.Fatalf("err = %v, want borrow.ErrNotFound", err)
	}
}

func TestSettleFine(t *testing.T) {
	w, uc := pendingWorld(t)
	if _, err := uc.SettleFine(context.Background(), SettleInput{BorrowID: "b1"}); !errors.Is(err, domainPayment.ErrNotPaid) {
		t.Fatalf("settling an unpaid fine: err = %v", err)
	}
	if _, err := uc.VerifyPayment(context.Background(), VerifyInput{GatewayOrderID: "order_1", PaymentID: "pay_1", Signature: gateway.Sign(testSecret, "order_1", "pay_1")}); err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}

	if _, err := uc.SettleFine(context.Background(), SettleInput{BorrowID: "b1", ActorID: "u2", OwnerID: "u2"}); !errors.Is(err, domainPayment.ErrForbidden) {
		t.Fatalf("settling someone else's fine: err = %v", err)
	}
	if len(w.borrow(t, "b1").FineAudit) != 0 {
		t.Fatalf("forbidden settlement must not touch the trail")
	}

	res, err := uc.SettleFine(context.Background(), SettleInput{BorrowID: "b1", ActorID: "lib1"})
	if err != nil {
		t.Fatalf("SettleFine: %v", err)
	}
	if res.AlreadySettled || !res.OldFine.Equal(dec("5")) || !res.NewFine.IsZero() || !res.PaidAmount.Equal(dec("5")) {
		t.Fatalf("result = %+v", res)
	}
	b := w.borrow(t, "b1")
	if len(b.FineAudit) != 1 {
		t.Fatalf("audit trail = %+v", b.FineAudit)
	}
	e := b.FineAudit[0]
	if e.Reason != domainBorrow.ReasonPaymentSettlement || e.ActingUserID != "lib1" || !e.Adjustment.Equal(dec("-5")) {
		t.Fatalf("audit entry = %+v", e)
	}

	again, err := uc.SettleFine(context.Background(), SettleInput{BorrowID: "b1"})
	if err != nil {
		t.Fatalf("second SettleFine: %v", err)
	}
	if !again.AlreadySettled || len(w.borrow(t, "b1").FineAudit) != 1 {
		t.Fatalf("second settlement must change nothing, got %+v", again)
	}
}

func TestReportFailure(t *testing.T) {
	w, uc := pendingWorld(t)
	long := strings.Repeat("x", 400)

	if _, err := uc.ReportFailure(context.Background(), FailureInput{GatewayOrderID: "order_1", UserID: "u2", Code: "BAD"}); !errors.Is(err, domainPayment.ErrForbidden) {
		t.Fatalf("other user: err = %v", err)
	}

	st, err := uc.ReportFailure(context.Background(), FailureInput{GatewayOrderID: "order_1", UserID: "u1", Code: "BAD_REQUEST_ERROR", Description: long})
	if err != nil {
		t.Fatalf("ReportFailure: %v", err)
	}
	if st.Status != "failed" || len(st.FailureReason) != maxFailureReason || !strings.HasPrefix(st.FailureReason, "BAD_REQUEST_ERROR: ") {
		t.Fatalf("status = %+v", st)
	}
	b := w.borrow(t, "b1")
	if b.PaymentStatus != domainBorrow.PaymentNone || b.GatewayOrderID != nil {
		t.Fatalf("borrow should be released, got %+v", b)
	}
	if w.metrics.Counter(metrics.PaymentReportedFailed) != 1 {
		t.Fatalf("failure counter not incremented")
	}
}

func TestMarkAttempted(t *testing.T) {
	w, uc := pendingWorld(t)
	st, err := uc.MarkAttempted(context.Background(), "order_1", "u1")
	if err != nil {
		t.Fatalf("MarkAttempted: %v", err)
	}
	if st.Status != "attempted" || w.order(t, "order_1").Status != domainPayment.StatusAttempted {
		t.Fatalf("status = %+v", st)
	}
	if _, err := uc.MarkAttempted(context.Background(), "order_1", "u1"); err != nil {
		t.Fatalf("repeat MarkAttempted: %v", err)
	}
	if _, err := uc.MarkAttempted(context.Background(), "missing", "u1"); !errors.Is(err, domainPayment.ErrNotFound) {
		t.Fatalf("unknown order: err = %v", err)
	}
}
