package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"testing"
	"time"

	domainBorrow "library-fines/internal/domain/borrow"
	"library-fines/internal/domain/gateway"
	domainPayment "library-fines/internal/domain/payment"
	"library-fines/internal/infrastructure/metrics"
	"library-fines/internal/usecase/audit"
	"library-fines/internal/usecase/reconcile"
)

func TestAdjustFine(t *testing.T) {
	a := newApp(t)
	a.returned("b1", memberID)

	rec := a.do(t, stdhttp.MethodPut, "/admin/borrows/b1/fine", map[string]any{
		"new_fine": "1.00",
		"reason":   "waiver",
		"notes":    "first offence",
	}, adminID, "admin")
	wantStatus(t, rec, stdhttp.StatusOK)
	var entry domainBorrow.FineAuditEntry
	decode(t, rec, &entry)
	if entry.ActingUserID != adminID || !entry.OldFine.Equal(dec("2.25")) || !entry.Adjustment.Equal(dec("-1.25")) {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	// old_fine no longer matches
	rec = a.do(t, stdhttp.MethodPut, "/admin/borrows/b1/fine", map[string]any{
		"new_fine": "0",
		"old_fine": "2.25",
		"reason":   "correction",
	}, adminID, "admin")
	wantStatus(t, rec, stdhttp.StatusConflict)

	rec = a.do(t, stdhttp.MethodPut, "/admin/borrows/b1/fine", map[string]any{
		"new_fine": "0",
		"old_fine": "1.00",
		"reason":   "correction",
	}, adminID, "admin")
	wantStatus(t, rec, stdhttp.StatusOK)

	rec = a.do(t, stdhttp.MethodGet, "/admin/borrows/b1/audit", nil, adminID, "admin")
	wantStatus(t, rec, stdhttp.StatusOK)
	var trail audit.Trail
	decode(t, rec, &trail)
	if len(trail.Entries) != 2 || !trail.CurrentFine.IsZero() {
		t.Fatalf("unexpected trail: %+v", trail)
	}
	if trail.Entries[0].Reason != domainBorrow.ReasonWaiver || trail.Entries[1].Reason != domainBorrow.ReasonCorrection {
		t.Fatalf("entries out of order: %+v", trail.Entries)
	}

	rec = a.do(t, stdhttp.MethodGet, "/admin/users/"+memberID+"/audit", nil, adminID, "admin")
	wantStatus(t, rec, stdhttp.StatusOK)
	var ut audit.UserTrail
	decode(t, rec, &ut)
	if len(ut.Entries) != 2 || ut.Entries[0].BorrowID != "b1" {
		t.Fatalf("unexpected user trail: %+v", ut)
	}
}

func TestAdjustFine_Validation(t *testing.T) {
	a := newApp(t)
	a.returned("b1", memberID)

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"negative fine", map[string]any{"new_fine": "-1", "reason": "waiver"}, "NewFine"},
		{"too precise", map[string]any{"new_fine": "1.001", "reason": "waiver"}, "NewFine"},
		{"reserved reason", map[string]any{"new_fine": "1", "reason": "payment_settlement"}, "Reason"},
		{"missing reason", map[string]any{"new_fine": "1"}, "Reason"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, stdhttp.MethodPut, "/admin/borrows/b1/fine", tt.body, adminID, "admin")
			wantStatus(t, rec, stdhttp.StatusUnprocessableEntity)
			var er ErrorResponse
			decode(t, rec, &er)
			found := false
			for _, d := range er.Details {
				found = found || d.Field == tt.field
			}
			if !found {
				t.Fatalf("expected detail for %s, got %+v", tt.field, er.Details)
			}
		})
	}

	rec := a.do(t, stdhttp.MethodPut, "/admin/borrows/missing/fine", map[string]any{"new_fine": "1", "reason": "waiver"}, adminID, "admin")
	wantStatus(t, rec, stdhttp.StatusNotFound)
}

func TestAssessOverdueKeepsWaiver(t *testing.T) {
	a := newApp(t)
	a.store.PutBorrow(domainBorrow.Record{
		BorrowID:   "late",
		UserID:     memberID,
		BookID:     "book1",
		BorrowDate: date(2024, 1, 1),
		DueDate:    date(2024, 1, 15),
		Fine:       dec("4.50"),
	})

	rec := a.do(t, stdhttp.MethodPut, "/admin/borrows/late/fine", map[string]any{
		"new_fine": "0",
		"reason":   "waiver",
	}, adminID, "admin")
	wantStatus(t, rec, stdhttp.StatusOK)

	rec = a.do(t, stdhttp.MethodPost, "/admin/fines/assess-overdue", nil, adminID, "admin")
	wantStatus(t, rec, stdhttp.StatusOK)
	var sum struct {
		Examined int `json:"examined"`
		Updated  int `json:"updated"`
		Skipped  int `json:"skipped"`
	}
	decode(t, rec, &sum)
	if sum.Examined != 1 || sum.Updated != 0 || sum.Skipped != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	rec = a.do(t, stdhttp.MethodGet, "/admin/borrows/late/audit", nil, adminID, "admin")
	wantStatus(t, rec, stdhttp.StatusOK)
	var trail audit.Trail
	decode(t, rec, &trail)
	if !trail.CurrentFine.IsZero() || len(trail.Entries) != 1 || !trail.Entries[0].NewFine.IsZero() {
		t.Fatalf("waiver was overwritten: %+v", trail)
	}
}

func TestReconcileRoutes(t *testing.T) {
	a := newApp(t)
	a.returned("b1", memberID)
	rec := a.do(t, stdhttp.MethodPost, "/borrows/b1/payment-orders", map[string]any{"amount": "2.25"}, memberID, "")
	wantStatus(t, rec, stdhttp.StatusCreated)

	a.gw.FetchOrderPaymentsFn = func(_ context.Context, orderID string) ([]gateway.Payment, error) {
		return []gateway.Payment{{ID: "pay_9", OrderID: orderID, AmountMinor: 225, Currency: "INR", Status: gateway.PaymentCaptured}}, nil
	}

	rec = a.do(t, stdhttp.MethodPost, "/admin/borrows/b1/reconcile", nil, adminID, "admin")
	wantStatus(t, rec, stdhttp.StatusOK)
	var rep reconcile.Report
	decode(t, rec, &rep)
	if rep.Reconciled != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if o, _ := a.store.Order("order_1"); o.Status != domainPayment.StatusPaid {
		t.Fatalf("order status = %s, want paid", o.Status)
	}

	for _, q := range []string{"?hours=0", "?hours=abc", "?hours=100000"} {
		rec = a.do(t, stdhttp.MethodPost, "/admin/reconcile"+q, nil, adminID, "admin")
		wantStatus(t, rec, stdhttp.StatusBadRequest)
	}
	rec = a.do(t, stdhttp.MethodPost, "/admin/reconcile?hours=48", nil, adminID, "admin")
	wantStatus(t, rec, stdhttp.StatusOK)
	var sum reconcile.Summary
	decode(t, rec, &sum)
	if sum.WindowHours != 48 || sum.Reconciled != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestSweepAndStats(t *testing.T) {
	a := newApp(t)
	a.returned("b1", memberID)
	a.store.PutOrder(domainPayment.Order{
		OrderID:        "o_stale",
		BorrowID:       "b1",
		UserID:         memberID,
		GatewayOrderID: "order_stale",
		Amount:         dec("2.25"),
		Currency:       "INR",
		Status:         domainPayment.StatusCreated,
		CreatedAt:      time.Now().UTC().Add(-2 * time.Hour),
		UpdatedAt:      time.Now().UTC().Add(-2 * time.Hour),
	})

	rec := a.do(t, stdhttp.MethodPost, "/admin/payments/sweep", nil, adminID, "admin")
	wantStatus(t, rec, stdhttp.StatusOK)
	if o, _ := a.store.Order("order_stale"); o.Status != domainPayment.StatusAbandoned {
		t.Fatalf("order status = %s, want abandoned", o.Status)
	}

	a.metrics.Observe(metrics.GatewayCallSeconds, 200*time.Millisecond)
	rec = a.do(t, stdhttp.MethodGet, "/admin/payments/stats", nil, adminID, "admin")
	wantStatus(t, rec, stdhttp.StatusOK)
	var stats struct {
		Reconcile map[string]json.RawMessage `json:"reconcile"`
		Cleanup   struct {
			Sweeps int64 `json:"sweeps"`
		} `json:"cleanup"`
		Timings map[string]metrics.Summary `json:"timings"`
	}
	decode(t, rec, &stats)
	if stats.Cleanup.Sweeps != 1 {
		t.Fatalf("sweeps = %d, want 1", stats.Cleanup.Sweeps)
	}
	if _, ok := stats.Reconcile["orders"]; !ok {
		t.Fatalf("missing order counts: %s", rec.Body.String())
	}
	if got := stats.Timings[metrics.GatewayCallSeconds]; got.Count != 1 || got.MaxSeconds != 0.2 {
		t.Fatalf("timings = %+v", stats.Timings)
	}
}
