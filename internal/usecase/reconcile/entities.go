package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscrepancyKind string

const (
	// KindNotFoundAtGateway: an open local order the gateway has never seen.
	KindNotFoundAtGateway DiscrepancyKind = "not_found_at_gateway"
	// KindGatewayDisagrees: the order is paid locally but the gateway has no capture.
	KindGatewayDisagrees DiscrepancyKind = "local_paid_gateway_disagrees"
	// KindPaidByOtherPayment: a second capture for a record already paid.
	KindPaidByOtherPayment DiscrepancyKind = "paid_by_other_payment"
	// KindCapturedOnAbandoned: money captured on an order that was replaced or expired.
	KindCapturedOnAbandoned DiscrepancyKind = "captured_on_abandoned_order"
)

// Discrepancy needs a human decision; it is never corrected automatically.
type Discrepancy struct {
	BorrowID       string          `json:"borrow_id"`
	GatewayOrderID string          `json:"gateway_order_id"`
	PaymentID      string          `json:"payment_id,omitempty"`
	Kind           DiscrepancyKind `json:"kind"`
	Detail         string          `json:"detail"`
}

// Correction is one order moved to paid from a gateway capture.
type Correction struct {
	GatewayOrderID string          `json:"gateway_order_id"`
	PaymentID      string          `json:"payment_id"`
	Captured       decimal.Decimal `json:"captured"`
	OldFine        decimal.Decimal `json:"old_fine"`
	NewFine        decimal.Decimal `json:"new_fine"`
}

type Report struct {
	BorrowID      string        `json:"borrow_id"`
	Examined      int           `json:"examined"`
	Reconciled    int           `json:"reconciled"`
	MarkedFailed  int           `json:"marked_failed"`
	Corrections   []Correction  `json:"corrections"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}

type Failure struct {
	BorrowID string `json:"borrow_id"`
	Error    string `json:"error"`
}

type Summary struct {
	WindowHours   int           `json:"window_hours"`
	Borrows       int           `json:"borrows"`
	Examined      int           `json:"examined"`
	Reconciled    int           `json:"reconciled"`
	MarkedFailed  int           `json:"marked_failed"`
	Discrepancies []Discrepancy `json:"discrepancies"`
	Failures      []Failure     `json:"failures"`
	Duration      time.Duration `json:"duration_ns"`
}

type Stats struct {
	Orders      map[string]int64 `json:"orders"`
	Borrows     map[string]int64 `json:"borrows"`
	TotalOrders int64            `json:"total_orders"`
}
