package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateOrderInput struct {
	BorrowID string
	UserID   string
	Amount   decimal.Decimal
}

// OrderDTO is what the checkout widget needs to open the gateway form.
type OrderDTO struct {
	OrderID        string          `json:"order_id"`
	GatewayOrderID string          `json:"gateway_order_id"`
	BorrowID       string          `json:"borrow_id"`
	Amount         decimal.Decimal `json:"amount"`
	AmountMinor    int64           `json:"amount_minor"`
	Currency       string          `json:"currency"`
	Display        string          `json:"display"`
	Receipt        string          `json:"receipt"`
	KeyID          string          `json:"key_id,omitempty"`
	Status         string          `json:"status"`
	ExpiresAt      time.Time       `json:"expires_at"`
}

type VerifyInput struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

type Confirmation struct {
	BorrowID        string          `json:"borrow_id"`
	GatewayOrderID  string          `json:"gateway_order_id"`
	PaymentID       string          `json:"payment_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Display         string          `json:"display"`
	PaymentStatus   string          `json:"payment_status"`
	PaidAt          time.Time       `json:"paid_at"`
	AlreadyRecorded bool            `json:"already_recorded"`
}

type FailureInput struct {
	GatewayOrderID string
	UserID         string
	Code           string
	Description    string
}

type OrderStatusDTO struct {
	GatewayOrderID string `json:"gateway_order_id"`
	BorrowID       string `json:"borrow_id"`
	Status         string `json:"status"`
	FailureReason  string `json:"failure_reason,omitempty"`
}

type SettleInput struct {
	BorrowID string
	ActorID  string
	// OwnerID, when set, must be the record's borrower.
	OwnerID string
}

type SettleResult struct {
	BorrowID       string          `json:"borrow_id"`
	PaymentID      string          `json:"payment_id"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	OldFine        decimal.Decimal `json:"old_fine"`
	NewFine        decimal.Decimal `json:"new_fine"`
	Display        string          `json:"display"`
	AlreadySettled bool            `json:"already_settled"`
}
