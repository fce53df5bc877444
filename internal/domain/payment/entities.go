package payment

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("payment order not found")
	ErrDuplicateOrder    = errors.New("gateway order id already recorded")
	ErrInvalidTransition = errors.New("payment order cannot move to that status")
	ErrVersionConflict   = errors.New("payment order was modified concurrently")

	ErrForbidden          = errors.New("borrow record belongs to another user")
	ErrAlreadyPaid        = errors.New("fine already paid")
	ErrAmountMismatch     = errors.New("amount does not match the outstanding fine")
	ErrVerificationFailed = errors.New("payment verification failed")
	ErrNotPaid            = errors.New("fine has no completed payment")
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusAttempted Status = "attempted"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned"
)

var transitions = map[Status][]Status{
	StatusCreated:   {StatusAttempted, StatusPaid, StatusFailed, StatusAbandoned},
	StatusAttempted: {StatusPaid, StatusFailed, StatusAbandoned},
	// the gateway is authoritative: a locally failed order it reports captured becomes paid
	StatusFailed: {StatusPaid},
}

// CanTransition reports whether from -> to moves forward. Paid and abandoned
// orders are never resurrected.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsOpen is true for orders that reconciliation still has to look at.
func (s Status) IsOpen() bool { return s != StatusPaid && s != StatusAbandoned }

// Order is one gateway order attempt for a borrow record.
type Order struct {
	ID               uint64          `gorm:"primaryKey;column:id" json:"-"`
	OrderID          string          `gorm:"size:32;uniqueIndex:ux_payment_orders_order_id;not null" json:"order_id"`
	BorrowID         string          `gorm:"size:32;index:idx_payment_orders_borrow;not null" json:"borrow_id"`
	UserID           string          `gorm:"size:32;index;not null" json:"user_id"`
	GatewayOrderID   string          `gorm:"size:64;uniqueIndex:ux_payment_orders_gateway_order_id;not null" json:"gateway_order_id"`
	GatewayPaymentID *string         `gorm:"size:64" json:"gateway_payment_id,omitempty"`
	Receipt          string          `gorm:"size:40" json:"receipt"`
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency         string          `gorm:"size:3;not null" json:"currency"`
	Status           Status          `gorm:"size:16;index:idx_payment_orders_status_created;not null" json:"status"`
	FailureReason    string          `gorm:"size:255" json:"failure_reason,omitempty"`
	ExpiresAt        time.Time       `json:"expires_at"`
	Version          int64           `gorm:"not null;default:1" json:"-"`
	CreatedAt        time.Time       `gorm:"index:idx_payment_orders_status_created" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string { return "payment_orders" }

// Transition moves the order to `to`, or returns ErrInvalidTransition.
func (o *Order) Transition(to Status, at time.Time) error {
	if o.Status == to {
		return nil
	}
	if !CanTransition(o.Status, to) {
		return ErrInvalidTransition
	}
	o.Status = to
	o.UpdatedAt = at
	return nil
}
