package event

import (
	"context"
	"time"
)

type Type string

const (
	PaymentOrderCreated   Type = "payment.order_created"
	PaymentCompleted      Type = "payment.completed"
	PaymentFailed         Type = "payment.failed"
	PaymentReconciled     Type = "payment.reconciled"
	PaymentDiscrepancy    Type = "payment.discrepancy"
	PaymentOrderAbandoned Type = "payment.order_abandoned"
	FineAdjusted          Type = "fine.adjusted"
)

// Event is published after the state change it describes has been committed.
type Event struct {
	Type       Type              `json:"type"`
	BorrowID   string            `json:"borrow_id,omitempty"`
	UserID     string            `json:"user_id,omitempty"`
	OrderID    string            `json:"order_id,omitempty"`
	PaymentID  string            `json:"payment_id,omitempty"`
	Amount     string            `json:"amount,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
