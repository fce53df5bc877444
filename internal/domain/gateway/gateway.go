// Package gateway is the contract with the external payment gateway. Amounts
// crossing this boundary are in minor currency units.
package gateway

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means the gateway has no record of the requested object.
	ErrNotFound = errors.New("gateway: not found")
	// ErrUnavailable covers timeouts, network failures and 5xx responses.
	// Callers may retry; the lifecycle service itself never does.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrRejected is a 4xx other than 404.
	ErrRejected = errors.New("gateway rejected the request")
)

type PaymentStatus string

const (
	PaymentCreated    PaymentStatus = "created"
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentCaptured   PaymentStatus = "captured"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentFailed     PaymentStatus = "failed"
)

type OrderRequest struct {
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt"`
	Notes       map[string]string `json:"notes,omitempty"`
}

type Order struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
}

type Payment struct {
	ID          string        `json:"id"`
	OrderID     string        `json:"order_id"`
	AmountMinor int64         `json:"amount"`
	Currency    string        `json:"currency"`
	Status      PaymentStatus `json:"status"`
	Captured    bool          `json:"captured"`
	CreatedAt   int64         `json:"created_at"`
	CapturedAt  int64         `json:"captured_at,omitempty"`
}

// CapturedTime returns when the payment was captured, falling back to creation time.
func (p Payment) CapturedTime() time.Time {
	if p.CapturedAt > 0 {
		return time.Unix(p.CapturedAt, 0).UTC()
	}
	return time.Unix(p.CreatedAt, 0).UTC()
}

type Refund struct {
	ID          string `json:"id"`
	PaymentID   string `json:"payment_id"`
	AmountMinor int64  `json:"amount"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
}

type Client interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	// FetchOrderPayments returns ErrNotFound when the order is unknown to the gateway.
	FetchOrderPayments(ctx context.Context, orderID string) ([]Payment, error)
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
	Capture(ctx context.Context, paymentID string, amountMinor int64, currency string) (*Payment, error)
	Refund(ctx context.Context, paymentID string, amountMinor int64) (*Refund, error)
	FetchRefund(ctx context.Context, paymentID, refundID string) (*Refund, error)
}
