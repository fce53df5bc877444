package gatewaymock

import (
	"context"
	"errors"

	"library-fines/internal/domain/gateway"
)

var _ gateway.Client = (*Client)(nil)

var errUnimplemented = errors.New("gatewaymock: method not implemented")

// Client is a function-backed gateway.Client.
type Client struct {
	CreateOrderFn        func(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
	FetchOrderPaymentsFn func(ctx context.Context, orderID string) ([]gateway.Payment, error)
	FetchPaymentFn       func(ctx context.Context, paymentID string) (*gateway.Payment, error)
	CaptureFn            func(ctx context.Context, paymentID string, amountMinor int64, currency string) (*gateway.Payment, error)
	RefundFn             func(ctx context.Context, paymentID string, amountMinor int64) (*gateway.Refund, error)
	FetchRefundFn        func(ctx context.Context, paymentID, refundID string) (*gateway.Refund, error)
}

func (m *Client) CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	if m.CreateOrderFn != nil {
		return m.CreateOrderFn(ctx, req)
	}
	return nil, errUnimplemented
}

func (m *Client) FetchOrderPayments(ctx context.Context, orderID string) ([]gateway.Payment, error) {
	if m.FetchOrderPaymentsFn != nil {
		return m.FetchOrderPaymentsFn(ctx, orderID)
	}
	return nil, errUnimplemented
}

func (m *Client) FetchPayment(ctx context.Context, paymentID string) (*gateway.Payment, error) {
	if m.FetchPaymentFn != nil {
		return m.FetchPaymentFn(ctx, paymentID)
	}
	return nil, errUnimplemented
}

func (m *Client) Capture(ctx context.Context, paymentID string, amountMinor int64, currency string) (*gateway.Payment, error) {
	if m.CaptureFn != nil {
		return m.CaptureFn(ctx, paymentID, amountMinor, currency)
	}
	return nil, errUnimplemented
}

func (m *Client) Refund(ctx context.Context, paymentID string, amountMinor int64) (*gateway.Refund, error) {
	if m.RefundFn != nil {
		return m.RefundFn(ctx, paymentID, amountMinor)
	}
	return nil, errUnimplemented
}

func (m *Client) FetchRefund(ctx context.Context, paymentID, refundID string) (*gateway.Refund, error) {
	if m.FetchRefundFn != nil {
		return m.FetchRefundFn(ctx, paymentID, refundID)
	}
	return nil, errUnimplemented
}
