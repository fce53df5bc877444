package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	domainBorrow "library-fines/internal/domain/borrow"
	"library-fines/internal/domain/event"
	"library-fines/internal/domain/gateway"
	domainPayment "library-fines/internal/domain/payment"
	"library-fines/internal/domain/uow"
	"library-fines/internal/infrastructure/metrics"
	"library-fines/pkg/id"
	"library-fines/pkg/money"
)

// CreateOrder opens a gateway order for the outstanding fine of a borrow
// record owned by the caller. A previous in-flight order is abandoned.
func (u *Usecase) CreateOrder(ctx context.Context, in CreateOrderInput) (*OrderDTO, error) {
	if in.BorrowID == "" || in.UserID == "" || !in.Amount.IsPositive() {
		return nil, ErrInvalidInput
	}

	rec, err := u.borrows.GetByBorrowID(ctx, in.BorrowID)
	if err != nil {
		return nil, err
	}
	if err := u.checkPayable(rec, in); err != nil {
		return nil, err
	}

	amount := money.Round2(in.Amount)
	receipt := id.NewReceipt(u.cfg.ReceiptPrefix)
	start := time.Now()
	gwOrder, err := u.gw.CreateOrder(ctx, gateway.OrderRequest{
		AmountMinor: money.ToMinor(amount),
		Currency:    u.cfg.Currency,
		Receipt:     receipt,
		Notes:       map[string]string{"borrow_id": rec.BorrowID, "user_id": rec.UserID},
	})
	u.metrics.Observe(metrics.GatewayCallSeconds, time.Since(start))
	if err != nil {
		u.logger.Warn("gateway order creation failed", zap.String("borrow_id", rec.BorrowID), zap.Error(err))
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	now := u.now()
	order := &domainPayment.Order{
		OrderID:        id.NewID32(),
		BorrowID:       rec.BorrowID,
		UserID:         rec.UserID,
		GatewayOrderID: gwOrder.ID,
		Receipt:        receipt,
		Amount:         amount,
		Currency:       u.cfg.Currency,
		Status:         domainPayment.StatusCreated,
		ExpiresAt:      now.Add(u.cfg.OrderTTL),
		CreatedAt:      now,
	}

	var abandoned string
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		if err := r.Orders.Create(ctx, order); err != nil {
			return err
		}
		_, err := domainBorrow.Mutate(ctx, r.Borrows, rec.BorrowID, func(b *domainBorrow.Record) error {
			if err := u.checkPayable(b, in); err != nil {
				return err
			}
			abandoned = domainBorrow.Deref(b.GatewayOrderID)
			b.GatewayOrderID = domainBorrow.StrPtr(order.GatewayOrderID)
			b.PaymentStatus = domainBorrow.PaymentPending
			return nil
		})
		if err != nil {
			return err
		}
		if abandoned == "" || abandoned == order.GatewayOrderID {
			abandoned = ""
			return nil
		}
		return abandonPrevious(ctx, r.Orders, abandoned, now)
	})
	if err != nil {
		return nil, err
	}

	metrics.Inc(u.metrics, metrics.PaymentOrdersCreated)
	u.logger.Info("payment order created",
		zap.String("borrow_id", rec.BorrowID), zap.String("gateway_order_id", order.GatewayOrderID))
	u.publish(ctx, event.Event{
		Type:     event.PaymentOrderCreated,
		BorrowID: order.BorrowID,
		UserID:   order.UserID,
		OrderID:  order.GatewayOrderID,
		Amount:   order.Amount.StringFixed(2),
	})
	if abandoned != "" {
		u.publish(ctx, event.Event{Type: event.PaymentOrderAbandoned, BorrowID: order.BorrowID, OrderID: abandoned})
	}

	return &OrderDTO{
		OrderID:        order.OrderID,
		GatewayOrderID: order.GatewayOrderID,
		BorrowID:       order.BorrowID,
		Amount:         order.Amount,
		AmountMinor:    money.ToMinor(order.Amount),
		Currency:       order.Currency,
		Display:        money.Format(order.Amount, u.cfg.CurrencySymbol),
		Receipt:        order.Receipt,
		KeyID:          u.cfg.KeyID,
		Status:         string(order.Status),
		ExpiresAt:      order.ExpiresAt,
	}, nil
}

func (u *Usecase) checkPayable(rec *domainBorrow.Record, in CreateOrderInput) error {
	if rec.UserID != in.UserID {
		return domainPayment.ErrForbidden
	}
	if rec.PaymentStatus == domainBorrow.PaymentCompleted {
		return domainPayment.ErrAlreadyPaid
	}
	if !money.WithinTolerance(in.Amount, rec.Fine, u.cfg.Tolerance) {
		return domainPayment.ErrAmountMismatch
	}
	return nil
}

// abandonPrevious retires an order superseded by a new one. Orders that
// already reached a terminal status are left alone.
func abandonPrevious(ctx context.Context, orders domainPayment.Repository, gatewayOrderID string, at time.Time) error {
	_, err := domainPayment.MutateOrder(ctx, orders, gatewayOrderID, func(o *domainPayment.Order) error {
		if !domainPayment.CanTransition(o.Status, domainPayment.StatusAbandoned) {
			return domainPayment.ErrNoChange
		}
		return o.Transition(domainPayment.StatusAbandoned, at)
	})
	if errors.Is(err, domainPayment.ErrNotFound) {
		return nil
	}
	return err
}
