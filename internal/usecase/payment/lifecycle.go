package payment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	domainBorrow "library-fines/internal/domain/borrow"
	"library-fines/internal/domain/event"
	domainPayment "library-fines/internal/domain/payment"
	"library-fines/internal/domain/uow"
	"library-fines/internal/infrastructure/metrics"
)

const maxFailureReason = 255

// MarkAttempted records that the borrower opened the gateway form.
func (u *Usecase) MarkAttempted(ctx context.Context, gatewayOrderID, userID string) (*OrderStatusDTO, error) {
	if gatewayOrderID == "" {
		return nil, ErrInvalidInput
	}
	o, err := domainPayment.MutateOrder(ctx, u.orders, gatewayOrderID, func(o *domainPayment.Order) error {
		if userID != "" && o.UserID != userID {
			return domainPayment.ErrForbidden
		}
		if o.Status == domainPayment.StatusAttempted {
			return domainPayment.ErrNoChange
		}
		return o.Transition(domainPayment.StatusAttempted, u.now())
	})
	if err != nil {
		return nil, err
	}
	return statusDTO(o), nil
}

// ReportFailure records a client-reported failed attempt and frees the
// borrow record for a new order.
func (u *Usecase) ReportFailure(ctx context.Context, in FailureInput) (*OrderStatusDTO, error) {
	if in.GatewayOrderID == "" {
		return nil, ErrInvalidInput
	}
	reason := in.Code
	if in.Description != "" {
		reason = fmt.Sprintf("%s: %s", in.Code, in.Description)
	}
	if len(reason) > maxFailureReason {
		reason = reason[:maxFailureReason]
	}

	var out *domainPayment.Order
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		o, err := domainPayment.MutateOrder(ctx, r.Orders, in.GatewayOrderID, func(o *domainPayment.Order) error {
			if in.UserID != "" && o.UserID != in.UserID {
				return domainPayment.ErrForbidden
			}
			if o.Status == domainPayment.StatusFailed {
				return domainPayment.ErrNoChange
			}
			if err := o.Transition(domainPayment.StatusFailed, u.now()); err != nil {
				return err
			}
			o.FailureReason = reason
			return nil
		})
		if err != nil {
			return err
		}
		out = o
		_, err = domainBorrow.Mutate(ctx, r.Borrows, o.BorrowID, func(b *domainBorrow.Record) error {
			if b.PaymentStatus != domainBorrow.PaymentPending || domainBorrow.Deref(b.GatewayOrderID) != o.GatewayOrderID {
				return domainBorrow.ErrNoChange
			}
			b.PaymentStatus = domainBorrow.PaymentNone
			b.GatewayOrderID = nil
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.Inc(u.metrics, metrics.PaymentReportedFailed)
	u.logger.Info("payment attempt failed", zap.String("gateway_order_id", in.GatewayOrderID), zap.String("code", in.Code))
	u.publish(ctx, event.Event{
		Type:       event.PaymentFailed,
		BorrowID:   out.BorrowID,
		UserID:     out.UserID,
		OrderID:    out.GatewayOrderID,
		Attributes: map[string]string{"code": in.Code},
	})
	return statusDTO(out), nil
}

func statusDTO(o *domainPayment.Order) *OrderStatusDTO {
	return &OrderStatusDTO{
		GatewayOrderID: o.GatewayOrderID,
		BorrowID:       o.BorrowID,
		Status:         string(o.Status),
		FailureReason:  o.FailureReason,
	}
}
