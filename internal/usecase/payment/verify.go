package payment

import (
	"context"
	"errors"

	"go.uber.org/zap"

	domainBorrow "library-fines/internal/domain/borrow"
	"library-fines/internal/domain/event"
	"library-fines/internal/domain/gateway"
	domainPayment "library-fines/internal/domain/payment"
	"library-fines/internal/domain/uow"
	domainUser "library-fines/internal/domain/user"
	"library-fines/internal/infrastructure/metrics"
	"library-fines/pkg/money"
)

// VerifyPayment checks the checkout signature and records the payment. The
// fine itself is left untouched; SettleFine applies the paid amount to it.
// Verifying the same payment twice returns the original confirmation.
func (u *Usecase) VerifyPayment(ctx context.Context, in VerifyInput) (*Confirmation, error) {
	if in.GatewayOrderID == "" || in.PaymentID == "" {
		metrics.Inc(u.metrics, metrics.PaymentVerifyFailure)
		return nil, domainPayment.ErrVerificationFailed
	}
	if !gateway.VerifySignature(u.cfg.KeySecret, in.GatewayOrderID, in.PaymentID, in.Signature) {
		metrics.Inc(u.metrics, metrics.PaymentVerifyFailure)
		u.logger.Warn("payment signature mismatch", zap.String("gateway_order_id", in.GatewayOrderID))
		return nil, domainPayment.ErrVerificationFailed
	}

	now := u.now()
	conf := &Confirmation{GatewayOrderID: in.GatewayOrderID, PaymentID: in.PaymentID, Currency: u.cfg.Currency}
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		order, err := r.Orders.GetByGatewayOrderID(ctx, in.GatewayOrderID)
		if err != nil && !errors.Is(err, domainPayment.ErrNotFound) {
			return err
		}
		borrowID, err := u.locateBorrow(ctx, r, in.GatewayOrderID, order)
		if err != nil {
			return err
		}

		rec, err := domainBorrow.Mutate(ctx, r.Borrows, borrowID, func(b *domainBorrow.Record) error {
			conf.AlreadyRecorded = false
			if b.PaymentStatus == domainBorrow.PaymentCompleted {
				if domainBorrow.Deref(b.GatewayPaymentID) == in.PaymentID {
					conf.AlreadyRecorded = true
					return domainBorrow.ErrNoChange
				}
				return domainPayment.ErrAlreadyPaid
			}
			b.PaymentStatus = domainBorrow.PaymentCompleted
			b.GatewayPaymentID = domainBorrow.StrPtr(in.PaymentID)
			b.GatewayOrderID = nil
			return nil
		})
		if err != nil {
			return err
		}

		amount := rec.Fine
		if order != nil {
			amount = order.Amount
			conf.Currency = order.Currency
		}
		conf.BorrowID = rec.BorrowID
		conf.Amount = amount
		conf.PaidAt = now
		if conf.AlreadyRecorded {
			return u.fillPaidAt(ctx, r, rec.UserID, in.PaymentID, conf)
		}

		if order != nil {
			_, err := domainPayment.MutateOrder(ctx, r.Orders, order.GatewayOrderID, func(o *domainPayment.Order) error {
				if err := o.Transition(domainPayment.StatusPaid, now); err != nil {
					return err
				}
				o.GatewayPaymentID = domainBorrow.StrPtr(in.PaymentID)
				return nil
			})
			if err != nil {
				return err
			}
		}

		return appendHistory(ctx, r.Users, rec.UserID, domainUser.PaymentHistoryEntry{
			PaymentID: in.PaymentID,
			OrderID:   in.GatewayOrderID,
			BorrowID:  rec.BorrowID,
			Amount:    amount,
			Currency:  conf.Currency,
			PaidAt:    now,
			Source:    domainUser.SourceVerification,
		})
	})
	if err != nil {
		if errors.Is(err, domainPayment.ErrAlreadyPaid) || errors.Is(err, domainPayment.ErrInvalidTransition) {
			metrics.Inc(u.metrics, metrics.PaymentVerifyFailure)
		}
		return nil, err
	}

	conf.PaymentStatus = string(domainBorrow.PaymentCompleted)
	conf.Display = money.Format(conf.Amount, u.cfg.CurrencySymbol)
	if conf.AlreadyRecorded {
		return conf, nil
	}

	metrics.Inc(u.metrics, metrics.PaymentVerifySuccess)
	u.logger.Info("payment verified", zap.String("borrow_id", conf.BorrowID), zap.String("gateway_order_id", in.GatewayOrderID))
	u.publish(ctx, event.Event{
		Type:      event.PaymentCompleted,
		BorrowID:  conf.BorrowID,
		OrderID:   in.GatewayOrderID,
		PaymentID: in.PaymentID,
		Amount:    conf.Amount.StringFixed(2),
	})
	return conf, nil
}

// locateBorrow finds the record by the order id it still carries, falling
// back to the order row once the record has moved on.
func (u *Usecase) locateBorrow(ctx context.Context, r uow.Repos, gatewayOrderID string, order *domainPayment.Order) (string, error) {
	rec, err := r.Borrows.GetByGatewayOrderID(ctx, gatewayOrderID)
	if err == nil {
		return rec.BorrowID, nil
	}
	if !errors.Is(err, domainBorrow.ErrNotFound) {
		return "", err
	}
	if order == nil {
		return "", domainBorrow.ErrNotFound
	}
	return order.BorrowID, nil
}

func (u *Usecase) fillPaidAt(ctx context.Context, r uow.Repos, userID, paymentID string, conf *Confirmation) error {
	usr, err := r.Users.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domainUser.ErrNotFound) {
			return nil
		}
		return err
	}
	for _, p := range usr.PaymentHistory {
		if p.PaymentID == paymentID {
			conf.PaidAt = p.PaidAt
			conf.Amount = p.Amount
		}
	}
	return nil
}

// appendHistory adds e to the user's payment history unless it is there.
func appendHistory(ctx context.Context, users domainUser.Repository, userID string, e domainUser.PaymentHistoryEntry) error {
	usr, err := users.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if !usr.AppendPayment(e) {
		return nil
	}
	return users.Save(ctx, usr)
}
