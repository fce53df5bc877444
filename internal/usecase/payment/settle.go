package payment

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainBorrow "library-fines/internal/domain/borrow"
	"library-fines/internal/domain/event"
	domainPayment "library-fines/internal/domain/payment"
	"library-fines/pkg/money"
)

const systemActor = "system"

// SettleFine applies a completed payment to the fine: the fine drops by the
// paid amount (never below zero) and the change is written to the audit
// trail. Settling the same payment again changes nothing.
func (u *Usecase) SettleFine(ctx context.Context, in SettleInput) (*SettleResult, error) {
	if in.BorrowID == "" {
		return nil, ErrInvalidInput
	}
	actor := in.ActorID
	if actor == "" {
		actor = systemActor
	}

	rec, err := u.borrows.GetByBorrowID(ctx, in.BorrowID)
	if err != nil {
		return nil, err
	}
	if in.OwnerID != "" && rec.UserID != in.OwnerID {
		return nil, domainPayment.ErrForbidden
	}
	paymentID := domainBorrow.Deref(rec.GatewayPaymentID)
	if rec.PaymentStatus != domainBorrow.PaymentCompleted || paymentID == "" {
		return nil, domainPayment.ErrNotPaid
	}
	paid, err := u.paidAmount(ctx, rec.BorrowID, paymentID)
	if err != nil {
		return nil, err
	}

	res := &SettleResult{BorrowID: rec.BorrowID, PaymentID: paymentID, PaidAmount: paid}
	now := u.now()
	rec, err = domainBorrow.Mutate(ctx, u.borrows, in.BorrowID, func(b *domainBorrow.Record) error {
		res.OldFine = b.Fine
		if b.HasSettlement(paymentID) {
			res.AlreadySettled = true
			return domainBorrow.ErrNoChange
		}
		res.AlreadySettled = false
		newFine := money.Max0(b.Fine.Sub(paid))
		b.AppendAudit(domainBorrow.NewAuditEntry(now, actor, b.Fine, newFine, domainBorrow.ReasonPaymentSettlement, domainBorrow.SettlementNote(paymentID)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.NewFine = rec.Fine
	res.Display = money.Format(rec.Fine, u.cfg.CurrencySymbol)
	if res.AlreadySettled {
		return res, nil
	}

	u.logger.Info("fine settled", zap.String("borrow_id", rec.BorrowID), zap.String("payment_id", paymentID))
	u.publish(ctx, event.Event{
		Type:      event.FineAdjusted,
		BorrowID:  rec.BorrowID,
		UserID:    rec.UserID,
		PaymentID: paymentID,
		Amount:    rec.Fine.StringFixed(2),
		Attributes: map[string]string{
			"reason":   string(domainBorrow.ReasonPaymentSettlement),
			"old_fine": res.OldFine.StringFixed(2),
			"actor":    actor,
		},
	})
	return res, nil
}

// paidAmount is the amount of the paid order carrying paymentID.
func (u *Usecase) paidAmount(ctx context.Context, borrowID, paymentID string) (decimal.Decimal, error) {
	orders, err := u.orders.ListByBorrowID(ctx, borrowID)
	if err != nil {
		return decimal.Zero, err
	}
	for _, o := range orders {
		if o.Status == domainPayment.StatusPaid && domainBorrow.Deref(o.GatewayPaymentID) == paymentID {
			return o.Amount, nil
		}
	}
	return decimal.Zero, domainPayment.ErrNotFound
}
