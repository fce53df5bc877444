package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

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

const (
	DefaultWindowHours = 24
	defaultBatchSize   = 10
	systemActor        = "system"
)

type Config struct {
	// AutoCapture captures authorized payments before reconciling them.
	AutoCapture bool
	BatchSize   int
	Currency    string
}

type Deps struct {
	Borrows domainBorrow.Repository
	Orders  domainPayment.Repository
	UoW     uow.UnitOfWork
	Gateway gateway.Client
	Events  event.Publisher
	Metrics metrics.Sink
	Logger  *zap.Logger
}

// Usecase brings local payment state in line with the gateway, which is
// authoritative for captures. A local "paid" is never downgraded.
type Usecase struct {
	borrows domainBorrow.Repository
	orders  domainPayment.Repository
	uow     uow.UnitOfWork
	gw      gateway.Client
	events  event.Publisher
	metrics metrics.Sink
	cfg     Config
	now     func() time.Time
	logger  *zap.Logger
}

func NewUsecase(d Deps, cfg Config) *Usecase {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	u := &Usecase{
		borrows: d.Borrows,
		orders:  d.Orders,
		uow:     d.UoW,
		gw:      d.Gateway,
		events:  d.Events,
		metrics: d.Metrics,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  d.Logger,
	}
	if u.events == nil {
		u.events = event.Nop{}
	}
	if u.metrics == nil {
		u.metrics = metrics.Nop{}
	}
	if u.logger == nil {
		u.logger = zap.NewNop()
	}
	u.logger = u.logger.With(zap.String("component", "reconcile"))
	return u
}

// ReconcileBorrow checks every open order of the record against the gateway,
// every paid one for a capture the gateway still agrees with, and every
// abandoned one for money captured after it was replaced.
func (u *Usecase) ReconcileBorrow(ctx context.Context, borrowID string) (*Report, error) {
	rec, err := u.borrows.GetByBorrowID(ctx, borrowID)
	if err != nil {
		return nil, err
	}
	orders, err := u.orders.ListByBorrowID(ctx, borrowID)
	if err != nil {
		return nil, err
	}

	rep := &Report{BorrowID: borrowID, Corrections: []Correction{}, Discrepancies: []Discrepancy{}}
	for i := range orders {
		o := &orders[i]
		switch {
		case o.Status == domainPayment.StatusAbandoned:
			rep.Examined++
			if err := u.checkAbandoned(ctx, rec, o, rep); err != nil {
				return nil, err
			}
		case o.Status == domainPayment.StatusPaid:
			if domainBorrow.Deref(o.GatewayPaymentID) == "" {
				continue
			}
			rep.Examined++
			if err := u.checkPaid(ctx, o, rep); err != nil {
				return nil, err
			}
		default:
			rep.Examined++
			if err := u.checkOpen(ctx, o, rep); err != nil {
				return nil, err
			}
		}
	}

	for _, d := range rep.Discrepancies {
		metrics.Inc(u.metrics, metrics.ReconcileDiscrepancies)
		u.logger.Warn("reconciliation discrepancy",
			zap.String("borrow_id", d.BorrowID), zap.String("gateway_order_id", d.GatewayOrderID), zap.String("kind", string(d.Kind)))
		u.publish(ctx, event.Event{
			Type:       event.PaymentDiscrepancy,
			BorrowID:   d.BorrowID,
			OrderID:    d.GatewayOrderID,
			PaymentID:  d.PaymentID,
			Attributes: map[string]string{"kind": string(d.Kind)},
		})
	}
	return rep, nil
}

func (u *Usecase) checkOpen(ctx context.Context, o *domainPayment.Order, rep *Report) error {
	payments, err := u.fetchOrderPayments(ctx, o.GatewayOrderID)
	if errors.Is(err, gateway.ErrNotFound) {
		rep.Discrepancies = append(rep.Discrepancies, Discrepancy{
			BorrowID:       o.BorrowID,
			GatewayOrderID: o.GatewayOrderID,
			Kind:           KindNotFoundAtGateway,
			Detail:         "order not found at gateway",
		})
		return nil
	}
	if err != nil {
		return err
	}

	captured, err := u.capturedPayment(ctx, payments)
	if err != nil {
		return err
	}
	if captured != nil {
		return u.markPaid(ctx, o, captured, rep)
	}
	if allFailed(payments) && o.Status != domainPayment.StatusFailed {
		return u.markFailed(ctx, o, rep)
	}
	return nil
}

// checkAbandoned reports captures on an order that was abandoned locally. The
// order stays abandoned; refunding or applying the money is an admin decision.
func (u *Usecase) checkAbandoned(ctx context.Context, rec *domainBorrow.Record, o *domainPayment.Order, rep *Report) error {
	payments, err := u.fetchOrderPayments(ctx, o.GatewayOrderID)
	if errors.Is(err, gateway.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, p := range payments {
		if p.Status != gateway.PaymentCaptured && !p.Captured {
			continue
		}
		if rec.HasSettlement(p.ID) {
			continue
		}
		rep.Discrepancies = append(rep.Discrepancies, Discrepancy{
			BorrowID:       o.BorrowID,
			GatewayOrderID: o.GatewayOrderID,
			PaymentID:      p.ID,
			Kind:           KindCapturedOnAbandoned,
			Detail:         "gateway captured " + money.FromMinor(p.AmountMinor).StringFixed(2) + " on an abandoned order",
		})
	}
	return nil
}

func (u *Usecase) checkPaid(ctx context.Context, o *domainPayment.Order, rep *Report) error {
	paymentID := domainBorrow.Deref(o.GatewayPaymentID)
	start := time.Now()
	p, err := u.gw.FetchPayment(ctx, paymentID)
	u.metrics.Observe(metrics.GatewayCallSeconds, time.Since(start))
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		p = nil
	case err != nil:
		return fmt.Errorf("fetch payment %s: %w", paymentID, err)
	}
	if p != nil && (p.Captured || p.Status == gateway.PaymentCaptured) {
		return nil
	}
	detail := "gateway has no record of the payment"
	if p != nil {
		detail = "gateway reports payment " + string(p.Status)
	}
	rep.Discrepancies = append(rep.Discrepancies, Discrepancy{
		BorrowID:       o.BorrowID,
		GatewayOrderID: o.GatewayOrderID,
		PaymentID:      paymentID,
		Kind:           KindGatewayDisagrees,
		Detail:         detail,
	})
	return nil
}

func (u *Usecase) fetchOrderPayments(ctx context.Context, gatewayOrderID string) ([]gateway.Payment, error) {
	start := time.Now()
	defer func() { u.metrics.Observe(metrics.GatewayCallSeconds, time.Since(start)) }()
	return u.gw.FetchOrderPayments(ctx, gatewayOrderID)
}

// capturedPayment picks the captured payment, capturing an authorized one
// first when AutoCapture is on.
func (u *Usecase) capturedPayment(ctx context.Context, payments []gateway.Payment) (*gateway.Payment, error) {
	for i := range payments {
		if payments[i].Status == gateway.PaymentCaptured {
			return &payments[i], nil
		}
	}
	if !u.cfg.AutoCapture {
		return nil, nil
	}
	for i := range payments {
		p := payments[i]
		if p.Status != gateway.PaymentAuthorized {
			continue
		}
		currency := p.Currency
		if currency == "" {
			currency = u.cfg.Currency
		}
		start := time.Now()
		got, err := u.gw.Capture(ctx, p.ID, p.AmountMinor, currency)
		u.metrics.Observe(metrics.GatewayCallSeconds, time.Since(start))
		if err != nil {
			return nil, fmt.Errorf("capture payment %s: %w", p.ID, err)
		}
		u.logger.Info("authorized payment captured", zap.String("payment_id", p.ID))
		return got, nil
	}
	return nil, nil
}

func allFailed(payments []gateway.Payment) bool {
	if len(payments) == 0 {
		return false
	}
	for _, p := range payments {
		if p.Status != gateway.PaymentFailed {
			return false
		}
	}
	return true
}

// markPaid applies a gateway capture: order to paid, record to completed,
// fine reduced by the captured amount and the payment added to the user's
// history. All of it commits together.
func (u *Usecase) markPaid(ctx context.Context, o *domainPayment.Order, p *gateway.Payment, rep *Report) error {
	now := u.now()
	amount := money.FromMinor(p.AmountMinor)
	corr := Correction{GatewayOrderID: o.GatewayOrderID, PaymentID: p.ID, Captured: amount}
	var other *Discrepancy
	var userID string

	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		other = nil
		_, err := domainPayment.MutateOrder(ctx, r.Orders, o.GatewayOrderID, func(cur *domainPayment.Order) error {
			if err := cur.Transition(domainPayment.StatusPaid, now); err != nil {
				return err
			}
			cur.GatewayPaymentID = domainBorrow.StrPtr(p.ID)
			cur.FailureReason = ""
			return nil
		})
		if err != nil {
			return err
		}

		rec, err := domainBorrow.Mutate(ctx, r.Borrows, o.BorrowID, func(b *domainBorrow.Record) error {
			corr.OldFine, corr.NewFine = b.Fine, b.Fine
			paidWith := domainBorrow.Deref(b.GatewayPaymentID)
			if b.PaymentStatus == domainBorrow.PaymentCompleted && paidWith != "" && paidWith != p.ID {
				other = &Discrepancy{
					BorrowID:       b.BorrowID,
					GatewayOrderID: o.GatewayOrderID,
					PaymentID:      p.ID,
					Kind:           KindPaidByOtherPayment,
					Detail:         "record already paid by " + paidWith,
				}
				return domainBorrow.ErrNoChange
			}
			b.PaymentStatus = domainBorrow.PaymentCompleted
			b.GatewayPaymentID = domainBorrow.StrPtr(p.ID)
			if domainBorrow.Deref(b.GatewayOrderID) == o.GatewayOrderID {
				b.GatewayOrderID = nil
			}
			if !b.HasSettlement(p.ID) {
				newFine := money.Max0(b.Fine.Sub(amount))
				b.AppendAudit(domainBorrow.NewAuditEntry(now, systemActor, b.Fine, newFine,
					domainBorrow.ReasonPaymentSettlement, domainBorrow.SettlementNote(p.ID)))
			}
			corr.NewFine = b.Fine
			return nil
		})
		if err != nil {
			return err
		}
		userID = rec.UserID

		usr, err := r.Users.GetByUserID(ctx, rec.UserID)
		if err != nil {
			return err
		}
		if !usr.AppendPayment(domainUser.PaymentHistoryEntry{
			PaymentID: p.ID,
			OrderID:   o.GatewayOrderID,
			BorrowID:  rec.BorrowID,
			Amount:    amount,
			Currency:  o.Currency,
			PaidAt:    p.CapturedTime(),
			Source:    domainUser.SourceReconciliation,
		}) {
			return nil
		}
		return r.Users.Save(ctx, usr)
	})
	if err != nil {
		return fmt.Errorf("reconcile order %s: %w", o.GatewayOrderID, err)
	}

	rep.Reconciled++
	rep.Corrections = append(rep.Corrections, corr)
	if other != nil {
		rep.Discrepancies = append(rep.Discrepancies, *other)
	}
	metrics.Inc(u.metrics, metrics.ReconcileCorrected)
	u.logger.Info("order reconciled to paid",
		zap.String("borrow_id", o.BorrowID), zap.String("gateway_order_id", o.GatewayOrderID), zap.String("payment_id", p.ID))
	u.publish(ctx, event.Event{
		Type:      event.PaymentReconciled,
		BorrowID:  o.BorrowID,
		UserID:    userID,
		OrderID:   o.GatewayOrderID,
		PaymentID: p.ID,
		Amount:    amount.StringFixed(2),
	})
	return nil
}

// markFailed records that every gateway attempt on the order failed and
// releases the record for a new order.
func (u *Usecase) markFailed(ctx context.Context, o *domainPayment.Order, rep *Report) error {
	now := u.now()
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		_, err := domainPayment.MutateOrder(ctx, r.Orders, o.GatewayOrderID, func(cur *domainPayment.Order) error {
			if !domainPayment.CanTransition(cur.Status, domainPayment.StatusFailed) {
				return domainPayment.ErrNoChange
			}
			cur.FailureReason = "all gateway payments failed"
			return cur.Transition(domainPayment.StatusFailed, now)
		})
		if err != nil {
			return err
		}
		_, err = r.Borrows.ReleaseOrders(ctx, []string{o.GatewayOrderID})
		return err
	})
	if err != nil {
		return fmt.Errorf("mark order %s failed: %w", o.GatewayOrderID, err)
	}
	rep.MarkedFailed++
	return nil
}

// ReconcileAll reconciles every record with an open or abandoned order
// created in the trailing window, batchSize records at a time. One record
// failing does not stop the sweep.
func (u *Usecase) ReconcileAll(ctx context.Context, hours int) (*Summary, error) {
	start := time.Now()
	if hours <= 0 {
		hours = DefaultWindowHours
	}
	since := u.now().Add(-time.Duration(hours) * time.Hour)
	open, err := u.orders.ListOpenSince(ctx, since)
	if err != nil {
		return nil, err
	}
	abandoned, err := u.orders.ListAbandonedSince(ctx, since)
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := map[string]bool{}
	for _, o := range append(open, abandoned...) {
		if !seen[o.BorrowID] {
			seen[o.BorrowID] = true
			ids = append(ids, o.BorrowID)
		}
	}

	sum := &Summary{WindowHours: hours, Borrows: len(ids), Discrepancies: []Discrepancy{}, Failures: []Failure{}}
	reports := make([]*Report, len(ids))
	errs := make([]error, len(ids))
	for lo := 0; lo < len(ids); lo += u.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			for i := lo; i < len(ids); i++ {
				errs[i] = err
			}
			break
		}
		hi := min(lo+u.cfg.BatchSize, len(ids))
		var wg sync.WaitGroup
		for i := lo; i < hi; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				reports[i], errs[i] = u.ReconcileBorrow(ctx, ids[i])
			}(i)
		}
		wg.Wait()
	}

	for i, id := range ids {
		if errs[i] != nil {
			sum.Failures = append(sum.Failures, Failure{BorrowID: id, Error: errs[i].Error()})
			u.logger.Warn("reconcile borrow failed", zap.String("borrow_id", id), zap.Error(errs[i]))
			continue
		}
		r := reports[i]
		sum.Examined += r.Examined
		sum.Reconciled += r.Reconciled
		sum.MarkedFailed += r.MarkedFailed
		sum.Discrepancies = append(sum.Discrepancies, r.Discrepancies...)
	}
	sum.Duration = time.Since(start)
	u.logger.Info("reconciliation sweep finished",
		zap.Int("borrows", sum.Borrows), zap.Int("reconciled", sum.Reconciled),
		zap.Int("discrepancies", len(sum.Discrepancies)), zap.Int("failures", len(sum.Failures)))
	return sum, nil
}

// Stats counts orders by status and records by payment status.
func (u *Usecase) Stats(ctx context.Context) (*Stats, error) {
	byStatus, err := u.orders.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	byPayment, err := u.borrows.CountByPaymentStatus(ctx)
	if err != nil {
		return nil, err
	}
	st := &Stats{Orders: map[string]int64{}, Borrows: map[string]int64{}}
	for s, n := range byStatus {
		st.Orders[string(s)] = n
		st.TotalOrders += n
	}
	for s, n := range byPayment {
		st.Borrows[string(s)] = n
	}
	return st, nil
}

func (u *Usecase) publish(ctx context.Context, e event.Event) {
	e.OccurredAt = u.now()
	if err := u.events.Publish(ctx, e); err != nil {
		u.logger.Warn("event publish failed", zap.String("type", string(e.Type)), zap.Error(err))
	}
}
