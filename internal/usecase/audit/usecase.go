package audit

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainBorrow "library-fines/internal/domain/borrow"
	"library-fines/internal/domain/event"
	"library-fines/pkg/money"
)

var (
	ErrInvalidInput = errors.New("invalid fine adjustment")
	// ErrStaleFine means the fine changed after the caller read it.
	ErrStaleFine = errors.New("fine changed since it was read")
)

// Usecase owns manual fine changes. Every change appends an audit entry whose
// adjustment is derived from the stored fines.
type Usecase struct {
	borrows        domainBorrow.Repository
	events         event.Publisher
	currencySymbol string
	now            func() time.Time
	logger         *zap.Logger
}

func NewUsecase(borrows domainBorrow.Repository, events event.Publisher, currencySymbol string, logger *zap.Logger) *Usecase {
	if events == nil {
		events = event.Nop{}
	}
	if currencySymbol == "" {
		currencySymbol = "₹"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Usecase{
		borrows:        borrows,
		events:         events,
		currencySymbol: currencySymbol,
		now:            func() time.Time { return time.Now().UTC() },
		logger:         logger.With(zap.String("component", "audit")),
	}
}

// AdjustFine sets the fine of a record to in.NewFine.
func (u *Usecase) AdjustFine(ctx context.Context, in AdjustInput) (*domainBorrow.FineAuditEntry, error) {
	return u.apply(ctx, in.ActorID, in.BorrowID, nil, in.NewFine, in.Reason, in.Notes)
}

// RecordAdjustment logs a change from in.OldFine to in.NewFine. in.OldFine must
// still be the stored fine.
func (u *Usecase) RecordAdjustment(ctx context.Context, in RecordInput) (*domainBorrow.FineAuditEntry, error) {
	old := in.OldFine
	return u.apply(ctx, in.ActorID, in.BorrowID, &old, in.NewFine, in.Reason, in.Notes)
}

func (u *Usecase) apply(ctx context.Context, actor, borrowID string, expectOld *decimal.Decimal, newFine decimal.Decimal, reason domainBorrow.ReasonCode, notes string) (*domainBorrow.FineAuditEntry, error) {
	if actor == "" || borrowID == "" || newFine.IsNegative() || !manualReason(reason) {
		return nil, ErrInvalidInput
	}
	newFine = money.Round2(newFine)

	var entry domainBorrow.FineAuditEntry
	rec, err := domainBorrow.Mutate(ctx, u.borrows, borrowID, func(b *domainBorrow.Record) error {
		if expectOld != nil && !money.Round2(*expectOld).Equal(b.Fine) {
			return ErrStaleFine
		}
		entry = domainBorrow.NewAuditEntry(u.now(), actor, b.Fine, newFine, reason, notes)
		b.AppendAudit(entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.logger.Info("fine adjusted",
		zap.String("borrow_id", rec.BorrowID), zap.String("actor", actor),
		zap.String("reason", string(reason)), zap.String("adjustment", entry.Adjustment.StringFixed(2)))
	if err := u.events.Publish(ctx, event.Event{
		Type:     event.FineAdjusted,
		BorrowID: rec.BorrowID,
		UserID:   rec.UserID,
		Amount:   entry.NewFine.StringFixed(2),
		Attributes: map[string]string{
			"reason":   string(reason),
			"old_fine": entry.OldFine.StringFixed(2),
			"actor":    actor,
		},
		OccurredAt: entry.Timestamp,
	}); err != nil {
		u.logger.Warn("event publish failed", zap.Error(err))
	}
	return &entry, nil
}

// payment_settlement entries are written by the payment flow only.
func manualReason(r domainBorrow.ReasonCode) bool {
	return r.Valid() && r != domainBorrow.ReasonPaymentSettlement
}

// GetAuditTrail returns the trail of one record in the order it was written.
func (u *Usecase) GetAuditTrail(ctx context.Context, borrowID string) (*Trail, error) {
	rec, err := u.borrows.GetByBorrowID(ctx, borrowID)
	if err != nil {
		return nil, err
	}
	entries := make([]domainBorrow.FineAuditEntry, len(rec.FineAudit))
	copy(entries, rec.FineAudit)
	return &Trail{
		BorrowID:    rec.BorrowID,
		UserID:      rec.UserID,
		CurrentFine: rec.Fine,
		Display:     money.Format(rec.Fine, u.currencySymbol),
		Entries:     entries,
	}, nil
}

// GetUserAuditTrail merges the trails of all the user's records, newest first.
func (u *Usecase) GetUserAuditTrail(ctx context.Context, userID string) (*UserTrail, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	recs, err := u.borrows.ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	out := &UserTrail{UserID: userID, TotalFines: decimal.Zero, Entries: []UserEntry{}}
	for _, r := range recs {
		out.TotalFines = out.TotalFines.Add(r.Fine)
		for _, e := range r.FineAudit {
			out.Entries = append(out.Entries, UserEntry{BorrowID: r.BorrowID, FineAuditEntry: e})
		}
	}
	sort.SliceStable(out.Entries, func(i, j int) bool {
		return out.Entries[i].Timestamp.After(out.Entries[j].Timestamp)
	})
	if n := len(out.Entries); n > 0 {
		since := out.Entries[n-1].Timestamp
		out.Since = &since
	}
	return out, nil
}
