package fine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"library-fines/internal/domain/borrow"
)

const overdueScanLimit = 1000

var ErrInvalidInput = errors.New("invalid fine calculation input")

// Usecase exposes fine calculation and the automatic assessment that stores
// the computed fine on the borrow record.
type Usecase struct {
	selector *Selector
	borrows  borrow.Repository
	now      func() time.Time
	logger   *zap.Logger
}

func NewUsecase(sel *Selector, borrows borrow.Repository, logger *zap.Logger) *Usecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Usecase{
		selector: sel,
		borrows:  borrows,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With(zap.String("component", "fine.usecase")),
	}
}

type AdhocInput struct {
	DueDate    time.Time
	ReturnDate *time.Time
	UserID     string
	BookID     string
	Mode       Mode
	Purpose    Purpose
}

// CalculateForBorrow computes (but does not store) the fine of one record.
func (u *Usecase) CalculateForBorrow(ctx context.Context, borrowID string, mode Mode, purpose Purpose) (*Result, error) {
	rec, err := u.borrows.GetByBorrowID(ctx, borrowID)
	if err != nil {
		return nil, err
	}
	res, err := u.selector.CalculateSmart(ctx, Request{Input: InputFor(rec), Purpose: purposeOr(purpose), ForceMode: mode})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (u *Usecase) Calculate(ctx context.Context, in AdhocInput) (*Result, error) {
	if in.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: due date is required", ErrInvalidInput)
	}
	req := Request{
		Input:     Input{UserID: in.UserID, BookID: in.BookID, DueDate: in.DueDate, ReturnDate: in.ReturnDate},
		Purpose:   purposeOr(in.Purpose),
		ForceMode: in.Mode,
	}
	res, err := u.selector.CalculateSmart(ctx, req)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (u *Usecase) BulkCalculate(ctx context.Context, borrowIDs []string, opts BulkOptions) BulkSummary {
	return u.selector.BulkCalculate(ctx, borrowIDs, opts)
}

type AssessOutcome struct {
	BorrowID string  `json:"borrow_id"`
	Result   *Result `json:"result,omitempty"`
	Updated  bool    `json:"updated"`
	Skipped  string  `json:"skipped,omitempty"`
}

// AssessFine stores the full-rule fine on the record. Records with a payment
// in flight or completed keep their fine, and so do records an admin adjusted.
func (u *Usecase) AssessFine(ctx context.Context, borrowID string) (*AssessOutcome, error) {
	rec, err := u.borrows.GetByBorrowID(ctx, borrowID)
	if err != nil {
		return nil, err
	}
	if reason := skipReason(rec); reason != "" {
		return &AssessOutcome{BorrowID: borrowID, Skipped: reason}, nil
	}
	res, err := u.selector.CalculateSmart(ctx, Request{Input: InputFor(rec), Purpose: PurposeReport})
	if err != nil {
		return nil, err
	}
	updated, err := u.store(ctx, rec, res)
	if err != nil {
		return nil, err
	}
	return &AssessOutcome{BorrowID: borrowID, Result: &res, Updated: updated}, nil
}

type AssessSummary struct {
	Examined int `json:"examined"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// AssessOverdue recalculates every outstanding overdue record with the full
// rules and stores changed fines. It is the body of the scheduled job.
func (u *Usecase) AssessOverdue(ctx context.Context) (AssessSummary, error) {
	recs, err := u.borrows.ListOverdue(ctx, u.now(), overdueScanLimit)
	if err != nil {
		return AssessSummary{}, err
	}
	var sum AssessSummary
	byID := make(map[string]*borrow.Record, len(recs))
	var ids []string
	for i := range recs {
		sum.Examined++
		if skipReason(&recs[i]) != "" {
			sum.Skipped++
			continue
		}
		byID[recs[i].BorrowID] = &recs[i]
		ids = append(ids, recs[i].BorrowID)
	}

	bulk := u.selector.BulkCalculate(ctx, ids, BulkOptions{BatchSize: defaultBatchSize, ForceMode: ModeAdvanced})
	for _, it := range bulk.Items {
		if it.Error != "" {
			sum.Failed++
			continue
		}
		updated, err := u.store(ctx, byID[it.BorrowID], *it.Result)
		switch {
		case err != nil:
			sum.Failed++
			u.logger.Warn("assess: store failed", zap.String("borrow_id", it.BorrowID), zap.Error(err))
		case updated:
			sum.Updated++
		}
	}
	u.logger.Info("overdue assessment finished",
		zap.Int("examined", sum.Examined), zap.Int("updated", sum.Updated),
		zap.Int("skipped", sum.Skipped), zap.Int("failed", sum.Failed))
	return sum, nil
}

// store writes res onto rec with one retry on a version conflict.
func (u *Usecase) store(ctx context.Context, rec *borrow.Record, res Result) (bool, error) {
	for attempt := 0; ; attempt++ {
		if rec.Fine.Equal(res.Fine) {
			return false, nil
		}
		at := u.now()
		rec.Fine = res.Fine
		rec.FineAssessedAt = &at
		err := u.borrows.Update(ctx, rec)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, borrow.ErrVersionConflict) || attempt > 0 {
			return false, err
		}
		fresh, gerr := u.borrows.GetByBorrowID(ctx, rec.BorrowID)
		if gerr != nil {
			return false, gerr
		}
		if skipReason(fresh) != "" {
			return false, nil
		}
		rec = fresh
	}
}

func skipReason(rec *borrow.Record) string {
	switch rec.PaymentStatus {
	case borrow.PaymentCompleted:
		return "payment completed"
	case borrow.PaymentPending:
		return "payment in flight"
	}
	if rec.HasManualAdjustment() {
		return "manually adjusted"
	}
	return ""
}

func purposeOr(p Purpose) Purpose {
	if p == "" {
		return PurposeLookup
	}
	return p
}
