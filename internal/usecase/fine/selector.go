package fine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"library-fines/internal/domain/borrow"
	"library-fines/internal/domain/user"
	"library-fines/internal/infrastructure/metrics"
)

type Purpose string

const (
	PurposeLookup Purpose = "lookup"
	PurposeAdmin  Purpose = "admin"
	PurposeReport Purpose = "report"
	PurposeBulk   Purpose = "bulk"
)

const defaultBatchSize = 10

var ErrUnknownMode = errors.New("unknown calculation mode")

type Request struct {
	Input
	Purpose   Purpose
	ForceMode Mode
}

// Selector routes each calculation to the advanced or the simple strategy.
type Selector struct {
	advanced   Calculator
	simple     Calculator
	classifier *Classifier
	borrows    borrow.Repository
	cal        *Calendar
	metrics    metrics.Sink
	now        func() time.Time
	logger     *zap.Logger
}

func NewSelector(advanced, simple Calculator, cl *Classifier, borrows borrow.Repository, cal *Calendar, sink metrics.Sink, logger *zap.Logger) *Selector {
	if sink == nil {
		sink = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		advanced:   advanced,
		simple:     simple,
		classifier: cl,
		borrows:    borrows,
		cal:        cal,
		metrics:    sink,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With(zap.String("component", "fine.selector")),
	}
}

// Choose picks the strategy. Admin and report purposes always get the full
// rules; bulk runs default to the flat rate unless a mode is forced.
func (s *Selector) Choose(ctx context.Context, req Request) Mode {
	switch {
	case req.Purpose == PurposeAdmin || req.Purpose == PurposeReport:
		return ModeAdvanced
	case req.ForceMode.Valid():
		return req.ForceMode
	case req.Purpose == PurposeBulk:
		return ModeSimple
	}
	if now := s.now(); s.cal != nil && (s.cal.IsWeekend(now) || s.cal.IsLibraryClosed(now)) {
		return ModeAdvanced
	}
	if req.UserID == "" {
		return ModeSimple
	}
	if s.classifier != nil && s.classifier.Classify(ctx, req.UserID) != user.Standard {
		return ModeAdvanced
	}
	if s.borrows != nil {
		outstanding, err := s.borrows.SumOutstandingFines(ctx, req.UserID, req.BorrowID)
		if err != nil || outstanding.IsPositive() {
			return ModeAdvanced
		}
	}
	return ModeSimple
}

func (s *Selector) strategy(m Mode) Calculator {
	if m == ModeSimple {
		return s.simple
	}
	return s.advanced
}

// CalculateSmart chooses a strategy and runs it.
func (s *Selector) CalculateSmart(ctx context.Context, req Request) (Result, error) {
	if req.ForceMode != "" && !req.ForceMode.Valid() {
		return Result{}, ErrUnknownMode
	}
	mode := s.Choose(ctx, req)
	res, err := s.strategy(mode).Calculate(ctx, req.Input)
	if err != nil {
		return Result{}, err
	}
	metrics.Inc(s.metrics, metrics.FineCalculations)
	return res, nil
}

type BulkOptions struct {
	BatchSize int
	Parallel  bool
	ForceMode Mode
}

type BulkItem struct {
	BorrowID string  `json:"borrow_id"`
	Result   *Result `json:"result,omitempty"`
	Error    string  `json:"error,omitempty"`
}

type BulkSummary struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Parallel  bool          `json:"parallel"`
	Duration  time.Duration `json:"duration_ns"`
	Items     []BulkItem    `json:"items"`
}

// BulkCalculate runs every id through CalculateSmart. Sets no larger than the
// batch size run concurrently when Parallel is set; larger sets run one by
// one. A failing item never stops the rest.
func (s *Selector) BulkCalculate(ctx context.Context, borrowIDs []string, opts BulkOptions) BulkSummary {
	start := time.Now()
	size := opts.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	sum := BulkSummary{Total: len(borrowIDs), Items: make([]BulkItem, len(borrowIDs))}
	sum.Parallel = opts.Parallel && len(borrowIDs) <= size

	one := func(i int) {
		id := borrowIDs[i]
		item := BulkItem{BorrowID: id}
		res, err := s.calculateByID(ctx, id, opts.ForceMode)
		if err != nil {
			item.Error = err.Error()
		} else {
			item.Result = &res
		}
		sum.Items[i] = item
	}

	if sum.Parallel {
		var wg sync.WaitGroup
		for i := range borrowIDs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				one(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range borrowIDs {
			if ctx.Err() != nil {
				sum.Items[i] = BulkItem{BorrowID: borrowIDs[i], Error: ctx.Err().Error()}
				continue
			}
			one(i)
		}
	}

	for _, it := range sum.Items {
		if it.Error != "" {
			sum.Failed++
		} else {
			sum.Succeeded++
		}
	}
	sum.Duration = time.Since(start)
	s.logger.Info("bulk calculation finished",
		zap.Int("total", sum.Total), zap.Int("failed", sum.Failed),
		zap.Bool("parallel", sum.Parallel), zap.Duration("took", sum.Duration))
	return sum
}

func (s *Selector) calculateByID(ctx context.Context, borrowID string, force Mode) (Result, error) {
	rec, err := s.borrows.GetByBorrowID(ctx, borrowID)
	if err != nil {
		return Result{}, err
	}
	return s.CalculateSmart(ctx, Request{Input: InputFor(rec), Purpose: PurposeBulk, ForceMode: force})
}

func InputFor(rec *borrow.Record) Input {
	return Input{
		BorrowID:   rec.BorrowID,
		UserID:     rec.UserID,
		BookID:     rec.BookID,
		DueDate:    rec.DueDate,
		ReturnDate: rec.ReturnDate,
	}
}
