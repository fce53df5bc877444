package fine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"library-fines/internal/domain/book"
	"library-fines/internal/domain/borrow"
	"library-fines/internal/domain/user"
	"library-fines/pkg/money"
)

const (
	msgNotOverdue = "not overdue"
	msgGrace      = "grace period applied"
)

// Calculator is one fine strategy. Implementations only read state.
type Calculator interface {
	Calculate(ctx context.Context, in Input) (Result, error)
}

// Advanced evaluates the full rule set: category rate, classification grace,
// closed-day exclusion, exemptions and caps.
type Advanced struct {
	policy     Policy
	cal        *Calendar
	classifier *Classifier
	books      book.Repository
	borrows    borrow.Repository
	now        func() time.Time
	logger     *zap.Logger
}

func NewAdvanced(p Policy, cal *Calendar, cl *Classifier, books book.Repository, borrows borrow.Repository, logger *zap.Logger) *Advanced {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advanced{
		policy:     p,
		cal:        cal,
		classifier: cl,
		books:      books,
		borrows:    borrows,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With(zap.String("component", "fine.advanced")),
	}
}

func (a *Advanced) Calculate(ctx context.Context, in Input) (Result, error) {
	now := a.now()
	res := newResult(ModeAdvanced, in, now)
	end := endOf(in, now)
	if in.DueDate.IsZero() || calendarDays(in.DueDate, end) <= 0 {
		res.Message = msgNotOverdue
		return finish(res, a.policy.CurrencySymbol), nil
	}

	res.Category = a.category(ctx, in.BookID)
	res.Classification = user.Standard
	if in.UserID != "" {
		res.Classification = a.classifier.Classify(ctx, in.UserID)
	}
	rate := a.policy.DailyRate(res.Category)
	res.DailyRate = rate
	res.GraceDays = a.policy.Grace(res.Classification)

	res.OverdueDays = calendarDays(in.DueDate, end)
	counted := res.OverdueDays
	if a.policy.ExcludeClosedDays {
		counted = a.cal.BusinessDaysBetween(in.DueDate, end)
	}
	res.EffectiveDays = max(0, counted-res.GraceDays)

	base := rate.Mul(decimal.NewFromInt(int64(res.EffectiveDays)))
	res.Breakdown.BaseFine = base
	res.Breakdown.HolidayDiscount = rate.Mul(decimal.NewFromInt(int64(res.OverdueDays - counted)))
	res.Breakdown.GraceDiscount = rate.Mul(decimal.NewFromInt(int64(min(counted, res.GraceDays))))
	if res.EffectiveDays == 0 {
		res.Message = msgGrace
	}

	pct := decimal.Zero
	if in.UserID != "" {
		h, err := a.classifier.BorrowingHistory(ctx, in.UserID)
		if err != nil {
			a.logger.Warn("history unavailable, skipping history exemptions", zap.String("user_id", in.UserID), zap.Error(err))
		} else {
			if h.FirstTime() {
				res.Exemptions = append(res.Exemptions, ExemptFirstTime)
				pct = pct.Add(a.policy.FirstTimeDiscount)
			}
			if h.Excellent() {
				res.Exemptions = append(res.Exemptions, ExemptExcellentHistory)
				pct = pct.Add(a.policy.ExcellentHistoryDiscount)
			}
		}
	}
	if res.Classification == user.Faculty {
		res.Exemptions = append(res.Exemptions, ExemptFacultyResearch)
		pct = pct.Add(a.policy.FacultyDiscount)
	}
	// discounts are all taken off the base and summed, never compounded
	res.Breakdown.ExemptionDiscount = money.Round2(base.Mul(pct))
	fine := money.Max0(money.Round2(base.Sub(res.Breakdown.ExemptionDiscount)))
	beforeCaps := fine

	caps := &Caps{PerBook: a.policy.PerBookCap, Monthly: a.policy.MonthlyCap, Total: a.policy.TotalCap}
	res.Caps = caps
	if positive(caps.PerBook) && fine.GreaterThan(caps.PerBook) {
		fine, res.CapApplied = caps.PerBook, CapPerBook
	}
	if in.UserID != "" {
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		used, err := a.borrows.SumFinesAssessedBetween(ctx, in.UserID, monthStart, monthStart.AddDate(0, 1, 0), in.BorrowID)
		if err != nil {
			return Result{}, err
		}
		caps.MonthlyAssessed = used
		if positive(caps.Monthly) {
			if room := money.Max0(caps.Monthly.Sub(used)); fine.GreaterThan(room) {
				fine, res.CapApplied = room, CapMonthly
			}
		}

		outstanding, err := a.borrows.SumOutstandingFines(ctx, in.UserID, in.BorrowID)
		if err != nil {
			return Result{}, err
		}
		caps.TotalOutstanding = outstanding
		if positive(caps.Total) {
			if room := money.Max0(caps.Total.Sub(outstanding)); fine.GreaterThan(room) {
				fine, res.CapApplied = room, CapTotal
			}
		}
	}
	res.Breakdown.CapReduction = beforeCaps.Sub(fine)
	res.Fine = fine
	return finish(res, a.policy.CurrencySymbol), nil
}

func (a *Advanced) category(ctx context.Context, bookID string) book.Category {
	if a.books == nil || bookID == "" {
		return book.CategoryStandard
	}
	b, err := a.books.GetByBookID(ctx, bookID)
	if err != nil {
		a.logger.Debug("book lookup failed, using standard category", zap.String("book_id", bookID), zap.Error(err))
		return book.CategoryStandard
	}
	return b.Category
}

// Simple is the flat-rate path: one rate, one grace period, no exemptions
// and no caps.
type Simple struct {
	policy Policy
	now    func() time.Time
}

func NewSimple(p Policy) *Simple {
	return &Simple{policy: p, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Simple) Calculate(_ context.Context, in Input) (Result, error) {
	now := s.now()
	res := newResult(ModeSimple, in, now)
	end := endOf(in, now)
	days := calendarDays(in.DueDate, end)
	if in.DueDate.IsZero() || days <= 0 {
		res.Message = msgNotOverdue
		return finish(res, s.policy.CurrencySymbol), nil
	}

	rate := s.policy.SimpleRate()
	res.DailyRate = rate
	res.GraceDays = s.policy.SimpleGraceDays
	res.OverdueDays = days
	if days <= res.GraceDays {
		res.Breakdown.GraceDiscount = rate.Mul(decimal.NewFromInt(int64(days)))
		res.Message = msgGrace
		return finish(res, s.policy.CurrencySymbol), nil
	}
	res.EffectiveDays = days - res.GraceDays
	res.Breakdown.GraceDiscount = rate.Mul(decimal.NewFromInt(int64(res.GraceDays)))
	res.Breakdown.BaseFine = rate.Mul(decimal.NewFromInt(int64(res.EffectiveDays)))
	res.Fine = money.Round2(res.Breakdown.BaseFine)
	return finish(res, s.policy.CurrencySymbol), nil
}

func newResult(mode Mode, in Input, now time.Time) Result {
	return Result{
		BorrowID:     in.BorrowID,
		Mode:         mode,
		Fine:         decimal.Zero,
		DailyRate:    decimal.Zero,
		Exemptions:   []Exemption{},
		CalculatedAt: now,
		Breakdown: Breakdown{
			BaseFine:          decimal.Zero,
			GraceDiscount:     decimal.Zero,
			HolidayDiscount:   decimal.Zero,
			ExemptionDiscount: decimal.Zero,
			CapReduction:      decimal.Zero,
		},
	}
}

func finish(res Result, symbol string) Result {
	res.Fine = money.Round2(res.Fine)
	res.Breakdown.FinalFine = res.Fine
	res.Display = money.Format(res.Fine, symbol)
	return res
}

func endOf(in Input, now time.Time) time.Time {
	if in.ReturnDate != nil {
		return *in.ReturnDate
	}
	return now
}

func positive(d decimal.Decimal) bool { return d.IsPositive() }
