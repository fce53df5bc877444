package fine

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"library-fines/internal/domain/borrow"
	"library-fines/internal/domain/user"
)

const historyWindow = 50

var defaultAcademicSuffixes = []string{".edu", ".ac.in", ".ac.uk", ".edu.in"}

// History summarises a user's most recent borrow records.
type History struct {
	TotalBorrows     int             `json:"total_borrows"`
	OnTimeReturns    int             `json:"on_time_returns"`
	LateReturns      int             `json:"late_returns"`
	CurrentlyOverdue int             `json:"currently_overdue"`
	TotalFines       decimal.Decimal `json:"total_fines"`
	AverageDelayDays float64         `json:"average_delay_days"`
	ReliabilityScore float64         `json:"reliability_score"`
}

func (h History) Excellent() bool { return h.ReliabilityScore >= 90 && h.TotalBorrows >= 5 }

func (h History) FirstTime() bool { return h.TotalBorrows <= 1 }

// Classifier derives fine-policy classification and borrowing statistics.
// Lookups never fail the caller: a missing user is Standard.
type Classifier struct {
	users    user.Repository
	borrows  borrow.Repository
	suffixes []string
	now      func() time.Time
	logger   *zap.Logger
}

func NewClassifier(users user.Repository, borrows borrow.Repository, academicDomains []string, logger *zap.Logger) *Classifier {
	suffixes := academicDomains
	if len(suffixes) == 0 {
		suffixes = defaultAcademicSuffixes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		users:    users,
		borrows:  borrows,
		suffixes: suffixes,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With(zap.String("component", "fine.classifier")),
	}
}

func (c *Classifier) Classify(ctx context.Context, userID string) user.Classification {
	u, err := c.users.GetByUserID(ctx, userID)
	if err != nil {
		c.logger.Debug("classify: user lookup failed, using standard", zap.String("user_id", userID), zap.Error(err))
		return user.Standard
	}
	return c.ClassifyUser(u)
}

func (c *Classifier) ClassifyUser(u *user.User) user.Classification {
	if u.Classification != nil && u.Classification.Valid() {
		return *u.Classification
	}
	if u.Role == user.RoleAdmin {
		return user.Admin
	}
	if c.isAcademic(u.Email) {
		return user.Student
	}
	return user.Standard
}

func (c *Classifier) isAcademic(email string) bool {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, s := range c.suffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if domain == strings.TrimPrefix(s, ".") || strings.HasSuffix(domain, "."+strings.TrimPrefix(s, ".")) {
			return true
		}
	}
	return false
}

func (c *Classifier) BorrowingHistory(ctx context.Context, userID string) (History, error) {
	recs, err := c.borrows.ListByUser(ctx, userID, historyWindow)
	if err != nil {
		return History{}, err
	}
	return summarize(recs, c.now()), nil
}

func (c *Classifier) HasExcellentHistory(ctx context.Context, userID string) (bool, error) {
	h, err := c.BorrowingHistory(ctx, userID)
	return h.Excellent(), err
}

func (c *Classifier) IsFirstTimeBorrower(ctx context.Context, userID string) (bool, error) {
	h, err := c.BorrowingHistory(ctx, userID)
	return h.FirstTime(), err
}

func summarize(recs []borrow.Record, now time.Time) History {
	h := History{TotalBorrows: len(recs), TotalFines: decimal.Zero}
	returned, delaySum := 0, 0
	for i := range recs {
		r := &recs[i]
		h.TotalFines = h.TotalFines.Add(r.Fine)
		switch {
		case r.ReturnDate != nil:
			returned++
			late := calendarDays(r.DueDate, *r.ReturnDate)
			if late > 0 {
				h.LateReturns++
				delaySum += late
			} else {
				h.OnTimeReturns++
			}
		case r.IsOverdue(now):
			h.CurrentlyOverdue++
		}
	}
	if returned > 0 {
		h.AverageDelayDays = float64(delaySum) / float64(returned)
	}
	h.ReliabilityScore = 100
	if h.TotalBorrows > 0 {
		h.ReliabilityScore = float64(h.OnTimeReturns) / float64(h.TotalBorrows) * 100
	}
	return h
}
