package fine

import (
	"github.com/shopspring/decimal"

	"library-fines/internal/domain/book"
	"library-fines/internal/domain/user"
)

// Policy holds every tunable of the fine rules. A cap that is not positive
// disables that cap.
type Policy struct {
	BaseDailyRate       decimal.Decimal
	CategoryMultipliers map[book.Category]decimal.Decimal
	GraceDays           map[user.Classification]int

	FirstTimeDiscount        decimal.Decimal
	ExcellentHistoryDiscount decimal.Decimal
	FacultyDiscount          decimal.Decimal

	PerBookCap decimal.Decimal
	MonthlyCap decimal.Decimal
	TotalCap   decimal.Decimal

	ExcludeClosedDays bool

	// SimpleDailyRate overrides the flat rate; zero means the standard-category rate.
	SimpleDailyRate decimal.Decimal
	SimpleGraceDays int

	CurrencySymbol string
}

func DefaultPolicy() Policy {
	return Policy{
		BaseDailyRate: decimal.RequireFromString("0.50"),
		CategoryMultipliers: map[book.Category]decimal.Decimal{
			book.CategoryReference: decimal.RequireFromString("2.0"),
			book.CategoryPremium:   decimal.RequireFromString("1.5"),
			book.CategoryStandard:  decimal.NewFromInt(1),
			book.CategoryAcademic:  decimal.RequireFromString("0.5"),
		},
		GraceDays: map[user.Classification]int{
			user.Standard: 1,
			user.Student:  2,
			user.Faculty:  3,
			user.Admin:    5,
		},
		FirstTimeDiscount:        decimal.RequireFromString("0.50"),
		ExcellentHistoryDiscount: decimal.RequireFromString("0.25"),
		FacultyDiscount:          decimal.RequireFromString("0.30"),
		PerBookCap:               decimal.NewFromInt(50),
		MonthlyCap:               decimal.NewFromInt(100),
		TotalCap:                 decimal.NewFromInt(500),
		SimpleGraceDays:          1,
		CurrencySymbol:           "₹",
	}
}

// DailyRate is the base rate scaled by the book category; unknown categories
// use the standard multiplier.
func (p Policy) DailyRate(c book.Category) decimal.Decimal {
	m, ok := p.CategoryMultipliers[c]
	if !ok {
		m, ok = p.CategoryMultipliers[book.CategoryStandard]
		if !ok {
			m = decimal.NewFromInt(1)
		}
	}
	return p.BaseDailyRate.Mul(m)
}

// SimpleRate is the single rate of the flat path.
func (p Policy) SimpleRate() decimal.Decimal {
	if positive(p.SimpleDailyRate) {
		return p.SimpleDailyRate
	}
	return p.DailyRate(book.CategoryStandard)
}

func (p Policy) Grace(c user.Classification) int {
	if g, ok := p.GraceDays[c]; ok {
		return g
	}
	return p.GraceDays[user.Standard]
}
