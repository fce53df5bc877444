package fine

import (
	"time"

	"github.com/shopspring/decimal"

	"library-fines/internal/domain/book"
	"library-fines/internal/domain/user"
)

type Mode string

const (
	ModeAdvanced Mode = "advanced"
	ModeSimple   Mode = "simple"
)

func (m Mode) Valid() bool { return m == ModeAdvanced || m == ModeSimple }

type Exemption string

const (
	ExemptFirstTime        Exemption = "first_time_borrower"
	ExemptExcellentHistory Exemption = "excellent_history"
	ExemptFacultyResearch  Exemption = "faculty_research"
)

type CapKind string

const (
	CapPerBook CapKind = "per_book"
	CapMonthly CapKind = "monthly"
	CapTotal   CapKind = "total"
)

// Input is everything a calculator needs. ReturnDate nil means still out.
type Input struct {
	BorrowID   string
	UserID     string
	BookID     string
	DueDate    time.Time
	ReturnDate *time.Time
}

type Breakdown struct {
	BaseFine          decimal.Decimal `json:"base_fine"`
	GraceDiscount     decimal.Decimal `json:"grace_discount"`
	HolidayDiscount   decimal.Decimal `json:"holiday_discount"`
	ExemptionDiscount decimal.Decimal `json:"exemption_discount"`
	CapReduction      decimal.Decimal `json:"cap_reduction"`
	FinalFine         decimal.Decimal `json:"final_fine"`
}

type Caps struct {
	PerBook          decimal.Decimal `json:"per_book"`
	Monthly          decimal.Decimal `json:"monthly"`
	Total            decimal.Decimal `json:"total"`
	MonthlyAssessed  decimal.Decimal `json:"monthly_assessed"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
}

type Result struct {
	BorrowID       string              `json:"borrow_id,omitempty"`
	Mode           Mode                `json:"mode"`
	Fine           decimal.Decimal     `json:"fine"`
	Display        string              `json:"display"`
	DailyRate      decimal.Decimal     `json:"daily_rate"`
	OverdueDays    int                 `json:"overdue_days"`
	EffectiveDays  int                 `json:"effective_overdue_days"`
	GraceDays      int                 `json:"grace_days"`
	Classification user.Classification `json:"classification,omitempty"`
	Category       book.Category       `json:"category,omitempty"`
	Exemptions     []Exemption         `json:"exemptions"`
	Breakdown      Breakdown           `json:"breakdown"`
	Caps           *Caps               `json:"caps,omitempty"`
	CapApplied     CapKind             `json:"cap_applied,omitempty"`
	Message        string              `json:"message,omitempty"`
	CalculatedAt   time.Time           `json:"calculated_at"`
}
