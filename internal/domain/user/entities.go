package user

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var ErrNotFound = errors.New("user not found")

type Role string

const (
	RoleMember    Role = "member"
	RoleLibrarian Role = "librarian"
	RoleAdmin     Role = "admin"
)

// Classification drives fine rate and grace selection. It is derived per
// lookup, except when an explicit value is stored on the user.
type Classification string

const (
	Standard Classification = "standard"
	Student  Classification = "student"
	Faculty  Classification = "faculty"
	Admin    Classification = "admin"
)

func (c Classification) Valid() bool {
	switch c {
	case Standard, Student, Faculty, Admin:
		return true
	}
	return false
}

type PaymentSource string

const (
	SourceVerification   PaymentSource = "verification"
	SourceReconciliation PaymentSource = "reconciliation"
)

type PaymentHistoryEntry struct {
	PaymentID string          `json:"payment_id"`
	OrderID   string          `json:"order_id"`
	BorrowID  string          `json:"borrow_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	PaidAt    time.Time       `json:"paid_at"`
	Source    PaymentSource   `json:"source"`
}

type User struct {
	ID             uint64                                   `gorm:"primaryKey;column:id" json:"-"`
	UserID         string                                   `gorm:"size:32;uniqueIndex:ux_users_user_id;not null" json:"user_id"`
	Name           string                                   `gorm:"size:255" json:"name"`
	Email          string                                   `gorm:"size:255;uniqueIndex:ux_users_email" json:"email"`
	Role           Role                                     `gorm:"size:16;not null;default:'member'" json:"role"`
	Classification *Classification                          `gorm:"size:16" json:"classification,omitempty"`
	PaymentHistory datatypes.JSONSlice[PaymentHistoryEntry] `json:"payment_history"`
	CreatedAt      time.Time                                `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time                                `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// HasPayment reports whether paymentID is already in the history.
func (u *User) HasPayment(paymentID string) bool {
	for _, p := range u.PaymentHistory {
		if p.PaymentID == paymentID {
			return true
		}
	}
	return false
}

// AppendPayment adds e unless its payment id is already recorded. It returns
// false when nothing was appended.
func (u *User) AppendPayment(e PaymentHistoryEntry) bool {
	if u.HasPayment(e.PaymentID) {
		return false
	}
	u.PaymentHistory = append(u.PaymentHistory, e)
	return true
}
