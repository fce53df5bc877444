package borrow

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var (
	ErrNotFound        = errors.New("borrow record not found")
	ErrVersionConflict = errors.New("borrow record was modified concurrently")
)

type PaymentStatus string

const (
	PaymentNone      PaymentStatus = "none"
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

// ReasonCode classifies a fine adjustment.
type ReasonCode string

const (
	ReasonWaiver            ReasonCode = "waiver"
	ReasonCorrection        ReasonCode = "correction"
	ReasonDamage            ReasonCode = "damage"
	ReasonDisputeResolution ReasonCode = "dispute_resolution"
	ReasonPaymentSettlement ReasonCode = "payment_settlement"
	ReasonOther             ReasonCode = "other"
)

func (r ReasonCode) Valid() bool {
	switch r {
	case ReasonWaiver, ReasonCorrection, ReasonDamage, ReasonDisputeResolution, ReasonPaymentSettlement, ReasonOther:
		return true
	}
	return false
}

// FineAuditEntry is immutable once appended to a record's trail.
type FineAuditEntry struct {
	Timestamp    time.Time       `json:"timestamp"`
	ActingUserID string          `json:"acting_user_id"`
	OldFine      decimal.Decimal `json:"old_fine"`
	NewFine      decimal.Decimal `json:"new_fine"`
	Adjustment   decimal.Decimal `json:"adjustment"`
	Reason       ReasonCode      `json:"reason"`
	Notes        string          `json:"notes,omitempty"`
}

// NewAuditEntry always derives Adjustment from the two fines.
func NewAuditEntry(at time.Time, actor string, oldFine, newFine decimal.Decimal, reason ReasonCode, notes string) FineAuditEntry {
	return FineAuditEntry{
		Timestamp:    at.UTC(),
		ActingUserID: actor,
		OldFine:      oldFine,
		NewFine:      newFine,
		Adjustment:   newFine.Sub(oldFine),
		Reason:       reason,
		Notes:        notes,
	}
}

// Record is one loan of one book copy to one user.
type Record struct {
	ID               uint64                              `gorm:"primaryKey;column:id" json:"-"`
	BorrowID         string                              `gorm:"size:32;uniqueIndex:ux_borrow_records_borrow_id;not null" json:"borrow_id"`
	UserID           string                              `gorm:"size:32;index:idx_borrow_records_user;not null" json:"user_id"`
	BookID           string                              `gorm:"size:32;index;not null" json:"book_id"`
	BorrowerName     string                              `gorm:"size:255" json:"borrower_name"`
	BorrowerEmail    string                              `gorm:"size:255" json:"borrower_email"`
	BorrowDate       time.Time                           `gorm:"not null" json:"borrow_date"`
	DueDate          time.Time                           `gorm:"index:idx_borrow_records_due" json:"due_date"`
	ReturnDate       *time.Time                          `json:"return_date"`
	Fine             decimal.Decimal                     `gorm:"type:decimal(12,2);not null;default:0" json:"fine"`
	FineAssessedAt   *time.Time                          `gorm:"index" json:"fine_assessed_at,omitempty"`
	FineAudit        datatypes.JSONSlice[FineAuditEntry] `json:"fine_audit"`
	PaymentStatus    PaymentStatus                       `gorm:"size:16;not null;default:'none'" json:"payment_status"`
	GatewayOrderID   *string                             `gorm:"size:64;index" json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string                             `gorm:"size:64;index" json:"gateway_payment_id,omitempty"`
	Notified         bool                                `gorm:"not null;default:false" json:"notified"`
	LastNotifiedAt   *time.Time                          `json:"last_notified_at,omitempty"`
	Version          int64                               `gorm:"not null;default:1" json:"-"`
	CreatedAt        time.Time                           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time                           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Record) TableName() string { return "borrow_records" }

func (r *Record) IsReturned() bool { return r.ReturnDate != nil }

// IsOverdue reports whether the book is still out past its due date.
func (r *Record) IsOverdue(now time.Time) bool {
	return r.ReturnDate == nil && !r.DueDate.IsZero() && r.DueDate.Before(now)
}

// AppendAudit adds an entry and moves the fine to entry.NewFine.
func (r *Record) AppendAudit(e FineAuditEntry) {
	r.FineAudit = append(r.FineAudit, e)
	r.Fine = e.NewFine
}

// HasSettlement reports whether a settlement for paymentID was already logged.
func (r *Record) HasSettlement(paymentID string) bool {
	for _, e := range r.FineAudit {
		if e.Reason == ReasonPaymentSettlement && e.Notes == SettlementNote(paymentID) {
			return true
		}
	}
	return false
}

// HasManualAdjustment reports whether an admin has set the fine by hand.
func (r *Record) HasManualAdjustment() bool {
	for _, e := range r.FineAudit {
		if e.Reason != ReasonPaymentSettlement {
			return true
		}
	}
	return false
}

func SettlementNote(paymentID string) string { return "payment " + paymentID }

func StrPtr(s string) *string { return &s }

func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
