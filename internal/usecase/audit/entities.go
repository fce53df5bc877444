package audit

import (
	"time"

	"github.com/shopspring/decimal"

	domainBorrow "library-fines/internal/domain/borrow"
)

// AdjustInput sets a fine to NewFine. The old fine is read from the record.
type AdjustInput struct {
	ActorID  string
	BorrowID string
	NewFine  decimal.Decimal
	Reason   domainBorrow.ReasonCode
	Notes    string
}

// RecordInput is an adjustment the caller computed against OldFine; it is
// rejected when the record has moved on since.
type RecordInput struct {
	ActorID  string
	BorrowID string
	OldFine  decimal.Decimal
	NewFine  decimal.Decimal
	Reason   domainBorrow.ReasonCode
	Notes    string
}

type Trail struct {
	BorrowID    string                        `json:"borrow_id"`
	UserID      string                        `json:"user_id"`
	CurrentFine decimal.Decimal               `json:"current_fine"`
	Display     string                        `json:"display"`
	Entries     []domainBorrow.FineAuditEntry `json:"entries"`
}

type UserEntry struct {
	BorrowID string `json:"borrow_id"`
	domainBorrow.FineAuditEntry
}

type UserTrail struct {
	UserID     string          `json:"user_id"`
	TotalFines decimal.Decimal `json:"total_fines"`
	Entries    []UserEntry     `json:"entries"`
	Since      *time.Time      `json:"since,omitempty"`
}
