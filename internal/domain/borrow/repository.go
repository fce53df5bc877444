package borrow

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByBorrowID(ctx context.Context, borrowID string) (*Record, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Record, error)

	// ListByUser returns the user's most recent records, newest borrow first.
	ListByUser(ctx context.Context, userID string, limit int) ([]Record, error)
	// ListOverdue returns records with due_date < now and no return date.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]Record, error)

	// SumFinesAssessedBetween totals fines assessed in [from, to), excluding one record.
	SumFinesAssessedBetween(ctx context.Context, userID string, from, to time.Time, excludeBorrowID string) (decimal.Decimal, error)
	// SumOutstandingFines totals fines whose payment has not completed, excluding one record.
	SumOutstandingFines(ctx context.Context, userID, excludeBorrowID string) (decimal.Decimal, error)
	CountByPaymentStatus(ctx context.Context) (map[PaymentStatus]int64, error)

	// Update is a compare-and-swap on Version; ErrVersionConflict when stale.
	Update(ctx context.Context, r *Record) error
	// ReleaseOrders resets pending records still pointing at any of the given gateway orders.
	ReleaseOrders(ctx context.Context, gatewayOrderIDs []string) (int64, error)
}
