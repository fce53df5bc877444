package borrowmock

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	domain "library-fines/internal/domain/borrow"
)

var _ domain.Repository = (*Repo)(nil)

var errUnimplemented = errors.New("borrowmock: method not implemented")

// Repo is a function-backed mock that satisfies domain.Repository.
// Unset lookups return errUnimplemented; unset writes succeed.
type Repo struct {
	CreateFn                  func(ctx context.Context, r *domain.Record) error
	GetByBorrowIDFn           func(ctx context.Context, borrowID string) (*domain.Record, error)
	GetByGatewayOrderIDFn     func(ctx context.Context, gatewayOrderID string) (*domain.Record, error)
	ListByUserFn              func(ctx context.Context, userID string, limit int) ([]domain.Record, error)
	ListOverdueFn             func(ctx context.Context, now time.Time, limit int) ([]domain.Record, error)
	SumFinesAssessedBetweenFn func(ctx context.Context, userID string, from, to time.Time, excludeBorrowID string) (decimal.Decimal, error)
	SumOutstandingFinesFn     func(ctx context.Context, userID, excludeBorrowID string) (decimal.Decimal, error)
	CountByPaymentStatusFn    func(ctx context.Context) (map[domain.PaymentStatus]int64, error)
	UpdateFn                  func(ctx context.Context, r *domain.Record) error
	ReleaseOrdersFn           func(ctx context.Context, gatewayOrderIDs []string) (int64, error)
}

func (m *Repo) Create(ctx context.Context, r *domain.Record) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, r)
	}
	return nil
}

func (m *Repo) GetByBorrowID(ctx context.Context, borrowID string) (*domain.Record, error) {
	if m.GetByBorrowIDFn != nil {
		return m.GetByBorrowIDFn(ctx, borrowID)
	}
	return nil, errUnimplemented
}

func (m *Repo) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Record, error) {
	if m.GetByGatewayOrderIDFn != nil {
		return m.GetByGatewayOrderIDFn(ctx, gatewayOrderID)
	}
	return nil, errUnimplemented
}

func (m *Repo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Record, error) {
	if m.ListByUserFn != nil {
		return m.ListByUserFn(ctx, userID, limit)
	}
	return nil, nil
}

func (m *Repo) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Record, error) {
	if m.ListOverdueFn != nil {
		return m.ListOverdueFn(ctx, now, limit)
	}
	return nil, nil
}

func (m *Repo) SumFinesAssessedBetween(ctx context.Context, userID string, from, to time.Time, excludeBorrowID string) (decimal.Decimal, error) {
	if m.SumFinesAssessedBetweenFn != nil {
		return m.SumFinesAssessedBetweenFn(ctx, userID, from, to, excludeBorrowID)
	}
	return decimal.Zero, nil
}

func (m *Repo) SumOutstandingFines(ctx context.Context, userID, excludeBorrowID string) (decimal.Decimal, error) {
	if m.SumOutstandingFinesFn != nil {
		return m.SumOutstandingFinesFn(ctx, userID, excludeBorrowID)
	}
	return decimal.Zero, nil
}

func (m *Repo) CountByPaymentStatus(ctx context.Context) (map[domain.PaymentStatus]int64, error) {
	if m.CountByPaymentStatusFn != nil {
		return m.CountByPaymentStatusFn(ctx)
	}
	return map[domain.PaymentStatus]int64{}, nil
}

func (m *Repo) Update(ctx context.Context, r *domain.Record) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, r)
	}
	return nil
}

func (m *Repo) ReleaseOrders(ctx context.Context, gatewayOrderIDs []string) (int64, error) {
	if m.ReleaseOrdersFn != nil {
		return m.ReleaseOrdersFn(ctx, gatewayOrderIDs)
	}
	return 0, nil
}
