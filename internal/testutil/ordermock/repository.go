package ordermock

import (
	"context"
	"errors"
	"time"

	domain "library-fines/internal/domain/payment"
)

var _ domain.Repository = (*Repo)(nil)

var errUnimplemented = errors.New("ordermock: method not implemented")

// Repo is a function-backed mock that satisfies payment.Repository.
type Repo struct {
	CreateFn              func(ctx context.Context, o *domain.Order) error
	GetByGatewayOrderIDFn func(ctx context.Context, gatewayOrderID string) (*domain.Order, error)
	ListByBorrowIDFn      func(ctx context.Context, borrowID string) ([]domain.Order, error)
	ListOpenSinceFn       func(ctx context.Context, since time.Time) ([]domain.Order, error)
	ListAbandonedSinceFn  func(ctx context.Context, since time.Time) ([]domain.Order, error)
	UpdateFn              func(ctx context.Context, o *domain.Order) error
	MarkAbandonedFn       func(ctx context.Context, createdBefore time.Time) ([]string, error)
	DeleteAbandonedFn     func(ctx context.Context, createdBefore time.Time) (int64, error)
	CountByStatusFn       func(ctx context.Context) (map[domain.Status]int64, error)
}

func (m *Repo) Create(ctx context.Context, o *domain.Order) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, o)
	}
	return nil
}

func (m *Repo) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	if m.GetByGatewayOrderIDFn != nil {
		return m.GetByGatewayOrderIDFn(ctx, gatewayOrderID)
	}
	return nil, errUnimplemented
}

func (m *Repo) ListByBorrowID(ctx context.Context, borrowID string) ([]domain.Order, error) {
	if m.ListByBorrowIDFn != nil {
		return m.ListByBorrowIDFn(ctx, borrowID)
	}
	return nil, nil
}

func (m *Repo) ListOpenSince(ctx context.Context, since time.Time) ([]domain.Order, error) {
	if m.ListOpenSinceFn != nil {
		return m.ListOpenSinceFn(ctx, since)
	}
	return nil, nil
}

func (m *Repo) ListAbandonedSince(ctx context.Context, since time.Time) ([]domain.Order, error) {
	if m.ListAbandonedSinceFn != nil {
		return m.ListAbandonedSinceFn(ctx, since)
	}
	return nil, nil
}

func (m *Repo) Update(ctx context.Context, o *domain.Order) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, o)
	}
	return nil
}

func (m *Repo) MarkAbandoned(ctx context.Context, createdBefore time.Time) ([]string, error) {
	if m.MarkAbandonedFn != nil {
		return m.MarkAbandonedFn(ctx, createdBefore)
	}
	return nil, nil
}

func (m *Repo) DeleteAbandoned(ctx context.Context, createdBefore time.Time) (int64, error) {
	if m.DeleteAbandonedFn != nil {
		return m.DeleteAbandonedFn(ctx, createdBefore)
	}
	return 0, nil
}

func (m *Repo) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	if m.CountByStatusFn != nil {
		return m.CountByStatusFn(ctx)
	}
	return map[domain.Status]int64{}, nil
}
