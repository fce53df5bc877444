package payment

import (
	"context"
	"time"
)

type Repository interface {
	// Create fails with ErrDuplicateOrder when the gateway order id exists.
	Create(ctx context.Context, o *Order) error
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Order, error)
	ListByBorrowID(ctx context.Context, borrowID string) ([]Order, error)
	// ListOpenSince returns created/attempted/failed orders created at or after since.
	ListOpenSince(ctx context.Context, since time.Time) ([]Order, error)
	ListAbandonedSince(ctx context.Context, since time.Time) ([]Order, error)
	Update(ctx context.Context, o *Order) error

	// MarkAbandoned moves created orders older than createdBefore to abandoned
	// and returns their gateway order ids.
	MarkAbandoned(ctx context.Context, createdBefore time.Time) ([]string, error)
	// DeleteAbandoned purges abandoned orders older than createdBefore.
	DeleteAbandoned(ctx context.Context, createdBefore time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}
