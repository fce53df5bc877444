package uow

import (
	"context"

	"library-fines/internal/domain/borrow"
	"library-fines/internal/domain/payment"
	"library-fines/internal/domain/user"
)

// Repos are bound to one transaction.
type Repos struct {
	Borrows borrow.Repository
	Orders  payment.Repository
	Users   user.Repository
}

type UnitOfWork interface {
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}
