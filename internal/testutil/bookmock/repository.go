package bookmock

import (
	"context"

	domain "library-fines/internal/domain/book"
)

var _ domain.Repository = (*Repo)(nil)

// Repo answers with the configured function, or ErrNotFound when unset.
type Repo struct {
	GetByBookIDFn func(ctx context.Context, bookID string) (*domain.Book, error)
}

func (m *Repo) GetByBookID(ctx context.Context, bookID string) (*domain.Book, error) {
	if m.GetByBookIDFn != nil {
		return m.GetByBookIDFn(ctx, bookID)
	}
	return nil, domain.ErrNotFound
}
