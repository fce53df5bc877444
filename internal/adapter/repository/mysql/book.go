package mysql

import (
	"context"

	"gorm.io/gorm"

	bookDomain "library-fines/internal/domain/book"
)

type BookRepository struct{ db *gorm.DB }

func NewBookRepository(db *gorm.DB) *BookRepository { return &BookRepository{db: db} }

func (r *BookRepository) GetByBookID(ctx context.Context, bookID string) (*bookDomain.Book, error) {
	var out bookDomain.Book
	if err := r.db.WithContext(ctx).Where("book_id = ?", bookID).First(&out).Error; err != nil {
		return nil, notFound(err, bookDomain.ErrNotFound)
	}
	return &out, nil
}
