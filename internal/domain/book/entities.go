package book

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("book not found")

type Category string

const (
	CategoryReference Category = "reference"
	CategoryPremium   Category = "premium"
	CategoryStandard  Category = "standard"
	CategoryAcademic  Category = "academic"
)

type Book struct {
	ID        uint64    `gorm:"primaryKey;column:id" json:"-"`
	BookID    string    `gorm:"size:32;uniqueIndex:ux_books_book_id;not null" json:"book_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Category  Category  `gorm:"size:16;not null;default:'standard'" json:"category"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Book) TableName() string { return "books" }

type Repository interface {
	GetByBookID(ctx context.Context, bookID string) (*Book, error)
}
