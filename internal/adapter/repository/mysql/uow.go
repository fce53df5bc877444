package mysql

import (
	"context"

	"gorm.io/gorm"

	"library-fines/internal/domain/uow"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(uow.Repos{
			Borrows: &BorrowRepository{db: tx},
			Orders:  &PaymentOrderRepository{db: tx},
			Users:   &UserRepository{db: tx},
		})
	})
}
