package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	paymentDomain "library-fines/internal/domain/payment"
)

type PaymentOrderRepository struct{ db *gorm.DB }

func NewPaymentOrderRepository(db *gorm.DB) *PaymentOrderRepository {
	return &PaymentOrderRepository{db: db}
}

// Create relies on the unique gateway_order_id index; a clash is never an overwrite.
func (r *PaymentOrderRepository) Create(ctx context.Context, o *paymentDomain.Order) error {
	if o.Version == 0 {
		o.Version = 1
	}
	if err := r.db.WithContext(ctx).Create(o).Error; err != nil {
		if isDuplicate(err) {
			return paymentDomain.ErrDuplicateOrder
		}
		return err
	}
	return nil
}

func (r *PaymentOrderRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*paymentDomain.Order, error) {
	var out paymentDomain.Order
	res := r.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID).First(&out)
	if res.Error != nil {
		return nil, notFound(res.Error, paymentDomain.ErrNotFound)
	}
	return &out, nil
}

func (r *PaymentOrderRepository) ListByBorrowID(ctx context.Context, borrowID string) ([]paymentDomain.Order, error) {
	var out []paymentDomain.Order
	err := r.db.WithContext(ctx).
		Where("borrow_id = ?", borrowID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *PaymentOrderRepository) ListOpenSince(ctx context.Context, since time.Time) ([]paymentDomain.Order, error) {
	var out []paymentDomain.Order
	err := r.db.WithContext(ctx).
		Where("status IN ? AND created_at >= ?", []paymentDomain.Status{
			paymentDomain.StatusCreated, paymentDomain.StatusAttempted, paymentDomain.StatusFailed,
		}, since).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *PaymentOrderRepository) ListAbandonedSince(ctx context.Context, since time.Time) ([]paymentDomain.Order, error) {
	var out []paymentDomain.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at >= ?", paymentDomain.StatusAbandoned, since).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *PaymentOrderRepository) Update(ctx context.Context, o *paymentDomain.Order) error {
	if o.ID == 0 {
		return errors.New("payment order has no primary key")
	}
	prev := o.Version
	o.Version = prev + 1
	res := r.db.WithContext(ctx).Model(o).
		Where("version = ?", prev).
		Select("status", "gateway_payment_id", "failure_reason", "version", "updated_at").
		Updates(o)
	if res.Error != nil {
		o.Version = prev
		return res.Error
	}
	if res.RowsAffected == 0 {
		o.Version = prev
		return paymentDomain.ErrVersionConflict
	}
	return nil
}

func (r *PaymentOrderRepository) MarkAbandoned(ctx context.Context, createdBefore time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&paymentDomain.Order{}).
			Where("status = ? AND created_at < ?", paymentDomain.StatusCreated, createdBefore).
			Pluck("gateway_order_id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&paymentDomain.Order{}).
			Where("gateway_order_id IN ? AND status = ?", ids, paymentDomain.StatusCreated).
			Updates(map[string]any{
				"status":     paymentDomain.StatusAbandoned,
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now().UTC(),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PaymentOrderRepository) DeleteAbandoned(ctx context.Context, createdBefore time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", paymentDomain.StatusAbandoned, createdBefore).
		Delete(&paymentDomain.Order{})
	return res.RowsAffected, res.Error
}

func (r *PaymentOrderRepository) CountByStatus(ctx context.Context) (map[paymentDomain.Status]int64, error) {
	var rows []struct {
		Status paymentDomain.Status
		N      int64
	}
	err := r.db.WithContext(ctx).Model(&paymentDomain.Order{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[paymentDomain.Status]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}
