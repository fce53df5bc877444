package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	borrowDomain "library-fines/internal/domain/borrow"
)

type BorrowRepository struct{ db *gorm.DB }

func NewBorrowRepository(db *gorm.DB) *BorrowRepository { return &BorrowRepository{db: db} }

func (r *BorrowRepository) Create(ctx context.Context, rec *borrowDomain.Record) error {
	if rec.Version == 0 {
		rec.Version = 1
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *BorrowRepository) GetByBorrowID(ctx context.Context, borrowID string) (*borrowDomain.Record, error) {
	var out borrowDomain.Record
	res := r.db.WithContext(ctx).Where("borrow_id = ?", borrowID).First(&out)
	if res.Error != nil {
		return nil, notFound(res.Error, borrowDomain.ErrNotFound)
	}
	return &out, nil
}

func (r *BorrowRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*borrowDomain.Record, error) {
	var out borrowDomain.Record
	res := r.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID).First(&out)
	if res.Error != nil {
		return nil, notFound(res.Error, borrowDomain.ErrNotFound)
	}
	return &out, nil
}

func (r *BorrowRepository) ListByUser(ctx context.Context, userID string, limit int) ([]borrowDomain.Record, error) {
	var out []borrowDomain.Record
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("borrow_date DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return out, q.Find(&out).Error
}

func (r *BorrowRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]borrowDomain.Record, error) {
	var out []borrowDomain.Record
	q := r.db.WithContext(ctx).
		Where("return_date IS NULL AND due_date < ?", now).
		Order("due_date ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return out, q.Find(&out).Error
}

func (r *BorrowRepository) SumFinesAssessedBetween(ctx context.Context, userID string, from, to time.Time, excludeBorrowID string) (decimal.Decimal, error) {
	q := r.db.WithContext(ctx).Model(&borrowDomain.Record{}).
		Select("COALESCE(SUM(fine), 0)").
		Where("user_id = ? AND fine_assessed_at >= ? AND fine_assessed_at < ? AND borrow_id <> ?", userID, from, to, excludeBorrowID)
	return sumRow(q)
}

func (r *BorrowRepository) SumOutstandingFines(ctx context.Context, userID, excludeBorrowID string) (decimal.Decimal, error) {
	q := r.db.WithContext(ctx).Model(&borrowDomain.Record{}).
		Select("COALESCE(SUM(fine), 0)").
		Where("user_id = ? AND payment_status <> ? AND borrow_id <> ?", userID, borrowDomain.PaymentCompleted, excludeBorrowID)
	return sumRow(q)
}

func sumRow(q *gorm.DB) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := q.Row().Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total.Round(2), nil
}

func (r *BorrowRepository) CountByPaymentStatus(ctx context.Context) (map[borrowDomain.PaymentStatus]int64, error) {
	var rows []struct {
		PaymentStatus borrowDomain.PaymentStatus
		N             int64
	}
	err := r.db.WithContext(ctx).Model(&borrowDomain.Record{}).
		Select("payment_status, COUNT(*) AS n").
		Group("payment_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[borrowDomain.PaymentStatus]int64, len(rows))
	for _, row := range rows {
		out[row.PaymentStatus] = row.N
	}
	return out, nil
}

var borrowMutableColumns = []string{
	"fine", "fine_assessed_at", "fine_audit", "payment_status",
	"gateway_order_id", "gateway_payment_id", "return_date",
	"notified", "last_notified_at", "version", "updated_at",
}

// Update writes the mutable columns only if the stored version still matches.
func (r *BorrowRepository) Update(ctx context.Context, rec *borrowDomain.Record) error {
	if rec.ID == 0 {
		return errors.New("borrow record has no primary key")
	}
	prev := rec.Version
	rec.Version = prev + 1
	res := r.db.WithContext(ctx).Model(rec).
		Where("version = ?", prev).
		Select(borrowMutableColumns).
		Updates(rec)
	if res.Error != nil {
		rec.Version = prev
		return res.Error
	}
	if res.RowsAffected == 0 {
		rec.Version = prev
		return borrowDomain.ErrVersionConflict
	}
	return nil
}

func (r *BorrowRepository) ReleaseOrders(ctx context.Context, gatewayOrderIDs []string) (int64, error) {
	if len(gatewayOrderIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&borrowDomain.Record{}).
		Where("gateway_order_id IN ? AND payment_status = ?", gatewayOrderIDs, borrowDomain.PaymentPending).
		Updates(map[string]any{
			"gateway_order_id": nil,
			"payment_status":   borrowDomain.PaymentNone,
			"version":          gorm.Expr("version + 1"),
		})
	return res.RowsAffected, res.Error
}
