package borrowmock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "library-fines/internal/domain/borrow"
)

func TestRepo_Defaults(t *testing.T) {
	ctx := context.Background()
	m := &Repo{}

	if _, err := m.GetByBorrowID(ctx, "x"); !errors.Is(err, errUnimplemented) {
		t.Fatalf("GetByBorrowID default: want errUnimplemented, got %v", err)
	}
	if _, err := m.GetByGatewayOrderID(ctx, "x"); !errors.Is(err, errUnimplemented) {
		t.Fatalf("GetByGatewayOrderID default: want errUnimplemented, got %v", err)
	}
	if err := m.Update(ctx, &domain.Record{}); err != nil {
		t.Fatalf("Update default: %v", err)
	}
	if s, err := m.SumOutstandingFines(ctx, "u", ""); err != nil || !s.IsZero() {
		t.Fatalf("SumOutstandingFines default = %s, %v", s, err)
	}
	if n, err := m.ReleaseOrders(ctx, []string{"a"}); err != nil || n != 0 {
		t.Fatalf("ReleaseOrders default = %d, %v", n, err)
	}
}

func TestRepo_ForwardsArgs(t *testing.T) {
	ctx := context.Background()
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	m := &Repo{
		SumFinesAssessedBetweenFn: func(_ context.Context, userID string, f, tt time.Time, exclude string) (decimal.Decimal, error) {
			if userID != "u1" || !f.Equal(from) || !tt.Equal(to) || exclude != "b1" {
				t.Fatalf("unexpected args: %s %v %v %s", userID, f, tt, exclude)
			}
			return decimal.NewFromInt(7), nil
		},
	}
	got, err := m.SumFinesAssessedBetween(ctx, "u1", from, to, "b1")
	if err != nil || !got.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("SumFinesAssessedBetween = %s, %v", got, err)
	}
}
