package ordermock

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "library-fines/internal/domain/payment"
)

func TestRepo_Defaults(t *testing.T) {
	ctx := context.Background()
	m := &Repo{}
	if _, err := m.GetByGatewayOrderID(ctx, "o"); !errors.Is(err, errUnimplemented) {
		t.Fatalf("want errUnimplemented, got %v", err)
	}
	if err := m.Create(ctx, &domain.Order{}); err != nil {
		t.Fatalf("Create default: %v", err)
	}
	if ids, err := m.MarkAbandoned(ctx, time.Now()); err != nil || ids != nil {
		t.Fatalf("MarkAbandoned default = %v, %v", ids, err)
	}
}

func TestRepo_CreateForwards(t *testing.T) {
	var got *domain.Order
	m := &Repo{CreateFn: func(_ context.Context, o *domain.Order) error {
		got = o
		return domain.ErrDuplicateOrder
	}}
	o := &domain.Order{GatewayOrderID: "order_1"}
	if err := m.Create(context.Background(), o); !errors.Is(err, domain.ErrDuplicateOrder) {
		t.Fatalf("want ErrDuplicateOrder, got %v", err)
	}
	if got != o {
		t.Fatalf("order not forwarded")
	}
}
