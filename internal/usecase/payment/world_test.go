package payment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domainBorrow "library-fines/internal/domain/borrow"
	"library-fines/internal/domain/gateway"
	domainPayment "library-fines/internal/domain/payment"
	domainUser "library-fines/internal/domain/user"
	"library-fines/internal/infrastructure/metrics"
	"library-fines/internal/testutil/eventmock"
	"library-fines/internal/testutil/gatewaymock"
	"library-fines/internal/testutil/memstore"
)

const testSecret = "test_secret"

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type world struct {
	*memstore.Store
	gw      *gatewaymock.Client
	events  *eventmock.Recorder
	metrics *metrics.Memory
	gwSeq   int
}

func newWorld() *world {
	w := &world{
		Store:   memstore.New(),
		events:  &eventmock.Recorder{},
		metrics: metrics.NewMemory(),
	}
	w.gw = &gatewaymock.Client{
		CreateOrderFn: func(_ context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
			w.gwSeq++
			return &gateway.Order{ID: fmt.Sprintf("order_%d", w.gwSeq), AmountMinor: req.AmountMinor, Currency: req.Currency, Receipt: req.Receipt}, nil
		},
	}
	w.PutUser(domainUser.User{UserID: "u1", Email: "u1@example.com", Role: domainUser.RoleMember})
	return w
}

func (w *world) borrow(t *testing.T, id string) domainBorrow.Record {
	t.Helper()
	r, ok := w.Borrow(id)
	if !ok {
		t.Fatalf("borrow %s missing", id)
	}
	return r
}

func (w *world) order(t *testing.T, gwID string) domainPayment.Order {
	t.Helper()
	o, ok := w.Order(gwID)
	if !ok {
		t.Fatalf("order %s missing", gwID)
	}
	return o
}

func (w *world) history(userID string) []domainUser.PaymentHistoryEntry {
	u, _ := w.User(userID)
	return u.PaymentHistory
}

func (w *world) usecase() *Usecase {
	r := w.Repos()
	uc := NewUsecase(Deps{
		Borrows: r.Borrows,
		Orders:  r.Orders,
		Users:   r.Users,
		UoW:     w.UoW(),
		Gateway: w.gw,
		Events:  w.events,
		Metrics: w.metrics,
	}, Config{KeyID: "key_test", KeySecret: testSecret})
	uc.now = func() time.Time { return testNow }
	return uc
}
