package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domainBorrow "library-fines/internal/domain/borrow"
	domainPayment "library-fines/internal/domain/payment"
	"library-fines/internal/infrastructure/metrics"
	"library-fines/internal/testutil/eventmock"
	"library-fines/internal/testutil/memstore"
	"library-fines/internal/testutil/ordermock"
	"library-fines/internal/testutil/uowmock"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func putOrder(s *memstore.Store, gwID, borrowID string, st domainPayment.Status, age time.Duration) {
	s.PutOrder(domainPayment.Order{GatewayOrderID: gwID, BorrowID: borrowID, UserID: "u1", Amount: decimal.NewFromInt(5), Status: st, CreatedAt: now.Add(-age)})
}

func TestSweep(t *testing.T) {
	s := memstore.New()
	putOrder(s, "stale", "b1", domainPayment.StatusCreated, 90*time.Minute)
	putOrder(s, "fresh", "b2", domainPayment.StatusCreated, 30*time.Minute)
	putOrder(s, "attempted", "b3", domainPayment.StatusAttempted, 3*time.Hour)
	putOrder(s, "expired", "b4", domainPayment.StatusAbandoned, 25*time.Hour)
	putOrder(s, "recent_abandoned", "b5", domainPayment.StatusAbandoned, 2*time.Hour)
	putOrder(s, "paid", "b6", domainPayment.StatusPaid, 48*time.Hour)
	s.PutBorrow(domainBorrow.Record{BorrowID: "b1", UserID: "u1", PaymentStatus: domainBorrow.PaymentPending, GatewayOrderID: domainBorrow.StrPtr("stale")})

	ev := &eventmock.Recorder{}
	sink := metrics.NewMemory()
	uc := NewUsecase(s.OrderRepo(), s.UoW(), ev, sink, Config{}, nil)

	res, err := uc.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Abandoned != 1 || res.Released != 1 || res.Purged != 1 {
		t.Fatalf("result = %+v", res)
	}
	want := map[string]domainPayment.Status{
		"stale":            domainPayment.StatusAbandoned,
		"fresh":            domainPayment.StatusCreated,
		"attempted":        domainPayment.StatusAttempted,
		"recent_abandoned": domainPayment.StatusAbandoned,
		"paid":             domainPayment.StatusPaid,
	}
	for id, st := range want {
		o, ok := s.Order(id)
		if !ok || o.Status != st {
			t.Fatalf("order %s = %+v (found %v), want %s", id, o, ok, st)
		}
	}
	if _, ok := s.Order("expired"); ok {
		t.Fatalf("expired abandoned order should be purged")
	}
	if b, _ := s.Borrow("b1"); b.PaymentStatus != domainBorrow.PaymentNone || b.GatewayOrderID != nil {
		t.Fatalf("borrow not released: %+v", b)
	}
	if sink.Counter(metrics.CleanupAbandoned) != 1 || sink.Counter(metrics.CleanupPurged) != 1 {
		t.Fatalf("counters = %v", sink.Snapshot())
	}
	if len(ev.Events()) != 1 || ev.Events()[0].OrderID != "stale" {
		t.Fatalf("events = %+v", ev.Events())
	}
}

func TestSweep_TwiceIsIdempotent(t *testing.T) {
	s := memstore.New()
	putOrder(s, "stale", "b1", domainPayment.StatusCreated, 2*time.Hour)
	putOrder(s, "expired", "b2", domainPayment.StatusAbandoned, 30*time.Hour)
	putOrder(s, "fresh", "b3", domainPayment.StatusCreated, time.Minute)
	uc := NewUsecase(s.OrderRepo(), s.UoW(), nil, nil, Config{}, nil)

	if _, err := uc.Sweep(context.Background(), now); err != nil {
		t.Fatalf("first Sweep: %v", err)
	}
	res, err := uc.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("second Sweep: %v", err)
	}
	if res.Abandoned != 0 || res.Released != 0 || res.Purged != 0 {
		t.Fatalf("second sweep did work: %+v", res)
	}
	if o, _ := s.Order("fresh"); o.Status != domainPayment.StatusCreated {
		t.Fatalf("fresh order touched")
	}

	st, err := uc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Sweeps != 2 || st.LastSweep == nil || st.Orders["abandoned"] != 1 || st.Orders["created"] != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestSweep_ErrorIsRecorded(t *testing.T) {
	boom := errors.New("db down")
	orders := &ordermock.Repo{
		MarkAbandonedFn: func(context.Context, time.Time) ([]string, error) { return nil, boom },
	}
	s := memstore.New()
	repos := s.Repos()
	repos.Orders = orders
	uc := NewUsecase(orders, uowmock.Passthrough(repos), nil, nil, Config{AbandonAfter: time.Minute}, nil)

	if _, err := uc.Sweep(context.Background(), now); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	st, err := uc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.LastError == "" || st.LastSweep != nil || st.Sweeps != 1 {
		t.Fatalf("stats = %+v", st)
	}
}
