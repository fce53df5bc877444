package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"library-fines/internal/domain/event"
	domainPayment "library-fines/internal/domain/payment"
	"library-fines/internal/domain/uow"
	"library-fines/internal/infrastructure/metrics"
)

const (
	DefaultAbandonAfter = time.Hour
	DefaultPurgeAfter   = 24 * time.Hour
)

type Config struct {
	// AbandonAfter is how long a created order may sit untouched.
	AbandonAfter time.Duration
	// PurgeAfter is the retention of abandoned orders, measured from creation.
	PurgeAfter time.Duration
}

type Result struct {
	At        time.Time `json:"at"`
	Abandoned int       `json:"abandoned"`
	Released  int64     `json:"released"`
	Purged    int64     `json:"purged"`
}

type Stats struct {
	Orders    map[string]int64 `json:"orders"`
	Sweeps    int64            `json:"sweeps"`
	LastSweep *Result          `json:"last_sweep,omitempty"`
	LastError string           `json:"last_error,omitempty"`
}

// Usecase expires stale payment orders. Sweep is safe to run repeatedly and
// concurrently with itself.
type Usecase struct {
	orders  domainPayment.Repository
	uow     uow.UnitOfWork
	events  event.Publisher
	metrics metrics.Sink
	cfg     Config
	logger  *zap.Logger

	mu        sync.Mutex
	sweeps    int64
	last      *Result
	lastError string
}

func NewUsecase(orders domainPayment.Repository, tx uow.UnitOfWork, events event.Publisher, sink metrics.Sink, cfg Config, logger *zap.Logger) *Usecase {
	if cfg.AbandonAfter <= 0 {
		cfg.AbandonAfter = DefaultAbandonAfter
	}
	if cfg.PurgeAfter <= 0 {
		cfg.PurgeAfter = DefaultPurgeAfter
	}
	if events == nil {
		events = event.Nop{}
	}
	if sink == nil {
		sink = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Usecase{
		orders:  orders,
		uow:     tx,
		events:  events,
		metrics: sink,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "cleanup")),
	}
}

// Sweep abandons created orders older than AbandonAfter, releases the borrow
// records still waiting on them, then deletes abandoned orders older than
// PurgeAfter.
func (u *Usecase) Sweep(ctx context.Context, now time.Time) (*Result, error) {
	res, err := u.sweep(ctx, now.UTC())
	u.mu.Lock()
	u.sweeps++
	if err != nil {
		u.lastError = err.Error()
	} else {
		u.last, u.lastError = res, ""
	}
	u.mu.Unlock()
	return res, err
}

func (u *Usecase) sweep(ctx context.Context, now time.Time) (*Result, error) {
	res := &Result{At: now}
	var abandoned []string
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		ids, err := r.Orders.MarkAbandoned(ctx, now.Add(-u.cfg.AbandonAfter))
		if err != nil {
			return err
		}
		abandoned = ids
		if len(ids) == 0 {
			return nil
		}
		res.Released, err = r.Borrows.ReleaseOrders(ctx, ids)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("abandon stale orders: %w", err)
	}
	res.Abandoned = len(abandoned)

	res.Purged, err = u.orders.DeleteAbandoned(ctx, now.Add(-u.cfg.PurgeAfter))
	if err != nil {
		return nil, fmt.Errorf("purge abandoned orders: %w", err)
	}

	u.metrics.Add(metrics.CleanupAbandoned, int64(res.Abandoned))
	u.metrics.Add(metrics.CleanupPurged, res.Purged)
	for _, id := range abandoned {
		if err := u.events.Publish(ctx, event.Event{Type: event.PaymentOrderAbandoned, OrderID: id, OccurredAt: now}); err != nil {
			u.logger.Warn("event publish failed", zap.String("gateway_order_id", id), zap.Error(err))
		}
	}
	if res.Abandoned > 0 || res.Purged > 0 {
		u.logger.Info("cleanup sweep",
			zap.Int("abandoned", res.Abandoned), zap.Int64("released", res.Released), zap.Int64("purged", res.Purged))
	}
	return res, nil
}

// Stats reports order counts per status and the outcome of the last sweep.
func (u *Usecase) Stats(ctx context.Context) (*Stats, error) {
	counts, err := u.orders.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	st := &Stats{Orders: map[string]int64{}}
	for s, n := range counts {
		st.Orders[string(s)] = n
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	st.Sweeps = u.sweeps
	st.LastError = u.lastError
	if u.last != nil {
		last := *u.last
		st.LastSweep = &last
	}
	return st, nil
}
