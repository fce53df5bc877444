package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainBorrow "library-fines/internal/domain/borrow"
	"library-fines/internal/domain/event"
	"library-fines/internal/domain/gateway"
	domainPayment "library-fines/internal/domain/payment"
	"library-fines/internal/domain/uow"
	domainUser "library-fines/internal/domain/user"
	"library-fines/internal/infrastructure/metrics"
)

var ErrInvalidInput = errors.New("invalid payment input")

const DefaultOrderTTL = time.Hour

type Config struct {
	KeyID          string
	KeySecret      string
	Currency       string
	CurrencySymbol string
	OrderTTL       time.Duration
	ReceiptPrefix  string
	Tolerance      decimal.Decimal
}

func (c Config) withDefaults() Config {
	if c.Currency == "" {
		c.Currency = "INR"
	}
	if c.CurrencySymbol == "" {
		c.CurrencySymbol = "₹"
	}
	if c.OrderTTL <= 0 {
		c.OrderTTL = DefaultOrderTTL
	}
	if c.ReceiptPrefix == "" {
		c.ReceiptPrefix = "fine"
	}
	if !c.Tolerance.IsPositive() {
		c.Tolerance = decimal.RequireFromString("0.01")
	}
	return c
}

type Deps struct {
	Borrows domainBorrow.Repository
	Orders  domainPayment.Repository
	Users   domainUser.Repository
	UoW     uow.UnitOfWork
	Gateway gateway.Client
	Events  event.Publisher
	Metrics metrics.Sink
	Logger  *zap.Logger
}

// Usecase drives a fine payment from gateway order creation to verification.
// It never retries gateway calls; the reconciliation sweep picks up whatever
// a failed call left behind.
type Usecase struct {
	borrows domainBorrow.Repository
	orders  domainPayment.Repository
	users   domainUser.Repository
	uow     uow.UnitOfWork
	gw      gateway.Client
	events  event.Publisher
	metrics metrics.Sink
	cfg     Config
	now     func() time.Time
	logger  *zap.Logger
}

func NewUsecase(d Deps, cfg Config) *Usecase {
	u := &Usecase{
		borrows: d.Borrows,
		orders:  d.Orders,
		users:   d.Users,
		uow:     d.UoW,
		gw:      d.Gateway,
		events:  d.Events,
		metrics: d.Metrics,
		cfg:     cfg.withDefaults(),
		now:     func() time.Time { return time.Now().UTC() },
		logger:  d.Logger,
	}
	if u.events == nil {
		u.events = event.Nop{}
	}
	if u.metrics == nil {
		u.metrics = metrics.Nop{}
	}
	if u.logger == nil {
		u.logger = zap.NewNop()
	}
	u.logger = u.logger.With(zap.String("component", "payment"))
	return u
}

// publish runs after commit; a lost event is logged, never surfaced.
func (u *Usecase) publish(ctx context.Context, e event.Event) {
	e.OccurredAt = u.now()
	if err := u.events.Publish(ctx, e); err != nil {
		u.logger.Warn("event publish failed", zap.String("type", string(e.Type)), zap.Error(err))
	}
}
