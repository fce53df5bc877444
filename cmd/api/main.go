package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	eventsadp "library-fines/internal/adapter/events"
	gatewayadp "library-fines/internal/adapter/gateway"
	httpadp "library-fines/internal/adapter/http"
	"library-fines/internal/adapter/middleware"
	"library-fines/internal/adapter/repository/mysql"
	"library-fines/internal/config"
	"library-fines/internal/domain/event"
	"library-fines/internal/infrastructure/cache"
	"library-fines/internal/infrastructure/db"
	"library-fines/internal/infrastructure/logging"
	"library-fines/internal/infrastructure/metrics"
	"library-fines/internal/infrastructure/scheduler"
	"library-fines/internal/usecase/audit"
	"library-fines/internal/usecase/cleanup"
	"library-fines/internal/usecase/fine"
	"library-fines/internal/usecase/payment"
	"library-fines/internal/usecase/reconcile"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// storage
	gdb, err := db.OpenGorm(cfg.MySQLDSN(), db.ParseLogLevel(cfg.DBLogLevel))
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb); err != nil {
		return err
	}
	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	borrows := mysql.NewBorrowRepository(gdb)
	orders := mysql.NewPaymentOrderRepository(gdb)
	users := mysql.NewUserRepository(gdb)
	books := mysql.NewBookRepository(gdb)
	tx := mysql.NewGormUoW(gdb)

	// outbound
	gw, err := gatewayadp.New(gatewayadp.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		KeyID:     cfg.Gateway.KeyID,
		KeySecret: cfg.Gateway.KeySecret,
		Timeout:   cfg.Gateway.Timeout,
		RPS:       cfg.Gateway.RPS,
		Burst:     cfg.Gateway.Burst,
	}, logger)
	if err != nil {
		return err
	}
	var publisher event.Publisher = event.Nop{}
	if cfg.EventsEnabled() {
		kp := eventsadp.NewKafkaPublisher(eventsadp.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger), cfg.Kafka.Topic, logger)
		defer kp.Close()
		publisher = kp
	} else {
		logger.Info("kafka brokers not configured, domain events disabled")
	}
	sink := metrics.NewMemory()

	// services
	calCfg, err := calendarConfig(cfg.Fine)
	if err != nil {
		return err
	}
	policy := finePolicy(cfg.Fine, cfg.Gateway.CurrencySymbol)
	cal := fine.NewCalendar(calCfg)
	classifier := fine.NewClassifier(users, borrows, cfg.Fine.AcademicDomains, logger)
	selector := fine.NewSelector(
		fine.NewAdvanced(policy, cal, classifier, books, borrows, logger),
		fine.NewSimple(policy),
		classifier, borrows, cal, sink, logger,
	)
	fines := fine.NewUsecase(selector, borrows, logger)

	payments := payment.NewUsecase(payment.Deps{
		Borrows: borrows,
		Orders:  orders,
		Users:   users,
		UoW:     tx,
		Gateway: gw,
		Events:  publisher,
		Metrics: sink,
		Logger:  logger,
	}, payment.Config{
		KeyID:          cfg.Gateway.KeyID,
		KeySecret:      cfg.Gateway.KeySecret,
		Currency:       cfg.Gateway.Currency,
		CurrencySymbol: cfg.Gateway.CurrencySymbol,
		Tolerance:      cfg.Gateway.Tolerance,
	})
	reconciler := reconcile.NewUsecase(reconcile.Deps{
		Borrows: borrows,
		Orders:  orders,
		UoW:     tx,
		Gateway: gw,
		Events:  publisher,
		Metrics: sink,
		Logger:  logger,
	}, reconcile.Config{AutoCapture: cfg.Gateway.AutoCapture, Currency: cfg.Gateway.Currency})
	audits := audit.NewUsecase(borrows, publisher, cfg.Gateway.CurrencySymbol, logger)
	sweeper := cleanup.NewUsecase(orders, tx, publisher, sink, cleanup.Config{
		AbandonAfter: cfg.Scheduler.AbandonAfter,
		PurgeAfter:   cfg.Scheduler.PurgeAfter,
	}, logger)

	// background jobs
	runner := scheduler.New(logger, scheduler.WithLocker(cache.NewLocker(rdb), cfg.LockTTL()))
	if cfg.Scheduler.Enabled {
		runner.Add(scheduler.Job{
			Name:       "payment-cleanup",
			Interval:   cfg.Scheduler.CleanupInterval,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := sweeper.Sweep(ctx, time.Now().UTC())
				return err
			},
		})
		runner.Add(scheduler.Job{
			Name:     "payment-reconcile",
			Interval: cfg.Scheduler.ReconcileInterval,
			Run: func(ctx context.Context) error {
				_, err := reconciler.ReconcileAll(ctx, cfg.Scheduler.ReconcileWindowHours)
				return err
			},
		})
		runner.Add(scheduler.Job{
			Name:     "overdue-assessment",
			Interval: cfg.Scheduler.AssessInterval,
			Run: func(ctx context.Context) error {
				_, err := fines.AssessOverdue(ctx)
				return err
			},
		})
		runner.Start(ctx)
	}

	// http
	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(echomw.Recover(), echomw.RequestID(), echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID))
			return nil
		},
	}))
	httpadp.Register(e, httpadp.Handlers{
		Health:   httpadp.NewHandler(),
		Fines:    httpadp.NewFineHandler(fines, logger),
		Payments: httpadp.NewPaymentHandler(payments, logger),
		Admin:    httpadp.NewAdminHandler(audits, reconciler, sweeper, sink, logger),
	}, middleware.Idempotency(rdb, cfg.IdempotencyTTL(), logger))

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.AppPort
		logger.Info("listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		stop()
		runner.Wait()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	runner.Wait()
	return nil
}
