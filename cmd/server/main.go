package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/iliyamo/express-reservations/internal/clock"
	"github.com/iliyamo/express-reservations/internal/config"
	"github.com/iliyamo/express-reservations/internal/database"
	"github.com/iliyamo/express-reservations/internal/handler"
	"github.com/iliyamo/express-reservations/internal/logger"
	"github.com/iliyamo/express-reservations/internal/mail"
	"github.com/iliyamo/express-reservations/internal/model"
	"github.com/iliyamo/express-reservations/internal/queue"
	"github.com/iliyamo/express-reservations/internal/repository"
	"github.com/iliyamo/express-reservations/internal/router"
	"github.com/iliyamo/express-reservations/internal/service"
	"github.com/iliyamo/express-reservations/internal/tasks"
	"github.com/iliyamo/express-reservations/internal/telemetry"
	"github.com/iliyamo/express-reservations/internal/ticket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	zl = zl.With(zap.String("env", cfg.Env))
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.Init(ctx, config.LoadTelemetryConfig(), cfg.Env)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg.DB, zl)
	if err != nil {
		return err
	}
	defer closeStore()

	clk := clock.NewSystem()
	renderer := ticket.NewPDFRenderer()
	taskCfg := config.LoadTaskConfig()

	var notifier mail.Notifier
	if mailCfg := config.LoadMailConfig(); mailCfg.Host != "" {
		notifier = mail.NewSMTPNotifier(mailCfg)
	} else {
		zl.Warn("SMTP_HOST not set, confirmation emails are only logged")
		notifier = mail.NewLogNotifier(zl)
	}

	runner := tasks.NewRunner(renderer, notifier, zl,
		tasks.WithWorkers(taskCfg.Workers),
		tasks.WithBuffer(taskCfg.Buffer),
		tasks.WithRetryPolicy(tasks.RetryPolicy{
			MaxAttempts:    taskCfg.MaxAttempts,
			Delay:          taskCfg.RetryDelay,
			AttemptTimeout: taskCfg.AttemptTimeout,
		}),
		tasks.WithClock(clk),
	)
	if err := runner.Start(context.Background()); err != nil {
		return err
	}

	// The checkout path hands tasks either to the runner directly or to
	// RabbitMQ, whose consumer feeds the same runner.
	var (
		dispatcher  service.Dispatcher = runner
		publisher   *queue.Publisher
		consumerWG  sync.WaitGroup
		stopConsume = func() {}
	)
	if taskCfg.Driver == config.TaskQueueRabbitMQ {
		publisher = queue.NewPublisher(taskCfg.RabbitURL, taskCfg.QueueName, runner, clk, zl)
		dispatcher = publisher

		consumerCtx, cancel := context.WithCancel(context.Background())
		stopConsume = cancel
		consumer := queue.NewConsumer(taskCfg.RabbitURL, taskCfg.QueueName, taskCfg.Workers, runner, zl)
		consumerWG.Add(1)
		go func() {
			defer consumerWG.Done()
			if err := consumer.Run(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("task consumer stopped", zap.Error(err))
			}
		}()
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		zl.Warn("redis unavailable, rate limiting and caching disabled")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	e := router.New(router.Handlers{
		Health:       handler.NewHealthHandler(runner, clk),
		Availability: handler.NewAvailabilityHandler(service.NewAvailabilityService(store), zl),
		Reservations: handler.NewReservationHandler(service.NewReservationService(store, renderer, clk, zl), zl),
		Checkout:     handler.NewCheckoutHandler(service.NewCheckoutService(store, dispatcher, clk, zl), zl),
	}, router.Options{
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   config.LoadRateLimitConfig(),
		Cache:       config.LoadCacheConfig(),
		Redis:       rdb,
		Logger:      zl,
	})

	addr := ":" + cfg.Port
	serverErr := make(chan error, 1)
	go func() {
		zl.Info("listening",
			zap.String("addr", addr),
			zap.String("db_driver", cfg.DB.Driver),
			zap.String("task_queue", taskCfg.Driver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		zl.Info("shutdown signal received")
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Warn("http shutdown", zap.Error(err))
	}
	if publisher != nil {
		publisher.Close()
	}
	stopConsume()
	consumerWG.Wait()
	runner.Stop()
	zl.Info("background tasks drained", zap.Any("stats", runner.Stats()))

	if err := shutdownTracer(shutdownCtx); err != nil {
		zl.Warn("tracer shutdown", zap.Error(err))
	}
	return runErr
}

// openStore connects the configured storage engine, creating the schema
// and seeding categories when auto-migration is on.
func openStore(ctx context.Context, cfg config.DBConfig, zl *zap.Logger) (service.Store, func(), error) {
	categories := model.DefaultCategories()

	switch cfg.Driver {
	case config.DriverMySQL:
		db, err := database.OpenMySQL(ctx, cfg.User, cfg.Pass, cfg.Host, cfg.Port, cfg.Name)
		if err != nil {
			return nil, nil, err
		}
		if cfg.AutoMigrate {
			if err := database.MigrateMySQL(ctx, db, categories); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		zl.Info("connected to mysql", zap.String("host", cfg.Host), zap.String("db", cfg.Name))
		return repository.NewMySQLReservationRepo(db), func() { _ = db.Close() }, nil

	case config.DriverPostgres:
		pool, err := database.OpenPostgres(ctx, database.PostgresDSN(cfg.User, cfg.Pass, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode))
		if err != nil {
			return nil, nil, err
		}
		if cfg.AutoMigrate {
			if err := database.MigratePostgres(ctx, pool, categories); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		zl.Info("connected to postgres", zap.String("host", cfg.Host), zap.String("db", cfg.Name))
		return repository.NewPostgresReservationRepo(pool), pool.Close, nil

	default:
		zl.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemoryReservationRepo(categories), func() {}, nil
	}
}
