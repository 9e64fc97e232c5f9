package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	d21engine "d21vote/contexts/elections/d21-engine"
	"d21vote/contexts/elections/d21-engine/adapters/ids"
	postgresadapter "d21vote/contexts/elections/d21-engine/adapters/postgres"
	redisadapter "d21vote/contexts/elections/d21-engine/adapters/redis"
	workerapp "d21vote/contexts/elections/d21-engine/application/workers"
	"d21vote/contexts/elections/d21-engine/ports"
	"d21vote/internal/platform/config"
	"d21vote/internal/platform/db"
	"d21vote/internal/platform/httpserver"
	"d21vote/internal/platform/messaging"
	"d21vote/internal/platform/metrics"

	"github.com/go-redis/redis/v8"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server       *httpserver.Server
	postgres     *db.Postgres
	redis        *redis.Client
	relay        *workerapp.OutboxRelay
	pollInterval time.Duration
	logger       *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	publisher    *messaging.KafkaPublisher
	outboxRelay  workerapp.OutboxRelay
	metrics      *metrics.Registry
	metricsAddr  string
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	registry := metrics.NewRegistry()
	app := &APIApp{
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}

	var module d21engine.Module
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		logger.Warn("POSTGRES_DSN not set, using in-memory election store",
			"event", "bootstrap_memory_store_selected",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		module = d21engine.NewInMemoryModule(logger)
		// Nothing else reads an in-process outbox, so the API relays it onto
		// the local bus itself.
		app.relay = &workerapp.OutboxRelay{
			Outbox:      module.Store,
			Publisher:   messaging.NewBus(logger),
			Clock:       module.Store,
			TopicPrefix: cfg.KafkaTopic,
			BatchSize:   cfg.OutboxBatchSize,
			Logger:      logger,
			Observe:     registry.ObserveRelay,
		}
	} else {
		pg, err := db.Connect(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		app.postgres = pg

		repo := postgresadapter.NewRepository(pg.DB, logger)
		if cfg.AutoMigrate {
			if err := repo.AutoMigrate(context.Background()); err != nil {
				_ = app.Close()
				return nil, err
			}
		}

		var idempotency ports.IdempotencyStore = repo
		if cfg.RedisAddr != "" {
			client, err := connectRedis(cfg)
			if err != nil {
				_ = app.Close()
				return nil, err
			}
			app.redis = client
			idempotency = redisadapter.NewIdempotencyStore(client, logger)
		}

		module = d21engine.NewModule(d21engine.Dependencies{
			Elections:      repo,
			Keys:           ids.Keyer{},
			Idempotency:    idempotency,
			Clock:          postgresadapter.SystemClock{},
			IDGen:          ids.Generator{},
			IdempotencyTTL: cfg.IdempotencyTTL,
			Logger:         logger,
		})
	}

	app.server = httpserver.New(module, registry, logger, normalizeAddr(cfg.HTTPPort))
	return app, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	app := &WorkerApp{
		postgres:     pg,
		metrics:      metrics.NewRegistry(),
		metricsAddr:  normalizeAddr(cfg.MetricsPort),
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}

	var publisher ports.EventPublisher = messaging.NewBus(logger)
	if cfg.EnableKafkaPublisher {
		kafkaPublisher, err := messaging.NewKafkaPublisher(cfg.KafkaBrokers, logger)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.publisher = kafkaPublisher
		publisher = kafkaPublisher
	}

	app.outboxRelay = workerapp.OutboxRelay{
		Outbox:      postgresadapter.NewRepository(pg.DB, logger),
		Publisher:   publisher,
		Clock:       postgresadapter.SystemClock{},
		TopicPrefix: cfg.KafkaTopic,
		BatchSize:   cfg.OutboxBatchSize,
		Logger:      logger,
		Observe:     app.metrics.ObserveRelay,
	}
	return app, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	if a.relay != nil {
		go func() {
			_ = a.relay.Run(ctx, a.pollInterval)
		}()
	}
	return a.server.Start(ctx)
}

func (a *APIApp) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.postgres != nil {
		errs = append(errs, a.postgres.Close())
	}
	return errors.Join(errs...)
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"metrics_addr", w.metricsAddr,
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	metricsErr := make(chan error, 1)
	go func() {
		err := w.metrics.Serve(runCtx, w.metricsAddr, w.logger)
		if err != nil {
			cancel()
		}
		metricsErr <- err
	}()

	err := w.outboxRelay.Run(runCtx, w.pollInterval)
	cancel()
	if serveErr := <-metricsErr; serveErr != nil {
		return serveErr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *WorkerApp) Close() error {
	var errs []error
	if w.publisher != nil {
		errs = append(errs, w.publisher.Close())
	}
	if w.postgres != nil {
		errs = append(errs, w.postgres.Close())
	}
	return errors.Join(errs...)
}

func connectRedis(cfg config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
