package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/ad-tracker/engagement-exchange-go/internal/blob"
	"github.com/ad-tracker/engagement-exchange-go/internal/config"
	"github.com/ad-tracker/engagement-exchange-go/internal/db"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/memory"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/repository"
	"github.com/ad-tracker/engagement-exchange-go/internal/handler"
	"github.com/ad-tracker/engagement-exchange-go/internal/middleware"
	"github.com/ad-tracker/engagement-exchange-go/internal/notify"
	"github.com/ad-tracker/engagement-exchange-go/internal/queue"
	"github.com/ad-tracker/engagement-exchange-go/internal/service"
	"github.com/ad-tracker/engagement-exchange-go/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg); err != nil {
		logger.Log.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := logger.Log
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, pinger, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	proofs, thumbs, err := openBlobs(cfg.Blob)
	if err != nil {
		return err
	}

	backend, broker, closeBackend, err := openNotifier(cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	dispatcher := notify.NewDispatcher(backend, cfg.Notify.Workers, logger.Named("notify"))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ex := service.New(repos, service.Deps{
		Notifier:   dispatcher,
		Proofs:     proofs,
		Thumbnails: thumbs,
		Logger:     log,
		Registerer: reg,
		Rules:      service.RulesFromConfig(cfg.Exchange),
	})

	var bans middleware.BanChecker
	if cfg.Redis.URL != "" {
		cache, closeCache, err := attachBanCache(ctx, cfg.Redis.URL, repos.Users, ex)
		if err != nil {
			log.Warn("ban cache disabled", zap.Error(err))
		} else {
			defer closeCache()
			bans = cache
		}
	}

	runner := ex.NewSweepRunner(logger.Named("sweeper"))
	runner.Start(ctx)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.RouterConfig{
		Exchange:     ex,
		AdminAPIKeys: cfg.Admin.APIKeys,
		Health:       handler.NewHealthHandler(pinger, broker),
		Bans:         bans,
		Gatherer:     reg,
		Logger:       logger.Named("http"),
	})
	if len(cfg.Admin.APIKeys) == 0 {
		log.Warn("no admin API keys configured - admin endpoints will reject all requests")
	}

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("notifyBackend", cfg.Notify.Backend),
			zap.Bool("postgres", pinger != nil),
		)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runner.Stop()
			dispatcher.Close()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
		if err := server.Close(); err != nil {
			log.Error("failed to close server", zap.Error(err))
		}
	}

	// The in-flight sweep pass finishes before queued notifications drain.
	runner.Stop()
	dispatcher.Close()

	log.Info("server stopped gracefully")
	return nil
}

// openStore connects to Postgres, or falls back to the in-memory store when
// no database host is configured.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (*repository.Repositories, handler.Pinger, func(), error) {
	if cfg.Host == "" {
		logger.Log.Warn("no database host configured, using in-memory store")
		return memory.NewStore().Repositories(), nil, func() {}, nil
	}

	pool, err := db.NewPool(ctx, db.ConfigFrom(cfg))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Log.Info("database connection established", zap.Int32("maxConns", pool.Config().MaxConns))
	return repository.NewRepositories(pool), pool, func() { db.Close(pool) }, nil
}

func openBlobs(cfg config.BlobConfig) (proofs, thumbs blob.Store, err error) {
	if cfg.Dir == "" {
		logger.Log.Warn("no blob dir configured, proofs and thumbnails are kept in memory")
		return blob.NewMemStore(nil), blob.NewMemStore(nil), nil
	}

	p, err := blob.NewOSStore(filepath.Join(cfg.Dir, "proofs"))
	if err != nil {
		return nil, nil, err
	}
	t, err := blob.NewOSStore(filepath.Join(cfg.Dir, "thumbnails"))
	if err != nil {
		return nil, nil, err
	}
	return p, t, nil
}

// openNotifier builds the configured delivery backend. broker is set only
// for backends that report their own connection health.
func openNotifier(cfg *config.Config) (notify.Notifier, handler.HealthReporter, func(), error) {
	log := logger.Named("notify")

	switch cfg.Notify.Backend {
	case "rabbitmq":
		publisher, err := notify.NewAMQPPublisher(&cfg.RabbitMQ, log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize RabbitMQ publisher: %w", err)
		}
		return publisher, publisher, func() {
			if err := publisher.Close(); err != nil {
				log.Error("failed to close RabbitMQ publisher", zap.Error(err))
			}
		}, nil
	case "kafka":
		publisher := notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		return publisher, nil, func() {
			if err := publisher.Close(); err != nil {
				log.Error("failed to close Kafka writer", zap.Error(err))
			}
		}, nil
	case "queue":
		if cfg.Redis.URL == "" {
			return nil, nil, nil, errors.New("notify.backend=queue requires redis.url")
		}
		client, err := queue.NewClient(cfg.Redis.URL, log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize queue client: %w", err)
		}
		return client, nil, func() {
			if err := client.Close(); err != nil {
				log.Error("failed to close queue client", zap.Error(err))
			}
		}, nil
	default:
		return notify.NewLogNotifier(log), nil, func() {}, nil
	}
}

// attachBanCache mirrors the banned set into Redis and keeps it current
// through the ledger's ban observers.
func attachBanCache(ctx context.Context, redisURL string, users repository.UserRepository, ex *service.Exchange) (*service.BanCache, func(), error) {
	opts, err := queue.RedisOptions(redisURL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)

	cache := service.NewBanCache(client, users, logger.Named("ban-cache"))
	if err := cache.LoadFromDB(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	ex.Ledger.AddObserver(cache)

	return cache, func() { _ = client.Close() }, nil
}
