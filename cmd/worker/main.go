package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/ad-tracker/engagement-exchange-go/internal/config"
	"github.com/ad-tracker/engagement-exchange-go/internal/notify"
	"github.com/ad-tracker/engagement-exchange-go/internal/queue"
	"github.com/ad-tracker/engagement-exchange-go/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// worker drains the notification queue filled by the server's queue backend
// and relays each notification to the configured broker.
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

	log := logger.Named("worker")
	if cfg.Redis.URL == "" {
		log.Error("redis.url is required (EXCHANGE_REDIS_URL)")
		os.Exit(1)
	}

	relay, closeRelay, err := openRelay(cfg, log)
	if err != nil {
		log.Error("failed to initialize relay", zap.String("relay", cfg.Notify.Relay), zap.Error(err))
		os.Exit(1)
	}
	defer closeRelay()

	var delivered atomic.Int64
	callbacks := queue.NewCallbackManager()
	callbacks.RegisterCallback(func(_ context.Context, n *notify.Notification) {
		total := delivered.Add(1)
		log.Debug("notification relayed",
			zap.String("id", n.ID),
			zap.String("kind", string(n.Kind)),
			zap.Int64("delivered", total),
		)
	})

	handler := queue.NewDeliveryHandler(relay, log)
	handler.SetCallbackManager(callbacks)

	server, err := queue.NewServer(cfg.Redis.URL, cfg.Notify.Workers, handler)
	if err != nil {
		log.Error("failed to create queue server", zap.Error(err))
		os.Exit(1)
	}
	if err := server.Start(); err != nil {
		log.Error("failed to start queue server", zap.Error(err))
		os.Exit(1)
	}
	log.Info("worker started",
		zap.String("relay", cfg.Notify.Relay),
		zap.Int("concurrency", cfg.Notify.Workers),
	)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdown

	log.Info("shutdown signal received", zap.String("signal", sig.String()))
	server.Stop()
	log.Info("worker stopped", zap.Int64("delivered", delivered.Load()))
}

func openRelay(cfg *config.Config, log *zap.Logger) (notify.Notifier, func(), error) {
	switch cfg.Notify.Relay {
	case "rabbitmq":
		publisher, err := notify.NewAMQPPublisher(&cfg.RabbitMQ, log)
		if err != nil {
			return nil, nil, err
		}
		return publisher, func() { _ = publisher.Close() }, nil
	case "kafka":
		publisher := notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		return publisher, func() { _ = publisher.Close() }, nil
	default:
		return notify.NewLogNotifier(log), func() {}, nil
	}
}
