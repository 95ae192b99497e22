// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Kafka    KafkaConfig
	Notify   NotifyConfig
	Blob     BlobConfig
	Exchange ExchangeConfig
	Admin    AdminConfig
	Logging  LoggingConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// DatabaseConfig contains database connection configuration. An empty Host
// selects the in-memory store.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DatabaseConfig struct {
	Host           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	Port           int
	MaxConnections int
	MinConnections int
	MaxIdleTime    time.Duration
	MaxLifetime    time.Duration
}

// URL returns the database connection URL.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// RedisConfig contains Redis connection configuration. An empty URL disables
// the ban cache and the queue notifier.
type RedisConfig struct {
	URL string
}

// RabbitMQConfig contains RabbitMQ connection and exchange configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RabbitMQConfig struct {
	Host     string
	User     string
	Password string
	Exchange string
	Queue    string
	Port     int
}

// KafkaConfig contains Kafka producer configuration.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// NotifyConfig selects the notification backend.
type NotifyConfig struct {
	// Backend is one of log, rabbitmq, kafka or queue.
	Backend string
	// Relay is where cmd/worker forwards queued notifications: rabbitmq,
	// kafka or log.
	Relay   string
	Workers int
}

// BlobConfig contains blob storage configuration.
type BlobConfig struct {
	// Dir is the base directory; empty keeps blobs in memory.
	Dir string
}

// ExchangeConfig contains the exchange rules.
type ExchangeConfig struct {
	BanThreshold    int
	MaxActiveVideos int
	StallTimeout    time.Duration
	ProofRetention  time.Duration
	SweepInterval   time.Duration
	SweepBatchSize  int
}

// AdminConfig contains admin API configuration.
type AdminConfig struct {
	APIKeys []string
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	setDefaults()

	// Read environment variables
	viper.SetEnvPrefix("EXCHANGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that have no safe fallback.
func (c *Config) Validate() error {
	if c.Exchange.BanThreshold < 1 {
		return fmt.Errorf("exchange.banthreshold must be at least 1, got %d", c.Exchange.BanThreshold)
	}
	if c.Exchange.MaxActiveVideos < 1 {
		return fmt.Errorf("exchange.maxactivevideos must be at least 1, got %d", c.Exchange.MaxActiveVideos)
	}
	if c.Exchange.SweepInterval <= 0 {
		return fmt.Errorf("exchange.sweepinterval must be positive")
	}
	switch c.Notify.Backend {
	case "log", "rabbitmq", "kafka", "queue":
	default:
		return fmt.Errorf("unknown notify.backend %q", c.Notify.Backend)
	}
	switch c.Notify.Relay {
	case "log", "rabbitmq", "kafka":
	default:
		return fmt.Errorf("unknown notify.relay %q", c.Notify.Relay)
	}
	return nil
}

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdowntimeout", 30*time.Second)

	// Database
	viper.SetDefault("database.host", "")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "exchange")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxconnections", 10)
	viper.SetDefault("database.minconnections", 2)
	viper.SetDefault("database.maxidletime", 10*time.Minute)
	viper.SetDefault("database.maxlifetime", 1*time.Hour)

	// Redis
	viper.SetDefault("redis.url", "")

	// RabbitMQ
	viper.SetDefault("rabbitmq.host", "localhost")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.password", "guest")
	viper.SetDefault("rabbitmq.exchange", "exchange.notifications")
	viper.SetDefault("rabbitmq.queue", "exchange.notifications.outbound")

	// Kafka
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topic", "exchange.notifications")

	// Notifications
	viper.SetDefault("notify.backend", "log")
	viper.SetDefault("notify.relay", "rabbitmq")
	viper.SetDefault("notify.workers", 4)

	// Blob storage
	viper.SetDefault("blob.dir", "")

	// Exchange rules
	viper.SetDefault("exchange.banthreshold", 3)
	viper.SetDefault("exchange.maxactivevideos", 5)
	viper.SetDefault("exchange.stalltimeout", 2*time.Hour)
	viper.SetDefault("exchange.proofretention", 7*24*time.Hour)
	viper.SetDefault("exchange.sweepinterval", 180*time.Second)
	viper.SetDefault("exchange.sweepbatchsize", 500)

	// Admin
	viper.SetDefault("admin.apikeys", []string{})

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}
