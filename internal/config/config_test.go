package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		setup   func()
		cleanup func()
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "load with defaults (no config file)",
			setup: func() {
				// Reset viper
				viper.Reset()
			},
			cleanup: func() {},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 8080 {
					t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
				}
				if cfg.Database.Host != "" {
					t.Errorf("Database.Host = %s, want empty (in-memory store)", cfg.Database.Host)
				}
				if cfg.Exchange.BanThreshold != 3 {
					t.Errorf("Exchange.BanThreshold = %d, want 3", cfg.Exchange.BanThreshold)
				}
				if cfg.Exchange.StallTimeout != 2*time.Hour {
					t.Errorf("Exchange.StallTimeout = %v, want 2h", cfg.Exchange.StallTimeout)
				}
				if cfg.Exchange.ProofRetention != 7*24*time.Hour {
					t.Errorf("Exchange.ProofRetention = %v, want 168h", cfg.Exchange.ProofRetention)
				}
				if cfg.Exchange.SweepInterval != 180*time.Second {
					t.Errorf("Exchange.SweepInterval = %v, want 3m", cfg.Exchange.SweepInterval)
				}
				if cfg.Notify.Backend != "log" {
					t.Errorf("Notify.Backend = %s, want log", cfg.Notify.Backend)
				}
			},
		},
		{
			name: "load with environment variables",
			setup: func() {
				viper.Reset()
				os.Setenv("EXCHANGE_SERVER_PORT", "9090")
				os.Setenv("EXCHANGE_DATABASE_HOST", "testdb")
				os.Setenv("EXCHANGE_EXCHANGE_BANTHRESHOLD", "5")
				os.Setenv("EXCHANGE_EXCHANGE_STALLTIMEOUT", "90m")
				os.Setenv("EXCHANGE_NOTIFY_BACKEND", "rabbitmq")
			},
			cleanup: func() {
				os.Unsetenv("EXCHANGE_SERVER_PORT")
				os.Unsetenv("EXCHANGE_DATABASE_HOST")
				os.Unsetenv("EXCHANGE_EXCHANGE_BANTHRESHOLD")
				os.Unsetenv("EXCHANGE_EXCHANGE_STALLTIMEOUT")
				os.Unsetenv("EXCHANGE_NOTIFY_BACKEND")
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 9090 {
					t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
				}
				if cfg.Database.Host != "testdb" {
					t.Errorf("Database.Host = %s, want testdb", cfg.Database.Host)
				}
				if cfg.Exchange.BanThreshold != 5 {
					t.Errorf("Exchange.BanThreshold = %d, want 5", cfg.Exchange.BanThreshold)
				}
				if cfg.Exchange.StallTimeout != 90*time.Minute {
					t.Errorf("Exchange.StallTimeout = %v, want 90m", cfg.Exchange.StallTimeout)
				}
				if cfg.Notify.Backend != "rabbitmq" {
					t.Errorf("Notify.Backend = %s, want rabbitmq", cfg.Notify.Backend)
				}
			},
		},
		{
			name: "rejects unknown notify backend",
			setup: func() {
				viper.Reset()
				os.Setenv("EXCHANGE_NOTIFY_BACKEND", "carrier-pigeon")
			},
			cleanup: func() {
				os.Unsetenv("EXCHANGE_NOTIFY_BACKEND")
			},
			wantErr: true,
		},
		{
			name: "rejects zero ban threshold",
			setup: func() {
				viper.Reset()
				os.Setenv("EXCHANGE_EXCHANGE_BANTHRESHOLD", "0")
			},
			cleanup: func() {
				os.Unsetenv("EXCHANGE_EXCHANGE_BANTHRESHOLD")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			defer func() {
				if tt.cleanup != nil {
					tt.cleanup()
				}
			}()

			cfg, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && cfg == nil {
				t.Fatal("Load() returned nil config")
			}

			if tt.check != nil && cfg != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestSetDefaults(t *testing.T) {
	viper.Reset()
	setDefaults()

	tests := []struct {
		name string
		key  string
		want interface{}
	}{
		{"server port", "server.port", 8080},
		{"database port", "database.port", 5432},
		{"database name", "database.name", "exchange"},
		{"database sslmode", "database.sslmode", "disable"},
		{"rabbitmq host", "rabbitmq.host", "localhost"},
		{"rabbitmq exchange", "rabbitmq.exchange", "exchange.notifications"},
		{"kafka topic", "kafka.topic", "exchange.notifications"},
		{"notify backend", "notify.backend", "log"},
		{"notify workers", "notify.workers", 4},
		{"exchange banthreshold", "exchange.banthreshold", 3},
		{"exchange maxactivevideos", "exchange.maxactivevideos", 5},
		{"logging level", "logging.level", "info"},
		{"logging file", "logging.file", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := viper.Get(tt.key)
			if got != tt.want {
				t.Errorf("viper.Get(%s) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}

	// Test time.Duration defaults
	if viper.GetDuration("exchange.stalltimeout") != 2*time.Hour {
		t.Errorf("exchange.stalltimeout = %v, want 2h", viper.GetDuration("exchange.stalltimeout"))
	}
	if viper.GetDuration("exchange.proofretention") != 168*time.Hour {
		t.Errorf("exchange.proofretention = %v, want 168h", viper.GetDuration("exchange.proofretention"))
	}
	if viper.GetDuration("exchange.sweepinterval") != 3*time.Minute {
		t.Errorf("exchange.sweepinterval = %v, want 3m", viper.GetDuration("exchange.sweepinterval"))
	}
}

func TestDatabaseConfigURL(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db",
		Port:     5433,
		Name:     "exchange",
		User:     "app",
		Password: "secret",
		SSLMode:  "disable",
	}

	want := "postgres://app:secret@db:5433/exchange?sslmode=disable"
	if got := d.URL(); got != want {
		t.Errorf("URL() = %s, want %s", got, want)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Notify:   NotifyConfig{Backend: "log", Relay: "rabbitmq"},
			Exchange: ExchangeConfig{BanThreshold: 3, MaxActiveVideos: 5, SweepInterval: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero ban threshold", mutate: func(c *Config) { c.Exchange.BanThreshold = 0 }, wantErr: true},
		{name: "zero video limit", mutate: func(c *Config) { c.Exchange.MaxActiveVideos = 0 }, wantErr: true},
		{name: "zero sweep interval", mutate: func(c *Config) { c.Exchange.SweepInterval = 0 }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.Notify.Backend = "smtp" }, wantErr: true},
		{name: "queue backend", mutate: func(c *Config) { c.Notify.Backend = "queue" }},
		{name: "unknown relay", mutate: func(c *Config) { c.Notify.Relay = "queue" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
