package db

import (
	"testing"
	"time"

	"github.com/ad-tracker/engagement-exchange-go/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.DatabaseConfig{
		Host:           "db.internal",
		Name:           "exchange_prod",
		User:           "svc",
		Password:       "secret",
		MaxConnections: 40,
		MaxIdleTime:    time.Minute,
	})

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "exchange_prod", cfg.Database)
	assert.Equal(t, int32(40), cfg.MaxConns)
	assert.Equal(t, int32(2), cfg.MinConns)
	assert.Equal(t, time.Minute, cfg.MaxConnIdleTime)
	assert.Equal(t, time.Hour, cfg.MaxConnLifetime)
	assert.Equal(t,
		"host=db.internal port=5432 user=svc password=secret dbname=exchange_prod sslmode=disable",
		cfg.ConnString())
}
