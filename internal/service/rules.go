package service

import (
	"time"

	"github.com/ad-tracker/engagement-exchange-go/internal/config"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
)

// Rules are the tunable exchange policies.
type Rules struct {
	BanThreshold    int
	MaxActiveVideos int
	StallTimeout    time.Duration
	ProofRetention  time.Duration
	SweepInterval   time.Duration
	SweepBatchSize  int
}

// DefaultRules returns the reference policy values.
func DefaultRules() Rules {
	return Rules{
		BanThreshold:    3,
		MaxActiveVideos: models.MaxActiveVideos,
		StallTimeout:    2 * time.Hour,
		ProofRetention:  7 * 24 * time.Hour,
		SweepInterval:   180 * time.Second,
		SweepBatchSize:  500,
	}
}

// RulesFromConfig builds Rules from configuration, keeping defaults for unset
// values.
func RulesFromConfig(cfg config.ExchangeConfig) Rules {
	r := DefaultRules()
	if cfg.BanThreshold > 0 {
		r.BanThreshold = cfg.BanThreshold
	}
	if cfg.MaxActiveVideos > 0 {
		r.MaxActiveVideos = cfg.MaxActiveVideos
	}
	if cfg.StallTimeout > 0 {
		r.StallTimeout = cfg.StallTimeout
	}
	if cfg.ProofRetention > 0 {
		r.ProofRetention = cfg.ProofRetention
	}
	if cfg.SweepInterval > 0 {
		r.SweepInterval = cfg.SweepInterval
	}
	if cfg.SweepBatchSize > 0 {
		r.SweepBatchSize = cfg.SweepBatchSize
	}
	return r
}
