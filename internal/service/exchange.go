// Package service implements the exchange: video listings, pairing, the task
// state machine, proof verification, the anti-cheat sweep and moderation.
package service

import (
	"time"

	"github.com/ad-tracker/engagement-exchange-go/internal/blob"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/repository"
	"github.com/ad-tracker/engagement-exchange-go/internal/notify"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Deps are the collaborators of the exchange. Zero values fall back to no-op
// or in-memory implementations.
type Deps struct {
	Notifier   notify.Notifier
	Proofs     blob.Store
	Thumbnails blob.Store
	Logger     *zap.Logger
	Registerer prometheus.Registerer
	Rules      Rules
	Now        func() time.Time
}

// Exchange wires the services together.
type Exchange struct {
	Catalog      *VideoCatalog
	Pairing      *PairingEngine
	Tasks        *TaskStore
	Verification *VerificationWorkflow
	Ledger       *ModerationLedger
	Sweeper      *AntiCheatSweeper
	Accounts     *AccountService
	Admin        *AdminService
	Metrics      *Metrics
	Rules        Rules
}

// New builds an Exchange on repos.
func New(repos *repository.Repositories, deps Deps) *Exchange {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Rules == (Rules{}) {
		deps.Rules = DefaultRules()
	}
	if deps.Proofs == nil {
		deps.Proofs = blob.NewMemStore(deps.Now)
	}
	if deps.Thumbnails == nil {
		deps.Thumbnails = blob.NewMemStore(deps.Now)
	}

	log := deps.Logger
	metrics := NewMetrics(deps.Registerer)

	tasks := NewTaskStore(repos.Tasks, deps.Now, log.Named("tasks"))
	catalog := NewVideoCatalog(repos.Videos, repos.Users, deps.Thumbnails, deps.Rules.MaxActiveVideos, deps.Now, log.Named("catalog"))
	ledger := NewModerationLedger(repos.Users, deps.Rules.BanThreshold, deps.Notifier, metrics, log.Named("ledger"))
	pairing := NewPairingEngine(repos.Users, tasks, catalog, deps.Notifier, metrics, log.Named("pairing"))
	ledger.AddObserver(pairing)

	return &Exchange{
		Catalog:      catalog,
		Pairing:      pairing,
		Tasks:        tasks,
		Verification: NewVerificationWorkflow(tasks, repos.Complaints, deps.Proofs, deps.Notifier, metrics, deps.Now, log.Named("verification")),
		Ledger:       ledger,
		Sweeper:      NewAntiCheatSweeper(tasks, ledger, deps.Proofs, deps.Notifier, deps.Rules, metrics, deps.Now, log.Named("sweeper")),
		Accounts:     NewAccountService(repos.Users, tasks, catalog, pairing, deps.Now, log.Named("accounts")),
		Admin:        NewAdminService(repos.Users, repos.Tasks, repos.Complaints, pairing, log.Named("admin")),
		Metrics:      metrics,
		Rules:        deps.Rules,
	}
}

// NewSweepRunner returns a runner for the exchange's sweeper at the
// configured interval.
func (e *Exchange) NewSweepRunner(logger *zap.Logger) *SweepRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return NewSweepRunner(e.Sweeper, e.Rules.SweepInterval, logger)
}
