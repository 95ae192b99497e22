package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ad-tracker/engagement-exchange-go/internal/blob"
	"github.com/ad-tracker/engagement-exchange-go/internal/config"
	"github.com/ad-tracker/engagement-exchange-go/internal/db"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/repository"
	"github.com/ad-tracker/engagement-exchange-go/internal/notify"
	"github.com/ad-tracker/engagement-exchange-go/internal/queue"
	"github.com/ad-tracker/engagement-exchange-go/internal/service"
	"github.com/ad-tracker/engagement-exchange-go/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// opener builds the exchange the commands act on and returns a close func.
type opener func(ctx context.Context) (*service.Exchange, func(), error)

// newRootCmd builds the command tree. The returned cleanup releases whatever
// open acquired and is safe to call when no command ran.
func newRootCmd(open opener) (*cobra.Command, func()) {
	var (
		ex      *service.Exchange
		closeFn = func() {}
	)
	exchange := func() *service.Exchange { return ex }

	root := &cobra.Command{
		Use:   "adminctl",
		Short: "Moderate the engagement exchange",
		Long: `adminctl applies strikes and bans, inspects complaints and prints the
dashboard counters directly against the exchange database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			ex, closeFn, err = open(cmd.Context())
			if err != nil {
				closeFn = func() {}
			}
			return err
		},
	}

	root.AddCommand(
		newUserCmd("ban", "Ban a user", func(ctx context.Context, id int64) (any, error) {
			return exchange().Ledger.Ban(ctx, id)
		}),
		newUserCmd("unban", "Lift a ban; strikes are kept", func(ctx context.Context, id int64) (any, error) {
			return exchange().Ledger.Unban(ctx, id)
		}),
		newUserCmd("strike", "Add one strike", func(ctx context.Context, id int64) (any, error) {
			return exchange().Ledger.Strike(ctx, id, service.SourceAdmin)
		}),
		newUserCmd("remove-strike", "Remove one strike; a ban stays in place", func(ctx context.Context, id int64) (any, error) {
			return exchange().Ledger.RemoveStrike(ctx, id)
		}),
		newUserCmd("user", "Show a user", func(ctx context.Context, id int64) (any, error) {
			return exchange().Admin.GetUser(ctx, id)
		}),
		newStatsCmd(exchange),
		newComplaintsCmd(exchange),
		newSweepCmd(exchange),
	)
	return root, func() { closeFn() }
}

// openExchange connects to Postgres using the server configuration. Strike
// notifications go to the queue when Redis is configured so the worker
// delivers them, and to the log otherwise.
func openExchange(ctx context.Context) (*service.Exchange, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return nil, nil, err
	}
	if cfg.Database.Host == "" {
		return nil, nil, errors.New("adminctl needs a database: set EXCHANGE_DATABASE_HOST")
	}

	pool, err := db.NewPool(ctx, db.ConfigFrom(cfg.Database))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	closers := []func(){func() { db.Close(pool) }}

	var notifier notify.Notifier = notify.NewLogNotifier(logger.Named("notify"))
	if cfg.Redis.URL != "" {
		client, err := queue.NewClient(cfg.Redis.URL, logger.Named("queue"))
		if err != nil {
			logger.Log.Warn("queue unavailable, notifications are only logged", zap.Error(err))
		} else {
			notifier = client
			closers = append(closers, func() { _ = client.Close() })
		}
	}

	deps := service.Deps{
		Notifier: notifier,
		Logger:   logger.Named("adminctl"),
		Rules:    service.RulesFromConfig(cfg.Exchange),
	}
	if cfg.Blob.Dir != "" {
		proofs, err := blob.NewOSStore(filepath.Join(cfg.Blob.Dir, "proofs"))
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
			return nil, nil, err
		}
		deps.Proofs = proofs
	}

	ex := service.New(repository.NewRepositories(pool), deps)

	return ex, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		_ = logger.Sync()
	}, nil
}
