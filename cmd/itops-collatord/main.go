package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rmax-ai/itops-collator/pkg/api"
	"github.com/rmax-ai/itops-collator/pkg/blob"
	"github.com/rmax-ai/itops-collator/pkg/collator"
	"github.com/rmax-ai/itops-collator/pkg/ingest"
	"github.com/rmax-ai/itops-collator/pkg/logging"
	"github.com/rmax-ai/itops-collator/pkg/retention"
	"github.com/rmax-ai/itops-collator/pkg/store"
	"github.com/rmax-ai/itops-collator/pkg/store/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "itops-collatord: %v\n", err)
		os.Exit(2)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat).Named("itops-collatord")
	defer logger.Sync() //nolint:errcheck

	logger.Info("system_started",
		zap.String("addr", cfg.Addr),
		zap.Bool("audit_journal", cfg.JournalEnabled()),
		zap.Bool("redis", cfg.RedisAddr != ""),
	)

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("failed_to_init", zap.Error(err))
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// SIGHUP re-reads the retention settings.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				next, err := LoadConfig(os.Args[1:])
				if err != nil {
					logger.Error("config_reload_failed", zap.Error(err))
					continue
				}
				a.reload(next)
			}
		}
	}()

	if err := a.run(ctx); err != nil {
		logger.Error("server_failed", zap.Error(err))
		a.close()
		os.Exit(1)
	}
	logger.Info("shutdown_complete")
}

// app holds everything the daemon owns between start and shutdown.
type app struct {
	collator *collator.Collator
	gateway  *ingest.Gateway
	server   *api.Server
	worker   *retention.Worker

	journal *store.Store
	redis   *goredis.Client

	logger *zap.Logger
	closed bool
}

func newApp(cfg Config, logger *zap.Logger) (*app, error) {
	a := &app{logger: logger}
	opts := []collator.Option{collator.WithLogger(logger)}

	if cfg.JournalEnabled() {
		st, err := store.NewStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit journal: %w", err)
		}
		a.journal = st
		opts = append(opts, collator.WithJournal(st))
		logger.Info("store_initialized", zap.String("path", cfg.DBPath))
	}

	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			client.Close()
			a.close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		a.redis = client
		opts = append(opts, collator.WithSummaryStore(redis.NewSummaryStore(client, logger)))
		logger.Info("redis_connected", zap.String("addr", cfg.RedisAddr))
	}

	a.collator = collator.New(opts...)
	a.gateway = ingest.NewGateway(a.collator, logger)
	a.server = api.NewServer(a.collator, a.gateway, cfg.Addr, logger)
	if cfg.TLSCertFile != "" {
		a.server.SetTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
	}

	if a.journal != nil {
		a.worker = retention.NewWorker(a.journal, retentionConfig(cfg), logger)
		if cfg.ArchiveDir != "" {
			a.worker.SetArchiver(retention.NewArchiver(a.journal, blob.NewLocalStore(cfg.ArchiveDir), 0, logger))
			logger.Info("audit_archive_enabled", zap.String("dir", cfg.ArchiveDir))
		}
	}
	return a, nil
}

func retentionConfig(cfg Config) retention.Config {
	return retention.Config{Retention: cfg.AuditRetention, Interval: cfg.PruneInterval}
}

// run serves until ctx is cancelled or the listener fails, then shuts the
// server down gracefully.
func (a *app) run(ctx context.Context) error {
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	if a.worker != nil {
		go a.worker.Run(workerCtx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutdown_initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return <-errCh
}

func (a *app) reload(cfg Config) {
	if a.worker == nil {
		return
	}
	a.worker.UpdateConfig(retentionConfig(cfg))
	a.logger.Info("config_reloaded",
		zap.Duration("audit_retention", cfg.AuditRetention),
		zap.Duration("prune_interval", cfg.PruneInterval),
	)
}

func (a *app) close() {
	if a.closed {
		return
	}
	a.closed = true

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("failed_to_close_redis", zap.Error(err))
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Error("failed_to_close_store", zap.Error(err))
		} else {
			a.logger.Info("store_closed")
		}
	}
}
