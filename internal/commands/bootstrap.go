package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/envelopes/internal/config"
	"github.com/cleared-dev/envelopes/internal/events"
	"github.com/cleared-dev/envelopes/internal/importer"
	"github.com/cleared-dev/envelopes/internal/ledger"
	"github.com/cleared-dev/envelopes/internal/logging"
	"github.com/cleared-dev/envelopes/internal/metrics"
	"github.com/cleared-dev/envelopes/internal/simplefin"
	"github.com/cleared-dev/envelopes/internal/store"
	"github.com/cleared-dev/envelopes/internal/store/memory"
	"github.com/cleared-dev/envelopes/internal/store/postgres"
	"github.com/cleared-dev/envelopes/internal/store/sqlite"
	"github.com/cleared-dev/envelopes/internal/vault"
)

// loadConfig reads the config file, or the defaults when it does not
// exist, then applies the environment. Relative paths in the file are
// resolved against the file's directory.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = config.Default()
	case err != nil:
		return nil, err
	default:
		base := filepath.Dir(path)
		cfg.Storage.SQLite.Path = resolve(base, cfg.Storage.SQLite.Path)
		cfg.Import.Dir = resolve(base, cfg.Import.Dir)
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func postgresConfig(cfg *config.Config) postgres.Config {
	pg := cfg.Storage.Postgres
	return postgres.Config{
		URL:      pg.URL,
		Host:     pg.Host,
		Port:     pg.Port,
		User:     pg.User,
		Password: pg.Password,
		Database: pg.Database,
		SSLMode:  pg.SSLMode,
		MaxConns: pg.MaxConns,
	}
}

// openStore connects the configured backend, migrating it first.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendSQLite:
		return sqlite.Open(ctx, cfg.Storage.SQLite.Path)
	case config.BackendPostgres:
		pgCfg := postgresConfig(cfg)
		if err := postgres.RunMigrations(pgCfg.DSN()); err != nil {
			return nil, err
		}
		pool, err := postgres.NewPool(ctx, pgCfg)
		if err != nil {
			return nil, err
		}
		return postgres.New(pool), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// app is the wired import core for one command invocation.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	store     store.Store
	publisher events.Publisher
	metrics   *metrics.Recorder
	svc       *importer.Service
}

func newApp(ctx context.Context, g *globalFlags, logOut io.Writer, extra ...importer.ServiceOption) (*app, error) {
	cfg, err := loadConfig(g.configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.NewWithWriter(logOut, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Storage.Backend, err)
	}

	a := &app{
		cfg:       cfg,
		log:       log,
		store:     st,
		publisher: events.NewKafka(events.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}),
		metrics:   metrics.New(),
	}

	opts := []importer.ServiceOption{
		importer.WithLogger(log),
		importer.WithMetrics(a.metrics),
		importer.WithLookback(cfg.Lookback()),
	}
	if cfg.Vault.Secret != "" {
		v, err := vault.New(cfg.Vault.Secret)
		if err != nil {
			st.Close()
			return nil, err
		}
		client := simplefin.New(simplefin.Config{
			AllowedHosts: cfg.SimpleFIN.AllowedHosts,
			Timeout:      cfg.SimpleFIN.Timeout,
		}, v, simplefin.WithLogger(log))
		opts = append(opts, importer.WithAggregator(client))
	} else {
		log.Debug().Msg("no ENCRYPTION_KEY or SESSION_SECRET set, simplefin disabled")
	}
	opts = append(opts, extra...)

	a.svc = importer.NewService(st, ledger.New(st, a.publisher, log), opts...)
	return a, nil
}

func (a *app) Close() error {
	return errors.Join(a.publisher.Close(), a.store.Close())
}
