package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"scrazino/internal/cache"
	"scrazino/internal/config"
	"scrazino/internal/database"
	"scrazino/internal/game"
	"scrazino/internal/ledger"
	"scrazino/internal/localstore"
	"scrazino/internal/logger"
	"scrazino/internal/metrics"
	"scrazino/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level: cfg.Log.Level,
		App:   "scrazino",
		Dir:   cfg.Log.Dir,
		File:  cfg.Log.File || cfg.IsProduction(),
	})
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
	log.Info("server exited")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, checks, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(reg)

	wallet, err := ledger.Open(ctx, store,
		ledger.WithLogger(log.Named("ledger")),
		ledger.WithObserver(recorder),
		ledger.WithInitialBalance(cfg.Wallet.InitialBalance),
		ledger.WithMaxDeposit(cfg.Wallet.MaxDeposit),
		ledger.WithCurrency(cfg.Wallet.CurrencySymbol))
	if err != nil {
		return err
	}
	recorder.SetBalance(wallet.Balance())

	rules, err := game.LoadRules(cfg.Games.RulesFile)
	if err != nil {
		return err
	}
	rules.RevealDelay = cfg.Games.RevealDelay

	source, err := newSource(cfg.Games.RNGMode, log)
	if err != nil {
		return err
	}

	hub := game.NewHub(log.Named("hub"))
	go hub.Run(ctx)

	factory := game.NewDefaultFactory(game.Deps{
		Wallet:   wallet,
		Source:   source,
		Hub:      hub,
		Observer: recorder,
		Logger:   log.Named("game"),
	}, rules)
	if err := factory.StartAll(ctx); err != nil {
		return err
	}

	srv := server.New(server.Options{
		Wallet:  wallet,
		Games:   factory,
		Hub:     hub,
		Metrics: recorder,
		Checks:  checks,
		Logger:  log,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		log.Info("listening", zap.String("addr", addr), zap.String("store", cfg.Store))
		errCh <- srv.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down gracefully, press Ctrl+C again to force")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := revealSeed(source, log); err != nil {
		log.Error("reveal seed", zap.Error(err))
	}
	return nil
}

// openStore connects the configured ledger backend. The returned checks feed
// /health and closeStore releases the connection.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (ledger.Store, map[string]server.HealthCheck, func(), error) {
	noop := func() {}

	switch cfg.Store {
	case config.StoreMemory:
		log.Warn("memory store selected, the wallet is lost on restart")
		return ledger.NewMemoryStore(), nil, noop, nil

	case config.StoreSQLite:
		s, err := localstore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, noop, err
		}
		return s, nil, func() {
			if err := s.Close(); err != nil {
				log.Error("close sqlite", zap.Error(err))
			}
		}, nil

	case config.StoreRedis:
		svc, err := cache.New(ctx, cfg.Redis, log.Named("redis"))
		if err != nil {
			return nil, nil, noop, err
		}
		checks := map[string]server.HealthCheck{"cache": svc.Health}
		return cache.NewLedgerStore(svc.GetClient()), checks, func() {
			if err := svc.Close(); err != nil {
				log.Error("close redis", zap.Error(err))
			}
		}, nil

	case config.StorePostgres:
		db, err := database.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, noop, err
		}
		closeDB := func() {
			if err := db.Close(); err != nil {
				log.Error("close database", zap.Error(err))
			}
		}

		if err := migrateUp(cfg); err != nil {
			closeDB()
			return nil, nil, noop, err
		}

		s, err := database.NewLedgerStore(db.Pool())
		if err != nil {
			closeDB()
			return nil, nil, noop, err
		}
		checks := map[string]server.HealthCheck{"database": db.Health}
		return s, checks, closeDB, nil
	}
	return nil, nil, noop, fmt.Errorf("unknown store %q", cfg.Store)
}

// migrateUp applies pending migrations over a short-lived database/sql
// handle, which golang-migrate requires.
func migrateUp(cfg *config.Config) error {
	sqlDB, err := sql.Open("pgx", cfg.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("open migration db: %w", err)
	}
	defer sqlDB.Close()
	return database.RunMigrations(sqlDB, cfg.MigrationsPath)
}

// newSource picks the outcome generator. hmac mode logs the server seed
// commitment; revealSeed publishes the seed itself on shutdown.
func newSource(mode string, log *zap.Logger) (game.Source, error) {
	switch mode {
	case "", "math":
		return game.NewMathSource(), nil
	case "hmac":
		src, err := game.NewRandomHMACSource()
		if err != nil {
			return nil, err
		}
		log.Info("provably fair source ready", zap.String("commitment", src.Commitment()))
		return src, nil
	}
	return nil, errors.New("RNG_MODE must be math or hmac")
}

// revealSeed rotates an hmac source and logs the retired server seed next to
// its commitment, so rounds played under it can be checked. Other sources are
// left alone.
func revealSeed(src game.Source, log *zap.Logger) error {
	hs, ok := src.(*game.HMACSource)
	if !ok {
		return nil
	}
	prev, err := hs.Rotate()
	if err != nil {
		return fmt.Errorf("rotate seed: %w", err)
	}
	log.Info("server seed revealed",
		zap.String("seed", prev),
		zap.String("commitment", game.HashCommitment(prev)),
		zap.String("next_commitment", hs.Commitment()))
	return nil
}
