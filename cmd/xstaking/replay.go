package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"xstaking/internal/config"
	"xstaking/internal/ledger"
	"xstaking/internal/metrics"
	"xstaking/internal/storage/postgres"
)

const replayStateName = "replay"

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		sink       ledger.Store
		stateStore ledger.StateStore
	)
	if cfg.StateFile != "" {
		stateStore = &ledger.FileStateStore{Path: cfg.StateFile}
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sink = store
		if stateStore == nil {
			stateStore = &ledger.DBStateStore{Store: store, Name: replayStateName}
		}
	}

	l := ledger.New(cfg.Strict, metrics.Default(), logger)
	replayer := ledger.NewReplayer(ledger.Config{
		BatchSize:  cfg.BatchSize,
		StateStore: stateStore,
	}, l, sink, logger)

	logger.Info("replay start",
		zap.String("input", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Int("batch_size", cfg.BatchSize),
		zap.String("state_file", cfg.StateFile),
		zap.Bool("strict", cfg.Strict),
	)

	summary, err := replayer.Run(ctx, cfg.Input)
	if err != nil {
		return err
	}

	for _, snap := range l.Snapshots() {
		logger.Info("treasury",
			zap.String("treasury", snap.Treasury),
			zap.Uint64("balance", snap.Balance),
			zap.Int("depositors", snap.Depositors),
			zap.Uint64("deposits", snap.TotalDeposits),
			zap.Uint64("claims", snap.TotalClaims),
		)
	}
	if summary.Violations > 0 {
		return fmt.Errorf("%d invariant violations in %s", summary.Violations, cfg.Input)
	}
	return nil
}
