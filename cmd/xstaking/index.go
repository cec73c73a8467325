package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"xstaking/internal/chain"
	"xstaking/internal/config"
	"xstaking/internal/indexer"
	"xstaking/internal/metrics"
	"xstaking/internal/storage"
)

func runIndex(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	programID, err := indexer.ParseProgramID(cfg.ProgramID)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.Default()
	serveMetrics(ctx, cfg.MetricsAddr, reg, logger)

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.Commitment)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	tip, err := chainClient.GetSlot(ctx)
	if err != nil {
		return fmt.Errorf("get slot: %w", err)
	}

	storageSink := storage.NewJsonlStorage(cfg.Out)

	runner := indexer.NewRunner(indexer.RunConfig{
		ProgramID:         programID.String(),
		FromSlot:          cfg.FromSlot,
		PageSize:          cfg.PageSize,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, storageSink, reg, logger)

	logger.Info("indexer start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("commitment", cfg.Commitment),
		zap.String("program_id", programID.String()),
		zap.Uint64("tip_slot", tip),
		zap.Uint64("from_slot", cfg.FromSlot),
		zap.Int("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	return runner.Run(ctx)
}
