package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"xstaking/internal/config"
	"xstaking/internal/host"
	"xstaking/internal/metrics"
	"xstaking/internal/program"
	"xstaking/internal/pubkey"
	"xstaking/internal/scenario"
	"xstaking/internal/storage"
)

// defaultProgramLabel seeds the program address when none is configured.
const defaultProgramLabel = "x-staking"

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Scenario == "" {
		return fmt.Errorf("scenario path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}

	programID := pubkey.FromSeed(defaultProgramLabel)
	if cfg.ProgramID != "" {
		programID, err = pubkey.Parse(cfg.ProgramID)
		if err != nil {
			return fmt.Errorf("invalid program id: %w", err)
		}
	}

	start, err := config.ParseTimestamp(cfg.StartTime)
	if err != nil {
		return fmt.Errorf("parse start-time: %w", err)
	}
	if start.IsZero() {
		start = time.Now().UTC()
	}

	sc, err := scenario.Load(cfg.Scenario)
	if err != nil {
		return err
	}

	if err := os.Remove(cfg.Out); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reset output: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := host.New(host.Config{
		ProgramID: programID,
		StartSlot: cfg.StartSlot,
		Clock:     scenario.SteppedClock(start, cfg.SlotTime),
	}, storage.NewJsonlStorage(cfg.Out), metrics.Default(), logger)

	runner := scenario.NewRunner(program.New(h, logger), logger)

	logger.Info("simulate start",
		zap.String("scenario", cfg.Scenario),
		zap.String("name", sc.Name),
		zap.Int("steps", len(sc.Steps)),
		zap.String("program_id", programID.String()),
		zap.Uint64("start_slot", cfg.StartSlot),
		zap.String("out", cfg.Out),
	)

	res, err := runner.Run(ctx, sc)
	if err != nil {
		return err
	}

	logger.Info("simulate complete",
		zap.Int("committed", res.Committed),
		zap.Int("rejected", res.Rejected),
		zap.Int("events", res.Events),
		zap.Uint64("next_slot", h.Slot()),
	)
	return nil
}
