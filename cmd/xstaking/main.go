package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"xstaking/internal/config"
	"xstaking/internal/metrics"
)

func main() {
	root := &cobra.Command{
		Use:          "xstaking",
		Short:        "x-staking event stream tooling",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-file", "", "optional rotating log file")
	root.PersistentFlags().Int("log-max-size", 100, "log file size in MB before rotation")
	root.PersistentFlags().Int("log-max-backups", 5, "rotated log files to keep")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run an instruction scenario on an in-process host",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("scenario", "", "scenario YAML path")
	simulateCmd.Flags().String("out", "./data/logs.jsonl", "output log records JSONL")
	simulateCmd.Flags().String("program-id", "", "program address (base58), defaults to a derived test address")
	simulateCmd.Flags().Uint64("start-slot", 1, "slot of the first transaction")
	simulateCmd.Flags().String("start-time", "", "clock start (unix seconds or RFC3339), defaults to now")
	simulateCmd.Flags().Duration("slot-time", 400*time.Millisecond, "clock advance per transaction")

	root.AddCommand(simulateCmd)

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Pull program data records from a Solana RPC node",
		RunE:  runIndex,
	}

	indexCmd.Flags().String("rpc", "", "Solana RPC URL")
	indexCmd.Flags().String("commitment", "finalized", "commitment level")
	indexCmd.Flags().String("program-id", "", "x-staking program address (base58)")
	indexCmd.Flags().Uint64("from-slot", 0, "ignore transactions before this slot")
	indexCmd.Flags().Int("page-size", 1000, "signatures per getSignaturesForAddress page")
	indexCmd.Flags().Int("batch-size", 100, "transactions per batch")
	indexCmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	indexCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	indexCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	indexCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	indexCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	indexCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(indexCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw log records into typed events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "", "input log records JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("program-id", "", "only decode records of this program")

	root.AddCommand(decodeCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild treasury state from typed events and verify the stream",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("in", "", "input typed events JSONL")
	replayCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for events and snapshots")
	replayCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	replayCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	replayCmd.Flags().Bool("strict", false, "stop at the first invariant violation")

	root.AddCommand(replayCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, err
	}

	if cfg.File == "" {
		zcfg := zap.NewProductionConfig()
		zcfg.Level = level
		zcfg.EncoderConfig.TimeKey = "ts"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return zcfg.Build()
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}
	sink := zapcore.NewMultiWriteSyncer(zapcore.AddSync(rotator), zapcore.Lock(os.Stderr))
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, level)
	return zap.New(core, zap.AddCaller()), nil
}

// serveMetrics exposes reg until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg *metrics.Registry, logger *zap.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
