package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"xstaking/internal/chain"
	"xstaking/internal/metrics"
	"xstaking/internal/model"
	"xstaking/internal/storage"
)

// maxSignaturePage is the largest limit getSignaturesForAddress accepts.
const maxSignaturePage = 1000

// Source is the slice of the RPC API the runner consumes.
type Source interface {
	GetSignaturesForAddress(ctx context.Context, address string, q chain.SignatureQuery) ([]chain.SignatureInfo, error)
	GetTransactions(ctx context.Context, signatures []string) ([]*chain.Transaction, error)
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	ProgramID         string
	FromSlot          uint64
	PageSize          int
	BatchSize         int
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Runner pulls committed program transactions and writes their program data
// records to storage, oldest first.
type Runner struct {
	cfg        RunConfig
	source     Source
	storage    storage.Storage
	metrics    *metrics.Registry
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, source Source, storageSink storage.Storage, reg *metrics.Registry, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 || cfg.PageSize > maxSignaturePage {
		cfg.PageSize = maxSignaturePage
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		storage:    storageSink,
		metrics:    reg,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run executes one sync pass up to the node's current tip.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("chain source is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize <= 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.ProgramID == "" {
		return fmt.Errorf("program id is required")
	}

	var until string
	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return err
	}
	if ok {
		until = cp.LastSignature
		r.logger.Info("resume from checkpoint", zap.String("last_signature", cp.LastSignature), zap.Uint64("last_slot", cp.LastSlot))
	}

	pending, err := r.collectSignatures(ctx, until)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		r.logger.Info("nothing to sync", zap.String("until", until))
		return nil
	}

	slots := make(map[string]uint64, len(pending))
	sigs := make([]string, 0, len(pending))
	for _, info := range pending {
		slots[info.Signature] = info.Slot
		sigs = append(sigs, info.Signature)
	}

	batches, err := SplitBatches(sigs, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, batch := range batches {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		txs, err := r.getTransactionsWithRetry(ctx, batch)
		if err != nil {
			return fmt.Errorf("get transactions: %w", err)
		}

		ingestedAt := time.Now().UTC()
		records := make([]model.LogRecord, 0, len(batch))
		for i, tx := range txs {
			sig := batch[i]
			if tx == nil {
				return fmt.Errorf("transaction %s not available", sig)
			}
			if tx.Failed() {
				r.metrics.ObserveSkippedTransaction()
				continue
			}
			payloads, err := chain.ProgramData(tx.Logs(), r.cfg.ProgramID)
			if err != nil {
				return fmt.Errorf("transaction %s: %w", sig, err)
			}
			var blockTime int64
			if tx.BlockTime != nil {
				blockTime = *tx.BlockTime
			}
			for _, rec := range buildLogRecords(r.cfg.ProgramID, sig, tx.Slot, blockTime, payloads, ingestedAt) {
				if r.isDuplicate(rec) {
					continue
				}
				records = append(records, rec)
			}
		}

		if err := r.storage.PutLogBatch(records); err != nil {
			return fmt.Errorf("store logs: %w", err)
		}

		last := batch[len(batch)-1]
		if err := r.checkpoint.Save(last, slots[last]); err != nil {
			return err
		}
		r.metrics.ObserveIndexed(len(records), slots[last])

		r.logger.Info("batch complete",
			zap.Int("transactions", len(batch)),
			zap.Int("records", len(records)),
			zap.String("last_signature", last),
			zap.Uint64("last_slot", slots[last]),
		)
	}

	return nil
}

// collectSignatures pages back from the tip to until and returns committed
// transactions oldest first.
func (r *Runner) collectSignatures(ctx context.Context, until string) ([]chain.SignatureInfo, error) {
	var newestFirst []chain.SignatureInfo
	before := ""
	for {
		page, err := r.signaturesWithRetry(ctx, chain.SignatureQuery{Before: before, Until: until, Limit: r.cfg.PageSize})
		if err != nil {
			return nil, fmt.Errorf("get signatures: %w", err)
		}
		reachedFrom := false
		for _, info := range page {
			if info.Slot < r.cfg.FromSlot {
				reachedFrom = true
				break
			}
			if info.Failed() {
				r.metrics.ObserveSkippedTransaction()
				continue
			}
			newestFirst = append(newestFirst, info)
		}
		r.logger.Debug("signature page", zap.Int("size", len(page)), zap.String("before", before))
		if reachedFrom || len(page) < r.cfg.PageSize {
			break
		}
		before = page[len(page)-1].Signature
	}

	out := make([]chain.SignatureInfo, len(newestFirst))
	for i, info := range newestFirst {
		out[len(newestFirst)-1-i] = info
	}
	return out, nil
}

func (r *Runner) signaturesWithRetry(ctx context.Context, q chain.SignatureQuery) ([]chain.SignatureInfo, error) {
	var page []chain.SignatureInfo
	logger := r.logger.With(zap.String("before", q.Before))
	err := withRetry(ctx, logger, "getSignaturesForAddress", r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		page, err = r.source.GetSignaturesForAddress(ctx, r.cfg.ProgramID, q)
		return err
	})
	return page, err
}

func (r *Runner) getTransactionsWithRetry(ctx context.Context, sigs []string) ([]*chain.Transaction, error) {
	var txs []*chain.Transaction
	logger := r.logger.With(zap.Int("count", len(sigs)))
	err := withRetry(ctx, logger, "getTransaction", r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		txs, err = r.source.GetTransactions(ctx, sigs)
		if err != nil {
			return err
		}
		if len(txs) != len(sigs) {
			return fmt.Errorf("got %d transactions for %d signatures", len(txs), len(sigs))
		}
		return nil
	})
	return txs, err
}

func (r *Runner) isDuplicate(rec model.LogRecord) bool {
	id := rec.Key()
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
