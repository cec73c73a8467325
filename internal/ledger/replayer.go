package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"xstaking/internal/model"
)

// Store receives replay output.
type Store interface {
	InsertEvents(ctx context.Context, events []model.TypedEventRecord) error
	UpsertTreasuries(ctx context.Context, snapshots []model.TreasurySnapshot) error
}

// Config controls replay behavior.
type Config struct {
	BatchSize  int
	StateStore StateStore
}

// Summary reports one replay pass.
type Summary struct {
	Total      int
	Applied    int
	Persisted  int
	Failed     int
	Violations int
	Treasuries int
}

// Replayer streams a typed events file through a Ledger and persists events and
// snapshots. Everything is replayed on each run; the state store only decides
// which events still need to be written.
type Replayer struct {
	cfg    Config
	ledger *Ledger
	store  Store
	logger *zap.Logger
}

func NewReplayer(cfg Config, ledger *Ledger, store Store, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &Replayer{cfg: cfg, ledger: ledger, store: store, logger: logger}
}

// Run replays the typed events JSONL at inputPath.
func (r *Replayer) Run(ctx context.Context, inputPath string) (Summary, error) {
	var summary Summary
	if r.ledger == nil {
		return summary, fmt.Errorf("ledger is nil")
	}

	var persisted Cursor
	if r.cfg.StateStore != nil {
		cur, ok, err := r.cfg.StateStore.Load(ctx)
		if err != nil {
			return summary, fmt.Errorf("load state: %w", err)
		}
		if ok {
			persisted = cur
			r.logger.Info("resume persistence", zap.String("signature", cur.Signature), zap.Uint64("slot", cur.Slot))
		}
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return summary, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.TypedEventRecord, 0, r.cfg.BatchSize)
	pastPersisted := persisted.IsZero()
	var last Cursor

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		summary.Total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			summary.Failed++
			r.logger.Warn("decode typed event", zap.Error(err))
			continue
		}

		if err := r.ledger.Apply(record); err != nil {
			return summary, err
		}
		summary.Applied++

		cur := Cursor{Slot: record.Slot, Signature: record.Signature, LogIndex: record.LogIndex}
		if !pastPersisted {
			if cur == persisted {
				pastPersisted = true
			}
			continue
		}
		if r.store == nil {
			continue
		}
		batch = append(batch, record)
		last = cur
		if len(batch) >= r.cfg.BatchSize {
			if err := r.flush(ctx, batch, last); err != nil {
				return summary, err
			}
			summary.Persisted += len(batch)
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("scan input: %w", err)
	}

	if !pastPersisted {
		r.logger.Warn("persisted cursor not found in input", zap.String("signature", persisted.Signature))
	}

	if r.store != nil {
		if len(batch) > 0 {
			if err := r.flush(ctx, batch, last); err != nil {
				return summary, err
			}
			summary.Persisted += len(batch)
		}
		if err := r.store.UpsertTreasuries(ctx, r.ledger.Snapshots()); err != nil {
			return summary, fmt.Errorf("upsert treasuries: %w", err)
		}
	}

	summary.Violations = len(r.ledger.Violations())
	summary.Treasuries = len(r.ledger.Snapshots())

	r.logger.Info("replay complete",
		zap.Int("total", summary.Total),
		zap.Int("applied", summary.Applied),
		zap.Int("persisted", summary.Persisted),
		zap.Int("failed", summary.Failed),
		zap.Int("violations", summary.Violations),
		zap.Int("treasuries", summary.Treasuries),
	)
	return summary, nil
}

func (r *Replayer) flush(ctx context.Context, batch []model.TypedEventRecord, last Cursor) error {
	if err := r.store.InsertEvents(ctx, batch); err != nil {
		return fmt.Errorf("insert events: %w", err)
	}
	if r.cfg.StateStore != nil {
		if err := r.cfg.StateStore.Save(ctx, last); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}
	return nil
}
