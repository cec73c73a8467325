// Package host is an in-process program runtime: it executes one instruction at a
// time against a transactional account store and commits account writes together
// with the records the instruction logged.
package host

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"xstaking/internal/events"
	"xstaking/internal/metrics"
	"xstaking/internal/model"
	"xstaking/internal/pubkey"
	"xstaking/internal/storage"
)

// MaxLogBytes bounds the program data one transaction may log.
const MaxLogBytes = 10_000

var (
	// ErrLogLimit is returned by Context.LogData when the transaction log is full.
	ErrLogLimit = errors.New("log limit exceeded")
	// ErrLogAppend wraps a failure to hand committed records to the stream sink.
	ErrLogAppend = errors.New("log stream append failed")
	// ErrHandlerPanic is returned when an instruction handler panics.
	ErrHandlerPanic = errors.New("instruction handler panicked")
)

// Config configures a Host.
type Config struct {
	ProgramID pubkey.Pubkey
	StartSlot uint64
	Clock     func() time.Time
}

// Handler runs one instruction against a transaction context.
type Handler func(tx *Context) error

// Receipt describes a committed transaction.
type Receipt struct {
	Signature string
	Slot      uint64
	Logs      []model.LogRecord
}

// Host serialises transactions over a single account set.
type Host struct {
	mu        sync.Mutex
	programID pubkey.Pubkey
	accounts  map[pubkey.Pubkey][]byte
	slot      uint64
	seq       uint64
	clock     func() time.Time
	storage   storage.Storage
	stream    []model.LogRecord
	metrics   *metrics.Registry
	logger    *zap.Logger
}

// New builds a Host. sink receives every committed batch; it may be nil.
func New(cfg Config, sink storage.Storage, reg *metrics.Registry, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Host{
		programID: cfg.ProgramID,
		accounts:  make(map[pubkey.Pubkey][]byte),
		slot:      cfg.StartSlot,
		clock:     clock,
		storage:   sink,
		metrics:   reg,
		logger:    logger,
	}
}

func (h *Host) ProgramID() pubkey.Pubkey {
	return h.programID
}

// Slot returns the slot the next transaction executes in.
func (h *Host) Slot() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.slot
}

// Account returns a copy of committed account data.
func (h *Host) Account(key pubkey.Pubkey) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.accounts[key]
	if !ok {
		return nil, false
	}
	return cloneBytes(data), true
}

// Logs returns the committed log stream in order.
func (h *Host) Logs() []model.LogRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.LogRecord, len(h.stream))
	copy(out, h.stream)
	return out
}

// Execute runs handler in its own transaction. On any error nothing is committed:
// no account writes and no log records.
func (h *Host) Execute(ctx context.Context, instruction string, handler Handler) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.clock()
	tx := &Context{
		host:          h,
		writes:        make(map[pubkey.Pubkey][]byte),
		Slot:          h.slot,
		UnixTimestamp: now.Unix(),
	}

	if err := runHandler(handler, tx); err != nil {
		h.metrics.ObserveInstruction(instruction, "failed")
		h.logger.Debug("instruction failed",
			zap.String("instruction", instruction),
			zap.Uint64("slot", tx.Slot),
			zap.Error(err),
		)
		return Receipt{}, err
	}

	h.seq++
	signature := h.signature(tx.Slot, h.seq)
	ingestedAt := now.UTC().Format(time.RFC3339Nano)
	records := make([]model.LogRecord, 0, len(tx.logs))
	for i, data := range tx.logs {
		records = append(records, model.LogRecord{
			Slot:       tx.Slot,
			BlockTime:  tx.UnixTimestamp,
			Signature:  signature,
			LogIndex:   uint64(i),
			ProgramID:  h.programID.String(),
			Data:       base64.StdEncoding.EncodeToString(data),
			IngestedAt: ingestedAt,
		})
	}

	if h.storage != nil && len(records) > 0 {
		if err := h.storage.PutLogBatch(records); err != nil {
			h.metrics.ObserveInstruction(instruction, "failed")
			h.logger.Error("log stream append failed",
				zap.String("instruction", instruction),
				zap.String("signature", signature),
				zap.Error(err),
			)
			return Receipt{}, fmt.Errorf("%w: %v", ErrLogAppend, err)
		}
	}

	for key, data := range tx.writes {
		h.accounts[key] = data
	}
	h.stream = append(h.stream, records...)
	h.slot++

	h.metrics.ObserveInstruction(instruction, "ok")
	for _, data := range tx.logs {
		if ev, err := events.Decode(data); err == nil {
			h.metrics.ObserveCommittedEvent(ev.EventName())
		}
	}
	h.logger.Debug("instruction committed",
		zap.String("instruction", instruction),
		zap.String("signature", signature),
		zap.Uint64("slot", tx.Slot),
		zap.Int("records", len(records)),
	)

	return Receipt{Signature: signature, Slot: tx.Slot, Logs: records}, nil
}

func runHandler(handler Handler, tx *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return handler(tx)
}

func (h *Host) signature(slot, seq uint64) string {
	var buf [pubkey.Size + 16]byte
	copy(buf[:], h.programID[:])
	binary.LittleEndian.PutUint64(buf[pubkey.Size:], slot)
	binary.LittleEndian.PutUint64(buf[pubkey.Size+8:], seq)
	sum := sha512.Sum512(buf[:])
	return solana.SignatureFromBytes(sum[:]).String()
}

// Context is the view of one in-flight transaction.
type Context struct {
	host     *Host
	writes   map[pubkey.Pubkey][]byte
	logs     [][]byte
	logBytes int

	Slot          uint64
	UnixTimestamp int64
}

func (c *Context) ProgramID() pubkey.Pubkey {
	return c.host.programID
}

// Account reads through pending writes to committed state.
func (c *Context) Account(key pubkey.Pubkey) ([]byte, bool) {
	if data, ok := c.writes[key]; ok {
		return cloneBytes(data), true
	}
	data, ok := c.host.accounts[key]
	if !ok {
		return nil, false
	}
	return cloneBytes(data), true
}

// SetAccount stages a write that becomes visible only on commit.
func (c *Context) SetAccount(key pubkey.Pubkey, data []byte) {
	c.writes[key] = cloneBytes(data)
}

// LogData implements events.Sink for the transaction log.
func (c *Context) LogData(data []byte) error {
	if c.logBytes+len(data) > MaxLogBytes {
		return fmt.Errorf("%w: %d bytes", ErrLogLimit, c.logBytes+len(data))
	}
	c.logs = append(c.logs, cloneBytes(data))
	c.logBytes += len(data)
	return nil
}

func cloneBytes(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
