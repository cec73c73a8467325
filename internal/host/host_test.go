package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"xstaking/internal/events"
	"xstaking/internal/metrics"
	"xstaking/internal/pubkey"
	"xstaking/internal/storage"
)

var (
	programID = pubkey.FromSeed("x-staking")
	accountA  = pubkey.FromSeed("account-a")
)

func fixedClock() time.Time {
	return time.Unix(1700000000, 0)
}

func newTestHost(sink storage.Storage) *Host {
	return New(Config{ProgramID: programID, StartSlot: 100, Clock: fixedClock}, sink, metrics.New(), nil)
}

func TestExecuteCommitsWritesAndLogsTogether(t *testing.T) {
	sink := storage.NewMemoryStorage()
	h := newTestHost(sink)

	receipt, err := h.Execute(context.Background(), "write", func(tx *Context) error {
		tx.SetAccount(accountA, []byte{1, 2, 3})
		if data, ok := tx.Account(accountA); !ok || len(data) != 3 {
			t.Fatalf("pending write not visible inside transaction")
		}
		if err := tx.LogData([]byte("first")); err != nil {
			return err
		}
		return tx.LogData([]byte("second"))
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if receipt.Slot != 100 || h.Slot() != 101 {
		t.Fatalf("slot mismatch: receipt=%d host=%d", receipt.Slot, h.Slot())
	}
	if data, ok := h.Account(accountA); !ok || len(data) != 3 {
		t.Fatalf("account not committed")
	}

	logs := h.Logs()
	if len(logs) != 2 || logs[0].LogIndex != 0 || logs[1].LogIndex != 1 {
		t.Fatalf("unexpected stream: %+v", logs)
	}
	if logs[0].Signature != receipt.Signature || logs[0].BlockTime != 1700000000 {
		t.Fatalf("record metadata mismatch: %+v", logs[0])
	}
	if logs[0].ProgramID != programID.String() {
		t.Fatalf("program id mismatch: %s", logs[0].ProgramID)
	}
	if got := sink.Records(); len(got) != 2 {
		t.Fatalf("sink received %d records", len(got))
	}
}

func TestExecuteFailureCommitsNothing(t *testing.T) {
	sink := storage.NewMemoryStorage()
	h := newTestHost(sink)
	boom := errors.New("boom")

	_, err := h.Execute(context.Background(), "fail", func(tx *Context) error {
		tx.SetAccount(accountA, []byte{9})
		if err := tx.LogData([]byte("never")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if _, ok := h.Account(accountA); ok {
		t.Fatalf("failed transaction wrote account")
	}
	if len(h.Logs()) != 0 || len(sink.Records()) != 0 {
		t.Fatalf("failed transaction logged records")
	}
	if h.Slot() != 100 {
		t.Fatalf("slot advanced on failure: %d", h.Slot())
	}
}

func TestExecuteSinkFailureAbortsTransaction(t *testing.T) {
	sink := storage.NewMemoryStorage()
	sink.FailWith(errors.New("disk full"))
	h := newTestHost(sink)

	_, err := h.Execute(context.Background(), "write", func(tx *Context) error {
		tx.SetAccount(accountA, []byte{1})
		return tx.LogData([]byte("record"))
	})
	if !errors.Is(err, ErrLogAppend) {
		t.Fatalf("expected ErrLogAppend, got %v", err)
	}
	if _, ok := h.Account(accountA); ok {
		t.Fatalf("account committed despite log failure")
	}
	if len(h.Logs()) != 0 {
		t.Fatalf("stream grew despite log failure")
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	h := newTestHost(nil)
	_, err := h.Execute(context.Background(), "panic", func(tx *Context) error {
		tx.SetAccount(accountA, []byte{1})
		panic("arithmetic overflow")
	})
	if !errors.Is(err, ErrHandlerPanic) {
		t.Fatalf("expected ErrHandlerPanic, got %v", err)
	}
	if _, ok := h.Account(accountA); ok {
		t.Fatalf("panicking transaction wrote account")
	}
}

func TestLogLimit(t *testing.T) {
	h := newTestHost(nil)
	_, err := h.Execute(context.Background(), "spam", func(tx *Context) error {
		return tx.LogData(make([]byte, MaxLogBytes+1))
	})
	if !errors.Is(err, ErrLogLimit) {
		t.Fatalf("expected ErrLogLimit, got %v", err)
	}
}

func TestContextIsEventSink(t *testing.T) {
	var _ events.Sink = (*Context)(nil)
}

func TestExecuteCancelled(t *testing.T) {
	h := newTestHost(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	_, err := h.Execute(ctx, "noop", func(*Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("cancelled context should not run handler: err=%v called=%v", err, called)
	}
}

func TestSignaturesAreUnique(t *testing.T) {
	h := newTestHost(nil)
	seen := map[string]struct{}{}
	for i := 0; i < 5; i++ {
		receipt, err := h.Execute(context.Background(), "noop", func(*Context) error { return nil })
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if _, ok := seen[receipt.Signature]; ok {
			t.Fatalf("duplicate signature %s", receipt.Signature)
		}
		if _, err := solana.SignatureFromBase58(receipt.Signature); err != nil {
			t.Fatalf("signature %s is not a transaction signature: %v", receipt.Signature, err)
		}
		seen[receipt.Signature] = struct{}{}
	}
}
