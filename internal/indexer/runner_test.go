package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"xstaking/internal/chain"
	"xstaking/internal/events"
	"xstaking/internal/metrics"
	"xstaking/internal/storage"
)

const testProgram = "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS"

type fakeTx struct {
	sig    string
	slot   uint64
	failed bool
	data   [][]byte
}

// fakeSource serves a fixed history, newest last in txs.
type fakeSource struct {
	txs          []fakeTx
	failSigsOnce bool
	sigCalls     int
	limits       []int
}

func (f *fakeSource) GetSignaturesForAddress(_ context.Context, _ string, q chain.SignatureQuery) ([]chain.SignatureInfo, error) {
	f.sigCalls++
	f.limits = append(f.limits, q.Limit)
	if f.failSigsOnce {
		f.failSigsOnce = false
		return nil, errors.New("429 too many requests")
	}
	var out []chain.SignatureInfo
	started := q.Before == ""
	for i := len(f.txs) - 1; i >= 0; i-- {
		tx := f.txs[i]
		if tx.sig == q.Until {
			break
		}
		if !started {
			if tx.sig == q.Before {
				started = true
			}
			continue
		}
		info := chain.SignatureInfo{Signature: tx.sig, Slot: tx.slot, Err: json.RawMessage("null")}
		if tx.failed {
			info.Err = json.RawMessage(`{"InstructionError":[0,{"Custom":1}]}`)
		}
		out = append(out, info)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeSource) GetTransactions(_ context.Context, sigs []string) ([]*chain.Transaction, error) {
	out := make([]*chain.Transaction, len(sigs))
	for i, sig := range sigs {
		for _, tx := range f.txs {
			if tx.sig != sig {
				continue
			}
			logs := []string{"Program " + testProgram + " invoke [1]"}
			for _, d := range tx.data {
				logs = append(logs, events.FormatLogLine(d))
			}
			logs = append(logs, "Program "+testProgram+" success")
			raw, _ := json.Marshal(map[string]interface{}{
				"slot": tx.slot,
				"meta": map[string]interface{}{"err": nil, "logMessages": logs},
			})
			var decoded chain.Transaction
			if err := json.Unmarshal(raw, &decoded); err != nil {
				return nil, err
			}
			out[i] = &decoded
		}
	}
	return out, nil
}

func TestRunnerIndexesOldestFirstAndResumes(t *testing.T) {
	src := &fakeSource{
		failSigsOnce: true,
		txs: []fakeTx{
			{sig: "s1", slot: 10, data: [][]byte{[]byte("a")}},
			{sig: "s2", slot: 11, failed: true},
			{sig: "s3", slot: 12, data: [][]byte{[]byte("b"), []byte("c")}},
			{sig: "s4", slot: 13, data: [][]byte{[]byte("d")}},
		},
	}
	sink := storage.NewMemoryStorage()
	cpPath := filepath.Join(t.TempDir(), "checkpoint.json")
	cfg := RunConfig{
		ProgramID:         testProgram,
		PageSize:          2,
		BatchSize:         2,
		CheckpointPath:    cpPath,
		CheckpointEnabled: true,
		MaxRetries:        2,
		RetryBackoff:      1,
	}

	if err := NewRunner(cfg, src, sink, metrics.New(), nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := sink.Records()
	wantKeys := []string{"s1:0", "s3:0", "s3:1", "s4:0"}
	if len(got) != len(wantKeys) {
		t.Fatalf("records %d, want %d: %+v", len(got), len(wantKeys), got)
	}
	for i, key := range wantKeys {
		if got[i].Key() != key {
			t.Fatalf("record %d key %s, want %s", i, got[i].Key(), key)
		}
	}

	cp, ok, err := NewCheckpointStore(cpPath, true).Load()
	if err != nil || !ok || cp.LastSignature != "s4" || cp.LastSlot != 13 {
		t.Fatalf("checkpoint mismatch: %+v ok=%v err=%v", cp, ok, err)
	}

	src.txs = append(src.txs, fakeTx{sig: "s5", slot: 14, data: [][]byte{[]byte("e")}})
	if err := NewRunner(cfg, src, sink, metrics.New(), nil).Run(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	got = sink.Records()
	if len(got) != 5 || got[4].Key() != "s5:0" {
		t.Fatalf("resume did not pick up only new tx: %+v", got)
	}
}

func TestRunnerFromSlot(t *testing.T) {
	src := &fakeSource{txs: []fakeTx{
		{sig: "old", slot: 5, data: [][]byte{[]byte("x")}},
		{sig: "new", slot: 20, data: [][]byte{[]byte("y")}},
	}}
	sink := storage.NewMemoryStorage()
	cfg := RunConfig{ProgramID: testProgram, FromSlot: 10, PageSize: 10, BatchSize: 10}

	if err := NewRunner(cfg, src, sink, nil, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := sink.Records()
	if len(got) != 1 || got[0].Signature != "new" {
		t.Fatalf("from-slot filter failed: %+v", got)
	}
}

func TestRunnerValidates(t *testing.T) {
	r := NewRunner(RunConfig{ProgramID: testProgram}, &fakeSource{}, storage.NewMemoryStorage(), nil, nil)
	if err := r.Run(context.Background()); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}

func TestRunnerClampsPageSize(t *testing.T) {
	src := &fakeSource{txs: []fakeTx{{sig: "s1", slot: 10, data: [][]byte{[]byte("a")}}}}
	cfg := RunConfig{ProgramID: testProgram, PageSize: 5000, BatchSize: 10}

	if err := NewRunner(cfg, src, storage.NewMemoryStorage(), nil, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(src.limits) == 0 {
		t.Fatalf("no signature pages requested")
	}
	for _, limit := range src.limits {
		if limit != maxSignaturePage {
			t.Fatalf("page limit %d, want %d", limit, maxSignaturePage)
		}
	}
}
