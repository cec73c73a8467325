package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"xstaking/internal/model"
)

type fakeStore struct {
	events    []model.TypedEventRecord
	snapshots []model.TreasurySnapshot
}

func (s *fakeStore) InsertEvents(ctx context.Context, events []model.TypedEventRecord) error {
	s.events = append(s.events, events...)
	return nil
}

func (s *fakeStore) UpsertTreasuries(ctx context.Context, snapshots []model.TreasurySnapshot) error {
	s.snapshots = snapshots
	return nil
}

func writeTypedEvents(t *testing.T, path string, records []model.TypedEventRecord) {
	t.Helper()
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create input: %v", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("marshal record: %v", err)
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush input: %v", err)
	}
}

func TestReplayerPersistsAndResumes(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "typed_events.jsonl")
	records := []model.TypedEventRecord{
		created(t, 1),
		deposited(t, 2, "100", "100", "100"),
		claimed(t, 3, "40", "60", "60"),
	}
	writeTypedEvents(t, input, records)

	state := &FileStateStore{Path: filepath.Join(dir, "state", "replay.json")}
	store := &fakeStore{}
	r := NewReplayer(Config{BatchSize: 2, StateStore: state}, New(true, nil, nil), store, nil)

	summary, err := r.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Total != 3 || summary.Applied != 3 || summary.Persisted != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Treasuries != 1 || summary.Violations != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(store.snapshots) != 1 || store.snapshots[0].Balance != 60 {
		t.Fatalf("unexpected snapshots: %+v", store.snapshots)
	}

	cur, ok, err := state.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load state: %v %v", ok, err)
	}
	if cur.Signature != "sig-claim" || cur.Slot != 3 {
		t.Fatalf("unexpected cursor: %+v", cur)
	}

	// A second run over the same input rebuilds state but writes nothing new.
	store2 := &fakeStore{}
	r2 := NewReplayer(Config{StateStore: state}, New(true, nil, nil), store2, nil)
	summary, err = r2.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if summary.Applied != 3 || summary.Persisted != 0 || len(store2.events) != 0 {
		t.Fatalf("expected no new events, got %+v", summary)
	}
	if len(store2.snapshots) != 1 || store2.snapshots[0].Balance != 60 {
		t.Fatalf("snapshots should be rebuilt: %+v", store2.snapshots)
	}
}

func TestReplayerSkipsBadLines(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "typed_events.jsonl")
	line, err := json.Marshal(created(t, 1))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	content := string(line) + "\n\nnot json\n"
	if err := os.WriteFile(input, []byte(content), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	r := NewReplayer(Config{}, New(false, nil, nil), nil, nil)
	summary, err := r.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Total != 2 || summary.Applied != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
