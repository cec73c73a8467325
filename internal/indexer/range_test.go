package indexer

import (
	"reflect"
	"testing"
)

func TestSplitBatches(t *testing.T) {
	got, err := SplitBatches([]string{"a", "b", "c", "d", "e"}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := [][]string{{"a", "b"}, {"c", "d"}, {"e"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("batches mismatch: %+v != %+v", got, want)
	}
}

func TestSplitBatchesSingle(t *testing.T) {
	got, err := SplitBatches([]string{"a"}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := [][]string{{"a"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("batches mismatch: %+v != %+v", got, want)
	}
}

func TestSplitBatchesInvalid(t *testing.T) {
	if _, err := SplitBatches([]string{"a"}, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
	got, err := SplitBatches(nil, 3)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty input: %+v %v", got, err)
	}
}
