package ledger

import (
	"testing"
	"time"
)

func TestMergeIsIdempotent(t *testing.T) {
	t.Parallel()
	l := New()
	at := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	if added := l.Merge([]string{"a", "b", ""}, at); added != 2 {
		t.Fatalf("added = %d, want 2", added)
	}
	if added := l.Merge([]string{"a", "b"}, at.Add(time.Hour)); added != 0 {
		t.Fatalf("re-merge added = %d, want 0", added)
	}
	if got, _ := l.NotifiedAt("a"); !got.Equal(at) {
		t.Fatalf("re-merge moved the stamp to %v", got)
	}
	if l.Len() != 2 {
		t.Fatalf("len = %d, want 2", l.Len())
	}
}

func TestPruneKeepsRecentAndLegacy(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	retention := 24 * time.Hour

	l := New()
	l.Merge([]string{"old"}, now.Add(-48*time.Hour))
	l.Merge([]string{"recent"}, now.Add(-time.Hour))
	l.Merge([]string{"legacy"}, time.Time{}) // no stamp: from an old document

	if removed := l.Prune(now, retention); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if l.Contains("old") {
		t.Fatal("stamped entry past retention should be pruned")
	}
	if !l.Contains("recent") || !l.Contains("legacy") {
		t.Fatalf("kept ids = %v", l.IDs())
	}

	if removed := l.Prune(now, 0); removed != 0 {
		t.Fatal("zero retention must disable pruning")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	l := New()
	l.Merge([]string{"b", "a"}, at)
	l.Merge([]string{"legacy"}, time.Time{})
	l.SetLastRun(at.Add(time.Minute))

	b, err := l.EncodeJSON()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodeJSON(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("len = %d, want 3", got.Len())
	}
	if at2, _ := got.NotifiedAt("a"); !at2.Equal(at) {
		t.Fatalf("stamp for a = %v, want %v", at2, at)
	}
	if at2, _ := got.NotifiedAt("legacy"); !at2.IsZero() {
		t.Fatalf("legacy entry gained a stamp: %v", at2)
	}
	if !got.LastRun().Equal(at.Add(time.Minute)) {
		t.Fatalf("last_run = %v", got.LastRun())
	}
}

func TestDecodeOriginalStateFile(t *testing.T) {
	t.Parallel()
	// Shape written by earlier deployments: ids only, no stamps.
	doc := `{"notified_ids": ["x", "y"], "last_run": "2026-03-10T15:00:00Z"}`

	l, err := DecodeJSON([]byte(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !l.Contains("x") || !l.Contains("y") {
		t.Fatalf("ids = %v", l.IDs())
	}
	if l.Prune(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), time.Hour); l.Len() != 2 {
		t.Fatal("unstamped ids must survive pruning")
	}
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()
	if _, err := DecodeJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed document")
	}
}
