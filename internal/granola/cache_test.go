package granola

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "granomail/pkg/logx"
)

// writeCache builds the double-encoded cache-v3 shape: the state object
// is JSON-encoded into a string, then wrapped in {"cache": ...}.
func writeCache(t *testing.T, state map[string]any) string {
	t.Helper()
	inner, err := json.Marshal(map[string]any{"state": state})
	if err != nil {
		t.Fatal(err)
	}
	outer, err := json.Marshal(map[string]string{"cache": string(inner)})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "cache-v3.json")
	if err := os.WriteFile(path, outer, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFetchAllParsesDocuments(t *testing.T) {
	t.Parallel()
	path := writeCache(t, map[string]any{
		"documents": map[string]any{
			"doc-2": map[string]any{
				"id":         "doc-2",
				"title":      "Weekly Sync",
				"created_at": "2026-03-10T14:00:00Z",
				"google_calendar_event": map[string]any{
					"start": map[string]any{"dateTime": "2026-03-10T14:00:00-06:00"},
					"end":   map[string]any{"dateTime": "2026-03-10T14:45:00-06:00"},
				},
			},
			"doc-1": map[string]any{
				"id":    "doc-1",
				"title": "",
			},
		},
		"transcripts": map[string]any{
			"doc-2": []map[string]any{
				{"text": "hello", "source": "microphone", "end_timestamp": "2026-03-10T14:44:00-06:00"},
				{"text": "hi there", "source": "system", "end_timestamp": "2026-03-10T14:44:30-06:00"},
			},
		},
	})

	src := NewSource(path, time.UTC, logx.Nop())
	got, err := src.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("meetings = %d, want 2", len(got))
	}
	// Stable id-sorted order.
	if got[0].ID != "doc-1" || got[1].ID != "doc-2" {
		t.Fatalf("order = %s, %s", got[0].ID, got[1].ID)
	}

	sync := got[1]
	if sync.Title != "Weekly Sync" || !sync.HasTranscript() {
		t.Fatalf("meeting = %+v", sync)
	}
	wantEnd := time.Date(2026, 3, 10, 14, 45, 0, 0, time.FixedZone("", -6*3600))
	if sync.EndTime == nil || !sync.EndTime.Equal(wantEnd) {
		t.Fatalf("end = %v, want %v", sync.EndTime, wantEnd)
	}
	if sync.Transcript != "Me: hello\nThem: hi there" {
		t.Fatalf("transcript = %q", sync.Transcript)
	}

	open := got[0]
	if open.HasTranscript() {
		t.Fatal("doc-1 has no transcript")
	}
	if open.EndTime != nil {
		t.Fatalf("doc-1 end = %v, want nil (still open)", open.EndTime)
	}
}

func TestFetchAllFallsBackToSegmentEnd(t *testing.T) {
	t.Parallel()
	path := writeCache(t, map[string]any{
		"documents": map[string]any{
			"doc-1": map[string]any{"id": "doc-1", "title": "Ad-hoc"},
		},
		"transcripts": map[string]any{
			"doc-1": []map[string]any{
				{"text": "first", "end_timestamp": "2026-03-10T14:10:00Z"},
				{"text": "last", "end_timestamp": "2026-03-10T14:30:00Z"},
			},
		},
	})

	src := NewSource(path, time.UTC, logx.Nop())
	got, err := src.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	if got[0].EndTime == nil || !got[0].EndTime.Equal(want) {
		t.Fatalf("end = %v, want %v", got[0].EndTime, want)
	}
}

func TestFetchAllAnchorsNaiveTimestamps(t *testing.T) {
	t.Parallel()
	chicago, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatal(err)
	}
	path := writeCache(t, map[string]any{
		"documents": map[string]any{
			"doc-1": map[string]any{
				"id":    "doc-1",
				"title": "Naive times",
				"google_calendar_event": map[string]any{
					"end": map[string]any{"dateTime": "2026-03-10T14:45:00"},
				},
			},
		},
	})

	src := NewSource(path, chicago, logx.Nop())
	got, err := src.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := time.Date(2026, 3, 10, 14, 45, 0, 0, chicago)
	if got[0].EndTime == nil || !got[0].EndTime.Equal(want) {
		t.Fatalf("end = %v, want %v (anchored to %s)", got[0].EndTime, want, chicago)
	}
}

func TestFetchAllErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		src := NewSource(filepath.Join(t.TempDir(), "nope.json"), time.UTC, logx.Nop())
		if _, err := src.FetchAll(context.Background()); err == nil {
			t.Fatal("expected error for missing cache")
		}
	})

	t.Run("outer not json", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "cache-v3.json")
		if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
			t.Fatal(err)
		}
		src := NewSource(path, time.UTC, logx.Nop())
		if _, err := src.FetchAll(context.Background()); err == nil {
			t.Fatal("expected error for malformed cache")
		}
	})

	t.Run("inner not json", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "cache-v3.json")
		if err := os.WriteFile(path, []byte(`{"cache": "not a state object"}`), 0o600); err != nil {
			t.Fatal(err)
		}
		src := NewSource(path, time.UTC, logx.Nop())
		if _, err := src.FetchAll(context.Background()); err == nil {
			t.Fatal("expected error for malformed inner state")
		}
	})
}
