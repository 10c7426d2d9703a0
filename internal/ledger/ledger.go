// Package ledger tracks which meetings have already been notified.
//
// The ledger is the only mutable state in the system. It is read once at
// the start of a run and written back once, only when the run confirmed
// at least one new delivery. A missing or corrupt ledger is replaced by
// an empty one: the occasional duplicate email beats a scheduler that can
// never run again.
package ledger

import (
	"encoding/json"
	"sort"
	"time"
)

// Ledger is the in-memory form of the notified-ids document.
// It is not safe for concurrent use; a run owns it exclusively.
type Ledger struct {
	notified map[string]time.Time // id -> notified-at; zero time for legacy entries
	lastRun  time.Time
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{notified: map[string]time.Time{}}
}

// Contains reports whether id was already notified.
func (l *Ledger) Contains(id string) bool {
	_, ok := l.notified[id]
	return ok
}

// Len returns the number of remembered ids.
func (l *Ledger) Len() int { return len(l.notified) }

// IDs returns all remembered ids in sorted order.
func (l *Ledger) IDs() []string {
	out := make([]string, 0, len(l.notified))
	for id := range l.notified {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// NotifiedAt returns when id was notified. ok is false when the id is
// unknown; a known id from a legacy document may return a zero time.
func (l *Ledger) NotifiedAt(id string) (at time.Time, ok bool) {
	at, ok = l.notified[id]
	return at, ok
}

// Merge records ids as notified at the given instant. Re-merging an
// already-present id keeps its original stamp, so a forced re-send does
// not extend retention. Returns the number of newly added ids.
func (l *Ledger) Merge(ids []string, at time.Time) int {
	added := 0
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := l.notified[id]; ok {
			continue
		}
		l.notified[id] = at
		added++
	}
	return added
}

// Prune drops ids whose notified-at stamp is older than retention before
// now. A notified id only needs to be remembered while the meeting could
// still pass the lookback filter, so retention (always >> lookback) caps
// the document's growth. Entries without a stamp (legacy documents) are
// never pruned; dropping them could re-send old mail. retention <= 0
// disables pruning. Returns the number of removed ids.
func (l *Ledger) Prune(now time.Time, retention time.Duration) int {
	if retention <= 0 {
		return 0
	}
	cutoff := now.Add(-retention)
	removed := 0
	for id, at := range l.notified {
		if at.IsZero() {
			continue
		}
		if at.Before(cutoff) {
			delete(l.notified, id)
			removed++
		}
	}
	return removed
}

// LastRun returns the recorded last successful write instant.
func (l *Ledger) LastRun() time.Time { return l.lastRun }

// SetLastRun stamps the ledger before persisting.
func (l *Ledger) SetLastRun(t time.Time) { l.lastRun = t }

// document is the persisted JSON shape. notified_ids stays a flat list
// for compatibility with the original automation's state file;
// notified_at is a newer, optional companion map used for retention.
type document struct {
	NotifiedIDs []string          `json:"notified_ids"`
	NotifiedAt  map[string]string `json:"notified_at,omitempty"`
	LastRun     string            `json:"last_run,omitempty"`
}

// EncodeJSON renders the ledger as its persisted document.
func (l *Ledger) EncodeJSON() ([]byte, error) {
	doc := document{NotifiedIDs: l.IDs()}
	for id, at := range l.notified {
		if at.IsZero() {
			continue
		}
		if doc.NotifiedAt == nil {
			doc.NotifiedAt = map[string]string{}
		}
		doc.NotifiedAt[id] = at.Format(time.RFC3339)
	}
	if !l.lastRun.IsZero() {
		doc.LastRun = l.lastRun.Format(time.RFC3339)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DecodeJSON parses a persisted document. Unknown or missing notified_at
// stamps leave entries unstamped (kept forever). Malformed input returns
// an error; callers decide whether that degrades to an empty ledger.
func DecodeJSON(data []byte) (*Ledger, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	l := New()
	for _, id := range doc.NotifiedIDs {
		if id == "" {
			continue
		}
		l.notified[id] = time.Time{}
	}
	for id, raw := range doc.NotifiedAt {
		if _, ok := l.notified[id]; !ok {
			continue
		}
		if at, err := time.Parse(time.RFC3339, raw); err == nil {
			l.notified[id] = at
		}
	}
	if doc.LastRun != "" {
		if t, err := time.Parse(time.RFC3339, doc.LastRun); err == nil {
			l.lastRun = t
		}
	}
	return l, nil
}
