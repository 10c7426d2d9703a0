// Package meeting holds the meeting record model and the capability
// interface the rest of the app consumes to obtain records.
package meeting

import (
	"context"
	"strings"
	"time"
)

// Meeting is a single meeting record as known to the local cache.
//
// ID uniquely and stably identifies a meeting across fetches and process
// runs; the notification ledger depends entirely on that stability.
//
// StartTime/EndTime may be nil (meeting still open, or malformed record).
// Cache timestamps without a UTC offset are anchored to the configured
// deployment timezone at parse time, so any non-nil timestamp here is
// already safe for instant comparisons.
type Meeting struct {
	ID        string
	Title     string
	StartTime *time.Time
	EndTime   *time.Time

	// Transcript is the raw transcript text, empty when the meeting has no
	// transcript content yet.
	Transcript string
}

// HasTranscript reports whether transcript content exists for the meeting.
func (m Meeting) HasTranscript() bool {
	return strings.TrimSpace(m.Transcript) != ""
}

// DisplayTitle returns the title, falling back for untitled records.
func (m Meeting) DisplayTitle() string {
	if strings.TrimSpace(m.Title) == "" {
		return "Untitled Meeting"
	}
	return m.Title
}

// Duration returns the recorded meeting length, or 0 when either bound
// is missing.
func (m Meeting) Duration() time.Duration {
	if m.StartTime == nil || m.EndTime == nil {
		return 0
	}
	d := m.EndTime.Sub(*m.StartTime)
	if d < 0 {
		return 0
	}
	return d
}

// Source supplies the current full set of meeting records.
//
// A fetch failure is fatal for the invocation that issued it.
type Source interface {
	FetchAll(ctx context.Context) ([]Meeting, error)
}
