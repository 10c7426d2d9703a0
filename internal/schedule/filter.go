package schedule

import (
	"time"

	"granomail/internal/ledger"
	"granomail/internal/meeting"
)

// DefaultWindow is the default lookback window.
const DefaultWindow = 30 * time.Minute

// Eligible reports whether m should be notified at instant now, given the
// already-notified ledger and a lookback window.
//
// All of the following must hold:
//   - m is not already in the ledger (ids in the ledger are never
//     re-evaluated, whatever the other fields say)
//   - m has transcript content
//   - m has a recorded end time (no end means still in progress)
//   - the end time is not in the future (clock skew is rejected)
//   - the end time is within the trailing window, inclusive at both
//     bounds: end == now and end == now-window are both eligible
//
// Offset-less cache timestamps were already anchored to the configured
// timezone at parse time, so the comparisons here are plain instant math.
// The function is pure; it never mutates the ledger.
func Eligible(m meeting.Meeting, notified *ledger.Ledger, now time.Time, window time.Duration) bool {
	if window <= 0 {
		window = DefaultWindow
	}
	if notified.Contains(m.ID) {
		return false
	}
	if !m.HasTranscript() {
		return false
	}
	if m.EndTime == nil {
		return false
	}
	end := *m.EndTime
	if end.After(now) {
		return false
	}
	if end.Before(now.Add(-window)) {
		return false
	}
	return true
}
