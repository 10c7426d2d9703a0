package schedule

import (
	"errors"
	"time"
)

var (
	// ErrModeConflict is returned when dry-run and forced mode are both
	// requested; the invocation surface makes them mutually exclusive.
	ErrModeConflict = errors.New("dry-run and forced mode are mutually exclusive")

	// ErrForcedNotFound is returned when no meeting id matches the forced
	// prefix. Forced mode exists to recover a specific missed meeting, so
	// a miss is a fatal operator error, not an empty run.
	ErrForcedNotFound = errors.New("no meeting matches forced id prefix")
)

// Config carries the run-invariant settings of a Runner.
type Config struct {
	// Window is the eligibility lookback; 0 means DefaultWindow.
	Window time.Duration
	// Retention caps how long notified ids are remembered; 0 disables
	// pruning. Values below Window are raised to Window so pruning can
	// never reopen an eligible meeting.
	Retention time.Duration

	// Delivery envelope.
	To   string
	From string

	// Now overrides the clock in tests. nil means time.Now.
	Now func() time.Time
}

// Options selects the mode of a single run.
type Options struct {
	DryRun bool
	// ForcePrefix selects the single meeting whose id starts with this
	// prefix, bypassing eligibility. Among several matches the first in
	// source iteration order wins; ties are undefined beyond that rule.
	ForcePrefix string
}

// Mode labels used in reports and audit entries.
const (
	ModeNormal = "normal"
	ModeDryRun = "dry-run"
	ModeForced = "forced"
)

// Outcome is the per-meeting result of a run.
type Outcome struct {
	MeetingID string
	Title     string
	Subject   string
	EndTime   *time.Time
	Delivered bool   // live mode: delivery confirmed
	WouldSend bool   // dry-run mode: selection only
	Err       string // delivery failure, empty otherwise
}

// Report summarizes a completed run.
type Report struct {
	RunID    string
	Mode     string
	Checked  int // meetings fetched from the source
	Selected int // meetings chosen for delivery
	Sent     int // confirmed deliveries (0 in dry-run)
	Failed   int // failed delivery attempts
	Outcomes []Outcome
}
