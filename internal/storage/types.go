package storage

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file": JSON ledger document plus a JSONL audit log (default)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records one delivery attempt.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At        time.Time `json:"at"`
	RunID     string    `json:"run_id"`
	MeetingID string    `json:"meeting_id"`
	Title     string    `json:"title,omitempty"`
	Channel   string    `json:"channel"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	TookMS    int64     `json:"took_ms"`
}
