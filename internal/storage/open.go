package storage

import (
	"context"
	"errors"
	"strings"

	"granomail/internal/ledger"
	logx "granomail/pkg/logx"
)

// Store is the minimal persistence API used by the run orchestrator.
//
// LoadLedger never fails on a missing or corrupt document; it degrades to
// an empty ledger and logs what happened. Only environmental errors
// (e.g. permission denied on the sqlite file) are surfaced.
type Store interface {
	LoadLedger(ctx context.Context) (*ledger.Ledger, error)
	SaveLedger(ctx context.Context, l *ledger.Ledger) error
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
