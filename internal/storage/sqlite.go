package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"granomail/internal/ledger"
	logx "granomail/pkg/logx"
)

//go:embed schema.sql
var schemaFS embed.FS

const metaLastRun = "last_run"

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LoadLedger(ctx context.Context) (*ledger.Ledger, error) {
	l := ledger.New()

	rows, err := s.db.QueryContext(ctx, `SELECT id, notified_at FROM notified`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id string
			at sql.NullString
		)
		if err := rows.Scan(&id, &at); err != nil {
			return nil, err
		}
		stamp := time.Time{}
		if at.Valid {
			if t, err := time.Parse(time.RFC3339, at.String); err == nil {
				stamp = t
			}
		}
		l.Merge([]string{id}, stamp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var lastRun string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaLastRun).Scan(&lastRun)
	if err == nil {
		if t, perr := time.Parse(time.RFC3339, lastRun); perr == nil {
			l.SetLastRun(t)
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return l, nil
}

func (s *sqliteStore) SaveLedger(ctx context.Context, l *ledger.Ledger) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// The ledger is small; rewriting it wholesale keeps the driver's
	// semantics identical to the file document.
	if _, err := tx.ExecContext(ctx, `DELETE FROM notified`); err != nil {
		return err
	}
	for _, id := range l.IDs() {
		var at any
		if t, ok := l.NotifiedAt(id); ok && !t.IsZero() {
			at = t.Format(time.RFC3339)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notified(id, notified_at) VALUES(?,?)`, id, at); err != nil {
			return err
		}
	}
	if !l.LastRun().IsZero() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta(key, value) VALUES(?,?)
			 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
			metaLastRun, l.LastRun().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, run_id, meeting_id, title, channel, ok, err, took_ms)
		 VALUES(?,?,?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.RunID, e.MeetingID, nullStr(e.Title),
		e.Channel, boolInt(e.OK), nullStr(e.Error), e.TookMS,
	)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
