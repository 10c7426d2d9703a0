package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"granomail/internal/ledger"
	logx "granomail/pkg/logx"
)

// fileStore is the default dependency-free persistence backend.
//
// Files:
//   - <path>                 (ledger JSON document)
//   - <prefix>.audit.jsonl   (append-only JSON Lines)
//
// The ledger is written atomically (tmp + rename) so an interrupted run
// leaves either the old or the new document, never a torn one.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	ledgerPath string
	auditFile  *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	af, err := os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:        log,
		ledgerPath: path,
		auditFile:  af,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return nil
	}
	err := s.auditFile.Close()
	s.auditFile = nil
	return err
}

func (s *fileStore) LoadLedger(ctx context.Context) (*ledger.Ledger, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.ledgerPath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("ledger unreadable, starting empty",
				logx.String("path", s.ledgerPath), logx.Err(err))
		}
		return ledger.New(), nil
	}

	l, err := ledger.DecodeJSON(b)
	if err != nil {
		s.log.Warn("ledger corrupt, starting empty",
			logx.String("path", s.ledgerPath), logx.Err(err))
		return ledger.New(), nil
	}
	return l, nil
}

func (s *fileStore) SaveLedger(ctx context.Context, l *ledger.Ledger) error {
	_ = ctx
	b, err := l.EncodeJSON()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.ledgerPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.ledgerPath)
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return ErrClosed
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}
