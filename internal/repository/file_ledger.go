package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/iconidentify/reelrelay/internal/domain"
)

// FileLedgerStore implements LedgerStore on a local JSON file.
type FileLedgerStore struct {
	path   string
	logger *slog.Logger
}

// NewFileLedgerStore creates a store backed by the file at path.
func NewFileLedgerStore(path string, logger *slog.Logger) *FileLedgerStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileLedgerStore{path: path, logger: logger}
}

// Name returns "local".
func (s *FileLedgerStore) Name() string {
	return "local"
}

// Path returns the ledger file location.
func (s *FileLedgerStore) Path() string {
	return s.path
}

// Load reads the ledger file. A missing or unparsable file yields an empty
// ledger rather than an error.
func (s *FileLedgerStore) Load(ctx context.Context) (*domain.Ledger, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("read ledger file", "path", s.path, "error", err)
		}
		return domain.NewLedger(), nil
	}

	ledger, err := domain.ParseLedger(data)
	if err != nil {
		s.logger.Warn("parse ledger file, starting empty", "path", s.path, "error", err)
		return domain.NewLedger(), nil
	}
	return ledger, nil
}

// Save rewrites the whole ledger file.
func (s *FileLedgerStore) Save(ctx context.Context, ledger *domain.Ledger) error {
	data, err := ledger.Encode()
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	// Write to temp file first, then rename for atomicity
	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write ledger: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("move ledger to final location: %w", err)
	}
	return nil
}
