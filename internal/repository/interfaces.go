package repository

import (
	"context"

	"github.com/iconidentify/reelrelay/internal/domain"
)

// LedgerStore persists the whole link ledger document.
type LedgerStore interface {
	// Name identifies the backend in logs and results.
	Name() string

	// Load returns the stored ledger, normalized.
	Load(ctx context.Context) (*domain.Ledger, error)

	// Save normalizes and overwrites the stored ledger.
	Save(ctx context.Context, ledger *domain.Ledger) error
}

// DocumentStore reads and writes a single named document in a remote store.
type DocumentStore interface {
	// ReadDocument returns the document body. found is false when the
	// document does not exist yet.
	ReadDocument(ctx context.Context) (data []byte, found bool, err error)

	// WriteDocument creates or replaces the document body.
	WriteDocument(ctx context.Context, data []byte) error
}
