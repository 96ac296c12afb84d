package repository

import (
	"context"
	"fmt"

	"github.com/iconidentify/reelrelay/internal/domain"
)

// RemoteLedgerStore implements LedgerStore on a remote singleton document.
type RemoteLedgerStore struct {
	name string
	docs DocumentStore
}

// NewRemoteLedgerStore wraps a document store. name labels the backend.
func NewRemoteLedgerStore(name string, docs DocumentStore) *RemoteLedgerStore {
	return &RemoteLedgerStore{name: name, docs: docs}
}

// Name returns the backend label.
func (s *RemoteLedgerStore) Name() string {
	return s.name
}

// Load downloads and parses the ledger document. A document that does not
// exist yet is an empty ledger.
func (s *RemoteLedgerStore) Load(ctx context.Context) (*domain.Ledger, error) {
	data, found, err := s.docs.ReadDocument(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		return domain.NewLedger(), nil
	}

	ledger, err := domain.ParseLedger(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse ledger document: %v", domain.ErrRemoteStore, err)
	}
	return ledger, nil
}

// Save uploads the whole ledger document.
func (s *RemoteLedgerStore) Save(ctx context.Context, ledger *domain.Ledger) error {
	data, err := ledger.Encode()
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	return s.docs.WriteDocument(ctx, data)
}
