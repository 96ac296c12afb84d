package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iconidentify/reelrelay/internal/domain"
)

// LoadResult reports which backend served a ledger read.
type LoadResult struct {
	Ledger     *domain.Ledger
	Backend    string
	Degraded   bool
	PrimaryErr error
}

// SaveResult reports which backend accepted a ledger write.
type SaveResult struct {
	Backend    string
	Degraded   bool
	PrimaryErr error
}

// LedgerSelector routes ledger reads and writes to the primary store and
// falls back to the local store for any call the primary fails. The
// fallback is decided per call; a failing primary is tried again next time.
// Append writes back only to the backend its read came from.
type LedgerSelector struct {
	primary LedgerStore
	local   LedgerStore
	logger  *slog.Logger

	// mu serializes load-modify-save cycles within the process.
	mu sync.Mutex
}

// NewLedgerSelector creates a selector. primary may be nil, in which case
// every call goes straight to local.
func NewLedgerSelector(primary, local LedgerStore, logger *slog.Logger) *LedgerSelector {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerSelector{
		primary: primary,
		local:   local,
		logger:  logger,
	}
}

// HasPrimary reports whether a primary store is configured.
func (s *LedgerSelector) HasPrimary() bool {
	return s.primary != nil
}

// Load reads the ledger from the first backend that succeeds.
func (s *LedgerSelector) Load(ctx context.Context) (LoadResult, error) {
	if s.primary != nil {
		ledger, err := s.primary.Load(ctx)
		if err == nil {
			return LoadResult{Ledger: ledger, Backend: s.primary.Name()}, nil
		}
		s.logger.Warn("primary ledger load failed, using local store",
			"primary", s.primary.Name(),
			"error", err,
		)
		ledger, localErr := s.local.Load(ctx)
		if localErr != nil {
			return LoadResult{}, fmt.Errorf("load local ledger: %w", localErr)
		}
		return LoadResult{
			Ledger:     ledger,
			Backend:    s.local.Name(),
			Degraded:   true,
			PrimaryErr: err,
		}, nil
	}

	ledger, err := s.local.Load(ctx)
	if err != nil {
		return LoadResult{}, fmt.Errorf("load local ledger: %w", err)
	}
	return LoadResult{Ledger: ledger, Backend: s.local.Name()}, nil
}

// Save writes the ledger to the first backend that succeeds.
func (s *LedgerSelector) Save(ctx context.Context, ledger *domain.Ledger) (SaveResult, error) {
	ledger.Normalize()

	if s.primary != nil {
		err := s.primary.Save(ctx, ledger)
		if err == nil {
			return SaveResult{Backend: s.primary.Name()}, nil
		}
		s.logger.Warn("primary ledger save failed, using local store",
			"primary", s.primary.Name(),
			"error", err,
		)
		if localErr := s.local.Save(ctx, ledger); localErr != nil {
			return SaveResult{}, fmt.Errorf("save local ledger: %w", localErr)
		}
		return SaveResult{Backend: s.local.Name(), Degraded: true, PrimaryErr: err}, nil
	}

	if err := s.local.Save(ctx, ledger); err != nil {
		return SaveResult{}, fmt.Errorf("save local ledger: %w", err)
	}
	return SaveResult{Backend: s.local.Name()}, nil
}

// Append loads the current ledger, adds entry and saves it back to the
// backend that served the load. A ledger read from the local fallback is
// never written to the primary: it may be missing entries only the primary
// holds, and saving it there would drop them.
func (s *LedgerSelector) Append(ctx context.Context, entry domain.LedgerEntry) (SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.Load(ctx)
	if err != nil {
		return SaveResult{}, err
	}
	loaded.Ledger.Append(entry)

	if !loaded.Degraded {
		return s.Save(ctx, loaded.Ledger)
	}

	loaded.Ledger.Normalize()
	if err := s.local.Save(ctx, loaded.Ledger); err != nil {
		return SaveResult{}, fmt.Errorf("save local ledger: %w", err)
	}
	return SaveResult{Backend: s.local.Name(), Degraded: true, PrimaryErr: loaded.PrimaryErr}, nil
}

// Contains reports whether any entry exists for url. Load failures count
// as "not present".
func (s *LedgerSelector) Contains(ctx context.Context, url string) bool {
	return s.IsDuplicate(ctx, domain.PolicyAnyEntry, url)
}

// RelayURL returns the recorded relay URL for url, if any.
func (s *LedgerSelector) RelayURL(ctx context.Context, url string) (string, bool) {
	loaded, err := s.Load(ctx)
	if err != nil {
		s.logger.Warn("ledger unavailable for relay lookup", "error", err)
		return "", false
	}
	return loaded.Ledger.RelayURL(url)
}

// IsDuplicate applies policy to the current ledger.
func (s *LedgerSelector) IsDuplicate(ctx context.Context, policy domain.DuplicatePolicy, url string) bool {
	loaded, err := s.Load(ctx)
	if err != nil {
		s.logger.Warn("ledger unavailable for duplicate check", "policy", policy.String(), "error", err)
		return false
	}
	return policy.IsDuplicate(loaded.Ledger, url)
}
