// Package extractor reads uploader and caption metadata for source URLs.
package extractor

import (
	"context"
	"log/slog"

	"github.com/iconidentify/reelrelay/internal/domain"
)

// Strategy is one way of extracting metadata.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, url string) (domain.Metadata, error)
}

// Chain runs strategies in order and returns the first result that has
// at least one field. It never fails; exhausting every strategy yields
// empty metadata.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewChain creates a chain over the given strategies.
func NewChain(logger *slog.Logger, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{strategies: strategies, logger: logger}
}

// Extract returns the best metadata available for url.
func (c *Chain) Extract(ctx context.Context, url string) domain.Metadata {
	for _, s := range c.strategies {
		meta, err := s.Extract(ctx, url)
		if err != nil {
			c.logger.Warn("metadata strategy failed",
				"strategy", s.Name(),
				"url", url,
				"error", err,
			)
			continue
		}
		if !meta.IsEmpty() {
			c.logger.Debug("metadata extracted",
				"strategy", s.Name(),
				"uploader", meta.Uploader,
			)
			return meta
		}
	}
	return domain.Metadata{}
}
