package scanner

import (
	"context"
	"log/slog"

	"github.com/qogitools/fba-scanner/internal/engine"
)

// ASINCache memoizes successful EAN -> ASIN resolutions across runs.
type ASINCache interface {
	GetCachedASIN(ean string) (string, bool)
	PutCachedASIN(ean, asin string) error
}

// CachingLookup is a read-through cache in front of the marketplace
// identifier lookup. Only successful resolutions are stored; a miss is
// retried on every pass. Price and fee lookups pass through untouched.
type CachingLookup struct {
	engine.LookupPort
	cache  ASINCache
	logger *slog.Logger
}

// NewCachingLookup wraps a lookup port with the ASIN cache.
func NewCachingLookup(inner engine.LookupPort, cache ASINCache, logger *slog.Logger) *CachingLookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingLookup{LookupPort: inner, cache: cache, logger: logger}
}

// ResolveASIN consults the cache before the marketplace.
func (c *CachingLookup) ResolveASIN(ctx context.Context, ean string) (string, bool) {
	if asin, ok := c.cache.GetCachedASIN(ean); ok {
		return asin, true
	}

	asin, ok := c.LookupPort.ResolveASIN(ctx, ean)
	if !ok {
		return "", false
	}

	if err := c.cache.PutCachedASIN(ean, asin); err != nil {
		c.logger.Warn("failed to cache asin", slog.String("ean", ean), slog.Any("error", err))
	}
	return asin, true
}
