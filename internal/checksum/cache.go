// Package checksum keeps the set of listing fingerprints already stored, so a
// crawl can skip known listings without navigating to them.
package checksum

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/user/jobcrawler/internal/repository"
)

// Cache maps fingerprints to a known/unknown marker. Known entries are never
// unmarked. Unknown entries are answers confirmed by the store and are
// dropped whenever a bulk load fails.
type Cache struct {
	repo   repository.ChecksumRepository
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]bool
	loaded  bool
}

// New returns an empty cache backed by repo.
func New(repo repository.ChecksumRepository, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		repo:    repo,
		logger:  logger,
		entries: make(map[string]bool),
	}
}

// Has reports whether fingerprint is known, asking the store on a miss.
func (c *Cache) Has(ctx context.Context, fingerprint string) (bool, error) {
	c.mu.RLock()
	known, ok := c.entries[fingerprint]
	loaded := c.loaded
	c.mu.RUnlock()
	if ok {
		return known, nil
	}
	if loaded {
		// A successful bulk load saw every stored fingerprint.
		return false, nil
	}

	exists, err := c.repo.ChecksumExists(ctx, fingerprint)
	if err != nil {
		return false, fmt.Errorf("checksum lookup: %w", err)
	}

	c.mu.Lock()
	// MarkKnown may have run while the store was queried.
	if !c.entries[fingerprint] {
		c.entries[fingerprint] = exists
	}
	known = c.entries[fingerprint]
	c.mu.Unlock()
	return known, nil
}

// MarkKnown records fingerprint as stored. Call it only after the listing
// has been durably written.
func (c *Cache) MarkKnown(fingerprint string) {
	c.mu.Lock()
	c.entries[fingerprint] = true
	c.mu.Unlock()
}

// Load fetches every stored fingerprint in one query. On failure the cache
// is cleared and lookups fall back to one query per fingerprint.
func (c *Cache) Load(ctx context.Context) error {
	all, err := c.repo.ListAllChecksums(ctx)
	if err != nil {
		c.mu.Lock()
		c.entries = make(map[string]bool)
		c.loaded = false
		c.mu.Unlock()
		c.logger.Warn("bulk checksum load failed, falling back to per-listing lookups", zap.Error(err))
		return fmt.Errorf("load checksums: %w", err)
	}

	c.mu.Lock()
	for fp := range all {
		c.entries[fp] = true
	}
	c.loaded = true
	c.mu.Unlock()
	c.logger.Info("checksum cache loaded", zap.Int("fingerprints", len(all)))
	return nil
}

// Len returns the number of fingerprints known to be stored.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, known := range c.entries {
		if known {
			n++
		}
	}
	return n
}
