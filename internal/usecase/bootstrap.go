package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/user/jobcrawler/internal/checksum"
	"github.com/user/jobcrawler/internal/repository"
	"github.com/user/jobcrawler/pkg/metrics"
	"github.com/user/jobcrawler/pkg/retry"
)

// Connector is implemented by stores that hold a connection.
type Connector interface {
	Connect(ctx context.Context) error
}

// Bootstrap prepares the store for a crawl: connect, create the schema and
// warm the checksum cache. Connecting and creating the schema are retried
// together under policy. A failed cache load is logged and the crawl falls
// back to per-listing lookups.
func Bootstrap(
	ctx context.Context,
	conn Connector,
	store repository.ListingRepository,
	cache *checksum.Cache,
	policy retry.Policy,
	logger *zap.Logger,
	m *metrics.Metrics,
) error {
	policy = policy.WithNotify(func(attempt int, err error, delay time.Duration) {
		m.IncRetry("bootstrap")
		logger.Warn("bootstrap failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	})
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		if conn != nil {
			if err := conn.Connect(ctx); err != nil {
				return err
			}
		}
		return store.EnsureSchema(ctx)
	})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	if err := cache.Load(ctx); err != nil {
		logger.Warn("continuing without a warm checksum cache", zap.Error(err))
	}
	return nil
}
