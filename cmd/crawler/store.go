package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/user/jobcrawler/internal/adapter/postgres"
	"github.com/user/jobcrawler/internal/adapter/sqlite"
	"github.com/user/jobcrawler/internal/delivery/http/handler"
	"github.com/user/jobcrawler/internal/repository"
	"github.com/user/jobcrawler/internal/usecase"
	"github.com/user/jobcrawler/pkg/config"
	"github.com/user/jobcrawler/pkg/metrics"
)

// store bundles the repositories of the configured storage driver.
type store struct {
	listings interface {
		repository.ListingRepository
		repository.DuplicateMarker
	}
	failures  repository.FailedListingRepository
	connector usecase.Connector // nil when the driver has no managed connection
	ping      handler.Pinger
	close     func(ctx context.Context) error
}

// connect brings the store up without creating the schema.
func (s *store) connect(ctx context.Context) error {
	if s.connector == nil {
		return nil
	}
	return s.connector.Connect(ctx)
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		conn := postgres.NewConnector(cfg.Storage.DSN, cfg.Retry.Connect,
			postgres.WithLogger(logger.Named("store")),
			postgres.WithMetrics(m),
			postgres.WithKeepalive(cfg.Storage.KeepaliveInterval),
		)
		return &store{
			listings:  postgres.NewListingRepo(conn),
			failures:  postgres.NewFailedListingRepo(conn),
			connector: conn,
			ping:      conn,
			close:     conn.Disconnect,
		}, nil
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		return &store{
			listings: sqlite.NewListingRepo(db),
			failures: sqlite.NewFailedListingRepo(db),
			ping:     handler.PingFunc(db.PingContext),
			close:    func(context.Context) error { return db.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("storage driver %q is not supported", cfg.Storage.Driver)
	}
}
