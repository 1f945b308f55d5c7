package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/jobcrawler/pkg/retry"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the regions, listings and failed_listings tables if absent",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStore(ctx, cfg, log, nil)
		if err != nil {
			return err
		}
		defer s.close(context.Background())

		policy := cfg.Retry.Bootstrap.WithNotify(func(attempt int, err error, delay time.Duration) {
			log.Warn("schema setup failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		})
		err = retry.Do(ctx, policy, func(ctx context.Context) error {
			if err := s.connect(ctx); err != nil {
				return err
			}
			return s.listings.EnsureSchema(ctx)
		})
		if err != nil {
			return err
		}
		log.Info("schema ready", zap.String("driver", cfg.Storage.Driver))
		return nil
	},
}
