package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Flag listings whose content repeats an earlier listing from the same day",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStore(ctx, cfg, log, nil)
		if err != nil {
			return err
		}
		defer s.close(context.Background())

		if err := s.connect(ctx); err != nil {
			return err
		}
		flagged, err := s.listings.MarkContentDuplicates(ctx)
		if err != nil {
			return err
		}
		log.Info("content duplicates flagged", zap.Int64("flagged", flagged))
		return nil
	},
}
