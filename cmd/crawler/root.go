package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/jobcrawler/pkg/config"
	"github.com/user/jobcrawler/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "jobcrawler",
	Short:         "A browser-driven crawler that stores job listings once",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		log, err = logger.New(cfg.Log.Level, cfg.Log.Format)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); JOBCRAWLER_* environment variables override it")
	rootCmd.AddCommand(crawlCmd, schemaCmd, dedupCmd)
}
