package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/jobcrawler/internal/adapter/browsernav"
	"github.com/user/jobcrawler/internal/adapter/chromedp_browser"
	redis_adapter "github.com/user/jobcrawler/internal/adapter/redis"
	"github.com/user/jobcrawler/internal/adapter/rod_browser"
	"github.com/user/jobcrawler/internal/adapter/selector_site"
	"github.com/user/jobcrawler/internal/checksum"
	"github.com/user/jobcrawler/internal/delivery/http/handler"
	"github.com/user/jobcrawler/internal/delivery/http/router"
	"github.com/user/jobcrawler/internal/delivery/http/server"
	"github.com/user/jobcrawler/internal/repository"
	"github.com/user/jobcrawler/internal/tabpool"
	"github.com/user/jobcrawler/internal/usecase"
	"github.com/user/jobcrawler/pkg/config"
	"github.com/user/jobcrawler/pkg/metrics"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl every configured region once and store new listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runCrawl(ctx, cfg, log)
	},
}

func runCrawl(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	site, err := selector_site.New(cfg.Site)
	if err != nil {
		return fmt.Errorf("site adapter: %w", err)
	}

	s, err := openStore(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.close(context.Background()); err != nil {
			logger.Warn("closing store failed", zap.Error(err))
		}
	}()

	cache := checksum.New(s.listings, logger.Named("checksum"))
	if err := usecase.Bootstrap(ctx, s.connector, s.listings, cache, cfg.Retry.Bootstrap, logger, m); err != nil {
		return err
	}
	logger.Info("store ready", zap.Int("known_fingerprints", cache.Len()))

	browser, err := newBrowser(cfg, logger.Named("browser"))
	if err != nil {
		return err
	}
	defer browser.Close()

	tabs := tabpool.New(cfg.Pool.Size, browser.NewTab)
	tabs.OnStats(func(st tabpool.Stats) { m.SetPool(st.Handles, st.InUse, st.Waiting) })
	defer tabs.Close()

	opts := []usecase.Option{
		usecase.WithLogger(logger),
		usecase.WithMetrics(m),
		usecase.WithFailures(s.failures),
	}
	checks := map[string]handler.Pinger{"store": s.ping}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		claims := redis_adapter.NewClaimRepo(rdb, uuid.NewString())
		opts = append(opts, usecase.WithClaims(claims))
		checks["redis"] = claims
		logger.Info("coordinating through redis claims", zap.String("addr", cfg.Redis.Addr))
	}

	orchestrator := usecase.NewOrchestrator(site, s.listings, cache, tabs, usecase.Settings{
		BatchWidth:     cfg.Crawl.BatchWidth,
		EntryWorkers:   cfg.Crawl.EntryWorkers,
		Navigation:     cfg.Retry.Navigation,
		RatePerSecond:  cfg.Crawl.RatePerSecond,
		SkipExtensions: cfg.Crawl.SkipExtensions,
		ClaimTTL:       cfg.Redis.ClaimTTL,
		EntryTimeout:   cfg.Crawl.EntryTimeout,
	}, opts...)

	if cfg.Metrics.Addr != "" {
		h := handler.NewHandler(orchestrator, s.failures, checks, logger.Named("http"))
		srv := server.New(cfg.Metrics.Addr, router.New(h, reg, m, logger.Named("http")), logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("monitoring server shutdown failed", zap.Error(err))
			}
		}()
	}

	summary, runErr := orchestrator.Run(ctx)
	out, err := json.MarshalIndent(summary, "", "  ")
	if err == nil {
		fmt.Fprintln(os.Stdout, string(out))
	}
	return runErr
}

func newBrowser(cfg *config.Config, logger *zap.Logger) (repository.BrowserRepository, error) {
	opts := browsernav.Options{
		Headless:          cfg.Browser.Headless,
		UserAgent:         cfg.Browser.UserAgent,
		NavigationTimeout: cfg.Crawl.NavigationTimeout,
	}
	switch cfg.Browser.Driver {
	case "rod":
		return rod_browser.NewRodBrowser(opts, logger)
	default:
		return chromedp_browser.NewChromedpBrowser(opts, logger)
	}
}
