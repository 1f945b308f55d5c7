package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/user/jobcrawler/internal/checksum"
	"github.com/user/jobcrawler/internal/entity"
	"github.com/user/jobcrawler/internal/repository"
	"github.com/user/jobcrawler/internal/tabpool"
	"github.com/user/jobcrawler/pkg/metrics"
	"github.com/user/jobcrawler/pkg/retry"
	"github.com/user/jobcrawler/pkg/utils"
)

// ErrPoolExhausted means the tab pool could not open a tab. A crawl cannot
// continue without tabs, so it aborts the run.
var ErrPoolExhausted = errors.New("tab pool could not provide a tab")

// Crawler defines the interface for the crawl process.
type Crawler interface {
	// Run crawls every region of the site once.
	Run(ctx context.Context) (entity.RunSummary, error)
	// Status returns the live summary of the current run, or of the last one.
	Status() (entity.RunSummary, bool)
}

// Settings tunes a crawl.
type Settings struct {
	BatchWidth     int
	EntryWorkers   int
	Navigation     retry.Policy
	RatePerSecond  float64
	SkipExtensions []string
	ClaimTTL       time.Duration
	// EntryTimeout bounds a listing that keeps running after the run was
	// cancelled.
	EntryTimeout time.Duration
}

const (
	defaultEntryTimeout = 2 * time.Minute
	failureWriteTimeout = 10 * time.Second
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClaims coordinates with other crawler processes through claims.
func WithClaims(claims repository.ClaimRepository) Option {
	return func(o *Orchestrator) { o.claims = claims }
}

// WithFailures records listings that could not be extracted.
func WithFailures(failures repository.FailedListingRepository) Option {
	return func(o *Orchestrator) { o.failures = failures }
}

// Orchestrator walks regions, result pages and listings of one site.
type Orchestrator struct {
	site     repository.SiteAdapter
	store    repository.ListingRepository
	cache    *checksum.Cache
	tabs     *tabpool.Pool
	settings Settings

	claims   repository.ClaimRepository
	failures repository.FailedListingRepository
	logger   *zap.Logger
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	now      func() time.Time

	mu   sync.Mutex
	last *run
}

// NewOrchestrator creates a new crawl orchestrator.
func NewOrchestrator(
	site repository.SiteAdapter,
	store repository.ListingRepository,
	cache *checksum.Cache,
	tabs *tabpool.Pool,
	settings Settings,
	opts ...Option,
) *Orchestrator {
	if settings.BatchWidth < 1 {
		settings.BatchWidth = 1
	}
	if settings.EntryWorkers < 1 {
		settings.EntryWorkers = 1
	}
	if settings.EntryTimeout <= 0 {
		settings.EntryTimeout = defaultEntryTimeout
	}
	o := &Orchestrator{
		site:     site,
		store:    store,
		cache:    cache,
		tabs:     tabs,
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	o.logger = o.logger.With(zap.String("site", site.Name()))
	if settings.RatePerSecond > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(settings.RatePerSecond), 1)
	} else {
		o.limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return o
}

var _ Crawler = (*Orchestrator)(nil)

// Status returns a snapshot of the current or last run.
func (o *Orchestrator) Status() (entity.RunSummary, bool) {
	o.mu.Lock()
	r := o.last
	o.mu.Unlock()
	if r == nil {
		return entity.RunSummary{}, false
	}
	return r.summary(o.now()), true
}

// Run crawls every region once. Failures of single listings, pages and
// regions are counted and logged. Only a tab pool that cannot open tabs or
// an unavailable store abort the run; that error is returned together with
// the partial summary. Cancelling ctx stops new regions, pages and listings;
// listings already started are extracted and stored before Run returns.
func (o *Orchestrator) Run(ctx context.Context) (entity.RunSummary, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	r := &run{
		id:        uuid.NewString(),
		site:      o.site.Name(),
		started:   o.now(),
		regionIDs: make(map[string]int64),
		abort:     cancel,
	}
	o.mu.Lock()
	o.last = r
	o.mu.Unlock()

	logger := o.logger.With(zap.String("run_id", r.id))
	logger.Info("crawl started")

	for _, region := range o.site.Regions() {
		if ctx.Err() != nil {
			break
		}
		o.crawlRegion(ctx, r, logger.With(zap.String("region", region.Name)), region)
	}

	r.finish(o.now())
	summary := r.summary(o.now())
	fields := []zap.Field{
		zap.Int64("inserted", summary.Inserted),
		zap.Int64("existing", summary.Existing),
		zap.Int64("errors", summary.Errors),
		zap.Int64("skipped", summary.Skipped),
		zap.Int64("page_errors", summary.PageErrors),
		zap.Int64("region_errors", summary.RegionErrors),
		zap.Duration("duration", summary.Duration),
	}
	if ctx.Err() != nil {
		err := context.Cause(ctx)
		logger.Error("crawl aborted", append(fields, zap.Error(err))...)
		return summary, err
	}
	logger.Info("crawl finished", fields...)
	return summary, nil
}

func (o *Orchestrator) crawlRegion(ctx context.Context, r *run, logger *zap.Logger, region entity.Region) {
	regionID, err := o.resolveRegion(ctx, r, region)
	if err != nil {
		o.regionFailed(ctx, r, logger, "could not resolve region", err)
		return
	}

	pageCount, err := o.pageCount(ctx, r, region)
	if err != nil {
		o.regionFailed(ctx, r, logger, "could not read page count", err)
		return
	}
	logger.Info("region resolved", zap.Int64("region_id", regionID), zap.Int("pages", pageCount))

	for first := 1; first <= pageCount; first += o.settings.BatchWidth {
		if ctx.Err() != nil {
			return
		}
		last := min(first+o.settings.BatchWidth-1, pageCount)

		var failed atomic.Int64
		var wg conc.WaitGroup
		for page := first; page <= last; page++ {
			wg.Go(func() {
				if !o.crawlPage(ctx, r, logger, region, regionID, page) {
					failed.Add(1)
				}
			})
		}
		wg.Wait()

		if n := failed.Load(); n > 0 {
			logger.Warn("page batch finished with failures",
				zap.Int("first_page", first), zap.Int("last_page", last), zap.Int64("failed_pages", n))
		} else {
			logger.Debug("page batch finished", zap.Int("first_page", first), zap.Int("last_page", last))
		}
	}
}

func (o *Orchestrator) regionFailed(ctx context.Context, r *run, logger *zap.Logger, msg string, err error) {
	if o.abortIfFatal(r, err) || ctx.Err() != nil {
		return
	}
	r.regionErrors.Add(1)
	o.metrics.IncRegionError(r.site)
	logger.Error(msg+", skipping region", zap.Error(err))
}

// resolveRegion returns the region id, resolving it at most once per run.
func (o *Orchestrator) resolveRegion(ctx context.Context, r *run, region entity.Region) (int64, error) {
	if id, ok := r.regionIDs[region.Name]; ok {
		return id, nil
	}
	id, err := o.store.ResolveRegionID(ctx, region.Name)
	if err != nil {
		return 0, err
	}
	r.regionIDs[region.Name] = id
	return id, nil
}

func (o *Orchestrator) pageCount(ctx context.Context, r *run, region entity.Region) (int, error) {
	pageURL := o.site.PageURL(region, 1)
	var count int
	err := o.withTab(ctx, r, "page:"+pageURL, func(tab repository.Tab) error {
		return o.navigate(ctx, tab, pageURL, "page", func(ctx context.Context) error {
			var err error
			count, err = o.site.PageCount(ctx, tab)
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	return max(count, 1), nil
}

// crawlPage lists one result page and processes its entries. The page tab
// is released before any entry reserves one.
func (o *Orchestrator) crawlPage(ctx context.Context, r *run, logger *zap.Logger, region entity.Region, regionID int64, page int) bool {
	pageURL := o.site.PageURL(region, page)
	logger = logger.With(zap.Int("page", page), zap.String("url", pageURL))

	var entries []entity.ListingEntry
	err := o.withTab(ctx, r, "page:"+pageURL, func(tab repository.Tab) error {
		return o.navigate(ctx, tab, pageURL, "page", func(ctx context.Context) error {
			var err error
			entries, err = o.site.Entries(ctx, tab)
			return err
		})
	})
	if err != nil {
		if o.abortIfFatal(r, err) || ctx.Err() != nil {
			return false
		}
		r.pageErrors.Add(1)
		o.metrics.IncPageError(r.site)
		logger.Error("could not list result page", zap.Error(err))
		return false
	}
	logger.Info("result page listed", zap.Int("entries", len(entries)))

	p := pool.New().WithMaxGoroutines(o.settings.EntryWorkers)
	for _, entry := range entries {
		p.Go(func() {
			o.processEntry(ctx, r, logger, regionID, entry)
		})
	}
	p.Wait()
	return true
}

// processEntry handles one listing. ctx only decides whether the listing
// starts; once started it runs to completion on a context detached from
// run cancellation and bounded by EntryTimeout.
func (o *Orchestrator) processEntry(runCtx context.Context, r *run, logger *zap.Logger, regionID int64, entry entity.ListingEntry) {
	if runCtx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), o.settings.EntryTimeout)
	defer cancel()
	logger = logger.With(zap.String("listing_url", entry.URL))

	if utils.HasExtension(entry.URL, o.settings.SkipExtensions) {
		r.skipped.Add(1)
		o.metrics.IncListing(r.site, "skipped")
		logger.Debug("skipping non-crawlable listing")
		return
	}

	fingerprint := utils.Fingerprint(entry.URL)
	unlock := r.locks.Lock(fingerprint)
	defer unlock()

	known, err := o.cache.Has(ctx, fingerprint)
	if err != nil {
		o.entryFailed(ctx, r, logger, entry, fingerprint, err)
		return
	}
	if known {
		o.countExisting(r)
		return
	}

	if o.claims != nil {
		claimed, err := o.claims.Claim(ctx, fingerprint, o.settings.ClaimTTL)
		switch {
		case err != nil:
			logger.Warn("could not claim listing, processing it anyway", zap.Error(err))
		case !claimed:
			logger.Debug("listing claimed by another crawler")
			o.countExisting(r)
			return
		default:
			defer func() {
				if err := o.claims.Release(context.WithoutCancel(ctx), fingerprint); err != nil {
					logger.Warn("could not release listing claim", zap.Error(err))
				}
			}()
		}
	}

	listing, err := o.extract(ctx, r, logger, regionID, entry, fingerprint)
	if err != nil {
		o.entryFailed(ctx, r, logger, entry, fingerprint, err)
		return
	}

	inserted, err := o.store.InsertRecord(ctx, listing)
	if err != nil {
		o.entryFailed(ctx, r, logger, entry, fingerprint, fmt.Errorf("insert listing: %w", err))
		return
	}
	// Only a durable write may mark the fingerprint known.
	o.cache.MarkKnown(fingerprint)
	if !inserted {
		o.countExisting(r)
		return
	}
	r.inserted.Add(1)
	o.metrics.IncListing(r.site, "inserted")
	logger.Debug("listing stored")

	if o.failures != nil {
		if err := o.failures.Delete(ctx, listing.URL); err != nil {
			logger.Warn("could not clear failed listing record", zap.Error(err))
		}
	}
}

// extract navigates to the listing and builds its record. A certificate
// error still yields a record, with an empty body.
func (o *Orchestrator) extract(ctx context.Context, r *run, logger *zap.Logger, regionID int64, entry entity.ListingEntry, fingerprint string) (*entity.Listing, error) {
	var ex entity.Extraction
	err := o.withTab(ctx, r, "listing:"+entry.URL, func(tab repository.Tab) error {
		return o.navigate(ctx, tab, entry.URL, "listing", func(ctx context.Context) error {
			var err error
			ex, err = o.site.Extract(ctx, tab, entry)
			return err
		})
	})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrCertificate):
		logger.Warn("certificate error, storing listing without body", zap.Error(err))
		ex = entity.Extraction{}
	default:
		return nil, err
	}

	canonical, cerr := utils.CanonicalURL(entry.URL)
	if cerr != nil {
		canonical = entry.URL
	}
	return &entity.Listing{
		Title:        entry.Title,
		Body:         ex.Body,
		RegionID:     regionID,
		DiscoveredAt: o.now().UTC(),
		Fingerprint:  fingerprint,
		URL:          canonical,
		BusinessID:   ex.BusinessID,
		Source:       o.site.Source(),
		CompanyURL:   entry.CompanyURL,
	}, nil
}

func (o *Orchestrator) entryFailed(ctx context.Context, r *run, logger *zap.Logger, entry entity.ListingEntry, fingerprint string, err error) {
	if o.abortIfFatal(r, err) {
		return
	}
	r.errors.Add(1)
	o.metrics.IncListing(r.site, "error")
	logger.Error("could not process listing", zap.Error(err))

	if o.failures == nil {
		return
	}
	failed := &entity.FailedListing{
		URL:                  entry.URL,
		Fingerprint:          fingerprint,
		FailureReason:        err.Error(),
		LastAttemptTimestamp: o.now().UTC(),
	}
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()
	if ferr := o.failures.SaveOrUpdate(fctx, failed); ferr != nil {
		logger.Warn("could not record failed listing", zap.Error(ferr))
	}
}

func (o *Orchestrator) countExisting(r *run) {
	r.existing.Add(1)
	o.metrics.IncListing(r.site, "existing")
}

// withTab runs fn on a tab reserved under key and always releases it.
func (o *Orchestrator) withTab(ctx context.Context, r *run, key string, fn func(tab repository.Tab) error) error {
	h, err := o.tabs.Reserve(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, tabpool.ErrKeyInUse) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrPoolExhausted, err)
	}
	defer o.tabs.Release(key)
	return fn(h.Tab)
}

// navigate loads url in tab and runs read on it, retrying both under the
// navigation policy. Certificate errors are not retried.
func (o *Orchestrator) navigate(ctx context.Context, tab repository.Tab, url, kind string, read func(ctx context.Context) error) error {
	policy := o.settings.Navigation.WithNotify(func(attempt int, err error, delay time.Duration) {
		o.metrics.IncRetry("navigation")
		o.logger.Debug("navigation failed, retrying",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	})
	return retry.Do(ctx, policy, func(ctx context.Context) error {
		if err := o.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		start := time.Now()
		err := tab.Navigate(ctx, url)
		o.metrics.ObserveNavigation(kind, time.Since(start).Seconds())
		if err != nil {
			if errors.Is(err, repository.ErrCertificate) {
				return retry.Permanent(err)
			}
			return err
		}
		return read(ctx)
	})
}

// abortIfFatal cancels the run for errors no narrower scope can recover from.
func (o *Orchestrator) abortIfFatal(r *run, err error) bool {
	if errors.Is(err, ErrPoolExhausted) || errors.Is(err, repository.ErrStoreUnavailable) {
		r.fail(err)
		return true
	}
	return false
}
