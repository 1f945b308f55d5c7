package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"go.uber.org/zap"

	"github.com/user/jobcrawler/internal/checksum"
	"github.com/user/jobcrawler/internal/entity"
	"github.com/user/jobcrawler/internal/repository"
	"github.com/user/jobcrawler/internal/tabpool"
	"github.com/user/jobcrawler/mocks"
	"github.com/user/jobcrawler/pkg/retry"
)

// memoryStore is an in-memory ListingRepository with insert-if-absent semantics.
type memoryStore struct {
	mu          sync.Mutex
	regions     map[string]int64
	listings    map[string]*entity.Listing
	badRegions  map[string]bool
	insertErr   error
	lookups     atomic.Int32
	insertCalls atomic.Int32
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		regions:    make(map[string]int64),
		listings:   make(map[string]*entity.Listing),
		badRegions: make(map[string]bool),
	}
}

func (s *memoryStore) EnsureSchema(ctx context.Context) error { return nil }

func (s *memoryStore) ResolveRegionID(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.badRegions[name] {
		return 0, fmt.Errorf("region %q not found", name)
	}
	id, ok := s.regions[name]
	if !ok {
		id = int64(len(s.regions) + 1)
		s.regions[name] = id
	}
	return id, nil
}

func (s *memoryStore) ChecksumExists(ctx context.Context, fp string) (bool, error) {
	s.lookups.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.listings[fp]
	return ok, nil
}

func (s *memoryStore) ListAllChecksums(ctx context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.listings))
	for fp := range s.listings {
		out[fp] = struct{}{}
	}
	return out, nil
}

func (s *memoryStore) InsertRecord(ctx context.Context, l *entity.Listing) (bool, error) {
	s.insertCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return false, s.insertErr
	}
	if _, ok := s.listings[l.Fingerprint]; ok {
		return false, nil
	}
	cp := *l
	s.listings[l.Fingerprint] = &cp
	return true, nil
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listings)
}

func (s *memoryStore) byURL(url string) *entity.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listings {
		if l.URL == url {
			return l
		}
	}
	return nil
}

// fakeBrowser hands out tabs that fail navigation according to navErr.
type fakeBrowser struct {
	mu     sync.Mutex
	navErr func(url string, attempt int) error
	visits map[string]int
}

func (b *fakeBrowser) factory(ctx context.Context) (repository.Tab, error) {
	return &fakeTab{browser: b}, nil
}

func (b *fakeBrowser) visit(url string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.visits == nil {
		b.visits = make(map[string]int)
	}
	b.visits[url]++
	return b.visits[url]
}

func (b *fakeBrowser) listingVisits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for url, c := range b.visits {
		if strings.Contains(url, "/listing/") {
			n += c
		}
	}
	return n
}

type fakeTab struct {
	browser *fakeBrowser
	url     string
}

func (t *fakeTab) Navigate(ctx context.Context, url string) error {
	attempt := t.browser.visit(url)
	if t.browser.navErr != nil {
		if err := t.browser.navErr(url, attempt); err != nil {
			return err
		}
	}
	t.url = url
	return nil
}
func (t *fakeTab) HTML(ctx context.Context) (string, error) { return "", nil }
func (t *fakeTab) URL() string                              { return t.url }
func (t *fakeTab) Close() error                             { return nil }

// fakeSite serves `pages` result pages per region with `perPage` entries each.
type fakeSite struct {
	regions   []entity.Region
	pages     int
	perPage   int
	failPages map[string]bool
	extra     map[string][]entity.ListingEntry
	onExtract func()
}

func (s *fakeSite) Name() string             { return "fake" }
func (s *fakeSite) Source() string           { return "fake-board" }
func (s *fakeSite) Regions() []entity.Region { return s.regions }

func (s *fakeSite) PageURL(region entity.Region, page int) string {
	return fmt.Sprintf("https://jobs.test/%s?page=%d", region.Path, page)
}

func (s *fakeSite) PageCount(ctx context.Context, tab repository.Tab) (int, error) {
	return s.pages, nil
}

func (s *fakeSite) Entries(ctx context.Context, tab repository.Tab) ([]entity.ListingEntry, error) {
	url := tab.URL()
	if s.failPages[url] {
		return nil, fmt.Errorf("%w: no result list on %s", repository.ErrExtractionFailed, url)
	}
	path, page, ok := strings.Cut(strings.TrimPrefix(url, "https://jobs.test/"), "?page=")
	if !ok {
		return nil, fmt.Errorf("unexpected result page %s", url)
	}

	var entries []entity.ListingEntry
	for i := 0; i < s.perPage; i++ {
		entries = append(entries, entity.ListingEntry{
			Title: fmt.Sprintf("Job %d on page %s", i, page),
			URL:   fmt.Sprintf("https://jobs.test/%s/listing/%s-%d", path, page, i),
		})
	}
	return append(entries, s.extra[url]...), nil
}

func (s *fakeSite) Extract(ctx context.Context, tab repository.Tab, entry entity.ListingEntry) (entity.Extraction, error) {
	if s.onExtract != nil {
		s.onExtract()
	}
	if err := ctx.Err(); err != nil {
		return entity.Extraction{}, err
	}
	return entity.Extraction{Body: "body of " + tab.URL()}, nil
}

type harness struct {
	site    *fakeSite
	store   *memoryStore
	browser *fakeBrowser
	cache   *checksum.Cache
	tabs    *tabpool.Pool
}

func newHarness(t *testing.T, regions ...string) *harness {
	t.Helper()
	site := &fakeSite{pages: 3, perPage: 2, failPages: map[string]bool{}, extra: map[string][]entity.ListingEntry{}}
	for _, r := range regions {
		site.regions = append(site.regions, entity.Region{Name: r, Path: strings.ToLower(r)})
	}
	store := newMemoryStore()
	browser := &fakeBrowser{}
	tabs := tabpool.New(2, browser.factory)
	t.Cleanup(func() { tabs.Close() })
	return &harness{
		site:    site,
		store:   store,
		browser: browser,
		cache:   checksum.New(store, nil),
		tabs:    tabs,
	}
}

func (h *harness) orchestrator(opts ...Option) *Orchestrator {
	settings := Settings{
		BatchWidth:     2,
		EntryWorkers:   3,
		Navigation:     retry.Policy{MaxAttempts: 2, Factor: 2},
		SkipExtensions: []string{".pdf"},
		ClaimTTL:       time.Minute,
	}
	return NewOrchestrator(h.site, h.store, h.cache, h.tabs, settings, opts...)
}

func TestRunTwiceInsertsOnlyOnce(t *testing.T) {
	h := newHarness(t, "Oslo", "Bergen")
	o := h.orchestrator()
	ctx := context.Background()

	first, err := o.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Inserted != 12 || first.Existing != 0 || first.Errors != 0 {
		t.Fatalf("unexpected first summary %+v", first)
	}
	visitsAfterFirst := h.browser.listingVisits()

	second, err := o.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Inserted != 0 || second.Existing != 12 || second.Errors != 0 {
		t.Fatalf("unexpected second summary %+v", second)
	}
	if h.browser.listingVisits() != visitsAfterFirst {
		t.Fatal("known listings must not be navigated to")
	}
	if h.store.count() != 12 {
		t.Fatalf("expected 12 stored listings, got %d", h.store.count())
	}
	if first.RunID == second.RunID {
		t.Fatal("each run needs its own id")
	}
}

func TestWarmCacheAvoidsStoreLookups(t *testing.T) {
	h := newHarness(t, "Oslo")
	ctx := context.Background()
	if _, err := h.orchestrator().Run(ctx); err != nil {
		t.Fatal(err)
	}

	// A fresh process: new cache, bulk loaded by Bootstrap.
	h.cache = checksum.New(h.store, nil)
	if err := Bootstrap(ctx, nil, h.store, h.cache, retry.Policy{MaxAttempts: 1}, zap.NewNop(), nil); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	lookups := h.store.lookups.Load()
	summary, err := h.orchestrator().Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Existing != 6 {
		t.Fatalf("expected 6 existing listings, got %+v", summary)
	}
	if h.store.lookups.Load() != lookups {
		t.Fatal("a warm cache must answer without per-listing lookups")
	}
}

func TestFailingPageDoesNotStopTheRun(t *testing.T) {
	h := newHarness(t, "Oslo", "Bergen")
	h.site.failPages["https://jobs.test/oslo?page=2"] = true

	summary, err := h.orchestrator().Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.PageErrors != 1 {
		t.Fatalf("expected 1 page error, got %+v", summary)
	}
	if summary.Inserted != 10 {
		t.Fatalf("expected the other 5 pages to be stored, got %+v", summary)
	}
	if h.store.byURL("https://jobs.test/oslo/listing/3-0") == nil || h.store.byURL("https://jobs.test/bergen/listing/1-1") == nil {
		t.Fatal("pages after the failing one must still be crawled")
	}
}

func TestUnresolvableRegionIsSkipped(t *testing.T) {
	h := newHarness(t, "Nowhere", "Oslo")
	h.store.badRegions["Nowhere"] = true

	summary, err := h.orchestrator().Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RegionErrors != 1 || summary.Inserted != 6 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestCertificateErrorStoresListingWithoutBody(t *testing.T) {
	h := newHarness(t, "Oslo")
	h.site.pages = 1
	h.site.perPage = 1
	badCert := "https://jobs.test/oslo/listing/1-0"
	h.browser.navErr = func(url string, attempt int) error {
		if url == badCert {
			return fmt.Errorf("%w: %s: net::ERR_CERT_DATE_INVALID", repository.ErrCertificate, url)
		}
		return nil
	}

	summary, err := h.orchestrator().Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Inserted != 1 || summary.Errors != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	l := h.store.byURL(badCert)
	if l == nil {
		t.Fatal("listing with a certificate error must still be stored")
	}
	if l.Body != "" || l.Fingerprint == "" {
		t.Fatalf("expected an empty body and a fingerprint, got %+v", l)
	}
	if h.browser.visits[badCert] != 1 {
		t.Fatalf("certificate errors must not be retried, got %d visits", h.browser.visits[badCert])
	}
}

func TestTransientNavigationErrorIsRetried(t *testing.T) {
	h := newHarness(t, "Oslo")
	h.site.pages = 1
	h.site.perPage = 1
	flaky := "https://jobs.test/oslo/listing/1-0"
	h.browser.navErr = func(url string, attempt int) error {
		if url == flaky && attempt == 1 {
			return repository.ErrNavigationTimeout
		}
		return nil
	}

	summary, err := h.orchestrator().Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Inserted != 1 || summary.Errors != 0 {
		t.Fatalf("expected the retry to succeed, got %+v", summary)
	}
}

func TestExhaustedNavigationCountsEntryError(t *testing.T) {
	h := newHarness(t, "Oslo")
	h.site.pages = 1
	h.site.perPage = 2
	broken := "https://jobs.test/oslo/listing/1-1"
	h.browser.navErr = func(url string, attempt int) error {
		if url == broken {
			return repository.ErrNavigationFailed
		}
		return nil
	}

	summary, err := h.orchestrator().Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Inserted != 1 || summary.Errors != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if h.browser.visits[broken] != 2 {
		t.Fatalf("expected 2 attempts, got %d", h.browser.visits[broken])
	}
	if s := h.tabs.Stats(); s.InUse != 0 {
		t.Fatalf("tabs leaked after errors: %+v", s)
	}
}

func TestDocumentLinksAreSkipped(t *testing.T) {
	h := newHarness(t, "Oslo")
	h.site.pages = 1
	h.site.perPage = 1
	h.site.extra["https://jobs.test/oslo?page=1"] = []entity.ListingEntry{
		{Title: "Brochure", URL: "https://jobs.test/files/brochure.PDF"},
	}

	summary, err := h.orchestrator().Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 1 || summary.Inserted != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if h.store.lookups.Load() != 1 {
		t.Fatalf("skipped links must not be looked up, got %d lookups", h.store.lookups.Load())
	}
}

func TestTabCreationFailureAbortsRun(t *testing.T) {
	h := newHarness(t, "Oslo", "Bergen")
	boom := errors.New("chrome crashed")
	h.tabs = tabpool.New(2, func(ctx context.Context) (repository.Tab, error) { return nil, boom })
	t.Cleanup(func() { h.tabs.Close() })

	summary, err := h.orchestrator().Run(context.Background())
	if !errors.Is(err, ErrPoolExhausted) || !errors.Is(err, boom) {
		t.Fatalf("expected a fatal pool error, got %v", err)
	}
	if summary.RegionErrors != 0 {
		t.Fatalf("a fatal error is not a region error: %+v", summary)
	}
	if _, ok := h.store.regions["Bergen"]; ok {
		t.Fatal("no region is started after the run is aborted")
	}
}

func TestUnavailableStoreAbortsRun(t *testing.T) {
	h := newHarness(t, "Oslo", "Bergen")
	h.store.insertErr = fmt.Errorf("%w: reconnect budget exhausted", repository.ErrStoreUnavailable)

	summary, err := h.orchestrator().Run(context.Background())
	if !errors.Is(err, repository.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if summary.Inserted != 0 {
		t.Fatalf("nothing can be inserted, got %+v", summary)
	}
	// Bergen is never started once the run is aborted.
	if calls := h.store.insertCalls.Load(); calls > 6 {
		t.Fatalf("run kept inserting after the abort: %d calls", calls)
	}
}

func TestListingClaimedElsewhereIsNotExtracted(t *testing.T) {
	h := newHarness(t, "Oslo")
	h.site.pages = 1
	h.site.perPage = 2

	ctrl := gomock.NewController(t)
	claims := mocks.NewMockClaimRepository(ctrl)
	claims.EXPECT().Claim(gomock.Any(), gomock.Any(), time.Minute).Return(false, nil).Times(2)
	claims.EXPECT().Release(gomock.Any(), gomock.Any()).Times(0)

	summary, err := h.orchestrator(WithClaims(claims)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Existing != 2 || summary.Inserted != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if h.browser.listingVisits() != 0 {
		t.Fatal("claimed listings must not be navigated to")
	}
}

func TestClaimIsReleasedAfterInsert(t *testing.T) {
	h := newHarness(t, "Oslo")
	h.site.pages = 1
	h.site.perPage = 1

	ctrl := gomock.NewController(t)
	claims := mocks.NewMockClaimRepository(ctrl)
	gomock.InOrder(
		claims.EXPECT().Claim(gomock.Any(), gomock.Any(), time.Minute).Return(true, nil),
		claims.EXPECT().Release(gomock.Any(), gomock.Any()).Return(nil),
	)

	summary, err := h.orchestrator(WithClaims(claims)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Inserted != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestStatusReportsLastRun(t *testing.T) {
	h := newHarness(t, "Oslo")
	o := h.orchestrator()
	if _, ok := o.Status(); ok {
		t.Fatal("no status before the first run")
	}
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	status, ok := o.Status()
	if !ok || status.Running || status.Inserted != 6 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestCancelledRunFinishesStartedListing(t *testing.T) {
	h := newHarness(t, "Oslo", "Bergen")
	h.site.pages = 1
	h.site.perPage = 1
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var once sync.Once
	h.site.onExtract = func() { once.Do(cancel) }

	summary, err := h.orchestrator().Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the run to report cancellation, got %v", err)
	}
	if summary.Inserted != 1 || summary.Errors != 0 {
		t.Fatalf("the started listing must be stored, got %+v", summary)
	}
	if h.store.byURL("https://jobs.test/oslo/listing/1-0") == nil {
		t.Fatal("listing extracted before the cancellation is missing from the store")
	}
	if _, ok := h.store.regions["Bergen"]; ok {
		t.Fatal("no region may start after the run was cancelled")
	}
}

func TestSameListingInDifferentSpellingsIsProcessedOnce(t *testing.T) {
	h := newHarness(t, "Oslo")
	h.site.pages = 2
	h.site.perPage = 0
	spellings := []entity.ListingEntry{
		{Title: "Dev", URL: "https://JOBS.test/oslo/listing/x#f"},
		{Title: "Dev", URL: "https://jobs.test/oslo/listing/x"},
		{Title: "Dev", URL: "https://jobs.test:443/oslo/listing/x#apply"},
	}
	h.site.extra["https://jobs.test/oslo?page=1"] = spellings
	h.site.extra["https://jobs.test/oslo?page=2"] = spellings

	summary, err := h.orchestrator().Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Inserted != 1 || summary.Existing != 5 || summary.Errors != 0 {
		t.Fatalf("expected 1 inserted and 5 existing, got %+v", summary)
	}
	if n := h.browser.listingVisits(); n != 1 {
		t.Fatalf("expected exactly one listing navigation, got %d", n)
	}
	if h.store.count() != 1 {
		t.Fatalf("expected one stored listing, got %d", h.store.count())
	}
}

func TestKeyedMutexSerialisesSameKey(t *testing.T) {
	var k keyedMutex
	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("same")
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	if maxActive.Load() != 1 {
		t.Fatalf("expected one holder at a time, saw %d", maxActive.Load())
	}
	if k.len() != 0 {
		t.Fatalf("unused keys must be dropped, %d left", k.len())
	}
}
