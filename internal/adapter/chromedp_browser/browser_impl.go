package chromedp_browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/jobcrawler/internal/adapter/browsernav"
	"github.com/user/jobcrawler/internal/repository"
)

// ChromedpBrowser drives one Chrome process. Every tab is a separate target
// inside the same browser context.
type ChromedpBrowser struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	timeout       time.Duration
	logger        *zap.Logger
}

// NewChromedpBrowser starts Chrome with downloads disabled.
func NewChromedpBrowser(opts browsernav.Options, logger *zap.Logger) (*ChromedpBrowser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Sugar().Debugf))

	// The first Run starts the browser.
	err := chromedp.Run(browserCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorDeny),
	)
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &ChromedpBrowser{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		timeout:       opts.NavigationTimeout,
		logger:        logger,
	}, nil
}

// NewTab opens a new target in the running browser.
func (b *ChromedpBrowser) NewTab(ctx context.Context) (repository.Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &chromedpTab{ctx: tabCtx, cancel: cancel, timeout: b.timeout}, nil
}

// Close shuts the browser down.
func (b *ChromedpBrowser) Close() error {
	b.browserCancel()
	b.allocCancel()
	return nil
}

type chromedpTab struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	mu  sync.Mutex
	url string
}

// run executes actions on the tab, bounded by both ctx and the tab timeout.
func (t *chromedpTab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	if t.timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, t.timeout)
		defer cancelTimeout()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (t *chromedpTab) Navigate(ctx context.Context, url string) error {
	err := t.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return browsernav.Classify(url, err)
	}
	t.mu.Lock()
	t.url = url
	t.mu.Unlock()
	return nil
}

func (t *chromedpTab) HTML(ctx context.Context) (string, error) {
	var html string
	if err := t.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document %s: %w", t.URL(), err)
	}
	return html, nil
}

func (t *chromedpTab) URL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.url
}

// Close closes the target.
func (t *chromedpTab) Close() error {
	t.cancel()
	return nil
}
