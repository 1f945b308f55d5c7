package rod_browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/user/jobcrawler/internal/adapter/browsernav"
	"github.com/user/jobcrawler/internal/repository"
)

// RodBrowser drives one Chrome process through rod.
type RodBrowser struct {
	launcher  *launcher.Launcher
	browser   *rod.Browser
	userAgent string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewRodBrowser launches Chrome and connects to it.
func NewRodBrowser(opts browsernav.Options, logger *zap.Logger) (*RodBrowser, error) {
	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage")
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	// Don't download files in the browser, e.g. pdf files.
	err = proto.BrowserSetDownloadBehavior{
		Behavior:         proto.BrowserSetDownloadBehaviorBehaviorDeny,
		BrowserContextID: b.BrowserContextID,
	}.Call(b)
	if err != nil {
		logger.Warn("could not disable downloads", zap.Error(err))
	}

	return &RodBrowser{
		launcher:  l,
		browser:   b,
		userAgent: opts.UserAgent,
		timeout:   opts.NavigationTimeout,
		logger:    logger,
	}, nil
}

// NewTab opens a blank page.
func (b *RodBrowser) NewTab(ctx context.Context) (repository.Tab, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	if b.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.userAgent}); err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}
	// Detach the page from the creation context; tabs outlive it.
	return &rodTab{page: page.Context(context.Background()), timeout: b.timeout}, nil
}

// Close shuts the browser down and cleans up the launcher.
func (b *RodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Cleanup()
	return err
}

type rodTab struct {
	page    *rod.Page
	timeout time.Duration

	mu  sync.Mutex
	url string
}

func (t *rodTab) bounded(ctx context.Context) *rod.Page {
	p := t.page.Context(ctx)
	if t.timeout > 0 {
		p = p.Timeout(t.timeout)
	}
	return p
}

func (t *rodTab) Navigate(ctx context.Context, url string) error {
	p := t.bounded(ctx)
	err := p.Navigate(url)
	if err == nil {
		err = p.WaitLoad()
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return browsernav.Classify(url, err)
	}
	t.mu.Lock()
	t.url = url
	t.mu.Unlock()
	return nil
}

func (t *rodTab) HTML(ctx context.Context) (string, error) {
	html, err := t.bounded(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("read document %s: %w", t.URL(), err)
	}
	return html, nil
}

func (t *rodTab) URL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.url
}

func (t *rodTab) Close() error {
	return t.page.Close()
}
