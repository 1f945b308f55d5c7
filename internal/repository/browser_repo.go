package repository

import "context"

// Tab is one browser tab. A tab is driven by one goroutine at a time.
type Tab interface {
	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// HTML returns the outer HTML of the current document.
	HTML(ctx context.Context) (string, error)
	// URL returns the address currently loaded in the tab.
	URL() string
	Close() error
}

// BrowserRepository defines the contract for the browser automation driver.
type BrowserRepository interface {
	// NewTab opens a new tab. It is the only call that allocates browser resources.
	NewTab(ctx context.Context) (Tab, error)
	Close() error
}
