// Package browsernav holds what the browser drivers share: options and the
// mapping of driver errors onto the repository error taxonomy.
package browsernav

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/user/jobcrawler/internal/repository"
)

// Options configures a browser driver.
type Options struct {
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
}

// Classify wraps a navigation error in the matching repository sentinel.
// Certificate failures are recognised by Chrome's net::ERR_CERT_* codes.
func Classify(url string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "ERR_CERT_") || strings.Contains(msg, "ERR_SSL_"):
		return fmt.Errorf("%w: %s: %w", repository.ErrCertificate, url, err)
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "ERR_TIMED_OUT"):
		return fmt.Errorf("%w: %s: %w", repository.ErrNavigationTimeout, url, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %s: %w", repository.ErrNavigationFailed, url, err)
	}
}
