package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/user/jobcrawler/internal/repository"
	"github.com/user/jobcrawler/pkg/metrics"
	"github.com/user/jobcrawler/pkg/retry"
)

// State is the lifecycle state of a Connector.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

const (
	defaultKeepalive = time.Minute
	probeTimeout     = 10 * time.Second
)

// Conn is the part of *pgx.Conn the connector drives.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	IsClosed() bool
}

// DialFunc opens a new connection to dsn.
type DialFunc func(ctx context.Context, dsn string) (Conn, error)

// DialPgx opens a single pgx connection.
func DialPgx(ctx context.Context, dsn string) (Conn, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Option configures a Connector.
type Option func(*Connector)

// WithDialer replaces the pgx dialer, mostly for tests.
func WithDialer(dial DialFunc) Option {
	return func(c *Connector) { c.dial = dial }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Connector) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Connector) { c.metrics = m }
}

// WithKeepalive sets the interval between keep-alive probes. Zero or less
// disables the probe.
func WithKeepalive(d time.Duration) Option {
	return func(c *Connector) { c.keepalive = d }
}

// Connector owns the one live store connection. Queries are serialised
// because a pgx.Conn must not be used concurrently.
//
// When a query fails because the connection was lost, that query fails with
// repository.ErrConnectionLost and a background reconnect starts under the
// connect retry policy. Queries issued meanwhile wait for it. If the
// reconnect budget runs out, every later query fails with
// repository.ErrStoreUnavailable until Connect is called again.
type Connector struct {
	dsn       string
	dial      DialFunc
	policy    retry.Policy
	keepalive time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics

	// sem is a one-slot lock guarding conn.
	sem  chan struct{}
	conn Conn

	mu    sync.Mutex
	state State
	fatal error
	ready chan struct{} // closed when the current connect attempt settles
	bgCtx context.Context
	stop  context.CancelFunc
	bg    sync.WaitGroup
}

// NewConnector returns a disconnected connector for dsn. policy bounds both
// the initial connect and every reconnect.
func NewConnector(dsn string, policy retry.Policy, opts ...Option) *Connector {
	c := &Connector{
		dsn:       dsn,
		dial:      DialPgx,
		policy:    policy,
		keepalive: defaultKeepalive,
		sem:       make(chan struct{}, 1),
		ready:     closedChan(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// State reports the current lifecycle state.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect establishes the connection, retrying under the connect policy,
// and starts the keep-alive probe. It is a no-op when already connected.
func (c *Connector) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnected:
		c.mu.Unlock()
		return nil
	case StateConnecting:
		ready := c.ready
		c.mu.Unlock()
		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
		return c.Connect(ctx)
	}
	c.state = StateConnecting
	c.fatal = nil
	c.ready = make(chan struct{})
	ready := c.ready
	c.mu.Unlock()

	conn, err := c.dialWithRetry(ctx)
	if err == nil {
		if err = c.acquire(ctx); err == nil {
			c.conn = conn
			c.release()
		} else {
			closeQuietly(conn)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(ready)
	if err != nil {
		c.state = StateDisconnected
		return fmt.Errorf("connect to store: %w", err)
	}
	c.state = StateConnected
	if c.stop == nil {
		c.bgCtx, c.stop = context.WithCancel(context.Background())
		if c.keepalive > 0 {
			c.bg.Add(1)
			go c.keepaliveLoop(c.bgCtx)
		}
	}
	c.logger.Info("connected to store")
	return nil
}

// Disconnect stops the keep-alive probe and any reconnect in progress, then
// closes the connection. Calling it again is a no-op.
func (c *Connector) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	stop := c.stop
	c.stop = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
		c.bg.Wait()
	}

	if err := c.acquire(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	conn := c.conn
	c.conn = nil
	c.mu.Lock()
	c.state = StateDisconnected
	c.fatal = nil
	c.mu.Unlock()
	c.release()

	if conn == nil {
		return nil
	}
	c.logger.Info("disconnected from store")
	return conn.Close(ctx)
}

// Do runs fn with exclusive use of the live connection.
func (c *Connector) Do(ctx context.Context, fn func(ctx context.Context, conn Conn) error) error {
	conn, err := c.acquireConn(ctx)
	if err != nil {
		return err
	}

	err = fn(ctx, conn)
	if err != nil && (IsConnectionLost(err) || conn.IsClosed()) {
		c.conn = nil
		bgCtx, ready, reconnect := c.markLost()
		c.release()
		if reconnect {
			c.logger.Warn("store connection lost, reconnecting", zap.Error(err))
			go c.reconnect(bgCtx, conn, ready)
		} else {
			closeQuietly(conn)
		}
		return fmt.Errorf("%w: %w", repository.ErrConnectionLost, err)
	}
	c.release()
	return err
}

// Ping checks the live connection.
func (c *Connector) Ping(ctx context.Context) error {
	return c.Do(ctx, func(ctx context.Context, conn Conn) error {
		return conn.Ping(ctx)
	})
}

// acquireConn takes sem and returns the live connection. The caller must
// release sem.
func (c *Connector) acquireConn(ctx context.Context) (Conn, error) {
	for {
		if err := c.awaitReady(ctx); err != nil {
			return nil, err
		}
		if err := c.acquire(ctx); err != nil {
			return nil, err
		}
		if c.conn != nil {
			return c.conn, nil
		}
		c.release()

		// Lost or closed between the readiness check and the lock. After
		// Disconnect nothing will bring the connection back.
		c.mu.Lock()
		stopped := c.stop == nil
		c.mu.Unlock()
		if stopped {
			return nil, fmt.Errorf("%w: not connected", repository.ErrStoreUnavailable)
		}
	}
}

// awaitReady waits out a reconnect in progress and reports whether queries
// can be issued.
func (c *Connector) awaitReady(ctx context.Context) error {
	for {
		c.mu.Lock()
		state, fatal, ready := c.state, c.fatal, c.ready
		c.mu.Unlock()

		if fatal != nil {
			return fmt.Errorf("%w: %w", repository.ErrStoreUnavailable, fatal)
		}
		switch state {
		case StateConnected:
			return nil
		case StateDisconnected:
			return fmt.Errorf("%w: not connected", repository.ErrStoreUnavailable)
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// markLost moves a connected connector to connecting. It reports whether a
// reconnect should be started. The caller holds sem.
func (c *Connector) markLost() (context.Context, chan struct{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.stop == nil {
		return nil, nil, false
	}
	c.state = StateConnecting
	c.ready = make(chan struct{})
	c.bg.Add(1)
	return c.bgCtx, c.ready, true
}

func (c *Connector) reconnect(ctx context.Context, stale Conn, ready chan struct{}) {
	defer c.bg.Done()
	closeQuietly(stale)

	conn, err := c.dialWithRetry(ctx)
	if err == nil {
		if err = c.acquire(ctx); err == nil {
			c.conn = conn
			c.release()
		} else {
			closeQuietly(conn)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(ready)
	switch {
	case err == nil:
		c.state = StateConnected
		c.metrics.IncReconnect()
		c.logger.Info("reconnected to store")
	case ctx.Err() != nil:
		c.state = StateDisconnected
	default:
		c.state = StateDisconnected
		c.fatal = err
		c.logger.Error("giving up on store reconnect", zap.Error(err))
	}
}

func (c *Connector) dialWithRetry(ctx context.Context) (Conn, error) {
	policy := c.policy.WithNotify(func(attempt int, err error, delay time.Duration) {
		c.metrics.IncRetry("connect")
		c.logger.Warn("store connect failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	})
	return retry.DoValue(ctx, policy, func(ctx context.Context) (Conn, error) {
		return c.dial(ctx, c.dsn)
	})
}

func (c *Connector) keepaliveLoop(ctx context.Context) {
	defer c.bg.Done()
	ticker := time.NewTicker(c.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.probe(ctx)
		}
	}
}

// probe runs a trivial query. Failures are logged only; a lost connection
// is picked up by Do like any other query.
func (c *Connector) probe(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	err := c.Do(pctx, func(ctx context.Context, conn Conn) error {
		_, err := conn.Exec(ctx, "SELECT 1")
		return err
	})
	if err == nil || ctx.Err() != nil {
		return
	}
	c.metrics.IncKeepaliveFailure()
	c.logger.Warn("store keep-alive probe failed", zap.Error(err))
}

func (c *Connector) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connector) release() { <-c.sem }

// IsConnectionLost reports whether err means the connection is gone, as
// opposed to a failed statement on a healthy connection.
func IsConnectionLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception
			return true
		case pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03": // admin/crash shutdown, cannot connect now
			return true
		}
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return strings.Contains(err.Error(), "conn closed")
}

func closeQuietly(conn Conn) {
	if conn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = conn.Close(ctx)
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
