// Package tabpool bounds the number of browser tabs a crawl may hold open.
//
// Tabs are created lazily up to the configured maximum and then reused.
// When every tab is bound, reservations queue and are served strictly in
// arrival order as tabs are released.
package tabpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/user/jobcrawler/internal/repository"
)

var (
	// ErrClosed is returned by Reserve after Close.
	ErrClosed = errors.New("tab pool closed")
	// ErrKeyInUse is returned when a key already holds a handle.
	ErrKeyInUse = errors.New("key already holds a tab")
)

// Factory opens a new tab. It is the only place the pool allocates.
type Factory func(ctx context.Context) (repository.Tab, error)

// Handle is a pooled tab. Its key is set while it is reserved.
type Handle struct {
	ID  int
	Tab repository.Tab

	key string
}

// Key returns the key the handle is currently bound to, or "" when idle.
func (h *Handle) Key() string { return h.key }

// grant is handed to a queued reservation. A nil handle transfers the right
// to create a new tab.
type grant struct {
	handle *Handle
}

type waiter struct {
	key string
	ch  chan grant
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Handles int
	InUse   int
	Waiting int
}

// Pool hands out at most Max tabs, each bound to one key at a time.
type Pool struct {
	max     int
	factory Factory
	onStats func(Stats)

	mu       sync.Mutex
	handles  []*Handle
	bound    map[string]*Handle
	creating int
	queue    []*waiter
	nextID   int
	closed   bool
}

// New returns a pool that creates at most max tabs with factory.
func New(max int, factory Factory) *Pool {
	if max < 1 {
		max = 1
	}
	return &Pool{
		max:     max,
		factory: factory,
		bound:   make(map[string]*Handle),
	}
}

// OnStats registers fn to be called with the pool occupancy after every change.
func (p *Pool) OnStats(fn func(Stats)) {
	p.mu.Lock()
	p.onStats = fn
	p.mu.Unlock()
}

// Reserve returns a tab bound to key. It blocks while the pool is saturated.
func (p *Pool) Reserve(ctx context.Context, key string) (*Handle, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := p.bound[key]; ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrKeyInUse, key)
	}

	if len(p.handles)+p.creating < p.max {
		p.creating++
		p.publishLocked()
		p.mu.Unlock()
		return p.create(ctx, key)
	}

	for _, h := range p.handles {
		if h.key == "" {
			p.bindLocked(h, key)
			p.publishLocked()
			p.mu.Unlock()
			return h, nil
		}
	}

	w := &waiter{key: key, ch: make(chan grant, 1)}
	p.queue = append(p.queue, w)
	p.publishLocked()
	p.mu.Unlock()

	select {
	case g, ok := <-w.ch:
		if !ok {
			return nil, ErrClosed
		}
		if g.handle != nil {
			return g.handle, nil
		}
		return p.create(ctx, key)
	case <-ctx.Done():
		p.mu.Lock()
		if p.removeWaiterLocked(w) {
			p.publishLocked()
			p.mu.Unlock()
			return nil, ctx.Err()
		}
		p.mu.Unlock()
		// A grant raced with cancellation; give it back.
		g, ok := <-w.ch
		switch {
		case !ok:
		case g.handle != nil:
			p.Release(key)
		default:
			p.mu.Lock()
			p.passCreateSlotLocked()
			p.publishLocked()
			p.mu.Unlock()
		}
		return nil, ctx.Err()
	}
}

// create opens a tab for key. The caller owns one creation slot.
func (p *Pool) create(ctx context.Context, key string) (*Handle, error) {
	tab, err := p.factory(ctx)

	p.mu.Lock()
	if err != nil {
		p.passCreateSlotLocked()
		p.publishLocked()
		p.mu.Unlock()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	p.creating--
	if p.closed {
		// Close ran while the tab was being opened.
		p.mu.Unlock()
		_ = tab.Close()
		return nil, ErrClosed
	}
	p.nextID++
	h := &Handle{ID: p.nextID, Tab: tab}
	p.handles = append(p.handles, h)
	p.bindLocked(h, key)
	p.publishLocked()
	p.mu.Unlock()
	return h, nil
}

// passCreateSlotLocked hands a freed creation slot to the oldest waiter, or
// returns it to the pool when nobody waits.
func (p *Pool) passCreateSlotLocked() {
	if len(p.queue) > 0 && !p.closed {
		w := p.queue[0]
		p.queue = p.queue[1:]
		w.ch <- grant{}
		return
	}
	p.creating--
}

// Release unbinds the tab held by key and passes it to the oldest waiter.
func (p *Pool) Release(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, ok := p.bound[key]
	if !ok {
		return
	}
	p.unbindLocked(h)

	if len(p.queue) > 0 && !p.closed {
		w := p.queue[0]
		p.queue = p.queue[1:]
		p.bindLocked(h, w.key)
		w.ch <- grant{handle: h}
	}
	p.publishLocked()
}

// Stats reports the current occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statsLocked()
}

// Close closes every tab and fails queued reservations. Tabs still bound are
// closed too; callers must not use them afterwards.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	handles := p.handles
	p.handles = nil
	p.bound = make(map[string]*Handle)
	queue := p.queue
	p.queue = nil
	p.publishLocked()
	p.mu.Unlock()

	for _, w := range queue {
		close(w.ch)
	}

	var errs []error
	for _, h := range handles {
		if err := h.Tab.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close tab %d: %w", h.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Pool) bindLocked(h *Handle, key string) {
	h.key = key
	p.bound[key] = h
}

func (p *Pool) unbindLocked(h *Handle) {
	if h.key != "" {
		delete(p.bound, h.key)
	}
	h.key = ""
}

func (p *Pool) removeWaiterLocked(w *waiter) bool {
	for i, q := range p.queue {
		if q == w {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Pool) statsLocked() Stats {
	return Stats{
		Handles: len(p.handles),
		InUse:   len(p.bound),
		Waiting: len(p.queue),
	}
}

func (p *Pool) publishLocked() {
	if p.onStats != nil {
		p.onStats(p.statsLocked())
	}
}
