package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/jobcrawler/internal/entity"
)

// run holds everything that belongs to one crawl run. Nothing here outlives
// the run or is shared with another one.
type run struct {
	id      string
	site    string
	started time.Time

	inserted     atomic.Int64
	existing     atomic.Int64
	errors       atomic.Int64
	skipped      atomic.Int64
	pageErrors   atomic.Int64
	regionErrors atomic.Int64

	locks     keyedMutex
	regionIDs map[string]int64 // region loop only

	abort     context.CancelCauseFunc
	fatalOnce sync.Once
	fatal     error
	done      atomic.Bool
	duration  atomic.Int64
}

// fail records the first fatal error and cancels the run.
func (r *run) fail(err error) {
	r.fatalOnce.Do(func() {
		r.fatal = err
		r.abort(err)
	})
}

func (r *run) finish(now time.Time) {
	r.duration.Store(int64(now.Sub(r.started)))
	r.done.Store(true)
}

func (r *run) summary(now time.Time) entity.RunSummary {
	s := entity.RunSummary{
		RunID:        r.id,
		Site:         r.site,
		Inserted:     r.inserted.Load(),
		Existing:     r.existing.Load(),
		Errors:       r.errors.Load(),
		Skipped:      r.skipped.Load(),
		PageErrors:   r.pageErrors.Load(),
		RegionErrors: r.regionErrors.Load(),
		StartedAt:    r.started,
		Running:      !r.done.Load(),
	}
	if s.Running {
		s.Duration = now.Sub(r.started)
	} else {
		s.Duration = time.Duration(r.duration.Load())
	}
	return s
}
