package timetable

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "classcal/internal/log"
	"classcal/internal/model"
)

// Refresher keeps a cached Status up to date on a cron schedule, so the
// "current session" display follows the wall clock without every reader
// re-expanding the store.
type Refresher struct {
	svc  *Service
	spec string

	mu        sync.RWMutex
	status    Status
	err       error
	updatedAt time.Time
	hasStatus bool

	cron *cron.Cron
}

// NewRefresher validates spec (standard 5-field cron) and returns an
// unstarted Refresher.
func NewRefresher(svc *Service, spec string) (*Refresher, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	return &Refresher{svc: svc, spec: spec}, nil
}

// Start performs one refresh immediately, then schedules the rest. It
// returns once the scheduler is running; the scheduler stops when ctx is
// done.
func (r *Refresher) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(r.svc.clock.Location()))
	if _, err := c.AddFunc(r.spec, func() { r.Refresh(ctx) }); err != nil {
		return err
	}
	r.cron = c

	r.Refresh(ctx)
	c.Start()
	appLog.Info("status refresher started", "schedule", r.spec)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("status refresher stopped")
	}()
	return nil
}

// Trigger refreshes in the background, e.g. after the store changed.
func (r *Refresher) Trigger(ctx context.Context) {
	go r.Refresh(ctx)
}

// Refresh recomputes the status now and caches it.
func (r *Refresher) Refresh(ctx context.Context) (Status, error) {
	st, err := r.svc.Status(ctx)

	r.mu.Lock()
	prev, had := r.status, r.hasStatus
	r.err = err
	r.updatedAt = time.Now()
	if err == nil {
		r.status = st
		r.hasStatus = true
	}
	r.mu.Unlock()

	if err != nil {
		appLog.Error("status refresh failed", err)
		return st, err
	}
	if !had || !sameOccurrence(prev.Resolution.Current, st.Resolution.Current) {
		appLog.Info("current session changed",
			"current", describe(st.Resolution.Current),
			"next", describe(st.Resolution.Next),
		)
	}
	return st, nil
}

// Latest returns the last successfully computed status and the error of
// the most recent attempt.
func (r *Refresher) Latest() (Status, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status, r.hasStatus, r.err
}

func sameOccurrence(a, b *model.Occurrence) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.DefinitionIndex == b.DefinitionIndex && a.Date == b.Date && a.StartMinute == b.StartMinute
}
