// Package scheduler fires scans for schedule records when they come due.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/zhengda-lu/antiv/internal/schedule"
)

const (
	DefaultInterval = 30 * time.Second
	// MaxInterval keeps every scheduled minute inside at least one tick.
	MaxInterval = time.Minute
)

// Trigger starts a scan for a due record. It must return without waiting on
// the manifest walk or the scan itself.
type Trigger interface {
	Trigger(ctx context.Context, rec schedule.Record) error
}

// TriggerFunc adapts a function to Trigger.
type TriggerFunc func(ctx context.Context, rec schedule.Record) error

func (f TriggerFunc) Trigger(ctx context.Context, rec schedule.Record) error { return f(ctx, rec) }

// Store is the subset of schedule.Store the scheduler needs.
type Store interface {
	Load() ([]schedule.Record, error)
	Save([]schedule.Record) error
}

type Options struct {
	Interval time.Duration
	// CatchUp fires records whose minute was missed earlier the same day.
	CatchUp bool
	Logger  *slog.Logger
	// Now is the clock used by Run. Defaults to time.Now.
	Now func() time.Time
}

// TickResult summarizes one tick.
type TickResult struct {
	Loaded    int
	Triggered []schedule.Record
	Errors    []error
}

// Scheduler holds no state between ticks; the store is the source of truth.
type Scheduler struct {
	store    Store
	trigger  Trigger
	interval time.Duration
	catchUp  bool
	now      func() time.Time
	log      *slog.Logger
}

func New(store Store, trigger Trigger, opts Options) (*Scheduler, error) {
	if store == nil || trigger == nil {
		return nil, errors.New("scheduler needs a store and a trigger")
	}
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < 0 || interval > MaxInterval {
		return nil, fmt.Errorf("tick interval %s out of range (0, %s]", interval, MaxInterval)
	}

	s := &Scheduler{
		store:    store,
		trigger:  trigger,
		interval: interval,
		catchUp:  opts.CatchUp,
		now:      opts.Now,
		log:      opts.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s, nil
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

// Run ticks once immediately and then every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", "interval", s.interval, "catch_up", s.catchUp)
	s.Tick(ctx, s.now())

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

// Tick evaluates every record against now. A corrupt or unreadable store
// means nothing runs this tick. Each due record is triggered, stamped with
// now, and the whole collection saved before moving on.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) TickResult {
	var res TickResult

	records, err := s.store.Load()
	if err != nil {
		s.log.Warn("skipping tick, schedules unavailable", "error", err)
		res.Errors = append(res.Errors, err)
		return res
	}
	res.Loaded = len(records)

	due := schedule.IsDue
	if s.catchUp {
		due = schedule.IsDueCatchUp
	}

	for i := range records {
		if ctx.Err() != nil {
			break
		}
		rec := records[i]
		if !due(rec, now) {
			continue
		}

		s.log.Info("schedule due", "path", rec.Path, "frequency", rec.Frequency, "time", rec.Time)
		if err := s.trigger.Trigger(ctx, rec); err != nil {
			s.log.Error("scheduled scan failed to start", "path", rec.Path, "error", err)
			res.Errors = append(res.Errors, fmt.Errorf("trigger %s: %w", rec.Path, err))
		} else {
			res.Triggered = append(res.Triggered, rec)
		}

		// Stamped even when the start failed: no retries.
		if !records[i].Advance(now) {
			continue
		}
		if err := s.store.Save(records); err != nil {
			s.log.Error("failed to persist last run", "path", rec.Path, "error", err)
			res.Errors = append(res.Errors, err)
		}
	}
	return res
}
