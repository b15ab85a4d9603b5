// Package engine runs scan sessions, routes their detections to the
// quarantine handler and keeps track of what is running.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/zhengda-lu/antiv/internal/detection"
	"github.com/zhengda-lu/antiv/internal/history"
	"github.com/zhengda-lu/antiv/internal/scanner"
	"github.com/zhengda-lu/antiv/internal/schedule"
)

// ErrUnknownSession is returned by Stop for an id that is not running.
var ErrUnknownSession = errors.New("no active scan with that id")

// Observer receives every event of a session in order. For detection
// events det holds the outcome of handling it; otherwise det is nil.
// Observers run on the session's goroutine and should return quickly.
type Observer func(ev scanner.Event, det *detection.Result)

// Handler acts on detection events.
type Handler interface {
	Handle(ev scanner.Event) detection.Result
}

// Recorder persists finished sessions.
type Recorder interface {
	Record(e history.Entry) error
}

type Options struct {
	Scanner scanner.Config
	// Handler is nil when detections should only be reported.
	Handler  Handler
	Recorder Recorder
	Logger   *slog.Logger
	Now      func() time.Time
}

// Summary describes a finished session.
type Summary struct {
	SessionID   string          `json:"session_id"`
	Path        string          `json:"path"`
	Trigger     history.Trigger `json:"trigger"`
	Outcome     history.Outcome `json:"outcome"`
	Scanned     int             `json:"scanned"`
	Total       int             `json:"total"`
	Detections  int             `json:"detections"`
	Quarantined int             `json:"quarantined"`
	Message     string          `json:"message"`
	Report      string          `json:"report,omitempty"`
}

// ActiveScan is a session that has started and not yet ended.
type ActiveScan struct {
	ID        string          `json:"id"`
	Path      string          `json:"path"`
	Trigger   history.Trigger `json:"trigger"`
	StartedAt time.Time       `json:"started_at"`
}

type run struct {
	info    ActiveScan
	session *scanner.Session
}

// Engine is safe for concurrent use. Sessions share nothing but the
// handler and recorder.
type Engine struct {
	cfg      scanner.Config
	handler  Handler
	recorder Recorder
	log      *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	active map[string]*run
	wg     sync.WaitGroup
}

func New(opts Options) *Engine {
	e := &Engine{
		cfg:      opts.Scanner,
		handler:  opts.Handler,
		recorder: opts.Recorder,
		log:      opts.Logger,
		now:      opts.Now,
		active:   make(map[string]*run),
	}
	if e.log == nil {
		e.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.cfg.Logger == nil {
		e.cfg.Logger = e.log
	}
	return e
}

// Run scans target and blocks until the session ends.
func (e *Engine) Run(ctx context.Context, target string, trigger history.Trigger, obs Observer) (Summary, error) {
	r, events, err := e.launch(ctx, target, trigger)
	if err != nil {
		return Summary{}, err
	}
	return e.drain(r, events, obs), nil
}

// Start scans target in the background and returns the session id. A
// launch failure is returned here; everything after that goes to obs.
func (e *Engine) Start(ctx context.Context, target string, trigger history.Trigger, obs Observer) (string, error) {
	r, events, err := e.launch(ctx, target, trigger)
	if err != nil {
		return "", err
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.drain(r, events, obs)
	}()
	return r.info.ID, nil
}

// Trigger starts a scheduled scan for rec and returns at once. The
// manifest walk and the launch happen on the session's own goroutine, so a
// launch failure is logged and recorded in history rather than returned.
func (e *Engine) Trigger(ctx context.Context, rec schedule.Record) error {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		r, events, err := e.launch(ctx, rec.Path, history.TriggerScheduled)
		if err != nil {
			return
		}
		e.drain(r, events, nil)
	}()
	return nil
}

// Stop asks the session with id to stop. It returns before the session
// has acknowledged.
func (e *Engine) Stop(id string) error {
	e.mu.Lock()
	r, ok := e.active[id]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	r.session.RequestStop()
	return nil
}

// StopAll asks every active session to stop.
func (e *Engine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.active {
		r.session.RequestStop()
	}
}

// Active lists running sessions, oldest first.
func (e *Engine) Active() []ActiveScan {
	e.mu.Lock()
	out := make([]ActiveScan, 0, len(e.active))
	for _, r := range e.active {
		out = append(out, r.info)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Wait blocks until every session started with Start has ended.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) launch(ctx context.Context, target string, trigger history.Trigger) (*run, <-chan scanner.Event, error) {
	sess := scanner.NewSession(target, e.cfg)
	r := &run{
		info: ActiveScan{
			ID:        sess.ID(),
			Path:      target,
			Trigger:   trigger,
			StartedAt: e.now(),
		},
		session: sess,
	}

	e.mu.Lock()
	e.active[r.info.ID] = r
	e.mu.Unlock()

	events, err := sess.Start(ctx)
	if err != nil {
		e.forget(r.info.ID)
		e.log.Error("scan failed to start", "path", target, "trigger", trigger, "error", err)
		e.record(history.Entry{
			Timestamp: e.now(),
			SessionID: r.info.ID,
			Path:      target,
			Trigger:   trigger,
			Outcome:   history.OutcomeFailed,
			Error:     err.Error(),
		})
		return nil, nil, err
	}
	return r, events, nil
}

func (e *Engine) drain(r *run, events <-chan scanner.Event, obs Observer) Summary {
	defer e.forget(r.info.ID)

	sum := Summary{SessionID: r.info.ID, Path: r.info.Path, Trigger: r.info.Trigger}
	for ev := range events {
		var det *detection.Result
		switch ev.Kind {
		case scanner.EventDetection:
			sum.Detections++
			if e.handler != nil {
				res := e.handler.Handle(ev)
				if res.Isolated() {
					sum.Quarantined++
				}
				det = &res
			}
		case scanner.EventCompleted:
			sum.Outcome = history.OutcomeCompleted
			sum.Scanned, sum.Total = ev.Scanned, ev.Total
			sum.Message, sum.Report = ev.Message, ev.Summary
		case scanner.EventStopped:
			sum.Outcome = history.OutcomeStopped
			sum.Scanned, sum.Total = ev.Scanned, ev.Total
			sum.Message = ev.Message
		}
		if obs != nil {
			obs(ev, det)
		}
	}

	e.log.Info("scan finished",
		"session", sum.SessionID,
		"path", sum.Path,
		"outcome", sum.Outcome,
		"scanned", sum.Scanned,
		"detections", sum.Detections,
		"quarantined", sum.Quarantined,
	)
	e.record(history.Entry{
		Timestamp:   e.now(),
		SessionID:   sum.SessionID,
		Path:        sum.Path,
		Trigger:     sum.Trigger,
		Outcome:     sum.Outcome,
		Scanned:     sum.Scanned,
		Total:       sum.Total,
		Detections:  sum.Detections,
		Quarantined: sum.Quarantined,
	})
	return sum
}

func (e *Engine) forget(id string) {
	e.mu.Lock()
	delete(e.active, id)
	e.mu.Unlock()
}

func (e *Engine) record(entry history.Entry) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(entry); err != nil {
		e.log.Warn("failed to record scan history", "error", err)
	}
}
