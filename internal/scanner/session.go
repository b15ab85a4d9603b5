package scanner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

const (
	DefaultBinary        = "clamscan"
	DefaultRecursiveFlag = "-r"

	maxLineSize = 1024 * 1024
	eventBuffer = 64
)

var (
	// ErrSpawn is returned by Start when the engine process cannot be launched.
	ErrSpawn = errors.New("failed to spawn scan engine")
	// ErrAlreadyStarted is returned when Start is called on a used session.
	ErrAlreadyStarted = errors.New("scan session already started")
)

// Config describes how to invoke the engine and read its output.
type Config struct {
	Binary        string
	RecursiveFlag string
	ExtraArgs     []string
	Markers       Markers
	// Exclude, when set, drops matching paths from the manifest.
	Exclude func(string) bool
	// Launcher overrides how the engine is started. Defaults to ExecLauncher.
	Launcher Launcher
	Logger   *slog.Logger
}

func (c Config) args(target string) []string {
	flag := c.RecursiveFlag
	if flag == "" {
		flag = DefaultRecursiveFlag
	}
	args := make([]string, 0, len(c.ExtraArgs)+2)
	args = append(args, flag)
	args = append(args, c.ExtraArgs...)
	return append(args, target)
}

// Session is one run of the engine against one target. A Session can be
// started only once.
type Session struct {
	id     string
	target string
	cfg    Config
	log    *slog.Logger

	started  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSession prepares a session for target without touching the filesystem.
func NewSession(target string, cfg Config) *Session {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.Launcher == nil {
		cfg.Launcher = ExecLauncher
	}
	cfg.Markers = cfg.Markers.withDefaults()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	id := uuid.NewString()
	return &Session{
		id:     id,
		target: target,
		cfg:    cfg,
		log:    logger.With("session", id, "target", target),
		stop:   make(chan struct{}),
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) Target() string { return s.target }

// RequestStop asks the session to stop. It returns immediately; the stop
// is acknowledged when the next output line is read, at which point the
// engine is killed and EventStopped is emitted. Calling it more than once
// has no further effect.
func (s *Session) RequestStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// StopRequested reports whether RequestStop has been called.
func (s *Session) StopRequested() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// Start builds the manifest, launches the engine and returns the event
// stream. The channel is closed after the terminal event, which is always
// the last value sent. Callers must drain it.
//
// If the manifest is empty no process is started and the stream holds a
// single EventCompleted. If the engine cannot be launched Start returns an
// error wrapping ErrSpawn and no stream. Cancelling ctx behaves like
// RequestStop, except that a blocked read is interrupted because the
// process is killed immediately.
func (s *Session) Start(ctx context.Context) (<-chan Event, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	target, err := filepath.Abs(s.target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", s.target, err)
	}

	manifest, err := BuildManifest(target, s.cfg.Exclude)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate %s: %w", target, err)
	}
	total := len(manifest)
	s.log.Debug("manifest built", "files", total)

	events := make(chan Event, eventBuffer)
	if total == 0 {
		events <- completedEvent(s.id, "", 0, 0)
		close(events)
		return events, nil
	}

	proc, err := s.cfg.Launcher(ctx, s.cfg.Binary, s.cfg.args(target)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawn, s.cfg.Binary, err)
	}
	s.log.Info("scan started", "engine", s.cfg.Binary, "files", total)

	go s.consume(ctx, proc, total, events)
	return events, nil
}

func (s *Session) consume(ctx context.Context, proc Process, total int, events chan<- Event) {
	defer close(events)

	// cut is set when a cancelled ctx killed the engine before its output
	// was fully read. readDone and cut are guarded by mu so a kill can never
	// land after the stream ended on its own.
	var (
		mu       sync.Mutex
		readDone bool
		cut      bool
	)
	finishRead := func() bool {
		mu.Lock()
		defer mu.Unlock()
		readDone = true
		return cut
	}

	exited := make(chan struct{})
	defer close(exited)
	go func() {
		select {
		case <-ctx.Done():
			mu.Lock()
			if !readDone {
				cut = true
				if err := proc.Kill(); err != nil {
					s.log.Warn("failed to kill engine", "error", err)
				}
			}
			mu.Unlock()
		case <-exited:
		}
	}()

	finished := false
	defer func() {
		if !finished {
			finishRead()
			_ = proc.Kill()
			_ = proc.Wait()
		}
	}()

	var (
		scanned     int
		summary     strings.Builder
		summaryMode bool
	)

	sc := bufio.NewScanner(proc.Stdout())
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for sc.Scan() {
		if s.cancelled(ctx) {
			finishRead()
			if err := proc.Kill(); err != nil {
				s.log.Warn("failed to kill engine", "error", err)
			}
			_ = proc.Wait()
			finished = true
			s.log.Info("scan stopped", "scanned", scanned, "total", total)
			events <- stoppedEvent(s.id, scanned, total)
			return
		}

		line := sc.Text()
		c := s.cfg.Markers.Classify(line)

		if c.Detection {
			events <- Event{Kind: EventDetection, SessionID: s.id, RawLine: line}
		}
		if c.SummaryStart {
			summaryMode = true
		}
		if summaryMode {
			if summary.Len() > 0 {
				summary.WriteByte('\n')
			}
			summary.WriteString(line)
		}
		if c.Verdict {
			scanned++
			events <- progressEvent(s.id, scanned, total, line)
		}
	}
	wasCut := finishRead()
	if err := sc.Err(); err != nil && !wasCut {
		s.log.Warn("engine output read failed", "error", err)
	}

	// The exit status is not interpreted: clamscan exits 1 when it finds
	// something.
	if err := proc.Wait(); err != nil {
		s.log.Debug("engine exited", "error", err)
	}
	finished = true

	if wasCut {
		s.log.Info("scan stopped", "scanned", scanned, "total", total)
		events <- stoppedEvent(s.id, scanned, total)
		return
	}

	s.log.Info("scan completed", "scanned", scanned, "total", total)
	events <- completedEvent(s.id, summary.String(), scanned, total)
}

func (s *Session) cancelled(ctx context.Context) bool {
	select {
	case <-s.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
