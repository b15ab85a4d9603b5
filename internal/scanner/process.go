package scanner

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
)

// Process is a running engine invocation.
type Process interface {
	// Stdout is the engine's standard output.
	Stdout() io.Reader
	// Wait blocks until the process exits. It is safe to call more than once.
	Wait() error
	// Kill force-terminates the process and anything it spawned.
	Kill() error
}

// Launcher starts the engine. It must return an error only when the
// process could not be started at all.
type Launcher func(ctx context.Context, name string, args ...string) (Process, error)

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser

	waitOnce sync.Once
	waitErr  error
	exited   atomic.Bool
}

// ExecLauncher runs the engine as a child process. The session owns its
// lifetime and kills the whole process group on stop or cancellation.
func ExecLauncher(_ context.Context, name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...)
	configureCommand(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd, stdout: stdout}, nil
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }

func (p *execProcess) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
		p.exited.Store(true)
	})
	return p.waitErr
}

// Kill may be called from another goroutine while Wait is blocked.
func (p *execProcess) Kill() error {
	if p.exited.Load() {
		return nil
	}
	return killCommand(p.cmd)
}
