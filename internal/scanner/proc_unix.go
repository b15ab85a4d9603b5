//go:build unix

package scanner

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureCommand puts the engine in its own process group so that a stop
// also reaches any helpers it forks.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killCommand(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
