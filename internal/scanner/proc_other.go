//go:build !unix && !windows

package scanner

import "os/exec"

func configureCommand(cmd *exec.Cmd) {}

func killCommand(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
