//go:build windows

package tracker

import "os/exec"

func prepareCmd(_ *exec.Cmd) {}

// Windows has no SIGTERM for console children; terminate is a kill.
func terminate(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func kill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
