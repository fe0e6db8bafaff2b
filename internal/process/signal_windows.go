//go:build windows

package process

import (
	"errors"
	"os"
)

// Windows has no SIGTERM; terminate falls back to TerminateProcess.
func terminate(pid int) error { return kill(pid) }

func kill(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
