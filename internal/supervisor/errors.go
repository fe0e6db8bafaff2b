package supervisor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyRunning is returned by Start when a live bot exists. It is an
	// outcome, not a failure: nothing was spawned.
	ErrAlreadyRunning = errors.New("bot is already running")
	// ErrNotRunning is returned by Stop when there is no live bot.
	ErrNotRunning = errors.New("bot is not running")
	// ErrClosed is returned once the control loop has exited.
	ErrClosed = errors.New("supervisor is closed")
)

// LaunchError reports that the OS refused to start the bot.
type LaunchError struct {
	Argv []string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %q: %v", strings.Join(e.Argv, " "), e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// SignalError reports that the terminate signal could not be delivered.
// The handle has been cleared regardless.
type SignalError struct {
	PID int
	Err error
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("signal pid %d: %v", e.PID, e.Err)
}

func (e *SignalError) Unwrap() error { return e.Err }
