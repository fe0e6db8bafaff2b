package process

import (
	"context"
	"os/exec"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Process is a handle to one launched child. A waiter goroutine owns cmd.Wait
// and closes done once the OS has reaped the child.
type Process struct {
	spec      Spec
	cmd       *exec.Cmd
	pid       int
	runID     string
	startedAt time.Time

	mu      sync.Mutex
	done    chan struct{}
	exitErr error
	exitAt  time.Time
}

// Start launches spec and returns a handle. It does not wait for the child
// to initialize.
func Start(spec Spec) (*Process, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	cmd := spec.BuildCommand()
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &Process{
		spec:      spec,
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		runID:     uuid.NewString(),
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	go p.wait()
	return p, nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.exitErr = err
	p.exitAt = time.Now()
	p.mu.Unlock()
	close(p.done)
}

func (p *Process) PID() int             { return p.pid }
func (p *Process) RunID() string        { return p.runID }
func (p *Process) StartedAt() time.Time { return p.startedAt }
func (p *Process) Name() string         { return p.spec.Name }

// Done is closed once the child has exited and been reaped.
func (p *Process) Done() <-chan struct{} { return p.done }

// Exited reports whether the waiter has observed the exit.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitErr returns the error from cmd.Wait; nil while running or on a clean exit.
func (p *Process) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// ExitedAt returns when the exit was observed, zero while running.
func (p *Process) ExitedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitAt
}

// Alive polls the OS for the child. Nothing is cached: a reaped child, a
// vanished PID and a zombie all count as not alive.
func (p *Process) Alive() bool {
	if p.Exited() {
		return false
	}
	return pidAlive(p.pid)
}

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := gopsproc.PidExists(int32(pid))
	if err != nil || !ok {
		return false
	}
	gp, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	// On Linux a quickly-exiting child can linger as a zombie until the waiter reaps it.
	if st, err := gp.Status(); err == nil && slices.Contains(st, gopsproc.Zombie) {
		return false
	}
	return true
}

// Terminate asks the child to exit gracefully. It does not wait.
func (p *Process) Terminate() error {
	if p.Exited() {
		return nil
	}
	return terminate(p.pid)
}

// Kill forcibly stops the child. It does not wait.
func (p *Process) Kill() error {
	if p.Exited() {
		return nil
	}
	return kill(p.pid)
}

// WaitExit blocks until the child has been reaped or ctx is done.
func (p *Process) WaitExit(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitOrKill waits up to wait for an exit already requested, then kills.
// It reports whether a kill was needed.
func (p *Process) WaitOrKill(wait time.Duration) (bool, error) {
	if p.Exited() {
		return false, nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-p.done:
		return false, nil
	case <-t.C:
	}
	if err := p.Kill(); err != nil {
		return true, err
	}
	select {
	case <-p.done:
	case <-time.After(200 * time.Millisecond):
		// best-effort
	}
	return true, nil
}
