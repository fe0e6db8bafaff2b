package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/botvisor/internal/history"
	"github.com/loykin/botvisor/internal/metrics"
	"github.com/loykin/botvisor/internal/process"
)

const (
	DefaultRestartDelay = 2 * time.Second
	DefaultStopTimeout  = 10 * time.Second

	historyTimeout = 5 * time.Second
	historyQueue   = 64
)

// Options configures a Supervisor.
type Options struct {
	Spec process.Spec
	// RestartDelay is the minimum time between a restart's stop request and
	// the relaunch, so the old process can release ports and files.
	RestartDelay time.Duration
	// StopTimeout bounds how long Restart and Shutdown wait for a terminated
	// bot before killing it.
	StopTimeout time.Duration
	Logger      *slog.Logger
	History     history.Sink     // optional
	Now         func() time.Time // optional clock for uptime
}

// Status is a point-in-time view of the bot.
type Status struct {
	Online    bool
	Uptime    time.Duration
	PID       int
	RunID     string
	StartedAt time.Time
}

type ctrlType int

const (
	ctrlStart ctrlType = iota
	ctrlStop
	ctrlRestart
	ctrlShutdown
	ctrlDetach
)

func (c ctrlType) String() string {
	switch c {
	case ctrlStart:
		return "start"
	case ctrlStop:
		return "stop"
	case ctrlRestart:
		return "restart"
	case ctrlShutdown:
		return "shutdown"
	case ctrlDetach:
		return "detach"
	}
	return "unknown"
}

// ctrlMsg is a control-plane message; the run loop handles one at a time so
// every check-then-act sequence is atomic.
type ctrlMsg struct {
	typ   ctrlType
	reply chan error
}

// Supervisor owns the single bot process. Lifecycle operations are
// serialized through Run; Status only takes a read lock.
type Supervisor struct {
	opts Options
	log  *slog.Logger
	ctrl chan ctrlMsg
	quit chan struct{}
	once sync.Once

	mu        sync.RWMutex
	proc      *process.Process
	startedAt time.Time // left stale after Stop
	stopping  map[string]*process.Process // stopped by a caller, not yet exited
	watchers  sync.WaitGroup

	evMu       sync.Mutex
	events     chan history.Event // nil without a sink
	evClosed   bool
	writerDone chan struct{}
}

func New(opts Options) *Supervisor {
	if opts.Spec.Name == "" {
		opts.Spec.Name = "bot"
	}
	if opts.RestartDelay == 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	if opts.RestartDelay < 0 {
		opts.RestartDelay = 0
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	s := &Supervisor{
		opts:      opts,
		log:       l.With("bot", opts.Spec.Name),
		ctrl:      make(chan ctrlMsg, 16),
		quit:      make(chan struct{}),
		stopping:  make(map[string]*process.Process),
	}
	if opts.History != nil {
		s.events = make(chan history.Event, historyQueue)
		s.writerDone = make(chan struct{})
		go s.writeHistory()
	}
	return s
}

// Run processes control messages until ctx is done or Shutdown is called.
// Cancelling ctx leaves the bot running.
func (s *Supervisor) Run(ctx context.Context) {
	defer s.once.Do(func() { close(s.quit) })
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.ctrl:
			s.log.Debug("control message", "op", msg.typ.String())
			var err error
			switch msg.typ {
			case ctrlStart:
				err = s.start()
			case ctrlStop:
				_, err = s.stop()
			case ctrlRestart:
				err = s.restart(ctx)
			case ctrlShutdown:
				s.shutdown()
				msg.reply <- nil
				return
			case ctrlDetach:
				msg.reply <- nil
				return
			}
			msg.reply <- err
		}
	}
}

func (s *Supervisor) Start(ctx context.Context) error   { return s.send(ctx, ctrlStart) }
func (s *Supervisor) Stop(ctx context.Context) error    { return s.send(ctx, ctrlStop) }
func (s *Supervisor) Restart(ctx context.Context) error { return s.send(ctx, ctrlRestart) }

// Shutdown stops a live bot, waiting up to StopTimeout before killing it,
// ends the run loop and flushes queued history events.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	if err := s.send(ctx, ctrlShutdown); err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	done := make(chan struct{})
	go func() {
		s.watchers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.closeHistory(ctx)
}

// Close ends the run loop and flushes queued history events without touching
// the bot. A live bot keeps running; its exit is no longer recorded.
func (s *Supervisor) Close(ctx context.Context) error {
	if err := s.send(ctx, ctrlDetach); err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	return s.closeHistory(ctx)
}

func (s *Supervisor) send(ctx context.Context, t ctrlType) error {
	reply := make(chan error, 1)
	select {
	case s.ctrl <- ctrlMsg{typ: t, reply: reply}:
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-s.quit:
		// the loop may have replied just before exiting
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status polls the OS for liveness on every call. Uptime is only computed
// for a live process; otherwise it is zero regardless of the stale start time.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	p := s.proc
	started := s.startedAt
	s.mu.RUnlock()
	if p == nil || !p.Alive() {
		return Status{}
	}
	up := s.opts.Now().Sub(started)
	if up < 0 {
		up = 0
	}
	return Status{Online: true, Uptime: up, PID: p.PID(), RunID: p.RunID(), StartedAt: started}
}

func (s *Supervisor) current() *process.Process {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.proc
}

func (s *Supervisor) start() error {
	if p := s.current(); p != nil && p.Alive() {
		return ErrAlreadyRunning
	}
	name := s.opts.Spec.Name
	p, err := process.Start(s.opts.Spec)
	if err != nil {
		metrics.IncStartFailure(name)
		s.log.Error("bot launch failed", "command", s.opts.Spec.String(), "error", err)
		s.record(history.EventStartFailed, history.Record{Name: name, ExitErr: err.Error()})
		return &LaunchError{Argv: s.opts.Spec.Command, Err: err}
	}
	now := s.opts.Now()
	s.mu.Lock()
	s.proc = p
	s.startedAt = now
	s.mu.Unlock()

	metrics.IncStart(name)
	s.log.Info("bot started", "pid", p.PID(), "run_id", p.RunID(), "command", s.opts.Spec.String())
	s.record(history.EventStart, recordOf(p, now))
	s.watchers.Add(1)
	go s.watch(p, now)
	return nil
}

// stop signals a live bot and clears the handle without waiting for the exit.
// The stopped handle is returned so Restart can wait on it.
func (s *Supervisor) stop() (*process.Process, error) {
	p := s.current()
	if p == nil || !p.Alive() {
		return nil, ErrNotRunning
	}
	// held until the stop event is queued so the watcher's exit event follows it
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proc = nil
	s.stopping[p.RunID()] = p

	name := s.opts.Spec.Name
	metrics.IncStop(name)
	rec := recordOf(p, s.startedAt)
	rec.StoppedAt = time.Now()
	if err := p.Terminate(); err != nil {
		s.log.Error("bot terminate failed", "pid", p.PID(), "error", err)
		rec.ExitErr = err.Error()
		s.record(history.EventStop, rec)
		return p, &SignalError{PID: p.PID(), Err: err}
	}
	s.log.Info("bot stop requested", "pid", p.PID(), "run_id", p.RunID())
	s.record(history.EventStop, rec)
	return p, nil
}

func (s *Supervisor) restart(ctx context.Context) error {
	name := s.opts.Spec.Name
	begin := time.Now()
	metrics.IncRestart(name)
	// Stop's outcome is discarded; only the handle matters.
	if p, _ := s.stop(); p != nil {
		killed, err := p.WaitOrKill(s.opts.StopTimeout)
		if killed {
			s.log.Warn("bot did not exit after SIGTERM; killed", "pid", p.PID(), "timeout", s.opts.StopTimeout)
		}
		if err != nil {
			s.log.Warn("bot kill failed", "pid", p.PID(), "error", err)
		}
	}
	if rem := s.opts.RestartDelay - time.Since(begin); rem > 0 {
		t := time.NewTimer(rem)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	metrics.ObserveRestartDuration(name, time.Since(begin).Seconds())
	return s.start()
}

// shutdown stops the live bot and escalates every earlier stop whose
// process is still running.
func (s *Supervisor) shutdown() {
	if p, err := s.stop(); p != nil && err != nil {
		s.log.Warn("shutdown: terminate failed, killing", "pid", p.PID(), "error", err)
	}
	s.mu.RLock()
	pending := make([]*process.Process, 0, len(s.stopping))
	for _, p := range s.stopping {
		pending = append(pending, p)
	}
	s.mu.RUnlock()

	deadline := time.Now().Add(s.opts.StopTimeout)
	for _, p := range pending {
		killed, err := p.WaitOrKill(max(time.Until(deadline), 0))
		if killed {
			s.log.Warn("shutdown: bot killed after timeout", "pid", p.PID(), "run_id", p.RunID())
		}
		if err != nil {
			s.log.Warn("shutdown: kill failed", "pid", p.PID(), "error", err)
		}
	}
}

// watch observes the exit of one run and records it.
func (s *Supervisor) watch(p *process.Process, started time.Time) {
	defer s.watchers.Done()
	<-p.Done()

	s.mu.Lock()
	_, requested := s.stopping[p.RunID()]
	delete(s.stopping, p.RunID())
	current := s.proc == p
	s.mu.Unlock()

	name := s.opts.Spec.Name
	rec := recordOf(p, started)
	rec.StoppedAt = p.ExitedAt()
	exitErr := p.ExitErr()
	if exitErr != nil {
		rec.ExitErr = exitErr.Error()
	}
	metrics.IncExit(name, requested)
	if requested {
		s.log.Info("bot exited", "pid", p.PID(), "run_id", p.RunID(), "exit", rec.ExitErr)
	} else {
		s.log.Warn("bot exited on its own", "pid", p.PID(), "run_id", p.RunID(), "exit", rec.ExitErr)
		if current {
			metrics.SetOnline(name, false)
		}
	}
	s.record(history.EventExit, rec)
}

func recordOf(p *process.Process, started time.Time) history.Record {
	return history.Record{Name: p.Name(), RunID: p.RunID(), PID: p.PID(), StartedAt: started}
}

// record queues an event for the history writer without blocking the caller.
func (s *Supervisor) record(t history.EventType, rec history.Record) {
	if s.events == nil {
		return
	}
	if rec.Name == "" {
		rec.Name = s.opts.Spec.Name
	}
	e := history.Event{Type: t, OccurredAt: time.Now(), Record: rec}
	s.evMu.Lock()
	defer s.evMu.Unlock()
	if s.evClosed {
		return
	}
	select {
	case s.events <- e:
	default:
		s.log.Warn("history queue full, dropping event", "event", string(t), "run_id", rec.RunID)
	}
}

func (s *Supervisor) writeHistory() {
	defer close(s.writerDone)
	for e := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		if err := s.opts.History.Send(ctx, e); err != nil {
			s.log.Warn("history send failed", "event", string(e.Type), "error", err)
		}
		cancel()
	}
}

func (s *Supervisor) closeHistory(ctx context.Context) error {
	if s.events == nil {
		return nil
	}
	s.evMu.Lock()
	if !s.evClosed {
		s.evClosed = true
		close(s.events)
	}
	s.evMu.Unlock()
	select {
	case <-s.writerDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
