// Package supervisor drives the logcat tailer from debugger lifecycle
// transitions. It owns at most one tailer at a time and replaces it with a
// fresh instance after every pause.
package supervisor

import (
	"context"

	"go.uber.org/zap"

	"github.com/vburojevic/lcw/internal/console"
	"github.com/vburojevic/lcw/internal/domain"
	"github.com/vburojevic/lcw/internal/lifecycle"
	"github.com/vburojevic/lcw/internal/session"
	"github.com/vburojevic/lcw/internal/tailer"
)

// Tailer is the part of *tailer.Tailer the supervisor drives
type Tailer interface {
	Start(ctx context.Context) error
	Stop()
	Wait()
	Close() error
	State() tailer.State
	Alive() bool
	ClearsHistory() bool
}

var _ Tailer = (*tailer.Tailer)(nil)

// Factory builds the tailer for a run. generation counts tailers built by
// one supervisor, starting at 1.
type Factory func(generation int) Tailer

// Options tune a Supervisor
type Options struct {
	Tracker *session.Tracker
	Log     *zap.SugaredLogger

	// OnRunEnd is called after each run summary is logged
	OnRunEnd func(*domain.RunEnd)
}

// Supervisor reacts to lifecycle transitions
type Supervisor struct {
	newTailer Factory
	console   *console.Logger
	tracker   *session.Tracker
	log       *zap.SugaredLogger
	onRunEnd  func(*domain.RunEnd)

	generation int
	current    Tailer
	attached   bool
	finished   bool
	closed     bool
}

// New creates a supervisor. out receives the user-visible diagnostics.
func New(factory Factory, out *console.Logger, opts Options) *Supervisor {
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = session.NewTracker(nil)
	}
	return &Supervisor{newTailer: factory, console: out, tracker: tracker, log: log, onRunEnd: opts.OnRunEnd}
}

// Run feeds the watcher's transitions to Handle and releases the tailer on
// every exit path
func (s *Supervisor) Run(ctx context.Context, w *lifecycle.Watcher) error {
	defer s.Close()
	return w.Run(ctx, func(tr lifecycle.Transition) bool {
		return s.Handle(ctx, tr)
	})
}

// Handle applies one transition. It returns false once the session is over.
func (s *Supervisor) Handle(ctx context.Context, tr lifecycle.Transition) bool {
	if s.finished {
		return false
	}
	if !s.attached && tr.To != domain.StateUnattached {
		s.attached = true
		s.console.Log("Listening debugger events started.")
	}
	s.console.Log("Current process state: %s", tr.To)

	switch {
	case tr.To == domain.StateRunning:
		s.resume(ctx)
	case tr.To.IsPaused():
		s.pause(tr.To)
	case tr.To.IsTerminal():
		s.console.Log("Process exited/detached. Cleaning up Logcat...")
		s.release(tr.To)
		s.finished = true
		return false
	}
	return true
}

func (s *Supervisor) spawn() Tailer {
	s.generation++
	s.log.Debugw("tailer created", "generation", s.generation)
	return s.newTailer(s.generation)
}

func (s *Supervisor) resume(ctx context.Context) {
	if s.current != nil && s.current.State() == tailer.Stopped {
		// a failed start or an ended stream; never restarted
		_ = s.current.Close()
		s.current = nil
	}
	if s.current == nil {
		s.current = s.spawn()
	}
	if s.current.State() != tailer.Idle {
		return
	}

	if s.current.ClearsHistory() {
		s.console.Log("Starting Logcat redirection and clearing history...")
	} else {
		s.console.Log("Resuming Logcat redirection without clearing history...")
	}
	start, ended := s.tracker.StartRun()
	s.logRunEnd(ended)
	s.log.Debugw("run started", "run", start.Run, "package", start.Package, "resumed", start.Resumed)

	if err := s.current.Start(ctx); err != nil {
		s.log.Debugw("tailer start failed", "generation", s.generation, "error", err)
	}
}

func (s *Supervisor) pause(reason domain.LifecycleState) {
	if s.current != nil && s.current.Alive() {
		s.console.Log("Pausing Logcat redirection...")
		s.current.Stop()
		s.current.Wait()
		_ = s.current.Close()
		s.current = s.spawn()
	}
	s.logRunEnd(s.tracker.EndRun(reason))
}

func (s *Supervisor) release(reason domain.LifecycleState) {
	if s.current != nil {
		_ = s.current.Close()
		s.current = nil
	}
	s.logRunEnd(s.tracker.EndRun(reason))
}

func (s *Supervisor) logRunEnd(end *domain.RunEnd) {
	if end == nil {
		return
	}
	s.console.Log("Run %d %s: %s", end.Run, end.Reason, end.Summary)
	if s.onRunEnd != nil {
		s.onRunEnd(end)
	}
}

// Current returns the tailer slot, nil before the first Running transition
func (s *Supervisor) Current() Tailer { return s.current }

// Close releases the current tailer. Safe to call more than once.
func (s *Supervisor) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.current != nil {
		err = s.current.Close()
		s.current = nil
	}
	s.logRunEnd(s.tracker.EndRun(domain.StateDetached))
	s.console.Log("Stopping listener.")
	return err
}
