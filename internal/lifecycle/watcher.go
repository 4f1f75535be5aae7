// Package lifecycle turns debugger state queries into a stream of
// coalesced state transitions.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/vburojevic/lcw/internal/console"
	"github.com/vburojevic/lcw/internal/domain"
)

// ErrNotAttached is returned by a Debugger while no process is attached
var ErrNotAttached = errors.New("no process attached")

const (
	DefaultAttachInterval = 500 * time.Millisecond
	DefaultEventTimeout   = 5 * time.Second
)

// Debugger is the front-end the watcher observes
type Debugger interface {
	// State returns the current lifecycle state or an error while nothing is attached
	State(ctx context.Context) (domain.LifecycleState, error)
	// Identity returns the debuggee's process name or package id
	Identity(ctx context.Context) (domain.ProcessIdentity, error)
	// WaitForStateChange blocks until the state may have changed or timeout
	// elapses. Both cases return nil.
	WaitForStateChange(ctx context.Context, timeout time.Duration) error
}

// Transition is one observed state change
type Transition struct {
	From domain.LifecycleState
	To   domain.LifecycleState
	At   time.Time
}

// Options tune a Watcher
type Options struct {
	AttachInterval time.Duration
	EventTimeout   time.Duration
	Clock          clock.Clock
	Log            *zap.SugaredLogger
}

// Watcher polls a Debugger and emits transitions
type Watcher struct {
	dbg     Debugger
	console *console.Logger
	opts    Options
	clock   clock.Clock
	log     *zap.SugaredLogger
}

// New creates a watcher. out receives the user-visible waiting notice.
func New(dbg Debugger, out *console.Logger, opts Options) *Watcher {
	if opts.AttachInterval <= 0 {
		opts.AttachInterval = DefaultAttachInterval
	}
	if opts.EventTimeout <= 0 {
		opts.EventTimeout = DefaultEventTimeout
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Watcher{dbg: dbg, console: out, opts: opts, clock: clk, log: log}
}

// Run observes the debugger until a terminal state is emitted, emit returns
// false, or ctx is done. Identical consecutive states produce one transition.
// Query errors mean "not attached yet" and are retried.
func (w *Watcher) Run(ctx context.Context, emit func(Transition) bool) error {
	last := domain.StateUnattached
	announced := false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		state, err := w.dbg.State(ctx)
		if err != nil {
			if !errors.Is(err, ErrNotAttached) {
				w.log.Debugw("state query failed", "error", err)
			}
			if !announced {
				w.console.Log("Waiting for debugger!...")
				announced = true
			}
			if err := w.sleep(ctx, w.opts.AttachInterval); err != nil {
				return err
			}
			continue
		}

		if state != last {
			tr := Transition{From: last, To: state, At: w.clock.Now()}
			last = state
			w.log.Debugw("state transition", "from", tr.From, "to", tr.To)
			if !emit(tr) || state.IsTerminal() {
				return nil
			}
		}

		if state == domain.StateUnattached {
			if err := w.sleep(ctx, w.opts.AttachInterval); err != nil {
				return err
			}
			continue
		}
		if err := w.dbg.WaitForStateChange(ctx, w.opts.EventTimeout); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Debugw("state change wait failed", "error", err)
			if err := w.sleep(ctx, w.opts.AttachInterval); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) sleep(ctx context.Context, d time.Duration) error {
	timer := w.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
