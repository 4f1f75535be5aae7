// Package tailer owns one `adb logcat` follow process and forwards the lines
// of the debuggee to the console.
//
// A Tailer runs at most once: Idle → Starting → Tailing → Stopping → Stopped.
// Once stopped it is discarded and a new one is created for the next run.
package tailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vburojevic/lcw/internal/console"
	"github.com/vburojevic/lcw/internal/domain"
	"github.com/vburojevic/lcw/internal/filter"
	"github.com/vburojevic/lcw/internal/logcat"
	"github.com/vburojevic/lcw/internal/session"
)

var (
	// ErrSpawn is returned when the logcat process could not be started
	ErrSpawn = errors.New("failed to start logcat")
	// ErrStreamRead reports an I/O error in the middle of the stream
	ErrStreamRead = errors.New("logcat stream read failed")
	// ErrNotIdle is returned by Start and ClearHistory once tailing has begun
	ErrNotIdle = errors.New("tailer already started")
)

const (
	DefaultStopGrace    = 2 * time.Second
	DefaultClearTimeout = 10 * time.Second
)

// State of a Tailer
type State int32

const (
	Idle State = iota
	Starting
	Tailing
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Tailing:
		return "tailing"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Device produces the log stream
type Device interface {
	// Logcat returns an unstarted follow command bound to ctx
	Logcat(ctx context.Context) *exec.Cmd
	// ClearLogcat discards prior log history and returns when done
	ClearLogcat(ctx context.Context) error
}

// IdentityFunc resolves the debuggee's process name or package id
type IdentityFunc func(ctx context.Context) (domain.ProcessIdentity, error)

// Options tune a Tailer
type Options struct {
	ClearHistory    bool          // clear device history before following
	ClearOnExit     bool          // clear device history when the tailer is closed
	StopGrace       time.Duration // time between SIGTERM and SIGKILL
	ClearTimeout    time.Duration // bound for one `logcat -c`
	Pipeline        *filter.Pipeline
	CollapseRepeats bool
	Tracker         *session.Tracker
	Log             *zap.SugaredLogger
}

// Tailer follows logcat for one debuggee run
type Tailer struct {
	device   Device
	identity IdentityFunc
	console  *console.Logger
	opts     Options
	dedupe   *filter.DedupeFilter
	log      *zap.SugaredLogger

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	running atomic.Bool
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// New creates an idle tailer
func New(device Device, identity IdentityFunc, out *console.Logger, opts Options) *Tailer {
	if opts.StopGrace <= 0 {
		opts.StopGrace = DefaultStopGrace
	}
	if opts.ClearTimeout <= 0 {
		opts.ClearTimeout = DefaultClearTimeout
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	t := &Tailer{
		device:   device,
		identity: identity,
		console:  out,
		opts:     opts,
		log:      log,
		done:     make(chan struct{}),
	}
	if opts.CollapseRepeats {
		t.dedupe = filter.NewDedupeFilter()
	}
	return t
}

// State returns the current state
func (t *Tailer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Alive reports whether the read loop is starting, running or winding down
func (t *Tailer) Alive() bool {
	switch t.State() {
	case Starting, Tailing, Stopping:
		return true
	}
	return false
}

// ClearsHistory reports whether Start clears the device history first
func (t *Tailer) ClearsHistory() bool { return t.opts.ClearHistory }

// Start spawns logcat and begins forwarding in a goroutine. A failure leaves
// the tailer Stopped, writes one diagnostic line and returns an ErrSpawn error.
func (t *Tailer) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state != Idle {
		t.mu.Unlock()
		return ErrNotIdle
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.state = Starting
	t.cancel = cancel
	t.running.Store(true)
	t.mu.Unlock()

	// a clear failure is reported with the start outcome, never on its own
	// ahead of a spawn error
	var clearErr error
	if t.opts.ClearHistory {
		clearErr = t.clearHistory(runCtx)
	}

	id, err := t.identity(runCtx)
	if err != nil {
		return t.failStart(fmt.Errorf("%w: resolve process identity: %v", ErrSpawn, err), clearErr)
	}

	cmd := t.device.Logcat(runCtx)
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = t.opts.StopGrace
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return t.failStart(fmt.Errorf("%w: %v", ErrSpawn, err), clearErr)
	}
	if err := cmd.Start(); err != nil {
		return t.failStart(fmt.Errorf("%w: %v", ErrSpawn, err), clearErr)
	}
	t.log.Debugw("logcat started", "pid", cmd.Process.Pid, "identity", id)
	if clearErr != nil {
		t.console.Log("Failed to clear logcat history: %v", clearErr)
	}

	t.mu.Lock()
	if t.state == Starting {
		t.state = Tailing
	}
	t.mu.Unlock()

	go t.readLoop(runCtx, cmd, stdout, id)
	return nil
}

// failStart folds a preceding clear failure into the start error
func (t *Tailer) failStart(err, clearErr error) error {
	if clearErr != nil {
		err = fmt.Errorf("%w (clear history: %v)", err, clearErr)
	}
	return t.fail(err)
}

// fail ends a Start that never reached the read loop
func (t *Tailer) fail(err error) error {
	t.mu.Lock()
	stopping := t.state == Stopping
	t.mu.Unlock()
	if !stopping {
		t.console.Log("Logcat error: %v", err)
	}
	t.log.Debugw("logcat start failed", "error", err)
	t.finish()
	return err
}

// finish moves the tailer to Stopped and releases waiters
func (t *Tailer) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Stopped {
		return
	}
	t.state = Stopped
	t.running.Store(false)
	if t.cancel != nil {
		t.cancel()
	}
	close(t.done)
}

func (t *Tailer) readLoop(ctx context.Context, cmd *exec.Cmd, stdout io.Reader, id domain.ProcessIdentity) {
	defer t.finish()

	classifier := logcat.NewClassifier(id)
	classifier.OnResolve = func(f *logcat.Filter) {
		t.console.Log("Logcat started! Waiting for logs from %s", f.PackageID())
		if t.opts.Tracker != nil {
			t.opts.Tracker.SetPackage(f.PackageID())
		}
	}

	var readErr error
	for line, err := range logcat.Lines(stdout) {
		if err != nil {
			readErr = err
			break
		}
		if !t.running.Load() {
			break
		}
		rec, ok := classifier.Classify(line)
		if !ok {
			continue
		}
		t.forward(&rec)
	}
	t.flushRepeats()

	interrupted := !t.running.Load() || ctx.Err() != nil
	var waitErr error
	if interrupted || readErr != nil {
		// leaving early must still take the producer down before Wait
		t.mu.Lock()
		t.cancel()
		t.mu.Unlock()
		waitErr = cmd.Wait()
	} else {
		// EOF: the producer is exiting on its own; signal it only if it lingers
		timer := time.AfterFunc(t.opts.StopGrace, func() {
			t.mu.Lock()
			t.cancel()
			t.mu.Unlock()
		})
		waitErr = cmd.Wait()
		timer.Stop()
	}

	if interrupted {
		return
	}
	switch {
	case readErr != nil:
		t.console.Log("Logcat error: %v", fmt.Errorf("%w: %v", ErrStreamRead, readErr))
	case waitErr != nil && ctx.Err() == nil:
		t.console.Log("Logcat exited: %v", waitErr)
	default:
		t.console.Log("Logcat stream ended.")
	}
}

func (t *Tailer) forward(rec *domain.LogRecord) {
	if !t.opts.Pipeline.Match(rec) {
		return
	}
	if t.dedupe != nil {
		res := t.dedupe.Check(rec)
		if res.Collapsed > 0 {
			t.console.Redirect(repeatNotice(res.Collapsed))
		}
		if !res.ShouldEmit {
			return
		}
	}
	if t.opts.Tracker != nil {
		t.opts.Tracker.Record(rec)
	}
	t.console.Redirect(logcat.Render(*rec))
}

func (t *Tailer) flushRepeats() {
	if t.dedupe == nil {
		return
	}
	if n := t.dedupe.Pending(); n > 0 {
		t.console.Redirect(repeatNotice(n))
		t.dedupe.Reset()
	}
}

func repeatNotice(n int) string {
	return logcat.Render(domain.LogRecord{
		Severity: domain.SeverityUnknown,
		Message:  fmt.Sprintf("(previous line repeated %d more times)", n),
	})
}

// Stop ends tailing. It is idempotent and does not wait; use Wait to join.
func (t *Tailer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case Stopping, Stopped:
		return
	case Idle:
		t.state = Stopped
		close(t.done)
		return
	}
	t.state = Stopping
	t.running.Store(false)
	if t.cancel != nil {
		t.cancel()
	}
	t.console.Log("Logcat stopped.")
}

// Wait blocks until the read loop has exited. It returns at once for a
// tailer that was never started.
func (t *Tailer) Wait() {
	if t.State() == Idle {
		return
	}
	<-t.done
}

// Done is closed once the tailer is Stopped
func (t *Tailer) Done() <-chan struct{} { return t.done }

// ClearHistory discards the device log history. Only valid before Start.
func (t *Tailer) ClearHistory(ctx context.Context) error {
	switch t.State() {
	case Starting, Tailing, Stopping:
		return ErrNotIdle
	}
	return t.clearHistory(ctx)
}

func (t *Tailer) clearHistory(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.opts.ClearTimeout)
	defer cancel()
	return t.device.ClearLogcat(ctx)
}

// Close stops the tailer, waits for the read loop and applies the
// clear-on-exit policy. Safe to call on every exit path, more than once.
func (t *Tailer) Close() error {
	t.closeOnce.Do(func() {
		t.Stop()
		t.Wait()
		if t.opts.ClearOnExit {
			if err := t.clearHistory(context.Background()); err != nil {
				t.closeErr = err
				t.console.Log("Failed to clear logcat history: %v", err)
			}
		}
		t.log.Debugw("tailer closed")
	})
	return t.closeErr
}
