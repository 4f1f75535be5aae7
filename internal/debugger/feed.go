// Package debugger provides the debugger front-ends the lifecycle watcher
// observes: a notification feed written by a debugger stop-hook, and a probe
// that polls the app process on the device.
package debugger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/vburojevic/lcw/internal/domain"
	"github.com/vburojevic/lcw/internal/lifecycle"
	"github.com/vburojevic/lcw/internal/logcat"
)

// Notification is one message on a feed
type Notification struct {
	State   string `json:"state"`
	Process string `json:"process,omitempty"`
}

// ParseNotification parses a JSON notification or a bare line of the form
// "<state> [process]". Blank lines and # comments return ok=false.
func ParseNotification(line string) (n Notification, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Notification{}, false, nil
	}
	if strings.HasPrefix(line, "{") {
		if err := json.Unmarshal([]byte(line), &n); err != nil {
			return Notification{}, false, fmt.Errorf("invalid notification: %w", err)
		}
		if n.State == "" {
			return Notification{}, false, fmt.Errorf("notification without state: %s", line)
		}
		return n, true, nil
	}
	fields := strings.Fields(line)
	n.State = fields[0]
	if len(fields) > 1 {
		n.Process = fields[1]
	}
	return n, true, nil
}

// FeedOptions tune a Feed
type FeedOptions struct {
	Identity domain.ProcessIdentity // used until a notification names the process
	Clock    clock.Clock
	Log      *zap.SugaredLogger
}

// Feed is a Debugger driven by state notifications read from a stream.
// Every notified state is reported by State exactly once, in order; the
// stream ending reports detached.
type Feed struct {
	clock clock.Clock
	log   *zap.SugaredLogger

	mu       sync.Mutex
	attached bool
	current  domain.LifecycleState
	pending  []domain.LifecycleState
	identity domain.ProcessIdentity

	// changed holds at most one wakeup; a set signal is consumed by one waiter
	changed chan struct{}
	done    chan struct{}
}

// NewFeed starts reading notifications from r
func NewFeed(r io.Reader, opts FeedOptions) *Feed {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	f := &Feed{
		clock:    clk,
		log:      log,
		identity: opts.Identity,
		changed:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go f.read(r)
	return f
}

func (f *Feed) read(r io.Reader) {
	defer close(f.done)
	for line, err := range logcat.Lines(r) {
		if err != nil {
			f.log.Debugw("notification stream failed", "error", err)
			break
		}
		n, ok, err := ParseNotification(line)
		if err != nil {
			f.log.Debugw("skipping notification", "error", err)
			continue
		}
		if !ok {
			continue
		}
		state, err := domain.ParseLifecycleState(n.State)
		if err != nil {
			f.log.Debugw("skipping notification", "error", err)
			continue
		}
		f.push(state, domain.ProcessIdentity(n.Process))
	}
	f.push(domain.StateDetached, "")
}

func (f *Feed) push(state domain.LifecycleState, process domain.ProcessIdentity) {
	f.mu.Lock()
	f.attached = true
	f.pending = append(f.pending, state)
	if process != "" {
		f.identity = process
	}
	f.mu.Unlock()

	select {
	case f.changed <- struct{}{}:
	default:
	}
}

// Done is closed once the stream has ended
func (f *Feed) Done() <-chan struct{} { return f.done }

// State returns the next unreported state, or the current one when all
// notifications have been reported
func (f *Feed) State(context.Context) (domain.LifecycleState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.attached {
		return "", lifecycle.ErrNotAttached
	}
	if len(f.pending) > 0 {
		f.current = f.pending[0]
		f.pending = f.pending[1:]
	}
	return f.current, nil
}

// Identity returns the last process named by a notification, or the
// configured identity
func (f *Feed) Identity(context.Context) (domain.ProcessIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.identity == "" {
		return "", fmt.Errorf("%w: no process name notified yet", lifecycle.ErrNotAttached)
	}
	return f.identity, nil
}

// WaitForStateChange returns when a notification arrives or timeout elapses
func (f *Feed) WaitForStateChange(ctx context.Context, timeout time.Duration) error {
	f.mu.Lock()
	queued := len(f.pending) > 0
	f.mu.Unlock()
	if queued {
		return nil
	}

	timer := f.clock.Timer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.changed:
	case <-timer.C:
	}
	return nil
}
