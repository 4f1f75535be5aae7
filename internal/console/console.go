// Package console writes lines into the debugger's console.
//
// The sink behind a Console is resolved lazily on the first write and cached.
// Until it resolves every write is a silent no-op, and a failed write drops
// the cached sink so the next write resolves it again.
package console

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// ErrSinkUnresolved is returned while no console sink could be found
var ErrSinkUnresolved = errors.New("console sink not resolved")

// Sink accepts pre-formatted lines
type Sink interface {
	WriteLine(line string) error
	Close() error
}

// Resolver locates the sink. It is called lazily and again after invalidation.
type Resolver func() (Sink, error)

// Static returns a resolver that always yields sink
func Static(sink Sink) Resolver {
	return func() (Sink, error) { return sink, nil }
}

// DefaultRetryInterval bounds how often a failing resolver is retried
const DefaultRetryInterval = 2 * time.Second

// Console is the shared, lock-guarded handle to the console sink
type Console struct {
	mu          sync.Mutex
	resolve     Resolver
	sink        Sink
	clock       clock.Clock
	retry       time.Duration
	nextAttempt time.Time
	log         *zap.SugaredLogger
	tagStyle    *lipgloss.Style
}

// Option configures a Console
type Option func(*Console)

// WithClock sets the clock used for the resolve back-off
func WithClock(clk clock.Clock) Option {
	return func(c *Console) { c.clock = clk }
}

// WithRetryInterval sets the minimum delay between failed resolve attempts
func WithRetryInterval(d time.Duration) Option {
	return func(c *Console) { c.retry = d }
}

// WithLogger sets the internal diagnostics logger
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Console) { c.log = log }
}

// WithTagStyle renders diagnostic tags with style
func WithTagStyle(style lipgloss.Style) Option {
	return func(c *Console) { c.tagStyle = &style }
}

// New creates a Console around resolve
func New(resolve Resolver, opts ...Option) *Console {
	c := &Console{
		resolve: resolve,
		clock:   clock.New(),
		retry:   DefaultRetryInterval,
		log:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// handle returns the cached sink, resolving it if needed. Caller holds mu.
func (c *Console) handle() Sink {
	if c.sink != nil {
		return c.sink
	}
	if c.resolve == nil {
		return nil
	}
	now := c.clock.Now()
	if now.Before(c.nextAttempt) {
		return nil
	}
	sink, err := c.resolve()
	if err != nil || sink == nil {
		c.nextAttempt = now.Add(c.retry)
		c.log.Debugw("console sink unresolved", "error", err)
		return nil
	}
	c.sink = sink
	return sink
}

// Resolved reports whether a sink is currently cached
func (c *Console) Resolved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sink != nil
}

// WriteLine writes one line. Callers may ignore the error; it only reports
// that the line was dropped.
func (c *Console) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sink := c.handle()
	if sink == nil {
		return ErrSinkUnresolved
	}
	if err := sink.WriteLine(line); err != nil {
		c.log.Debugw("console write failed, invalidating sink", "error", err)
		c.invalidateLocked()
		return err
	}
	return nil
}

// Invalidate drops the cached sink so the next write resolves again
func (c *Console) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

func (c *Console) invalidateLocked() {
	if c.sink != nil {
		_ = c.sink.Close()
		c.sink = nil
	}
	c.nextAttempt = time.Time{}
}

// Close releases the cached sink
func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sink == nil {
		return nil
	}
	err := c.sink.Close()
	c.sink = nil
	return err
}

func (c *Console) formatTag(tag string) string {
	t := "[" + tag + "]"
	if c.tagStyle != nil {
		return c.tagStyle.Render(t)
	}
	return t
}

// Logger writes to the console on behalf of one component
type Logger struct {
	console *Console
	tag     string
}

// Logger returns a Logger that prefixes diagnostics with tag
func (c *Console) Logger(tag string) *Logger {
	return &Logger{console: c, tag: tag}
}

// Tag returns the sender label
func (l *Logger) Tag() string { return l.tag }

// Log writes a tagged diagnostic line
func (l *Logger) Log(format string, args ...any) {
	if l == nil || l.console == nil {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	_ = l.console.WriteLine(l.console.formatTag(l.tag) + " " + msg)
}

// Redirect writes a pre-formatted line without a tag
func (l *Logger) Redirect(line string) {
	if l == nil || l.console == nil {
		return
	}
	_ = l.console.WriteLine(line)
}
