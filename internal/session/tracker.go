package session

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vburojevic/lcw/internal/domain"
)

// Tracker counts run cycles of one debug session and the records each run forwarded.
// A run starts when a tailer starts and ends when it is torn down.
type Tracker struct {
	mu        sync.Mutex
	clock     clock.Clock
	run       int
	pkg       string
	runStart  time.Time
	lineCount int
	errors    int
	warnings  int
	active    bool
}

// NewTracker creates a new run tracker
func NewTracker(clk clock.Clock) *Tracker {
	if clk == nil {
		clk = clock.New()
	}
	return &Tracker{clock: clk}
}

// StartRun opens the next run. A run that is still open is ended first.
func (t *Tracker) StartRun() (*domain.RunStart, *domain.RunEnd) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ended *domain.RunEnd
	if t.active {
		ended = t.endLocked(domain.StateRunning)
	}

	t.run++
	t.active = true
	t.runStart = t.clock.Now()
	t.lineCount = 0
	t.errors = 0
	t.warnings = 0

	return domain.NewRunStart(t.run, t.pkg, t.runStart), ended
}

// SetPackage records the package id resolved during the current run
func (t *Tracker) SetPackage(pkg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pkg = pkg
}

// Record counts one forwarded record
func (t *Tracker) Record(rec *domain.LogRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return
	}
	t.lineCount++
	switch rec.Severity {
	case domain.SeverityError:
		t.errors++
	case domain.SeverityWarn:
		t.warnings++
	}
}

// EndRun closes the current run, returning nil when none is open
func (t *Tracker) EndRun(reason domain.LifecycleState) *domain.RunEnd {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return nil
	}
	return t.endLocked(reason)
}

func (t *Tracker) endLocked(reason domain.LifecycleState) *domain.RunEnd {
	t.active = false
	return domain.NewRunEnd(t.run, reason, domain.RunSummary{
		TotalLines:      t.lineCount,
		Errors:          t.errors,
		Warnings:        t.warnings,
		DurationSeconds: int(t.clock.Since(t.runStart).Seconds()),
	})
}

// Package returns the last resolved package id
func (t *Tracker) Package() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pkg
}

// Stats returns current run statistics
func (t *Tracker) Stats() (run, lines, errors, warnings int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.run, t.lineCount, t.errors, t.warnings
}
