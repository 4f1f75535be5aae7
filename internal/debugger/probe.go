package debugger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/vburojevic/lcw/internal/adb"
	"github.com/vburojevic/lcw/internal/domain"
	"github.com/vburojevic/lcw/internal/lifecycle"
)

// DefaultProbeInterval is the time between two device polls
const DefaultProbeInterval = time.Second

// ProcessQuerier reads process state from a device
type ProcessQuerier interface {
	Pidof(ctx context.Context, pkg string) (int, error)
	ProcState(ctx context.Context, pid int) (byte, error)
}

// ProbeOptions tune a Probe
type ProbeOptions struct {
	Interval time.Duration
	Clock    clock.Clock
	Log      *zap.SugaredLogger
}

// Probe is a Debugger that derives the lifecycle of a package from the
// device's process table. A process that is traced and halted counts as
// stopped; a process that disappears after being seen counts as exited.
type Probe struct {
	device   ProcessQuerier
	pkg      domain.ProcessIdentity
	interval time.Duration
	clock    clock.Clock
	log      *zap.SugaredLogger

	mu   sync.Mutex
	pid  int
	seen bool
}

// NewProbe creates a probe for one package id
func NewProbe(device ProcessQuerier, pkg domain.ProcessIdentity, opts ProbeOptions) *Probe {
	if opts.Interval <= 0 {
		opts.Interval = DefaultProbeInterval
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Probe{device: device, pkg: pkg, interval: opts.Interval, clock: clk, log: log}
}

// State polls the device once
func (p *Probe) State(ctx context.Context) (domain.LifecycleState, error) {
	pid, err := p.device.Pidof(ctx, p.pkg.String())
	if errors.Is(err, adb.ErrNoProcess) {
		return p.gone()
	}
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	if p.pid != pid {
		p.log.Debugw("process found", "package", p.pkg, "pid", pid)
	}
	p.pid = pid
	p.seen = true
	p.mu.Unlock()

	st, err := p.device.ProcState(ctx, pid)
	if errors.Is(err, adb.ErrNoProcess) {
		return p.gone()
	}
	if err != nil {
		return "", err
	}
	return stateFromProc(st), nil
}

func (p *Probe) gone() (domain.LifecycleState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen {
		return domain.StateExited, nil
	}
	return "", fmt.Errorf("%w: %s is not running", lifecycle.ErrNotAttached, p.pkg)
}

// stateFromProc maps a /proc/<pid>/stat state letter
func stateFromProc(st byte) domain.LifecycleState {
	switch st {
	case 'T', 't':
		return domain.StateStopped
	case 'Z', 'X', 'x':
		return domain.StateExited
	}
	return domain.StateRunning
}

// Identity returns the probed package id
func (p *Probe) Identity(context.Context) (domain.ProcessIdentity, error) {
	return p.pkg, nil
}

// WaitForStateChange waits one poll interval, capped by timeout
func (p *Probe) WaitForStateChange(ctx context.Context, timeout time.Duration) error {
	timer := p.clock.Timer(min(p.interval, timeout))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
