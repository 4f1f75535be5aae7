package domain

import (
	"fmt"
	"strings"
)

// LifecycleState is the debuggee's coarse execution phase as seen by the debugger
type LifecycleState string

const (
	StateUnattached LifecycleState = "unattached"
	StateLaunching  LifecycleState = "launching"
	StateRunning    LifecycleState = "running"
	StateStopped    LifecycleState = "stopped"
	StateCrashed    LifecycleState = "crashed"
	StateExited     LifecycleState = "exited"
	StateDetached   LifecycleState = "detached"
)

// IsTerminal reports whether no further transitions follow this state
func (s LifecycleState) IsTerminal() bool {
	return s == StateExited || s == StateDetached
}

// IsPaused reports whether the debuggee is halted but still alive
func (s LifecycleState) IsPaused() bool {
	return s == StateStopped || s == StateCrashed
}

func (s LifecycleState) String() string { return string(s) }

// ParseLifecycleState parses a state name. Debugger spellings such as
// "eStateRunning", "launched" or "attaching" are accepted too.
func ParseLifecycleState(s string) (LifecycleState, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "estate")
	switch v {
	case "unattached", "invalid", "unloaded", "connected":
		return StateUnattached, nil
	case "launching", "launched", "attaching":
		return StateLaunching, nil
	case "running", "stepping", "resumed":
		return StateRunning, nil
	case "stopped", "suspended", "paused":
		return StateStopped, nil
	case "crashed":
		return StateCrashed, nil
	case "exited":
		return StateExited, nil
	case "detached":
		return StateDetached, nil
	}
	return "", fmt.Errorf("unknown lifecycle state %q", s)
}
