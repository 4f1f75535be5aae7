// Package adb wraps the adb commands lcw needs: following and clearing
// logcat, and probing the state of an app process on the device.
package adb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// ErrNoProcess is returned when the package has no running process
var ErrNoProcess = errors.New("process not running")

// DefaultPath is the adb binary looked up on PATH
const DefaultPath = "adb"

// Client builds adb invocations for one device
type Client struct {
	Path       string   // adb binary, defaults to DefaultPath
	Serial     string   // device serial passed with -s, empty for the only device
	LogcatArgs []string // extra arguments for the follow command (e.g. "-b", "main,crash")
}

// NewClient creates a client. Empty path means DefaultPath.
func NewClient(path, serial string, logcatArgs []string) *Client {
	if path == "" {
		path = DefaultPath
	}
	return &Client{Path: path, Serial: serial, LogcatArgs: lo.Compact(logcatArgs)}
}

func (c *Client) args(args ...string) []string {
	if c.Serial == "" {
		return args
	}
	return append([]string{"-s", c.Serial}, args...)
}

// Command returns an adb command bound to ctx
func (c *Client) Command(ctx context.Context, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, c.Path, c.args(args...)...)
}

// Logcat returns the continuous-follow logcat command. The caller starts it.
func (c *Client) Logcat(ctx context.Context) *exec.Cmd {
	return c.Command(ctx, append([]string{"logcat"}, c.LogcatArgs...)...)
}

// ClearLogcat discards the device's buffered log history
func (c *Client) ClearLogcat(ctx context.Context) error {
	out, err := c.Command(ctx, "logcat", "-c").CombinedOutput()
	if err != nil {
		return fmt.Errorf("adb logcat -c: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Pidof returns the pid of the package's main process
func (c *Client) Pidof(ctx context.Context, pkg string) (int, error) {
	out, err := c.Command(ctx, "shell", "pidof", "-s", pkg).Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return 0, ErrNoProcess
	}
	if err != nil {
		return 0, fmt.Errorf("adb pidof %s: %w", pkg, err)
	}
	return parsePidof(out)
}

func parsePidof(out []byte) (int, error) {
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return 0, ErrNoProcess
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("unexpected pidof output %q", strings.TrimSpace(string(out)))
	}
	return pid, nil
}

// ProcState returns the scheduler state letter of pid from /proc/<pid>/stat
// (R running, S sleeping, T stopped, t traced, Z zombie, ...).
func (c *Client) ProcState(ctx context.Context, pid int) (byte, error) {
	out, err := c.Command(ctx, "shell", "cat", "/proc/"+strconv.Itoa(pid)+"/stat").CombinedOutput()
	if bytes.Contains(out, []byte("No such file")) {
		return 0, ErrNoProcess
	}
	if err != nil {
		return 0, fmt.Errorf("adb read stat of %d: %w", pid, err)
	}
	return parseProcState(out)
}

// parseProcState reads the state field that follows the parenthesized command name
func parseProcState(stat []byte) (byte, error) {
	i := bytes.LastIndexByte(stat, ')')
	if i < 0 || i+2 >= len(stat) {
		if bytes.Contains(stat, []byte("No such file")) {
			return 0, ErrNoProcess
		}
		return 0, fmt.Errorf("malformed stat %q", strings.TrimSpace(string(stat)))
	}
	return stat[i+2], nil
}
