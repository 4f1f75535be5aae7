package console

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	lines   []string
	failing bool
	closed  int
}

func (s *recordingSink) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("write failed")
	}
	s.lines = append(s.lines, line)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *recordingSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func TestConsoleResolvesLazilyAndCaches(t *testing.T) {
	sink := &recordingSink{}
	calls := 0
	c := New(func() (Sink, error) {
		calls++
		return sink, nil
	})

	assert.False(t, c.Resolved())
	assert.Equal(t, 0, calls, "resolver must not run before the first write")

	require.NoError(t, c.WriteLine("one"))
	require.NoError(t, c.WriteLine("two"))
	assert.Equal(t, 1, calls)
	assert.True(t, c.Resolved())
	assert.Equal(t, []string{"one", "two"}, sink.Lines())
}

func TestConsoleUnresolvedIsSilentNoop(t *testing.T) {
	mock := clock.NewMock()
	calls := 0
	c := New(func() (Sink, error) {
		calls++
		return nil, errors.New("no tty")
	}, WithClock(mock), WithRetryInterval(time.Second))

	err := c.WriteLine("dropped")
	require.ErrorIs(t, err, ErrSinkUnresolved)

	// within the back-off window the resolver is not retried
	_ = c.WriteLine("dropped")
	assert.Equal(t, 1, calls)

	mock.Add(time.Second)
	_ = c.WriteLine("dropped")
	assert.Equal(t, 2, calls)

	// a Logger over an unresolved console never panics
	c.Logger("ADB").Log("still %s", "quiet")
}

func TestConsoleResolvesAfterEarlierFailure(t *testing.T) {
	mock := clock.NewMock()
	sink := &recordingSink{}
	ready := false
	c := New(func() (Sink, error) {
		if !ready {
			return nil, ErrNoConsoleTTY
		}
		return sink, nil
	}, WithClock(mock))

	require.ErrorIs(t, c.WriteLine("early"), ErrSinkUnresolved)
	ready = true
	mock.Add(DefaultRetryInterval)
	require.NoError(t, c.WriteLine("late"))
	assert.Equal(t, []string{"late"}, sink.Lines())
}

func TestConsoleInvalidatesOnWriteFailure(t *testing.T) {
	first := &recordingSink{failing: true}
	second := &recordingSink{}
	sinks := []*recordingSink{first, second}
	c := New(func() (Sink, error) {
		s := sinks[0]
		sinks = sinks[1:]
		return s, nil
	})

	require.Error(t, c.WriteLine("lost"))
	assert.False(t, c.Resolved())
	assert.Equal(t, 1, first.closed)

	require.NoError(t, c.WriteLine("kept"))
	assert.Equal(t, []string{"kept"}, second.Lines())
}

func TestConsoleInvalidateAndClose(t *testing.T) {
	sink := &recordingSink{}
	c := New(Static(sink))
	require.NoError(t, c.WriteLine("x"))

	c.Invalidate()
	assert.False(t, c.Resolved())
	assert.Equal(t, 1, sink.closed)

	require.NoError(t, c.WriteLine("y"))
	require.NoError(t, c.Close())
	assert.Equal(t, 2, sink.closed)
	require.NoError(t, c.Close())
}

func TestLoggerFormatsTag(t *testing.T) {
	sink := &recordingSink{}
	c := New(Static(sink))
	l := c.Logger("Listener")

	l.Log("Current process state: %s", "running")
	l.Log("plain 100%")
	l.Redirect("🤖‼️[Main]\tboom")

	assert.Equal(t, "Listener", l.Tag())
	assert.Equal(t, []string{
		"[Listener] Current process state: running",
		"[Listener] plain 100%",
		"🤖‼️[Main]\tboom",
	}, sink.Lines())

	var nilLogger *Logger
	nilLogger.Log("ignored")
	nilLogger.Redirect("ignored")
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)
	require.NoError(t, s.WriteLine("a"))
	require.NoError(t, s.WriteLine("b"))
	require.NoError(t, s.Close())
	assert.Equal(t, "a\nb\n", buf.String())
}

func TestOpenTTY(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := OpenTTY(path, true)
	require.Error(t, err, "a regular file is not a terminal")

	s, err := OpenTTY(path, false)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())
	require.NoError(t, s.WriteLine("[ADB] hello"))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.WriteLine("late"), os.ErrClosed)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[ADB] hello\n", string(b))

	_, err = OpenTTY(filepath.Join(t.TempDir(), "missing", "tty"), false)
	require.Error(t, err)
}

const psOutput = `  PID TTY           TIME CMD
    1 ??         2:01.13 /sbin/launchd
  812 ??        12:44.02 /Applications/Xcode.app/Contents/MacOS/Xcode
  901 ttys001    0:00.02 -zsh
`

const lsofOutput = `COMMAND PID USER   FD   TYPE DEVICE SIZE/OFF NODE NAME
Xcode   812 dev  cwd    DIR  1,18      640    2 /
Xcode   812 dev   12u   CHR  16,2      0t0  915 /dev/ttys002
Xcode   812 dev   13u   CHR  16,3      0t0  917 /dev/ttys003
Xcode   812 dev   14u   CHR  16,4      0t0  919 /dev/ttys004
`

func TestParseXcodePID(t *testing.T) {
	pid, ok := parseXcodePID([]byte(psOutput))
	require.True(t, ok)
	assert.Equal(t, 812, pid)

	_, ok = parseXcodePID([]byte("  PID TTY TIME CMD\n    1 ?? 0:00 /sbin/launchd\n"))
	assert.False(t, ok)
}

func TestParseConsoleTTY(t *testing.T) {
	tty, ok := parseConsoleTTY([]byte(lsofOutput))
	require.True(t, ok)
	assert.Equal(t, "/dev/ttys003", tty)

	single := strings.Join(strings.Split(lsofOutput, "\n")[:3], "\n")
	tty, ok = parseConsoleTTY([]byte(single))
	require.True(t, ok)
	assert.Equal(t, "/dev/ttys002", tty)

	_, ok = parseConsoleTTY([]byte("COMMAND PID\n"))
	assert.False(t, ok)
}

func TestDiscoverXcodeTTY(t *testing.T) {
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		switch name {
		case "ps":
			return []byte(psOutput), nil
		case "lsof":
			require.Equal(t, []string{"-p", "812"}, args)
			return []byte(lsofOutput), nil
		}
		return nil, errors.New("unexpected command")
	}
	tty, err := discoverXcodeTTY(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttys003", tty)

	noXcode := func(_ context.Context, name string, _ ...string) ([]byte, error) {
		return []byte("  PID TTY TIME CMD\n"), nil
	}
	_, err = discoverXcodeTTY(context.Background(), noXcode)
	require.ErrorIs(t, err, ErrNoConsoleTTY)
}

func TestTmuxHelpers(t *testing.T) {
	assert.Equal(t, "lcw-com-example-app", GenerateSessionName("com.example.app"))
	assert.Equal(t, "lcw", GenerateSessionName(""))
	assert.Equal(t, `it'"'"'s`, escapeTmuxString("it's"))
	assert.Equal(t, `a\\b`, escapeTmuxString(`a\b`))
}
