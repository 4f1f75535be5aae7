package console

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrNoConsoleTTY is returned when the debugger console TTY cannot be found
var ErrNoConsoleTTY = errors.New("debugger console tty not found")

// discoveryTimeout bounds the ps/lsof calls used to find the console TTY
const discoveryTimeout = 5 * time.Second

// TTYSink writes lines to a terminal device such as the Xcode LLDB console
type TTYSink struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenTTY opens path for writing. With requireTerminal the file must be a terminal.
func OpenTTY(path string, requireTerminal bool) (*TTYSink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return nil, fmt.Errorf("open console tty: %w", err)
	}
	if requireTerminal && !IsTerminal(f) {
		f.Close()
		return nil, fmt.Errorf("%s is not a terminal", path)
	}
	return &TTYSink{path: path, f: f}, nil
}

// Path returns the device path
func (s *TTYSink) Path() string { return s.path }

// WriteLine writes line followed by a newline
func (s *TTYSink) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return os.ErrClosed
	}
	_, err := s.f.WriteString(line + "\n")
	return err
}

// Close closes the device
func (s *TTYSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// TTYResolver resolves a TTY sink. An empty path discovers the Xcode console TTY.
func TTYResolver(path string) Resolver {
	return func() (Sink, error) {
		p := path
		if p == "" {
			ctx, cancel := context.WithTimeout(context.Background(), discoveryTimeout)
			defer cancel()
			var err error
			p, err = DiscoverXcodeTTY(ctx)
			if err != nil {
				return nil, err
			}
		}
		return OpenTTY(p, true)
	}
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// DiscoverXcodeTTY finds the terminal Xcode uses for its LLDB console
func DiscoverXcodeTTY(ctx context.Context) (string, error) {
	return discoverXcodeTTY(ctx, runCommand)
}

func discoverXcodeTTY(ctx context.Context, run commandRunner) (string, error) {
	psOut, err := run(ctx, "ps", "-A")
	if err != nil {
		return "", fmt.Errorf("list processes: %w", err)
	}
	pid, ok := parseXcodePID(psOut)
	if !ok {
		return "", ErrNoConsoleTTY
	}
	lsofOut, err := run(ctx, "lsof", "-p", strconv.Itoa(pid))
	if err != nil {
		return "", fmt.Errorf("list open files of %d: %w", pid, err)
	}
	tty, ok := parseConsoleTTY(lsofOut)
	if !ok {
		return "", ErrNoConsoleTTY
	}
	return tty, nil
}

// parseXcodePID returns the pid of the first Xcode.app main binary in ps -A output
func parseXcodePID(out []byte) (int, bool) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, "MacOS/Xcode") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		return pid, true
	}
	return 0, false
}

// parseConsoleTTY picks the console pseudo-terminal from lsof output:
// the second /dev/ttys entry, or the only one.
func parseConsoleTTY(out []byte) (string, bool) {
	var ttys []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 9 {
			continue
		}
		name := fields[8]
		if strings.HasPrefix(name, "/dev/ttys") {
			ttys = append(ttys, name)
			if len(ttys) == 2 {
				break
			}
		}
	}
	if len(ttys) == 0 {
		return "", false
	}
	return ttys[len(ttys)-1], true
}
