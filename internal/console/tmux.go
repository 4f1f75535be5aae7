package console

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/GianlucaP106/gotmux/gotmux"
)

// ErrNoPaneAvailable is returned when the tmux sink has been closed
var ErrNoPaneAvailable = errors.New("no tmux pane available")

// IsTmuxAvailable checks if tmux is installed
func IsTmuxAvailable() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}

// GenerateSessionName builds the default session name for a package
func GenerateSessionName(pkg string) string {
	name := strings.NewReplacer(".", "-", ":", "-", " ", "-").Replace(pkg)
	if name == "" {
		return "lcw"
	}
	return "lcw-" + name
}

// TmuxSink writes lines into the first pane of a tmux session
type TmuxSink struct {
	mu      sync.Mutex
	tmux    *gotmux.Tmux
	session string
	open    bool
}

// NewTmuxSink attaches to session, creating it detached when missing
func NewTmuxSink(session string) (*TmuxSink, error) {
	t, err := gotmux.DefaultTmux()
	if err != nil {
		return nil, fmt.Errorf("tmux: %w", err)
	}
	if !t.HasSession(session) {
		if _, err := t.NewSession(&gotmux.SessionOptions{Name: session}); err != nil {
			return nil, fmt.Errorf("failed to create tmux session %s: %w", session, err)
		}
	}
	return &TmuxSink{tmux: t, session: session, open: true}, nil
}

// TmuxResolver resolves a tmux sink for session
func TmuxResolver(session string) Resolver {
	return func() (Sink, error) {
		if !IsTmuxAvailable() {
			return nil, errors.New("tmux not installed")
		}
		return NewTmuxSink(session)
	}
}

func (s *TmuxSink) paneTarget() string {
	return fmt.Sprintf("%s:0.0", s.session)
}

// AttachCommand returns the command a user runs to watch the pane
func (s *TmuxSink) AttachCommand() string {
	return "tmux attach -t " + s.session
}

// WriteLine writes a single line to the pane using echo
func (s *TmuxSink) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return ErrNoPaneAvailable
	}
	_, err := s.tmux.Command("send-keys", "-t", s.paneTarget(), fmt.Sprintf("echo '%s'", escapeTmuxString(line)), "Enter")
	return err
}

// ClearWithBanner clears the pane and scrollback, then prints a session marker
func (s *TmuxSink) ClearWithBanner(message string) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrNoPaneAvailable
	}
	target := s.paneTarget()
	if _, err := s.tmux.Command("send-keys", "-t", target, "-R"); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to reset terminal: %w", err)
	}
	if _, err := s.tmux.Command("clear-history", "-t", target); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to clear history: %w", err)
	}
	if _, err := s.tmux.Command("send-keys", "-t", target, "clear", "Enter"); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to clear screen: %w", err)
	}
	s.mu.Unlock()

	banner := fmt.Sprintf(
		"═══════════════════════════════════════════════════════════\n"+
			"  LogcatConsoleWatcher - %s\n"+
			"  Session: %s | Started: %s\n"+
			"═══════════════════════════════════════════════════════════",
		message,
		s.session,
		time.Now().Format("2006-01-02 15:04:05"),
	)
	for _, line := range strings.Split(banner, "\n") {
		if err := s.WriteLine(line); err != nil {
			return err
		}
	}
	return nil
}

// Close detaches from the pane; the session itself persists
func (s *TmuxSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// escapeTmuxString escapes a line for a single-quoted shell echo
func escapeTmuxString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "'", "'\"'\"'")
	return s
}
