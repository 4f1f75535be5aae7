// Package cli implements the lcw command line.
package cli

import (
	"io"
	"os"
	"strconv"

	"github.com/alecthomas/kong"

	"go.uber.org/zap"

	"github.com/vburojevic/lcw/internal/config"
)

// Set by the release build
var (
	Version = "dev"
	Commit  = "none"
)

// CLI is the kong command model
type CLI struct {
	Format  string `short:"f" default:"${config_format}" enum:"text,ndjson" help:"Output format for command results (text or ndjson)"`
	Quiet   bool   `short:"q" help:"Suppress informational messages (ndjson only)"`
	Verbose bool   `short:"v" help:"Write JSON debug diagnostics to stderr"`

	Attach     AttachCmd     `cmd:"" help:"Mirror the debuggee's logcat into the debugger console"`
	Classify   ClassifyCmd   `cmd:"" help:"Filter and format a captured logcat dump for one process"`
	Config     ConfigCmd     `cmd:"" help:"Show or generate configuration"`
	Completion CompletionCmd `cmd:"" help:"Generate shell completions"`
	Version    VersionCmd    `cmd:"" help:"Show version information"`
	Update     UpdateCmd     `cmd:"" help:"Show how to upgrade lcw"`
}

// KongVars exposes config values as flag defaults. Flags still override them.
func KongVars(cfg *config.Config) kong.Vars {
	if cfg == nil {
		cfg = config.Default()
	}
	return kong.Vars{
		"config_format":           cfg.Format,
		"config_package":          cfg.Defaults.Package,
		"config_serial":           cfg.Device.Serial,
		"config_adb":              cfg.Device.ADB,
		"config_sink":             cfg.Console.Sink,
		"config_tty":              cfg.Console.TTY,
		"config_tmux_session":     cfg.Console.TmuxSession,
		"config_clear_history":    cfg.Defaults.ClearHistory,
		"config_clear_on_exit":    strconv.FormatBool(cfg.Defaults.ClearOnExit),
		"config_collapse_repeats": strconv.FormatBool(cfg.Defaults.CollapseRepeats),
		"config_attach_interval":  cfg.Defaults.AttachInterval,
		"config_event_timeout":    cfg.Defaults.EventTimeout,
		"config_probe_interval":   cfg.Defaults.ProbeInterval,
		"config_stop_grace":       cfg.Defaults.StopGrace,
	}
}

// Globals is passed to every command's Run
type Globals struct {
	Format  string
	Quiet   bool
	Verbose bool
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Config  *config.Config

	log *zap.SugaredLogger
}

// NewGlobalsWithConfig merges parsed flags with the loaded config. Flags win;
// quiet and verbose are also switched on by the config.
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Globals{
		Format:  c.Format,
		Quiet:   c.Quiet || cfg.Quiet,
		Verbose: c.Verbose || cfg.Verbose,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  cfg,
	}
}

// Logger returns the debug logger, a no-op unless verbose
func (g *Globals) Logger() *zap.SugaredLogger {
	if g.log == nil {
		g.log = newDebugLogger(g)
	}
	return g.log
}

// Debug writes a formatted debug message when verbose
func (g *Globals) Debug(format string, args ...any) {
	g.Logger().Debugf(format, args...)
}
