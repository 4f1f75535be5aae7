package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/vburojevic/lcw/internal/adb"
	"github.com/vburojevic/lcw/internal/console"
	"github.com/vburojevic/lcw/internal/debugger"
	"github.com/vburojevic/lcw/internal/domain"
	"github.com/vburojevic/lcw/internal/filter"
	"github.com/vburojevic/lcw/internal/lifecycle"
	"github.com/vburojevic/lcw/internal/output"
	"github.com/vburojevic/lcw/internal/session"
	"github.com/vburojevic/lcw/internal/supervisor"
	"github.com/vburojevic/lcw/internal/tailer"
)

// AttachCmd follows the debuggee's logcat for the lifetime of a debug session
type AttachCmd struct {
	Package string   `short:"p" default:"${config_package}" help:"Package id of the debuggee (a dotted name is used as-is, a :process suffix is dropped) or a bare name to discover from the log"`
	Serial  string   `short:"s" default:"${config_serial}" help:"Device serial passed to adb -s"`
	ADB     string   `name:"adb" default:"${config_adb}" help:"Path to the adb binary"`
	Logcat  []string `name:"logcat-arg" sep:"none" help:"Extra argument for adb logcat (can be repeated)"`

	Source string `default:"feed" enum:"feed,probe" help:"Lifecycle source: 'feed' reads state notifications, 'probe' polls the device"`
	Events string `short:"e" default:"-" help:"Notification stream for --source feed: '-' for stdin, or a file/FIFO path"`

	Sink        string `default:"${config_sink}" enum:"stdout,tty,tmux" help:"Where forwarded lines are written"`
	TTY         string `name:"tty" default:"${config_tty}" help:"Console TTY for --sink tty (default: discover the debugger console)"`
	TmuxSession string `name:"tmux-session" default:"${config_tmux_session}" help:"tmux session for --sink tmux (default: lcw-<package>)"`

	ClearHistory string `default:"${config_clear_history}" enum:"never,launch,always" help:"Clear device log history before the first run, before every run, or never"`
	ClearOnExit  bool   `default:"${config_clear_on_exit}" help:"Clear device log history when a tailer is released"`

	Pattern         string   `short:"g" help:"Regex the tag or message must match"`
	Exclude         []string `short:"x" sep:"none" help:"Regex excluding matching lines (can be repeated)"`
	Where           []string `short:"w" sep:"none" help:"Field filter such as severity>=W or tag~Net (can be repeated)"`
	CollapseRepeats bool     `default:"${config_collapse_repeats}" help:"Collapse consecutive identical lines"`

	AttachInterval string `default:"${config_attach_interval}" help:"Retry interval while no process is attached"`
	EventTimeout   string `default:"${config_event_timeout}" help:"Upper bound of one wait for a state change"`
	ProbeInterval  string `default:"${config_probe_interval}" help:"Poll interval for --source probe"`
	StopGrace      string `default:"${config_stop_grace}" help:"Time between SIGTERM and SIGKILL when stopping logcat"`

	DryRunJSON bool `name:"dry-run-json" help:"Print the resolved attach plan as JSON and exit"`
}

// attachTimings holds the parsed duration flags
type attachTimings struct {
	attach, event, probe, grace time.Duration
}

// AttachPlan is the resolved configuration printed by --dry-run-json
type AttachPlan struct {
	Type            string   `json:"type"`
	SchemaVersion   int      `json:"schemaVersion"`
	Package         string   `json:"package"`
	Serial          string   `json:"serial,omitempty"`
	ADB             string   `json:"adb"`
	LogcatArgs      []string `json:"logcat_args,omitempty"`
	Source          string   `json:"source"`
	Events          string   `json:"events,omitempty"`
	Sink            string   `json:"sink"`
	TTY             string   `json:"tty,omitempty"`
	TmuxSession     string   `json:"tmux_session,omitempty"`
	ClearHistory    string   `json:"clear_history"`
	ClearOnExit     bool     `json:"clear_on_exit"`
	Pattern         string   `json:"pattern,omitempty"`
	Exclude         []string `json:"exclude,omitempty"`
	Where           []string `json:"where,omitempty"`
	CollapseRepeats bool     `json:"collapse_repeats"`
	AttachInterval  string   `json:"attach_interval"`
	EventTimeout    string   `json:"event_timeout"`
	ProbeInterval   string   `json:"probe_interval"`
	StopGrace       string   `json:"stop_grace"`
}

// Run executes the attach command
func (c *AttachCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return c.run(ctx, globals)
}

func (c *AttachCmd) run(ctx context.Context, globals *Globals) error {
	c.applyConfigLists(globals)
	if err := validateFlags(globals, c.DryRunJSON, c.Sink); err != nil {
		return err
	}

	timings, err := c.parseTimings()
	if err != nil {
		return outputErrorCommon(globals, "INVALID_DURATION", err.Error())
	}
	pipeline, err := filter.Build(c.Pattern, c.Exclude, c.Where)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_FILTER", err.Error(), "check --pattern, --exclude and --where")
	}
	if c.Package == "" && c.Source == "probe" {
		return outputErrorCommon(globals, "MISSING_PACKAGE", "--source probe needs the package to poll", "pass --package or set defaults.package")
	}
	if c.TmuxSession == "" {
		c.TmuxSession = console.GenerateSessionName(c.Package)
	}

	if c.DryRunJSON {
		return output.NewNDJSONWriter(globals.Stdout).Write(c.plan())
	}

	// one writer serializes console lines and run summaries on stdout
	var ndjson *output.NDJSONWriter
	if globals.Format == "ndjson" {
		ndjson = output.NewNDJSONWriter(globals.Stdout)
	}
	log := globals.Logger()
	client := adb.NewClient(c.ADB, c.Serial, c.Logcat)

	resolver, err := c.sinkResolver(globals, ndjson)
	if err != nil {
		return err
	}
	con := console.New(resolver, c.consoleOptions(globals, log)...)
	defer con.Close()

	dbg, closeEvents, err := c.debugger(globals, client, timings, log)
	if err != nil {
		return err
	}
	defer closeEvents()

	c.announce(globals, ndjson)

	tracker := session.NewTracker(nil)
	factory := func(generation int) supervisor.Tailer {
		return tailer.New(client, dbg.Identity, con.Logger("ADB"), tailer.Options{
			ClearHistory:    clearsOnRun(c.ClearHistory, generation),
			ClearOnExit:     c.ClearOnExit,
			StopGrace:       timings.grace,
			Pipeline:        pipeline,
			CollapseRepeats: c.CollapseRepeats,
			Tracker:         tracker,
			Log:             log.With("component", "tailer", "generation", generation),
		})
	}
	sup := supervisor.New(factory, con.Logger("Listener"), supervisor.Options{
		Tracker: tracker,
		Log:     log.With("component", "supervisor"),
		OnRunEnd: func(end *domain.RunEnd) {
			if ndjson != nil {
				_ = ndjson.WriteRunEnd(end)
			}
		},
	})
	watcher := lifecycle.New(dbg, con.Logger("Listener"), lifecycle.Options{
		AttachInterval: timings.attach,
		EventTimeout:   timings.event,
		Log:            log.With("component", "watcher"),
	})

	err = sup.Run(ctx, watcher)
	if err != nil && !errors.Is(err, context.Canceled) {
		return outputErrorCommon(globals, "ATTACH_FAILED", err.Error())
	}
	return nil
}

// applyConfigLists fills list flags the user left empty from the config file
func (c *AttachCmd) applyConfigLists(globals *Globals) {
	cfg := globals.Config
	if cfg == nil {
		return
	}
	if len(c.Logcat) == 0 {
		c.Logcat = cfg.Device.LogcatArgs
	}
	if len(c.Exclude) == 0 {
		c.Exclude = cfg.Defaults.Exclude
	}
	if len(c.Where) == 0 {
		c.Where = cfg.Defaults.Where
	}
	c.Pattern = lo.CoalesceOrEmpty(c.Pattern, cfg.Defaults.Pattern)
}

func (c *AttachCmd) parseTimings() (attachTimings, error) {
	var t attachTimings
	for _, f := range []struct {
		flag string
		raw  string
		dst  *time.Duration
	}{
		{"--attach-interval", c.AttachInterval, &t.attach},
		{"--event-timeout", c.EventTimeout, &t.event},
		{"--probe-interval", c.ProbeInterval, &t.probe},
		{"--stop-grace", c.StopGrace, &t.grace},
	} {
		d, err := time.ParseDuration(f.raw)
		if err != nil || d <= 0 {
			return t, fmt.Errorf("invalid %s %q: expected a positive duration like 500ms", f.flag, f.raw)
		}
		*f.dst = d
	}
	return t, nil
}

func (c *AttachCmd) plan() *AttachPlan {
	p := &AttachPlan{
		Type:            "attach_plan",
		SchemaVersion:   output.SchemaVersion,
		Package:         c.Package,
		Serial:          c.Serial,
		ADB:             lo.CoalesceOrEmpty(c.ADB, adb.DefaultPath),
		LogcatArgs:      lo.Compact(c.Logcat),
		Source:          c.Source,
		Sink:            c.Sink,
		ClearHistory:    c.ClearHistory,
		ClearOnExit:     c.ClearOnExit,
		Pattern:         c.Pattern,
		Exclude:         lo.Compact(c.Exclude),
		Where:           lo.Compact(c.Where),
		CollapseRepeats: c.CollapseRepeats,
		AttachInterval:  c.AttachInterval,
		EventTimeout:    c.EventTimeout,
		ProbeInterval:   c.ProbeInterval,
		StopGrace:       c.StopGrace,
	}
	if c.Source == "feed" {
		p.Events = c.Events
	}
	switch c.Sink {
	case "tty":
		p.TTY = c.TTY
	case "tmux":
		p.TmuxSession = c.TmuxSession
	}
	return p
}

// clearsOnRun applies the clear-history policy to the tailer of one generation
func clearsOnRun(policy string, generation int) bool {
	switch policy {
	case "always":
		return true
	case "launch":
		return generation == 1
	}
	return false
}

func (c *AttachCmd) sinkResolver(globals *Globals, ndjson *output.NDJSONWriter) (console.Resolver, error) {
	switch c.Sink {
	case "tty":
		return console.TTYResolver(c.TTY), nil
	case "tmux":
		if !console.IsTmuxAvailable() {
			return nil, outputErrorCommon(globals, "TMUX_UNAVAILABLE", "tmux is not installed", "install tmux or use --sink stdout")
		}
		sink, err := console.NewTmuxSink(c.TmuxSession)
		if err != nil {
			return nil, outputErrorCommon(globals, "TMUX_ERROR", err.Error())
		}
		if err := sink.ClearWithBanner(fmt.Sprintf("Attached: %s", lo.CoalesceOrEmpty(c.Package, "debuggee"))); err != nil {
			globals.Debug("tmux banner failed: %v", err)
		}
		if ndjson != nil {
			_ = ndjson.WriteTmux(c.TmuxSession, sink.AttachCommand())
		} else {
			fmt.Fprintf(globals.Stdout, "Tmux session: %s\n", c.TmuxSession)
			fmt.Fprintf(globals.Stdout, "Attach with: %s\n", sink.AttachCommand())
		}
		return firstThen(sink, console.TmuxResolver(c.TmuxSession)), nil
	}
	if ndjson != nil {
		return console.Static(ndjson), nil
	}
	return console.Static(console.NewWriterSink(globals.Stdout)), nil
}

// firstThen yields sink once, then defers to next after an invalidation
func firstThen(sink console.Sink, next console.Resolver) console.Resolver {
	used := false
	return func() (console.Sink, error) {
		if !used {
			used = true
			return sink, nil
		}
		return next()
	}
}

func (c *AttachCmd) consoleOptions(globals *Globals, log *zap.SugaredLogger) []console.Option {
	opts := []console.Option{console.WithLogger(log.With("component", "console"))}
	if f, ok := globals.Stdout.(*os.File); ok && c.Sink == "stdout" && globals.Format == "text" && console.IsTerminal(f) {
		opts = append(opts, console.WithTagStyle(console.DiagnosticTagStyle()))
	}
	return opts
}

// debugger builds the lifecycle source. The returned func releases it.
func (c *AttachCmd) debugger(globals *Globals, client *adb.Client, timings attachTimings, log *zap.SugaredLogger) (lifecycle.Debugger, func(), error) {
	if c.Source == "probe" {
		p := debugger.NewProbe(client, domain.ProcessIdentity(c.Package), debugger.ProbeOptions{
			Interval: timings.probe,
			Log:      log.With("component", "probe"),
		})
		return p, func() {}, nil
	}

	var r io.Reader = globals.Stdin
	release := func() {}
	if c.Events != "-" {
		// opening a FIFO blocks until the writer side is opened
		f, err := os.Open(c.Events)
		if err != nil {
			return nil, nil, outputErrorCommon(globals, "EVENTS_UNAVAILABLE", err.Error(), "pass '-' to read notifications from stdin")
		}
		r = f
		release = func() { _ = f.Close() }
	}
	if r == nil {
		r = os.Stdin
	}
	feed := debugger.NewFeed(r, debugger.FeedOptions{
		Identity: domain.ProcessIdentity(c.Package),
		Log:      log.With("component", "feed"),
	})
	return feed, release, nil
}

// announce writes the startup banner unless quiet
func (c *AttachCmd) announce(globals *Globals, ndjson *output.NDJSONWriter) {
	if globals.Quiet {
		return
	}
	target := lo.CoalesceOrEmpty(c.Package, "the debuggee")
	device := lo.CoalesceOrEmpty(c.Serial, "default device")
	if ndjson != nil {
		_ = ndjson.WriteInfo(fmt.Sprintf("Attaching to %s on %s", target, device))
		return
	}
	fmt.Fprintf(globals.Stderr, "Attaching to %s on %s (source: %s, sink: %s)\n", target, device, c.Source, c.Sink)
	fmt.Fprintln(globals.Stderr, "Press Ctrl+C to stop")
}
