package cli

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/vburojevic/lcw/internal/config"
	"github.com/vburojevic/lcw/internal/output"
)

// ConfigCmd groups the configuration subcommands
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" default:"1" help:"Show the effective configuration"`
	Path     ConfigPathCmd     `cmd:"" help:"Show which config file is used"`
	Generate ConfigGenerateCmd `cmd:"" help:"Print a sample config file"`
}

// ConfigShowCmd prints the effective configuration
type ConfigShowCmd struct{}

// ConfigOutput is the ndjson form of the effective configuration
type ConfigOutput struct {
	Type          string                `json:"type"`
	SchemaVersion int                   `json:"schemaVersion"`
	ConfigFile    string                `json:"config_file,omitempty"`
	Format        string                `json:"format"`
	Quiet         bool                  `json:"quiet"`
	Verbose       bool                  `json:"verbose"`
	Device        config.DeviceConfig   `json:"device"`
	Console       config.ConsoleConfig  `json:"console"`
	Defaults      config.DefaultsConfig `json:"defaults"`
}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if cfg == nil {
		cfg = config.Default()
	}
	path := config.ConfigFile()

	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(&ConfigOutput{
			Type:          "config",
			SchemaVersion: output.SchemaVersion,
			ConfigFile:    path,
			Format:        cfg.Format,
			Quiet:         cfg.Quiet,
			Verbose:       cfg.Verbose,
			Device:        cfg.Device,
			Console:       cfg.Console,
			Defaults:      cfg.Defaults,
		})
	}

	fmt.Fprintln(globals.Stdout, "Current Configuration:")
	if path != "" {
		fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	}
	fmt.Fprintln(globals.Stdout)

	table := tablewriter.NewWriter(globals.Stdout)
	table.Header("Key", "Value")
	rows := [][]string{
		{"format", cfg.Format},
		{"quiet", fmt.Sprint(cfg.Quiet)},
		{"verbose", fmt.Sprint(cfg.Verbose)},
		{"device.adb", cfg.Device.ADB},
		{"device.serial", cfg.Device.Serial},
		{"device.logcat_args", strings.Join(cfg.Device.LogcatArgs, " ")},
		{"console.sink", cfg.Console.Sink},
		{"console.tty", cfg.Console.TTY},
		{"console.tmux_session", cfg.Console.TmuxSession},
		{"defaults.package", cfg.Defaults.Package},
		{"defaults.clear_history", cfg.Defaults.ClearHistory},
		{"defaults.clear_on_exit", fmt.Sprint(cfg.Defaults.ClearOnExit)},
		{"defaults.attach_interval", cfg.Defaults.AttachInterval},
		{"defaults.event_timeout", cfg.Defaults.EventTimeout},
		{"defaults.probe_interval", cfg.Defaults.ProbeInterval},
		{"defaults.stop_grace", cfg.Defaults.StopGrace},
		{"defaults.collapse_repeats", fmt.Sprint(cfg.Defaults.CollapseRepeats)},
		{"defaults.where", strings.Join(cfg.Defaults.Where, ", ")},
		{"defaults.pattern", cfg.Defaults.Pattern},
		{"defaults.exclude", strings.Join(cfg.Defaults.Exclude, ", ")},
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// ConfigPathCmd prints the config file location
type ConfigPathCmd struct{}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(map[string]any{
			"type":          "config_path",
			"schemaVersion": output.SchemaVersion,
			"path":          path,
		})
	}
	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found")
		fmt.Fprintln(globals.Stdout, "Searched: ./.lcw.yaml, ./lcw.yaml, ~/.lcw.yaml, ~/.lcwrc, <user config dir>/lcw/lcw.yaml, /etc/lcw/lcw.yaml")
		return nil
	}
	fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	return nil
}

// ConfigGenerateCmd prints a sample configuration
type ConfigGenerateCmd struct{}

const sampleConfig = `# lcw configuration file
# Place in ./.lcw.yaml, ~/.lcw.yaml, ~/.lcwrc or <user config dir>/lcw/lcw.yaml

# Output format for command results: text or ndjson
format: text
quiet: false
verbose: false

device:
  adb: adb
  # serial: emulator-5554
  # logcat_args: ["-b", "main,crash"]

console:
  # stdout, tty or tmux
  sink: stdout
  # tty: /dev/ttys004
  # tmux_session: lcw-dev

defaults:
  # package: com.example.app
  # never, launch or always
  clear_history: launch
  clear_on_exit: false
  attach_interval: 500ms
  event_timeout: 5s
  probe_interval: 1s
  stop_grace: 2s
  collapse_repeats: false
  # where:
  #   - severity>=W
  # pattern: "Net|Http"
  # exclude:
  #   - heartbeat
`

// Run executes the config generate command
func (c *ConfigGenerateCmd) Run(globals *Globals) error {
	_, err := fmt.Fprint(globals.Stdout, sampleConfig)
	return err
}
