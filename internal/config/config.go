package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Accepted values of the enumerated settings
var (
	Formats       = []string{"text", "ndjson"}
	Sinks         = []string{"stdout", "tty", "tmux"}
	ClearPolicies = []string{"never", "launch", "always"}
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format  string `mapstructure:"format"`
	Quiet   bool   `mapstructure:"quiet"`
	Verbose bool   `mapstructure:"verbose"`

	Device  DeviceConfig  `mapstructure:"device"`
	Console ConsoleConfig `mapstructure:"console"`

	// Default values for commands
	Defaults DefaultsConfig `mapstructure:"defaults"`
}

// DeviceConfig selects the adb binary and device
type DeviceConfig struct {
	ADB        string   `mapstructure:"adb" json:"adb"`
	Serial     string   `mapstructure:"serial" json:"serial"`
	LogcatArgs []string `mapstructure:"logcat_args" json:"logcat_args"`
}

// ConsoleConfig selects where forwarded lines are written
type ConsoleConfig struct {
	Sink        string `mapstructure:"sink" json:"sink"`
	TTY         string `mapstructure:"tty" json:"tty"`
	TmuxSession string `mapstructure:"tmux_session" json:"tmux_session"`
}

// DefaultsConfig holds default values for the attach command
type DefaultsConfig struct {
	Package         string `mapstructure:"package" json:"package"`
	ClearHistory    string `mapstructure:"clear_history" json:"clear_history"`
	ClearOnExit     bool   `mapstructure:"clear_on_exit" json:"clear_on_exit"`
	AttachInterval  string `mapstructure:"attach_interval" json:"attach_interval"`
	EventTimeout    string `mapstructure:"event_timeout" json:"event_timeout"`
	ProbeInterval   string `mapstructure:"probe_interval" json:"probe_interval"`
	StopGrace       string `mapstructure:"stop_grace" json:"stop_grace"`
	CollapseRepeats bool   `mapstructure:"collapse_repeats" json:"collapse_repeats"`

	// Record filters
	Where   []string `mapstructure:"where" json:"where"`
	Pattern string   `mapstructure:"pattern" json:"pattern"`
	Exclude []string `mapstructure:"exclude" json:"exclude"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format: "text",
		Device: DeviceConfig{
			ADB: "adb",
		},
		Console: ConsoleConfig{
			Sink: "stdout",
		},
		Defaults: DefaultsConfig{
			ClearHistory:   "launch",
			AttachInterval: "500ms",
			EventTimeout:   "5s",
			ProbeInterval:  "1s",
			StopGrace:      "2s",
		},
	}
}

// Validate checks enumerated values and durations
func (c *Config) Validate() error {
	var errs []error
	if !lo.Contains(Formats, c.Format) {
		errs = append(errs, fmt.Errorf("format must be one of %s, got %q", strings.Join(Formats, "|"), c.Format))
	}
	if !lo.Contains(Sinks, c.Console.Sink) {
		errs = append(errs, fmt.Errorf("console.sink must be one of %s, got %q", strings.Join(Sinks, "|"), c.Console.Sink))
	}
	if !lo.Contains(ClearPolicies, c.Defaults.ClearHistory) {
		errs = append(errs, fmt.Errorf("defaults.clear_history must be one of %s, got %q", strings.Join(ClearPolicies, "|"), c.Defaults.ClearHistory))
	}
	durations := []lo.Tuple2[string, string]{
		lo.T2("defaults.attach_interval", c.Defaults.AttachInterval),
		lo.T2("defaults.event_timeout", c.Defaults.EventTimeout),
		lo.T2("defaults.probe_interval", c.Defaults.ProbeInterval),
		lo.T2("defaults.stop_grace", c.Defaults.StopGrace),
	}
	for _, kv := range durations {
		if d, err := time.ParseDuration(kv.B); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration, got %q", kv.A, kv.B))
		}
	}
	return errors.Join(errs...)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	// Environment variables
	v.SetEnvPrefix("LCW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Short names for the settings changed most often
	_ = v.BindEnv("defaults.package", "LCW_PACKAGE")
	_ = v.BindEnv("device.serial", "LCW_SERIAL", "ANDROID_SERIAL")
	_ = v.BindEnv("device.adb", "LCW_ADB")
	_ = v.BindEnv("console.sink", "LCW_SINK")

	// Set defaults so every key is known to AutomaticEnv
	cfg := Default()
	v.SetDefault("format", cfg.Format)
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("device.adb", cfg.Device.ADB)
	v.SetDefault("device.serial", cfg.Device.Serial)
	v.SetDefault("device.logcat_args", cfg.Device.LogcatArgs)
	v.SetDefault("console.sink", cfg.Console.Sink)
	v.SetDefault("console.tty", cfg.Console.TTY)
	v.SetDefault("console.tmux_session", cfg.Console.TmuxSession)
	v.SetDefault("defaults.package", cfg.Defaults.Package)
	v.SetDefault("defaults.clear_history", cfg.Defaults.ClearHistory)
	v.SetDefault("defaults.clear_on_exit", cfg.Defaults.ClearOnExit)
	v.SetDefault("defaults.attach_interval", cfg.Defaults.AttachInterval)
	v.SetDefault("defaults.event_timeout", cfg.Defaults.EventTimeout)
	v.SetDefault("defaults.probe_interval", cfg.Defaults.ProbeInterval)
	v.SetDefault("defaults.stop_grace", cfg.Defaults.StopGrace)
	v.SetDefault("defaults.collapse_repeats", cfg.Defaults.CollapseRepeats)
	v.SetDefault("defaults.where", cfg.Defaults.Where)
	v.SetDefault("defaults.pattern", cfg.Defaults.Pattern)
	v.SetDefault("defaults.exclude", cfg.Defaults.Exclude)
	return v
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := newViper()

	if path := findConfigFile(); path != "" {
		v.SetConfigFile(path)
	} else {
		// Lowest precedence locations, only consulted without a local file
		v.SetConfigName("lcw")
		v.AddConfigPath("/etc/lcw/")
		if configDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(configDir, "lcw"))
		}
	}

	// Try to read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// ConfigFile returns the path to the config file Load would read, or ""
func ConfigFile() string {
	if path := findConfigFile(); path != "" {
		return path
	}
	var dirs []string
	if configDir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(configDir, "lcw"))
	}
	dirs = append(dirs, "/etc/lcw")
	for _, dir := range dirs {
		for _, name := range []string{"lcw.yaml", "lcw.yml"} {
			p := filepath.Join(dir, name)
			if fileExists(p) {
				return p
			}
		}
	}
	return ""
}

// findConfigFile looks for a project file in the working directory, then
// a dotfile in the home directory
func findConfigFile() string {
	names := []string{".lcw.yaml", ".lcw.yml", "lcw.yaml", "lcw.yml"}
	if cwd, err := os.Getwd(); err == nil {
		for _, name := range names {
			p := filepath.Join(cwd, name)
			if fileExists(p) {
				return p
			}
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		for _, name := range []string{".lcw.yaml", ".lcw.yml", ".lcwrc"} {
			p := filepath.Join(home, name)
			if fileExists(p) {
				return p
			}
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// applyEnvOverrides applies the short environment variables to a config
// that was not loaded through viper's environment binding
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LCW_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("LCW_QUIET"); v == "true" || v == "1" {
		cfg.Quiet = true
	}
	if v := os.Getenv("LCW_VERBOSE"); v == "true" || v == "1" {
		cfg.Verbose = true
	}
	if v := os.Getenv("LCW_PACKAGE"); v != "" {
		cfg.Defaults.Package = v
	}
	if v := lo.CoalesceOrEmpty(os.Getenv("LCW_SERIAL"), os.Getenv("ANDROID_SERIAL")); v != "" {
		cfg.Device.Serial = v
	}
	if v := os.Getenv("LCW_ADB"); v != "" {
		cfg.Device.ADB = v
	}
	if v := os.Getenv("LCW_SINK"); v != "" {
		cfg.Console.Sink = v
	}
}
