package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/lcw/internal/config"
)

// testGlobals creates a Globals struct with captured stdout/stderr
func testGlobals(format string) (*Globals, *bytes.Buffer, *bytes.Buffer) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return &Globals{
		Format:  format,
		Quiet:   false,
		Verbose: false,
		Stdout:  stdout,
		Stderr:  stderr,
		Config:  config.Default(),
	}, stdout, stderr
}

// isolateConfig runs the test in empty working and home directories
func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	return dir
}

func newParser(t *testing.T, c *CLI) *kong.Kong {
	t.Helper()
	parser, err := kong.New(c, kong.Name("lcw"), KongVars(config.Default()))
	require.NoError(t, err)
	return parser
}

// --- Config Command Tests ---

func TestConfigShowCmd_Run(t *testing.T) {
	t.Run("outputs config in text format", func(t *testing.T) {
		isolateConfig(t)
		globals, stdout, _ := testGlobals("text")
		cmd := &ConfigShowCmd{}

		require.NoError(t, cmd.Run(globals))

		output := stdout.String()
		assert.Contains(t, output, "Current Configuration:")
		assert.Contains(t, output, "device.adb")
		assert.Contains(t, output, "defaults.clear_history")
		assert.Contains(t, output, "launch")
	})

	t.Run("outputs config in NDJSON format", func(t *testing.T) {
		isolateConfig(t)
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &ConfigShowCmd{}

		require.NoError(t, cmd.Run(globals))

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))

		assert.Equal(t, "config", result["type"])
		assert.Equal(t, "text", result["format"])
		assert.NotContains(t, result, "config_file")
		defaults, ok := result["defaults"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "2s", defaults["stop_grace"])
		device, ok := result["device"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "adb", device["adb"])
	})
}

func TestConfigPathCmd_Run(t *testing.T) {
	t.Run("reports a missing config file", func(t *testing.T) {
		isolateConfig(t)
		globals, stdout, _ := testGlobals("text")
		require.NoError(t, (&ConfigPathCmd{}).Run(globals))
		assert.Contains(t, stdout.String(), "No configuration file found")
	})

	t.Run("reports the project file", func(t *testing.T) {
		dir := isolateConfig(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".lcw.yaml"), []byte("format: text\n"), 0o644))
		globals, stdout, _ := testGlobals("text")
		require.NoError(t, (&ConfigPathCmd{}).Run(globals))
		assert.Contains(t, stdout.String(), "Config file:")
		assert.Contains(t, stdout.String(), ".lcw.yaml")
	})

	t.Run("outputs path in NDJSON format", func(t *testing.T) {
		isolateConfig(t)
		globals, stdout, _ := testGlobals("ndjson")
		require.NoError(t, (&ConfigPathCmd{}).Run(globals))

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
		assert.Equal(t, "config_path", result["type"])
		assert.Contains(t, result, "path")
	})
}

func TestConfigGenerateCmd_Run(t *testing.T) {
	globals, stdout, _ := testGlobals("text")
	require.NoError(t, (&ConfigGenerateCmd{}).Run(globals))

	output := stdout.String()
	assert.Contains(t, output, "# lcw configuration file")
	assert.Contains(t, output, "clear_history: launch")

	// the sample must load and validate
	path := filepath.Join(t.TempDir(), "lcw.yaml")
	require.NoError(t, os.WriteFile(path, stdout.Bytes(), 0o644))
	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "stdout", cfg.Console.Sink)
}

// --- Version / Update ---

func TestVersionCmd_Run(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		require.NoError(t, (&VersionCmd{}).Run(globals))
		assert.Contains(t, stdout.String(), "lcw version")
	})

	t.Run("ndjson", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		require.NoError(t, (&VersionCmd{}).Run(globals))

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
		assert.Equal(t, "version", result["type"])
		assert.Equal(t, Version, result["version"])
		assert.Equal(t, Commit, result["commit"])
	})
}

func TestUpdateCmd_Run(t *testing.T) {
	globals, stdout, _ := testGlobals("ndjson")
	require.NoError(t, (&UpdateCmd{}).Run(globals))

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	assert.Equal(t, "update", result["type"])
	assert.Equal(t, goInstallCmd, result["go_install"])

	globals, stdout, _ = testGlobals("text")
	require.NoError(t, (&UpdateCmd{}).Run(globals))
	assert.Contains(t, stdout.String(), "lcw update instructions")
}

// --- Flag parsing ---

func TestAttachFlagsParse(t *testing.T) {
	var c CLI
	parser := newParser(t, &c)

	_, err := parser.Parse([]string{
		"attach",
		"-p", "com.example.app",
		"-s", "emulator-5554",
		"--logcat-arg=-b",
		"--logcat-arg", "main,crash",
		"--source", "probe",
		"--sink", "tmux",
		"--tmux-session", "dev",
		"--clear-history", "always",
		"--clear-on-exit",
		"-w", "severity>=W",
		"-x", "a{1,3}",
		"--collapse-repeats",
		"--stop-grace", "1s",
	})
	require.NoError(t, err)

	a := c.Attach
	assert.Equal(t, "com.example.app", a.Package)
	assert.Equal(t, "emulator-5554", a.Serial)
	assert.Equal(t, []string{"-b", "main,crash"}, a.Logcat)
	assert.Equal(t, "probe", a.Source)
	assert.Equal(t, "tmux", a.Sink)
	assert.Equal(t, "dev", a.TmuxSession)
	assert.Equal(t, "always", a.ClearHistory)
	assert.True(t, a.ClearOnExit)
	assert.Equal(t, []string{"severity>=W"}, a.Where)
	assert.Equal(t, []string{"a{1,3}"}, a.Exclude)
	assert.True(t, a.CollapseRepeats)
	assert.Equal(t, "1s", a.StopGrace)
}

func TestAttachDefaultsComeFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Defaults.Package = "com.cfg.app"
	cfg.Defaults.ClearHistory = "never"
	cfg.Defaults.CollapseRepeats = true
	cfg.Console.Sink = "tty"

	var c CLI
	parser, err := kong.New(&c, KongVars(cfg))
	require.NoError(t, err)
	_, err = parser.Parse([]string{"attach"})
	require.NoError(t, err)

	assert.Equal(t, "com.cfg.app", c.Attach.Package)
	assert.Equal(t, "never", c.Attach.ClearHistory)
	assert.True(t, c.Attach.CollapseRepeats)
	assert.Equal(t, "tty", c.Attach.Sink)
	assert.Equal(t, "feed", c.Attach.Source)
	assert.Equal(t, "-", c.Attach.Events)
	assert.Equal(t, "500ms", c.Attach.AttachInterval)
	assert.Equal(t, "adb", c.Attach.ADB)
}

func TestAttachRejectsUnknownEnum(t *testing.T) {
	var c CLI
	parser := newParser(t, &c)
	_, err := parser.Parse([]string{"attach", "--clear-history", "sometimes"})
	require.Error(t, err)
}

// --- Completion ---

func TestCompletionFollowsCLIModel(t *testing.T) {
	var c CLI
	parser := newParser(t, &c)
	ctx, err := parser.Parse([]string{"completion", "bash"})
	require.NoError(t, err)

	globals, stdout, _ := testGlobals("text")
	require.NoError(t, c.Completion.Run(globals, ctx))

	script := stdout.String()
	assert.Contains(t, script, "complete -F _lcw lcw")
	assert.Contains(t, script, "_lcw_serials")
	assert.Contains(t, script, `compgen -W "never launch always"`)
	assert.Contains(t, script, `"config show") path=`)
	assert.Contains(t, script, "--dry-run-json")

	for _, shell := range []string{"zsh", "fish"} {
		t.Run(shell, func(t *testing.T) {
			globals, stdout, _ := testGlobals("text")
			require.NoError(t, (&CompletionCmd{Shell: shell}).Run(globals, ctx))
			assert.True(t, strings.Contains(stdout.String(), "lcw"))
			assert.Contains(t, stdout.String(), "pm list packages")
		})
	}
}

// --- Classify ---

const classifyDump = `--------- beginning of main
12-15 10:00:00.000  1000  1000 I ActivityManager: Start proc 4242:com.example.app/u0a1 for activity
12-15 10:00:00.100  4242  4242 E com.example.application: near miss
12-15 10:00:00.200  4242  4242 W com.example.app.Net: retrying
12-15 10:00:00.300  5151  5151 E com.other.app: not ours
12-15 10:00:00.400  4242  4242 I com.example.app: hello
`

func TestClassifyCmd_Text(t *testing.T) {
	globals, stdout, stderr := testGlobals("text")
	globals.Stdin = strings.NewReader(classifyDump)

	cmd := &ClassifyCmd{Package: "com.example.app", File: "-"}
	require.NoError(t, cmd.Run(globals))

	out := stdout.String()
	assert.Contains(t, out, "[Net]\tretrying")
	assert.Contains(t, out, "hello")
	assert.NotContains(t, out, "not ours")
	assert.NotContains(t, out, "near miss")
	assert.Contains(t, stderr.String(), "2 lines for com.example.app (0 errors, 1 warnings)")
}

func TestClassifyCmd_NDJSONWithFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.txt")
	require.NoError(t, os.WriteFile(path, []byte(classifyDump), 0o644))

	globals, stdout, _ := testGlobals("ndjson")
	globals.Quiet = true
	cmd := &ClassifyCmd{Package: "com.example.app", File: path, Where: []string{"severity>=W"}}
	require.NoError(t, cmd.Run(globals))

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "record", rec["type"])
	assert.Equal(t, "Net", rec["tag"])
	assert.Equal(t, "retrying", rec["message"])
}

func TestClassifyCmd_Errors(t *testing.T) {
	globals, _, stderr := testGlobals("text")
	require.Error(t, (&ClassifyCmd{}).Run(globals))
	assert.Contains(t, stderr.String(), "Error [MISSING_PACKAGE]")

	globals, stdout, _ := testGlobals("ndjson")
	require.Error(t, (&ClassifyCmd{Package: "app", File: "/nonexistent/lcw/dump.txt"}).Run(globals))
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	assert.Equal(t, "FILE_NOT_FOUND", result["code"])

	globals, _, stderr = testGlobals("text")
	require.Error(t, (&ClassifyCmd{Package: "app", Pattern: "("}).Run(globals))
	assert.Contains(t, stderr.String(), "Error [INVALID_FILTER]")
}
