package adb

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStubADB installs a fake adb that answers the calls lcw makes
func writeStubADB(t *testing.T) string {
	t.Helper()
	stubDir := t.TempDir()
	adbPath := filepath.Join(stubDir, "adb")

	script := `#!/bin/sh
set -eu

if [ "$1" = "-s" ]; then
  echo "serial=$2" >> "$(dirname "$0")/calls"
  shift 2
fi

if [ "$#" -ge 2 ] && [ "$1" = "logcat" ] && [ "$2" = "-c" ]; then
  echo "cleared" >> "$(dirname "$0")/calls"
  exit 0
fi

if [ "$#" -ge 1 ] && [ "$1" = "logcat" ]; then
  echo "--------- beginning of main"
  echo "10-19 06:00:00.123  1234  1250 E com.example.app.MainActivity: Crash detail"
  exit 0
fi

if [ "$#" -ge 4 ] && [ "$1" = "shell" ] && [ "$2" = "pidof" ]; then
  if [ "$4" = "com.example.app" ]; then
    echo "4242"
    exit 0
  fi
  exit 1
fi

if [ "$#" -ge 3 ] && [ "$1" = "shell" ] && [ "$2" = "cat" ] && [ "$3" = "/proc/4242/stat" ]; then
  echo "4242 (com.example.app) t 600 600 0 0 -1 1077952832"
  exit 0
fi

echo "stub: unsupported adb args: $*" >&2
exit 2
`
	require.NoError(t, os.WriteFile(adbPath, []byte(script), 0o755))
	return adbPath
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("", "", []string{"", "-b", "main"})
	assert.Equal(t, DefaultPath, c.Path)
	assert.Equal(t, []string{"-b", "main"}, c.LogcatArgs)

	cmd := c.Logcat(context.Background())
	assert.Equal(t, []string{DefaultPath, "logcat", "-b", "main"}, cmd.Args)

	c = NewClient("/opt/homebrew/bin/adb", "emulator-5554", nil)
	cmd = c.Logcat(context.Background())
	assert.Equal(t, []string{"/opt/homebrew/bin/adb", "-s", "emulator-5554", "logcat"}, cmd.Args)
}

func TestClientWithStubADB(t *testing.T) {
	adbPath := writeStubADB(t)
	ctx := context.Background()
	c := NewClient(adbPath, "emulator-5554", nil)

	require.NoError(t, c.ClearLogcat(ctx))
	calls, err := os.ReadFile(filepath.Join(filepath.Dir(adbPath), "calls"))
	require.NoError(t, err)
	assert.Contains(t, string(calls), "serial=emulator-5554")
	assert.Contains(t, string(calls), "cleared")

	pid, err := c.Pidof(ctx, "com.example.app")
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)

	_, err = c.Pidof(ctx, "com.other.app")
	require.ErrorIs(t, err, ErrNoProcess)

	state, err := c.ProcState(ctx, 4242)
	require.NoError(t, err)
	assert.Equal(t, byte('t'), state)

	_, err = c.ProcState(ctx, 1)
	require.Error(t, err)

	cmd := c.Logcat(ctx)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())
	out, err := io.ReadAll(stdout)
	require.NoError(t, err)
	require.NoError(t, cmd.Wait())
	assert.Contains(t, string(out), "Crash detail")
}

func TestClearLogcatFailure(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing-adb"), "", nil)
	require.Error(t, c.ClearLogcat(context.Background()))
	_, err := c.Pidof(context.Background(), "com.example.app")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoProcess)
}

func TestParsePidof(t *testing.T) {
	pid, err := parsePidof([]byte("1234\n"))
	require.NoError(t, err)
	assert.Equal(t, 1234, pid)

	pid, err = parsePidof([]byte("1234 5678\n"))
	require.NoError(t, err)
	assert.Equal(t, 1234, pid)

	_, err = parsePidof([]byte("\n"))
	require.ErrorIs(t, err, ErrNoProcess)

	_, err = parsePidof([]byte("pidof: not found"))
	require.Error(t, err)
}

func TestParseProcState(t *testing.T) {
	tests := []struct {
		stat string
		want byte
	}{
		{"4242 (com.example.app) S 600 600 0 0", 'S'},
		{"4242 (com.example.app) R 600", 'R'},
		{"4242 (weird) name) T 600", 'T'},
		{"4242 (com.example.app) Z 600", 'Z'},
	}
	for _, tt := range tests {
		got, err := parseProcState([]byte(tt.stat))
		require.NoError(t, err, tt.stat)
		assert.Equal(t, tt.want, got, tt.stat)
	}

	_, err := parseProcState([]byte("cat: /proc/1/stat: No such file or directory"))
	require.ErrorIs(t, err, ErrNoProcess)
	_, err = parseProcState([]byte("garbage"))
	require.Error(t, err)
}
