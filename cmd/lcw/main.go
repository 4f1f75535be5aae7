package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/vburojevic/lcw/internal/cli"
	"github.com/vburojevic/lcw/internal/config"
)

const quickStart = `lcw - Android logcat in the debugger console

Quick start:
  lcw attach -p com.example.app                 Follow state notifications on stdin
  lcw attach -p com.example.app --source probe  Poll the device instead
  lcw classify -p com.example.app dump.txt      Filter a saved logcat dump

For help:
  lcw --help                                    All commands and flags
`

func main() {
	// Show quick start if no args provided
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// Load configuration from files/environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid config, using defaults: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI
	ctx := kong.Parse(&c,
		kong.Name("lcw"),
		kong.Description("LogcatConsoleWatcher: mirror an Android debuggee's logcat into the debugger console"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		// config values become flag defaults; flags still override them
		cli.KongVars(cfg),
	)

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	if err := ctx.Run(globals); err != nil {
		os.Exit(1)
	}
}
