package cli

// validateFlags rejects flag combinations shared by the attach and classify commands
func validateFlags(globals *Globals, dryRunJSON bool, sink string) error {
	if dryRunJSON && sink == "tmux" {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--dry-run-json cannot be combined with --sink tmux", "drop --sink tmux or remove --dry-run-json")
	}
	if dryRunJSON && globals != nil && globals.Format != "ndjson" {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--dry-run-json requires ndjson output", "add --format ndjson or remove --dry-run-json")
	}
	// text output has nothing left to quiet
	if globals != nil && globals.Format == "text" && globals.Quiet {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--quiet is only supported with ndjson output", "switch to --format ndjson or drop --quiet")
	}
	return nil
}
