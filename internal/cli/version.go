package cli

import (
	"fmt"

	"github.com/vburojevic/lcw/internal/output"
)

// VersionCmd prints the build version
type VersionCmd struct{}

// Run executes the version command
func (c *VersionCmd) Run(globals *Globals) error {
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(map[string]any{
			"type":          "version",
			"schemaVersion": output.SchemaVersion,
			"version":       Version,
			"commit":        Commit,
		})
	}
	fmt.Fprintf(globals.Stdout, "lcw version %s (%s)\n", Version, Commit)
	return nil
}
