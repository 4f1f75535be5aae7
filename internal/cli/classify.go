package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/vburojevic/lcw/internal/domain"
	"github.com/vburojevic/lcw/internal/filter"
	"github.com/vburojevic/lcw/internal/logcat"
	"github.com/vburojevic/lcw/internal/output"
	"github.com/vburojevic/lcw/internal/session"
)

// ClassifyCmd runs the line classifier over a captured logcat dump
type ClassifyCmd struct {
	Package string   `short:"p" default:"${config_package}" help:"Package id whose lines are kept (a dotted name is used as-is) or a bare name to discover from the log"`
	File    string   `arg:"" optional:"" default:"-" help:"Logcat dump to read ('-' for stdin)"`
	Pattern string   `short:"g" help:"Regex the tag or message must match"`
	Exclude []string `short:"x" sep:"none" help:"Regex excluding matching lines (can be repeated)"`
	Where   []string `short:"w" sep:"none" help:"Field filter such as severity>=W (can be repeated)"`
}

// Run executes the classify command
func (c *ClassifyCmd) Run(globals *Globals) error {
	if c.Package == "" {
		return outputErrorCommon(globals, "MISSING_PACKAGE", "no package to classify for", "pass --package or set defaults.package")
	}
	pipeline, err := filter.Build(c.Pattern, c.Exclude, c.Where)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_FILTER", err.Error(), "check --pattern, --exclude and --where")
	}

	var r io.Reader = globals.Stdin
	if c.File != "-" && c.File != "" {
		f, err := os.Open(c.File)
		if err != nil {
			return outputErrorCommon(globals, "FILE_NOT_FOUND", err.Error())
		}
		defer f.Close()
		r = f
	}
	if r == nil {
		r = os.Stdin
	}

	var ndjson *output.NDJSONWriter
	if globals.Format == "ndjson" {
		ndjson = output.NewNDJSONWriter(globals.Stdout)
	}

	classifier := logcat.NewClassifier(domain.ProcessIdentity(c.Package))
	tracker := session.NewTracker(nil)
	tracker.StartRun()
	for line, err := range logcat.Lines(r) {
		if err != nil {
			return outputErrorCommon(globals, "READ_FAILED", err.Error())
		}
		rec, ok := classifier.Classify(line)
		if !ok || !pipeline.Match(&rec) {
			continue
		}
		tracker.Record(&rec)
		if ndjson != nil {
			err = ndjson.WriteRecord(rec)
		} else {
			_, err = fmt.Fprintln(globals.Stdout, logcat.Render(rec))
		}
		if err != nil {
			return err
		}
	}

	if classifier.Filter() == nil {
		globals.Debug("process %s never started in the dump", c.Package)
	}
	if globals.Quiet {
		return nil
	}
	_, lines, errs, warns := tracker.Stats()
	summary := fmt.Sprintf("%d lines for %s (%d errors, %d warnings)", lines, c.Package, errs, warns)
	if ndjson != nil {
		return ndjson.WriteInfo(summary)
	}
	fmt.Fprintln(globals.Stderr, summary)
	return nil
}
