// Package logcat turns raw `adb logcat` lines into records of one process.
//
// Matching happens in two phases. An Identity scans lines until it finds the
// full package id of the debuggee, then yields a Filter that is reused for
// the rest of the stream.
package logcat

import (
	"regexp"
	"strings"

	"github.com/vburojevic/lcw/internal/domain"
)

// dividerPrefix marks buffer headers such as "--------- beginning of main"
const dividerPrefix = "--------- "

// Identity discovers the package id of a process from log lines
type Identity struct {
	name     domain.ProcessIdentity
	discover *regexp.Regexp
}

// NewIdentity builds the discovery pattern for a process name.
// The name is matched case-insensitively as the last dotted component of a
// package id, so "app" finds "com.example.app" but not "com.example.application".
// The name keeps its case; package ids are case-sensitive on the device.
func NewIdentity(name domain.ProcessIdentity) *Identity {
	n := domain.ProcessIdentity(strings.TrimSpace(name.String()))
	return &Identity{
		name:     n,
		discover: regexp.MustCompile(`(?i)\b((?:[a-z0-9_]+\.)+` + regexp.QuoteMeta(n.Package()) + `)\b`),
	}
}

// Name returns the trimmed process name
func (i *Identity) Name() domain.ProcessIdentity { return i.name }

// Immediate returns a ready filter when the identity is already a package id.
// A ":process" suffix is dropped; logcat tags carry the package only.
func (i *Identity) Immediate() (*Filter, bool) {
	if !i.name.IsPackageID() {
		return nil, false
	}
	return NewFilter(i.name.Package()), true
}

// Discover looks for the package id in line and builds the filter from it
func (i *Identity) Discover(line string) (*Filter, bool) {
	m := i.discover.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	return NewFilter(m[1]), true
}

// Filter scopes the log stream to one package id
type Filter struct {
	packageID string
	pattern   *regexp.Regexp
}

// NewFilter compiles the line pattern for a package id.
// A line matches when a standalone uppercase priority letter is followed by
// the package id, an optional ".Tag" component, and a colon.
func NewFilter(packageID string) *Filter {
	return &Filter{
		packageID: packageID,
		pattern: regexp.MustCompile(
			`(?:^|\s)([A-Z])\s+` + regexp.QuoteMeta(packageID) + `(?:\.([^\s:]+))?\s*:(?:\s(.*))?$`,
		),
	}
}

// PackageID returns the package id the filter was built for
func (f *Filter) PackageID() string { return f.packageID }

// Classify extracts a record from line. Lines that belong to other processes,
// buffer dividers and malformed lines report false.
func (f *Filter) Classify(line string) (domain.LogRecord, bool) {
	line = strings.TrimRight(line, "\r\n")
	if strings.HasPrefix(line, dividerPrefix) {
		return domain.LogRecord{}, false
	}
	m := f.pattern.FindStringSubmatch(line)
	if m == nil {
		return domain.LogRecord{}, false
	}
	return domain.LogRecord{
		Severity: domain.SeverityFromLetter(m[1]),
		Tag:      m[2],
		Message:  strings.TrimSpace(m[3]),
	}, true
}

// Marker prefixes every forwarded device log line
const Marker = "🤖"

// Render formats a record for the console
func Render(rec domain.LogRecord) string {
	icon := rec.Severity.Icon()
	if rec.Tag != "" {
		return Marker + icon + "[" + rec.Tag + "]\t" + rec.Message
	}
	return Marker + "\t" + icon + "\t" + rec.Message
}
