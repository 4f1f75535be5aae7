package domain

import "strings"

// Severity represents a logcat priority
type Severity string

const (
	SeverityVerbose Severity = "Verbose"
	SeverityDebug   Severity = "Debug"
	SeverityInfo    Severity = "Info"
	SeverityWarn    Severity = "Warn"
	SeverityError   Severity = "Error"
	SeverityUnknown Severity = "Unknown"
)

// Priority returns the numeric priority for filtering.
// Unknown sits between Info and Warn so it survives the usual "Info and up" filters.
func (s Severity) Priority() int {
	switch s {
	case SeverityVerbose:
		return 0
	case SeverityDebug:
		return 1
	case SeverityInfo:
		return 2
	case SeverityUnknown:
		return 3
	case SeverityWarn:
		return 4
	case SeverityError:
		return 5
	default:
		return 3
	}
}

// Icon returns the console prefix for the severity
func (s Severity) Icon() string {
	switch s {
	case SeverityError:
		return "‼️"
	case SeverityWarn:
		return "⚠️"
	case SeverityInfo:
		return "  "
	case SeverityDebug:
		return "🐞"
	case SeverityVerbose:
		return "👀"
	default:
		return "log"
	}
}

// SeverityFromLetter maps a logcat priority letter to a Severity
func SeverityFromLetter(letter string) Severity {
	switch letter {
	case "V":
		return SeverityVerbose
	case "D":
		return SeverityDebug
	case "I":
		return SeverityInfo
	case "W":
		return SeverityWarn
	case "E":
		return SeverityError
	default:
		return SeverityUnknown
	}
}

// ParseSeverity accepts either a full name ("warn", "Error") or a logcat letter ("W")
func ParseSeverity(s string) Severity {
	s = strings.TrimSpace(s)
	if len(s) == 1 {
		return SeverityFromLetter(strings.ToUpper(s))
	}
	switch strings.ToLower(s) {
	case "verbose":
		return SeverityVerbose
	case "debug":
		return SeverityDebug
	case "info":
		return SeverityInfo
	case "warn", "warning":
		return SeverityWarn
	case "error":
		return SeverityError
	default:
		return SeverityUnknown
	}
}

// LogRecord is one classified logcat line of the monitored process
type LogRecord struct {
	Severity Severity
	Tag      string
	Message  string
}

// ProcessIdentity names the debuggee: a bare process name or a full package id
type ProcessIdentity string

// Package strips a ":process" suffix, so "com.example.app:remote" yields
// "com.example.app"
func (p ProcessIdentity) Package() string {
	pkg, _, _ := strings.Cut(string(p), ":")
	return pkg
}

// IsPackageID reports whether the identity already names a dotted package id.
// Any dotted name is taken as complete and skips discovery.
func (p ProcessIdentity) IsPackageID() bool {
	return strings.Contains(p.Package(), ".")
}

func (p ProcessIdentity) String() string { return string(p) }
