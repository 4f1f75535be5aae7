// Package output writes machine readable NDJSON events.
package output

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/vburojevic/lcw/internal/domain"
)

// SchemaVersion is bumped on breaking changes to any event shape
const SchemaVersion = 1

// ErrorEvent reports a command failure
type ErrorEvent struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Hint          string `json:"hint,omitempty"`
}

// InfoEvent carries a human message for agents that only read stdout
type InfoEvent struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Message       string `json:"message"`
	Timestamp     string `json:"timestamp"`
}

// ConsoleEvent is one line that would have been written to the console
type ConsoleEvent struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Line          string `json:"line"`
}

// RecordEvent is one classified logcat record
type RecordEvent struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Severity      string `json:"severity"`
	Tag           string `json:"tag"`
	Message       string `json:"message"`
}

// RunEndEvent summarizes one tailer run
type RunEndEvent struct {
	Type            string `json:"type"`
	SchemaVersion   int    `json:"schemaVersion"`
	Run             int    `json:"run"`
	Reason          string `json:"reason"`
	TotalLines      int    `json:"total_lines"`
	Errors          int    `json:"errors"`
	Warnings        int    `json:"warnings"`
	DurationSeconds int    `json:"duration_seconds"`
}

// TmuxEvent tells the caller how to watch the tmux pane
type TmuxEvent struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Session       string `json:"session"`
	Attach        string `json:"attach"`
}

// NDJSONWriter writes one JSON object per line. It is safe for concurrent
// use and doubles as a console sink.
type NDJSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	now func() time.Time
}

// NewNDJSONWriter creates a writer over w
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &NDJSONWriter{enc: enc, now: time.Now}
}

// Write encodes any value as a single line
func (w *NDJSONWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

// WriteError writes an error event
func (w *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	e := &ErrorEvent{Type: "error", SchemaVersion: SchemaVersion, Code: code, Message: message}
	if len(hint) > 0 {
		e.Hint = hint[0]
	}
	return w.Write(e)
}

// WriteInfo writes an info event
func (w *NDJSONWriter) WriteInfo(message string) error {
	return w.Write(&InfoEvent{
		Type:          "info",
		SchemaVersion: SchemaVersion,
		Message:       message,
		Timestamp:     w.now().UTC().Format(time.RFC3339Nano),
	})
}

// WriteRecord writes a classified record
func (w *NDJSONWriter) WriteRecord(rec domain.LogRecord) error {
	return w.Write(&RecordEvent{
		Type:          "record",
		SchemaVersion: SchemaVersion,
		Severity:      string(rec.Severity),
		Tag:           rec.Tag,
		Message:       rec.Message,
	})
}

// WriteRunEnd writes a run summary
func (w *NDJSONWriter) WriteRunEnd(end *domain.RunEnd) error {
	return w.Write(&RunEndEvent{
		Type:            "run_end",
		SchemaVersion:   SchemaVersion,
		Run:             end.Run,
		Reason:          end.Reason.String(),
		TotalLines:      end.Summary.TotalLines,
		Errors:          end.Summary.Errors,
		Warnings:        end.Summary.Warnings,
		DurationSeconds: end.Summary.DurationSeconds,
	})
}

// WriteTmux writes the tmux session event
func (w *NDJSONWriter) WriteTmux(session, attach string) error {
	return w.Write(&TmuxEvent{Type: "tmux", SchemaVersion: SchemaVersion, Session: session, Attach: attach})
}

// WriteLine writes a console event, so the writer can stand in for a console sink
func (w *NDJSONWriter) WriteLine(line string) error {
	return w.Write(&ConsoleEvent{Type: "console", SchemaVersion: SchemaVersion, Line: line})
}

// Close is a no-op; the caller owns the underlying writer
func (w *NDJSONWriter) Close() error { return nil }
