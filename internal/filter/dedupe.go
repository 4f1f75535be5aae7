package filter

import (
	"sync"

	"github.com/vburojevic/lcw/internal/domain"
)

// DedupeFilter collapses runs of identical consecutive records
type DedupeFilter struct {
	mu      sync.Mutex
	lastKey string
	count   int // occurrences of lastKey in the current run
}

// NewDedupeFilter creates an empty filter
func NewDedupeFilter() *DedupeFilter {
	return &DedupeFilter{}
}

// DedupeResult holds the result of a dedupe check
type DedupeResult struct {
	ShouldEmit bool // Whether this record should be emitted
	Count      int  // Occurrences of this record in the current run (1 = first)
	// Collapsed is the number of suppressed repeats of the previous record,
	// reported once when a different record breaks the run.
	Collapsed int
}

func dedupeKey(rec *domain.LogRecord) string {
	return string(rec.Severity) + "\x00" + rec.Tag + "\x00" + rec.Message
}

// Check determines if a record should be emitted or suppressed
func (f *DedupeFilter) Check(rec *domain.LogRecord) DedupeResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := dedupeKey(rec)
	if f.count > 0 && key == f.lastKey {
		f.count++
		return DedupeResult{Count: f.count}
	}

	collapsed := max(f.count-1, 0)
	f.lastKey = key
	f.count = 1
	return DedupeResult{ShouldEmit: true, Count: 1, Collapsed: collapsed}
}

// Pending returns the number of suppressed repeats of the last emitted record
func (f *DedupeFilter) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return max(f.count-1, 0)
}

// Reset forgets the current run
func (f *DedupeFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastKey = ""
	f.count = 0
}
