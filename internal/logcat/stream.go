package logcat

import (
	"bufio"
	"io"
	"iter"

	"github.com/vburojevic/lcw/internal/domain"
)

// MaxLineSize caps a single logcat line; longer lines end the stream with bufio.ErrTooLong
const MaxLineSize = 1 << 20

// Lines yields r one line at a time without buffering the stream.
// A read error is yielded once, as the last element.
func Lines(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
		for sc.Scan() {
			if !yield(sc.Text(), nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield("", err)
		}
	}
}

// Classifier runs both matching phases over one stream. It is not safe for
// concurrent use; each tailer run owns its own Classifier.
type Classifier struct {
	identity *Identity
	filter   *Filter

	// OnResolve is called once, when the filter is built
	OnResolve func(*Filter)
}

// NewClassifier creates a classifier for a process name or package id
func NewClassifier(id domain.ProcessIdentity) *Classifier {
	return &Classifier{identity: NewIdentity(id)}
}

// Filter returns the resolved filter, or nil while discovery is pending
func (c *Classifier) Filter() *Filter { return c.filter }

// Classify resolves the filter if needed and classifies line with it
func (c *Classifier) Classify(line string) (domain.LogRecord, bool) {
	if c.filter == nil {
		f, ok := c.identity.Immediate()
		if !ok {
			f, ok = c.identity.Discover(line)
		}
		if !ok {
			return domain.LogRecord{}, false
		}
		c.filter = f
		if c.OnResolve != nil {
			c.OnResolve(f)
		}
	}
	return c.filter.Classify(line)
}
