package filter

import (
	"fmt"
	"regexp"

	"github.com/samber/lo"

	"github.com/vburojevic/lcw/internal/domain"
)

// Pipeline applies the message pattern, exclude patterns and where clauses in order.
// A nil Pipeline lets every record through.
type Pipeline struct {
	pattern  *regexp.Regexp
	excludes []*regexp.Regexp
	where    *WhereFilter
}

// NewPipeline returns nil when no filter is configured
func NewPipeline(pattern *regexp.Regexp, excludes []*regexp.Regexp, where *WhereFilter) *Pipeline {
	excludes = lo.Compact(excludes)
	if pattern == nil && len(excludes) == 0 && where == nil {
		return nil
	}
	return &Pipeline{pattern: pattern, excludes: excludes, where: where}
}

// Build compiles a pipeline from raw option strings
func Build(pattern string, excludes []string, where []string) (*Pipeline, error) {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
	}

	var exRes []*regexp.Regexp
	for _, ex := range lo.Compact(excludes) {
		r, err := regexp.Compile(ex)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern: %w", err)
		}
		exRes = append(exRes, r)
	}

	wf, err := NewWhereFilter(lo.Compact(where))
	if err != nil {
		return nil, err
	}

	return NewPipeline(re, exRes, wf), nil
}

// Match reports whether the record passes every stage
func (p *Pipeline) Match(rec *domain.LogRecord) bool {
	if p == nil {
		return true
	}
	if p.pattern != nil && !p.pattern.MatchString(rec.Message) {
		return false
	}
	if lo.SomeBy(p.excludes, func(re *regexp.Regexp) bool { return re.MatchString(rec.Message) }) {
		return false
	}
	return p.where.Match(rec)
}
