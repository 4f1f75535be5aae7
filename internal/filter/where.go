package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vburojevic/lcw/internal/domain"
)

// whereOp compares a record field against a clause value
type whereOp struct {
	token string
	text  func(field, value string, re *regexp.Regexp) bool
	sev   func(got, want domain.Severity) bool
}

// whereOps lists two-character tokens before their one-character prefixes
var whereOps = []whereOp{
	{token: "!~", text: func(f, _ string, re *regexp.Regexp) bool { return !re.MatchString(f) }},
	{token: ">=", sev: func(got, want domain.Severity) bool { return got.Priority() >= want.Priority() }},
	{token: "<=", sev: func(got, want domain.Severity) bool { return got.Priority() <= want.Priority() }},
	{
		token: "!=",
		text:  func(f, v string, _ *regexp.Regexp) bool { return f != v },
		sev:   func(got, want domain.Severity) bool { return got != want },
	},
	{token: "~", text: func(f, _ string, re *regexp.Regexp) bool { return re.MatchString(f) }},
	{
		token: "=",
		text:  func(f, v string, _ *regexp.Regexp) bool { return f == v },
		sev:   func(got, want domain.Severity) bool { return got == want },
	},
	{token: "^", text: func(f, v string, _ *regexp.Regexp) bool { return strings.HasPrefix(f, v) }},
	{token: "$", text: func(f, v string, _ *regexp.Regexp) bool { return strings.HasSuffix(f, v) }},
}

// recordFields reads the clause-addressable fields of a record
var recordFields = map[string]func(*domain.LogRecord) string{
	"severity": func(r *domain.LogRecord) string { return string(r.Severity) },
	"level":    func(r *domain.LogRecord) string { return string(r.Severity) },
	"tag":      func(r *domain.LogRecord) string { return r.Tag },
	"message":  func(r *domain.LogRecord) string { return r.Message },
}

// WhereClause is one parsed --where condition such as "severity>=W" or
// "message~timeout".
type WhereClause struct {
	Field    string
	Operator string
	Value    string

	op    whereOp
	re    *regexp.Regexp
	sev   domain.Severity
	field func(*domain.LogRecord) string
}

// ParseWhereClause parses "field op value". Fields are severity (alias
// level), tag and message. Operators: = != ~ !~ ^ $ and, for severity only,
// >= <=.
func ParseWhereClause(clause string) (*WhereClause, error) {
	if op, idx, found := splitWhere(clause); found {
		name := strings.ToLower(strings.TrimSpace(clause[:idx]))
		value := strings.TrimSpace(clause[idx+len(op.token):])
		if name == "" || value == "" {
			return nil, fmt.Errorf("invalid where clause: %s", clause)
		}
		field, ok := recordFields[name]
		if !ok {
			return nil, fmt.Errorf("unknown field %q in where clause (use severity, level, tag, message)", name)
		}

		wc := &WhereClause{Field: name, Operator: op.token, Value: value, op: op, field: field}
		if name == "severity" || name == "level" {
			wc.sev = domain.ParseSeverity(value)
		}
		if op.token == "~" || op.token == "!~" {
			re, err := regexp.Compile(value)
			if err != nil {
				return nil, fmt.Errorf("invalid regex in where clause '%s': %w", clause, err)
			}
			wc.re = re
		}
		return wc, nil
	}
	return nil, fmt.Errorf("no valid operator found in where clause: %s (use =, !=, ~, !~, >=, <=, ^, $)", clause)
}

// splitWhere finds the operator that starts earliest after the field name.
// Operators inside the value are left alone, so "tag=a~b" compares tag with
// "a~b". At equal positions the longer token wins.
func splitWhere(clause string) (whereOp, int, bool) {
	var best whereOp
	bestIdx := -1
	for _, op := range whereOps {
		idx := strings.Index(clause, op.token)
		if idx <= 0 {
			continue
		}
		if bestIdx < 0 || idx < bestIdx || (idx == bestIdx && len(op.token) > len(best.token)) {
			best, bestIdx = op, idx
		}
	}
	return best, bestIdx, bestIdx > 0
}

// Match reports whether rec satisfies the clause. Ordering operators never
// match text fields.
func (wc *WhereClause) Match(rec *domain.LogRecord) bool {
	if wc.sev != "" && wc.op.sev != nil {
		return wc.op.sev(rec.Severity, wc.sev)
	}
	if wc.op.text == nil {
		return false
	}
	return wc.op.text(wc.field(rec), wc.Value, wc.re)
}

// WhereFilter ANDs several clauses. A nil filter matches everything.
type WhereFilter struct {
	clauses []*WhereClause
}

// NewWhereFilter parses every clause; no clauses yields a nil filter
func NewWhereFilter(clauses []string) (*WhereFilter, error) {
	if len(clauses) == 0 {
		return nil, nil
	}
	f := &WhereFilter{clauses: make([]*WhereClause, 0, len(clauses))}
	for _, c := range clauses {
		wc, err := ParseWhereClause(c)
		if err != nil {
			return nil, err
		}
		f.clauses = append(f.clauses, wc)
	}
	return f, nil
}

func (f *WhereFilter) Match(rec *domain.LogRecord) bool {
	if f == nil {
		return true
	}
	for _, wc := range f.clauses {
		if !wc.Match(rec) {
			return false
		}
	}
	return true
}
