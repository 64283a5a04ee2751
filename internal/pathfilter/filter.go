// Package pathfilter decides which project paths are excluded from
// detection, analysis, and upload.
package pathfilter

import (
	"regexp"
	"strings"
)

// DefaultIgnorePatterns are the paths devark never observes: its own scratch
// and temp directories plus the detection tools' install locations.
var DefaultIgnorePatterns = []string{
	".devark/temp-prompt-analysis",
	".devark/temp-standup",
	".devark/temp-productivity-report",
	"devark-temp",
	"devark-hooks",
	"devark-analysis",
	"programs/cursor",
	"appdata/local/programs/cursor",
	".cursor",
}

// Filter tests paths against a compiled, segment-anchored pattern list.
type Filter struct {
	patterns []*regexp.Regexp
}

// New compiles the pattern list once. Patterns carry no leading slash; each
// is anchored to path-segment boundaries so ".cursor" matches "…/.cursor"
// and "…/.cursor/ext" but never "…/.cursorrules". Matching is
// case-insensitive.
func New(patterns []string) *Filter {
	f := &Filter{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		escaped := regexp.QuoteMeta(strings.Trim(p, "/"))
		re := regexp.MustCompile(`(?i)(^|/)` + escaped + `(/|$)`)
		f.patterns = append(f.patterns, re)
	}
	return f
}

// Default returns a filter over DefaultIgnorePatterns.
func Default() *Filter {
	return New(DefaultIgnorePatterns)
}

// ShouldIgnorePath reports whether p is excluded. Backslashes are normalised
// to forward slashes and a trailing slash is stripped before testing; empty
// or whitespace-only input is never ignored.
func (f *Filter) ShouldIgnorePath(p string) bool {
	if strings.TrimSpace(p) == "" {
		return false
	}
	normalized := strings.ReplaceAll(p, "\\", "/")
	normalized = strings.TrimSuffix(normalized, "/")
	for _, re := range f.patterns {
		if re.MatchString(normalized) {
			return true
		}
	}
	return false
}
