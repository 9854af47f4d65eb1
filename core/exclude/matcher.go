package exclude

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher evaluates a fixed set of glob exclusion patterns.
type Matcher struct {
	patterns []string
	globs    []glob.Glob
}

// New compiles patterns into a Matcher. Empty patterns are ignored.
func New(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, p)
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// ShouldExclude reports whether path matches any pattern.
// A nil Matcher excludes nothing.
func (m *Matcher) ShouldExclude(path string) bool {
	_, ok := m.Match(path)
	return ok
}

// Match returns the first pattern matching path.
func (m *Matcher) Match(path string) (string, bool) {
	if m == nil {
		return "", false
	}
	for i, g := range m.globs {
		if g.Match(path) {
			return m.patterns[i], true
		}
	}
	return "", false
}

// Patterns returns the compiled patterns in declaration order.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.patterns))
	copy(out, m.patterns)
	return out
}

// ShouldExclude compiles patterns and tests path against them. Invalid
// patterns never match.
func ShouldExclude(path string, patterns []string) bool {
	for _, p := range patterns {
		m, err := New([]string{p})
		if err != nil {
			continue
		}
		if m.ShouldExclude(path) {
			return true
		}
	}
	return false
}

// IsProtected reports whether path starts with one of prefixes.
// Empty prefixes are ignored so that a blank entry cannot protect everything.
func IsProtected(path string, prefixes []string) bool {
	_, ok := ProtectedBy(path, prefixes)
	return ok
}

// ProtectedBy returns the first prefix protecting path.
func ProtectedBy(path string, prefixes []string) (string, bool) {
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		if strings.HasPrefix(path, prefix) {
			return prefix, true
		}
	}
	return "", false
}
