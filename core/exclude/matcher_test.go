package exclude

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_ShouldExclude(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		want     bool
	}{
		{"NoPatterns", nil, "sd/sys/config.g", false},
		{"StarExtension", []string{"*.bak"}, "sd/sys/config.bak", true},
		{"StarCrossesSlash", []string{"sd/*.bak"}, "sd/sys/deep/config.bak", true},
		{"QuestionMark", []string{"sd/sys/config.?"}, "sd/sys/config.g", true},
		{"QuestionMarkSingleChar", []string{"sd/sys/config.?"}, "sd/sys/config.gg", false},
		{"BracketSet", []string{"sd/macros/[ab]*"}, "sd/macros/bed.g", true},
		{"BracketSetMiss", []string{"sd/macros/[ab]*"}, "sd/macros/home.g", false},
		{"NegatedBracket", []string{"sd/macros/[!ab]*"}, "sd/macros/home.g", true},
		{"CaseSensitive", []string{"*.BAK"}, "sd/sys/config.bak", false},
		{"FullPathOnly", []string{"config.g"}, "sd/sys/config.g", false},
		{"Directory", []string{"sd/gcodes/*"}, "sd/gcodes/part.gcode", true},
		{"SecondPatternMatches", []string{"*.tmp", "sd/filaments/*"}, "sd/filaments/PLA/load.g", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.patterns)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.ShouldExclude(tt.path))
			assert.Equal(t, tt.want, ShouldExclude(tt.path, tt.patterns))
		})
	}
}

func TestMatcher_Match(t *testing.T) {
	m, err := New([]string{"  ", "*.tmp", "*.bak"})
	require.NoError(t, err)

	pattern, ok := m.Match("sd/sys/a.bak")
	assert.True(t, ok)
	assert.Equal(t, "*.bak", pattern)
	assert.Equal(t, []string{"*.tmp", "*.bak"}, m.Patterns())
}

func TestMatcher_Nil(t *testing.T) {
	var m *Matcher
	assert.False(t, m.ShouldExclude("anything"))
	assert.Nil(t, m.Patterns())
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New([]string{"sd/[abc"})
	assert.Error(t, err)
	assert.False(t, ShouldExclude("sd/a", []string{"sd/[abc"}))
}

func TestIsProtected(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		prefixes []string
		want     bool
	}{
		{"NoPrefixes", "legacy/old.txt", nil, false},
		{"Prefix", "legacy/old.txt", []string{"legacy/"}, true},
		{"NotAGlob", "legacy/old.txt", []string{"leg*"}, false},
		{"EmptyPrefixIgnored", "a.txt", []string{""}, false},
		{"OtherDir", "sd/sys/config.g", []string{"sd/macros"}, false},
		{"PlainPrefix", "sd/macros2/x.g", []string{"sd/macros"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsProtected(tt.path, tt.prefixes))
		})
	}
}
