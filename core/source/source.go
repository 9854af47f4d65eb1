package source

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"
	"time"

	"duet-backup/core/exclude"
)

var (
	// ErrAuth means the source rejected the credentials or the session.
	ErrAuth = errors.New("source authentication failed")
	// ErrUnavailable means the source could not be reached.
	ErrUnavailable = errors.New("source unavailable")
)

// Source lists and reads the files to back up.
type Source interface {
	// List returns the normalized, filtered, sorted set of files under roots.
	List(ctx context.Context, roots []string, excl *exclude.Matcher) ([]string, error)
	// ReadFile returns the content of a path produced by List.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// Name identifies the source in logs.
	Name() string
}

// Notifier displays a short message to the operator.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// TimedNotifier is a Notifier whose messages can close themselves after d.
type TimedNotifier interface {
	Notifier
	NotifyFor(ctx context.Context, message string, d time.Duration) error
}

// NotifyFor shows message for d when n supports it, and falls back to a
// message without timeout otherwise.
func NotifyFor(ctx context.Context, n Notifier, message string, d time.Duration) error {
	if tn, ok := n.(TimedNotifier); ok {
		return tn.NotifyFor(ctx, message, d)
	}
	return n.Notify(ctx, message)
}

// Nop discards notifications.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, string) error { return nil }

// Normalize turns p into a relative forward-slash path. It returns "" for
// paths that resolve to the root.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// Collector accumulates listed paths, applying normalization, exclusion and
// de-duplication.
type Collector struct {
	excl *exclude.Matcher
	seen map[string]struct{}
}

// NewCollector creates a Collector filtering through excl (may be nil).
func NewCollector(excl *exclude.Matcher) *Collector {
	return &Collector{excl: excl, seen: make(map[string]struct{})}
}

// Add records p unless it is excluded. It reports whether p was kept.
func (c *Collector) Add(p string) bool {
	p = Normalize(p)
	if p == "" || c.excl.ShouldExclude(p) {
		return false
	}
	c.seen[p] = struct{}{}
	return true
}

// Paths returns the collected paths in lexical order.
func (c *Collector) Paths() []string {
	out := make([]string, 0, len(c.seen))
	for p := range c.seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
