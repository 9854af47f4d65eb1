// Package sourcetest provides an in-memory source.Source for tests.
package sourcetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"duet-backup/core/exclude"
	"duet-backup/core/source"
)

// Static serves a fixed set of files.
type Static struct {
	mu    sync.Mutex
	files map[string][]byte

	// ListErr is returned next to the listed paths.
	ListErr error
	// ReadErrs makes ReadFile fail for the listed paths.
	ReadErrs map[string]error
}

// NewStatic creates a source holding files.
func NewStatic(files map[string]string) *Static {
	s := &Static{files: make(map[string][]byte), ReadErrs: make(map[string]error)}
	for p, c := range files {
		s.files[p] = []byte(c)
	}
	return s
}

// Set replaces or adds a file.
func (s *Static) Set(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = []byte(content)
}

// Remove drops a file.
func (s *Static) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
}

func (s *Static) List(ctx context.Context, roots []string, excl *exclude.Matcher) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := source.NewCollector(excl)
	for p := range s.files {
		if underAny(p, roots) {
			c.Add(p)
		}
	}
	return c.Paths(), s.ListErr
}

func (s *Static) ReadFile(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ReadErrs[path]; err != nil {
		return nil, err
	}
	b, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: file does not exist", path)
	}
	return b, nil
}

func (s *Static) Name() string { return "static" }

func underAny(p string, roots []string) bool {
	if len(roots) == 0 {
		return true
	}
	for _, r := range roots {
		r = strings.TrimSuffix(source.Normalize(r), "/")
		if r == "" || p == r || strings.HasPrefix(p, r+"/") {
			return true
		}
	}
	return false
}

var _ source.Source = (*Static)(nil)
