// Package remotetest provides an in-memory remote.Tree for tests.
package remotetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"duet-backup/core/blobhash"
	"duet-backup/core/remote"
)

// Op is a write recorded by Memory.
type Op struct {
	Kind    string
	Path    string
	Message string
}

// Memory is a remote.Tree backed by maps. It enforces the same optimistic
// hash checks as the real backends.
type Memory struct {
	mu       sync.Mutex
	branches map[string]map[string][]byte
	commits  map[string]time.Time
	ops      []Op

	// Now stamps writes for LastBackup. Defaults to time.Now.
	Now func() time.Time
	// FailPaths makes writes to the listed paths fail with the given error.
	FailPaths map[string]error
}

// NewMemory creates a tree with the given branches, all empty.
func NewMemory(branches ...string) *Memory {
	m := &Memory{
		branches:  make(map[string]map[string][]byte),
		commits:   make(map[string]time.Time),
		FailPaths: make(map[string]error),
		Now:       time.Now,
	}
	for _, b := range branches {
		m.branches[b] = make(map[string][]byte)
	}
	return m
}

// Seed stores content directly without recording an operation.
func (m *Memory) Seed(branch, path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.branches[branch] == nil {
		m.branches[branch] = make(map[string][]byte)
	}
	m.branches[branch][path] = content
}

// Content returns the stored bytes of path.
func (m *Memory) Content(branch, path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.branches[branch][path]
	return b, ok
}

// Ops returns the writes performed so far.
func (m *Memory) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Op(nil), m.ops...)
}

// ResetOps clears the recorded writes.
func (m *Memory) ResetOps() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = nil
}

func (m *Memory) ListFiles(ctx context.Context, branch string) ([]remote.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	files, ok := m.branches[branch]
	if !ok {
		return nil, remote.ErrBranchNotFound
	}
	entries := make([]remote.Entry, 0, len(files))
	for p, c := range files {
		entries = append(entries, remote.Entry{Path: p, Hash: blobhash.Sum(c)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (m *Memory) ReadExisting(ctx context.Context, path, branch string) (remote.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	files, ok := m.branches[branch]
	if !ok {
		return remote.Entry{}, remote.ErrBranchNotFound
	}
	c, ok := files[path]
	if !ok {
		return remote.Entry{}, remote.ErrNotFound
	}
	return remote.Entry{Path: path, Hash: blobhash.Sum(c)}, nil
}

func (m *Memory) Create(ctx context.Context, path, message string, content []byte, branch string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	files, err := m.writable(branch, path)
	if err != nil {
		return err
	}
	if _, exists := files[path]; exists {
		return remote.ErrConflict
	}
	files[path] = append([]byte(nil), content...)
	m.record("create", path, message, branch)
	return nil
}

func (m *Memory) Update(ctx context.Context, path, message string, content []byte, expectedHash, branch string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	files, err := m.writable(branch, path)
	if err != nil {
		return err
	}
	cur, exists := files[path]
	if !exists || blobhash.Sum(cur) != expectedHash {
		return remote.ErrConflict
	}
	files[path] = append([]byte(nil), content...)
	m.record("update", path, message, branch)
	return nil
}

func (m *Memory) Delete(ctx context.Context, path, message, expectedHash, branch string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	files, err := m.writable(branch, path)
	if err != nil {
		return err
	}
	cur, exists := files[path]
	if !exists || blobhash.Sum(cur) != expectedHash {
		return remote.ErrConflict
	}
	delete(files, path)
	m.record("delete", path, message, branch)
	return nil
}

func (m *Memory) ListBranches(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.branches))
	for b := range m.branches {
		names = append(names, b)
	}
	sort.Strings(names)
	return names, nil
}

// LastBackup returns the time of the last write to branch, or the zero time.
func (m *Memory) LastBackup(ctx context.Context, branch string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.branches[branch]; !ok {
		return time.Time{}, remote.ErrBranchNotFound
	}
	return m.commits[branch], nil
}

func (m *Memory) writable(branch, path string) (map[string][]byte, error) {
	files, ok := m.branches[branch]
	if !ok {
		return nil, remote.ErrBranchNotFound
	}
	if err := m.FailPaths[path]; err != nil {
		return nil, err
	}
	return files, nil
}

func (m *Memory) record(kind, path, message, branch string) {
	m.ops = append(m.ops, Op{Kind: kind, Path: path, Message: message})
	m.commits[branch] = m.Now()
}

var (
	_ remote.Tree             = (*Memory)(nil)
	_ remote.LastBackupReader = (*Memory)(nil)
)
