package mocks

import (
	"context"
	"time"

	"duet-backup/core/remote"

	"github.com/stretchr/testify/mock"
)

// Tree is a mock implementation of remote.Tree
type Tree struct {
	mock.Mock
}

func (m *Tree) ListFiles(ctx context.Context, branch string) ([]remote.Entry, error) {
	args := m.Called(ctx, branch)
	if entries, ok := args.Get(0).([]remote.Entry); ok {
		return entries, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Tree) ReadExisting(ctx context.Context, path, branch string) (remote.Entry, error) {
	args := m.Called(ctx, path, branch)
	return args.Get(0).(remote.Entry), args.Error(1)
}

func (m *Tree) Create(ctx context.Context, path, message string, content []byte, branch string) error {
	args := m.Called(ctx, path, message, content, branch)
	return args.Error(0)
}

func (m *Tree) Update(ctx context.Context, path, message string, content []byte, expectedHash, branch string) error {
	args := m.Called(ctx, path, message, content, expectedHash, branch)
	return args.Error(0)
}

func (m *Tree) Delete(ctx context.Context, path, message, expectedHash, branch string) error {
	args := m.Called(ctx, path, message, expectedHash, branch)
	return args.Error(0)
}

func (m *Tree) ListBranches(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if branches, ok := args.Get(0).([]string); ok {
		return branches, args.Error(1)
	}
	return nil, args.Error(1)
}

// LastBackup makes the mock satisfy remote.LastBackupReader.
func (m *Tree) LastBackup(ctx context.Context, branch string) (time.Time, error) {
	args := m.Called(ctx, branch)
	return args.Get(0).(time.Time), args.Error(1)
}
