package remote

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrConflict means the remote content changed since it was listed.
	ErrConflict = errors.New("remote content changed since listing")
	// ErrNotFound means the requested path does not exist on the branch.
	ErrNotFound = errors.New("remote path not found")
	// ErrBranchNotFound means the target branch does not exist.
	ErrBranchNotFound = errors.New("branch not found")
	// ErrAuth means the remote rejected the credentials.
	ErrAuth = errors.New("remote authentication failed")
)

// Entry is a file committed on the target branch.
type Entry struct {
	// Path is relative to the branch root, forward slashes, no leading slash.
	Path string `json:"path" yaml:"path"`
	// Hash is the git blob hash of the content in lowercase hex.
	Hash string `json:"hash" yaml:"hash"`
}

// Tree reads and writes files on a branch of the remote repository.
type Tree interface {
	// ListFiles returns every file on branch. A missing branch yields
	// ErrBranchNotFound, which is distinct from an empty listing.
	ListFiles(ctx context.Context, branch string) ([]Entry, error)
	// ReadExisting returns the entry at path or ErrNotFound.
	ReadExisting(ctx context.Context, path, branch string) (Entry, error)
	// Create writes a new file.
	Create(ctx context.Context, path, message string, content []byte, branch string) error
	// Update replaces the file whose current hash is expectedHash.
	Update(ctx context.Context, path, message string, content []byte, expectedHash, branch string) error
	// Delete removes the file whose current hash is expectedHash.
	Delete(ctx context.Context, path, message, expectedHash, branch string) error
	// ListBranches returns the branch names of the repository.
	ListBranches(ctx context.Context) ([]string, error)
}

// LastBackupReader is implemented by trees that can report when the branch
// was last written.
type LastBackupReader interface {
	LastBackup(ctx context.Context, branch string) (time.Time, error)
}

// Index maps entries by path.
func Index(entries []Entry) map[string]Entry {
	idx := make(map[string]Entry, len(entries))
	for _, e := range entries {
		idx[e.Path] = e
	}
	return idx
}
