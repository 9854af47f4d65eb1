package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"duet-backup/core/exclude"
	"duet-backup/core/source"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Source lists and reads files below a top directory.
type Source struct {
	fs     afero.Fs
	top    string
	logger *zap.Logger
}

// NewSource creates a Source rooted at top. A nil fsys uses the OS filesystem.
func NewSource(fsys afero.Fs, top string, logger *zap.Logger) *Source {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{fs: fsys, top: filepath.Clean(top), logger: logger}
}

// Name implements source.Source.
func (s *Source) Name() string { return "local" }

// List walks every root below the top directory.
func (s *Source) List(ctx context.Context, roots []string, excl *exclude.Matcher) ([]string, error) {
	collector := source.NewCollector(excl)
	var errs []error

	for _, root := range roots {
		dir := filepath.Join(s.top, filepath.FromSlash(source.Normalize(root)))
		err := afero.Walk(s.fs, dir, func(path string, info fs.FileInfo, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if path == dir {
					return err
				}
				s.logger.Warn("Skipping unreadable path", zap.String("path", path), zap.Error(err))
				errs = append(errs, err)
				if info != nil && info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !info.Mode().IsRegular() {
				return nil
			}

			rel, err := filepath.Rel(s.top, path)
			if err != nil {
				return err
			}
			if !collector.Add(filepath.ToSlash(rel)) {
				s.logger.Debug("Ignoring file", zap.String("path", rel))
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("Failed to list directory", zap.String("dir", root), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", root, err))
		}
	}
	return collector.Paths(), errors.Join(errs...)
}

// ReadFile reads a path relative to the top directory.
func (s *Source) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return afero.ReadFile(s.fs, filepath.Join(s.top, filepath.FromSlash(source.Normalize(path))))
}

var _ source.Source = (*Source)(nil)
