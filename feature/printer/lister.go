package printer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"

	"duet-backup/core/exclude"
	"duet-backup/core/source"

	"go.uber.org/zap"
)

// maxPages bounds the paging loop of a single directory.
const maxPages = 10000

type fileListResponse struct {
	Dir   string          `json:"dir"`
	First int             `json:"first"`
	Files []fileListEntry `json:"files"`
	Next  int             `json:"next"`
	Err   int             `json:"err"`
}

type fileListEntry struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Source is a source.Source backed by the controller's SD card.
type Source struct {
	client *Client
	logger *zap.Logger
}

// NewSource creates a Source using client.
func NewSource(client *Client, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{client: client, logger: logger}
}

// Name implements source.Source.
func (s *Source) Name() string { return "printer" }

// List walks every root breadth first. Roots that fail are reported in the
// joined error; files from the other roots are still returned.
func (s *Source) List(ctx context.Context, roots []string, excl *exclude.Matcher) ([]string, error) {
	collector := source.NewCollector(excl)
	var errs []error

	for _, root := range roots {
		if err := s.walk(ctx, root, collector); err != nil {
			if errors.Is(err, source.ErrAuth) || ctx.Err() != nil {
				return nil, err
			}
			s.logger.Warn("Failed to list directory", zap.String("dir", root), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", root, err))
		}
	}
	return collector.Paths(), errors.Join(errs...)
}

// walk lists root and its subdirectories using a FIFO worklist.
func (s *Source) walk(ctx context.Context, root string, collector *source.Collector) error {
	queue := []string{deviceDir(root)}
	var errs []error

	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := s.listDir(ctx, dir)
		if err != nil {
			// A missing root fails the root; a failing subdirectory is
			// reported and its siblings are still listed.
			if dir == deviceDir(root) || errors.Is(err, source.ErrAuth) {
				return err
			}
			errs = append(errs, err)
			continue
		}

		for _, e := range entries {
			switch e.Type {
			case "d":
				queue = append(queue, dir+e.Name+"/")
			case "f":
				p := FromDevice(dir + e.Name)
				if !collector.Add(p) {
					s.logger.Debug("Ignoring file", zap.String("path", p))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// listDir returns every entry of a device directory, following pages.
func (s *Source) listDir(ctx context.Context, dir string) ([]fileListEntry, error) {
	s.logger.Debug("Getting files", zap.String("dir", dir))

	var entries []fileListEntry
	first := 0
	for page := 0; page < maxPages; page++ {
		q := url.Values{}
		q.Set("dir", dir)
		q.Set("first", strconv.Itoa(first))

		res, err := s.client.get(ctx, "/rr_filelist", q)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", dir, err)
		}

		var body fileListResponse
		if err := json.Unmarshal(res.Body, &body); err != nil {
			return nil, fmt.Errorf("failed to decode listing of %s: %w", dir, err)
		}
		switch body.Err {
		case 0:
		case 1:
			return nil, fmt.Errorf("drive of %s does not exist: %w", dir, fs.ErrNotExist)
		case 2:
			return nil, fmt.Errorf("directory %s does not exist: %w", dir, fs.ErrNotExist)
		default:
			return nil, fmt.Errorf("listing %s failed with err=%d", dir, body.Err)
		}

		entries = append(entries, body.Files...)
		if body.Next == 0 {
			return entries, nil
		}
		if body.Next <= first {
			return nil, fmt.Errorf("listing %s: next=%d does not advance past first=%d", dir, body.Next, first)
		}
		first = body.Next
	}
	return nil, fmt.Errorf("listing %s exceeded %d pages", dir, maxPages)
}

// ReadFile downloads path from the SD card.
func (s *Source) ReadFile(ctx context.Context, path string) ([]byte, error) {
	q := url.Values{}
	q.Set("name", ToDevice(path))

	res, err := s.client.get(ctx, "/rr_download", q)
	if err != nil {
		if res.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", path, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to download %s: %w", path, err)
	}
	return res.Body, nil
}

var _ source.Source = (*Source)(nil)
