package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"duet-backup/core/remote"
	"duet-backup/core/transport"

	"go.uber.org/zap"
)

const (
	apiVersion = "2022-11-28"
	pageSize   = 100
)

// Tree is a remote.Tree backed by a GitHub repository.
type Tree struct {
	client *transport.Client
	base   string
	owner  string
	repo   string
	user   string
	token  string
	logger *zap.Logger
}

// NewTree creates a Tree. A nil httpClient uses a default client.
func NewTree(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Tree, error) {
	owner, name := cfg.OwnerAndName()
	if owner == "" || name == "" {
		return nil, fmt.Errorf("invalid repository %q", cfg.Repo)
	}
	base := strings.TrimSuffix(cfg.APIURL, "/")
	if _, err := url.Parse(base); err != nil || base == "" {
		return nil, fmt.Errorf("invalid api url %q", cfg.APIURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("repo", owner+"/"+name))

	return &Tree{
		client: transport.NewClient(httpClient, cfg.Policy(), logger),
		base:   base,
		owner:  owner,
		repo:   name,
		user:   cfg.User,
		token:  cfg.Token,
		logger: logger,
	}, nil
}

// Repository returns "owner/name".
func (t *Tree) Repository() string {
	return t.owner + "/" + t.repo
}

type branchResponse struct {
	Name string `json:"name"`
}

type treeResponse struct {
	SHA       string      `json:"sha"`
	Tree      []treeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

type contentEntry struct {
	Type string `json:"type"`
	Path string `json:"path"`
	SHA  string `json:"sha"`
}

type commitResponse struct {
	SHA    string `json:"sha"`
	Commit struct {
		Committer struct {
			Date time.Time `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
}

type writeRequest struct {
	Message string `json:"message"`
	Content string `json:"content,omitempty"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// ListBranches implements remote.Tree.
func (t *Tree) ListBranches(ctx context.Context) ([]string, error) {
	var names []string
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("per_page", strconv.Itoa(pageSize))
		q.Set("page", strconv.Itoa(page))

		var branches []branchResponse
		if err := t.getJSON(ctx, t.repoURL("branches")+"?"+q.Encode(), &branches); err != nil {
			return nil, fmt.Errorf("failed to list branches: %w", err)
		}
		for _, b := range branches {
			names = append(names, b.Name)
		}
		if len(branches) < pageSize {
			return names, nil
		}
	}
}

// ListFiles implements remote.Tree.
func (t *Tree) ListFiles(ctx context.Context, branch string) ([]remote.Entry, error) {
	if err := t.requireBranch(ctx, branch); err != nil {
		return nil, err
	}

	var tree treeResponse
	err := t.getJSON(ctx, t.repoURL("git", "trees")+"/"+escapePath(branch)+"?recursive=1", &tree)
	switch {
	case isStatus(err, http.StatusConflict):
		// An empty repository has no tree yet.
		return []remote.Entry{}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to list tree of %s: %w", branch, err)
	case tree.Truncated:
		t.logger.Info("Tree listing truncated, walking directories", zap.String("branch", branch))
		return t.walkContents(ctx, branch)
	}

	entries := make([]remote.Entry, 0, len(tree.Tree))
	for _, e := range tree.Tree {
		if e.Type == "blob" {
			entries = append(entries, remote.Entry{Path: e.Path, Hash: e.SHA})
		}
	}
	return entries, nil
}

// walkContents lists branch directory by directory with an explicit queue.
func (t *Tree) walkContents(ctx context.Context, branch string) ([]remote.Entry, error) {
	var entries []remote.Entry
	queue := []string{""}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		var items []contentEntry
		if err := t.getJSON(ctx, t.contentsURL(dir)+"?ref="+url.QueryEscape(branch), &items); err != nil {
			return nil, fmt.Errorf("failed to list %q on %s: %w", dir, branch, err)
		}
		for _, it := range items {
			switch it.Type {
			case "dir":
				queue = append(queue, it.Path)
			case "file":
				entries = append(entries, remote.Entry{Path: it.Path, Hash: it.SHA})
			}
		}
	}
	return entries, nil
}

// ReadExisting implements remote.Tree.
func (t *Tree) ReadExisting(ctx context.Context, path, branch string) (remote.Entry, error) {
	var item contentEntry
	if err := t.getJSON(ctx, t.contentsURL(path)+"?ref="+url.QueryEscape(branch), &item); err != nil {
		return remote.Entry{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if item.Type != "file" {
		return remote.Entry{}, fmt.Errorf("%s is a %s: %w", path, item.Type, remote.ErrNotFound)
	}
	return remote.Entry{Path: item.Path, Hash: item.SHA}, nil
}

// Create implements remote.Tree.
func (t *Tree) Create(ctx context.Context, path, message string, content []byte, branch string) error {
	return t.write(ctx, http.MethodPut, path, writeRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  branch,
	})
}

// Update implements remote.Tree.
func (t *Tree) Update(ctx context.Context, path, message string, content []byte, expectedHash, branch string) error {
	return t.write(ctx, http.MethodPut, path, writeRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     expectedHash,
		Branch:  branch,
	})
}

// Delete implements remote.Tree.
func (t *Tree) Delete(ctx context.Context, path, message, expectedHash, branch string) error {
	err := t.write(ctx, http.MethodDelete, path, writeRequest{
		Message: message,
		SHA:     expectedHash,
		Branch:  branch,
	})
	if isStatus(err, http.StatusNotFound) {
		return fmt.Errorf("failed to delete %s: %w", path, remote.ErrConflict)
	}
	return err
}

// LastBackup returns the committer date of the head commit of branch.
func (t *Tree) LastBackup(ctx context.Context, branch string) (time.Time, error) {
	q := url.Values{}
	q.Set("sha", branch)
	q.Set("per_page", "1")

	var commits []commitResponse
	if err := t.getJSON(ctx, t.repoURL("commits")+"?"+q.Encode(), &commits); err != nil {
		return time.Time{}, fmt.Errorf("failed to read last commit of %s: %w", branch, err)
	}
	if len(commits) == 0 {
		return time.Time{}, nil
	}
	return commits[0].Commit.Committer.Date, nil
}

func (t *Tree) requireBranch(ctx context.Context, branch string) error {
	branches, err := t.ListBranches(ctx)
	if err != nil {
		return err
	}
	for _, b := range branches {
		if b == branch {
			return nil
		}
	}
	return fmt.Errorf("branch %s in %s: %w", branch, t.Repository(), remote.ErrBranchNotFound)
}

func (t *Tree) write(ctx context.Context, method, path string, body writeRequest) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	target := t.contentsURL(path)

	res := t.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		t.decorate(req)
		return req, nil
	})
	if err := classify(res); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (t *Tree) getJSON(ctx context.Context, target string, out any) error {
	res := t.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		t.decorate(req)
		return req, nil
	})
	if err := classify(res); err != nil {
		return err
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (t *Tree) decorate(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if t.token != "" {
		req.SetBasicAuth(t.user, t.token)
	}
}

func (t *Tree) repoURL(parts ...string) string {
	segs := []string{t.base, "repos", url.PathEscape(t.owner), url.PathEscape(t.repo)}
	for _, p := range parts {
		segs = append(segs, url.PathEscape(p))
	}
	return strings.Join(segs, "/")
}

func (t *Tree) contentsURL(path string) string {
	u := t.repoURL("contents")
	if path == "" {
		return u
	}
	return u + "/" + escapePath(path)
}

// escapePath escapes every segment of a slash separated path.
func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// classify maps a transport result onto the remote error taxonomy.
func classify(res transport.Result) error {
	if res.OK() {
		return nil
	}
	reason := res.Reason
	var body errorResponse
	if json.Unmarshal(res.Body, &body) == nil && body.Message != "" {
		reason = body.Message
	}
	statusErr := &transport.StatusError{Outcome: res.Outcome, StatusCode: res.StatusCode, Reason: reason}

	switch res.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", remote.ErrAuth, statusErr)
	case http.StatusForbidden:
		if res.Header.Get("X-RateLimit-Remaining") == "0" {
			return fmt.Errorf("rate limit exceeded: %w", statusErr)
		}
		return fmt.Errorf("%w: %w", remote.ErrAuth, statusErr)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", remote.ErrNotFound, statusErr)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %w", remote.ErrConflict, statusErr)
	default:
		return statusErr
	}
}

func isStatus(err error, status int) bool {
	var statusErr *transport.StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == status
}

var (
	_ remote.Tree             = (*Tree)(nil)
	_ remote.LastBackupReader = (*Tree)(nil)
)
