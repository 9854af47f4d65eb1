package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"duet-backup/core/blobhash"
	"duet-backup/core/remote"
	"duet-backup/core/storage"
	"duet-backup/core/transport"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

const (
	// MarkerName is the object that marks a key prefix as a branch.
	MarkerName = ".branch"
	// MetaHash is the user metadata key holding the blob hash.
	MetaHash = "Blob-Sha"
	// MetaMessage is the user metadata key holding the change message.
	MetaMessage = "Backup-Message"
)

// Tree is a remote.Tree backed by one bucket.
type Tree struct {
	client storage.Client
	bucket string
	policy transport.Policy
	logger *zap.Logger
}

// NewTree creates a Tree over bucket.
func NewTree(client storage.Client, bucket string, policy transport.Policy, logger *zap.Logger) (*Tree, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tree{
		client: client,
		bucket: bucket,
		policy: policy,
		logger: logger.With(zap.String("bucket", bucket)),
	}, nil
}

// Bucket returns the bucket name.
func (t *Tree) Bucket() string {
	return t.bucket
}

// ListFiles lists every object below the branch prefix except the marker.
func (t *Tree) ListFiles(ctx context.Context, branch string) ([]remote.Entry, error) {
	if err := t.requireBranch(ctx, branch); err != nil {
		return nil, err
	}

	prefix := branch + "/"
	objects, err := t.list(ctx, minio.ListObjectsOptions{Prefix: prefix, Recursive: true, WithMetadata: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list branch %s: %w", branch, err)
	}

	entries := make([]remote.Entry, 0, len(objects))
	for _, obj := range objects {
		rel := strings.TrimPrefix(obj.Key, prefix)
		if rel == "" || rel == MarkerName || strings.HasSuffix(rel, "/") {
			continue
		}

		hash := blobSha(obj.UserMetadata)
		if hash == blobhash.Unavailable {
			// Plain S3 listings carry no user metadata.
			info, err := t.stat(ctx, obj.Key)
			if err != nil {
				return nil, fmt.Errorf("failed to stat %s: %w", obj.Key, err)
			}
			hash = blobSha(info.UserMetadata)
		}
		if hash == blobhash.Unavailable {
			t.logger.Warn("Object has no blob hash", zap.String("key", obj.Key))
		}
		entries = append(entries, remote.Entry{Path: rel, Hash: hash})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// ReadExisting returns the entry at path or remote.ErrNotFound.
func (t *Tree) ReadExisting(ctx context.Context, path, branch string) (remote.Entry, error) {
	hash, exists, err := t.current(ctx, key(branch, path))
	if err != nil {
		return remote.Entry{}, err
	}
	if !exists {
		return remote.Entry{}, fmt.Errorf("%s: %w", path, remote.ErrNotFound)
	}
	return remote.Entry{Path: path, Hash: hash}, nil
}

// Create writes path, failing with remote.ErrConflict when it already exists.
func (t *Tree) Create(ctx context.Context, path, message string, content []byte, branch string) error {
	k := key(branch, path)
	_, exists, err := t.current(ctx, k)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s already exists: %w", path, remote.ErrConflict)
	}
	return t.put(ctx, k, message, content)
}

// Update replaces path when its stored hash still equals expectedHash.
func (t *Tree) Update(ctx context.Context, path, message string, content []byte, expectedHash, branch string) error {
	k := key(branch, path)
	if err := t.expect(ctx, k, path, expectedHash); err != nil {
		return err
	}
	return t.put(ctx, k, message, content)
}

// Delete removes path when its stored hash still equals expectedHash.
func (t *Tree) Delete(ctx context.Context, path, message, expectedHash, branch string) error {
	k := key(branch, path)
	if err := t.expect(ctx, k, path, expectedHash); err != nil {
		return err
	}

	err := t.retry(ctx, func(ctx context.Context) error {
		return t.client.RemoveObject(ctx, t.bucket, k, minio.RemoveObjectOptions{})
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, classify(err))
	}
	t.logger.Debug("Removed object", zap.String("key", k), zap.String("message", message))
	return nil
}

// ListBranches returns the top level prefixes that carry a marker.
func (t *Tree) ListBranches(ctx context.Context) ([]string, error) {
	objects, err := t.list(ctx, minio.ListObjectsOptions{Recursive: false})
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}

	var branches []string
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, "/") {
			continue
		}
		name := strings.TrimSuffix(obj.Key, "/")
		_, exists, err := t.current(ctx, key(name, MarkerName))
		if err != nil {
			return nil, err
		}
		if exists {
			branches = append(branches, name)
		}
	}
	sort.Strings(branches)
	return branches, nil
}

// LastBackup returns the newest modification time below the branch prefix,
// or the zero time for an empty branch.
func (t *Tree) LastBackup(ctx context.Context, branch string) (time.Time, error) {
	objects, err := t.list(ctx, minio.ListObjectsOptions{Prefix: branch + "/", Recursive: true})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read last backup time: %w", err)
	}

	var last time.Time
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/"+MarkerName) {
			continue
		}
		if obj.LastModified.After(last) {
			last = obj.LastModified
		}
	}
	return last, nil
}

// EnsureBranch creates the bucket and the branch marker when missing.
func (t *Tree) EnsureBranch(ctx context.Context, branch, region string) error {
	if branch == "" || strings.Contains(branch, "/") {
		return fmt.Errorf("invalid branch name %q", branch)
	}

	var exists bool
	err := t.retry(ctx, func(ctx context.Context) error {
		var err error
		exists, err = t.client.BucketExists(ctx, t.bucket)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", classify(err))
	}
	if !exists {
		if err := t.client.MakeBucket(ctx, t.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", classify(err))
		}
		t.logger.Info("Created bucket")
	}

	marker := key(branch, MarkerName)
	if _, found, err := t.current(ctx, marker); err != nil {
		return err
	} else if found {
		return nil
	}
	if err := t.put(ctx, marker, "branch "+branch, nil); err != nil {
		return err
	}
	t.logger.Info("Created branch", zap.String("branch", branch))
	return nil
}

func (t *Tree) requireBranch(ctx context.Context, branch string) error {
	_, exists, err := t.current(ctx, key(branch, MarkerName))
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: %w", branch, remote.ErrBranchNotFound)
	}
	return nil
}

// expect fails with remote.ErrConflict unless k exists with hash want.
func (t *Tree) expect(ctx context.Context, k, path, want string) error {
	hash, exists, err := t.current(ctx, k)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s no longer exists: %w", path, remote.ErrConflict)
	}
	if hash != want {
		return fmt.Errorf("%s changed (have %s, want %s): %w", path, hash, want, remote.ErrConflict)
	}
	return nil
}

// current returns the stored hash of k and whether k exists.
func (t *Tree) current(ctx context.Context, k string) (string, bool, error) {
	info, err := t.stat(ctx, k)
	if storage.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to stat %s: %w", k, err)
	}
	return blobSha(info.UserMetadata), true, nil
}

func (t *Tree) stat(ctx context.Context, k string) (minio.ObjectInfo, error) {
	var info minio.ObjectInfo
	err := t.retry(ctx, func(ctx context.Context) error {
		var err error
		info, err = t.client.StatObject(ctx, t.bucket, k, minio.StatObjectOptions{})
		return err
	})
	if err != nil && !storage.IsNotFound(err) {
		return info, classify(err)
	}
	return info, err
}

func (t *Tree) put(ctx context.Context, k, message string, content []byte) error {
	sum := blobhash.Sum(content)
	err := t.retry(ctx, func(ctx context.Context) error {
		_, err := t.client.PutObject(ctx, t.bucket, k, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
			ContentType:  "application/octet-stream",
			UserMetadata: map[string]string{MetaHash: sum, MetaMessage: message},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", k, classify(err))
	}
	t.logger.Debug("Uploaded object", zap.String("key", k), zap.String("hash", sum))
	return nil
}

func (t *Tree) list(ctx context.Context, opts minio.ListObjectsOptions) ([]minio.ObjectInfo, error) {
	var objects []minio.ObjectInfo
	err := t.retry(ctx, func(ctx context.Context) error {
		objects = objects[:0]
		for obj := range t.client.ListObjects(ctx, t.bucket, opts) {
			if obj.Err != nil {
				return obj.Err
			}
			objects = append(objects, obj)
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return objects, nil
}

func (t *Tree) retry(ctx context.Context, op func(ctx context.Context) error) error {
	return transport.Retry(ctx, t.policy, op, transient)
}

func key(branch, path string) string {
	return branch + "/" + strings.TrimPrefix(path, "/")
}

// blobSha reads the hash from user metadata. Listings may report the key
// with its x-amz-meta- prefix and in any case.
func blobSha(meta map[string]string) string {
	for k, v := range meta {
		k = strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-")
		if k == strings.ToLower(MetaHash) {
			return strings.ToLower(strings.TrimSpace(v))
		}
	}
	return blobhash.Unavailable
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if storage.IsAccessDenied(err) {
		return fmt.Errorf("%w: %v", remote.ErrAuth, err)
	}
	if minio.ToErrorResponse(err).Code == "NoSuchBucket" {
		return fmt.Errorf("%w: %v", remote.ErrBranchNotFound, err)
	}
	return err
}

func transient(err error) bool {
	if transport.IsTransient(err) {
		return true
	}
	switch minio.ToErrorResponse(err).Code {
	case "SlowDown", "ServiceUnavailable", "RequestTimeout":
		return true
	}
	return false
}
