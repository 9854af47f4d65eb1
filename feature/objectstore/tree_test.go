package objectstore_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"duet-backup/core/blobhash"
	"duet-backup/core/remote"
	"duet-backup/core/storage/mocks"
	"duet-backup/core/transport"
	"duet-backup/feature/objectstore"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const bucket = "backups"

var (
	notFound = minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}
	denied   = minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403}
)

func newTree(t *testing.T, client *mocks.Client) *objectstore.Tree {
	t.Helper()
	tree, err := objectstore.NewTree(client, bucket, transport.Policy{MaxAttempts: 2, Delay: time.Millisecond, Timeout: time.Second}, zap.NewNop())
	require.NoError(t, err)
	return tree
}

func objects(infos ...minio.ObjectInfo) func(context.Context, string, minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	return func(context.Context, string, minio.ListObjectsOptions) <-chan minio.ObjectInfo {
		ch := make(chan minio.ObjectInfo, len(infos))
		for _, info := range infos {
			ch <- info
		}
		close(ch)
		return ch
	}
}

func withPrefix(prefix string) interface{} {
	return mock.MatchedBy(func(o minio.ListObjectsOptions) bool { return o.Prefix == prefix })
}

func stored(hash string) minio.ObjectInfo {
	return minio.ObjectInfo{UserMetadata: map[string]string{objectstore.MetaHash: hash}}
}

func TestNewTree(t *testing.T) {
	_, err := objectstore.NewTree(nil, bucket, transport.Policy{}, nil)
	assert.Error(t, err)

	_, err = objectstore.NewTree(new(mocks.Client), "", transport.Policy{}, nil)
	assert.Error(t, err)
}

func TestListFiles(t *testing.T) {
	configHash := blobhash.Sum([]byte("M550 P\"voron\"\n"))
	macroHash := blobhash.Sum([]byte("G28\n"))

	t.Run("ListsBranchContent", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, bucket, "main/.branch", mock.Anything).Return(minio.ObjectInfo{}, nil)
		client.On("ListObjects", mock.Anything, bucket, withPrefix("main/")).Return(objects(
			minio.ObjectInfo{Key: "main/.branch"},
			minio.ObjectInfo{Key: "main/sd/sys/config.g", UserMetadata: map[string]string{"X-Amz-Meta-Blob-Sha": configHash}},
			minio.ObjectInfo{Key: "main/sd/macros/"},
			minio.ObjectInfo{Key: "main/sd/macros/home.g"},
		))
		// Listing without metadata falls back to a stat.
		client.On("StatObject", mock.Anything, bucket, "main/sd/macros/home.g", mock.Anything).Return(stored(macroHash), nil)

		entries, err := newTree(t, client).ListFiles(context.Background(), "main")
		require.NoError(t, err)
		assert.Equal(t, []remote.Entry{
			{Path: "sd/macros/home.g", Hash: macroHash},
			{Path: "sd/sys/config.g", Hash: configHash},
		}, entries)
		client.AssertExpectations(t)
	})

	t.Run("BranchNotFound", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, bucket, "gone/.branch", mock.Anything).Return(minio.ObjectInfo{}, notFound)

		_, err := newTree(t, client).ListFiles(context.Background(), "gone")
		assert.ErrorIs(t, err, remote.ErrBranchNotFound)
		client.AssertNotCalled(t, "ListObjects", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("AccessDenied", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, bucket, "main/.branch", mock.Anything).Return(minio.ObjectInfo{}, denied).Once()

		_, err := newTree(t, client).ListFiles(context.Background(), "main")
		assert.ErrorIs(t, err, remote.ErrAuth)
		client.AssertNumberOfCalls(t, "StatObject", 1)
	})

	t.Run("ListingErrorRetried", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, bucket, "main/.branch", mock.Anything).Return(minio.ObjectInfo{}, nil)
		client.On("ListObjects", mock.Anything, bucket, withPrefix("main/")).Return(objects(
			minio.ObjectInfo{Err: minio.ErrorResponse{Code: "SlowDown", StatusCode: 503}},
		)).Once()
		client.On("ListObjects", mock.Anything, bucket, withPrefix("main/")).Return(objects(
			minio.ObjectInfo{Key: "main/a.g", UserMetadata: map[string]string{"Blob-Sha": macroHash}},
		)).Once()

		entries, err := newTree(t, client).ListFiles(context.Background(), "main")
		require.NoError(t, err)
		assert.Equal(t, []remote.Entry{{Path: "a.g", Hash: macroHash}}, entries)
	})
}

func TestReadExisting(t *testing.T) {
	hash := blobhash.Sum([]byte("x"))
	client := new(mocks.Client)
	client.On("StatObject", mock.Anything, bucket, "main/a.g", mock.Anything).Return(stored(hash), nil)
	client.On("StatObject", mock.Anything, bucket, "main/b.g", mock.Anything).Return(minio.ObjectInfo{}, notFound)
	tree := newTree(t, client)

	entry, err := tree.ReadExisting(context.Background(), "a.g", "main")
	require.NoError(t, err)
	assert.Equal(t, remote.Entry{Path: "a.g", Hash: hash}, entry)

	_, err = tree.ReadExisting(context.Background(), "b.g", "main")
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestWrites(t *testing.T) {
	content := []byte("G28\n")
	sum := blobhash.Sum(content)
	old := blobhash.Sum([]byte("G28 X\n"))

	withHash := mock.MatchedBy(func(o minio.PutObjectOptions) bool {
		return o.UserMetadata[objectstore.MetaHash] == sum && o.UserMetadata[objectstore.MetaMessage] == "msg"
	})

	t.Run("Create", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, bucket, "main/home.g", mock.Anything).Return(minio.ObjectInfo{}, notFound)
		client.On("PutObject", mock.Anything, bucket, "main/home.g", mock.Anything, int64(len(content)), withHash).
			Run(func(args mock.Arguments) {
				body, err := io.ReadAll(args.Get(3).(io.Reader))
				require.NoError(t, err)
				assert.Equal(t, content, body)
			}).
			Return(minio.UploadInfo{}, nil)

		require.NoError(t, newTree(t, client).Create(context.Background(), "home.g", "msg", content, "main"))
		client.AssertExpectations(t)
	})

	t.Run("CreateExisting", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, bucket, "main/home.g", mock.Anything).Return(stored(old), nil)

		err := newTree(t, client).Create(context.Background(), "home.g", "msg", content, "main")
		assert.ErrorIs(t, err, remote.ErrConflict)
		client.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Update", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, bucket, "main/home.g", mock.Anything).Return(stored(old), nil)
		client.On("PutObject", mock.Anything, bucket, "main/home.g", mock.Anything, int64(len(content)), withHash).Return(minio.UploadInfo{}, nil)

		require.NoError(t, newTree(t, client).Update(context.Background(), "home.g", "msg", content, old, "main"))
		client.AssertExpectations(t)
	})

	t.Run("UpdateStale", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, bucket, "main/home.g", mock.Anything).Return(stored(sum), nil)

		err := newTree(t, client).Update(context.Background(), "home.g", "msg", content, old, "main")
		assert.ErrorIs(t, err, remote.ErrConflict)
	})

	t.Run("UpdateVanished", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, bucket, "main/home.g", mock.Anything).Return(minio.ObjectInfo{}, notFound)

		err := newTree(t, client).Update(context.Background(), "home.g", "msg", content, old, "main")
		assert.ErrorIs(t, err, remote.ErrConflict)
	})

	t.Run("Delete", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, bucket, "main/home.g", mock.Anything).Return(stored(old), nil)
		client.On("RemoveObject", mock.Anything, bucket, "main/home.g", mock.Anything).Return(nil)

		require.NoError(t, newTree(t, client).Delete(context.Background(), "home.g", "msg", old, "main"))
		client.AssertExpectations(t)
	})

	t.Run("DeleteStale", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, bucket, "main/home.g", mock.Anything).Return(stored(sum), nil)

		err := newTree(t, client).Delete(context.Background(), "home.g", "msg", old, "main")
		assert.ErrorIs(t, err, remote.ErrConflict)
		client.AssertNotCalled(t, "RemoveObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UploadDenied", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, bucket, "main/home.g", mock.Anything).Return(minio.ObjectInfo{}, notFound)
		client.On("PutObject", mock.Anything, bucket, "main/home.g", mock.Anything, mock.Anything, mock.Anything).Return(minio.UploadInfo{}, denied).Once()

		err := newTree(t, client).Create(context.Background(), "home.g", "msg", content, "main")
		assert.ErrorIs(t, err, remote.ErrAuth)
	})

	t.Run("TransientUploadRetried", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("StatObject", mock.Anything, bucket, "main/home.g", mock.Anything).Return(minio.ObjectInfo{}, notFound)
		client.On("PutObject", mock.Anything, bucket, "main/home.g", mock.Anything, mock.Anything, mock.Anything).Return(minio.UploadInfo{}, io.ErrUnexpectedEOF).Once()
		client.On("PutObject", mock.Anything, bucket, "main/home.g", mock.Anything, mock.Anything, mock.Anything).Return(minio.UploadInfo{}, nil).Once()

		require.NoError(t, newTree(t, client).Create(context.Background(), "home.g", "msg", content, "main"))
		client.AssertNumberOfCalls(t, "PutObject", 2)
	})
}

func TestListBranches(t *testing.T) {
	client := new(mocks.Client)
	client.On("ListObjects", mock.Anything, bucket, withPrefix("")).Return(objects(
		minio.ObjectInfo{Key: "stray.txt"},
		minio.ObjectInfo{Key: "old/"},
		minio.ObjectInfo{Key: "main/"},
	))
	client.On("StatObject", mock.Anything, bucket, "main/.branch", mock.Anything).Return(minio.ObjectInfo{}, nil)
	client.On("StatObject", mock.Anything, bucket, "old/.branch", mock.Anything).Return(minio.ObjectInfo{}, notFound)

	branches, err := newTree(t, client).ListBranches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, branches)
}

func TestLastBackup(t *testing.T) {
	early := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	late := early.Add(2 * time.Hour)

	client := new(mocks.Client)
	client.On("ListObjects", mock.Anything, bucket, withPrefix("main/")).Return(objects(
		minio.ObjectInfo{Key: "main/.branch", LastModified: late.Add(time.Hour)},
		minio.ObjectInfo{Key: "main/a.g", LastModified: early},
		minio.ObjectInfo{Key: "main/README.md", LastModified: late},
	))
	client.On("ListObjects", mock.Anything, bucket, withPrefix("empty/")).Return(objects())
	tree := newTree(t, client)

	at, err := tree.LastBackup(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, late, at)

	at, err = tree.LastBackup(context.Background(), "empty")
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}

func TestEnsureBranch(t *testing.T) {
	t.Run("CreatesBucketAndMarker", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, bucket).Return(false, nil)
		client.On("MakeBucket", mock.Anything, bucket, minio.MakeBucketOptions{Region: "eu-west-1"}).Return(nil)
		client.On("StatObject", mock.Anything, bucket, "main/.branch", mock.Anything).Return(minio.ObjectInfo{}, notFound)
		client.On("PutObject", mock.Anything, bucket, "main/.branch", mock.Anything, int64(0), mock.Anything).Return(minio.UploadInfo{}, nil)

		require.NoError(t, newTree(t, client).EnsureBranch(context.Background(), "main", "eu-west-1"))
		client.AssertExpectations(t)
	})

	t.Run("AlreadyThere", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, bucket).Return(true, nil)
		client.On("StatObject", mock.Anything, bucket, "main/.branch", mock.Anything).Return(minio.ObjectInfo{}, nil)

		require.NoError(t, newTree(t, client).EnsureBranch(context.Background(), "main", ""))
		client.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
		client.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("InvalidName", func(t *testing.T) {
		err := newTree(t, new(mocks.Client)).EnsureBranch(context.Background(), "a/b", "")
		assert.Error(t, err)
	})

	t.Run("BucketCheckFails", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, bucket).Return(false, errors.New("boom"))

		err := newTree(t, client).EnsureBranch(context.Background(), "main", "")
		assert.ErrorContains(t, err, "boom")
	})
}
