// Package storage wraps the MinIO Go client for S3 compatible object stores.
//
// The Client interface lists the calls the object store remote needs, which
// keeps it mockable (see core/storage/mocks). NewClient works with AWS S3 and
// self-hosted MinIO alike.
//
// # Usage
//
//	client, err := storage.NewClient(cfg)
//	info, err := client.StatObject(ctx, cfg.Bucket, "main/.branch", minio.StatObjectOptions{})
//	if storage.IsNotFound(err) {
//	    // branch does not exist
//	}
package storage
