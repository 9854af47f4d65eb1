// Package remote defines the boundary to the repository that receives the
// backup.
//
// A Tree lists the files committed on a branch together with their blob
// hashes and writes single files back. Every write is optimistic: Update and
// Delete carry the hash observed at listing time and fail with ErrConflict
// when the remote content has moved on. Conflicts are file-local and are
// never retried.
//
// Implementations live under feature/github (GitHub contents API) and
// feature/objectstore (S3/MinIO bucket).
package remote
