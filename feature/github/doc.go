// Package github implements remote.Tree on top of the GitHub REST API.
//
// Files are listed with the recursive git trees endpoint, falling back to a
// directory walk over the contents API when the tree is truncated. Every
// write is a single contents API call carrying the blob sha observed at
// listing time, so GitHub itself performs the optimistic concurrency check:
// 409 and 422 are reported as remote.ErrConflict.
//
// Requests authenticate with HTTP basic auth (user and personal access
// token) and go through core/transport for retries.
package github
