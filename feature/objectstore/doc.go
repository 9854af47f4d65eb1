// Package objectstore implements remote.Tree on an S3 compatible bucket.
//
// Each branch is a key prefix ("main/config.g" is config.g on branch main).
// A branch exists once its marker object "<branch>/.branch" exists, which
// EnsureBranch creates. The git blob hash of every object is stored in the
// Blob-Sha user metadata so listings compare against local content without
// downloading anything.
//
// Buckets have no compare-and-swap, so writes stat the object first and
// report remote.ErrConflict when its hash differs from the expected one.
// Writes do not check the branch marker.
package objectstore
