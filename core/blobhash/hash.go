package blobhash

import (
	"io"

	"github.com/go-git/go-git/v5/plumbing"
)

// Unavailable is returned when no id could be computed for a piece of content.
const Unavailable = ""

// Sum returns the lowercase hex blob id of content.
func Sum(content []byte) string {
	return plumbing.ComputeHash(plumbing.BlobObject, content).String()
}

// SumReader streams r into the blob hasher. size must be the exact number of
// bytes r yields; a negative size, a short read or a read error yields
// Unavailable.
func SumReader(r io.Reader, size int64) string {
	if r == nil || size < 0 {
		return Unavailable
	}

	h := plumbing.NewHasher(plumbing.BlobObject, size)
	n, err := io.Copy(h, r)
	if err != nil || n != size {
		return Unavailable
	}
	return h.Sum().String()
}

// Differs reports whether a local id and a remote id denote different content.
// An Unavailable id on either side always counts as different.
func Differs(local, remote string) bool {
	if local == Unavailable || remote == Unavailable {
		return true
	}
	return local != remote
}
