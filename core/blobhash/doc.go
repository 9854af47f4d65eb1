// Package blobhash computes content identifiers compatible with Git's blob
// object addressing.
//
// A blob id is the SHA-1 of the header "blob <size>\x00" followed by the raw
// file bytes. Hosting APIs report exactly this id for every file on a branch,
// so a locally computed id can be compared with the remote one without
// downloading the remote content.
//
// # Unavailable ids
//
// When the size of the content cannot be determined, the hasher returns
// Unavailable instead of failing. Callers treat Unavailable as "different"
// and upload the file.
//
// # Usage
//
//	id := blobhash.Sum(content)
//	if blobhash.Differs(id, entry.Hash) {
//	    // upload
//	}
package blobhash
