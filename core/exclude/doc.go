// Package exclude decides which files take part in a backup.
//
// Two independent rules are provided:
//
//   - Exclusion: shell-style glob patterns ("*", "?", "[abc]", "[!abc]")
//     matched against the full relative path of a source file. "*" also
//     matches "/", so "sd/sys/*.bak" excludes backups in nested folders too.
//     Matching is case-sensitive.
//   - Protection: plain path prefixes. A remote file under a protected prefix
//     is never deleted, even when it no longer exists in the source.
//
// Patterns are compiled once by New; invalid patterns are rejected there so
// that matching itself can never fail.
package exclude
