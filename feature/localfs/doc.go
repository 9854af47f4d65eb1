// Package localfs backs up files from a local directory tree.
//
// Roots are resolved below a top directory and walked through an afero.Fs,
// so tests run against an in-memory filesystem. Listed paths are relative to
// the top directory.
package localfs
