// Package source defines where backed-up files come from.
//
// A Source enumerates the relative paths under a set of roots, already
// filtered through an exclude.Matcher, and reads single files on demand.
// Paths are normalized: forward slashes, no leading slash, de-duplicated and
// sorted. When a root cannot be read the error is reported next to the paths
// gathered from the remaining roots.
//
// A Notifier is a best-effort message sink (the printer display). Callers log
// its failures and move on.
package source
