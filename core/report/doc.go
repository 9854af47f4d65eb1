// Package report renders the status file written to the root of the backup
// branch after every pass.
//
// The file states when the last backup ran, in local time with the zone
// offset and in UTC, followed by the files added, updated and deleted by that
// pass. An empty category is rendered as a single sentence.
package report
