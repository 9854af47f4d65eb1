package report

import (
	"fmt"
	"strings"
	"time"
)

// FileName is the well-known name of the status file.
const FileName = "README.md"

const stampLayout = "02 Jan 2006 at 15:04"

// Outcome lists the files touched by one pass.
type Outcome struct {
	Added   []string
	Updated []string
	Deleted []string
}

// Build renders the status file for a pass that ran at at. The local section
// uses at's location.
func Build(at time.Time, o Outcome) []byte {
	var b strings.Builder

	b.WriteString("# Last backup\n")
	fmt.Fprintf(&b, "- Local: %s (TZ = %s hrs)\n", at.Format(stampLayout), OffsetHours(at))
	fmt.Fprintf(&b, "- UTC: %s\n", at.UTC().Format(stampLayout))

	section(&b, "Added", "added", o.Added)
	section(&b, "Updated", "updated", o.Updated)
	section(&b, "Deleted", "deleted", o.Deleted)

	return []byte(b.String())
}

// OffsetHours formats the zone offset of t as signed hours with one decimal,
// e.g. "+1.0" or "-3.5".
func OffsetHours(t time.Time) string {
	_, offset := t.Zone()
	return fmt.Sprintf("%+.1f", float64(offset)/3600)
}

func section(b *strings.Builder, title, verb string, paths []string) {
	fmt.Fprintf(b, "\n## %s\n", title)
	if len(paths) == 0 {
		fmt.Fprintf(b, "No files were %s.\n", verb)
		return
	}
	for _, p := range paths {
		fmt.Fprintf(b, "- %s\n", p)
	}
}
