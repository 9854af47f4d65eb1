package printer

import (
	"strconv"
	"strings"

	"duet-backup/core/source"
)

// ToDevice converts "sd/sys/config.g" to "0:/sys/config.g". Paths on other
// volumes use "sd<N>/" and map to "<N>:/".
func ToDevice(p string) string {
	p = source.Normalize(p)
	head, rest, _ := strings.Cut(p, "/")
	if head == "sd" {
		return "0:/" + rest
	}
	if n, ok := strings.CutPrefix(head, "sd"); ok {
		if _, err := strconv.Atoi(n); err == nil {
			return n + ":/" + rest
		}
	}
	return "0:/" + p
}

// FromDevice converts "0:/sys/config.g" to "sd/sys/config.g".
func FromDevice(p string) string {
	volume, rest, ok := strings.Cut(p, ":/")
	if !ok {
		return source.Normalize(p)
	}
	if volume == "0" {
		return source.Normalize("sd/" + rest)
	}
	return source.Normalize("sd" + volume + "/" + rest)
}

// deviceDir returns the device form of a directory with a trailing slash.
func deviceDir(p string) string {
	d := ToDevice(p)
	if !strings.HasSuffix(d, "/") {
		d += "/"
	}
	return d
}

var aliases = []struct {
	alias string
	real  string
}{
	{"sd/systems", "sd/sys"},
	{"sd/jobs", "sd/gcodes"},
	{"sd/filaments", "sd/filaments"},
	{"sd/macros", "sd/macros"},
	{"sd/firmware", "sd/firmware"},
	{"sd/menu", "sd/menu"},
}

// ApplyAliases rewrites well-known directory names: "sd/systems" becomes
// "sd/sys", "sd/jobs" becomes "sd/gcodes", and the case of the standard
// directories is fixed. Matching is case-insensitive on the prefix.
func ApplyAliases(paths []string) []string {
	if paths == nil {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = applyAlias(p)
	}
	return out
}

func applyAlias(p string) string {
	for _, a := range aliases {
		if len(p) >= len(a.alias) && strings.EqualFold(p[:len(a.alias)], a.alias) {
			return a.real + p[len(a.alias):]
		}
	}
	return p
}
