// Package diffutil parses and bounds unified diffs
package diffutil

import (
	"strings"
	"unicode/utf8"
)

// ExtractChangedFiles returns each unique path following "+++ b/" in the
// unified diff, in first-seen order
func ExtractChangedFiles(diff string) []string {
	var out []string
	seen := map[string]bool{}
	for _, line := range strings.Split(diff, "\n") {
		path, ok := strings.CutPrefix(line, "+++ b/")
		if !ok {
			continue
		}
		path = strings.TrimSpace(path)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		out = append(out, path)
	}
	return out
}

// Stats counts added and removed lines, skipping file headers
func Stats(diff string) (additions, deletions int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			additions++
		case strings.HasPrefix(line, "-"):
			deletions++
		}
	}
	return additions, deletions
}

// Truncate caps s at max bytes and appends marker when it cut anything.
// The model is told about the cut so it can re-fetch via git_diff
func Truncate(s string, max int, marker string) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	// never cut inside a multi-byte rune
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + marker
}
