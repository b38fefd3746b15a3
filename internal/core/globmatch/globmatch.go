// Package globmatch implements the file-glob dialect skills and repo
// settings use to match changed paths
//
// Semantics: `*` matches any run of non-slash characters, `**` matches any
// run including slashes, `?` matches a single non-slash character. Patterns
// are anchored to the end of the path and to either the path start or the
// segment boundary after a `/`
package globmatch

import (
	"regexp"
	"strings"
	"sync"
)

var (
	mu    sync.RWMutex
	cache = map[string]*regexp.Regexp{}
)

// Compile translates a glob into an anchored regexp
func Compile(glob string) (*regexp.Regexp, error) {
	mu.RLock()
	re, ok := cache[glob]
	mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(`(^|/)` + translate(glob) + `$`)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	cache[glob] = re
	mu.Unlock()
	return re, nil
}

// Match reports whether path matches glob; a malformed glob matches nothing
func Match(glob, path string) bool {
	re, err := Compile(glob)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}

// MatchAny reports whether path matches at least one glob
func MatchAny(globs []string, path string) bool {
	for _, g := range globs {
		if Match(g, path) {
			return true
		}
	}
	return false
}

// translate converts glob syntax to regexp syntax one token at a time
func translate(glob string) string {
	var b strings.Builder
	i := 0
	for i < len(glob) {
		switch {
		case strings.HasPrefix(glob[i:], "**/"):
			// any number of whole segments, including none
			b.WriteString(`(?:[^/]+/)*`)
			i += 3
		case strings.HasPrefix(glob[i:], "**"):
			b.WriteString(`.*`)
			i += 2
		case glob[i] == '*':
			b.WriteString(`[^/]*`)
			i++
		case glob[i] == '?':
			b.WriteString(`[^/]`)
			i++
		default:
			b.WriteString(regexp.QuoteMeta(string(glob[i])))
			i++
		}
	}
	return b.String()
}
