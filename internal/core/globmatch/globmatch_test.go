package globmatch_test

import (
	"testing"

	"nitpick/internal/core/globmatch"
)

func TestMatchDeepGlob(t *testing.T) {
	cases := []struct {
		glob, path string
		want       bool
	}{
		{"src/**/*.ts", "src/a.ts", true},
		{"src/**/*.ts", "src/x/y.ts", true},
		{"src/**/*.ts", "src/x/y/z.ts", true},
		{"src/**/*.ts", "src/a.js", false},
		{"src/**/*.ts", "docs/a.ts", false},
		{"*.md", "README.md", true},
		{"*.md", "docs/guide.md", true}, // anchored at a segment boundary too
		{"*.md", "README.mdx", false},
		{"docs/**", "docs/a/b.txt", true},
		{"docs/**", "src/docs.txt", false},
		{"go.mod", "go.mod", true},
		{"go.mod", "sub/go.mod", true},
		{"a?c.txt", "abc.txt", true},
		{"a?c.txt", "a/c.txt", false}, // ? never crosses a slash
		{"requirements*.txt", "requirements-dev.txt", true},
	}
	for _, c := range cases {
		if got := globmatch.Match(c.glob, c.path); got != c.want {
			t.Fatalf("Match(%q, %q) = %v want %v", c.glob, c.path, got, c.want)
		}
	}
}

func TestMatchAny(t *testing.T) {
	globs := []string{"*.lock", "vendor/**"}
	if !globmatch.MatchAny(globs, "yarn.lock") {
		t.Fatal("expected yarn.lock to match")
	}
	if !globmatch.MatchAny(globs, "vendor/pkg/a.go") {
		t.Fatal("expected vendored path to match")
	}
	if globmatch.MatchAny(globs, "src/main.go") {
		t.Fatal("unexpected match")
	}
}
