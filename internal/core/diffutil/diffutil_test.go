package diffutil_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"nitpick/internal/core/diffutil"
)

const sampleDiff = `diff --git a/src/main.go b/src/main.go
--- a/src/main.go
+++ b/src/main.go
@@ -1,3 +1,4 @@
 package main
+import "fmt"
-var old = 1
+var cur = 2
diff --git a/docs/readme.md b/docs/readme.md
--- a/docs/readme.md
+++ b/docs/readme.md
@@ -1 +1,2 @@
 # readme
+more
diff --git a/src/main.go b/src/main.go
+++ b/src/main.go
`

func TestExtractChangedFiles(t *testing.T) {
	got := diffutil.ExtractChangedFiles(sampleDiff)
	want := []string{"src/main.go", "docs/readme.md"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestStatsSkipsHeaders(t *testing.T) {
	adds, dels := diffutil.Stats(sampleDiff)
	if adds != 3 || dels != 1 {
		t.Fatalf("got +%d -%d want +3 -1", adds, dels)
	}
}

func TestTruncate(t *testing.T) {
	s := strings.Repeat("x", 100)
	out := diffutil.Truncate(s, 10, "[cut]")
	if !strings.HasSuffix(out, "[cut]") {
		t.Fatalf("missing marker: %q", out)
	}
	if len(out) != 10+len("[cut]") {
		t.Fatalf("unexpected length %d", len(out))
	}
	if diffutil.Truncate("short", 10, "[cut]") != "short" {
		t.Fatal("short input must pass through")
	}
}

func TestTruncateRuneBoundary(t *testing.T) {
	s := strings.Repeat("é", 10) // 2 bytes per rune

	// a cap landing mid-rune backs off to the previous boundary
	out := diffutil.Truncate(s, 9, "[cut]")
	if !utf8.ValidString(out) {
		t.Fatalf("invalid utf-8: %q", out)
	}
	if out != strings.Repeat("é", 4)+"[cut]" {
		t.Fatalf("unexpected cut: %q", out)
	}

	// a cap on a boundary cuts exactly there
	if got := diffutil.Truncate(s, 8, "[cut]"); got != strings.Repeat("é", 4)+"[cut]" {
		t.Fatalf("boundary cut: %q", got)
	}
}
