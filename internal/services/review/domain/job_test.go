package domain_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"nitpick/internal/services/review/domain"
)

func validJobJSON(t *testing.T, mutate func(map[string]any)) []byte {
	t.Helper()
	m := map[string]any{
		"prNumber":       42,
		"prTitle":        "Fix the thing",
		"prBody":         "details",
		"repoFullName":   "octo/hello",
		"cloneUrl":       "https://github.com/octo/hello.git",
		"headRef":        "feature/x",
		"headSha":        "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"baseRef":        "main",
		"baseSha":        "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		"prAuthor":       "octocat",
		"installationId": 7,
		"enqueuedAt":     "2026-01-02T03:04:05Z",
	}
	if mutate != nil {
		mutate(m)
	}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestParseJobValid(t *testing.T) {
	j, err := domain.ParseJob(validJobJSON(t, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.PRNumber != 42 || j.RepoFullName != "octo/hello" || j.InstallationID != 7 {
		t.Fatalf("fields lost: %+v", j)
	}
	if j.Body() != "details" {
		t.Fatalf("body %q", j.Body())
	}
}

func TestParseJobDefaults(t *testing.T) {
	j, err := domain.ParseJob(validJobJSON(t, func(m map[string]any) {
		delete(m, "prTitle")
		delete(m, "prAuthor")
		delete(m, "prBody")
		delete(m, "enqueuedAt")
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.PRTitle != "(untitled)" {
		t.Fatalf("title %q", j.PRTitle)
	}
	if j.PRAuthor != "unknown" {
		t.Fatalf("author %q", j.PRAuthor)
	}
	if j.Body() != "" {
		t.Fatalf("nil body must read empty, got %q", j.Body())
	}
	if _, err := time.Parse(time.RFC3339, j.EnqueuedAt); err != nil {
		t.Fatalf("enqueuedAt default not RFC3339: %q", j.EnqueuedAt)
	}
}

func TestParseJobRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"zero pr number", func(m map[string]any) { m["prNumber"] = 0 }},
		{"bad repo name", func(m map[string]any) { m["repoFullName"] = "no-slash" }},
		{"http clone url", func(m map[string]any) { m["cloneUrl"] = "http://github.com/octo/hello.git" }},
		{"ref with space", func(m map[string]any) { m["headRef"] = "has space" }},
		{"ref with dotdot", func(m map[string]any) { m["headRef"] = "a..b" }},
		{"short sha", func(m map[string]any) { m["headSha"] = "abc" }},
		{"nonhex sha", func(m map[string]any) { m["baseSha"] = strings.Repeat("g", 40) }},
		{"missing installation", func(m map[string]any) { delete(m, "installationId") }},
	}
	for _, c := range cases {
		if _, err := domain.ParseJob(validJobJSON(t, c.mutate)); err == nil {
			t.Fatalf("%s: expected validation error", c.name)
		}
	}
}

func TestParseJobMalformedJSON(t *testing.T) {
	if _, err := domain.ParseJob([]byte("{not json")); err == nil {
		t.Fatal("expected error")
	}
}
