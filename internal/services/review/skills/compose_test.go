package skills_test

import (
	"strings"
	"testing"

	"nitpick/internal/platform/testkit"
	"nitpick/internal/services/review/domain"
	"nitpick/internal/services/review/skills"
)

func testJob() domain.Job {
	return domain.Job{
		PRNumber:     7,
		PRTitle:      "Add retry loop",
		RepoFullName: "octo/hello",
		HeadRef:      "feature/x",
		BaseRef:      "main",
		PRAuthor:     "octocat",
	}
}

func skillNames(c skills.Composition) map[string]bool {
	out := map[string]bool{}
	for _, n := range c.ActiveSkillNames {
		out[n] = true
	}
	return out
}

func skipReason(c skills.Composition, name string) string {
	for _, s := range c.Skipped {
		if s.Name == name {
			return s.Reason
		}
	}
	return ""
}

func TestComposeCodeOnlyChange(t *testing.T) {
	c := skills.Compose(testJob(), []string{"src/retry.go"}, domain.DefaultSettings())

	names := skillNames(c)
	for _, want := range []string{"correctness", "security", "performance", "tests"} {
		if !names[want] {
			t.Fatalf("expected %s active, got %v", want, c.ActiveSkillNames)
		}
	}
	if names["dependencies"] {
		t.Fatal("dependencies must not run without a manifest change")
	}
	if names["docs"] {
		t.Fatal("docs must not run without a doc change")
	}

	if got := skipReason(c, "style"); got != "not enabled" {
		t.Fatalf("style skip reason %q", got)
	}
	if got := skipReason(c, "dependencies"); got != "no matching files in diff" {
		t.Fatalf("dependencies skip reason %q", got)
	}
}

func TestComposeManifestChange(t *testing.T) {
	c := skills.Compose(testJob(), []string{"go.mod", "go.sum"}, domain.DefaultSettings())

	if !skillNames(c)["dependencies"] {
		t.Fatalf("expected dependencies active, got %v", c.ActiveSkillNames)
	}
	found := false
	for _, tn := range c.ToolNames {
		if tn == "check_vulnerabilities" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected check_vulnerabilities in tool set, got %v", c.ToolNames)
	}
}

func TestComposePriorityOrder(t *testing.T) {
	c := skills.Compose(testJob(), []string{"src/a.go", "docs/guide.md"}, domain.DefaultSettings())

	want := []string{"correctness", "security", "performance", "tests", "docs"}
	if len(c.ActiveSkillNames) != len(want) {
		t.Fatalf("active %v want %v", c.ActiveSkillNames, want)
	}
	for i := range want {
		if c.ActiveSkillNames[i] != want[i] {
			t.Fatalf("active %v want %v", c.ActiveSkillNames, want)
		}
	}
}

func TestComposeToolUnionFirstSeenOrder(t *testing.T) {
	c := skills.Compose(testJob(), []string{"src/a.go"}, domain.DefaultSettings())

	seen := map[string]int{}
	for _, tn := range c.ToolNames {
		seen[tn]++
	}
	for tn, n := range seen {
		if n != 1 {
			t.Fatalf("tool %s appears %d times", tn, n)
		}
	}
	// correctness runs first, so its first tool leads
	if c.ToolNames[0] != "read_file" {
		t.Fatalf("tool order %v", c.ToolNames)
	}
}

func TestComposeIgnoreGlobs(t *testing.T) {
	settings := domain.DefaultSettings()
	settings.IgnoreGlobs = []string{"vendor/**", "*.lock"}

	c := skills.Compose(testJob(), []string{"vendor/dep/a.go", "yarn.lock"}, settings)

	// all changed files ignored: glob-gated skills see no matches
	if skillNames(c)["dependencies"] {
		t.Fatal("ignored manifest must not activate dependencies")
	}
	if !skillNames(c)["correctness"] {
		t.Fatal("globless skills still run")
	}
}

func TestComposePromptContents(t *testing.T) {
	job := testJob()
	body := "Fixes the flaky retry"
	job.PRBody = &body

	settings := domain.DefaultSettings()
	settings.Checklist = []string{"No new global state"}

	c := skills.Compose(job, []string{"src/a.go"}, settings)

	for _, frag := range []string{
		"Repository: octo/hello",
		"PR #7: Add retry loop",
		"Fixes the flaky retry",
		"## Skill: Correctness",
		"## Repository checklist",
		"- No new global state",
		"<review>",
		"\"verdict\": \"approve\" | \"request_changes\" | \"comment\"",
	} {
		testkit.MustContain(t, c.SystemPrompt, frag)
	}
}

func TestComposeStrictnessPreamble(t *testing.T) {
	mk := func(s domain.Strictness) string {
		settings := domain.DefaultSettings()
		settings.Strictness = s
		return skills.Compose(testJob(), []string{"a.go"}, settings).SystemPrompt
	}

	if !strings.Contains(mk(domain.StrictnessLenient), "highly confident") {
		t.Fatal("lenient preamble missing")
	}
	if !strings.Contains(mk(domain.StrictnessStrict), "Be thorough") {
		t.Fatal("strict preamble missing")
	}
	if !strings.Contains(mk(domain.StrictnessBalanced), "Report defects that matter") {
		t.Fatal("balanced preamble missing")
	}
}
