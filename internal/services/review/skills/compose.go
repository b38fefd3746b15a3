package skills

import (
	"fmt"
	"sort"
	"strings"

	"nitpick/internal/core/globmatch"
	"nitpick/internal/services/review/domain"
	"nitpick/internal/services/review/tools"
)

// SkippedSkill records why a catalog entry did not make the cut
type SkippedSkill struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Composition is the assembled review configuration for one run
type Composition struct {
	SystemPrompt     string
	ToolNames        []string
	ActiveSkillNames []string
	Skipped          []SkippedSkill
}

// Skip reasons
const (
	reasonNotEnabled = "not enabled"
	reasonNoMatch    = "no matching files in diff"
)

// Compose selects skills for the changed files and builds the system
// prompt. Repo settings filter changed files through ignore globs, tune
// the preamble strictness, and append the custom checklist
func Compose(job domain.Job, changedFiles []string, settings domain.RepoSettings) Composition {
	settings = settings.Normalized()
	files := filterIgnored(changedFiles, settings.IgnoreGlobs)

	var active []Skill
	var skipped []SkippedSkill
	for _, sk := range Catalog() {
		if !sk.EnabledByDefault {
			skipped = append(skipped, SkippedSkill{Name: sk.Name, Reason: reasonNotEnabled})
			continue
		}
		if len(sk.FileGlobs) > 0 && len(files) > 0 && !anyFileMatches(files, sk.FileGlobs) {
			skipped = append(skipped, SkippedSkill{Name: sk.Name, Reason: reasonNoMatch})
			continue
		}
		active = append(active, sk)
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Priority < active[j].Priority })

	names := make([]string, len(active))
	for i, sk := range active {
		names[i] = sk.Name
	}

	return Composition{
		SystemPrompt:     buildPrompt(job, active, settings),
		ToolNames:        toolUnion(active),
		ActiveSkillNames: names,
		Skipped:          skipped,
	}
}

func filterIgnored(files, ignoreGlobs []string) []string {
	if len(ignoreGlobs) == 0 {
		return files
	}
	out := files[:0:0]
	for _, f := range files {
		if !globmatch.MatchAny(ignoreGlobs, f) {
			out = append(out, f)
		}
	}
	return out
}

func anyFileMatches(files, globs []string) bool {
	for _, f := range files {
		if globmatch.MatchAny(globs, f) {
			return true
		}
	}
	return false
}

// toolUnion collects each skill's required tools in first-seen order,
// dropping names the surface cannot dispatch
func toolUnion(active []Skill) []string {
	seen := map[string]bool{}
	var out []string
	for _, sk := range active {
		for _, t := range sk.RequiredTools {
			if seen[t] || !tools.Known(t) {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func buildPrompt(job domain.Job, active []Skill, settings domain.RepoSettings) string {
	var b strings.Builder

	b.WriteString(preamble(settings.Strictness))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "## Pull request\n\nRepository: %s\nPR #%d: %s\nAuthor: %s\nBranch: %s -> %s\n",
		job.RepoFullName, job.PRNumber, job.PRTitle, job.PRAuthor, job.HeadRef, job.BaseRef)
	if body := job.Body(); body != "" {
		b.WriteString("\nDescription:\n" + body + "\n")
	}
	b.WriteString("\n")

	blocks := make([]string, len(active))
	for i, sk := range active {
		blocks[i] = fmt.Sprintf("## Skill: %s\n\n%s", sk.Label, sk.Instructions)
	}
	b.WriteString(strings.Join(blocks, "\n\n---\n\n"))

	if len(settings.Checklist) > 0 {
		b.WriteString("\n\n---\n\n## Repository checklist\n\nThe maintainers also ask you to verify:\n")
		for _, item := range settings.Checklist {
			b.WriteString("- " + item + "\n")
		}
	}

	b.WriteString("\n\n" + outputContract)
	return b.String()
}

// preamble tunes the reviewer's posture per repo strictness
func preamble(s domain.Strictness) string {
	base := `You are an automated code reviewer. Investigate the pull request using
the provided tools before drawing conclusions. Base every finding on code
you have actually read, cite exact file paths and line numbers from the
head revision, and never invent content.`
	switch s {
	case domain.StrictnessLenient:
		return base + `

Only report findings you are highly confident about. Prefer approving
when the change is reasonable; skip nitpicks entirely.`
	case domain.StrictnessStrict:
		return base + `

Be thorough. Report every defect you find, including minor ones, and
treat missing tests for changed behavior as a warning.`
	default:
		return base + `

Report defects that matter. Skip trivia, but do not let real problems
pass to keep the review short.`
	}
}

// outputContract is the fixed closing block describing the verdict rules
// and the envelope the parser accepts
const outputContract = `## Output format

When your investigation is complete, end your final message with exactly
one review block:

<review>
{
  "verdict": "approve" | "request_changes" | "comment",
  "summary": "one paragraph for the PR author",
  "findings": [
    {
      "skill": "which skill produced this",
      "severity": "critical" | "warning" | "suggestion" | "note",
      "path": "file path from the repository root",
      "line": 42,
      "end_line": 45,
      "title": "short imperative title",
      "body": "explanation with a concrete fix"
    }
  ]
}
</review>

Verdict rules: any critical finding means request_changes; any warning or
suggestion means comment; notes alone or no findings mean approve. The
findings array may be empty. Every finding needs a real path and line.`
