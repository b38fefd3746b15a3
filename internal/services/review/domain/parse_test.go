package domain_test

import (
	"testing"

	"nitpick/internal/services/review/domain"
)

func TestComputeVerdict(t *testing.T) {
	f := func(sevs ...domain.Severity) []domain.Finding {
		out := make([]domain.Finding, len(sevs))
		for i, s := range sevs {
			out[i] = domain.Finding{Severity: s, Path: "a.go", Line: 1}
		}
		return out
	}

	cases := []struct {
		name     string
		findings []domain.Finding
		want     domain.Verdict
	}{
		{"empty", nil, domain.VerdictApprove},
		{"notes only", f(domain.SeverityNote, domain.SeverityNote), domain.VerdictApprove},
		{"suggestion", f(domain.SeveritySuggestion), domain.VerdictComment},
		{"warning", f(domain.SeverityWarning, domain.SeverityNote), domain.VerdictComment},
		{"critical wins", f(domain.SeverityWarning, domain.SeverityCritical), domain.VerdictRequestChanges},
		{"critical alone", f(domain.SeverityCritical), domain.VerdictRequestChanges},
	}
	for _, c := range cases {
		if got := domain.ComputeVerdict(c.findings); got != c.want {
			t.Fatalf("%s: got %q want %q", c.name, got, c.want)
		}
	}
}

func TestParseReviewHappyPath(t *testing.T) {
	text := `Investigation done.
<review>
{"verdict":"comment","summary":"looks mostly fine",
 "findings":[{"skill":"correctness","severity":"warning","path":"src/a.go","line":12,"end_line":14,"title":"Nil deref","body":"guard it"}]}
</review>`

	res, ok := domain.ParseReview(text)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if res.Verdict != domain.VerdictComment {
		t.Fatalf("verdict %q", res.Verdict)
	}
	if len(res.Findings) != 1 {
		t.Fatalf("findings %d", len(res.Findings))
	}
	f := res.Findings[0]
	if f.Path != "src/a.go" || f.Line != 12 || f.EndLine == nil || *f.EndLine != 14 {
		t.Fatalf("finding %+v", f)
	}
}

func TestParseReviewStripsFence(t *testing.T) {
	text := "<review>\n```json\n{\"verdict\":\"approve\",\"summary\":\"ok\"}\n```\n</review>"
	res, ok := domain.ParseReview(text)
	if !ok || res.Verdict != domain.VerdictApprove {
		t.Fatalf("ok=%v res=%+v", ok, res)
	}
}

func TestParseReviewRecomputesVerdict(t *testing.T) {
	// the model claims approve but ships a critical finding
	text := `<review>{"verdict":"approve","summary":"s",
		"findings":[{"path":"a.go","line":1,"severity":"critical"}]}</review>`
	res, ok := domain.ParseReview(text)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if res.Verdict != domain.VerdictRequestChanges {
		t.Fatalf("verdict %q, law not applied", res.Verdict)
	}
}

func TestParseReviewRejects(t *testing.T) {
	cases := []struct {
		name, text string
	}{
		{"no block", "plain text, no review"},
		{"bad json", "<review>{nope}</review>"},
		{"bad verdict", `<review>{"verdict":"maybe","summary":"s"}</review>`},
	}
	for _, c := range cases {
		if _, ok := domain.ParseReview(c.text); ok {
			t.Fatalf("%s: expected rejection", c.name)
		}
	}
}

func TestParseReviewFindingCoercion(t *testing.T) {
	text := `<review>{"verdict":"comment","summary":"s","findings":[
		{"path":"a.go","line":3},
		{"path":"","line":1,"title":"dropped, empty path"},
		{"line":9,"title":"dropped, no path"},
		{"path":"b.go","line":0,"title":"dropped, bad line"},
		{"path":"c.go","line":2,"severity":"blocker","end_line":1}
	]}</review>`
	res, ok := domain.ParseReview(text)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if len(res.Findings) != 2 {
		t.Fatalf("kept %d findings, want 2", len(res.Findings))
	}

	first := res.Findings[0]
	if first.Skill != "unknown" || first.Severity != domain.SeveritySuggestion || first.Title != "Finding" {
		t.Fatalf("defaults not applied: %+v", first)
	}

	second := res.Findings[1]
	if second.Severity != domain.SeveritySuggestion {
		t.Fatalf("unknown severity must coerce to suggestion, got %q", second.Severity)
	}
	if second.EndLine != nil {
		t.Fatal("end_line before line must be dropped")
	}
}

func TestFindingInlineEligible(t *testing.T) {
	if !(domain.Finding{Path: "a.go", Line: 1}).InlineEligible() {
		t.Fatal("expected eligible")
	}
	if (domain.Finding{Path: "", Line: 1}).InlineEligible() {
		t.Fatal("pathless must not be eligible")
	}
	if (domain.Finding{Path: "a.go", Line: 0}).InlineEligible() {
		t.Fatal("lineless must not be eligible")
	}
}
