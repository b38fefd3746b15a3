package publish_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nitpick/internal/adapters/github"
	"nitpick/internal/platform/testkit"
	"nitpick/internal/services/review/domain"
	"nitpick/internal/services/review/publish"
)

func capture(t *testing.T, status int) (*publish.Publisher, *github.ReviewRequest, *string) {
	t.Helper()
	var rr github.ReviewRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&rr); err != nil {
			t.Errorf("decode review: %v", err)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	gh := github.NewClient(github.Options{BaseURL: srv.URL, MaxRetries: 1, RetryBase: time.Millisecond},
		github.StaticTokenSource("tok"))
	return publish.New(gh, nil), &rr, &path
}

func testJob() domain.Job {
	return domain.Job{
		RepoFullName:   "octo/hello",
		PRNumber:       9,
		HeadSha:        "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		InstallationID: 1,
	}
}

func TestPublishRequestShape(t *testing.T) {
	p, rr, path := capture(t, http.StatusOK)

	end := 14
	result := domain.ReviewResult{
		Verdict: domain.VerdictRequestChanges,
		Summary: "Two problems found.",
		Findings: []domain.Finding{
			{Skill: "correctness", Severity: domain.SeverityCritical, Path: "src/a.go", Line: 12, EndLine: &end, Title: "Nil deref", Body: "guard it"},
			{Skill: "tests", Severity: domain.SeverityWarning, Path: "", Line: 0, Title: "No tests", Body: "summary only"},
		},
	}
	stats := publish.Stats{
		ActiveSkills: []string{"correctness", "tests"},
		Iterations:   4,
		InputTokens:  1200,
		OutputTokens: 340,
		Wall:         92 * time.Second,
	}

	if err := p.Publish(context.Background(), testJob(), result, stats); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if *path != "/repos/octo/hello/pulls/9/reviews" {
		t.Fatalf("path %q", *path)
	}
	if rr.Event != "REQUEST_CHANGES" {
		t.Fatalf("event %q", rr.Event)
	}
	if rr.CommitID != testJob().HeadSha {
		t.Fatalf("commit id %q", rr.CommitID)
	}

	// only the anchorable finding becomes an inline comment
	if len(rr.Comments) != 1 {
		t.Fatalf("comments %d", len(rr.Comments))
	}
	c := rr.Comments[0]
	if c.Path != "src/a.go" || c.Line != 12 {
		t.Fatalf("comment anchor %+v", c)
	}
	if !strings.Contains(c.Body, "**[CRITICAL] Nil deref** _(correctness)_") {
		t.Fatalf("comment body %q", c.Body)
	}

	for _, frag := range []string{
		"Two problems found.",
		"**Checks run:** correctness, tests",
		"**Findings:** 1 critical, 1 warning",
		"4 iterations, 1200 input / 340 output tokens",
	} {
		testkit.MustContain(t, rr.Body, frag)
	}
}

func TestPublishApproveNoFindings(t *testing.T) {
	p, rr, _ := capture(t, http.StatusOK)

	result := domain.ReviewResult{Verdict: domain.VerdictApprove, Summary: "Clean."}
	if err := p.Publish(context.Background(), testJob(), result, publish.Stats{Iterations: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if rr.Event != "APPROVE" {
		t.Fatalf("event %q", rr.Event)
	}
	if len(rr.Comments) != 0 {
		t.Fatalf("comments %d", len(rr.Comments))
	}
	if !strings.Contains(rr.Body, "**Findings:** none") {
		t.Fatalf("body %q", rr.Body)
	}
}

func TestPublishUpstreamFailure(t *testing.T) {
	p, _, _ := capture(t, http.StatusUnprocessableEntity)

	err := p.Publish(context.Background(), testJob(), domain.ReviewResult{Verdict: domain.VerdictComment}, publish.Stats{})
	if err == nil {
		t.Fatal("expected failure")
	}
}
