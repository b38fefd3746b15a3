// Package publish maps a finished review onto the forge's review API
package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nitpick/internal/adapters/github"
	"nitpick/internal/platform/logger"
	"nitpick/internal/platform/metrics"
	"nitpick/internal/services/review/domain"
)

// Publisher posts reviews back to the pull request
type Publisher struct {
	gh  *github.Client
	met *metrics.Set
	log logger.Logger
}

// New builds a Publisher over the forge client
func New(gh *github.Client, met *metrics.Set) *Publisher {
	return &Publisher{gh: gh, met: met, log: *logger.Named("publish")}
}

// Stats summarizes the run for the review body footer
type Stats struct {
	ActiveSkills []string
	Iterations   int
	InputTokens  int64
	OutputTokens int64
	Wall         time.Duration
}

// Publish posts the review anchored at the job's head commit
func (p *Publisher) Publish(ctx context.Context, job domain.Job, result domain.ReviewResult, stats Stats) error {
	rr := github.ReviewRequest{
		CommitID: job.HeadSha,
		Body:     summaryBody(result, stats),
		Event:    eventFor(result.Verdict),
		Comments: inlineComments(result.Findings),
	}
	if err := p.gh.PostReview(ctx, job.RepoFullName, job.PRNumber, job.InstallationID, rr); err != nil {
		if p.met != nil {
			p.met.PublishFailures.Inc()
		}
		return err
	}
	p.log.Info().
		Str("repo", job.RepoFullName).
		Int("pr", job.PRNumber).
		Str("verdict", string(result.Verdict)).
		Int("comments", len(rr.Comments)).
		Msg("review published")
	return nil
}

func eventFor(v domain.Verdict) string {
	switch v {
	case domain.VerdictApprove:
		return "APPROVE"
	case domain.VerdictRequestChanges:
		return "REQUEST_CHANGES"
	default:
		return "COMMENT"
	}
}

// inlineComments formats the findings that can anchor to a file and line
func inlineComments(findings []domain.Finding) []github.ReviewComment {
	var out []github.ReviewComment
	for _, f := range findings {
		if !f.InlineEligible() {
			continue
		}
		out = append(out, github.ReviewComment{
			Path: f.Path,
			Line: f.Line,
			Body: fmt.Sprintf("**[%s] %s** _(%s)_\n\n%s", strings.ToUpper(string(f.Severity)), f.Title, f.Skill, f.Body),
		})
	}
	return out
}

func summaryBody(result domain.ReviewResult, stats Stats) string {
	var b strings.Builder
	b.WriteString(result.Summary)
	b.WriteString("\n\n---\n\n")

	if len(stats.ActiveSkills) > 0 {
		fmt.Fprintf(&b, "**Checks run:** %s\n\n", strings.Join(stats.ActiveSkills, ", "))
	}

	counts := severityCounts(result.Findings)
	if len(result.Findings) > 0 {
		b.WriteString("**Findings:** ")
		var parts []string
		for _, sev := range []domain.Severity{domain.SeverityCritical, domain.SeverityWarning, domain.SeveritySuggestion, domain.SeverityNote} {
			if n := counts[sev]; n > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", n, sev))
			}
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n\n")
	} else {
		b.WriteString("**Findings:** none\n\n")
	}

	fmt.Fprintf(&b, "_%d iterations, %d input / %d output tokens, %s_",
		stats.Iterations, stats.InputTokens, stats.OutputTokens, stats.Wall.Round(time.Second))
	return b.String()
}

func severityCounts(findings []domain.Finding) map[domain.Severity]int {
	counts := map[domain.Severity]int{}
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}
