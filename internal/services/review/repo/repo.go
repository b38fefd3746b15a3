// Package repo provides Postgres persistence for finished reviews
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"nitpick/internal/modkit/repokit"
	perr "nitpick/internal/platform/errors"
	"nitpick/internal/platform/store"
	"nitpick/internal/services/review/domain"
)

type binder struct{}

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the review repository
type Storage interface {
	EnsureRepository(ctx context.Context, fullName string, installationID int64) (domain.Repository, error)
	InsertReview(ctx context.Context, rec domain.ReviewRecord) (int64, error)
	InsertTraces(ctx context.Context, reviewID int64, turns []domain.TraceTurn) error
}

type pg struct{ q repokit.Queryer }

// EnsureRepository returns the repository row for fullName, creating a
// default-settings row on first sight
func (s *pg) EnsureRepository(ctx context.Context, fullName string, installationID int64) (domain.Repository, error) {
	const sql = `
		INSERT INTO repositories (full_name, installation_id, enabled, settings)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (full_name) DO UPDATE SET full_name = EXCLUDED.full_name
		RETURNING id, full_name, installation_id, enabled, settings, created_at
	`
	defaults, err := json.Marshal(domain.DefaultSettings())
	if err != nil {
		return domain.Repository{}, perr.Wrapf(err, perr.ErrorCodeJSON, "settings marshal failed")
	}
	return scanRepository(s.q.QueryRow(ctx, sql, fullName, installationID, defaults))
}

// InsertReview writes one terminal review row and returns its id
func (s *pg) InsertReview(ctx context.Context, rec domain.ReviewRecord) (int64, error) {
	const sql = `
		INSERT INTO reviews (
			repo_id, pr_number, pr_title, pr_body, pr_author,
			head_ref, base_ref, head_sha, base_sha,
			status, error, verdict, summary, findings,
			model, input_tokens, output_tokens,
			duration_ms, setup_ms, sandbox_warm,
			files_changed, additions, deletions,
			active_skills, diff_text, prompt_hash
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14,
			$15, $16, $17,
			$18, $19, $20,
			$21, $22, $23,
			$24, $25, $26
		)
		RETURNING id
	`
	findings, err := json.Marshal(rec.Findings)
	if err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeJSON, "findings marshal failed")
	}
	var id int64
	err = s.q.QueryRow(ctx, sql,
		rec.RepoID, rec.PRNumber, rec.PRTitle, rec.PRBody, rec.PRAuthor,
		rec.HeadRef, rec.BaseRef, rec.HeadSha, rec.BaseSha,
		string(rec.Status), nullable(rec.Error), string(rec.Verdict), rec.Summary, findings,
		rec.Model, rec.InputTokens, rec.OutputTokens,
		rec.DurationMS, rec.SetupMS, rec.SandboxWarm,
		rec.FilesChanged, rec.Additions, rec.Deletions,
		rec.ActiveSkills, rec.DiffText, rec.PromptHash,
	).Scan(&id)
	if err != nil {
		return 0, perr.FromPostgres(err, "insert review failed")
	}
	return id, nil
}

// InsertTraces writes all turns of one review in a single statement
func (s *pg) InsertTraces(ctx context.Context, reviewID int64, turns []domain.TraceTurn) error {
	if len(turns) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO review_traces (
			review_id, turn_number, iteration, role, content,
			tool_name, tool_input, tool_result, input_tokens, output_tokens
		) VALUES `)

	args := make([]any, 0, len(turns)*10)
	arg := func(v any) string { args = append(args, v); return fmt.Sprintf("$%d", len(args)) }
	for i, t := range turns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(" + strings.Join([]string{
			arg(reviewID), arg(t.TurnNumber), arg(t.Iteration), arg(t.Role), arg(t.Content),
			arg(nullable(t.ToolName)), arg(nullable(t.ToolInput)), arg(nullable(t.ToolResult)),
			arg(t.InputTokens), arg(t.OutputTokens),
		}, ", ") + ")")
	}

	if _, err := store.Exec(ctx, s.q, sb.String(), args...); err != nil {
		return perr.FromPostgres(err, "insert traces failed")
	}
	return nil
}

func scanRepository(row repokit.Row) (domain.Repository, error) {
	var r domain.Repository
	var settings []byte
	if err := row.Scan(&r.ID, &r.FullName, &r.InstallationID, &r.Enabled, &settings, &r.CreatedAt); err != nil {
		return domain.Repository{}, perr.FromPostgres(err, "repository lookup failed")
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &r.Settings); err != nil {
			return domain.Repository{}, perr.JSONErrf("repository settings corrupt: %v", err)
		}
	}
	r.Settings = r.Settings.Normalized()
	return r, nil
}

// nullable maps "" to SQL NULL
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
