// Package repo provides Postgres reads and settings writes for the admin API
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"nitpick/internal/modkit/repokit"
	perr "nitpick/internal/platform/errors"
	"nitpick/internal/platform/store"
	"nitpick/internal/services/admin/domain"
	revdom "nitpick/internal/services/review/domain"
)

type binder struct{}

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the admin repository
type Storage interface {
	ListRepos(ctx context.Context, page, size int) ([]revdom.Repository, int, error)
	GetRepo(ctx context.Context, fullName string) (revdom.Repository, error)
	UpdateSettings(ctx context.Context, fullName string, settings revdom.RepoSettings) (revdom.Repository, error)
	SetEnabled(ctx context.Context, fullName string, enabled bool) (revdom.Repository, error)

	ListReviews(ctx context.Context, f domain.ReviewFilter) ([]domain.ReviewSummary, int, error)
	GetReview(ctx context.Context, id int64) (domain.ReviewDetail, error)
	ListTrace(ctx context.Context, reviewID int64) ([]domain.TraceRow, error)
}

type pg struct{ q repokit.Queryer }

const repoColumns = `id, full_name, installation_id, enabled, settings, created_at`

func (s *pg) ListRepos(ctx context.Context, page, size int) ([]revdom.Repository, int, error) {
	total, err := store.Scalar[int](ctx, s.q, `SELECT COUNT(*) FROM repositories`)
	if err != nil {
		return nil, 0, perr.FromPostgres(err, "repo count failed")
	}

	sql := `SELECT ` + repoColumns + ` FROM repositories ORDER BY full_name LIMIT $1 OFFSET $2`
	rows, err := s.q.Query(ctx, sql, size, (page-1)*size)
	if err != nil {
		return nil, 0, perr.FromPostgres(err, "repo list failed")
	}
	defer rows.Close()

	out := make([]revdom.Repository, 0, size)
	for rows.Next() {
		r, err := scanRepo(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func (s *pg) GetRepo(ctx context.Context, fullName string) (revdom.Repository, error) {
	sql := `SELECT ` + repoColumns + ` FROM repositories WHERE full_name = $1`
	return scanRepo(s.q.QueryRow(ctx, sql, fullName))
}

func (s *pg) UpdateSettings(ctx context.Context, fullName string, settings revdom.RepoSettings) (revdom.Repository, error) {
	blob, err := json.Marshal(settings)
	if err != nil {
		return revdom.Repository{}, perr.Wrapf(err, perr.ErrorCodeJSON, "settings marshal failed")
	}
	sql := `UPDATE repositories SET settings = $2 WHERE full_name = $1 RETURNING ` + repoColumns
	return scanRepo(s.q.QueryRow(ctx, sql, fullName, blob))
}

func (s *pg) SetEnabled(ctx context.Context, fullName string, enabled bool) (revdom.Repository, error) {
	sql := `UPDATE repositories SET enabled = $2 WHERE full_name = $1 RETURNING ` + repoColumns
	return scanRepo(s.q.QueryRow(ctx, sql, fullName, enabled))
}

func (s *pg) ListReviews(ctx context.Context, f domain.ReviewFilter) ([]domain.ReviewSummary, int, error) {
	var where []string
	var args []any
	arg := func(v any) string { args = append(args, v); return fmt.Sprintf("$%d", len(args)) }

	if f.RepoFullName != "" {
		where = append(where, "r.full_name = "+arg(f.RepoFullName))
	}
	if f.Status != "" {
		where = append(where, "v.status = "+arg(f.Status))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	base := ` FROM reviews v JOIN repositories r ON r.id = v.repo_id` + cond

	total, err := store.Scalar[int](ctx, s.q, `SELECT COUNT(*)`+base, args...)
	if err != nil {
		return nil, 0, perr.FromPostgres(err, "review count failed")
	}

	sql := `
		SELECT v.id, r.full_name, v.pr_number, v.pr_title, v.status,
			COALESCE(v.verdict, ''), v.files_changed, v.duration_ms, v.created_at` +
		base + `
		ORDER BY v.created_at DESC, v.id DESC
		LIMIT ` + arg(f.Size) + ` OFFSET ` + arg((f.Page-1)*f.Size)

	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, perr.FromPostgres(err, "review list failed")
	}
	defer rows.Close()

	out := make([]domain.ReviewSummary, 0, f.Size)
	for rows.Next() {
		var r domain.ReviewSummary
		if err := rows.Scan(&r.ID, &r.RepoFullName, &r.PRNumber, &r.PRTitle, &r.Status,
			&r.Verdict, &r.FilesChanged, &r.DurationMS, &r.CreatedAt); err != nil {
			return nil, 0, perr.FromPostgres(err, "review scan failed")
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func (s *pg) GetReview(ctx context.Context, id int64) (domain.ReviewDetail, error) {
	const sql = `
		SELECT v.id, r.full_name, v.pr_number, v.pr_title, v.status,
			COALESCE(v.verdict, ''), v.files_changed, v.duration_ms, v.created_at,
			v.pr_author, v.head_ref, v.base_ref, v.head_sha, v.base_sha,
			COALESCE(v.error, ''), COALESCE(v.summary, ''), v.findings,
			COALESCE(v.model, ''), v.input_tokens, v.output_tokens,
			v.setup_ms, v.sandbox_warm, v.additions, v.deletions,
			v.active_skills, COALESCE(v.prompt_hash, '')
		FROM reviews v JOIN repositories r ON r.id = v.repo_id
		WHERE v.id = $1
	`
	var d domain.ReviewDetail
	var findings []byte
	err := s.q.QueryRow(ctx, sql, id).Scan(
		&d.ID, &d.RepoFullName, &d.PRNumber, &d.PRTitle, &d.Status,
		&d.Verdict, &d.FilesChanged, &d.DurationMS, &d.CreatedAt,
		&d.PRAuthor, &d.HeadRef, &d.BaseRef, &d.HeadSha, &d.BaseSha,
		&d.Error, &d.Summary, &findings,
		&d.Model, &d.InputTokens, &d.OutputTokens,
		&d.SetupMS, &d.SandboxWarm, &d.Additions, &d.Deletions,
		&d.ActiveSkills, &d.PromptHash,
	)
	if err != nil {
		return domain.ReviewDetail{}, perr.FromPostgres(err, "review lookup failed")
	}
	if len(findings) > 0 {
		if err := json.Unmarshal(findings, &d.Findings); err != nil {
			return domain.ReviewDetail{}, perr.JSONErrf("findings corrupt: %v", err)
		}
	}
	return d, nil
}

func (s *pg) ListTrace(ctx context.Context, reviewID int64) ([]domain.TraceRow, error) {
	const sql = `
		SELECT turn_number, iteration, role, COALESCE(content, ''),
			COALESCE(tool_name, ''), COALESCE(tool_input, ''), COALESCE(tool_result, ''),
			COALESCE(input_tokens, 0), COALESCE(output_tokens, 0)
		FROM review_traces
		WHERE review_id = $1
		ORDER BY turn_number
	`
	rows, err := s.q.Query(ctx, sql, reviewID)
	if err != nil {
		return nil, perr.FromPostgres(err, "trace list failed")
	}
	defer rows.Close()

	var out []domain.TraceRow
	for rows.Next() {
		var t domain.TraceRow
		if err := rows.Scan(&t.TurnNumber, &t.Iteration, &t.Role, &t.Content,
			&t.ToolName, &t.ToolInput, &t.ToolResult, &t.InputTokens, &t.OutputTokens); err != nil {
			return nil, perr.FromPostgres(err, "trace scan failed")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanRepo(row repokit.Row) (revdom.Repository, error) {
	var r revdom.Repository
	var settings []byte
	if err := row.Scan(&r.ID, &r.FullName, &r.InstallationID, &r.Enabled, &settings, &r.CreatedAt); err != nil {
		return revdom.Repository{}, perr.FromPostgres(err, "repository lookup failed")
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &r.Settings); err != nil {
			return revdom.Repository{}, perr.JSONErrf("repository settings corrupt: %v", err)
		}
	}
	r.Settings = r.Settings.Normalized()
	return r, nil
}
