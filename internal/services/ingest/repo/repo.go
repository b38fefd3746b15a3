// Package repo provides Postgres persistence for the ingestion gate's
// dedup ledger and the installation/repository upserts
package repo

import (
	"context"
	"time"

	"nitpick/internal/modkit/repokit"
	perr "nitpick/internal/platform/errors"
	"nitpick/internal/platform/store"
)

type binder struct{}

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Job-dedup ledger statuses
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusSuperseded = "superseded"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Storage defines the gate repository
type Storage interface {
	RepoEnabled(ctx context.Context, fullName string) (enabled, found bool, err error)
	UpsertInstallation(ctx context.Context, externalID int64) error
	UpsertRepository(ctx context.Context, fullName string, installationID int64) error

	InsertDedup(ctx context.Context, repoFullName string, prNumber int, headSha string) error
	CountRecent(ctx context.Context, repoFullName string, window time.Duration) (int, error)
	MarkFailed(ctx context.Context, repoFullName string, prNumber int, headSha string) error
	SupersedeOthers(ctx context.Context, repoFullName string, prNumber int, keepSha string) (int64, error)

	IsSuperseded(ctx context.Context, repoFullName string, prNumber int, headSha string) (bool, error)
	MarkProcessing(ctx context.Context, repoFullName string, prNumber int, headSha string) error
	MarkDone(ctx context.Context, repoFullName string, prNumber int, headSha string, failed bool) error
}

type pg struct{ q repokit.Queryer }

func (s *pg) RepoEnabled(ctx context.Context, fullName string) (bool, bool, error) {
	var enabled bool
	err := s.q.QueryRow(ctx, `SELECT enabled FROM repositories WHERE full_name = $1`, fullName).Scan(&enabled)
	if err != nil {
		if perr.IsNotFound(perr.FromPostgres(err, "")) {
			return false, false, nil
		}
		return false, false, perr.FromPostgres(err, "repo enabled lookup failed")
	}
	return enabled, true, nil
}

func (s *pg) UpsertInstallation(ctx context.Context, externalID int64) error {
	const sql = `
		INSERT INTO installations (external_id, status)
		VALUES ($1, 'active')
		ON CONFLICT (external_id) DO NOTHING
	`
	if _, err := store.Exec(ctx, s.q, sql, externalID); err != nil {
		return perr.FromPostgres(err, "installation upsert failed")
	}
	return nil
}

func (s *pg) UpsertRepository(ctx context.Context, fullName string, installationID int64) error {
	const sql = `
		INSERT INTO repositories (full_name, installation_id, enabled, settings)
		VALUES ($1, $2, TRUE, '{"strictness":"balanced"}'::jsonb)
		ON CONFLICT (full_name) DO NOTHING
	`
	if _, err := store.Exec(ctx, s.q, sql, fullName, installationID); err != nil {
		return perr.FromPostgres(err, "repository upsert failed")
	}
	return nil
}

// InsertDedup claims the (repo, pr, sha) slot; a unique violation is
// surfaced as a conflict error the gate maps to duplicate_sha
func (s *pg) InsertDedup(ctx context.Context, repoFullName string, prNumber int, headSha string) error {
	const sql = `
		INSERT INTO review_jobs (repo_full_name, pr_number, head_sha, status)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := store.Exec(ctx, s.q, sql, repoFullName, prNumber, headSha, StatusQueued); err != nil {
		if perr.IsDuplicateKey(err) {
			return perr.Conflictf("dedup row exists for %s#%d@%s", repoFullName, prNumber, headSha)
		}
		return perr.FromPostgres(err, "dedup insert failed")
	}
	return nil
}

func (s *pg) CountRecent(ctx context.Context, repoFullName string, window time.Duration) (int, error) {
	const sql = `
		SELECT COUNT(*) FROM review_jobs
		WHERE repo_full_name = $1 AND created_at > now() - $2::interval
	`
	n, err := store.Scalar[int](ctx, s.q, sql, repoFullName, window.String())
	if err != nil {
		return 0, perr.FromPostgres(err, "recent count failed")
	}
	return n, nil
}

func (s *pg) MarkFailed(ctx context.Context, repoFullName string, prNumber int, headSha string) error {
	return s.setStatus(ctx, repoFullName, prNumber, headSha, StatusFailed)
}

// SupersedeOthers demotes still-queued rows for the same PR with a
// different sha; the returned count is how many were demoted
func (s *pg) SupersedeOthers(ctx context.Context, repoFullName string, prNumber int, keepSha string) (int64, error) {
	const sql = `
		UPDATE review_jobs SET status = $4
		WHERE repo_full_name = $1 AND pr_number = $2 AND head_sha <> $3 AND status = $5
	`
	tag, err := store.Exec(ctx, s.q, sql, repoFullName, prNumber, keepSha, StatusSuperseded, StatusQueued)
	if err != nil {
		return 0, perr.FromPostgres(err, "supersede failed")
	}
	return tag.RowsAffected(), nil
}

// IsSuperseded returns false for absent rows: jobs that predate the
// ledger must not be blocked
func (s *pg) IsSuperseded(ctx context.Context, repoFullName string, prNumber int, headSha string) (bool, error) {
	const sql = `
		SELECT status FROM review_jobs
		WHERE repo_full_name = $1 AND pr_number = $2 AND head_sha = $3
	`
	var status string
	err := s.q.QueryRow(ctx, sql, repoFullName, prNumber, headSha).Scan(&status)
	if err != nil {
		if perr.IsNotFound(perr.FromPostgres(err, "")) {
			return false, nil
		}
		return false, perr.FromPostgres(err, "supersession lookup failed")
	}
	return status == StatusSuperseded, nil
}

func (s *pg) MarkProcessing(ctx context.Context, repoFullName string, prNumber int, headSha string) error {
	return s.setStatus(ctx, repoFullName, prNumber, headSha, StatusProcessing)
}

func (s *pg) MarkDone(ctx context.Context, repoFullName string, prNumber int, headSha string, failed bool) error {
	status := StatusDone
	if failed {
		status = StatusFailed
	}
	return s.setStatus(ctx, repoFullName, prNumber, headSha, status)
}

func (s *pg) setStatus(ctx context.Context, repoFullName string, prNumber int, headSha, status string) error {
	const sql = `
		UPDATE review_jobs SET status = $4
		WHERE repo_full_name = $1 AND pr_number = $2 AND head_sha = $3
	`
	if _, err := store.Exec(ctx, s.q, sql, repoFullName, prNumber, headSha, status); err != nil {
		return perr.FromPostgres(err, "ledger status update failed")
	}
	return nil
}
