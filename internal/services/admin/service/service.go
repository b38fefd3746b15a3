// Package service implements the admin API over the repositories and
// reviews tables
package service

import (
	"context"

	"nitpick/internal/core/globmatch"
	"nitpick/internal/modkit/repokit"
	perr "nitpick/internal/platform/errors"
	"nitpick/internal/platform/logger"
	"nitpick/internal/services/admin/domain"
	"nitpick/internal/services/admin/repo"
	revdom "nitpick/internal/services/review/domain"
)

// Listing caps
const (
	defaultPageSize = 25
	maxPageSize     = 100
	maxIgnoreGlobs  = 50
	maxChecklist    = 20
	maxLineLength   = 500
)

// SettingsPatch carries the optional fields of a settings PATCH; nil
// means leave unchanged
type SettingsPatch struct {
	Strictness  *string   `json:"strictness" validate:"omitempty,oneof=lenient balanced strict"`
	IgnoreGlobs *[]string `json:"ignoreGlobs"`
	Checklist   *[]string `json:"checklist"`
}

// Service answers the admin HTTP surface
type Service struct {
	pg     repokit.TxRunner
	binder repokit.Binder[repo.Storage]
	log    logger.Logger
}

// New constructs the admin service
func New(pg repokit.TxRunner, binder repokit.Binder[repo.Storage]) *Service {
	return &Service{pg: pg, binder: binder, log: *logger.Named("admin")}
}

func (s *Service) store(ctx context.Context) repo.Storage {
	return s.binder.Bind(repokit.PG(ctx, s.pg))
}

// ClampPage normalizes user-supplied pagination
func ClampPage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

// ListRepos returns one page of registered repositories
func (s *Service) ListRepos(ctx context.Context, page, size int) ([]revdom.Repository, int, error) {
	page, size = ClampPage(page, size)
	return s.store(ctx).ListRepos(ctx, page, size)
}

// GetRepo returns one repository by full name
func (s *Service) GetRepo(ctx context.Context, fullName string) (revdom.Repository, error) {
	return s.store(ctx).GetRepo(ctx, fullName)
}

// PatchSettings merges the patch over the stored settings and persists
func (s *Service) PatchSettings(ctx context.Context, fullName string, patch SettingsPatch) (revdom.Repository, error) {
	st := s.store(ctx)
	current, err := st.GetRepo(ctx, fullName)
	if err != nil {
		return revdom.Repository{}, err
	}

	settings := current.Settings
	if patch.Strictness != nil {
		settings.Strictness = revdom.Strictness(*patch.Strictness)
	}
	if patch.IgnoreGlobs != nil {
		if err := checkGlobs(*patch.IgnoreGlobs); err != nil {
			return revdom.Repository{}, err
		}
		settings.IgnoreGlobs = *patch.IgnoreGlobs
	}
	if patch.Checklist != nil {
		if err := checkChecklist(*patch.Checklist); err != nil {
			return revdom.Repository{}, err
		}
		settings.Checklist = *patch.Checklist
	}

	updated, err := st.UpdateSettings(ctx, fullName, settings.Normalized())
	if err != nil {
		return revdom.Repository{}, err
	}
	s.log.Info().Str("repo", fullName).Msg("settings updated")
	return updated, nil
}

// SetEnabled toggles whether the gate accepts webhooks for the repo
func (s *Service) SetEnabled(ctx context.Context, fullName string, enabled bool) (revdom.Repository, error) {
	updated, err := s.store(ctx).SetEnabled(ctx, fullName, enabled)
	if err != nil {
		return revdom.Repository{}, err
	}
	s.log.Info().Str("repo", fullName).Bool("enabled", enabled).Msg("repo toggled")
	return updated, nil
}

// ListReviews returns one page of reviews, optionally filtered
func (s *Service) ListReviews(ctx context.Context, f domain.ReviewFilter) ([]domain.ReviewSummary, int, error) {
	f.Page, f.Size = ClampPage(f.Page, f.Size)
	return s.store(ctx).ListReviews(ctx, f)
}

// GetReview returns one review with findings
func (s *Service) GetReview(ctx context.Context, id int64) (domain.ReviewDetail, error) {
	return s.store(ctx).GetReview(ctx, id)
}

// GetTrace returns the full conversation trace for a review
func (s *Service) GetTrace(ctx context.Context, reviewID int64) ([]domain.TraceRow, error) {
	// 404 for unknown reviews instead of an empty trace
	if _, err := s.store(ctx).GetReview(ctx, reviewID); err != nil {
		return nil, err
	}
	return s.store(ctx).ListTrace(ctx, reviewID)
}

func checkGlobs(globs []string) error {
	if len(globs) > maxIgnoreGlobs {
		return perr.Validationf("at most %d ignore globs", maxIgnoreGlobs)
	}
	for _, g := range globs {
		if g == "" || len(g) > maxLineLength {
			return perr.Validationf("invalid ignore glob %q", g)
		}
		if _, err := globmatch.Compile(g); err != nil {
			return perr.Validationf("malformed ignore glob %q", g)
		}
	}
	return nil
}

func checkChecklist(lines []string) error {
	if len(lines) > maxChecklist {
		return perr.Validationf("at most %d checklist lines", maxChecklist)
	}
	for _, l := range lines {
		if l == "" || len(l) > maxLineLength {
			return perr.Validationf("invalid checklist line")
		}
	}
	return nil
}
