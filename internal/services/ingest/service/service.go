// Package service implements the ingestion gate: signature verification,
// event filtering, the dedup/rate-limit decision, and the enqueue
package service

import (
	"context"
	"encoding/json"
	"time"

	"nitpick/internal/adapters/github"
	"nitpick/internal/adapters/queue"
	"nitpick/internal/modkit/repokit"
	perr "nitpick/internal/platform/errors"
	"nitpick/internal/platform/logger"
	"nitpick/internal/platform/metrics"
	"nitpick/internal/services/ingest/domain"
	"nitpick/internal/services/ingest/repo"
	revdom "nitpick/internal/services/review/domain"
)

// Config tunes the gate
type Config struct {
	WebhookSecret string
	MaxPerHour    int
	RateWindow    time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxPerHour <= 0 {
		c.MaxPerHour = 50
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Hour
	}
	return c
}

// Service implements domain.GatePort, domain.WebhookPort, and
// domain.LedgerPort
type Service struct {
	cfg     Config
	pg      repokit.TxRunner
	binder  repokit.Binder[repo.Storage]
	queue   *queue.Queue
	met     *metrics.Set
	log     logger.Logger
	nowFunc func() time.Time
}

// New constructs the gate service
func New(pg repokit.TxRunner, binder repokit.Binder[repo.Storage], q *queue.Queue, met *metrics.Set, cfg Config) *Service {
	return &Service{
		cfg:     cfg.withDefaults(),
		pg:      pg,
		binder:  binder,
		queue:   q,
		met:     met,
		log:     *logger.Named("ingest"),
		nowFunc: time.Now,
	}
}

func (s *Service) store(ctx context.Context) repo.Storage {
	return s.binder.Bind(repokit.PG(ctx, s.pg))
}

// TryEnqueue runs the gate decision. Insert-then-count makes the hourly
// quota self-inclusive; strictly-greater means exactly MaxPerHour passes
func (s *Service) TryEnqueue(ctx context.Context, repoFullName string, prNumber int, headSha string) (domain.Decision, error) {
	st := s.store(ctx)

	enabled, found, err := st.RepoEnabled(ctx, repoFullName)
	if err != nil {
		return domain.Decision{}, err
	}
	if found && !enabled {
		return domain.Decision{Reason: domain.ReasonRepoDisabled}, nil
	}

	if err := st.InsertDedup(ctx, repoFullName, prNumber, headSha); err != nil {
		if perr.CodeOf(err) == perr.ErrorCodeConflict {
			return domain.Decision{Reason: domain.ReasonDuplicateSha}, nil
		}
		return domain.Decision{}, err
	}

	recent, err := st.CountRecent(ctx, repoFullName, s.cfg.RateWindow)
	if err != nil {
		return domain.Decision{}, err
	}
	if recent > s.cfg.MaxPerHour {
		if err := st.MarkFailed(ctx, repoFullName, prNumber, headSha); err != nil {
			s.log.Warn().Err(err).Str("repo", repoFullName).Msg("mark rate-limited row failed")
		}
		return domain.Decision{Reason: domain.ReasonRateLimited}, nil
	}

	demoted, err := st.SupersedeOthers(ctx, repoFullName, prNumber, headSha)
	if err != nil {
		return domain.Decision{}, err
	}
	if demoted > 0 {
		s.log.Info().Str("repo", repoFullName).Int("pr", prNumber).Int64("superseded", demoted).Msg("older shas superseded")
	}

	return domain.Decision{Allowed: true}, nil
}

// HandleWebhook settles one delivery. The raw body must be the exact
// signed bytes; parsing happens only after verification
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature, event string) (domain.WebhookOutcome, error) {
	if err := github.VerifySignature(body, signature, s.cfg.WebhookSecret); err != nil {
		s.countWebhook("unauthorized")
		return domain.WebhookOutcome{}, err
	}

	if event != "pull_request" {
		s.countWebhook("ignored_event")
		return domain.WebhookOutcome{Status: domain.WebhookIgnored, Detail: "event " + event}, nil
	}

	var ev github.PullRequestEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		s.countWebhook("malformed")
		return domain.WebhookOutcome{}, perr.JSONErrf("webhook body invalid: %v", err)
	}

	if ev.Action != "opened" && ev.Action != "synchronize" {
		s.countWebhook("ignored_action")
		return domain.WebhookOutcome{Status: domain.WebhookIgnored, Detail: "action " + ev.Action}, nil
	}
	if ev.PullRequest.Draft {
		s.countWebhook("ignored_draft")
		return domain.WebhookOutcome{Status: domain.WebhookIgnored, Detail: "draft pull request"}, nil
	}
	if ev.Installation == nil || ev.Installation.ID == 0 {
		s.countWebhook("malformed")
		return domain.WebhookOutcome{}, perr.InvalidArgf("missing installation id")
	}

	st := s.store(ctx)
	if err := st.UpsertInstallation(ctx, ev.Installation.ID); err != nil {
		return domain.WebhookOutcome{}, err
	}
	if err := st.UpsertRepository(ctx, ev.Repository.FullName, ev.Installation.ID); err != nil {
		return domain.WebhookOutcome{}, err
	}

	decision, err := s.TryEnqueue(ctx, ev.Repository.FullName, ev.PullRequest.Number, ev.PullRequest.Head.Sha)
	if err != nil {
		return domain.WebhookOutcome{}, err
	}
	outcome := domain.WebhookOutcome{
		RepoFullName: ev.Repository.FullName,
		PRNumber:     ev.PullRequest.Number,
		HeadSha:      ev.PullRequest.Head.Sha,
	}
	if !decision.Allowed {
		outcome.Status = domain.WebhookDenied
		outcome.Reason = decision.Reason
		s.countWebhook(string(decision.Reason))
		return outcome, nil
	}

	job := revdom.Job{
		PRNumber:       ev.PullRequest.Number,
		PRTitle:        ev.PullRequest.Title,
		PRBody:         ev.PullRequest.Body,
		RepoFullName:   ev.Repository.FullName,
		CloneURL:       ev.Repository.CloneURL,
		HeadRef:        ev.PullRequest.Head.Ref,
		HeadSha:        ev.PullRequest.Head.Sha,
		BaseRef:        ev.PullRequest.Base.Ref,
		BaseSha:        ev.PullRequest.Base.Sha,
		PRAuthor:       ev.PullRequest.User.Login,
		InstallationID: ev.Installation.ID,
		EnqueuedAt:     s.nowFunc().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return domain.WebhookOutcome{}, perr.Wrapf(err, perr.ErrorCodeJSON, "job marshal failed")
	}
	if err := s.queue.Send(ctx, payload); err != nil {
		return domain.WebhookOutcome{}, err
	}

	if s.met != nil {
		s.met.JobsEnqueued.Inc()
	}
	s.countWebhook("enqueued")
	s.log.Info().
		Str("repo", job.RepoFullName).
		Int("pr", job.PRNumber).
		Str("sha", job.HeadSha).
		Str("action", ev.Action).
		Msg("job enqueued")

	outcome.Status = domain.WebhookEnqueued
	return outcome, nil
}

// Ledger surface consumed by the review worker

// IsSuperseded implements domain.LedgerPort
func (s *Service) IsSuperseded(ctx context.Context, repoFullName string, prNumber int, headSha string) (bool, error) {
	return s.store(ctx).IsSuperseded(ctx, repoFullName, prNumber, headSha)
}

// MarkProcessing implements domain.LedgerPort
func (s *Service) MarkProcessing(ctx context.Context, repoFullName string, prNumber int, headSha string) error {
	return s.store(ctx).MarkProcessing(ctx, repoFullName, prNumber, headSha)
}

// MarkDone implements domain.LedgerPort
func (s *Service) MarkDone(ctx context.Context, repoFullName string, prNumber int, headSha string, failed bool) error {
	return s.store(ctx).MarkDone(ctx, repoFullName, prNumber, headSha, failed)
}

func (s *Service) countWebhook(outcome string) {
	if s.met == nil {
		return
	}
	s.met.WebhooksReceived.WithLabelValues(outcome).Inc()
}
