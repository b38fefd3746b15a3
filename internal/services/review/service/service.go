// Package service runs the review worker: it drains the job queue and
// drives each job through sandbox setup, the agent loop, publishing, and
// persistence
package service

import (
	"context"
	"sync"
	"time"

	"nitpick/internal/adapters/anthropic"
	"nitpick/internal/adapters/github"
	"nitpick/internal/adapters/osv"
	"nitpick/internal/adapters/queue"
	sbx "nitpick/internal/adapters/sandbox"
	perr "nitpick/internal/platform/errors"
	"nitpick/internal/platform/logger"
	"nitpick/internal/platform/metrics"
	"nitpick/internal/services/review/domain"
	"nitpick/internal/services/review/repo"
)

// Ledger is the slice of the ingestion gate's dedup ledger the worker
// needs at job entry and exit
type Ledger interface {
	IsSuperseded(ctx context.Context, repoFullName string, prNumber int, headSha string) (bool, error)
	MarkProcessing(ctx context.Context, repoFullName string, prNumber int, headSha string) error
	MarkDone(ctx context.Context, repoFullName string, prNumber int, headSha string, failed bool) error
}

// Config tunes the worker loop
type Config struct {
	Concurrency   int
	BatchSize     int
	Block         time.Duration
	MaxDeliveries int64
	SandboxRoot   string
	ModelName     string
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.BatchSize <= 0 {
		c.BatchSize = c.Concurrency
	}
	if c.Block <= 0 {
		c.Block = 5 * time.Second
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = 5
	}
	if c.SandboxRoot == "" {
		c.SandboxRoot = "/workspaces"
	}
	return c
}

// Worker consumes review jobs until its context ends
type Worker struct {
	cfg     Config
	queue   *queue.Queue
	ledger  Ledger
	storage repo.Storage
	gh      *github.Client
	tokens  github.TokenSource
	exec    sbx.Executor
	model   anthropic.ModelClient
	vulnDB  *osv.Client
	met     *metrics.Set
	log     logger.Logger
}

// New wires a Worker; vulnDB may be nil
func New(
	cfg Config,
	q *queue.Queue,
	ledger Ledger,
	storage repo.Storage,
	gh *github.Client,
	tokens github.TokenSource,
	exec sbx.Executor,
	model anthropic.ModelClient,
	vulnDB *osv.Client,
	met *metrics.Set,
) *Worker {
	return &Worker{
		cfg:     cfg.withDefaults(),
		queue:   q,
		ledger:  ledger,
		storage: storage,
		gh:      gh,
		tokens:  tokens,
		exec:    exec,
		model:   model,
		vulnDB:  vulnDB,
		met:     met,
		log:     *logger.Named("review.worker"),
	}
}

// Run consumes the queue until ctx is done. Jobs in a batch run
// concurrently up to cfg.Concurrency
func (w *Worker) Run(ctx context.Context) error {
	if err := w.queue.EnsureGroup(ctx); err != nil {
		return err
	}
	w.log.Info().Int("concurrency", w.cfg.Concurrency).Msg("worker started")

	sem := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			w.log.Info().Msg("worker stopped")
			return nil
		default:
		}

		msgs, err := w.queue.Receive(ctx, w.cfg.BatchSize, w.cfg.Block)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("queue receive failed")
			sleepCtx(ctx, 2*time.Second)
			continue
		}

		for _, msg := range msgs {
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer func() { <-sem; wg.Done() }()
				w.handle(ctx, msg)
			}()
		}
	}
}

// handle settles one queue message: ack on success, poison, supersession,
// or dead-letter; leave pending for redelivery on a retryable failure
func (w *Worker) handle(ctx context.Context, msg queue.Message) {
	job, err := domain.ParseJob(msg.Payload)
	if err != nil {
		// poison: retrying cannot make the payload valid
		w.log.Warn().Err(err).Str("msg_id", msg.ID).Msg("dropping malformed job")
		w.ack(ctx, msg.ID)
		w.countJob("poison")
		return
	}

	jlog := w.log.With().
		Str("repo", job.RepoFullName).
		Int("pr", job.PRNumber).
		Str("sha", job.HeadSha).
		Logger()

	if superseded, err := w.ledger.IsSuperseded(ctx, job.RepoFullName, job.PRNumber, job.HeadSha); err != nil {
		jlog.Warn().Err(err).Msg("supersession check failed, proceeding")
	} else if superseded {
		jlog.Info().Msg("skipping superseded job")
		w.ack(ctx, msg.ID)
		w.countJob("superseded")
		return
	}

	if err := w.ledger.MarkProcessing(ctx, job.RepoFullName, job.PRNumber, job.HeadSha); err != nil {
		jlog.Warn().Err(err).Msg("mark processing failed")
	}

	runErr := w.process(ctx, job)
	if runErr == nil {
		w.markDone(ctx, job, false)
		w.ack(ctx, msg.ID)
		w.countJob("completed")
		return
	}

	deliveries, derr := w.queue.Deliveries(ctx, msg.ID)
	if derr != nil {
		deliveries = w.cfg.MaxDeliveries // cannot tell, do not loop forever
	}
	if perr.Retryable(runErr) && deliveries < w.cfg.MaxDeliveries {
		jlog.Warn().Err(runErr).Int64("deliveries", deliveries).Msg("job failed, leaving for redelivery")
		return
	}

	jlog.Error().Err(runErr).Int64("deliveries", deliveries).Msg("job dead-lettered")
	w.recordFailure(ctx, job, runErr)
	w.markDone(ctx, job, true)
	w.ack(ctx, msg.ID)
	w.countJob("failed")
}

// recordFailure persists a failed review row so the dead-letter is visible
// in the admin API, not only in logs
func (w *Worker) recordFailure(ctx context.Context, job domain.Job, cause error) {
	repoRow, err := w.storage.EnsureRepository(ctx, job.RepoFullName, job.InstallationID)
	if err != nil {
		w.log.Error().Err(err).Str("repo", job.RepoFullName).Msg("cannot record failed review")
		return
	}
	rec := domain.ReviewRecord{
		RepoID:   repoRow.ID,
		PRNumber: job.PRNumber,
		PRTitle:  job.PRTitle,
		PRBody:   job.Body(),
		PRAuthor: job.PRAuthor,
		HeadRef:  job.HeadRef,
		BaseRef:  job.BaseRef,
		HeadSha:  job.HeadSha,
		BaseSha:  job.BaseSha,
		Status:   domain.ReviewFailed,
		Error:    cause.Error(),
	}
	if _, err := w.storage.InsertReview(ctx, rec); err != nil {
		w.log.Error().Err(err).Str("repo", job.RepoFullName).Msg("failed review insert failed")
	}
}

func (w *Worker) markDone(ctx context.Context, job domain.Job, failed bool) {
	if err := w.ledger.MarkDone(ctx, job.RepoFullName, job.PRNumber, job.HeadSha, failed); err != nil {
		w.log.Warn().Err(err).Str("repo", job.RepoFullName).Msg("mark done failed")
	}
}

func (w *Worker) ack(ctx context.Context, id string) {
	if err := w.queue.Ack(ctx, id); err != nil {
		w.log.Warn().Err(err).Str("msg_id", id).Msg("ack failed")
	}
}

func (w *Worker) countJob(status string) {
	if w.met == nil {
		return
	}
	w.met.JobsCompleted.WithLabelValues(status).Inc()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
