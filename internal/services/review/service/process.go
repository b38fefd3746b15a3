package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"nitpick/internal/core/diffutil"
	"nitpick/internal/core/gitsafe"
	"nitpick/internal/services/review/agent"
	"nitpick/internal/services/review/domain"
	"nitpick/internal/services/review/publish"
	"nitpick/internal/services/review/sandbox"
	"nitpick/internal/services/review/skills"
	"nitpick/internal/services/review/tools"
)

// process runs the full review pipeline for one validated job. Any error
// return leaves the queue message pending so a transient failure can be
// retried; the caller decides when to dead-letter
func (w *Worker) process(ctx context.Context, job domain.Job) error {
	start := time.Now()

	repoRow, err := w.storage.EnsureRepository(ctx, job.RepoFullName, job.InstallationID)
	if err != nil {
		return err
	}

	token, err := w.tokens.Token(ctx, job.InstallationID)
	if err != nil {
		return err
	}

	sb := sandbox.New(w.exec, job.RepoFullName, w.cfg.SandboxRoot)
	setup, err := sb.Setup(ctx, job.CloneURL, job.HeadRef, job.HeadSha, token)
	if err != nil {
		return err
	}

	diff, err := w.gh.FetchDiff(ctx, job.RepoFullName, job.PRNumber, job.InstallationID)
	if err != nil {
		return err
	}
	changed := diffutil.ExtractChangedFiles(diff)
	additions, deletions := diffutil.Stats(diff)

	comp := skills.Compose(job, changed, repoRow.Settings)

	surface := tools.New(sb, w.vulnDB)
	ag := agent.New(w.model, surface, w.met, w.cfg.ModelName)
	out, err := ag.Run(ctx, job, diff, comp)
	if err != nil {
		return err
	}

	wall := time.Since(start)
	pub := publish.New(w.gh, w.met)
	if err := pub.Publish(ctx, job, out.Result, publish.Stats{
		ActiveSkills: comp.ActiveSkillNames,
		Iterations:   out.Iterations,
		InputTokens:  out.InputTokens,
		OutputTokens: out.OutputTokens,
		Wall:         wall,
	}); err != nil {
		return err
	}

	rec := domain.ReviewRecord{
		RepoID:       repoRow.ID,
		PRNumber:     job.PRNumber,
		PRTitle:      job.PRTitle,
		PRBody:       job.Body(),
		PRAuthor:     job.PRAuthor,
		HeadRef:      job.HeadRef,
		BaseRef:      job.BaseRef,
		HeadSha:      job.HeadSha,
		BaseSha:      job.BaseSha,
		Status:       domain.ReviewCompleted,
		Verdict:      out.Result.Verdict,
		Summary:      out.Result.Summary,
		Findings:     out.Result.Findings,
		Model:        ag.Model(),
		InputTokens:  out.InputTokens,
		OutputTokens: out.OutputTokens,
		DurationMS:   wall.Milliseconds(),
		SetupMS:      setup.Duration.Milliseconds(),
		SandboxWarm:  !setup.Cloned,
		FilesChanged: len(changed),
		Additions:    additions,
		Deletions:    deletions,
		ActiveSkills: comp.ActiveSkillNames,
		DiffText:     gitsafe.Scrub(diff),
		PromptHash:   promptHash(comp.SystemPrompt),
	}

	reviewID, err := w.storage.InsertReview(ctx, rec)
	if err != nil {
		return err
	}
	if err := w.storage.InsertTraces(ctx, reviewID, out.Trace); err != nil {
		return err
	}

	if w.met != nil {
		w.met.ReviewDuration.Observe(wall.Seconds())
		w.met.AgentTurns.Observe(float64(out.Iterations))
	}
	w.log.Info().
		Str("repo", job.RepoFullName).
		Int("pr", job.PRNumber).
		Str("verdict", string(out.Result.Verdict)).
		Int("findings", len(out.Result.Findings)).
		Int("iterations", out.Iterations).
		Dur("elapsed", wall).
		Msg("review completed")
	return nil
}

func promptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
