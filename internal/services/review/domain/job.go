// Package domain holds the review service's core types: the queue job
// contract, findings, verdict law, and the model output parser
package domain

import (
	"encoding/json"
	"time"

	perr "nitpick/internal/platform/errors"
	"nitpick/internal/platform/net/http/bind"
)

// Job is the queue message contract between the ingestion gate and the
// worker. Field names are the wire format
type Job struct {
	PRNumber       int     `json:"prNumber" validate:"required,gt=0"`
	PRTitle        string  `json:"prTitle"`
	PRBody         *string `json:"prBody"`
	RepoFullName   string  `json:"repoFullName" validate:"required,reponame"`
	CloneURL       string  `json:"cloneUrl" validate:"required,startswith=https://"`
	HeadRef        string  `json:"headRef" validate:"required,gitref"`
	HeadSha        string  `json:"headSha" validate:"required,gitsha"`
	BaseRef        string  `json:"baseRef" validate:"required,gitref"`
	BaseSha        string  `json:"baseSha" validate:"required,gitsha"`
	PRAuthor       string  `json:"prAuthor"`
	InstallationID int64   `json:"installationId" validate:"required,gt=0"`
	EnqueuedAt     string  `json:"enqueuedAt"`
}

// ParseJob decodes and validates a queue payload, applying defaults for the
// optional fields. Validation failures are poison: the caller ack-drops
func ParseJob(payload []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(payload, &j); err != nil {
		return Job{}, perr.JSONErrf("job payload invalid JSON: %v", err)
	}

	if j.PRTitle == "" {
		j.PRTitle = "(untitled)"
	}
	if j.PRAuthor == "" {
		j.PRAuthor = "unknown"
	}
	if j.EnqueuedAt == "" {
		j.EnqueuedAt = time.Now().UTC().Format(time.RFC3339)
	}

	if err := bind.Get().Validator.Struct(j); err != nil {
		field, msg := bind.ValidationFieldAndMessage(err)
		return Job{}, perr.Validationf("job %s: %s", field, msg)
	}
	return j, nil
}

// Body returns the PR body or empty for null
func (j Job) Body() string {
	if j.PRBody == nil {
		return ""
	}
	return *j.PRBody
}
