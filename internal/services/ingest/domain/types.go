// Package domain defines the ingestion gate's decision types and ports
package domain

// Reason explains a denied enqueue
type Reason string

// Denial reasons
const (
	ReasonRepoDisabled Reason = "repo_disabled"
	ReasonDuplicateSha Reason = "duplicate_sha"
	ReasonRateLimited  Reason = "rate_limited"
)

// Decision is the gate's answer for one (repo, pr, sha)
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
}

// WebhookStatus classifies how a webhook was settled
type WebhookStatus string

// Webhook outcomes
const (
	WebhookEnqueued WebhookStatus = "enqueued"
	WebhookIgnored  WebhookStatus = "ignored"
	WebhookDenied   WebhookStatus = "denied"
)

// WebhookOutcome is what the HTTP layer turns into a response
type WebhookOutcome struct {
	Status       WebhookStatus `json:"status"`
	Reason       Reason        `json:"reason,omitempty"`
	Detail       string        `json:"detail,omitempty"`
	RepoFullName string        `json:"repo,omitempty"`
	PRNumber     int           `json:"prNumber,omitempty"`
	HeadSha      string        `json:"headSha,omitempty"`
}
