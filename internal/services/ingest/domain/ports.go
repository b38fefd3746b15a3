package domain

import "context"

// GatePort decides whether a (repo, pr, sha) may enter the queue
type GatePort interface {
	TryEnqueue(ctx context.Context, repoFullName string, prNumber int, headSha string) (Decision, error)
}

// WebhookPort settles one signed webhook delivery end to end
type WebhookPort interface {
	HandleWebhook(ctx context.Context, body []byte, signature, event string) (WebhookOutcome, error)
}

// LedgerPort is the dedup ledger surface the review worker consumes at
// job entry and exit
type LedgerPort interface {
	IsSuperseded(ctx context.Context, repoFullName string, prNumber int, headSha string) (bool, error)
	MarkProcessing(ctx context.Context, repoFullName string, prNumber int, headSha string) error
	MarkDone(ctx context.Context, repoFullName string, prNumber int, headSha string, failed bool) error
}
