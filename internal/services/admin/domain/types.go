// Package domain holds the admin API's read models
package domain

import (
	"time"

	revdom "nitpick/internal/services/review/domain"
)

// ReviewSummary is the list-view projection of a review row
type ReviewSummary struct {
	ID           int64     `json:"id"`
	RepoFullName string    `json:"repo"`
	PRNumber     int       `json:"prNumber"`
	PRTitle      string    `json:"prTitle"`
	Status       string    `json:"status"`
	Verdict      string    `json:"verdict,omitempty"`
	FilesChanged int       `json:"filesChanged"`
	DurationMS   int64     `json:"durationMs"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ReviewDetail is the full review row minus the stored diff text
type ReviewDetail struct {
	ReviewSummary
	PRAuthor     string           `json:"prAuthor"`
	HeadRef      string           `json:"headRef"`
	BaseRef      string           `json:"baseRef"`
	HeadSha      string           `json:"headSha"`
	BaseSha      string           `json:"baseSha"`
	Error        string           `json:"error,omitempty"`
	Summary      string           `json:"summary,omitempty"`
	Findings     []revdom.Finding `json:"findings,omitempty"`
	Model        string           `json:"model,omitempty"`
	InputTokens  int64            `json:"inputTokens"`
	OutputTokens int64            `json:"outputTokens"`
	SetupMS      int64            `json:"setupMs"`
	SandboxWarm  bool             `json:"sandboxWarm"`
	Additions    int              `json:"additions"`
	Deletions    int              `json:"deletions"`
	ActiveSkills []string         `json:"activeSkills,omitempty"`
	PromptHash   string           `json:"promptHash,omitempty"`
}

// TraceRow is one persisted conversation turn
type TraceRow struct {
	TurnNumber   int    `json:"turnNumber"`
	Iteration    int    `json:"iteration"`
	Role         string `json:"role"`
	Content      string `json:"content,omitempty"`
	ToolName     string `json:"toolName,omitempty"`
	ToolInput    string `json:"toolInput,omitempty"`
	ToolResult   string `json:"toolResult,omitempty"`
	InputTokens  int64  `json:"inputTokens,omitempty"`
	OutputTokens int64  `json:"outputTokens,omitempty"`
}

// ReviewFilter narrows the review listing
type ReviewFilter struct {
	RepoFullName string
	Status       string
	Page         int
	Size         int
}
