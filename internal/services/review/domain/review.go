package domain

// Verdict is the overall review outcome
type Verdict string

// Verdict literals; anything else in model output is a parse failure
const (
	VerdictApprove        Verdict = "approve"
	VerdictRequestChanges Verdict = "request_changes"
	VerdictComment        Verdict = "comment"
)

// Severity ranks one finding
type Severity string

// Severity levels in descending weight
const (
	SeverityCritical   Severity = "critical"
	SeverityWarning    Severity = "warning"
	SeveritySuggestion Severity = "suggestion"
	SeverityNote       Severity = "note"
)

// Finding is one atomic review observation bound to a file and line
type Finding struct {
	Skill    string   `json:"skill"`
	Severity Severity `json:"severity"`
	Path     string   `json:"path"`
	Line     int      `json:"line"`
	EndLine  *int     `json:"end_line,omitempty"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
}

// InlineEligible reports whether the finding can carry an inline comment
func (f Finding) InlineEligible() bool { return f.Path != "" && f.Line >= 1 }

// ReviewResult is the parsed outcome of one agent run
type ReviewResult struct {
	Verdict  Verdict   `json:"verdict"`
	Summary  string    `json:"summary"`
	Findings []Finding `json:"findings,omitempty"`
}

// ComputeVerdict derives the verdict from findings. The law is strict:
// any critical forces request_changes, any warning or suggestion forces
// comment, note-only or empty sets approve
func ComputeVerdict(findings []Finding) Verdict {
	verdict := VerdictApprove
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			return VerdictRequestChanges
		case SeverityWarning, SeveritySuggestion:
			verdict = VerdictComment
		}
	}
	return verdict
}

// TraceTurn is one persisted message of the agent conversation
type TraceTurn struct {
	TurnNumber   int
	Iteration    int
	Role         string // assistant | user
	Content      string
	ToolName     string
	ToolInput    string
	ToolResult   string
	InputTokens  int64
	OutputTokens int64
}

// ReviewStatus marks a terminal review record
type ReviewStatus string

// Review record terminal states
const (
	ReviewCompleted ReviewStatus = "completed"
	ReviewFailed    ReviewStatus = "failed"
)

// ReviewRecord is the terminal row persisted per agent run
type ReviewRecord struct {
	RepoID       int64
	PRNumber     int
	PRTitle      string
	PRBody       string
	PRAuthor     string
	HeadRef      string
	BaseRef      string
	HeadSha      string
	BaseSha      string
	Status       ReviewStatus
	Error        string
	Verdict      Verdict
	Summary      string
	Findings     []Finding
	Model        string
	InputTokens  int64
	OutputTokens int64
	DurationMS   int64
	SetupMS      int64
	SandboxWarm  bool
	FilesChanged int
	Additions    int
	Deletions    int
	ActiveSkills []string
	DiffText     string
	PromptHash   string
}
