package github

// Webhook payload shapes, trimmed to the fields the gate consumes

// PullRequestEvent is the pull_request webhook payload
type PullRequestEvent struct {
	Action       string        `json:"action"`
	Number       int           `json:"number"`
	PullRequest  PullRequest   `json:"pull_request"`
	Repository   Repository    `json:"repository"`
	Installation *Installation `json:"installation"`
}

// PullRequest carries the PR coordinates and metadata
type PullRequest struct {
	Number int     `json:"number"`
	Title  string  `json:"title"`
	Body   *string `json:"body"`
	Draft  bool    `json:"draft"`
	User   User    `json:"user"`
	Head   Ref     `json:"head"`
	Base   Ref     `json:"base"`
}

// Ref names one side of the pull request
type Ref struct {
	Ref string `json:"ref"`
	Sha string `json:"sha"`
}

// User is the PR author
type User struct {
	Login string `json:"login"`
}

// Repository identifies the repo the event belongs to
type Repository struct {
	FullName string `json:"full_name"`
	CloneURL string `json:"clone_url"`
	Private  bool   `json:"private"`
}

// Installation carries the forge-app installation id
type Installation struct {
	ID int64 `json:"id"`
}
