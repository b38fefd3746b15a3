package github

import "context"

// TokenSource mints an installation-scoped access token.
// The mint path (app JWT exchange) is a collaborator; only the seam lives here
type TokenSource interface {
	Token(ctx context.Context, installationID int64) (string, error)
}

// StaticTokenSource returns the same token for every installation,
// useful for local development and tests
type StaticTokenSource string

// Token returns the static token
func (s StaticTokenSource) Token(context.Context, int64) (string, error) {
	return string(s), nil
}
