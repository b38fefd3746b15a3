// Package gitsafe centralizes the input-validation and shell-shaping rules
// that keep untrusted PR metadata from reaching a shell unescaped
package gitsafe

import (
	"regexp"
	"strings"
)

// Validation patterns shared by the job validator, sandbox controller, and tools
var (
	// RepoNameRe matches an owner/name repository slug
	RepoNameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

	// RefRe matches a branch or tag name safe for interpolation
	RefRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]*$`)

	// ShaRe matches an abbreviated or full commit sha
	ShaRe = regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`)

	credRe = regexp.MustCompile(`https?://[^/\s:@]+:[^/\s@]+@`)
)

// ValidRepoName reports whether s is an owner/name slug
func ValidRepoName(s string) bool { return RepoNameRe.MatchString(s) }

// ValidRef reports whether s is a safe git ref name
func ValidRef(s string) bool { return RefRe.MatchString(s) }

// ValidSha reports whether s is a hex commit sha
func ValidSha(s string) bool { return ShaRe.MatchString(s) }

// SandboxID derives the stable per-repo sandbox identifier from a full name
func SandboxID(repoFullName string) string {
	return strings.ReplaceAll(repoFullName, "/", "--")
}

// ShellQuote wraps s in single quotes, escaping interior quotes,
// so the result is a single shell word no matter what s contains
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// WithToken injects an installation token into the clone URL's userinfo.
// The caller must shell-quote the result before interpolation
func WithToken(cloneURL, token string) string {
	if token == "" {
		return cloneURL
	}
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(cloneURL, scheme) {
			return scheme + "x-access-token:" + token + "@" + strings.TrimPrefix(cloneURL, scheme)
		}
	}
	return cloneURL
}

// Scrub rewrites any URL-embedded user:token credential to a redacted form.
// Applied to every error message, log line, and the persisted diff text
func Scrub(s string) string {
	return credRe.ReplaceAllString(s, "https://<REDACTED>@")
}
