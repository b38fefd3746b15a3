package tools

import (
	"strings"

	perr "nitpick/internal/platform/errors"
)

// forbiddenChars blocks shell chaining, subshells, redirects, and escapes
// in anything the model can place into a command line
const forbiddenChars = ";|&`$(){}><\n\r\\!\"#~"

// commandAllowlist holds the command prefixes run_command accepts. A command
// passes iff its trimmed form equals an entry or starts with entry+" ".
// cd is deliberately absent; cwd is a structured parameter instead
var commandAllowlist = []string{
	"go test", "go vet", "go build",
	"cargo test", "cargo check", "cargo clippy",
	"npm test", "npm run", "yarn test", "pnpm test",
	"pytest", "python -m pytest", "tox",
	"make test", "make check", "make lint",
	"golangci-lint run", "eslint", "ruff check", "flake8", "mypy",
	"git log", "git show", "git blame", "git status", "git branch",
}

func containsForbidden(s string) bool {
	return strings.ContainsAny(s, forbiddenChars) || strings.ContainsRune(s, 0)
}

// checkCommand validates a run_command invocation against the character
// blocklist and the prefix allowlist
func checkCommand(command string) error {
	if containsForbidden(command) {
		return perr.InvalidArgf("command contains forbidden characters")
	}
	trimmed := strings.TrimSpace(command)
	for _, prefix := range commandAllowlist {
		if trimmed == prefix || strings.HasPrefix(trimmed, prefix+" ") {
			return nil
		}
	}
	return perr.InvalidArgf("command %q is not allowlisted", trimmed)
}

// normalizePath resolves a model-supplied path against workdir and rejects
// anything that escapes it. Returned path is absolute
func normalizePath(workdir, p string) (string, error) {
	if strings.ContainsRune(p, 0) {
		return "", perr.InvalidArgf("path contains null byte")
	}
	var stack []string
	for _, part := range strings.Split(p, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(stack) == 0 {
				return "", perr.InvalidArgf("path %q escapes the working copy", p)
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, part)
		}
	}
	if len(stack) == 0 {
		return "", perr.InvalidArgf("path %q resolves to the working copy root", p)
	}
	full := workdir + "/" + strings.Join(stack, "/")
	if !strings.HasPrefix(full, workdir+"/") {
		return "", perr.InvalidArgf("path %q escapes the working copy", p)
	}
	return full, nil
}
