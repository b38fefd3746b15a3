// Package tools is the validated surface the agent calls into the sandbox
// through. Every tool is a pure function over the executor plus checked
// arguments; outputs are capped and error text is credential-scrubbed
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"nitpick/internal/adapters/osv"
	"nitpick/internal/core/diffutil"
	"nitpick/internal/core/gitsafe"
	perr "nitpick/internal/platform/errors"
	"nitpick/internal/platform/logger"
	"nitpick/internal/services/review/sandbox"
)

// Output and argument caps
const (
	maxListingEntries = 500
	maxTextOutput     = 30_000
	maxDiffOutput     = 50_000
	maxPackages       = 50
	maxFindDepth      = 15
	maxSearchMatches  = 200

	truncMarker = "\n... [output truncated]"
)

const toolTimeout = 30 * time.Second

// Surface binds the tool set to one review's sandbox
type Surface struct {
	sb     *sandbox.Controller
	vulnDB *osv.Client
	log    logger.Logger
}

// New builds a Surface over sb; vulnDB may be nil when dependency
// scanning is not configured
func New(sb *sandbox.Controller, vulnDB *osv.Client) *Surface {
	return &Surface{sb: sb, vulnDB: vulnDB, log: *logger.Named("tools")}
}

// Dispatch runs the named tool with its raw JSON input. The returned error
// message is already scrubbed and safe to hand back to the model
func (s *Surface) Dispatch(ctx context.Context, name string, input json.RawMessage) (string, error) {
	out, err := s.dispatch(ctx, name, input)
	if err != nil {
		return "", perr.InvalidArgf("%s", gitsafe.Scrub(err.Error()))
	}
	return out, nil
}

func (s *Surface) dispatch(ctx context.Context, name string, input json.RawMessage) (string, error) {
	switch name {
	case "read_file":
		return s.readFile(ctx, input)
	case "list_files":
		return s.listFiles(ctx, input)
	case "run_command":
		return s.runCommand(ctx, input)
	case "git_diff":
		return s.gitDiff(ctx, input)
	case "search_content":
		return s.searchContent(ctx, input)
	case "find_files":
		return s.findFiles(ctx, input)
	case "check_vulnerabilities":
		return s.checkVulnerabilities(ctx, input)
	default:
		return "", perr.InvalidArgf("unknown tool %q", name)
	}
}

func decode[T any](input json.RawMessage) (T, error) {
	var args T
	if len(input) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(input, &args); err != nil {
		var zero T
		return zero, perr.JSONErrf("tool input invalid: %v", err)
	}
	return args, nil
}

func (s *Surface) readFile(ctx context.Context, input json.RawMessage) (string, error) {
	args, err := decode[struct {
		Path string `json:"path"`
	}](input)
	if err != nil {
		return "", err
	}
	full, err := normalizePath(s.sb.Workdir(), args.Path)
	if err != nil {
		return "", err
	}
	return s.exec(ctx, "cat "+gitsafe.ShellQuote(full), "", maxTextOutput)
}

func (s *Surface) listFiles(ctx context.Context, input json.RawMessage) (string, error) {
	args, err := decode[struct {
		Pattern string `json:"pattern"`
	}](input)
	if err != nil {
		return "", err
	}
	cmd := "git ls-files"
	if args.Pattern != "" {
		if containsForbidden(args.Pattern) {
			return "", perr.InvalidArgf("pattern contains forbidden characters")
		}
		cmd += " -- " + gitsafe.ShellQuote(args.Pattern)
	}
	out, err := s.exec(ctx, cmd, "", 0)
	if err != nil {
		return "", err
	}
	return capEntries(out, maxListingEntries), nil
}

func (s *Surface) runCommand(ctx context.Context, input json.RawMessage) (string, error) {
	args, err := decode[struct {
		Command string `json:"command"`
		Cwd     string `json:"cwd"`
	}](input)
	if err != nil {
		return "", err
	}
	if err := checkCommand(args.Command); err != nil {
		return "", err
	}
	cwd := ""
	if args.Cwd != "" {
		if cwd, err = normalizePath(s.sb.Workdir(), args.Cwd); err != nil {
			return "", err
		}
	}
	return s.exec(ctx, args.Command, cwd, maxTextOutput)
}

func (s *Surface) gitDiff(ctx context.Context, input json.RawMessage) (string, error) {
	args, err := decode[struct {
		BaseSha string `json:"base_sha"`
	}](input)
	if err != nil {
		return "", err
	}
	if !gitsafe.ValidSha(args.BaseSha) {
		return "", perr.InvalidArgf("invalid base sha %q", args.BaseSha)
	}
	return s.exec(ctx, fmt.Sprintf("git diff %s...HEAD", args.BaseSha), "", maxDiffOutput)
}

// searchContent executes ripgrep raw instead of through run_command because
// exit code 1 with empty stderr is the documented no-matches case
func (s *Surface) searchContent(ctx context.Context, input json.RawMessage) (string, error) {
	args, err := decode[struct {
		Pattern       string `json:"pattern"`
		Glob          string `json:"glob"`
		CaseSensitive bool   `json:"case_sensitive"`
	}](input)
	if err != nil {
		return "", err
	}
	if args.Pattern == "" {
		return "", perr.InvalidArgf("pattern is required")
	}
	if containsForbidden(args.Pattern) || containsForbidden(args.Glob) {
		return "", perr.InvalidArgf("pattern contains forbidden characters")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "rg --no-heading --line-number -m %d", maxSearchMatches)
	if !args.CaseSensitive {
		b.WriteString(" -i")
	}
	if args.Glob != "" {
		b.WriteString(" --glob " + gitsafe.ShellQuote(args.Glob))
	}
	b.WriteString(" " + gitsafe.ShellQuote(args.Pattern))

	res, err := s.sb.Exec(ctx, b.String(), "", toolTimeout)
	if err != nil {
		return "", err
	}
	if res.ExitCode == 1 && strings.TrimSpace(res.Stderr) == "" {
		return "", nil
	}
	if res.ExitCode != 0 {
		return "", perr.Sandboxf("search failed (exit %d): %s", res.ExitCode, gitsafe.Scrub(res.Stderr))
	}
	return diffutil.Truncate(res.Stdout, maxTextOutput, truncMarker), nil
}

func (s *Surface) findFiles(ctx context.Context, input json.RawMessage) (string, error) {
	args, err := decode[struct {
		Pattern  string `json:"pattern"`
		Type     string `json:"type"`
		MaxDepth int    `json:"max_depth"`
	}](input)
	if err != nil {
		return "", err
	}
	if args.Pattern == "" {
		return "", perr.InvalidArgf("pattern is required")
	}
	if containsForbidden(args.Pattern) {
		return "", perr.InvalidArgf("pattern contains forbidden characters")
	}
	depth := args.MaxDepth
	if depth <= 0 {
		depth = 10
	}
	if depth > maxFindDepth {
		depth = maxFindDepth
	}

	var b strings.Builder
	fmt.Fprintf(&b, "find . -maxdepth %d", depth)
	switch args.Type {
	case "f", "d":
		b.WriteString(" -type " + args.Type)
	case "":
	default:
		return "", perr.InvalidArgf("type must be f or d")
	}
	b.WriteString(" -name " + gitsafe.ShellQuote(args.Pattern))

	out, err := s.exec(ctx, b.String(), "", 0)
	if err != nil {
		return "", err
	}
	return capEntries(out, maxListingEntries), nil
}

func (s *Surface) checkVulnerabilities(ctx context.Context, input json.RawMessage) (string, error) {
	args, err := decode[struct {
		Ecosystem string   `json:"ecosystem"`
		Packages  []string `json:"packages"`
	}](input)
	if err != nil {
		return "", err
	}
	if s.vulnDB == nil {
		return "", perr.Unavailablef("vulnerability scanning is not configured")
	}
	if args.Ecosystem == "" || len(args.Packages) == 0 {
		return "", perr.InvalidArgf("ecosystem and packages are required")
	}
	pkgs := args.Packages
	if len(pkgs) > maxPackages {
		pkgs = pkgs[:maxPackages]
	}
	reports, err := s.vulnDB.QueryBatch(ctx, args.Ecosystem, pkgs)
	if err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return "", perr.JSONErrf("report marshal failed: %v", err)
	}
	return diffutil.Truncate(string(out), maxTextOutput, truncMarker), nil
}

// exec runs one command in the sandbox and returns its stdout capped at max
// (0 means no cap here, the caller caps by entries)
func (s *Surface) exec(ctx context.Context, cmd, cwd string, max int) (string, error) {
	res, err := s.sb.Exec(ctx, cmd, cwd, toolTimeout)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", perr.Sandboxf("command failed (exit %d): %s", res.ExitCode, gitsafe.Scrub(res.Stderr))
	}
	if max > 0 {
		return diffutil.Truncate(res.Stdout, max, truncMarker), nil
	}
	return res.Stdout, nil
}

// capEntries keeps the first max lines of a listing
func capEntries(out string, max int) string {
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) <= max {
		return out
	}
	return strings.Join(lines[:max], "\n") + fmt.Sprintf("\n... [%d more entries]", len(lines)-max)
}
