// Package sandbox drives the per-repo working copy lifecycle: cold clone
// vs warm refresh, checkout by ref with SHA fallback, credential hygiene
package sandbox

import (
	"context"
	"fmt"
	"time"

	sbx "nitpick/internal/adapters/sandbox"
	"nitpick/internal/core/gitsafe"
	perr "nitpick/internal/platform/errors"
	"nitpick/internal/platform/logger"
)

// Operation timeouts per the git command class
const (
	cloneTimeout = 120 * time.Second
	fetchTimeout = 60 * time.Second
	smallTimeout = 10 * time.Second
	probeTimeout = 5 * time.Second
)

// Result describes a finished Setup
type Result struct {
	Cloned   bool // true iff the cold path ran
	Workdir  string
	Duration time.Duration
}

// Controller owns one repo's sandbox identified by its full name
type Controller struct {
	exec      sbx.Executor
	sandboxID string
	workdir   string
	log       logger.Logger
	now       func() time.Time
}

// New builds a Controller for repoFullName with working copies under root
func New(exec sbx.Executor, repoFullName, root string) *Controller {
	id := gitsafe.SandboxID(repoFullName)
	return &Controller{
		exec:      exec,
		sandboxID: id,
		workdir:   root + "/" + id,
		log:       *logger.Named("sandbox"),
		now:       time.Now,
	}
}

// Workdir returns the working copy path tools operate under
func (c *Controller) Workdir() string { return c.workdir }

// SandboxID returns the stable per-repo sandbox identifier
func (c *Controller) SandboxID() string { return c.sandboxID }

// Setup prepares the working copy at headRef/headSha using an
// installation token that never survives past the checkout
func (c *Controller) Setup(ctx context.Context, cloneURL, headRef, headSha, token string) (Result, error) {
	start := c.now()

	// re-validate even though the job validator ran: these strings reach a shell
	if !gitsafe.ValidRef(headRef) {
		return Result{}, perr.InvalidArgf("invalid head ref %q", headRef)
	}
	if !gitsafe.ValidSha(headSha) {
		return Result{}, perr.InvalidArgf("invalid head sha %q", headSha)
	}

	authedURL := gitsafe.ShellQuote(gitsafe.WithToken(cloneURL, token))
	bareURL := gitsafe.ShellQuote(cloneURL)

	warm := c.isWorkTree(ctx)

	var setupErr error
	if warm {
		setupErr = c.refresh(ctx, authedURL, headRef, headSha)
	} else {
		setupErr = c.clone(ctx, authedURL, headRef, headSha)
	}

	// always drop the credential from the remote, even after a failed setup
	_ = c.run(ctx, "git remote set-url origin "+bareURL, c.workdir, probeTimeout)

	if setupErr != nil {
		return Result{}, setupErr
	}
	return Result{Cloned: !warm, Workdir: c.workdir, Duration: c.now().Sub(start)}, nil
}

// isWorkTree probes whether a usable working copy already exists
func (c *Controller) isWorkTree(ctx context.Context) bool {
	res, err := c.exec.Exec(ctx, sbx.ExecRequest{
		SandboxID: c.sandboxID,
		Command:   "git rev-parse --is-inside-work-tree",
		Cwd:       c.workdir,
		Timeout:   probeTimeout,
	})
	return err == nil && res.ExitCode == 0
}

// refresh is the warm path: point origin at the authed URL, fetch the ref,
// fall back to the SHA for deleted or fork branches, then scrub the tree
func (c *Controller) refresh(ctx context.Context, authedURL, headRef, headSha string) error {
	if err := c.run(ctx, "git remote set-url origin "+authedURL, c.workdir, probeTimeout); err != nil {
		return err
	}

	fetchRef := fmt.Sprintf("git fetch origin +refs/heads/%s:refs/remotes/origin/%s", headRef, headRef)
	checkoutRef := fmt.Sprintf("git checkout -B %s origin/%s", headRef, headRef)
	if err := c.runAll(ctx, c.workdir, fetchTimeout, fetchRef, checkoutRef); err != nil {
		c.log.Debug().Str("ref", headRef).Msg("ref fetch failed, falling back to sha")
		if err := c.fallbackToSha(ctx, headRef, headSha); err != nil {
			return err
		}
	}

	return c.runAll(ctx, c.workdir, smallTimeout,
		"git reset --hard HEAD",
		"git clean -fd",
	)
}

// clone is the cold path
func (c *Controller) clone(ctx context.Context, authedURL, headRef, headSha string) error {
	cloneCmd := fmt.Sprintf("git clone --depth=50 %s %s", authedURL, gitsafe.ShellQuote(c.workdir))
	if err := c.run(ctx, cloneCmd, "", cloneTimeout); err != nil {
		return err
	}
	if err := c.run(ctx, "git checkout "+headRef, c.workdir, fetchTimeout); err != nil {
		c.log.Debug().Str("ref", headRef).Msg("checkout failed after clone, falling back to sha")
		return c.fallbackToSha(ctx, headRef, headSha)
	}
	return nil
}

func (c *Controller) fallbackToSha(ctx context.Context, headRef, headSha string) error {
	return c.runAll(ctx, c.workdir, fetchTimeout,
		"git fetch origin "+headSha,
		fmt.Sprintf("git checkout -B %s %s", headRef, headSha),
	)
}

// runAll runs commands in order, stopping at the first failure
func (c *Controller) runAll(ctx context.Context, cwd string, timeout time.Duration, cmds ...string) error {
	for _, cmd := range cmds {
		if err := c.run(ctx, cmd, cwd, timeout); err != nil {
			return err
		}
	}
	return nil
}

// run executes one command and maps a non-zero exit to a sandbox error
// with credentials scrubbed from the message
func (c *Controller) run(ctx context.Context, cmd, cwd string, timeout time.Duration) error {
	res, err := c.exec.Exec(ctx, sbx.ExecRequest{
		SandboxID: c.sandboxID,
		Command:   cmd,
		Cwd:       cwd,
		Timeout:   timeout,
	})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return perr.Sandboxf("command failed (exit %d): %s: %s",
			res.ExitCode, gitsafe.Scrub(cmd), gitsafe.Scrub(res.Stderr))
	}
	return nil
}

// Exec exposes raw execution to the tool surface bound to this sandbox
func (c *Controller) Exec(ctx context.Context, command, cwd string, timeout time.Duration) (sbx.ExecResult, error) {
	if cwd == "" {
		cwd = c.workdir
	}
	return c.exec.Exec(ctx, sbx.ExecRequest{
		SandboxID: c.sandboxID,
		Command:   command,
		Cwd:       cwd,
		Timeout:   timeout,
	})
}
