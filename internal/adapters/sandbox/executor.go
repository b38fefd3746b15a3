// Package sandbox talks to the remote sandbox runner that executes
// commands inside per-repo working copies
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"nitpick/internal/core/gitsafe"
	perr "nitpick/internal/platform/errors"
)

// ExecRequest is one command to run inside a sandbox
type ExecRequest struct {
	SandboxID string
	Command   string
	Cwd       string
	Timeout   time.Duration
}

// ExecResult is the runner's answer; ExitCode is meaningful only when err is nil
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs a command remotely. Implementations must honor the
// per-request timeout; the agent loop performs no cancellation of its own
type Executor interface {
	Exec(ctx context.Context, req ExecRequest) (ExecResult, error)
}

// wire shapes for the runner's /exec endpoint

type execWireReq struct {
	SandboxID string `json:"sandbox_id"`
	Command   string `json:"command"`
	Cwd       string `json:"cwd,omitempty"`
	TimeoutMS int64  `json:"timeout_ms"`
}

type execWireResp struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// HTTPExecutor implements Executor over the runner's HTTP API
type HTTPExecutor struct {
	baseURL string
	http    *http.Client
}

// NewHTTPExecutor builds an executor against the runner at baseURL
func NewHTTPExecutor(baseURL string) *HTTPExecutor {
	return &HTTPExecutor{
		baseURL: baseURL,
		// per-call deadline comes from the request timeout, not the client
		http: &http.Client{},
	}
}

// Exec posts the command and decodes the result. Transport failures map to
// sandbox errors with credentials scrubbed from any echoed text
func (e *HTTPExecutor) Exec(ctx context.Context, req ExecRequest) (ExecResult, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	payload, err := json.Marshal(execWireReq{
		SandboxID: req.SandboxID,
		Command:   req.Command,
		Cwd:       req.Cwd,
		TimeoutMS: timeout.Milliseconds(),
	})
	if err != nil {
		return ExecResult{}, perr.Wrapf(err, perr.ErrorCodeJSON, "sandbox exec marshal failed")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/exec", bytes.NewReader(payload))
	if err != nil {
		return ExecResult{}, perr.Wrapf(err, perr.ErrorCodeSandbox, "sandbox exec request failed")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(httpReq)
	if err != nil {
		return ExecResult{}, perr.Wrapf(err, perr.ErrorCodeSandbox, "sandbox runner unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		tail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return ExecResult{}, perr.Sandboxf("sandbox runner status %d: %s", resp.StatusCode, gitsafe.Scrub(string(tail)))
	}

	var out execWireResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ExecResult{}, perr.Wrapf(err, perr.ErrorCodeSandbox, "sandbox exec decode failed")
	}
	return ExecResult{Stdout: out.Stdout, Stderr: out.Stderr, ExitCode: out.ExitCode}, nil
}
