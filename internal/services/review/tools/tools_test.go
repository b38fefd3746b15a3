package tools_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	sbx "nitpick/internal/adapters/sandbox"
	"nitpick/internal/services/review/sandbox"
	"nitpick/internal/services/review/tools"
)

type fakeExec struct {
	reqs    []sbx.ExecRequest
	respond func(sbx.ExecRequest) sbx.ExecResult
}

func (f *fakeExec) Exec(_ context.Context, req sbx.ExecRequest) (sbx.ExecResult, error) {
	f.reqs = append(f.reqs, req)
	if f.respond != nil {
		return f.respond(req), nil
	}
	return sbx.ExecResult{}, nil
}

func newSurface(fe *fakeExec) *tools.Surface {
	sb := sandbox.New(fe, "octo/hello", "/workspaces")
	return tools.New(sb, nil)
}

func TestReadFile(t *testing.T) {
	fe := &fakeExec{respond: func(sbx.ExecRequest) sbx.ExecResult {
		return sbx.ExecResult{Stdout: "package main\n"}
	}}
	s := newSurface(fe)

	out, err := s.Dispatch(context.Background(), "read_file", json.RawMessage(`{"path":"src/main.go"}`))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if out != "package main\n" {
		t.Fatalf("output %q", out)
	}
	if len(fe.reqs) != 1 {
		t.Fatalf("exec calls %d", len(fe.reqs))
	}
	want := "cat '/workspaces/octo--hello/src/main.go'"
	if fe.reqs[0].Command != want {
		t.Fatalf("command %q want %q", fe.reqs[0].Command, want)
	}
}

func TestReadFileEscapeRejected(t *testing.T) {
	fe := &fakeExec{}
	s := newSurface(fe)

	_, err := s.Dispatch(context.Background(), "read_file", json.RawMessage(`{"path":"../../etc/passwd"}`))
	if err == nil {
		t.Fatal("expected escape rejection")
	}
	if len(fe.reqs) != 0 {
		t.Fatal("nothing may reach the sandbox on a rejected path")
	}
}

func TestRunCommand(t *testing.T) {
	fe := &fakeExec{respond: func(sbx.ExecRequest) sbx.ExecResult {
		return sbx.ExecResult{Stdout: "ok\n"}
	}}
	s := newSurface(fe)

	out, err := s.Dispatch(context.Background(), "run_command", json.RawMessage(`{"command":"go test ./..."}`))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if out != "ok\n" {
		t.Fatalf("output %q", out)
	}

	if _, err := s.Dispatch(context.Background(), "run_command", json.RawMessage(`{"command":"rm -rf /"}`)); err == nil {
		t.Fatal("expected allowlist rejection")
	}
	if len(fe.reqs) != 1 {
		t.Fatal("rejected command must not execute")
	}
}

func TestSearchContentNoMatches(t *testing.T) {
	fe := &fakeExec{respond: func(sbx.ExecRequest) sbx.ExecResult {
		return sbx.ExecResult{ExitCode: 1} // ripgrep's no-matches exit
	}}
	s := newSurface(fe)

	out, err := s.Dispatch(context.Background(), "search_content", json.RawMessage(`{"pattern":"TODO"}`))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
	if !strings.Contains(fe.reqs[0].Command, "-i") {
		t.Fatalf("default must be case-insensitive: %q", fe.reqs[0].Command)
	}
}

func TestSearchContentForbiddenPattern(t *testing.T) {
	s := newSurface(&fakeExec{})
	if _, err := s.Dispatch(context.Background(), "search_content", json.RawMessage(`{"pattern":"x; rm"}`)); err == nil {
		t.Fatal("expected rejection")
	}
}

func TestListFilesCapsEntries(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 600; i++ {
		b.WriteString("file.go\n")
	}
	fe := &fakeExec{respond: func(sbx.ExecRequest) sbx.ExecResult {
		return sbx.ExecResult{Stdout: b.String()}
	}}
	s := newSurface(fe)

	out, err := s.Dispatch(context.Background(), "list_files", nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !strings.HasSuffix(out, "... [100 more entries]") {
		t.Fatalf("missing cap marker: %q", out[len(out)-40:])
	}
}

func TestGitDiff(t *testing.T) {
	fe := &fakeExec{respond: func(sbx.ExecRequest) sbx.ExecResult {
		return sbx.ExecResult{Stdout: "diff --git a/x b/x\n"}
	}}
	s := newSurface(fe)

	sha := strings.Repeat("a", 40)
	if _, err := s.Dispatch(context.Background(), "git_diff", json.RawMessage(`{"base_sha":"`+sha+`"}`)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if want := "git diff " + sha + "...HEAD"; fe.reqs[0].Command != want {
		t.Fatalf("command %q want %q", fe.reqs[0].Command, want)
	}

	if _, err := s.Dispatch(context.Background(), "git_diff", json.RawMessage(`{"base_sha":"not-a-sha"}`)); err == nil {
		t.Fatal("expected invalid sha rejection")
	}
}

func TestFindFilesDepthClamp(t *testing.T) {
	fe := &fakeExec{}
	s := newSurface(fe)

	if _, err := s.Dispatch(context.Background(), "find_files", json.RawMessage(`{"pattern":"*.go","max_depth":99}`)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !strings.Contains(fe.reqs[0].Command, "-maxdepth 15") {
		t.Fatalf("depth not clamped: %q", fe.reqs[0].Command)
	}

	if _, err := s.Dispatch(context.Background(), "find_files", json.RawMessage(`{"pattern":"*.go","type":"x"}`)); err == nil {
		t.Fatal("expected type rejection")
	}
}

func TestCheckVulnerabilitiesUnconfigured(t *testing.T) {
	s := newSurface(&fakeExec{})
	in := json.RawMessage(`{"ecosystem":"Go","packages":["example.com/pkg"]}`)
	if _, err := s.Dispatch(context.Background(), "check_vulnerabilities", in); err == nil {
		t.Fatal("expected unavailable error without a vulnerability backend")
	}
}

func TestUnknownTool(t *testing.T) {
	s := newSurface(&fakeExec{})
	if _, err := s.Dispatch(context.Background(), "does_not_exist", nil); err == nil {
		t.Fatal("expected rejection")
	}
}
