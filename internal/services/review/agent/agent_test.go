package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"

	sbx "nitpick/internal/adapters/sandbox"
	"nitpick/internal/services/review/agent"
	"nitpick/internal/services/review/domain"
	"nitpick/internal/services/review/sandbox"
	"nitpick/internal/services/review/skills"
	"nitpick/internal/services/review/tools"
)

const reviewText = `Done.
<review>{"verdict":"approve","summary":"clean change","findings":[]}</review>`

type fakeModel struct {
	responses []*sdk.Message
	err       error
	calls     []sdk.MessageNewParams
}

func (f *fakeModel) CreateMessage(_ context.Context, p sdk.MessageNewParams) (*sdk.Message, error) {
	f.calls = append(f.calls, p)
	if f.err != nil {
		return nil, f.err
	}
	i := len(f.calls) - 1
	if i >= len(f.responses) {
		return nil, errors.New("unscripted model call")
	}
	return f.responses[i], nil
}

type slowExec struct{}

func (slowExec) Exec(_ context.Context, req sbx.ExecRequest) (sbx.ExecResult, error) {
	// the first-listed tool finishes last
	if strings.HasPrefix(req.Command, "cat ") {
		time.Sleep(20 * time.Millisecond)
		return sbx.ExecResult{Stdout: "file body"}, nil
	}
	return sbx.ExecResult{Stdout: "a.go\n"}, nil
}

func textResponse(stop sdk.StopReason, text string) *sdk.Message {
	return &sdk.Message{
		StopReason: stop,
		Content:    []sdk.ContentBlockUnion{{Type: "text", Text: text}},
		Usage:      sdk.Usage{InputTokens: 100, OutputTokens: 50},
	}
}

func newAgent(model *fakeModel) *agent.Agent {
	sb := sandbox.New(slowExec{}, "octo/hello", "/workspaces")
	return agent.New(model, tools.New(sb, nil), nil, "test-model")
}

func testComp() skills.Composition {
	return skills.Composition{
		SystemPrompt: "review the change",
		ToolNames:    []string{"read_file", "list_files"},
	}
}

const testDiff = "diff --git a/a.go b/a.go\n+++ b/a.go\n+x\n"

func TestRunEndTurn(t *testing.T) {
	fm := &fakeModel{responses: []*sdk.Message{textResponse(sdk.StopReasonEndTurn, reviewText)}}

	out, err := newAgent(fm).Run(context.Background(), domain.Job{}, testDiff, testComp())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Result.Verdict != domain.VerdictApprove {
		t.Fatalf("verdict %q", out.Result.Verdict)
	}
	if out.Iterations != 1 {
		t.Fatalf("iterations %d", out.Iterations)
	}
	if out.InputTokens != 100 || out.OutputTokens != 50 {
		t.Fatalf("tokens %d/%d", out.InputTokens, out.OutputTokens)
	}
	if len(out.Trace) != 1 || out.Trace[0].TurnNumber != 1 || out.Trace[0].Role != "assistant" {
		t.Fatalf("trace %+v", out.Trace)
	}
	if len(fm.calls[0].Tools) != 2 {
		t.Fatalf("tool definitions %d", len(fm.calls[0].Tools))
	}
}

func TestRunToolDispatchOrder(t *testing.T) {
	toolTurn := &sdk.Message{
		StopReason: sdk.StopReasonToolUse,
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "let me look"},
			{Type: "tool_use", ID: "tu_1", Name: "read_file", Input: json.RawMessage(`{"path":"a.go"}`)},
			{Type: "tool_use", ID: "tu_2", Name: "list_files", Input: json.RawMessage(`{}`)},
		},
		Usage: sdk.Usage{InputTokens: 10, OutputTokens: 10},
	}
	fm := &fakeModel{responses: []*sdk.Message{
		toolTurn,
		textResponse(sdk.StopReasonEndTurn, reviewText),
	}}

	out, err := newAgent(fm).Run(context.Background(), domain.Job{}, testDiff, testComp())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Iterations != 2 {
		t.Fatalf("iterations %d", out.Iterations)
	}

	// tool_result order follows the request order even though the first
	// call finishes last
	second := fm.calls[1].Messages
	last := second[len(second)-1]
	var ids []string
	for _, b := range last.Content {
		if b.OfToolResult != nil {
			ids = append(ids, b.OfToolResult.ToolUseID)
		}
	}
	if len(ids) != 2 || ids[0] != "tu_1" || ids[1] != "tu_2" {
		t.Fatalf("tool_result ids %v", ids)
	}

	// trace turns are contiguous: assistant, two tool rows, final assistant
	if len(out.Trace) != 4 {
		t.Fatalf("trace rows %d", len(out.Trace))
	}
	for i, tr := range out.Trace {
		if tr.TurnNumber != i+1 {
			t.Fatalf("turn %d numbered %d", i, tr.TurnNumber)
		}
	}
	if out.Trace[1].ToolName != "read_file" || out.Trace[2].ToolName != "list_files" {
		t.Fatalf("tool trace order %s, %s", out.Trace[1].ToolName, out.Trace[2].ToolName)
	}
	if out.Trace[1].ToolResult != "file body" {
		t.Fatalf("tool result %q", out.Trace[1].ToolResult)
	}
}

func TestRunMaxTokensNudge(t *testing.T) {
	fm := &fakeModel{responses: []*sdk.Message{
		textResponse(sdk.StopReasonMaxTokens, "half a thought"),
		textResponse(sdk.StopReasonEndTurn, reviewText),
	}}

	out, err := newAgent(fm).Run(context.Background(), domain.Job{}, testDiff, testComp())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Result.Verdict != domain.VerdictApprove {
		t.Fatalf("verdict %q", out.Result.Verdict)
	}

	second := fm.calls[1].Messages
	nudge := second[len(second)-1]
	if nudge.Content[0].OfText == nil || !strings.Contains(nudge.Content[0].OfText.Text, "Finalize now") {
		t.Fatalf("expected finalize nudge, got %+v", nudge)
	}
}

func TestRunRecoverySynthesizes(t *testing.T) {
	fm := &fakeModel{responses: []*sdk.Message{
		textResponse(sdk.StopReasonEndTurn, "I forget the format entirely"),
	}}

	out, err := newAgent(fm).Run(context.Background(), domain.Job{}, testDiff, testComp())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Result.Verdict != domain.VerdictComment {
		t.Fatalf("synthetic verdict %q", out.Result.Verdict)
	}
	if len(out.Result.Findings) != 0 {
		t.Fatal("synthetic review must carry no findings")
	}
	if out.Result.Summary == "" {
		t.Fatal("synthetic review needs a summary")
	}
}

func TestRunRecoveryFindsEarlierReview(t *testing.T) {
	// an unexpected stop reason after a message that already contained a
	// valid review block: recovery must surface that review
	fm := &fakeModel{responses: []*sdk.Message{
		textResponse(sdk.StopReason("refusal"), reviewText),
	}}

	out, err := newAgent(fm).Run(context.Background(), domain.Job{}, testDiff, testComp())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Result.Verdict != domain.VerdictApprove || out.Result.Summary != "clean change" {
		t.Fatalf("recovered result %+v", out.Result)
	}
}

func TestRunModelErrorPropagates(t *testing.T) {
	fm := &fakeModel{err: errors.New("upstream 529")}

	_, err := newAgent(fm).Run(context.Background(), domain.Job{}, testDiff, testComp())
	if err == nil {
		t.Fatal("model errors must propagate for redelivery")
	}
}

func TestModelDefault(t *testing.T) {
	a := agent.New(&fakeModel{}, nil, nil, "")
	if a.Model() == "" {
		t.Fatal("expected a default model name")
	}
}
