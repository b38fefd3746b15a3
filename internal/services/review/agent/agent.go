// Package agent runs the bounded tool-calling conversation that produces
// a review for one pull request
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"golang.org/x/sync/errgroup"

	"nitpick/internal/adapters/anthropic"
	"nitpick/internal/core/diffutil"
	"nitpick/internal/platform/logger"
	"nitpick/internal/platform/metrics"
	"nitpick/internal/services/review/domain"
	"nitpick/internal/services/review/skills"
	"nitpick/internal/services/review/tools"
)

const (
	defaultModel  = "claude-sonnet-4-5"
	maxTurnTokens = 16_384
	maxDiffChars  = 100_000

	// previews keep trace rows readable without storing whole tool outputs
	previewChars = 2_000

	diffTruncMarker = "\n[diff truncated at 100000 characters]"
)

// Agent drives the model against one sandbox-bound tool surface
type Agent struct {
	model   anthropic.ModelClient
	surface *tools.Surface
	met     *metrics.Set
	name    string
	log     logger.Logger
}

// New builds an Agent; modelName empty selects the default sonnet-class model
func New(model anthropic.ModelClient, surface *tools.Surface, met *metrics.Set, modelName string) *Agent {
	if modelName == "" {
		modelName = defaultModel
	}
	return &Agent{model: model, surface: surface, met: met, name: modelName, log: *logger.Named("agent")}
}

// Model returns the model identifier reviews are attributed to
func (a *Agent) Model() string { return a.name }

// Output carries the parsed review plus everything persistence wants
type Output struct {
	Result       domain.ReviewResult
	Trace        []domain.TraceTurn
	Iterations   int
	InputTokens  int64
	OutputTokens int64
}

// budgetFor scales the iteration budget by how much changed
func budgetFor(changedFiles int) int {
	switch {
	case changedFiles <= 5:
		return 10
	case changedFiles <= 15:
		return 15
	default:
		return 20
	}
}

// Run executes the conversation until the model finalizes, the budget is
// exhausted, or the model call itself fails (which the caller retries)
func (a *Agent) Run(ctx context.Context, job domain.Job, diff string, comp skills.Composition) (Output, error) {
	changed := diffutil.ExtractChangedFiles(diff)
	budget := budgetFor(len(changed))
	toolDefs := tools.Definitions(comp.ToolNames)

	out := Output{}
	turnNo := 0
	nextTurn := func() int { turnNo++; return turnNo }

	messages := []sdk.MessageParam{
		sdk.NewUserMessage(sdk.NewTextBlock(initialMessage(diff, budget))),
	}

	for iter := 1; iter <= budget; iter++ {
		out.Iterations = iter

		params := sdk.MessageNewParams{
			Model:       sdk.Model(a.name),
			MaxTokens:   maxTurnTokens,
			Temperature: sdk.Float(0),
			System:      []sdk.TextBlockParam{{Text: comp.SystemPrompt}},
			Messages:    messages,
		}
		if len(toolDefs) > 0 {
			params.Tools = toolDefs
		}

		msg, err := a.model.CreateMessage(ctx, params)
		if err != nil {
			return out, err
		}

		out.InputTokens += msg.Usage.InputTokens
		out.OutputTokens += msg.Usage.OutputTokens
		a.countTokens(msg.Usage.InputTokens, msg.Usage.OutputTokens)

		text := assistantText(msg)
		out.Trace = append(out.Trace, domain.TraceTurn{
			TurnNumber:   nextTurn(),
			Iteration:    iter,
			Role:         "assistant",
			Content:      preview(text),
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		})
		messages = append(messages, assistantParam(msg))

		switch msg.StopReason {
		case sdk.StopReasonEndTurn:
			if result, ok := domain.ParseReview(text); ok {
				out.Result = result
				return out, nil
			}
			a.log.Warn().Int("iteration", iter).Msg("end_turn without parseable review")
			return a.recover(messages, out), nil

		case sdk.StopReasonMaxTokens:
			messages = append(messages, sdk.NewUserMessage(sdk.NewTextBlock(
				"Your last message was cut off. Finalize now: reply with only the <review> block.")))

		case sdk.StopReasonToolUse:
			results, turns := a.dispatchTools(ctx, msg, iter, nextTurn)
			out.Trace = append(out.Trace, turns...)
			messages = append(messages, sdk.NewUserMessage(results...))

		default:
			a.log.Warn().Str("stop_reason", string(msg.StopReason)).Msg("unexpected stop reason")
			return a.recover(messages, out), nil
		}
	}

	return a.recover(messages, out), nil
}

// dispatchTools runs every tool_use block concurrently and returns the
// tool_result params in the original call order plus one trace turn each
func (a *Agent) dispatchTools(ctx context.Context, msg *sdk.Message, iter int, nextTurn func() int) ([]sdk.ContentBlockParamUnion, []domain.TraceTurn) {
	type call struct {
		id    string
		name  string
		input json.RawMessage
	}
	var calls []call
	for _, block := range msg.Content {
		if block.Type == "tool_use" {
			calls = append(calls, call{id: block.ID, name: block.Name, input: block.Input})
		}
	}

	type outcome struct {
		content string
		isError bool
	}
	outcomes := make([]outcome, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range calls {
		g.Go(func() error {
			content, err := a.surface.Dispatch(gctx, c.name, c.input)
			if err != nil {
				outcomes[i] = outcome{content: err.Error(), isError: true}
				a.countTool(c.name, "error")
				return nil
			}
			outcomes[i] = outcome{content: content}
			a.countTool(c.name, "ok")
			return nil
		})
	}
	_ = g.Wait()

	results := make([]sdk.ContentBlockParamUnion, len(calls))
	turns := make([]domain.TraceTurn, len(calls))
	for i, c := range calls {
		results[i] = sdk.NewToolResultBlock(c.id, outcomes[i].content, outcomes[i].isError)
		turns[i] = domain.TraceTurn{
			TurnNumber: nextTurn(),
			Iteration:  iter,
			Role:       "user",
			ToolName:   c.name,
			ToolInput:  preview(string(c.input)),
			ToolResult: preview(outcomes[i].content),
		}
	}
	return results, turns
}

// recover scans the conversation newest-first for any assistant text that
// still parses, else synthesizes a minimal review so the run stays useful
func (a *Agent) recover(messages []sdk.MessageParam, out Output) Output {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != sdk.MessageParamRoleAssistant {
			continue
		}
		for _, block := range messages[i].Content {
			if block.OfText == nil {
				continue
			}
			if result, ok := domain.ParseReview(block.OfText.Text); ok {
				out.Result = result
				return out
			}
		}
	}
	out.Result = domain.ReviewResult{
		Verdict: domain.VerdictComment,
		Summary: "The automated review could not be completed within its iteration budget. " +
			"No findings are reported; a human review is recommended for this change.",
	}
	return out
}

func initialMessage(diff string, budget int) string {
	capped := diffutil.Truncate(diff, maxDiffChars, diffTruncMarker)
	return fmt.Sprintf(
		"Review the following pull request diff. You have a budget of %d model "+
			"iterations including tool calls; investigate what you need, then finish "+
			"with the <review> block.\n\n```diff\n%s\n```", budget, capped)
}

// assistantText joins the text blocks of a response
func assistantText(msg *sdk.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// assistantParam rebuilds the assistant message for the next request from
// the response's content blocks
func assistantParam(msg *sdk.Message) sdk.MessageParam {
	var blocks []sdk.ContentBlockParamUnion
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			blocks = append(blocks, sdk.NewTextBlock(block.Text))
		case "tool_use":
			blocks = append(blocks, sdk.ContentBlockParamUnion{OfToolUse: &sdk.ToolUseBlockParam{
				ID:    block.ID,
				Name:  block.Name,
				Input: block.Input,
			}})
		}
	}
	return sdk.NewAssistantMessage(blocks...)
}

func preview(s string) string {
	return diffutil.Truncate(s, previewChars, "...")
}

func (a *Agent) countTokens(in, out int64) {
	if a.met == nil {
		return
	}
	a.met.ModelTokens.WithLabelValues("input").Add(float64(in))
	a.met.ModelTokens.WithLabelValues("output").Add(float64(out))
}

func (a *Agent) countTool(name, outcome string) {
	if a.met == nil {
		return
	}
	a.met.ToolCalls.WithLabelValues(name, outcome).Inc()
}
