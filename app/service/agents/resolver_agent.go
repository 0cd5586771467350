package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"kgbot/app/client/llm"
	"kgbot/app/service/artifact"
	"kgbot/app/util/textutil"

	_ "embed"

	"github.com/tmc/langchaingo/tools"
)

//go:embed resolver_prompt.txt
var resolverPromptTemplate string

// ResolverAgent plans tool calls with one structured completion, executes
// them, and summarises what resolved. Failed resolvers degrade to notes in
// the summary; the supervisor may still proceed to the query.
type ResolverAgent struct {
	model     llm.Completer
	tools     []tools.Tool
	artifacts artifact.Store
}

func NewResolverAgent(model llm.Completer, toolset []tools.Tool, artifacts artifact.Store) *ResolverAgent {
	return &ResolverAgent{
		model:     model,
		tools:     toolset,
		artifacts: artifacts,
	}
}

func (a *ResolverAgent) Name() string {
	return NodeEntityResolver
}

type toolPlan struct {
	Calls []struct {
		Tool  string `json:"tool"`
		Input string `json:"input"`
	} `json:"calls"`
}

func (a *ResolverAgent) Step(ctx context.Context, turn *Turn) (StepResult, error) {
	prompt := fillTemplate(resolverPromptTemplate, map[string]string{
		"tools":    a.describeTools(),
		"question": turn.Question(),
	})

	raw, err := a.model.CompleteJSON(ctx, prompt)
	if err != nil {
		return StepResult{}, fmt.Errorf("resolver completion failed: %w", err)
	}

	var plan toolPlan
	if err = json.Unmarshal([]byte(textutil.RemoveMarkdownQuotes(raw)), &plan); err != nil {
		return StepResult{}, fmt.Errorf("failed to parse tool plan: %w", err)
	}

	if len(plan.Calls) == 0 {
		return StepResult{Content: "No entities to resolve."}, nil
	}

	var lines []string
	for _, call := range plan.Calls {
		tool := a.findTool(call.Tool)
		if tool == nil {
			lines = append(lines, fmt.Sprintf("%s: unknown tool", call.Tool))
			continue
		}

		output, err := tool.Call(ctx, call.Input)
		if err != nil {
			turn.Logger.Warn("Resolver tool failed", "tool", call.Tool, "input", call.Input, "error", err)
			lines = append(lines, fmt.Sprintf("%s(%s): unavailable (%v)", call.Tool, call.Input, err))
			continue
		}

		lines = append(lines, fmt.Sprintf("%s(%s): %s", call.Tool, call.Input, output))
	}

	a.record(ctx, turn, lines)

	return StepResult{Content: "Resolved entities:\n" + strings.Join(lines, "\n")}, nil
}

// record keeps the resolution summary with the interaction's other tool
// outputs. Persistence failures degrade to a log line; the summary still
// reaches the supervisor through the message.
func (a *ResolverAgent) record(ctx context.Context, turn *Turn, lines []string) {
	payload, err := json.Marshal(map[string][]string{"entities": lines})
	if err != nil {
		return
	}

	if err = a.artifacts.Put(ctx, turn.SessionID, turn.ThreadID, artifact.ToolResolver, payload); err != nil {
		turn.Logger.Warn("Failed to record resolver artifact", "error", err)
	}
}

func (a *ResolverAgent) describeTools() string {
	var builder strings.Builder
	for _, tool := range a.tools {
		fmt.Fprintf(&builder, "- %s: %s\n", tool.Name(), tool.Description())
	}
	return builder.String()
}

func (a *ResolverAgent) findTool(name string) tools.Tool {
	for _, tool := range a.tools {
		if tool.Name() == name {
			return tool
		}
	}
	return nil
}
