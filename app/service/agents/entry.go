package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"kgbot/app/client/llm"
	"kgbot/app/util/textutil"

	_ "embed"
)

//go:embed entry_prompt.txt
var entryPromptTemplate string

// CallingSupervisor is kept in entry messages for log compatibility; routing
// itself consumes the structured hint.
const CallingSupervisor = "Calling the supervisor"

type EntryAgent struct {
	model llm.Completer
}

func NewEntryAgent(model llm.Completer) *EntryAgent {
	return &EntryAgent{model: model}
}

func (a *EntryAgent) Name() string {
	return NodeEntry
}

type entryResponse struct {
	Category string `json:"category"`
	Content  string `json:"content"`
}

func (a *EntryAgent) Step(ctx context.Context, turn *Turn) (StepResult, error) {
	prompt := fillTemplate(entryPromptTemplate, map[string]string{
		"history": turn.State.History(),
		"message": turn.State.LastUserMessage(),
	})

	raw, err := a.model.CompleteJSON(ctx, prompt)
	if err != nil {
		return StepResult{}, fmt.Errorf("entry completion failed: %w", err)
	}

	var response entryResponse
	if err = json.Unmarshal([]byte(textutil.RemoveMarkdownQuotes(raw)), &response); err != nil {
		return StepResult{}, fmt.Errorf("failed to parse entry response: %w", err)
	}

	content := strings.TrimSpace(response.Content)

	if response.Category == "new_question" {
		if !strings.Contains(content, CallingSupervisor) {
			content = content + " " + CallingSupervisor
		}

		return StepResult{Content: content, NextHint: NodeValidator}, nil
	}

	return StepResult{Content: content, NextHint: Terminal}, nil
}

func trimSupervisorCall(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, CallingSupervisor, ""))
}
