package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"kgbot/app/client/llm"
	"kgbot/app/util/textutil"

	_ "embed"
)

//go:embed supervisor_prompt.txt
var supervisorPromptTemplate string

// SupervisorAgent is the sole routing node: its structured output is the
// only thing that ever sets the conversation's next-hop value.
type SupervisorAgent struct {
	model llm.Completer
}

func NewSupervisorAgent(model llm.Completer) *SupervisorAgent {
	return &SupervisorAgent{model: model}
}

func (a *SupervisorAgent) Name() string {
	return NodeSupervisor
}

var supervisorMembers = map[string]bool{
	NodeEntityResolver: true,
	NodeSPARQLRunner:   true,
	NodeInterpreter:    true,
	Finish:             true,
}

type routingDecision struct {
	Next string `json:"next"`
}

func (a *SupervisorAgent) Step(ctx context.Context, turn *Turn) (StepResult, error) {
	prompt := fillTemplate(supervisorPromptTemplate, map[string]string{
		"history": turn.State.History(),
	})

	raw, err := a.model.CompleteJSON(ctx, prompt)
	if err != nil {
		return StepResult{}, fmt.Errorf("supervisor completion failed: %w", err)
	}

	var decision routingDecision
	if err = json.Unmarshal([]byte(textutil.RemoveMarkdownQuotes(raw)), &decision); err != nil {
		return StepResult{}, fmt.Errorf("failed to parse routing decision: %w", err)
	}

	if !supervisorMembers[decision.Next] {
		return StepResult{
			Content:  fmt.Sprintf("Unknown routing target %q, finishing the turn.", decision.Next),
			NextHint: Finish,
		}, nil
	}

	content := "Routing to " + decision.Next
	if decision.Next == Finish {
		content = "Finishing the turn."
	}

	return StepResult{Content: content, NextHint: decision.Next}, nil
}
