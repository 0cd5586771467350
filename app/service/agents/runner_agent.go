package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"kgbot/app/service/sparqlgen"
)

// RunnerAgent wraps the generation pipeline. Generation and endpoint
// failures become messages for the supervisor, never panics of the turn.
type RunnerAgent struct {
	generator *sparqlgen.Service
}

func NewRunnerAgent(generator *sparqlgen.Service) *RunnerAgent {
	return &RunnerAgent{generator: generator}
}

func (a *RunnerAgent) Name() string {
	return NodeSPARQLRunner
}

func (a *RunnerAgent) Step(ctx context.Context, turn *Turn) (StepResult, error) {
	outcome, err := a.generator.Run(ctx, turn.SessionID, turn.ThreadID, turn.Question(), turn.Entities())
	if err != nil {
		if errors.Is(err, sparqlgen.ErrGenerationInvalid) {
			return StepResult{
				Content: fmt.Sprintf("I could not produce a valid query for this question: %v", err),
			}, nil
		}

		return StepResult{
			Content: fmt.Sprintf("The knowledge graph endpoint failed: %v", err),
		}, nil
	}

	payload, err := json.Marshal(outcome)
	if err != nil {
		return StepResult{}, fmt.Errorf("failed to marshal outcome: %w", err)
	}

	return StepResult{Content: string(payload)}, nil
}
