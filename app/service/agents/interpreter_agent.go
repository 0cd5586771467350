package agents

import (
	"context"
	"encoding/json"

	"kgbot/app/service/artifact"
	"kgbot/app/service/interpret"
)

// InterpreterAgent reads the latest query artifact and turns it into a
// user-facing answer or a plot.
type InterpreterAgent struct {
	interpreter *interpret.Service
	artifacts   artifact.Store
}

func NewInterpreterAgent(interpreter *interpret.Service, artifacts artifact.Store) *InterpreterAgent {
	return &InterpreterAgent{
		interpreter: interpreter,
		artifacts:   artifacts,
	}
}

func (a *InterpreterAgent) Name() string {
	return NodeInterpreter
}

type sparqlArtifact struct {
	Query        string `json:"query"`
	TempFilePath string `json:"temp_file_path"`
}

func (a *InterpreterAgent) Step(ctx context.Context, turn *Turn) (StepResult, error) {
	payload, err := a.artifacts.Get(ctx, turn.SessionID, turn.ThreadID, artifact.ToolSPARQL)
	if err != nil {
		return StepResult{Content: "I could not access the query result store."}, nil
	}
	if payload == nil {
		return StepResult{Content: "There is no query result to interpret yet."}, nil
	}

	var record sparqlArtifact
	if err = json.Unmarshal(payload, &record); err != nil {
		return StepResult{Content: "The stored query result is unreadable."}, nil
	}

	answer := a.interpreter.Interpret(ctx, turn.SessionID, turn.ThreadID,
		turn.Question(), record.Query, record.TempFilePath)

	kind := KindText
	if answer.Kind == interpret.KindVisualization {
		kind = KindVisualization
	}

	return StepResult{Content: answer.Content, Kind: kind}, nil
}
