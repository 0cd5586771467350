package agents

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"kgbot/app/client/llm"
	"kgbot/app/util/textutil"

	_ "embed"
)

//go:embed validator_prompt.txt
var validatorPromptTemplate string

// QuestionValid is kept in validator messages for log compatibility.
const QuestionValid = "The question is valid"

type ValidatorAgent struct {
	model       llm.Completer
	schemaText  func() (string, error)
	knownPlants map[string]bool
}

func NewValidatorAgent(model llm.Completer, schemaText func() (string, error), plantListPath string) (*ValidatorAgent, error) {
	plants, err := loadPlantList(plantListPath)
	if err != nil {
		return nil, err
	}

	return &ValidatorAgent{
		model:       model,
		schemaText:  schemaText,
		knownPlants: plants,
	}, nil
}

func (a *ValidatorAgent) Name() string {
	return NodeValidator
}

type validatorResponse struct {
	Valid  bool     `json:"valid"`
	Reason string   `json:"reason"`
	Plants []string `json:"plants"`
}

func (a *ValidatorAgent) Step(ctx context.Context, turn *Turn) (StepResult, error) {
	schemaText, err := a.schemaText()
	if err != nil {
		return StepResult{}, fmt.Errorf("schema unavailable: %w", err)
	}

	prompt := fillTemplate(validatorPromptTemplate, map[string]string{
		"schema_classes": classSection(schemaText),
		"question":       turn.Question(),
	})

	raw, err := a.model.CompleteJSON(ctx, prompt)
	if err != nil {
		return StepResult{}, fmt.Errorf("validator completion failed: %w", err)
	}

	var response validatorResponse
	if err = json.Unmarshal([]byte(textutil.RemoveMarkdownQuotes(raw)), &response); err != nil {
		return StepResult{}, fmt.Errorf("failed to parse validator response: %w", err)
	}

	if !response.Valid {
		return StepResult{
			Content:  "Question rejected: " + response.Reason,
			NextHint: Terminal,
		}, nil
	}

	if unknown := a.unknownPlant(response.Plants); unknown != "" {
		return StepResult{
			Content:  fmt.Sprintf("Question rejected: %q is not among the plants recorded in this knowledge graph.", unknown),
			NextHint: Terminal,
		}, nil
	}

	return StepResult{Content: QuestionValid, NextHint: NodeSupervisor}, nil
}

func (a *ValidatorAgent) unknownPlant(plants []string) string {
	if len(a.knownPlants) == 0 {
		return ""
	}

	for _, plant := range plants {
		if !a.knownPlants[strings.ToLower(strings.TrimSpace(plant))] {
			return plant
		}
	}

	return ""
}

func loadPlantList(path string) (map[string]bool, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		// Without a list every plant mention is accepted.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open plant list: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse plant list: %w", err)
	}

	plants := make(map[string]bool, len(records))
	for i, record := range records {
		if i == 0 || len(record) == 0 {
			continue
		}
		plants[strings.ToLower(strings.TrimSpace(record[0]))] = true
	}

	return plants, nil
}

// classSection extracts the numbered class list from the schema description,
// enough scope context for validation without the full Turtle graph.
func classSection(schemaText string) string {
	if _, after, found := strings.Cut(schemaText, "Classes:\n"); found {
		if before, _, found := strings.Cut(after, "\nSchema graph:"); found {
			return before
		}
		return after
	}
	return schemaText
}
