// Package interpret grounds natural-language answers in the CSV artifacts
// produced by the SPARQL runner. It never re-executes queries and never
// touches the CSV contents.
package interpret

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"kgbot/app/client/llm"
	"kgbot/app/config"
	"kgbot/app/service/artifact"
	"kgbot/app/util/textutil"

	_ "embed"

	"github.com/samber/do"
)

//go:embed interpret_prompt.txt
var interpretPromptTemplate string

const usiDashboardURL = "https://metabolomics-usi.gnps2.org/dashinterface/"

const (
	KindText          = "text"
	KindVisualization = "visualization"
)

// Answer is either a grounded text reply or a Plotly-compatible plot spec.
type Answer struct {
	Kind    string
	Content string
}

type Service struct {
	cfg       *config.Config
	model     llm.Completer
	artifacts artifact.Store
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Service{
		cfg:       cfg,
		model:     llm.NewClient(cfg.LLM.Interpreter),
		artifacts: do.MustInvoke[artifact.Store](di),
	}, nil
}

// Interpret reads the CSV at filePath and produces an answer. File and model
// failures come back as explanatory text, not errors: the turn should end
// with something the user can read.
func (s *Service) Interpret(ctx context.Context, sessionID, threadID, question, query, filePath string) Answer {
	header, rows, err := readCSV(filePath)
	if err != nil {
		return Answer{Kind: KindText, Content: fmt.Sprintf("I could not read the result file: %v", err)}
	}

	shown := rows
	if len(shown) > s.cfg.Interpreter.MaxRows {
		shown = shown[:s.cfg.Interpreter.MaxRows]
	}

	prompt := fillTemplate(interpretPromptTemplate, map[string]string{
		"question": question,
		"query":    query,
		"rows":     strconv.Itoa(len(rows)),
		"max_rows": strconv.Itoa(s.cfg.Interpreter.MaxRows),
		"csv":      renderCSV(header, shown),
	})

	raw, err := s.model.CompleteJSON(ctx, prompt)
	if err != nil {
		return Answer{Kind: KindText, Content: fmt.Sprintf("I could not interpret the result: %v", err)}
	}

	return s.parseAnswer(ctx, sessionID, threadID, raw)
}

type modelAnswer struct {
	Type   string          `json:"type"`
	Answer string          `json:"answer"`
	Spec   json.RawMessage `json:"spec"`
}

func (s *Service) parseAnswer(ctx context.Context, sessionID, threadID, raw string) Answer {
	cleaned := textutil.RemoveMarkdownQuotes(raw)

	var parsed modelAnswer
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		// A malformed envelope still usually carries usable prose.
		return Answer{Kind: KindText, Content: cleaned}
	}

	if parsed.Type == "plot" && len(parsed.Spec) > 0 {
		if err := s.artifacts.Put(ctx, sessionID, threadID, artifact.ToolInterpreter, parsed.Spec); err == nil {
			return Answer{Kind: KindVisualization, Content: string(parsed.Spec)}
		}
	}

	return Answer{Kind: KindText, Content: parsed.Answer}
}

// USIURL templates the public spectrum dashboard for a Universal Spectrum
// Identifier.
func USIURL(usi string) string {
	return usiDashboardURL + "?usi1=" + url.QueryEscape(usi)
}

func readCSV(path string) ([]string, [][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	return records[0], records[1:], nil
}

func renderCSV(header []string, rows [][]string) string {
	var builder strings.Builder

	writer := csv.NewWriter(&builder)
	_ = writer.Write(header)
	_ = writer.WriteAll(rows)
	writer.Flush()

	return builder.String()
}

func fillTemplate(template string, values map[string]string) string {
	result := template
	for key, value := range values {
		result = strings.ReplaceAll(result, "{"+key+"}", value)
	}
	return result
}
