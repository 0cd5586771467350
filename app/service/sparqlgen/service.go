// Package sparqlgen generates SPARQL from questions, executes it, and on an
// empty result runs the two-channel retrieval recovery: schema fragments by
// embedding similarity plus the nearest curated example by TF-IDF.
package sparqlgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"kgbot/app/client/llm"
	"kgbot/app/client/sparqlhttp"
	"kgbot/app/config"
	"kgbot/app/service/artifact"
	"kgbot/app/service/index"
	"kgbot/app/service/schema"
	"kgbot/app/service/workspace"
	"kgbot/app/util/textutil"

	_ "embed"

	"github.com/samber/do"
)

//go:embed generate_prompt.txt
var generatePromptTemplate string

//go:embed improve_prompt.txt
var improvePromptTemplate string

// ErrGenerationInvalid marks queries the endpoint refused to parse, from
// either generation attempt.
var ErrGenerationInvalid = errors.New("generated SPARQL is invalid")

// Outcome is what the SPARQLRunner agent reports back. Result is empty when
// inlining it would blow the context budget; the interpreter then reads the
// file instead.
type Outcome struct {
	Question  string `json:"question"`
	Query     string `json:"generated_sparql_query"`
	FilePath  string `json:"file_path"`
	Result    string `json:"result,omitempty"`
	Rows      int    `json:"rows"`
	Recovered bool   `json:"recovered"`
}

// schemaSource and retriever are the slices of the schema and index services
// the generator needs.
type schemaSource interface {
	Get() (string, error)
}

type retriever interface {
	SchemaSearch(ctx context.Context, text string, k int) ([]string, error)
	NearestExample(text string) (index.ExamplePair, bool)
}

type Service struct {
	cfg          *config.Config
	generator    llm.Completer
	sparql       *sparqlhttp.Client
	schemaSvc    schemaSource
	indexSvc     retriever
	workspaceSvc *workspace.Service
	artifacts    artifact.Store
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Service{
		cfg:          cfg,
		generator:    llm.NewClient(cfg.LLM.Generator),
		sparql:       do.MustInvoke[*sparqlhttp.Client](di),
		schemaSvc:    do.MustInvoke[*schema.Service](di),
		indexSvc:     do.MustInvoke[*index.Service](di),
		workspaceSvc: do.MustInvoke[*workspace.Service](di),
		artifacts:    do.MustInvoke[artifact.Store](di),
	}, nil
}

// Run drives the full generate → execute → recover pipeline for one
// question. The second attempt is final: an empty result after recovery is a
// truthful answer, not an error.
func (s *Service) Run(ctx context.Context, sessionID, threadID, question, entities string) (*Outcome, error) {
	schemaText, err := s.schemaSvc.Get()
	if err != nil {
		return nil, fmt.Errorf("schema unavailable: %w", err)
	}

	query, err := s.generate(ctx, question, entities, schemaText)
	if err != nil {
		return nil, err
	}

	result, err := s.execute(ctx, query)
	if err != nil {
		return nil, err
	}

	recovered := false
	if result.Empty() {
		slog.Info("Empty result, running recovery", "question", question)

		query, result, err = s.recover(ctx, query, entities)
		if err != nil {
			return nil, err
		}
		recovered = true
	}

	return s.persist(ctx, sessionID, threadID, question, query, result, recovered)
}

func (s *Service) generate(ctx context.Context, question, entities, schemaText string) (string, error) {
	prompt := fillTemplate(generatePromptTemplate, map[string]string{
		"question": question,
		"entities": entities,
		"schema":   schemaText,
	})

	raw, err := s.generator.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	return postprocess(raw)
}

// recover runs the two retrieval channels and one improvement completion.
func (s *Service) recover(ctx context.Context, failedQuery, entities string) (string, *sparqlhttp.Result, error) {
	chunks, err := s.indexSvc.SchemaSearch(ctx, failedQuery, s.cfg.Recovery.SchemaChunks)
	if err != nil {
		return "", nil, fmt.Errorf("schema retrieval failed: %w", err)
	}

	exampleQuestion := "none available"
	exampleQuery := ""
	if example, ok := s.indexSvc.NearestExample(failedQuery); ok {
		exampleQuestion = example.Question
		exampleQuery = example.Query
	}

	prompt := fillTemplate(improvePromptTemplate, map[string]string{
		"failed_sparql":    failedQuery,
		"narrowed_schema":  strings.Join(chunks, "\n\n"),
		"entities":         entities,
		"example_question": exampleQuestion,
		"example_query":    exampleQuery,
	})

	raw, err := s.generator.Complete(ctx, prompt)
	if err != nil {
		return "", nil, fmt.Errorf("regeneration failed: %w", err)
	}

	query, err := postprocess(raw)
	if err != nil {
		return "", nil, err
	}

	result, err := s.execute(ctx, query)
	if err != nil {
		return "", nil, err
	}

	return query, result, nil
}

func (s *Service) execute(ctx context.Context, query string) (*sparqlhttp.Result, error) {
	result, err := s.sparql.Select(ctx, query)
	if errors.Is(err, sparqlhttp.ErrMalformedQuery) {
		return nil, fmt.Errorf("%w: %s", ErrGenerationInvalid, err)
	}
	if err != nil {
		return nil, fmt.Errorf("endpoint error: %w", err)
	}

	return result, nil
}

// persist writes the CSV artifact, records it in the interaction store, and
// applies the token-budget elision rule.
func (s *Service) persist(ctx context.Context, sessionID, threadID, question, query string, result *sparqlhttp.Result, recovered bool) (*Outcome, error) {
	path, err := s.workspaceSvc.NewArtifactPath(sessionID, "csv")
	if err != nil {
		return nil, fmt.Errorf("failed to allocate artifact: %w", err)
	}

	rendered, err := WriteCSV(result, path)
	if err != nil {
		return nil, fmt.Errorf("failed to write result CSV: %w", err)
	}

	outcome := &Outcome{
		Question:  question,
		Query:     query,
		FilePath:  path,
		Rows:      len(result.Rows),
		Recovered: recovered,
	}

	total := CountTokens(rendered) + CountTokens(question) + CountTokens(query)
	if total <= s.cfg.Recovery.ContextBudget {
		outcome.Result = rendered
	} else {
		slog.Info("Result exceeds context budget, returning path only",
			"tokens", total, "budget", s.cfg.Recovery.ContextBudget)
	}

	record, err := json.Marshal(map[string]string{
		"query":          query,
		"temp_file_path": path,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifact record: %w", err)
	}

	if err = s.artifacts.Put(ctx, sessionID, threadID, artifact.ToolSPARQL, record); err != nil {
		return nil, fmt.Errorf("failed to record artifact: %w", err)
	}

	return outcome, nil
}

// postprocess strips markdown fences and the unused prefix declarations the
// generator tends to emit.
func postprocess(raw string) (string, error) {
	query := textutil.RemoveMarkdownQuotes(raw)
	query = textutil.DropPrefixDeclarations(query, "xsd", "foaf")
	query = strings.TrimSpace(query)

	if query == "" {
		return "", fmt.Errorf("%w: empty completion", ErrGenerationInvalid)
	}

	return query, nil
}

func fillTemplate(template string, values map[string]string) string {
	result := template
	for key, value := range values {
		result = strings.ReplaceAll(result, "{"+key+"}", value)
	}
	return result
}
