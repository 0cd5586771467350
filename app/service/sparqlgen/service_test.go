package sparqlgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kgbot/app/client/sparqlhttp"
	"kgbot/app/config"
	"kgbot/app/service/artifact"
	"kgbot/app/service/index"
	"kgbot/app/service/workspace"

	"github.com/samber/do"
	"github.com/stretchr/testify/require"
)

// scriptedCompleter returns queued responses in order and counts calls.
type scriptedCompleter struct {
	responses []string
	calls     int
}

func (c *scriptedCompleter) Complete(_ context.Context, _ string) (string, error) {
	response := c.responses[c.calls%len(c.responses)]
	c.calls++
	return response, nil
}

func (c *scriptedCompleter) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	return c.Complete(ctx, prompt)
}

type stubSchema struct{ text string }

func (s stubSchema) Get() (string, error) { return s.text, nil }

type stubRetriever struct {
	chunks        []string
	example       index.ExamplePair
	hasExample    bool
	searchQueries []string
}

func (r *stubRetriever) SchemaSearch(_ context.Context, text string, _ int) ([]string, error) {
	r.searchQueries = append(r.searchQueries, text)
	return r.chunks, nil
}

func (r *stubRetriever) NearestExample(string) (index.ExamplePair, bool) {
	return r.example, r.hasExample
}

type memoryArtifacts struct {
	payloads map[string][]byte
}

func (m *memoryArtifacts) OpenInteraction(context.Context, string, string) (int, error) {
	return 1, nil
}

func (m *memoryArtifacts) Put(_ context.Context, _, _, tool string, payload []byte) error {
	if m.payloads == nil {
		m.payloads = map[string][]byte{}
	}
	m.payloads[tool] = payload
	return nil
}

func (m *memoryArtifacts) Get(_ context.Context, _, _, tool string) ([]byte, error) {
	return m.payloads[tool], nil
}

// sparqlServer answers each incoming query with the next scripted body.
func sparqlServer(t *testing.T, bodies ...string) (*sparqlhttp.Client, *int) {
	t.Helper()

	calls := new(int)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		body := bodies[len(bodies)-1]
		if *calls < len(bodies) {
			body = bodies[*calls]
		}
		*calls++

		if body == "malformed" {
			http.Error(w, "MALFORMED QUERY", http.StatusBadRequest)
			return
		}

		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return sparqlhttp.New(server.URL), calls
}

const (
	emptyBody  = `{"head":{"vars":["s"]},"results":{"bindings":[]}}`
	singleBody = `{"head":{"vars":["s"]},"results":{"bindings":[{"s":{"type":"uri","value":"https://example.org/kg/X"}}]}}`
)

func newTestService(t *testing.T, generator *scriptedCompleter, sparql *sparqlhttp.Client, retrieverStub *stubRetriever, budget int) (*Service, *memoryArtifacts) {
	t.Helper()

	cfg := &config.Config{
		Workspace: config.Workspace{Root: t.TempDir(), TTLHours: 1},
		Recovery: config.Recovery{
			SchemaChunks:  12,
			ChunkSize:     1000,
			ContextBudget: budget,
		},
	}

	di := do.New()
	do.ProvideValue(di, cfg)

	workspaceSvc, err := workspace.New(di)
	require.NoError(t, err)

	artifacts := &memoryArtifacts{}

	return &Service{
		cfg:          cfg,
		generator:    generator,
		sparql:       sparql,
		schemaSvc:    stubSchema{text: "Classes:\n  1. <https://example.org/kg/X> (X)\n"},
		indexSvc:     retrieverStub,
		workspaceSvc: workspaceSvc,
		artifacts:    artifacts,
	}, artifacts
}

func TestRunHappyPath(t *testing.T) {
	generator := &scriptedCompleter{responses: []string{
		"```sparql\nSELECT ?s WHERE { ?s a <https://example.org/kg/X> }\n```",
	}}
	sparql, endpointCalls := sparqlServer(t, singleBody)

	svc, artifacts := newTestService(t, generator, sparql, &stubRetriever{}, 8000)

	outcome, err := svc.Run(context.Background(), "s1", "t1", "what is X?", "")
	require.NoError(t, err)

	require.Equal(t, 1, generator.calls)
	require.Equal(t, 1, *endpointCalls)

	require.Equal(t, "SELECT ?s WHERE { ?s a <https://example.org/kg/X> }", outcome.Query)
	require.Equal(t, 1, outcome.Rows)
	require.False(t, outcome.Recovered)
	require.Contains(t, outcome.Result, "https://example.org/kg/X")
	require.NotEmpty(t, outcome.FilePath)

	var record map[string]string
	require.NoError(t, json.Unmarshal(artifacts.payloads[artifact.ToolSPARQL], &record))
	require.Equal(t, outcome.Query, record["query"])
	require.Equal(t, outcome.FilePath, record["temp_file_path"])
}

func TestRunRecoversExactlyOnce(t *testing.T) {
	generator := &scriptedCompleter{responses: []string{
		"SELECT ?s WHERE { ?s a <https://example.org/kg/Wrong> }",
		"SELECT ?s WHERE { ?s a <https://example.org/kg/X> }",
	}}
	sparql, endpointCalls := sparqlServer(t, emptyBody, singleBody)

	retrieverStub := &stubRetriever{
		chunks:     []string{"fragment one", "fragment two"},
		example:    index.ExamplePair{Question: "similar question", Query: "SELECT ..."},
		hasExample: true,
	}

	svc, _ := newTestService(t, generator, sparql, retrieverStub, 8000)

	outcome, err := svc.Run(context.Background(), "s1", "t1", "what is X?", "")
	require.NoError(t, err)

	// One generation, one empty execution, one regeneration, one re-execution.
	require.Equal(t, 2, generator.calls)
	require.Equal(t, 2, *endpointCalls)
	require.Len(t, retrieverStub.searchQueries, 1)

	require.True(t, outcome.Recovered)
	require.Equal(t, 1, outcome.Rows)
}

func TestRunEmptyAfterRecoveryIsAnAnswer(t *testing.T) {
	generator := &scriptedCompleter{responses: []string{
		"SELECT ?s WHERE { ?s a <https://example.org/kg/Wrong> }",
		"SELECT ?s WHERE { ?s a <https://example.org/kg/AlsoWrong> }",
	}}
	sparql, endpointCalls := sparqlServer(t, emptyBody, emptyBody)

	svc, _ := newTestService(t, generator, sparql, &stubRetriever{}, 8000)

	outcome, err := svc.Run(context.Background(), "s1", "t1", "what is X?", "")
	require.NoError(t, err)

	// The second attempt is final: no third generation.
	require.Equal(t, 2, generator.calls)
	require.Equal(t, 2, *endpointCalls)

	require.True(t, outcome.Recovered)
	require.Zero(t, outcome.Rows)
}

func TestRunMalformedQuery(t *testing.T) {
	generator := &scriptedCompleter{responses: []string{"SELECT garbage"}}
	sparql, _ := sparqlServer(t, "malformed")

	svc, _ := newTestService(t, generator, sparql, &stubRetriever{}, 8000)

	_, err := svc.Run(context.Background(), "s1", "t1", "what is X?", "")
	require.ErrorIs(t, err, ErrGenerationInvalid)
}

func TestRunEmptyCompletion(t *testing.T) {
	generator := &scriptedCompleter{responses: []string{"```\n\n```"}}
	sparql, endpointCalls := sparqlServer(t, singleBody)

	svc, _ := newTestService(t, generator, sparql, &stubRetriever{}, 8000)

	_, err := svc.Run(context.Background(), "s1", "t1", "what is X?", "")
	require.ErrorIs(t, err, ErrGenerationInvalid)
	require.Zero(t, *endpointCalls)
}

func TestRunElidesResultOverBudget(t *testing.T) {
	generator := &scriptedCompleter{responses: []string{
		"SELECT ?s WHERE { ?s a <https://example.org/kg/X> }",
	}}
	sparql, _ := sparqlServer(t, singleBody)

	svc, _ := newTestService(t, generator, sparql, &stubRetriever{}, 1)

	outcome, err := svc.Run(context.Background(), "s1", "t1", "what is X?", "")
	require.NoError(t, err)

	require.Empty(t, outcome.Result)
	require.NotEmpty(t, outcome.FilePath)
	require.Equal(t, 1, outcome.Rows)
}

func TestRunBudgetBoundary(t *testing.T) {
	const question = "what is X?"

	run := func(budget int) *Outcome {
		generator := &scriptedCompleter{responses: []string{
			"SELECT ?s WHERE { ?s a <https://example.org/kg/X> }",
		}}
		sparql, _ := sparqlServer(t, singleBody)

		svc, _ := newTestService(t, generator, sparql, &stubRetriever{}, budget)

		outcome, err := svc.Run(context.Background(), "s1", "t1", question, "")
		require.NoError(t, err)
		return outcome
	}

	generous := run(8000)
	require.NotEmpty(t, generous.Result)

	// A result landing exactly on the budget stays inline; one token less
	// and it is elided to the file path.
	exact := CountTokens(generous.Result) + CountTokens(question) + CountTokens(generous.Query)

	atBudget := run(exact)
	require.Equal(t, generous.Result, atBudget.Result)

	underBudget := run(exact - 1)
	require.Empty(t, underBudget.Result)
	require.NotEmpty(t, underBudget.FilePath)
	require.Equal(t, 1, underBudget.Rows)
}

func TestPostprocessStripsDeclaredPrefixes(t *testing.T) {
	raw := "```sparql\nPREFIX xsd: <http://www.w3.org/2001/XMLSchema#>\nSELECT ?s WHERE { ?s ?p ?o }\n```"

	query, err := postprocess(raw)
	require.NoError(t, err)
	require.Equal(t, "SELECT ?s WHERE { ?s ?p ?o }", query)
	require.False(t, strings.Contains(query, "xsd"))
}
