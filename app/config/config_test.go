package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const minimalYAML = `graph:
  endpoint: "https://example.org/sparql"
llm:
  entry: {base_url: "https://api.openai.com/v1", token: "sk-test", model: "gpt-4o-mini"}
  validator: {base_url: "https://api.openai.com/v1", token: "sk-test", model: "gpt-4o-mini"}
  supervisor: {base_url: "https://api.openai.com/v1", token: "sk-test", model: "gpt-4o"}
  resolver: {base_url: "https://api.openai.com/v1", token: "sk-test", model: "gpt-4o-mini"}
  generator: {base_url: "https://api.openai.com/v1", token: "sk-test", model: "gpt-4o"}
  interpreter: {base_url: "https://api.openai.com/v1", token: "sk-test", model: "gpt-4o"}
  embeddings: {base_url: "https://api.openai.com/v1", token: "sk-test", model: "text-embedding-3-small"}
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	require.Equal(t, "rdf", cfg.Schema.Standard)
	require.Equal(t, 1000, cfg.Schema.SampleSize)
	require.NotNil(t, cfg.Schema.ExcludeHexSuffix)
	require.True(t, *cfg.Schema.ExcludeHexSuffix)
	require.Equal(t, "sqlite", cfg.Store.Backend)
	require.Equal(t, 24, cfg.Store.TTLHours)
	require.Equal(t, 12, cfg.Recovery.SchemaChunks)
	require.Equal(t, 8000, cfg.Recovery.ContextBudget)
	require.Equal(t, 40, cfg.HTTP.MaxSupervisorDecisions)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, 600, cfg.Graph.TimeoutSeconds)
}

func TestLoadFileExplicitValuesWin(t *testing.T) {
	content := minimalYAML + `
schema:
  standard: "rdf"
  sample_size: 50
  exclude_hex_suffix: false
recovery:
  context_budget: 123
http:
  max_supervisor_decisions: 5
`
	cfg, err := LoadFile(writeConfig(t, content))
	require.NoError(t, err)

	require.Equal(t, 50, cfg.Schema.SampleSize)
	require.False(t, *cfg.Schema.ExcludeHexSuffix)
	require.Equal(t, 123, cfg.Recovery.ContextBudget)
	require.Equal(t, 5, cfg.HTTP.MaxSupervisorDecisions)
}

func TestLoadFileRequiresEndpoint(t *testing.T) {
	content := strings.Replace(minimalYAML, `  endpoint: "https://example.org/sparql"`, "  user: someone", 1)

	_, err := LoadFile(writeConfig(t, content))
	require.Error(t, err)
}

func TestLoadFileRejectsUnknownBackend(t *testing.T) {
	content := minimalYAML + `
store:
  backend: "memory"
`
	_, err := LoadFile(writeConfig(t, content))
	require.Error(t, err)
}

func TestLoadFileEnvOverrides(t *testing.T) {
	t.Setenv("KG_ENDPOINT_URL", "https://override.example.org/sparql")
	t.Setenv("KGBOT_DB_PATH", "/tmp/other.db")

	cfg, err := LoadFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	require.Equal(t, "https://override.example.org/sparql", cfg.Graph.Endpoint)
	require.Equal(t, "/tmp/other.db", cfg.Store.SQLitePath)
}

func TestSetToken(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	cfg.LLM.SetToken("sk-replaced")

	require.Equal(t, "sk-replaced", cfg.LLM.Entry.Token)
	require.Equal(t, "sk-replaced", cfg.LLM.Embeddings.Token)
}
