package sparqlgen

import (
	"os"
	"path/filepath"
	"testing"

	"kgbot/app/client/sparqlhttp"

	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	result := &sparqlhttp.Result{
		Vars: []string{"name", "mass"},
		Rows: []map[string]string{
			{"name": "quercetin", "mass": "302.04"},
			{"mass": "271.06", "name": "apigenin, dried"},
			{"name": "partial"},
		},
	}

	path := filepath.Join(t.TempDir(), "result.csv")

	rendered, err := WriteCSV(result, path)
	require.NoError(t, err)

	want := "name,mass\n" +
		"quercetin,302.04\n" +
		"\"apigenin, dried\",271.06\n" +
		"partial,\n"
	require.Equal(t, want, rendered)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, rendered, string(onDisk))
}

func TestWriteCSVEmptyResult(t *testing.T) {
	result := &sparqlhttp.Result{Vars: []string{"s"}}

	path := filepath.Join(t.TempDir(), "empty.csv")

	rendered, err := WriteCSV(result, path)
	require.NoError(t, err)
	require.Equal(t, "s\n", rendered)
}

func TestCountTokens(t *testing.T) {
	require.Zero(t, CountTokens(""))
	require.Greater(t, CountTokens("SELECT ?s WHERE { ?s ?p ?o }"), 0)

	// Longer text always costs more tokens.
	short := CountTokens("one sentence")
	long := CountTokens("one sentence, and then a considerably longer continuation of it")
	require.Greater(t, long, short)
}
