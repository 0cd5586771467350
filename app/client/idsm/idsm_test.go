package idsm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubstructureSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		query := r.PostForm.Get("query")
		require.Contains(t, query, "sachem:substructureSearch")
		require.Contains(t, query, `"c1ccccc1"`)
		require.Contains(t, query, "LIMIT 50")

		_, _ = w.Write([]byte(`{
			"head": {"vars": ["compound"]},
			"results": {"bindings": [
				{"compound": {"type": "uri", "value": "http://www.wikidata.org/entity/Q2270"}},
				{"compound": {"type": "uri", "value": "http://www.wikidata.org/entity/Q12345"}}
			]}
		}`))
	}))
	defer server.Close()

	iris, err := NewClient(server.URL, time.Second).SubstructureSearch(context.Background(), "c1ccccc1")
	require.NoError(t, err)
	require.Equal(t, []string{
		"http://www.wikidata.org/entity/Q2270",
		"http://www.wikidata.org/entity/Q12345",
	}, iris)
}

func TestSubstructureSearchEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"head":{"vars":["compound"]},"results":{"bindings":[]}}`))
	}))
	defer server.Close()

	iris, err := NewClient(server.URL, time.Second).SubstructureSearch(context.Background(), "c1ccccc1")
	require.NoError(t, err)
	require.Empty(t, iris)
}
