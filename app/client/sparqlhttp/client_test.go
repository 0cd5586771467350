package sparqlhttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const selectBody = `{
	"head": {"vars": ["s", "label"]},
	"results": {"bindings": [
		{"s": {"type": "uri", "value": "https://example.org/kg/Extract"},
		 "label": {"type": "literal", "value": "extract"}},
		{"s": {"type": "uri", "value": "https://example.org/kg/Feature"}}
	]}
}`

func TestSelect(t *testing.T) {
	var gotQuery, gotAccept string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotQuery = r.PostForm.Get("query")
		gotAccept = r.Header.Get("Accept")

		w.Header().Set("Content-Type", "application/sparql-results+json")
		_, _ = w.Write([]byte(selectBody))
	}))
	defer server.Close()

	client := New(server.URL)

	result, err := client.Select(context.Background(), "SELECT ?s ?label WHERE { ?s ?p ?o }")
	require.NoError(t, err)

	require.Equal(t, "SELECT ?s ?label WHERE { ?s ?p ?o }", gotQuery)
	require.Equal(t, "application/sparql-results+json", gotAccept)

	require.Equal(t, []string{"s", "label"}, result.Vars)
	require.Len(t, result.Rows, 2)
	require.Equal(t, "https://example.org/kg/Extract", result.Rows[0]["s"])
	require.Equal(t, "extract", result.Rows[0]["label"])
	require.Empty(t, result.Rows[1]["label"])
	require.False(t, result.Empty())
}

func TestSelectEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"head":{"vars":["s"]},"results":{"bindings":[]}}`))
	}))
	defer server.Close()

	result, err := New(server.URL).Select(context.Background(), "SELECT ?s WHERE { ?s ?p ?o }")
	require.NoError(t, err)
	require.True(t, result.Empty())
}

func TestSelectTerms(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"head": {"vars": ["v"]},
			"results": {"bindings": [
				{"v": {"type": "literal", "value": "3.14", "datatype": "http://www.w3.org/2001/XMLSchema#decimal"}}
			]}
		}`))
	}))
	defer server.Close()

	result, err := New(server.URL).SelectTerms(context.Background(), "SELECT ?v WHERE { ?s ?p ?v }")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	term := result.Rows[0]["v"]
	require.Equal(t, "literal", term.Type)
	require.Equal(t, "3.14", term.Value)
	require.Equal(t, "http://www.w3.org/2001/XMLSchema#decimal", term.Datatype)
}

func TestMalformedQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "MALFORMED QUERY: unexpected token\nsecond line", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := New(server.URL).Select(context.Background(), "SELECT garbage")
	require.ErrorIs(t, err, ErrMalformedQuery)
	require.Contains(t, err.Error(), "unexpected token")
	require.NotContains(t, err.Error(), "second line")
}

func TestServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := New(server.URL).Select(context.Background(), "SELECT ?s WHERE {}")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrMalformedQuery)
}

func TestAsk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"head":{},"boolean":true}`))
	}))
	defer server.Close()

	ok, err := New(server.URL).Ask(context.Background(), "ASK {}")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "alice", user)
		require.Equal(t, "secret", pass)

		_, _ = w.Write([]byte(`{"head":{"vars":[]},"results":{"bindings":[]}}`))
	}))
	defer server.Close()

	client := New(server.URL, WithBasicAuth("alice", "secret"))

	_, err := client.Select(context.Background(), "SELECT * WHERE {}")
	require.NoError(t, err)
}
