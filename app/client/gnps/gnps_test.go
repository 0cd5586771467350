package gnps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInChIKeyBare(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "CC(=O)OC1=CC=CC=C1C(=O)O", r.URL.Query().Get("smiles"))

		_, _ = w.Write([]byte("BSYNRYMUTXBXSQ-UHFFFAOYSA-N"))
	}))
	defer server.Close()

	key, err := NewClient(server.URL, time.Second).InChIKey(context.Background(), "CC(=O)OC1=CC=CC=C1C(=O)O")
	require.NoError(t, err)
	require.Equal(t, "BSYNRYMUTXBXSQ-UHFFFAOYSA-N", key)
}

func TestInChIKeyJSONQuoted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`"BSYNRYMUTXBXSQ-UHFFFAOYSA-N"`))
	}))
	defer server.Close()

	key, err := NewClient(server.URL, time.Second).InChIKey(context.Background(), "anything")
	require.NoError(t, err)
	require.Equal(t, "BSYNRYMUTXBXSQ-UHFFFAOYSA-N", key)
}

func TestInChIKeyEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("  \n"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).InChIKey(context.Background(), "anything")
	require.Error(t, err)
}
