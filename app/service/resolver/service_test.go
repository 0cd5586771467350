package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kgbot/app/client/cactus"
	"kgbot/app/client/chembl"
	"kgbot/app/client/gnps"
	"kgbot/app/client/wikidata"
	"kgbot/app/config"

	"github.com/stretchr/testify/require"
)

type fakeNPC struct {
	options []string
	err     error
	queries []string
}

func (f *fakeNPC) NPCSearch(_ context.Context, text string, _ int) ([]string, error) {
	f.queries = append(f.queries, text)
	return f.options, f.err
}

func textServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server
}

func TestResolveChemicalViaCactus(t *testing.T) {
	server := textServer(t, http.StatusOK, "InChIKey=REFJWTPEDVJJIY-UHFFFAOYSA-N")

	svc := &Service{
		cactus:   cactus.NewClient(server.URL, time.Second),
		indexSvc: &fakeNPC{},
	}

	entity, candidates, err := svc.ResolveChemical(context.Background(), "quercetin")
	require.NoError(t, err)
	require.Nil(t, candidates)

	require.Equal(t, "quercetin", entity.SurfaceForm)
	require.Equal(t, "REFJWTPEDVJJIY-UHFFFAOYSA-N", entity.IRI)
	require.Equal(t, KindChemical, entity.Kind)
	require.Equal(t, `chemical "quercetin" -> REFJWTPEDVJJIY-UHFFFAOYSA-N`, entity.String())
}

func TestResolveChemicalFallsBackToNPC(t *testing.T) {
	server := textServer(t, http.StatusNotFound, "not found")
	npc := &fakeNPC{options: []string{"Flavonols | Flavonoids", "Flavones | Flavonoids"}}

	svc := &Service{
		cactus:   cactus.NewClient(server.URL, time.Second),
		indexSvc: npc,
	}

	entity, candidates, err := svc.ResolveChemical(context.Background(), "some flavonoid")
	require.NoError(t, err)
	require.Nil(t, entity)

	require.Equal(t, "some flavonoid", candidates.SurfaceForm)
	require.Len(t, candidates.Options, 2)
	require.Equal(t, []string{"some flavonoid"}, npc.queries)
}

func TestResolveChemicalBothChannelsFail(t *testing.T) {
	server := textServer(t, http.StatusInternalServerError, "boom")

	svc := &Service{
		cactus:   cactus.NewClient(server.URL, time.Second),
		indexSvc: &fakeNPC{err: errors.New("index not built")},
	}

	_, _, err := svc.ResolveChemical(context.Background(), "anything")
	require.Error(t, err)
}

func TestResolveTaxonUnknownIsNotAnError(t *testing.T) {
	server := textServer(t, http.StatusOK, `{"head":{"vars":["wikidata"]},"results":{"bindings":[]}}`)

	svc := &Service{wikidata: wikidata.NewClient(server.URL, time.Second)}

	entity, err := svc.ResolveTaxon(context.Background(), "Imaginaria fictiva")
	require.NoError(t, err)
	require.Nil(t, entity)
}

func TestToolsCoverEveryResolver(t *testing.T) {
	svc := &Service{cfg: &config.Config{}}

	names := make(map[string]bool)
	for _, tool := range svc.Tools() {
		require.NotEmpty(t, tool.Description())
		names[tool.Name()] = true
	}

	for _, want := range []string{
		"resolve_chemical", "resolve_smiles", "resolve_taxon",
		"resolve_target", "substructure_search",
	} {
		require.True(t, names[want], want)
	}
}

func TestResolveTargetTool(t *testing.T) {
	server := textServer(t, http.StatusOK, `<?xml version="1.0"?>
<response><targets><target>
  <target_chembl_id>CHEMBL220</target_chembl_id>
  <pref_name>Acetylcholinesterase</pref_name>
</target></targets></response>`)

	svc := &Service{chembl: chembl.NewClient(server.URL, time.Second)}

	var target interface {
		Call(ctx context.Context, input string) (string, error)
	}
	for _, tool := range svc.Tools() {
		if tool.Name() == "resolve_target" {
			target = tool
		}
	}
	require.NotNil(t, target)

	// Inputs arrive with model whitespace attached.
	got, err := target.Call(context.Background(), "  Acetylcholinesterase \n")
	require.NoError(t, err)
	require.Equal(t, `target "Acetylcholinesterase" -> http://rdf.ebi.ac.uk/resource/chembl/target/CHEMBL220`, got)
}

func TestResolveSMILES(t *testing.T) {
	server := textServer(t, http.StatusOK, "BSYNRYMUTXBXSQ-UHFFFAOYSA-N")

	svc := &Service{gnps: gnps.NewClient(server.URL, time.Second)}

	entity, err := svc.ResolveSMILES(context.Background(), "CC(=O)OC1=CC=CC=C1C(=O)O")
	require.NoError(t, err)
	require.Equal(t, KindStructure, entity.Kind)
	require.Equal(t, "BSYNRYMUTXBXSQ-UHFFFAOYSA-N", entity.IRI)
}
