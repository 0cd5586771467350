package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// scriptedEmbedder maps each text to a fixed vector.
type scriptedEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (e *scriptedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++

	result := make([][]float32, len(texts))
	for i, text := range texts {
		vector, ok := e.vectors[text]
		if !ok {
			vector = []float32{0, 0, 1}
		}
		result[i] = vector
	}
	return result, nil
}

func TestVectorIndexSearch(t *testing.T) {
	embedder := &scriptedEmbedder{vectors: map[string][]float32{
		"extracts":   {1, 0, 0},
		"features":   {0, 1, 0},
		"bioassays":  {0.9, 0.1, 0},
		"my extract": {1, 0.05, 0},
	}}

	index, err := BuildVectorIndex(context.Background(), embedder, []string{"extracts", "features", "bioassays"})
	require.NoError(t, err)
	require.Len(t, index.Vectors, 3)

	hits, err := index.Search(context.Background(), embedder, "my extract", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	require.Equal(t, "extracts", hits[0].Text)
	require.Equal(t, "bioassays", hits[1].Text)
	require.Greater(t, hits[0].Score, hits[1].Score)
}

func TestCosine(t *testing.T) {
	require.InDelta(t, 1.0, cosine([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	require.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	require.Zero(t, cosine([]float32{1, 2}, []float32{1, 2, 3}))
	require.Zero(t, cosine(nil, nil))
	require.Zero(t, cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestVectorIndexGobRoundtrip(t *testing.T) {
	index := &VectorIndex{
		Texts:   []string{"one", "two"},
		Vectors: [][]float32{{1, 0}, {0, 1}},
	}

	path := filepath.Join(t.TempDir(), "index.gob")

	require.NoError(t, SaveVectorIndex(index, path))

	loaded, err := LoadVectorIndex(path)
	require.NoError(t, err)
	require.Equal(t, index.Texts, loaded.Texts)
	require.Equal(t, index.Vectors, loaded.Vectors)

	hits := loaded.SearchVector([]float32{1, 0.1}, 1)
	require.Len(t, hits, 1)
	require.Equal(t, "one", hits[0].Text)
}

func TestLoadVectorIndexMissingFile(t *testing.T) {
	_, err := LoadVectorIndex(filepath.Join(t.TempDir(), "absent.gob"))
	require.Error(t, err)
}
