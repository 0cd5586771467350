package index

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"sort"

	"kgbot/app/client/llm"
)

// VectorIndex is an in-memory cosine-similarity index persisted with gob.
// Indices are built eagerly at startup and are read-only afterwards, so no
// locking is needed on the search path.
type VectorIndex struct {
	Texts   []string
	Vectors [][]float32
}

const embedBatchSize = 64

// BuildVectorIndex embeds all texts in batches.
func BuildVectorIndex(ctx context.Context, embedder llm.Embedder, texts []string) (*VectorIndex, error) {
	index := &VectorIndex{
		Texts:   texts,
		Vectors: make([][]float32, 0, len(texts)),
	}

	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))

		vectors, err := embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch: %w", err)
		}

		index.Vectors = append(index.Vectors, vectors...)
	}

	return index, nil
}

type Hit struct {
	Text  string
	Score float64
}

// Search embeds the query and returns the top-k entries by cosine similarity.
func (idx *VectorIndex) Search(ctx context.Context, embedder llm.Embedder, query string, k int) ([]Hit, error) {
	vectors, err := embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return idx.SearchVector(vectors[0], k), nil
}

func (idx *VectorIndex) SearchVector(query []float32, k int) []Hit {
	hits := make([]Hit, 0, len(idx.Texts))

	for i, vector := range idx.Vectors {
		hits = append(hits, Hit{
			Text:  idx.Texts[i],
			Score: cosine(query, vector),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}

	return hits
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func SaveVectorIndex(index *VectorIndex, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer file.Close()

	if err = gob.NewEncoder(file).Encode(index); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	return nil
}

func LoadVectorIndex(path string) (*VectorIndex, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	var index VectorIndex
	if err = gob.NewDecoder(file).Decode(&index); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}

	return &index, nil
}
