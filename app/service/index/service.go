// Package index holds the read-only retrieval indices built at startup: the
// schema-chunk vector index, the NPC-class vector index, and the TF-IDF
// retriever over curated example queries.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"kgbot/app/client/llm"
	"kgbot/app/config"
	"kgbot/app/service/schema"

	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

// ExamplePair is one curated known-good (question, SPARQL) pair.
type ExamplePair struct {
	Question string `json:"question"`
	Query    string `json:"query"`
}

type Service struct {
	cfg       *config.Config
	embedder  llm.Embedder
	schemaSvc *schema.Service

	schemaIndex *VectorIndex
	npcIndex    *VectorIndex
	examples    []ExamplePair
	templates   *TFIDFRetriever
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Service{
		cfg:       cfg,
		embedder:  do.MustInvoke[llm.Embedder](di),
		schemaSvc: do.MustInvoke[*schema.Service](di),
	}, nil
}

// Build constructs or loads all indices. The vector indices are persisted
// under the index dir keyed by content hash, so unchanged inputs never
// re-embed.
func (s *Service) Build(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.Recovery.IndexDir, 0755); err != nil {
		return fmt.Errorf("failed to create index dir: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		chunks, err := s.schemaSvc.Chunks(s.cfg.Recovery.ChunkSize)
		if err != nil {
			return fmt.Errorf("schema chunks: %w", err)
		}

		s.schemaIndex, err = s.buildOrLoad(groupCtx, "schema", chunks)
		return err
	})

	group.Go(func() error {
		chunks, err := s.npcChunks()
		if err != nil {
			return fmt.Errorf("npc chunks: %w", err)
		}

		s.npcIndex, err = s.buildOrLoad(groupCtx, "npc", chunks)
		return err
	})

	group.Go(func() error {
		return s.loadExamples()
	})

	if err := group.Wait(); err != nil {
		return err
	}

	slog.Info("Indices ready",
		"schema_chunks", len(s.schemaIndex.Texts),
		"npc_chunks", len(s.npcIndex.Texts),
		"examples", len(s.examples))

	return nil
}

// SchemaSearch returns schema fragments most similar to the given text.
func (s *Service) SchemaSearch(ctx context.Context, text string, k int) ([]string, error) {
	hits, err := s.schemaIndex.Search(ctx, s.embedder, text, k)
	if err != nil {
		return nil, err
	}

	return hitTexts(hits), nil
}

// NPCSearch returns NPC class fragments most similar to the given text.
func (s *Service) NPCSearch(ctx context.Context, text string, k int) ([]string, error) {
	hits, err := s.npcIndex.Search(ctx, s.embedder, text, k)
	if err != nil {
		return nil, err
	}

	return hitTexts(hits), nil
}

// NearestExample returns the single curated pair most similar to the text.
func (s *Service) NearestExample(text string) (ExamplePair, bool) {
	if s.templates == nil || len(s.examples) == 0 {
		return ExamplePair{}, false
	}

	hits := s.templates.Rank(text, 1)
	if len(hits) == 0 || hits[0].Score == 0 {
		return ExamplePair{}, false
	}

	return s.examples[hits[0].Index], true
}

func (s *Service) buildOrLoad(ctx context.Context, name string, texts []string) (*VectorIndex, error) {
	path := s.indexPath(name, texts)

	if index, err := LoadVectorIndex(path); err == nil {
		slog.Info("Loaded vector index", "name", name, "path", path)
		return index, nil
	}

	index, err := BuildVectorIndex(ctx, s.embedder, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s index: %w", name, err)
	}

	if err = SaveVectorIndex(index, path); err != nil {
		return nil, fmt.Errorf("failed to persist %s index: %w", name, err)
	}

	return index, nil
}

func (s *Service) indexPath(name string, texts []string) string {
	h := sha256.New()
	for _, text := range texts {
		h.Write([]byte(text))
		h.Write([]byte{0})
	}

	file := fmt.Sprintf("%s-%s.gob", name, hex.EncodeToString(h.Sum(nil))[:16])

	return filepath.Join(s.cfg.Recovery.IndexDir, file)
}

// npcChunks flattens the NPC class CSV into fragments of roughly the
// configured chunk size.
func (s *Service) npcChunks() ([]string, error) {
	file, err := os.Open(s.cfg.Resolvers.NPCClassesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open NPC classes: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse NPC classes: %w", err)
	}

	var lines []string
	for i, record := range records {
		if i == 0 {
			continue // header
		}
		lines = append(lines, strings.Join(record, " | "))
	}

	return schema.SplitChunks(strings.Join(lines, "\n"), s.cfg.Recovery.ChunkSize), nil
}

func (s *Service) loadExamples() error {
	data, err := os.ReadFile(s.cfg.Recovery.ExampleQueriesPath)
	if err != nil {
		return fmt.Errorf("failed to read example queries: %w", err)
	}

	if err = json.Unmarshal(data, &s.examples); err != nil {
		return fmt.Errorf("failed to parse example queries: %w", err)
	}

	documents := make([]string, len(s.examples))
	for i, pair := range s.examples {
		documents[i] = pair.Question + "\n" + pair.Query
	}

	s.templates = NewTFIDFRetriever(documents)

	return nil
}

func hitTexts(hits []Hit) []string {
	texts := make([]string, len(hits))
	for i, hit := range hits {
		texts[i] = hit.Text
	}
	return texts
}
