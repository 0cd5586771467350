// Package schema derives a textual description of the remote knowledge graph
// by sampling instances per class. The description grounds SPARQL generation;
// it is built once and cached on disk for the lifetime of the endpoint config.
package schema

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"kgbot/app/client/sparqlhttp"
	"kgbot/app/config"

	"github.com/samber/do"
)

// ErrNotImplemented is returned for the rdfs and owl introspection standards,
// which are declared but deliberately unimplemented.
var ErrNotImplemented = errors.New("schema standard not implemented")

// ErrNotBuilt is returned by Get before a successful Build.
var ErrNotBuilt = errors.New("schema not built")

type Service struct {
	cfg    *config.Config
	sparql *sparqlhttp.Client

	mu          sync.RWMutex
	description string
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:    do.MustInvoke[*config.Config](di),
		sparql: do.MustInvoke[*sparqlhttp.Client](di),
	}, nil
}

// Build produces the schema description, preferring the on-disk cache. The
// cache key covers everything that shapes the output, so changing the
// blacklist or the hex-suffix filter forces a rebuild.
func (s *Service) Build(ctx context.Context) error {
	switch s.cfg.Schema.Standard {
	case "rdf":
	case "rdfs", "owl":
		return fmt.Errorf("%w: %s", ErrNotImplemented, s.cfg.Schema.Standard)
	default:
		return fmt.Errorf("unknown schema standard %q", s.cfg.Schema.Standard)
	}

	cachePath := s.cachePath()

	if data, err := os.ReadFile(cachePath); err == nil {
		s.mu.Lock()
		s.description = string(data)
		s.mu.Unlock()

		slog.Info("Loaded schema from cache", "path", cachePath)
		return nil
	}

	// Probe before the expensive sampling pass: a reachable endpoint with
	// zero triples would otherwise produce an empty description and cache it.
	populated, err := s.sparql.Ask(ctx, "ASK { ?s ?p ?o }")
	if err != nil {
		return fmt.Errorf("endpoint probe failed: %w", err)
	}
	if !populated {
		return fmt.Errorf("knowledge graph at %s holds no triples", s.sparql.Endpoint())
	}

	description, err := s.introspect(ctx)
	if err != nil {
		return fmt.Errorf("schema introspection failed: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		return fmt.Errorf("failed to create schema cache dir: %w", err)
	}
	if err = os.WriteFile(cachePath, []byte(description), 0644); err != nil {
		return fmt.Errorf("failed to write schema cache: %w", err)
	}

	s.mu.Lock()
	s.description = description
	s.mu.Unlock()

	slog.Info("Built schema", "bytes", len(description), "path", cachePath)

	return nil
}

func (s *Service) Get() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.description == "" {
		return "", ErrNotBuilt
	}

	return s.description, nil
}

// Chunks splits the description into fragments of roughly size characters,
// breaking on line boundaries. Used to build the recovery vector index.
func (s *Service) Chunks(size int) ([]string, error) {
	description, err := s.Get()
	if err != nil {
		return nil, err
	}

	return SplitChunks(description, size), nil
}

func SplitChunks(text string, size int) []string {
	if size <= 0 {
		size = 1000
	}

	var chunks []string
	var builder strings.Builder

	for _, line := range strings.Split(text, "\n") {
		if builder.Len() > 0 && builder.Len()+len(line)+1 > size {
			chunks = append(chunks, builder.String())
			builder.Reset()
		}
		if builder.Len() > 0 {
			builder.WriteByte('\n')
		}
		builder.WriteString(line)
	}

	if builder.Len() > 0 {
		chunks = append(chunks, builder.String())
	}

	return chunks
}

func (s *Service) cachePath() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%v|%v|%v",
		s.sparql.Endpoint(),
		s.cfg.Schema.Standard,
		s.cfg.Schema.SampleSize,
		s.cfg.Schema.ExcludedURIs,
		*s.cfg.Schema.ExcludeHexSuffix,
		s.cfg.Schema.IntrospectionQueries,
	)

	name := fmt.Sprintf("schema-%s.txt", hex.EncodeToString(h.Sum(nil))[:16])

	return filepath.Join(s.cfg.Schema.CacheDir, name)
}
