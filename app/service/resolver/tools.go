package resolver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tmc/langchaingo/tools"
)

type resolverTool struct {
	name        string
	description string
	call        func(ctx context.Context, input string) (string, error)
}

func (t *resolverTool) Name() string {
	return t.name
}

func (t *resolverTool) Description() string {
	return t.description
}

func (t *resolverTool) Call(ctx context.Context, input string) (string, error) {
	return t.call(ctx, strings.TrimSpace(input))
}

// Tools exposes the resolvers to the entity-resolver agent.
func (s *Service) Tools() []tools.Tool {
	return []tools.Tool{
		&resolverTool{
			name:        "resolve_chemical",
			description: "Resolve a chemical name to its InChIKey. Input is the plain chemical name. On service failure returns a JSON list of NPC class candidates instead.",
			call: func(ctx context.Context, input string) (string, error) {
				entity, candidates, err := s.ResolveChemical(ctx, input)
				if err != nil {
					return "", err
				}
				if entity != nil {
					return entity.String(), nil
				}

				result, _ := json.Marshal(candidates)
				return string(result), nil
			},
		},
		&resolverTool{
			name:        "resolve_smiles",
			description: "Convert a SMILES structure to its InChIKey. Input is the plain SMILES string.",
			call: func(ctx context.Context, input string) (string, error) {
				entity, err := s.ResolveSMILES(ctx, input)
				if err != nil {
					return "", err
				}
				return entity.String(), nil
			},
		},
		&resolverTool{
			name:        "resolve_taxon",
			description: "Resolve an exact taxon name to its Wikidata IRI. Input is the scientific name, e.g. 'Tabernaemontana coffeoides'.",
			call: func(ctx context.Context, input string) (string, error) {
				entity, err := s.ResolveTaxon(ctx, input)
				if err != nil {
					return "", err
				}
				if entity == nil {
					return "no match", nil
				}
				return entity.String(), nil
			},
		},
		&resolverTool{
			name:        "resolve_target",
			description: "Resolve a biological target name to its ChEMBL IRI. Input is the target name, e.g. 'Acetylcholinesterase'.",
			call: func(ctx context.Context, input string) (string, error) {
				entity, err := s.ResolveTarget(ctx, input)
				if err != nil {
					return "", err
				}
				if entity == nil {
					return "no match", nil
				}
				return entity.String(), nil
			},
		},
		&resolverTool{
			name:        "substructure_search",
			description: "Find Wikidata compounds containing a SMILES substructure. Input is the SMILES fragment. Returns a JSON array of IRIs, possibly empty.",
			call: func(ctx context.Context, input string) (string, error) {
				iris, err := s.SubstructureSearch(ctx, input)
				if err != nil {
					return "", err
				}

				result, _ := json.Marshal(iris)
				return string(result), nil
			},
		},
	}
}
