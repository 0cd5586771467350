// Package resolver turns domain surface forms (chemical names, SMILES,
// taxa, targets) into authoritative IRIs via external services, with a
// vector-retrieval fallback over NPC classes for chemicals.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kgbot/app/client/cactus"
	"kgbot/app/client/chembl"
	"kgbot/app/client/gnps"
	"kgbot/app/client/idsm"
	"kgbot/app/client/wikidata"
	"kgbot/app/config"
	"kgbot/app/service/index"

	"github.com/samber/do"
)

const npcFallbackCandidates = 6

type EntityKind string

const (
	KindChemical  EntityKind = "Chemical"
	KindTaxon     EntityKind = "Taxon"
	KindTarget    EntityKind = "Target"
	KindStructure EntityKind = "Structure"
)

// ResolvedEntity is the canonical answer of every resolver: one surface
// form, one IRI (or InChIKey), one kind.
type ResolvedEntity struct {
	SurfaceForm string     `json:"surface_form"`
	IRI         string     `json:"iri"`
	Kind        EntityKind `json:"kind"`
}

// Candidates carries the NPC fallback output: no canonical IRI, but a short
// list for the LLM agent to choose from.
type Candidates struct {
	SurfaceForm string   `json:"surface_form"`
	Options     []string `json:"options"`
}

// npcSearcher is the slice of the index service the chemical fallback needs.
type npcSearcher interface {
	NPCSearch(ctx context.Context, text string, k int) ([]string, error)
}

type Service struct {
	cfg      *config.Config
	cactus   *cactus.Client
	gnps     *gnps.Client
	chembl   *chembl.Client
	wikidata *wikidata.Client
	idsm     *idsm.Client
	indexSvc npcSearcher
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	timeout := time.Duration(cfg.Resolvers.TimeoutSeconds) * time.Second

	return &Service{
		cfg:      cfg,
		cactus:   cactus.NewClient(cfg.Resolvers.CactusURL, timeout),
		gnps:     gnps.NewClient(cfg.Resolvers.GNPSURL, timeout),
		chembl:   chembl.NewClient(cfg.Resolvers.ChEMBLURL, timeout),
		wikidata: wikidata.NewClient(cfg.Resolvers.WikidataURL, timeout),
		idsm:     idsm.NewClient(cfg.Resolvers.IDSMURL, timeout),
		indexSvc: do.MustInvoke[*index.Service](di),
	}, nil
}

// ResolveChemical resolves a chemical name to an InChIKey via CACTUS. On any
// service failure it degrades to NPC-class retrieval and returns candidates
// instead of a canonical entity.
func (s *Service) ResolveChemical(ctx context.Context, name string) (*ResolvedEntity, *Candidates, error) {
	key, err := s.cactus.StdInChIKey(ctx, name)
	if err == nil {
		return &ResolvedEntity{SurfaceForm: name, IRI: key, Kind: KindChemical}, nil, nil
	}

	slog.Warn("CACTUS resolution failed, falling back to NPC retrieval",
		"name", name, "error", err)

	options, npcErr := s.indexSvc.NPCSearch(ctx, name, npcFallbackCandidates)
	if npcErr != nil {
		return nil, nil, fmt.Errorf("chemical resolution failed: %w (fallback: %w)", err, npcErr)
	}

	return nil, &Candidates{SurfaceForm: name, Options: options}, nil
}

// ResolveSMILES converts a SMILES structure to an InChIKey via GNPS.
func (s *Service) ResolveSMILES(ctx context.Context, smiles string) (*ResolvedEntity, error) {
	key, err := s.gnps.InChIKey(ctx, smiles)
	if err != nil {
		return nil, err
	}

	return &ResolvedEntity{SurfaceForm: smiles, IRI: key, Kind: KindStructure}, nil
}

// ResolveTaxon finds the Wikidata entity for an exact taxon name. A nil
// entity with nil error means the taxon is unknown.
func (s *Service) ResolveTaxon(ctx context.Context, name string) (*ResolvedEntity, error) {
	iri, err := s.wikidata.FindTaxon(ctx, name)
	if err != nil {
		return nil, err
	}
	if iri == "" {
		return nil, nil
	}

	return &ResolvedEntity{SurfaceForm: name, IRI: iri, Kind: KindTaxon}, nil
}

// ResolveTarget finds the ChEMBL target whose preferred name contains the
// given fragment. A nil entity with nil error means no match.
func (s *Service) ResolveTarget(ctx context.Context, name string) (*ResolvedEntity, error) {
	iri, err := s.chembl.FindTarget(ctx, name)
	if err != nil {
		return nil, err
	}
	if iri == "" {
		return nil, nil
	}

	return &ResolvedEntity{SurfaceForm: name, IRI: iri, Kind: KindTarget}, nil
}

// SubstructureSearch lists Wikidata compounds containing the SMILES
// fragment. Empty is a legitimate answer.
func (s *Service) SubstructureSearch(ctx context.Context, smiles string) ([]string, error) {
	return s.idsm.SubstructureSearch(ctx, smiles)
}

func (e *ResolvedEntity) String() string {
	return fmt.Sprintf("%s %q -> %s", strings.ToLower(string(e.Kind)), e.SurfaceForm, e.IRI)
}
