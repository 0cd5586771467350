// Package idsm performs substructure searches through the IDSM Sachem
// endpoint, federated over Wikidata compounds.
package idsm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kgbot/app/client/sparqlhttp"
)

const maxHits = 50

type Client struct {
	sparql *sparqlhttp.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		sparql: sparqlhttp.New(endpoint, sparqlhttp.WithTimeout(timeout)),
	}
}

// SubstructureSearch returns Wikidata compound IRIs whose structure contains
// the given SMILES fragment. An empty slice is a legitimate answer.
func (c *Client) SubstructureSearch(ctx context.Context, smiles string) ([]string, error) {
	query := fmt.Sprintf(`PREFIX sachem: <http://bioinfo.uochb.cas.cz/rdf/v1.0/sachem#>
SELECT ?compound WHERE {
  ?compound sachem:substructureSearch [ sachem:query %q ] .
} LIMIT %d`, sanitize(smiles), maxHits)

	result, err := c.sparql.Select(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("idsm query failed: %w", err)
	}

	iris := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		iris = append(iris, row["compound"])
	}

	return iris, nil
}

func sanitize(smiles string) string {
	smiles = strings.ReplaceAll(smiles, `"`, "")
	return strings.TrimSpace(smiles)
}
