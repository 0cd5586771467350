// Package wikidata resolves taxon names against the Wikidata query service.
package wikidata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kgbot/app/client/sparqlhttp"
)

type Client struct {
	sparql *sparqlhttp.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		sparql: sparqlhttp.New(endpoint, sparqlhttp.WithTimeout(timeout)),
	}
}

// FindTaxon matches the exact taxon name (wdt:P225) and returns the entity
// IRI of the first binding, or "" when the taxon is unknown.
func (c *Client) FindTaxon(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf(`PREFIX wdt: <http://www.wikidata.org/prop/direct/>
SELECT ?wikidata WHERE { ?wikidata wdt:P225 %q . } LIMIT 1`, sanitize(name))

	result, err := c.sparql.Select(ctx, query)
	if err != nil {
		return "", fmt.Errorf("wikidata query failed: %w", err)
	}

	if result.Empty() {
		return "", nil
	}

	return result.Rows[0]["wikidata"], nil
}

func sanitize(name string) string {
	name = strings.ReplaceAll(name, `"`, "")
	return strings.TrimSpace(name)
}
