package schema

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/elliotchance/pie/v2"
)

const defaultClassQuery = `PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
SELECT DISTINCT ?class (SAMPLE(?l) AS ?label) (SAMPLE(?c) AS ?comment) WHERE {
  ?s a ?class .
  OPTIONAL { ?class rdfs:label ?l }
  OPTIONAL { ?class rdfs:comment ?c }
} GROUP BY ?class`

var hexSuffixRe = regexp.MustCompile(`_[0-9a-fA-F]+$`)

type classInfo struct {
	URI     string
	Label   string
	Comment string
}

type propertyInfo struct {
	URI string
	// ObjectType is a datatype IRI for literal values, or "" for IRI and
	// blank-node values (rendered as [] in Turtle).
	ObjectType string
}

func (s *Service) introspect(ctx context.Context) (string, error) {
	classes, err := s.listClasses(ctx)
	if err != nil {
		return "", err
	}

	properties := make(map[string][]propertyInfo, len(classes))
	for _, class := range classes {
		props, err := s.sampleProperties(ctx, class.URI)
		if err != nil {
			return "", fmt.Errorf("sampling %s: %w", class.URI, err)
		}
		properties[class.URI] = props
	}

	return render(classes, properties), nil
}

func (s *Service) listClasses(ctx context.Context) ([]classInfo, error) {
	queries := s.cfg.Schema.IntrospectionQueries
	if len(queries) == 0 {
		queries = []string{defaultClassQuery}
	}

	seen := make(map[string]bool)
	var classes []classInfo

	for _, query := range queries {
		result, err := s.sparql.Select(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("class listing failed: %w", err)
		}

		for _, row := range result.Rows {
			uri := row["class"]
			if uri == "" || seen[uri] || s.excluded(uri) {
				continue
			}
			seen[uri] = true

			classes = append(classes, classInfo{
				URI:     uri,
				Label:   row["label"],
				Comment: row["comment"],
			})
		}
	}

	sort.Slice(classes, func(i, j int) bool {
		return classes[i].URI < classes[j].URI
	})

	return classes, nil
}

func (s *Service) sampleProperties(ctx context.Context, classURI string) ([]propertyInfo, error) {
	query := fmt.Sprintf(`SELECT ?property (SAMPLE(?value) AS ?sample) WHERE {
  { SELECT ?instance WHERE { ?instance a <%s> . } LIMIT %d }
  ?instance ?property ?value .
} GROUP BY ?property`, classURI, s.cfg.Schema.SampleSize)

	result, err := s.sparql.SelectTerms(ctx, query)
	if err != nil {
		return nil, err
	}

	var props []propertyInfo
	for _, row := range result.Rows {
		propertyURI := row["property"].Value
		if propertyURI == "" || s.excluded(propertyURI) {
			continue
		}
		if *s.cfg.Schema.ExcludeHexSuffix && hexSuffixRe.MatchString(localName(propertyURI)) {
			continue
		}

		sample := row["sample"]

		var objectType string
		if sample.Type == "literal" {
			objectType = sample.Datatype
			if objectType == "" {
				objectType = "http://www.w3.org/2001/XMLSchema#string"
			}
		}

		props = append(props, propertyInfo{
			URI:        propertyURI,
			ObjectType: objectType,
		})
	}

	sort.Slice(props, func(i, j int) bool {
		return props[i].URI < props[j].URI
	})

	return props, nil
}

func (s *Service) excluded(uri string) bool {
	return pie.Contains(s.cfg.Schema.ExcludedURIs, uri)
}

func localName(uri string) string {
	if i := strings.LastIndexAny(uri, "#/"); i >= 0 && i < len(uri)-1 {
		return uri[i+1:]
	}
	return uri
}

func namespaceOf(uri string) string {
	if i := strings.LastIndexAny(uri, "#/"); i >= 0 {
		return uri[:i+1]
	}
	return uri
}
