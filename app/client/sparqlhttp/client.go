// Package sparqlhttp speaks the SPARQL 1.1 protocol over HTTP. The knowledge
// graph, Wikidata and IDSM are all driven through the same client.
package sparqlhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrMalformedQuery marks endpoint-side parse failures so callers can tell
// a bad query apart from a dead endpoint.
var ErrMalformedQuery = errors.New("malformed SPARQL query")

const DefaultTimeout = 600 * time.Second

type Client struct {
	endpoint   string
	user       string
	pass       string
	httpClient *http.Client
}

type Option func(*Client)

func WithBasicAuth(user, pass string) Option {
	return func(c *Client) {
		c.user = user
		c.pass = pass
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Result holds SELECT bindings. Vars preserve the projection order of the
// query; each row maps variable name to its rendered value.
type Result struct {
	Vars []string
	Rows []map[string]string
}

func (r *Result) Empty() bool {
	return len(r.Rows) == 0
}

// Term is one RDF term from a result binding. Type is "uri", "literal" or
// "bnode"; Datatype is set for typed literals only.
type Term struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype"`
}

// TermResult is the typed counterpart of Result, for callers that need to
// distinguish IRIs from literals.
type TermResult struct {
	Vars []string
	Rows []map[string]Term
}

type jsonResults struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Boolean *bool `json:"boolean"`
	Results struct {
		Bindings []map[string]Term `json:"bindings"`
	} `json:"results"`
}

func (c *Client) Select(ctx context.Context, query string) (*Result, error) {
	parsed, err := c.query(ctx, query)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Vars: parsed.Head.Vars,
		Rows: make([]map[string]string, 0, len(parsed.Results.Bindings)),
	}

	for _, binding := range parsed.Results.Bindings {
		row := make(map[string]string, len(binding))
		for name, term := range binding {
			row[name] = term.Value
		}
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

func (c *Client) SelectTerms(ctx context.Context, query string) (*TermResult, error) {
	parsed, err := c.query(ctx, query)
	if err != nil {
		return nil, err
	}

	return &TermResult{
		Vars: parsed.Head.Vars,
		Rows: parsed.Results.Bindings,
	}, nil
}

func (c *Client) Ask(ctx context.Context, query string) (bool, error) {
	parsed, err := c.query(ctx, query)
	if err != nil {
		return false, err
	}

	if parsed.Boolean == nil {
		return false, fmt.Errorf("endpoint returned no boolean for ASK")
	}

	return *parsed.Boolean, nil
}

func (c *Client) query(ctx context.Context, query string) (*jsonResults, error) {
	form := url.Values{}
	form.Set("query", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("endpoint request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read endpoint response: %w", err)
	}

	if resp.StatusCode == http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s", ErrMalformedQuery, firstLine(string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, firstLine(string(body)))
	}

	var parsed jsonResults
	if err = json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse endpoint response: %w", err)
	}

	return &parsed, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
