package index

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// TFIDFRetriever ranks documents against a query by TF-IDF weighted cosine
// similarity. It carries the template-query channel of empty-result recovery.
type TFIDFRetriever struct {
	docs    []map[string]float64
	idf     map[string]float64
	sources []string
}

func NewTFIDFRetriever(documents []string) *TFIDFRetriever {
	r := &TFIDFRetriever{
		idf:     make(map[string]float64),
		sources: documents,
	}

	frequencies := make([]map[string]int, len(documents))
	docCount := make(map[string]int)

	for i, doc := range documents {
		frequencies[i] = termFrequencies(doc)
		for term := range frequencies[i] {
			docCount[term]++
		}
	}

	total := float64(len(documents))
	for term, count := range docCount {
		r.idf[term] = math.Log((total+1)/(float64(count)+1)) + 1
	}

	r.docs = make([]map[string]float64, len(documents))
	for i, freq := range frequencies {
		r.docs[i] = r.weigh(freq)
	}

	return r
}

type TFIDFHit struct {
	Index int
	Score float64
}

// Rank returns document indices ordered by similarity to the query.
func (r *TFIDFRetriever) Rank(query string, k int) []TFIDFHit {
	queryVec := r.weigh(termFrequencies(query))

	hits := make([]TFIDFHit, 0, len(r.docs))
	for i, doc := range r.docs {
		hits = append(hits, TFIDFHit{
			Index: i,
			Score: sparseCosine(queryVec, doc),
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

func (r *TFIDFRetriever) weigh(freq map[string]int) map[string]float64 {
	vec := make(map[string]float64, len(freq))
	for term, count := range freq {
		idf, ok := r.idf[term]
		if !ok {
			continue
		}
		vec[term] = float64(count) * idf
	}
	return vec
}

func termFrequencies(text string) map[string]int {
	freq := make(map[string]int)

	for _, token := range tokenize(text) {
		freq[token]++
	}

	return freq
}

// tokenize lowercases and splits on anything that is not a letter, digit or
// underscore, so SPARQL punctuation does not leak into terms.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

func sparseCosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for term, weight := range a {
		normA += weight * weight
		if other, ok := b[term]; ok {
			dot += weight * other
		}
	}
	for _, weight := range b {
		normB += weight * weight
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
