package sparqlgen

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// CountTokens measures text against the cl100k_base vocabulary. When the
// encoding cannot be loaded it falls back to a bytes/4 estimate rather than
// failing the pipeline.
func CountTokens(text string) int {
	encodingOnce.Do(func() {
		encoding, _ = tiktoken.GetEncoding("cl100k_base")
	})

	if encoding == nil {
		return len(text) / 4
	}

	return len(encoding.Encode(text, nil, nil))
}
