// Package artifact keeps per-interaction tool outputs. Every user question
// opens a new interaction; tools write into the current one and readers fall
// back at most one interaction into the past.
package artifact

import (
	"context"

	"kgbot/app/config"
	"kgbot/app/service/storedb"

	"github.com/samber/do"
	"github.com/samber/oops"
)

// Tool slot names used across the pipeline.
const (
	ToolSPARQL      = "tool_sparql"
	ToolInterpreter = "tool_interpreter"
	ToolResolver    = "tool_resolver"
)

// Store is the interaction-scoped key/value contract. Both backends must
// behave identically:
//
//   - OpenInteraction allocates max(existing)+1, so numbers are contiguous
//     from 1 per (session, thread).
//   - Put writes into the highest interaction and overwrites idempotently.
//   - Get reads the highest interaction; when that slot is empty it falls
//     back exactly one interaction, never further. Absence is (nil, nil).
type Store interface {
	OpenInteraction(ctx context.Context, sessionID, threadID string) (int, error)
	Put(ctx context.Context, sessionID, threadID, tool string, payload []byte) error
	Get(ctx context.Context, sessionID, threadID, tool string) ([]byte, error)
}

func New(di *do.Injector) (Store, error) {
	cfg := do.MustInvoke[*config.Config](di)

	switch cfg.Store.Backend {
	case "sqlite":
		return NewSQLite(do.MustInvoke[*storedb.DB](di).DB)
	case "file":
		return NewFile(cfg.Store.FileDir)
	default:
		return nil, oops.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
