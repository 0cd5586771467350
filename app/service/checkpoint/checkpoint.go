// Package checkpoint persists conversation state per thread so follow-up
// turns resume where the previous one stopped.
package checkpoint

import (
	"context"
	"time"

	"kgbot/app/config"
	"kgbot/app/service/storedb"

	"github.com/samber/do"
	"github.com/samber/oops"
)

// Store persists one opaque state blob per thread. Load returns (nil, nil)
// for unknown threads; callers start fresh. Sweep purges entries older than
// the TTL horizon.
type Store interface {
	Load(ctx context.Context, threadID string) ([]byte, error)
	Save(ctx context.Context, threadID string, state []byte) error
	Sweep(ctx context.Context, olderThan time.Time) (int, error)
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

// RunSweeper purges expired checkpoints periodically until the context ends.
func RunSweeper(ctx context.Context, store Store, ttl time.Duration) {
	ticker := time.NewTicker(ttl / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = store.Sweep(ctx, time.Now().Add(-ttl))
		}
	}
}
