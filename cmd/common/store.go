package common

import (
	"context"

	"github.com/jonesrussell/fincrawl/internal/store"
)

// OpenStore opens the configured store without wiring the crawl stack.
func OpenStore(ctx context.Context, deps CommandDeps) (*store.Store, error) {
	cfg := deps.Config
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, store.WithLocation(cfg.Location()))
	if err != nil {
		return nil, err
	}
	if err = st.EnsureSchema(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
