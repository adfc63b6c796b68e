package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/revenue-cli/internal/model"
	"github.com/sells-group/revenue-cli/internal/store"
)

// storeWriter is the slice of store.Store the run command writes through.
type storeWriter interface {
	ReplaceRollups(ctx context.Context, rollups []model.OrgRollup) error
	ReplaceWaterfall(ctx context.Context, facts []model.WaterfallFact) error
	ReplaceRetention(ctx context.Context, summary model.RetentionSummary) error
	AppendSnapshots(ctx context.Context, rows []model.SnapshotRow) (int, error)
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "revenue.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore initializes the configured backend and applies migrations.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
