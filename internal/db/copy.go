package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyFrom bulk-inserts rows into a table using the PostgreSQL COPY
// protocol. This is the fastest way to load the per-run output tables.
func CopyFrom(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return n, nil
}

// ReplaceAll deletes every row in a table and COPYs in the replacement
// set inside one transaction, so a failed run leaves the prior output
// intact.
func ReplaceAll(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: replace %s: begin tx", table)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "DELETE FROM "+pgx.Identifier{table}.Sanitize()); err != nil {
		return 0, eris.Wrapf(err, "db: replace %s: delete", table)
	}

	var n int64
	if len(rows) > 0 {
		n, err = tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return 0, eris.Wrapf(err, "db: replace %s: copy", table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: replace %s: commit", table)
	}
	return n, nil
}
