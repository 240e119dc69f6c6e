package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig names the target of a bulk upsert. Every column outside the
// conflict key is overwritten on conflict; the store rewrites whole filing
// packages, never patches them.
type UpsertConfig struct {
	Table        string   // target table
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
}

func (c UpsertConfig) validate() error {
	if len(c.Columns) == 0 {
		return eris.Errorf("db: upsert %s: no columns specified", c.Table)
	}
	if len(c.ConflictKeys) == 0 {
		return eris.Errorf("db: upsert %s: no conflict keys specified", c.Table)
	}
	return nil
}

// upsertSQL folds the temp table into the target, replacing every
// non-conflict column from the incoming row.
func (c UpsertConfig) upsertSQL(tempTable string) string {
	keys := make(map[string]bool, len(c.ConflictKeys))
	for _, k := range c.ConflictKeys {
		keys[k] = true
	}
	var sets []string
	for _, col := range c.Columns {
		if keys[col] {
			continue
		}
		q := pgx.Identifier{col}.Sanitize()
		sets = append(sets, q+" = EXCLUDED."+q)
	}

	cols := quoteAndJoin(c.Columns)
	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		pgx.Identifier{c.Table}.Sanitize(),
		cols,
		cols,
		pgx.Identifier{tempTable}.Sanitize(),
		quoteAndJoin(c.ConflictKeys),
		strings.Join(sets, ", "),
	)
}

// BulkUpsert loads rows through a temp table and folds them into the target
// with INSERT ... ON CONFLICT: one COPY plus one INSERT regardless of row
// count, inside a single transaction. Returns the number of rows written.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: begin tx", cfg.Table)
	}
	defer tx.Rollback(ctx)

	tempTable := "_tmp_upsert_" + strings.ReplaceAll(cfg.Table, ".", "_")
	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{tempTable}.Sanitize(),
		pgx.Identifier{cfg.Table}.Sanitize(),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: create temp table", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: COPY into temp table", cfg.Table)
	}

	tag, err := tx.Exec(ctx, cfg.upsertSQL(tempTable))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: INSERT ON CONFLICT", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: commit tx", cfg.Table)
	}
	return tag.RowsAffected(), nil
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
