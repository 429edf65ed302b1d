package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a bulk merge into Table.
type UpsertConfig struct {
	Table        string   // target table, e.g. "xlink.links"
	Columns      []string // columns of each row
	ConflictKeys []string // unique key columns
	UpdateCols   []string // nil updates every non-key column
	// Scope, when set, names key columns whose batch values identify a
	// partition of Table the batch replaces: target rows in a scoped
	// partition that the batch does not carry are deleted.
	Scope []string
}

func (cfg UpsertConfig) validate() error {
	if len(cfg.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	keys := make(map[string]bool, len(cfg.ConflictKeys))
	for _, k := range cfg.ConflictKeys {
		keys[k] = true
	}
	for _, s := range cfg.Scope {
		if !keys[s] {
			return eris.Errorf("db: upsert: scope column %s is not a conflict key", s)
		}
	}
	return nil
}

func (cfg UpsertConfig) updateCols() []string {
	if cfg.UpdateCols != nil {
		return cfg.UpdateCols
	}
	keys := make(map[string]bool, len(cfg.ConflictKeys))
	for _, k := range cfg.ConflictKeys {
		keys[k] = true
	}
	var cols []string
	for _, c := range cfg.Columns {
		if !keys[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

// tempTable is the session-local staging table for cfg.Table.
func (cfg UpsertConfig) tempTable() pgx.Identifier {
	return pgx.Identifier{"_tmp_upsert_" + strings.ReplaceAll(cfg.Table, ".", "_")}
}

func (cfg UpsertConfig) mergeSQL() string {
	tmp := cfg.tempTable().Sanitize()
	cols := quoteAndJoin(cfg.Columns)

	update := cfg.updateCols()
	action := "DO NOTHING"
	if len(update) > 0 {
		sets := make([]string, len(update))
		for i, c := range update {
			q := pgx.Identifier{c}.Sanitize()
			sets[i] = q + " = EXCLUDED." + q
		}
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		sanitizeTable(cfg.Table), cols, cols, tmp, quoteAndJoin(cfg.ConflictKeys), action)
}

func (cfg UpsertConfig) pruneSQL() string {
	tmp := cfg.tempTable().Sanitize()
	match := func(cols []string) string {
		parts := make([]string, len(cols))
		for i, c := range cols {
			q := pgx.Identifier{c}.Sanitize()
			parts[i] = "s." + q + " = t." + q
		}
		return strings.Join(parts, " AND ")
	}

	return fmt.Sprintf(
		"DELETE FROM %s t WHERE EXISTS (SELECT 1 FROM %s s WHERE %s) AND NOT EXISTS (SELECT 1 FROM %s s WHERE %s)",
		sanitizeTable(cfg.Table), tmp, match(cfg.Scope), tmp, match(cfg.ConflictKeys))
}

// BulkUpsert stages rows in a temp table with COPY, merges them into the
// target with INSERT ... ON CONFLICT and, when cfg.Scope is set, prunes
// scoped target rows the batch left out. All steps share one transaction.
// It returns the number of merged rows.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		cfg.tempTable().Sanitize(), sanitizeTable(cfg.Table))
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create temp table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, cfg.tempTable(), cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY into temp table for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, cfg.mergeSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: INSERT ON CONFLICT for %s", cfg.Table)
	}

	if len(cfg.Scope) > 0 {
		if _, err := tx.Exec(ctx, cfg.pruneSQL()); err != nil {
			return 0, eris.Wrapf(err, "db: upsert: prune %s", cfg.Table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

func sanitizeTable(table string) string {
	return Identifier(table).Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
