package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/xlink/internal/db"
	"github.com/sells-group/xlink/internal/linkage"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pool, err := OpenPool(ctx, connString, poolCfg)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Close does not close it.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// OpenPool parses connString, applies pool sizing and pings the server.
func OpenPool(ctx context.Context, connString string, poolCfg *PoolConfig) (*pgxpool.Pool, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return pool, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, command string, params map[string]string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO xlink.runs (id, command, status, params, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, command, string(RunStatusRunning), paramsJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &Run{
		ID:        id,
		Command:   command,
		Status:    RunStatusRunning,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE xlink.runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE xlink.runs SET error = $1, status = $2, updated_at = $3 WHERE id = $4`,
		errMsg, string(RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

const runColumns = `id, command, status, params, result, COALESCE(error, ''), created_at, updated_at`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM xlink.runs WHERE id = $1`, runID)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM xlink.runs WHERE 1=1`
	var args []any
	argNum := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filter.Status))
		argNum++
	}
	if filter.Command != "" {
		query += fmt.Sprintf(" AND command = $%d", argNum)
		args = append(args, filter.Command)
		argNum++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(" AND created_at > $%d", argNum)
		args = append(args, filter.CreatedAfter)
		argNum++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

var (
	linkColumns = []string{
		"run_id", "seq", "source_identifier", "ticker", "permno", "company_name",
		"target_name", "name_similarity", "score", "stage",
	}
	unmatchedColumns = []string{"run_id", "company_name"}
)

// SaveLinkTable replaces the links and unmatched companies of a run. Links
// merge on (run_id, seq) with stale sequence numbers pruned; unmatched names
// are cleared and copied.
func (s *PostgresStore) SaveLinkTable(ctx context.Context, runID string, table *linkage.LinkTable) error {
	rows := make([][]any, len(table.Links))
	for i, l := range table.Links {
		rows[i] = []any{runID, i, l.SourceIdentifier, l.Ticker, l.PermNo, l.CompanyName,
			l.TargetName, l.NameSimilarity, l.Score, string(l.Stage)}
	}
	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "xlink.links",
		Columns:      linkColumns,
		ConflictKeys: []string{"run_id", "seq"},
		Scope:        []string{"run_id"},
	}, rows); err != nil {
		return eris.Wrapf(err, "postgres: save links for run %s", runID)
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM xlink.unmatched WHERE run_id = $1`, runID); err != nil {
		return eris.Wrapf(err, "postgres: clear unmatched for run %s", runID)
	}
	unmatched := make([][]any, len(table.Unmatched))
	for i, name := range table.Unmatched {
		unmatched[i] = []any{runID, name}
	}
	if _, err := db.CopyFrom(ctx, s.pool, "xlink.unmatched", unmatchedColumns, unmatched); err != nil {
		return eris.Wrapf(err, "postgres: save unmatched for run %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListLinks(ctx context.Context, runID string, filter LinkFilter) ([]linkage.Link, error) {
	query := `SELECT source_identifier, ticker, permno, company_name, target_name, name_similarity, score, stage
		FROM xlink.links WHERE run_id = $1`
	args := []any{runID}
	argNum := 2

	if filter.Company != "" {
		query += fmt.Sprintf(" AND company_name ILIKE $%d", argNum)
		args = append(args, filter.Company+"%")
		argNum++
	}
	if filter.PermNo != 0 {
		query += fmt.Sprintf(" AND permno = $%d", argNum)
		args = append(args, filter.PermNo)
		argNum++
	}
	if filter.MaxScore != nil {
		query += fmt.Sprintf(" AND score <= $%d", argNum)
		args = append(args, *filter.MaxScore)
		argNum++
	}
	query += fmt.Sprintf(" ORDER BY seq LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list links for run %s", runID)
	}
	defer rows.Close()

	var links []linkage.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, eris.Wrap(rows.Err(), "postgres: list links iterate")
}

func (s *PostgresStore) ListUnmatched(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT company_name FROM xlink.unmatched WHERE run_id = $1 ORDER BY company_name`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list unmatched for run %s", runID)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan unmatched")
		}
		names = append(names, n)
	}
	return names, eris.Wrap(rows.Err(), "postgres: list unmatched iterate")
}

func scanPgRun(row scannable) (*Run, error) {
	var r Run
	var status string
	var paramsJSON, resultJSON []byte

	if err := row.Scan(&r.ID, &r.Command, &status, &paramsJSON, &resultJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan run")
	}
	r.Status = RunStatus(status)
	if err := decodeRunJSON(&r, paramsJSON, resultJSON); err != nil {
		return nil, err
	}
	return &r, nil
}
