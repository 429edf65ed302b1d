package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/xlink/internal/linkage"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	command    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	params     TEXT,
	result     TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS links (
	run_id            TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq               INTEGER NOT NULL,
	source_identifier TEXT NOT NULL DEFAULT '',
	ticker            TEXT NOT NULL DEFAULT '',
	permno            INTEGER NOT NULL,
	company_name      TEXT NOT NULL,
	target_name       TEXT NOT NULL DEFAULT '',
	name_similarity   INTEGER NOT NULL,
	score             INTEGER NOT NULL,
	stage             TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS unmatched (
	run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	company_name TEXT NOT NULL,
	PRIMARY KEY (run_id, company_name)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_links_company ON links(run_id, company_name);
CREATE INDEX IF NOT EXISTS idx_links_permno ON links(run_id, permno);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, command string, params map[string]string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, command, status, params, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, command, string(RunStatusRunning), string(paramsJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET error = ?, status = ?, updated_at = ? WHERE id = ?`,
		errMsg, string(RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, command, status, params, result, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, command, status, params, result, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Command != "" {
		query += ` AND command = ?`
		args = append(args, filter.Command)
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// SaveLinkTable replaces the stored links and unmatched companies of a run.
func (s *SQLiteStore) SaveLinkTable(ctx context.Context, runID string, table *linkage.LinkTable) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save links")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{`DELETE FROM links WHERE run_id = ?`, `DELETE FROM unmatched WHERE run_id = ?`} {
		if _, err := tx.ExecContext(ctx, stmt, runID); err != nil {
			return eris.Wrapf(err, "sqlite: clear links for run %s", runID)
		}
	}

	ins, err := tx.PrepareContext(ctx,
		`INSERT INTO links (run_id, seq, source_identifier, ticker, permno, company_name, target_name, name_similarity, score, stage)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare link insert")
	}
	defer ins.Close() //nolint:errcheck

	for i, l := range table.Links {
		if _, err := ins.ExecContext(ctx, runID, i, l.SourceIdentifier, l.Ticker, l.PermNo,
			l.CompanyName, l.TargetName, l.NameSimilarity, l.Score, string(l.Stage)); err != nil {
			return eris.Wrapf(err, "sqlite: insert link %d for run %s", i, runID)
		}
	}

	for _, name := range table.Unmatched {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO unmatched (run_id, company_name) VALUES (?, ?)`, runID, name); err != nil {
			return eris.Wrapf(err, "sqlite: insert unmatched for run %s", runID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit links")
}

func (s *SQLiteStore) ListLinks(ctx context.Context, runID string, filter LinkFilter) ([]linkage.Link, error) {
	query := `SELECT source_identifier, ticker, permno, company_name, target_name, name_similarity, score, stage
		FROM links WHERE run_id = ?`
	args := []any{runID}

	if filter.Company != "" {
		query += ` AND company_name LIKE ?`
		args = append(args, strings.ToUpper(filter.Company)+"%")
	}
	if filter.PermNo != 0 {
		query += ` AND permno = ?`
		args = append(args, filter.PermNo)
	}
	if filter.MaxScore != nil {
		query += ` AND score <= ?`
		args = append(args, *filter.MaxScore)
	}
	query += ` ORDER BY seq LIMIT ? OFFSET ?`
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list links for run %s", runID)
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
	return links, eris.Wrap(rows.Err(), "sqlite: list links iterate")
}

func (s *SQLiteStore) ListUnmatched(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT company_name FROM unmatched WHERE run_id = ? ORDER BY company_name`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list unmatched for run %s", runID)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan unmatched")
		}
		names = append(names, n)
	}
	return names, eris.Wrap(rows.Err(), "sqlite: list unmatched iterate")
}

// helpers

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var paramsJSON, resultJSON, errStr sql.NullString

	err := row.Scan(&r.ID, &r.Command, &r.Status, &paramsJSON, &resultJSON, &errStr, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if err := decodeRunJSON(&r, []byte(paramsJSON.String), []byte(resultJSON.String)); err != nil {
		return nil, err
	}
	r.Error = errStr.String
	return &r, nil
}

func decodeRunJSON(r *Run, params, result []byte) error {
	if len(params) > 0 && string(params) != "null" {
		if err := json.Unmarshal(params, &r.Params); err != nil {
			return eris.Wrap(err, "store: unmarshal params")
		}
	}
	if len(result) > 0 && string(result) != "null" {
		r.Result = &RunResult{}
		if err := json.Unmarshal(result, r.Result); err != nil {
			return eris.Wrap(err, "store: unmarshal result")
		}
	}
	return nil
}

func scanLink(row scannable) (linkage.Link, error) {
	var l linkage.Link
	var stage string
	if err := row.Scan(&l.SourceIdentifier, &l.Ticker, &l.PermNo, &l.CompanyName,
		&l.TargetName, &l.NameSimilarity, &l.Score, &stage); err != nil {
		return l, eris.Wrap(err, "store: scan link")
	}
	l.Stage = linkage.Stage(stage)
	return l, nil
}
