package source

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/xlink/internal/db"
)

// Postgres fetches extracts with SQL over a pgx pool.
type Postgres struct {
	pool db.Pool
}

// NewPostgres creates a Postgres source.
func NewPostgres(pool db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Fetch implements Source.
func (p *Postgres) Fetch(ctx context.Context, q Query) (*Table, error) {
	sql, args := q.SQL()
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, &ExtractionError{Table: q.Table, Err: eris.Wrap(err, "query")}
	}
	defer rows.Close()

	var columns []string
	for _, fd := range rows.FieldDescriptions() {
		columns = append(columns, fd.Name)
	}
	if len(columns) == 0 {
		columns = q.Columns
	}

	var out [][]string
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, &ExtractionError{Table: q.Table, Err: eris.Wrap(err, "scan")}
		}
		rec := make([]string, len(vals))
		for i, v := range vals {
			rec[i] = formatValue(v)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExtractionError{Table: q.Table, Err: eris.Wrap(err, "iterate")}
	}

	return NewTable(q.Table, columns, out), nil
}
