// Package source fetches the named extracts the linker consumes: rows of a
// table matching a declarative filter, from Postgres or from files.
package source

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/sells-group/xlink/internal/db"
)

// Op is a comparison operator.
type Op string

// Supported operators.
const (
	OpEq       Op = "="
	OpNe       Op = "<>"
	OpGt       Op = ">"
	OpGte      Op = ">="
	OpLt       Op = "<"
	OpLte      Op = "<="
	OpIn       Op = "in"
	OpNotEmpty Op = "not_empty"
)

// Condition is one predicate. When Any is set the condition is the
// disjunction of Any and Column/Op/Value are ignored.
type Condition struct {
	Column string
	Op     Op
	Value  any
	Any    []Condition
}

// Eq builds column = value.
func Eq(column string, value any) Condition {
	return Condition{Column: column, Op: OpEq, Value: value}
}

// Gt builds column > value.
func Gt(column string, value any) Condition {
	return Condition{Column: column, Op: OpGt, Value: value}
}

// Gte builds column >= value.
func Gte(column string, value any) Condition {
	return Condition{Column: column, Op: OpGte, Value: value}
}

// In builds column IN (values...).
func In(column string, values ...string) Condition {
	return Condition{Column: column, Op: OpIn, Value: values}
}

// NotEmpty matches non-null, non-blank values.
func NotEmpty(column string) Condition {
	return Condition{Column: column, Op: OpNotEmpty}
}

// Or builds the disjunction of conds.
func Or(conds ...Condition) Condition {
	return Condition{Any: conds}
}

// Query selects columns of a table under a conjunction of conditions.
type Query struct {
	// Name keys the result in FetchAll. Defaults to Table.
	Name     string
	Table    string
	Columns  []string
	Where    []Condition
	Distinct bool
}

// Key returns the name FetchAll stores the result under.
func (q Query) Key() string {
	if q.Name != "" {
		return q.Name
	}
	return q.Table
}

// SQL renders the query with positional parameters.
func (q Query) SQL() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if q.Distinct {
		b.WriteString("DISTINCT ")
	}
	if len(q.Columns) == 0 {
		b.WriteString("*")
	} else {
		for i, c := range q.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(quote(c))
		}
	}
	b.WriteString(" FROM ")
	b.WriteString(db.Identifier(q.Table).Sanitize())

	var args []any
	if len(q.Where) > 0 {
		parts := make([]string, len(q.Where))
		for i, c := range q.Where {
			parts[i] = c.sql(&args)
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(parts, " AND "))
	}
	return b.String(), args
}

func (c Condition) sql(args *[]any) string {
	if len(c.Any) > 0 {
		parts := make([]string, len(c.Any))
		for i, sub := range c.Any {
			parts[i] = sub.sql(args)
		}
		return "(" + strings.Join(parts, " OR ") + ")"
	}

	col := quote(c.Column)
	switch c.Op {
	case OpNotEmpty:
		return fmt.Sprintf("(%s IS NOT NULL AND %s::text <> '')", col, col)
	case OpIn:
		*args = append(*args, c.Value)
		return fmt.Sprintf("%s = ANY($%d)", col, len(*args))
	default:
		*args = append(*args, c.Value)
		return fmt.Sprintf("%s %s $%d", col, c.Op, len(*args))
	}
}

func quote(col string) string {
	return pgx.Identifier{col}.Sanitize()
}

// Match evaluates the conditions against one row of t. Values compare
// numerically when both sides parse as numbers and as strings otherwise, so
// ISO dates order correctly. A condition on a missing column fails.
func (q Query) Match(t *Table, row []string) bool {
	for _, c := range q.Where {
		if !c.match(t, row) {
			return false
		}
	}
	return true
}

func (c Condition) match(t *Table, row []string) bool {
	if len(c.Any) > 0 {
		for _, sub := range c.Any {
			if sub.match(t, row) {
				return true
			}
		}
		return false
	}

	i := t.Index(c.Column)
	if i < 0 || i >= len(row) {
		return false
	}
	v := row[i]

	switch c.Op {
	case OpNotEmpty:
		return strings.TrimSpace(v) != ""
	case OpIn:
		for _, want := range c.Value.([]string) {
			if compare(v, want) == 0 {
				return true
			}
		}
		return false
	}

	r := compare(v, formatValue(c.Value))
	switch c.Op {
	case OpEq:
		return r == 0
	case OpNe:
		return r != 0
	case OpGt:
		return r > 0
	case OpGte:
		return r >= 0
	case OpLt:
		return r < 0
	case OpLte:
		return r <= 0
	}
	return false
}

func compare(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
