// Package store checkpoints link tables and the history of runs that
// produced them.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/xlink/internal/linkage"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run states.
const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one invocation of a command that produced or consumed a link table.
type Run struct {
	ID        string            `json:"id"`
	Command   string            `json:"command"`
	Status    RunStatus         `json:"status"`
	Params    map[string]string `json:"params,omitempty"`
	Result    *RunResult        `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// RunResult summarizes a completed run.
type RunResult struct {
	Stats                 linkage.AssemblyStats `json:"stats"`
	CorrectedIdentifiers  int                   `json:"corrected_identifiers"`
	CorrectedObservations int                   `json:"corrected_observations"`
	AmbiguousIdentifiers  int                   `json:"ambiguous_identifiers"`
	RowsWritten           int                   `json:"rows_written"`
	ElapsedMS             int64                 `json:"elapsed_ms"`
}

// NewRunResult summarizes a linker result.
func NewRunResult(res *linkage.Result) *RunResult {
	r := &RunResult{
		Stats:     res.Table.Stats,
		ElapsedMS: res.Elapsed.Milliseconds(),
	}
	if c := res.Prepared.Corrections; c != nil {
		r.CorrectedIdentifiers = c.Distinct
		r.CorrectedObservations = c.Observations
		r.AmbiguousIdentifiers = c.Ambiguous
	}
	return r
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status  RunStatus `json:"status,omitempty"`
	Command string    `json:"command,omitempty"`
	Limit   int       `json:"limit,omitempty"`
	Offset  int       `json:"offset,omitempty"`

	// CreatedAfter, when set, excludes runs created at or before it.
	CreatedAfter time.Time `json:"created_after,omitempty"`
}

// LinkFilter narrows the links of a run.
type LinkFilter struct {
	Company  string // company name prefix, case-insensitive
	PermNo   int64
	MaxScore *int
	Limit    int
	Offset   int
}

// Store defines the persistence interface for runs and link tables.
type Store interface {
	CreateRun(ctx context.Context, command string, params map[string]string) (*Run, error)
	CompleteRun(ctx context.Context, runID string, result *RunResult) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	SaveLinkTable(ctx context.Context, runID string, table *linkage.LinkTable) error
	ListLinks(ctx context.Context, runID string, filter LinkFilter) ([]linkage.Link, error)
	ListUnmatched(ctx context.Context, runID string) ([]string, error)

	Migrate(ctx context.Context) error
	Close() error
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
