package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/xlink/internal/linkage"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "xlink.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTable() *linkage.LinkTable {
	return &linkage.LinkTable{
		Links: []linkage.Link{
			{SourceIdentifier: "12345678", Ticker: "ACME", PermNo: 10001, CompanyName: "ACME CORP",
				TargetName: "ACME CORPORATION", NameSimilarity: 72, Score: 0, Stage: linkage.StagePrimary},
			{Ticker: "FOO", PermNo: 10002, CompanyName: "FOO INC",
				TargetName: "FOO INCORPORATED", NameSimilarity: 61, Score: 5, Stage: linkage.StageSecondary},
			{Ticker: "FOO", PermNo: 10003, CompanyName: "FOO INC",
				TargetName: "FOO HOLDINGS", NameSimilarity: 70, Score: 5, Stage: linkage.StageSecondary},
		},
		Unmatched: []string{"LONE CO"},
		Stats: linkage.AssemblyStats{
			SourceEntities: 3, PrimaryLinks: 1, SecondaryLinks: 2, Unmatched: 1,
			PrimaryThreshold: 72, ScoreCounts: map[int]int{0: 1, 5: 2},
		},
	}
}

func TestSQLite_RunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "link", map[string]string{"source": "csv"})
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.NotEmpty(t, run.ID)

	table := sampleTable()
	require.NoError(t, s.CompleteRun(ctx, run.ID, &RunResult{Stats: table.Stats, CorrectedIdentifiers: 4}))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusComplete, got.Status)
	assert.Equal(t, "link", got.Command)
	assert.Equal(t, map[string]string{"source": "csv"}, got.Params)
	require.NotNil(t, got.Result)
	assert.Equal(t, 4, got.Result.CorrectedIdentifiers)
	assert.Equal(t, map[int]int{0: 1, 5: 2}, got.Result.Stats.ScoreCounts)
	assert.Empty(t, got.Error)
}

func TestSQLite_FailRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "link", nil)
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, run.ID, "source: extract kld.history: timeout"))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "source: extract kld.history: timeout", got.Error)
	assert.Nil(t, got.Result)
	assert.Nil(t, got.Params)
}

func TestSQLite_NotFound(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.CompleteRun(ctx, "missing", &RunResult{})
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.FailRun(ctx, "missing", "x")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_ListRuns(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a, err := s.CreateRun(ctx, "link", nil)
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, "merge compustat", nil)
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, a.ID, "boom"))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	failed, err := s.ListRuns(ctx, RunFilter{Status: RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, a.ID, failed[0].ID)

	merges, err := s.ListRuns(ctx, RunFilter{Command: "merge compustat"})
	require.NoError(t, err)
	assert.Len(t, merges, 1)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_LinkTable(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "link", nil)
	require.NoError(t, err)

	table := sampleTable()
	require.NoError(t, s.SaveLinkTable(ctx, run.ID, table))

	links, err := s.ListLinks(ctx, run.ID, LinkFilter{})
	require.NoError(t, err)
	assert.Equal(t, table.Links, links)

	foo, err := s.ListLinks(ctx, run.ID, LinkFilter{Company: "foo"})
	require.NoError(t, err)
	assert.Len(t, foo, 2)

	maxScore := 0
	best, err := s.ListLinks(ctx, run.ID, LinkFilter{MaxScore: &maxScore})
	require.NoError(t, err)
	require.Len(t, best, 1)
	assert.Equal(t, "ACME CORP", best[0].CompanyName)

	byTarget, err := s.ListLinks(ctx, run.ID, LinkFilter{PermNo: 10003})
	require.NoError(t, err)
	require.Len(t, byTarget, 1)
	assert.Equal(t, "FOO HOLDINGS", byTarget[0].TargetName)

	paged, err := s.ListLinks(ctx, run.ID, LinkFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, int64(10002), paged[0].PermNo)

	unmatched, err := s.ListUnmatched(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"LONE CO"}, unmatched)

	// Saving again replaces rather than duplicates.
	table.Links = table.Links[:1]
	require.NoError(t, s.SaveLinkTable(ctx, run.ID, table))
	links, err = s.ListLinks(ctx, run.ID, LinkFilter{})
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestNewRunResult(t *testing.T) {
	res := &linkage.Result{
		Prepared: &linkage.Prepared{Corrections: &linkage.CorrectionReport{Distinct: 3, Observations: 7, Ambiguous: 1}},
		Table:    sampleTable(),
	}
	r := NewRunResult(res)
	assert.Equal(t, 3, r.CorrectedIdentifiers)
	assert.Equal(t, 7, r.CorrectedObservations)
	assert.Equal(t, 1, r.AmbiguousIdentifiers)
	assert.Equal(t, 1, r.Stats.PrimaryLinks)
}

func TestSQLite_ListRuns_CreatedAfter(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.CreateRun(ctx, "link", nil)
	require.NoError(t, err)

	recent, err := s.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	future, err := s.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, future)
}
