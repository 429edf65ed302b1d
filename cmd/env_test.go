package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/xlink/internal/config"
	"github.com/sells-group/xlink/internal/linkage"
	"github.com/sells-group/xlink/internal/store"
)

func TestLinkerConfig(t *testing.T) {
	lc := linkerConfig(config.LinkConfig{
		NamePercentile:   0.25,
		SecondaryPool:    "primary",
		AugustCutoffYear: 1999,
		MissingCUSIP:     []string{"NA"},
		ExcludedTargets:  []string{},
		Manual:           map[string]string{"1": "2"},
	})

	assert.InDelta(t, 0.25, lc.NamePercentile, 1e-9)
	assert.Equal(t, linkage.PoolPrimary, lc.SecondaryPool)
	assert.Equal(t, 1999, lc.Prepare.AugustCutoffYear)
	assert.Equal(t, []string{"NA"}, lc.Prepare.MissingCUSIP)
	assert.Equal(t, linkage.DefaultConfig().Prepare.MissingTicker, lc.Prepare.MissingTicker)
	assert.NotNil(t, lc.Corrector.ExcludedTargets)
	assert.Empty(t, lc.Corrector.ExcludedTargets)
	assert.Equal(t, map[string]string{"1": "2"}, lc.Corrector.Manual)
}

func TestLinkerConfig_ZeroFallsBackToDefaults(t *testing.T) {
	lc := linkerConfig(config.LinkConfig{})
	def := linkage.DefaultConfig()

	assert.Equal(t, def.NamePercentile, lc.NamePercentile)
	assert.Equal(t, def.SecondaryPool, lc.SecondaryPool)
	assert.Equal(t, def.Prepare, lc.Prepare)
	assert.Nil(t, lc.Corrector.ExcludedTargets)
}

func TestResolveOutput(t *testing.T) {
	oc := config.OutputConfig{Format: "csv", Delimiter: "|"}

	tests := []struct {
		name   string
		path   string
		format string
		want   outputSpec
	}{
		{"default name", "", "", outputSpec{Path: "links.csv", Format: "csv", Delimiter: '|'}},
		{"format from path", "out/links.xlsx", "", outputSpec{Path: "out/links.xlsx", Format: "xlsx", Delimiter: '|'}},
		{"explicit format wins", "links.txt", "csv", outputSpec{Path: "links.txt", Format: "csv", Delimiter: '|'}},
		{"default name in explicit format", "", "xlsx", outputSpec{Path: "links.xlsx", Format: "xlsx", Delimiter: '|'}},
		{"stdout", "-", "", outputSpec{Path: "-", Format: "csv", Delimiter: '|'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveOutput(oc, tt.path, tt.format, "links"))
		})
	}
}

func TestResolveOutput_BadDelimiterUsesComma(t *testing.T) {
	out := resolveOutput(config.OutputConfig{Format: "csv", Delimiter: ""}, "x.csv", "", "links")
	assert.Equal(t, ',', out.Delimiter)
}

func TestInitStore(t *testing.T) {
	ctx := context.Background()
	c := testConfig("")

	st, err := initStore(ctx, c)
	require.NoError(t, err)
	assert.Nil(t, st)

	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "runs.db")
	st, err = initStore(ctx, c)
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close() //nolint:errcheck

	runs, err := st.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)

	c.Store.Driver = "mysql"
	_, err = initStore(ctx, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitSource(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t.TempDir())

	src, closeSrc, err := initSource(ctx, c)
	require.NoError(t, err)
	require.NotNil(t, src)
	closeSrc()

	c.Source.Driver = "xlsx"
	c.Source.BaseURL = "https://example.com/extracts"
	src, closeSrc, err = initSource(ctx, c)
	require.NoError(t, err)
	require.NotNil(t, src)
	closeSrc()

	c.Source.Driver = "parquet"
	_, _, err = initSource(ctx, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported source driver")
}

func TestSourceParams(t *testing.T) {
	c := testConfig("data")
	assert.Equal(t, map[string]string{"source": "csv", "dir": "data"}, sourceParams(c))

	c.Source.BaseURL = "https://example.com"
	assert.Equal(t, map[string]string{"source": "csv", "base_url": "https://example.com"}, sourceParams(c))

	c.Source.Driver = "postgres"
	c.Source.DatabaseURL = "postgres://secret@db/wrds"
	assert.Equal(t, map[string]string{"source": "postgres"}, sourceParams(c))
}

func TestTracked(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)

	var seen *store.Run
	err := tracked(ctx, st, "correct", map[string]string{"k": "v"}, func(run *store.Run) (*store.RunResult, error) {
		seen = run
		return &store.RunResult{RowsWritten: 4}, nil
	})
	require.NoError(t, err)
	require.NotNil(t, seen)

	run, err := st.GetRun(ctx, seen.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusComplete, run.Status)
	assert.Equal(t, "v", run.Params["k"])
	require.NotNil(t, run.Result)
	assert.Equal(t, 4, run.Result.RowsWritten)

	boom := errors.New("boom")
	err = tracked(ctx, st, "correct", nil, func(run *store.Run) (*store.RunResult, error) {
		seen = run
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	run, err = st.GetRun(ctx, seen.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusFailed, run.Status)
	assert.Equal(t, "boom", run.Error)
}

func TestTracked_NilStore(t *testing.T) {
	called := false
	err := tracked(context.Background(), nil, "link", nil, func(run *store.Run) (*store.RunResult, error) {
		called = true
		assert.Nil(t, run)
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
