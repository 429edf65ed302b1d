package linkage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureNames() []NameRow {
	return []NameRow{
		{PermNo: 1, NCUSIP: "12345678", Ticker: "ACME", CompanyName: "ACME CORPORATION",
			NameDate: day("2000-06-01"), NameEndDate: day("2002-01-01")},
		{PermNo: 2, NCUSIP: "99999999", Ticker: "FOO", CompanyName: "FOO INCORPORATED",
			NameDate: day("2000-01-01"), NameEndDate: day("2003-01-01")},
	}
}

func TestLinker_Link(t *testing.T) {
	history := []HistoryRow{
		{CompanyName: "Acme Corp", CUSIP: "12345678", Ticker: "ACME", Year: 2001},
		{CompanyName: "Foo Inc", CUSIP: "NA", Ticker: "foo", Year: 2001},
		{CompanyName: "Lone Co", CUSIP: "#N/A", Ticker: "NA", Year: 2001},
	}

	res, err := NewLinker(DefaultConfig()).Link(history, fixtureNames())
	require.NoError(t, err)

	table := res.Table
	require.Len(t, table.Links, 2)

	acme := table.Links[0]
	assert.Equal(t, "ACME CORP", acme.CompanyName)
	assert.Equal(t, int64(1), acme.PermNo)
	assert.Equal(t, 0, acme.Score)
	assert.Equal(t, StagePrimary, acme.Stage)

	foo := table.Links[1]
	assert.Equal(t, "FOO INC", foo.CompanyName)
	assert.Equal(t, int64(2), foo.PermNo)
	assert.Equal(t, 5, foo.Score)
	assert.Equal(t, StageSecondary, foo.Stage)
	assert.Empty(t, foo.SourceIdentifier)

	assert.Equal(t, []string{"LONE CO"}, table.Unmatched)
	assert.InDelta(t, 72, table.Stats.PrimaryThreshold, 1e-9)
	assert.InDelta(t, 61, table.Stats.SecondaryThreshold, 1e-9)
	assert.Equal(t, 1, table.Stats.PrimaryCandidates)
	assert.Equal(t, 1, table.Stats.SecondaryCandidates)
	assert.Equal(t, 1, res.Prepared.Unidentified)
}

func TestLinker_ScoresStayInRange(t *testing.T) {
	history := []HistoryRow{
		{CompanyName: "ACME CORP", CUSIP: "12345678", Ticker: "ACME", Year: 1995},
		{CompanyName: "FOO INC", Ticker: "FOO", Year: 2001},
		{CompanyName: "FOOBAR", Ticker: "FOO", Year: 2002},
	}
	res, err := NewLinker(DefaultConfig()).Link(history, fixtureNames())
	require.NoError(t, err)

	for _, l := range res.Table.Links {
		switch l.Stage {
		case StagePrimary:
			assert.Contains(t, []int{0, 1, 2, 3}, l.Score)
		case StageSecondary:
			assert.Contains(t, []int{0, 4, 5, 6}, l.Score)
		}
		assert.GreaterOrEqual(t, l.NameSimilarity, 0)
		assert.LessOrEqual(t, l.NameSimilarity, 100)
	}
}

func TestLinker_PrimaryPoolThreshold(t *testing.T) {
	history := []HistoryRow{
		{CompanyName: "ACME CORP", CUSIP: "12345678", Year: 2001},
		{CompanyName: "FOO INC", Ticker: "FOO", Year: 2001},
	}
	cfg := DefaultConfig()
	cfg.SecondaryPool = PoolPrimary

	res, err := NewLinker(cfg).Link(history, fixtureNames())
	require.NoError(t, err)
	assert.InDelta(t, 72, res.Table.Stats.SecondaryThreshold, 1e-9)

	foo := res.Table.ForCompany("FOO INC")
	require.Len(t, foo, 1)
	// 61 falls below the CUSIP stage cutoff.
	assert.Equal(t, 6, foo[0].Score)
}

func TestLinker_EmptyPrimaryPool(t *testing.T) {
	history := []HistoryRow{{CompanyName: "NOBODY", CUSIP: "00000001", Year: 2001}}
	_, err := NewLinker(DefaultConfig()).Link(history, fixtureNames())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDegenerateThreshold))
}

func TestLinker_EmptySecondaryPool(t *testing.T) {
	history := []HistoryRow{
		{CompanyName: "ACME CORP", CUSIP: "12345678", Year: 2001},
		{CompanyName: "NOBODY", Ticker: "ZZZ", Year: 2001},
	}
	res, err := NewLinker(DefaultConfig()).Link(history, fixtureNames())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Table.Stats.SecondaryLinks)
	assert.Equal(t, []string{"NOBODY"}, res.Table.Unmatched)
}
