package linkage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCUSIP6Match(t *testing.T) {
	assert.True(t, CUSIP6Match("12345678", "12345699"))
	assert.True(t, CUSIP6Match("12345678", "01234567"))
	assert.False(t, CUSIP6Match("12345678", "99999999"))
	assert.False(t, CUSIP6Match("", "12345678"))
	assert.False(t, CUSIP6Match("12345", "12345678"))
	assert.False(t, CUSIP6Match("12345678", ""))
}

func TestSecondaryScore(t *testing.T) {
	tests := []struct {
		name   string
		cusip  string
		ncusip string
		sim    int
		want   int
	}{
		{"prefix and similar", "12345678", "12345699", 90, 0},
		{"shifted prefix and similar", "12345678", "01234567", 90, 0},
		{"prefix only", "12345678", "12345699", 10, 4},
		{"similar only", "", "12345699", 90, 5},
		{"neither", "87654321", "12345699", 10, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Candidate{
				Source:         HistoryRow{CUSIP: tt.cusip},
				Target:         NameRow{NCUSIP: tt.ncusip},
				NameSimilarity: tt.sim,
			}
			assert.Equal(t, tt.want, SecondaryScore(c, 50))
		})
	}
}

func TestSecondaryCandidates(t *testing.T) {
	history := []HistoryRow{
		{CompanyName: "FOO INC", Ticker: "FOO", Year: 2001, Date: day("2001-12-31")},
		{CompanyName: "FOO INC", Ticker: "FOO", Year: 2002, Date: day("2002-12-31")},
		{CompanyName: "MATCHED CO", Ticker: "FOO", Year: 2001, Date: day("2001-12-31")},
	}
	names := []NameRow{
		{PermNo: 9, NCUSIP: "12345610", Ticker: "foo", CompanyName: "FOO INCORPORATED",
			NameDate: day("2000-01-01"), NameEndDate: day("2010-12-31")},
		{PermNo: 10, NCUSIP: "55555510", Ticker: "FOO", CompanyName: "FOOD CORP",
			NameDate: day("1980-01-01"), NameEndDate: day("1985-12-31")},
		{PermNo: 11, NCUSIP: "66666610", Ticker: "", CompanyName: "FOO INC",
			NameDate: day("2000-01-01"), NameEndDate: day("2010-12-31")},
	}

	cands := SecondaryCandidates(history, names, map[string]struct{}{"FOO INC": {}})
	require.Len(t, cands, 1)
	c := cands[0]
	assert.Equal(t, int64(9), c.Target.PermNo)
	assert.Equal(t, "FOO", c.Target.Ticker)
	assert.Equal(t, day("2001-12-31"), c.SourceFirst)
	assert.Equal(t, day("2002-12-31"), c.SourceLast)
	assert.Equal(t, 61, c.NameSimilarity)
}

func TestScoreSecondary_KeepsMinimumTies(t *testing.T) {
	src := HistoryRow{CompanyName: "FOO INC", Ticker: "FOO"}
	cands := []Candidate{
		{Source: src, Target: NameRow{PermNo: 1, NCUSIP: "99999999"}, NameSimilarity: 90},
		{Source: src, Target: NameRow{PermNo: 2, NCUSIP: "88888888"}, NameSimilarity: 95},
		{Source: src, Target: NameRow{PermNo: 3, NCUSIP: "77777777"}, NameSimilarity: 10},
		{Source: HistoryRow{CompanyName: "BAR", Ticker: "BAR"}, Target: NameRow{PermNo: 4}, NameSimilarity: 10},
	}

	links := ScoreSecondary(cands, 50)
	require.Len(t, links, 3)
	assert.Equal(t, int64(1), links[0].PermNo)
	assert.Equal(t, int64(2), links[1].PermNo)
	assert.Equal(t, int64(4), links[2].PermNo)
	for _, l := range links[:2] {
		assert.Equal(t, 5, l.Score)
		assert.Equal(t, StageSecondary, l.Stage)
	}
	assert.Equal(t, 6, links[2].Score)
}

func TestScoreSecondary_MinimumAcrossTickers(t *testing.T) {
	cands := []Candidate{
		{
			Source:         HistoryRow{CompanyName: "FOO INC", Ticker: "FOO", CUSIP: "12345678"},
			Target:         NameRow{PermNo: 1, NCUSIP: "12345699", Ticker: "FOO"},
			NameSimilarity: 90,
		},
		{
			Source:         HistoryRow{CompanyName: "FOO INC", Ticker: "FOOX", CUSIP: "12345678"},
			Target:         NameRow{PermNo: 2, NCUSIP: "99999999", Ticker: "FOOX"},
			NameSimilarity: 10,
		},
	}

	links := ScoreSecondary(cands, 50)
	require.Len(t, links, 1)
	assert.Equal(t, int64(1), links[0].PermNo)
	assert.Equal(t, "FOO", links[0].Ticker)
	assert.Equal(t, 0, links[0].Score)
}
