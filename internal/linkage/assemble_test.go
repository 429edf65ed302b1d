package linkage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble(t *testing.T) {
	primary := []Link{
		{CompanyName: "ALPHA", PermNo: 1, NameSimilarity: 80, Score: 1, Stage: StagePrimary},
		{CompanyName: "ALPHA", PermNo: 2, NameSimilarity: 60, Score: 0, Stage: StagePrimary},
		{CompanyName: "BETA", PermNo: 3, NameSimilarity: 70, Score: 0, Stage: StagePrimary},
		{CompanyName: "BETA", PermNo: 4, NameSimilarity: 90, Score: 0, Stage: StagePrimary},
	}
	secondary := []Link{
		{CompanyName: "GAMMA", Ticker: "GAM", PermNo: 5, NameSimilarity: 70, Score: 5, Stage: StageSecondary},
		{CompanyName: "GAMMA", Ticker: "GAM", PermNo: 5, NameSimilarity: 70, Score: 5, Stage: StageSecondary},
		{CompanyName: "GAMMA", Ticker: "GAM", PermNo: 6, NameSimilarity: 75, Score: 5, Stage: StageSecondary},
	}
	companies := []string{"BETA", "ALPHA", "GAMMA", "DELTA", "ALPHA", "", "CHI"}

	table := Assemble(companies, primary, secondary)

	require.Len(t, table.Links, 4)
	assert.Equal(t, int64(2), table.Links[0].PermNo)
	assert.Equal(t, int64(4), table.Links[1].PermNo)
	assert.Equal(t, int64(6), table.Links[2].PermNo)
	assert.Equal(t, int64(5), table.Links[3].PermNo)

	assert.Equal(t, []string{"CHI", "DELTA"}, table.Unmatched)
	assert.Equal(t, 5, table.Stats.SourceEntities)
	assert.Equal(t, 2, table.Stats.PrimaryLinks)
	assert.Equal(t, 2, table.Stats.SecondaryLinks)
	assert.Equal(t, map[int]int{0: 2, 5: 2}, table.Stats.ScoreCounts)

	assert.Len(t, table.ForCompany("GAMMA"), 2)
	assert.Empty(t, table.ForCompany("DELTA"))
}

func TestAssemble_EveryCompanyAccountedFor(t *testing.T) {
	companies := []string{"A", "B", "C"}
	table := Assemble(companies, []Link{{CompanyName: "A"}}, []Link{{CompanyName: "B", Score: 6}})

	covered := make(map[string]bool)
	for _, l := range table.Links {
		covered[l.CompanyName] = true
	}
	for _, u := range table.Unmatched {
		assert.False(t, covered[u])
		covered[u] = true
	}
	for _, c := range companies {
		assert.True(t, covered[c], c)
	}
}

func TestLinkBetter(t *testing.T) {
	a := Link{Score: 0, NameSimilarity: 50, PermNo: 9}
	assert.True(t, a.Better(Link{Score: 1, NameSimilarity: 100}))
	assert.True(t, a.Better(Link{Score: 0, NameSimilarity: 40}))
	assert.True(t, a.Better(Link{Score: 0, NameSimilarity: 50, PermNo: 10}))
	assert.False(t, a.Better(a))
	assert.Equal(t, "9", a.TargetID())
}
