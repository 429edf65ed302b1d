package linkage

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// DefaultNamePercentile is the similarity percentile used as the score cutoff.
const DefaultNamePercentile = 0.10

// Percentile returns the p-th quantile of values using linear interpolation
// between the closest order statistics.
func Percentile(values []int, p float64) (float64, error) {
	if p < 0 || p > 1 || math.IsNaN(p) {
		return 0, eris.Wrapf(ErrInvalidPercentile, "linkage: percentile %v", p)
	}
	if len(values) == 0 {
		return 0, ErrDegenerateThreshold
	}

	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[hi]-sorted[lo]), nil
}

// SimilarityThreshold computes the cutoff for a candidate pool.
func SimilarityThreshold(cands []Candidate, p float64) (float64, error) {
	sims := make([]int, len(cands))
	for i, c := range cands {
		sims[i] = c.NameSimilarity
	}
	return Percentile(sims, p)
}
