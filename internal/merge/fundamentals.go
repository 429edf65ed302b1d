package merge

import (
	"cmp"
	"slices"
)

type firmYearKey struct {
	gvkey string
	year  int
}

// Fundamentals joins year links with fundamentals on (GVKEY, fiscal year).
// When several rows share a (GVKEY, fiscal year) the one with the lowest
// score, then highest similarity, wins; further ties keep the first seen.
func Fundamentals(links []YearLink, funda []Fundamental) []FirmYear {
	index := make(map[firmYearKey][]Fundamental)
	for _, f := range funda {
		k := firmYearKey{f.GVKey, f.FiscalYear}
		index[k] = append(index[k], f)
	}

	var joined []FirmYear
	for _, y := range links {
		for _, f := range index[firmYearKey{y.GVKey, y.Year}] {
			joined = append(joined, FirmYear{YearLink: y, Fundamental: f})
		}
	}

	slices.SortStableFunc(joined, func(a, b FirmYear) int {
		return cmp.Or(
			cmp.Compare(a.GVKey, b.GVKey),
			cmp.Compare(a.Fundamental.FiscalYear, b.Fundamental.FiscalYear),
			cmp.Compare(a.Score, b.Score),
			cmp.Compare(b.NameSimilarity, a.NameSimilarity),
		)
	})

	out := joined[:0]
	seen := make(map[firmYearKey]struct{})
	for _, fy := range joined {
		k := firmYearKey{fy.GVKey, fy.Fundamental.FiscalYear}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, fy)
	}
	return out
}
