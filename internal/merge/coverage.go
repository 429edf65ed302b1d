package merge

import (
	"slices"
	"time"

	"github.com/sells-group/xlink/internal/linkage"
)

// CoverageInput holds the extracts compared by Coverage.
type CoverageInput struct {
	Monthly      []MonthlyRow
	NameSpells   []linkage.NameRow
	Securities   []SecurityRow
	Bridge       []BridgeRow
	Fundamentals []Fundamental
}

type linkKey struct {
	gvkey string
	year  int
}

// Coverage counts, per calendar year, the distinct GVKEYs with fundamentals
// reachable through a CUSIP link (monthly file × name spells × securities on
// the 8-character CUSIP) and through the bridge table.
func Coverage(in CoverageInput, today time.Time) []CoverageRow {
	spells := make(map[int64][]linkage.NameRow)
	for _, n := range in.NameSpells {
		if n.NCUSIP != "" {
			spells[n.PermNo] = append(spells[n.PermNo], n)
		}
	}

	securities := make(map[string][]string)
	for _, s := range in.Securities {
		if len(s.CUSIP) < linkage.IdentifierLength {
			continue
		}
		c8 := s.CUSIP[:linkage.IdentifierLength]
		securities[c8] = append(securities[c8], s.GVKey)
	}

	bridge := make(map[int64][]BridgeRow)
	for _, b := range in.Bridge {
		if b.Usable() {
			bridge[b.PermNo] = append(bridge[b.PermNo], b)
		}
	}

	hasFunda := make(map[linkKey]struct{})
	for _, f := range in.Fundamentals {
		hasFunda[linkKey{f.GVKey, f.DataDate.Year()}] = struct{}{}
	}

	cusipLinks := make(map[linkKey]struct{})
	ccmLinks := make(map[linkKey]struct{})
	for _, m := range in.Monthly {
		for _, n := range spells[m.PermNo] {
			if m.Date.Before(n.NameDate) || m.Date.After(n.NameEndDate) {
				continue
			}
			year := m.Date.Year()
			for _, gvkey := range securities[n.NCUSIP] {
				cusipLinks[linkKey{gvkey, year}] = struct{}{}
			}
			for _, b := range bridge[m.PermNo] {
				if b.ValidAt(m.Date, today) {
					ccmLinks[linkKey{b.GVKey, year}] = struct{}{}
				}
			}
		}
	}

	counts := make(map[int]*CoverageRow)
	tally := func(links map[linkKey]struct{}, inc func(*CoverageRow)) {
		for k := range links {
			if _, ok := hasFunda[k]; !ok {
				continue
			}
			row, ok := counts[k.year]
			if !ok {
				row = &CoverageRow{Year: k.year}
				counts[k.year] = row
			}
			inc(row)
		}
	}
	tally(ccmLinks, func(r *CoverageRow) { r.CCM++ })
	tally(cusipLinks, func(r *CoverageRow) { r.CUSIP++ })

	out := make([]CoverageRow, 0, len(counts))
	for _, r := range counts {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b CoverageRow) int { return a.Year - b.Year })
	return out
}
