package linkage

import (
	"sort"
)

// AssemblyStats describes how a link table was produced.
type AssemblyStats struct {
	SourceEntities      int         `json:"source_entities"`
	PrimaryCandidates   int         `json:"primary_candidates"`
	SecondaryCandidates int         `json:"secondary_candidates"`
	PrimaryThreshold    float64     `json:"primary_threshold"`
	SecondaryThreshold  float64     `json:"secondary_threshold"`
	PrimaryLinks        int         `json:"primary_links"`
	SecondaryLinks      int         `json:"secondary_links"`
	Unmatched           int         `json:"unmatched"`
	ScoreCounts         map[int]int `json:"score_counts"`
}

// LinkTable is the final set of scored links. Companies without any link are
// listed in Unmatched.
type LinkTable struct {
	Links     []Link
	Unmatched []string
	Stats     AssemblyStats
}

// Assemble keeps the best primary link per company, appends the secondary
// links, drops exact duplicates and lists the companies left without a link.
// Stats thresholds and candidate counts are left for the caller to fill.
func Assemble(companies []string, primary, secondary []Link) *LinkTable {
	best := make(map[string]Link)
	for _, l := range primary {
		if cur, ok := best[l.CompanyName]; !ok || l.Better(cur) {
			best[l.CompanyName] = l
		}
	}
	kept := make([]Link, 0, len(best))
	for _, l := range best {
		kept = append(kept, l)
	}
	sortLinks(kept)

	sec := dedupe(secondary)
	sortLinks(sec)

	t := &LinkTable{
		Links: append(kept, sec...),
		Stats: AssemblyStats{
			PrimaryLinks:   len(kept),
			SecondaryLinks: len(sec),
			ScoreCounts:    make(map[int]int),
		},
	}

	linked := make(map[string]struct{})
	for _, l := range t.Links {
		linked[l.CompanyName] = struct{}{}
		t.Stats.ScoreCounts[l.Score]++
	}

	seen := make(map[string]struct{})
	for _, c := range companies {
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		if _, ok := linked[c]; !ok {
			t.Unmatched = append(t.Unmatched, c)
		}
	}
	sort.Strings(t.Unmatched)
	t.Stats.SourceEntities = len(seen)
	t.Stats.Unmatched = len(t.Unmatched)
	return t
}

// ForCompany returns the links of one company in table order.
func (t *LinkTable) ForCompany(name string) []Link {
	var out []Link
	for _, l := range t.Links {
		if l.CompanyName == name {
			out = append(out, l)
		}
	}
	return out
}

func dedupe(links []Link) []Link {
	seen := make(map[Link]struct{}, len(links))
	out := make([]Link, 0, len(links))
	for _, l := range links {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func sortLinks(links []Link) {
	sort.SliceStable(links, func(i, j int) bool {
		a, b := links[i], links[j]
		if a.CompanyName != b.CompanyName {
			return a.CompanyName < b.CompanyName
		}
		if a.Ticker != b.Ticker {
			return a.Ticker < b.Ticker
		}
		return a.Better(b)
	})
}
