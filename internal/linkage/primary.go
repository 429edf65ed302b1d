package linkage

import "time"

type nameIDKey struct {
	name string
	id   string
}

type permIDKey struct {
	permno int64
	id     string
}

type namePermKey struct {
	name   string
	permno int64
}

// PrimaryCandidates joins each company's current CUSIP window with the
// current name spell of every security sharing that CUSIP. For every
// (company, security) pair only the candidates carrying the latest source
// window survive.
func PrimaryCandidates(history []HistoryRow, names []NameRow) []Candidate {
	var src []HistoryRow
	for _, r := range history {
		if r.CompanyName != "" && r.CUSIP != "" {
			src = append(src, r)
		}
	}
	var tgt []NameRow
	for _, n := range names {
		if n.NCUSIP != "" {
			tgt = append(tgt, n)
		}
	}

	sources := CurrentWindowed(src,
		func(r HistoryRow) nameIDKey { return nameIDKey{r.CompanyName, r.CUSIP} },
		historyDate, historyDate,
	)
	targets := CurrentWindowed(tgt,
		func(n NameRow) permIDKey { return permIDKey{n.PermNo, n.NCUSIP} },
		nameStart, nameEnd,
	)

	byCUSIP := make(map[string][]Windowed[NameRow, permIDKey])
	for _, t := range targets {
		id := joinPrefix(t.Row.NCUSIP)
		byCUSIP[id] = append(byCUSIP[id], t)
	}

	var joined []Candidate
	for _, s := range sources {
		for _, t := range byCUSIP[s.Row.CUSIP] {
			joined = append(joined, Candidate{
				Source:      s.Row,
				SourceFirst: s.Window.First,
				SourceLast:  s.Window.Last,
				Target:      t.Row,
				TargetStart: t.Window.First,
				TargetEnd:   t.Window.Last,
			})
		}
	}

	latest := make(map[namePermKey]time.Time)
	for _, c := range joined {
		k := namePermKey{c.Source.CompanyName, c.Target.PermNo}
		if l, ok := latest[k]; !ok || c.SourceLast.After(l) {
			latest[k] = c.SourceLast
		}
	}

	out := make([]Candidate, 0, len(joined))
	for _, c := range joined {
		if !c.SourceLast.Equal(latest[namePermKey{c.Source.CompanyName, c.Target.PermNo}]) {
			continue
		}
		c.NameSimilarity = TokenSetRatio(c.Target.CompanyName, c.Source.CompanyName)
		out = append(out, c)
	}
	return out
}

// PrimaryScore grades a CUSIP candidate: 0 when the windows overlap and the
// names agree, 1 overlap only, 2 names only, 3 neither.
func PrimaryScore(c Candidate, threshold float64) int {
	overlap := c.Overlaps()
	similar := float64(c.NameSimilarity) >= threshold
	switch {
	case overlap && similar:
		return 0
	case overlap:
		return 1
	case similar:
		return 2
	default:
		return 3
	}
}

// ScorePrimary grades every candidate against threshold.
func ScorePrimary(cands []Candidate, threshold float64) []Link {
	links := make([]Link, 0, len(cands))
	for _, c := range cands {
		links = append(links, c.link(PrimaryScore(c, threshold), StagePrimary))
	}
	return links
}

// joinPrefix truncates a security identifier to the full CUSIP length.
func joinPrefix(id string) string {
	if len(id) > IdentifierLength {
		return id[:IdentifierLength]
	}
	return id
}

func historyDate(r HistoryRow) time.Time { return r.Date }

func nameStart(n NameRow) time.Time { return n.NameDate }

func nameEnd(n NameRow) time.Time { return n.NameEndDate }
