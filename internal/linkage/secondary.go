package linkage

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SecondaryCandidates joins the current ticker windows of the given companies
// with the current ticker spell of every security, on ticker. Candidates whose
// windows do not overlap are dropped, since tickers are reused over time.
func SecondaryCandidates(history []HistoryRow, names []NameRow, companies map[string]struct{}) []Candidate {
	upper := cases.Upper(language.Und)

	var src []HistoryRow
	for _, r := range history {
		if _, ok := companies[r.CompanyName]; !ok || r.Ticker == "" {
			continue
		}
		src = append(src, r)
	}
	var tgt []NameRow
	for _, n := range names {
		if n.Ticker == "" {
			continue
		}
		n.Ticker = upper.String(n.Ticker)
		tgt = append(tgt, n)
	}

	sources := CurrentWindowed(src,
		func(r HistoryRow) nameIDKey { return nameIDKey{r.CompanyName, r.Ticker} },
		historyDate, historyDate,
	)
	targets := CurrentWindowed(tgt,
		func(n NameRow) permIDKey { return permIDKey{n.PermNo, n.Ticker} },
		nameStart, nameEnd,
	)

	byTicker := make(map[string][]Windowed[NameRow, permIDKey])
	for _, t := range targets {
		byTicker[t.Row.Ticker] = append(byTicker[t.Row.Ticker], t)
	}

	var out []Candidate
	for _, s := range sources {
		for _, t := range byTicker[s.Row.Ticker] {
			c := Candidate{
				Source:      s.Row,
				SourceFirst: s.Window.First,
				SourceLast:  s.Window.Last,
				Target:      t.Row,
				TargetStart: t.Window.First,
				TargetEnd:   t.Window.Last,
			}
			if !c.Overlaps() {
				continue
			}
			c.NameSimilarity = TokenSetRatio(c.Target.CompanyName, c.Source.CompanyName)
			out = append(out, c)
		}
	}
	return out
}

// CUSIP6Match reports whether the six-character issuer prefix of cusip
// matches ncusip at offset zero or one.
func CUSIP6Match(cusip, ncusip string) bool {
	if len(cusip) < 6 {
		return false
	}
	issuer := cusip[:6]
	if len(ncusip) >= 6 && ncusip[:6] == issuer {
		return true
	}
	return len(ncusip) >= 7 && ncusip[1:7] == issuer
}

// SecondaryScore grades a ticker candidate: 0 when the issuer prefix and the
// names agree, 4 prefix only, 5 names only, 6 neither.
func SecondaryScore(c Candidate, threshold float64) int {
	prefix := CUSIP6Match(c.Source.CUSIP, c.Target.NCUSIP)
	similar := float64(c.NameSimilarity) >= threshold
	switch {
	case prefix && similar:
		return 0
	case prefix:
		return 4
	case similar:
		return 5
	default:
		return 6
	}
}

// ScoreSecondary grades every candidate and keeps, for each company, all
// links sharing the minimum score across its tickers.
func ScoreSecondary(cands []Candidate, threshold float64) []Link {
	links := make([]Link, 0, len(cands))
	best := make(map[string]int)
	for _, c := range cands {
		l := c.link(SecondaryScore(c, threshold), StageSecondary)
		links = append(links, l)
		if s, ok := best[l.CompanyName]; !ok || l.Score < s {
			best[l.CompanyName] = l.Score
		}
	}

	out := links[:0]
	for _, l := range links {
		if l.Score == best[l.CompanyName] {
			out = append(out, l)
		}
	}
	return out
}
