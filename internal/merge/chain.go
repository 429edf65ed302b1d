package merge

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/xlink/internal/linkage"
)

// BestLinks keeps the best link per company: lowest score, then highest
// similarity.
func BestLinks(links []linkage.Link) map[string]linkage.Link {
	best := make(map[string]linkage.Link)
	for _, l := range links {
		cur, ok := best[l.CompanyName]
		if !ok || l.Better(cur) {
			best[l.CompanyName] = l
		}
	}
	return best
}

// ChainToFirm resolves every observation to a GVKEY through its company's best
// link and the bridge spells valid at the observation date. Observations
// without a link or a valid spell are dropped.
func ChainToFirm(history []linkage.HistoryRow, links []linkage.Link, bridge []BridgeRow, today time.Time) []YearLink {
	best := BestLinks(links)

	spells := make(map[int64][]BridgeRow)
	for _, b := range bridge {
		if b.Usable() {
			spells[b.PermNo] = append(spells[b.PermNo], b)
		}
	}

	seen := make(map[YearLink]struct{})
	var out []YearLink
	for _, h := range history {
		l, ok := best[h.CompanyName]
		if !ok {
			continue
		}
		for _, b := range spells[l.PermNo] {
			if !b.ValidAt(h.Date, today) {
				continue
			}
			y := YearLink{
				CompanyName:    h.CompanyName,
				Year:           h.Year,
				CUSIP:          h.CUSIP,
				Ticker:         h.Ticker,
				PermNo:         l.PermNo,
				GVKey:          b.GVKey,
				Score:          l.Score,
				NameSimilarity: l.NameSimilarity,
			}
			if _, dup := seen[y]; dup {
				continue
			}
			seen[y] = struct{}{}
			out = append(out, y)
		}
	}

	zap.L().With(zap.String("component", "merge")).Info("chained observations to firms",
		zap.Int("observations", len(history)),
		zap.Int("companies_linked", len(best)),
		zap.Int("year_links", len(out)),
	)
	return out
}
