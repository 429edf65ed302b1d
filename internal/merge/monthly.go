package merge

import (
	"time"

	"github.com/sells-group/xlink/internal/linkage"
)

// LastBusinessDay returns the last weekday of t's month.
func LastBusinessDay(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

type permDateKey struct {
	permno int64
	date   time.Time
}

// Monthly moves each observation to the last business day of its month and
// joins it through every link of its company to the monthly record of the
// linked PERMNO on that date.
func Monthly(history []linkage.HistoryRow, links []linkage.Link, msf []MonthlyRow) []MonthlyObservation {
	byCompany := make(map[string][]linkage.Link)
	for _, l := range links {
		byCompany[l.CompanyName] = append(byCompany[l.CompanyName], l)
	}

	months := make(map[permDateKey][]MonthlyRow)
	for _, m := range msf {
		k := permDateKey{m.PermNo, civil(m.Date)}
		months[k] = append(months[k], m)
	}

	var out []MonthlyObservation
	for _, h := range history {
		date := LastBusinessDay(h.Date)
		for _, l := range byCompany[h.CompanyName] {
			for _, m := range months[permDateKey{l.PermNo, date}] {
				out = append(out, MonthlyObservation{Observation: h, Date: date, Link: l, Monthly: m})
			}
		}
	}
	return out
}

func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
