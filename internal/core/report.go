package core

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// ReportFilter narrows a report. Empty fields do not filter.
type ReportFilter struct {
	Department string
	From       string
	To         string
}

// FilterReport applies f to entries and sorts the result by raw date,
// newest first, keeping insertion order for equal dates.
//
// From and To compare raw date strings, which is only exact for YYYY-MM-DD:
// a stored "2024-01-31 10:00:00" sorts after To "2024-01-31" and is dropped.
// Role checks belong to the caller.
func FilterReport(entries []Entry, f ReportFilter) []Entry {
	fold := cases.Fold()
	needle := fold.String(f.Department)

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if needle != "" && !strings.Contains(fold.String(e.Department), needle) {
			continue
		}
		if f.From != "" && e.Date < f.From {
			continue
		}
		if f.To != "" && e.Date > f.To {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date > out[j].Date
	})
	return out
}
