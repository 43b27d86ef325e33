// Package reconcile holds the work-order specific rules layered on top of
// dedupe: which orders count as completed, how duplicates are ranked, and
// which active orders were left behind by an interrupted archive.
package reconcile

import (
	"sort"
	"strings"

	"github.com/MikeWKI/WKI-WIP/internal/dedupe"
	"github.com/MikeWKI/WKI-WIP/internal/models"
)

// completeMarker is matched as a substring, so "Incomplete" also qualifies.
// Leave the match loose until the service desk rules on that case.
const completeMarker = "complete"

// MentionsComplete is the classification rule over one free-text status,
// which must already be lower-cased.
func MentionsComplete(status string) bool {
	return strings.Contains(status, completeMarker)
}

// IsCompleted reports whether either status column mentions completion.
func IsCompleted(o models.Order) bool {
	return MentionsComplete(strings.ToLower(strings.TrimSpace(o.CustomerStatus))) ||
		MentionsComplete(strings.ToLower(strings.TrimSpace(o.RepairCondition)))
}

// Completed filters orders ready for archival, preserving order.
func Completed(orders []models.Order) []models.Order {
	var out []models.Order
	for _, o := range orders {
		if IsCompleted(o) {
			out = append(out, o)
		}
	}
	return out
}

// Orphan is an active order that belongs in the archive. Month is the
// bucket it was meant for, empty when unknown.
type Orphan struct {
	Order models.Order
	Month string
}

// Orphans lists active orders that should have been archived: those a
// create-then-archive run recorded as left behind (recorded maps order id
// to the intended bucket), and any other order already marked complete.
func Orphans(active []models.Order, recorded map[string]string) []Orphan {
	var out []Orphan
	for _, o := range active {
		if month, ok := recorded[o.OrderID()]; ok {
			out = append(out, Orphan{Order: o, Month: month})
			continue
		}
		if IsCompleted(o) {
			out = append(out, Orphan{Order: o})
		}
	}
	return out
}

// ROKey is the business key extractor.
func ROKey(o models.Order) string {
	return o.RO
}

// ActiveRecency ranks active orders by last update, then creation.
func ActiveRecency(o models.Order) string {
	if o.UpdatedAt != "" {
		return o.UpdatedAt
	}
	return o.CreatedAt
}

// ArchivedRecency ranks archived orders by creation, then completion date.
func ArchivedRecency(o models.Order) string {
	if o.CreatedAt != "" {
		return o.CreatedAt
	}
	return o.DateCompleted
}

// DuplicateGroups finds repeated RO numbers, ordered by RO.
func DuplicateGroups(orders []models.Order) []models.DuplicateGroup {
	dups := dedupe.Duplicates(orders, ROKey)
	groups := make([]models.DuplicateGroup, 0, len(dups))
	for _, ro := range dedupe.Keys(dups) {
		groups = append(groups, models.DuplicateGroup{
			RO:     ro,
			Count:  len(dups[ro]),
			Orders: dups[ro],
		})
	}
	return groups
}

// Resolve turns saved duplicate groups into keep/delete decisions.
func Resolve(groups []models.DuplicateGroup, recency func(models.Order) string) []dedupe.Resolution[models.Order] {
	out := make([]dedupe.Resolution[models.Order], 0, len(groups))
	for _, g := range groups {
		if len(g.Orders) == 0 {
			continue
		}
		out = append(out, dedupe.Resolve(g.RO, g.Orders, recency))
	}
	return out
}

// SurplusCount is how many records resolving the groups would delete.
func SurplusCount(groups []models.DuplicateGroup) int {
	n := 0
	for _, g := range groups {
		if len(g.Orders) > 1 {
			n += len(g.Orders) - 1
		}
	}
	return n
}

// MonthCount is the size of one archive bucket.
type MonthCount struct {
	Month string
	Count int
}

// CountByMonth sizes archive buckets, ordered by label. Orders without a
// label fall in "Unknown".
func CountByMonth(archived []models.Order) []MonthCount {
	counts := make(map[string]int)
	for _, o := range archived {
		month := o.ArchiveMonth
		if month == "" {
			month = "Unknown"
		}
		counts[month]++
	}

	out := make([]MonthCount, 0, len(counts))
	for month, n := range counts {
		out = append(out, MonthCount{Month: month, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// Flatten joins the GET /archives response into one list, ordered by month
// label so runs are repeatable.
func Flatten(byMonth map[string][]models.Order) []models.Order {
	months := dedupe.Keys(byMonth)
	var out []models.Order
	for _, m := range months {
		out = append(out, byMonth[m]...)
	}
	return out
}
