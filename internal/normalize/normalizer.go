// Package normalize maps spreadsheet rows onto models.Order.
//
// Source sheets are hand-maintained, so headers drift in spacing and rows
// come with missing trailing cells. Everything here is forgiving: short rows
// are padded, header text is only ever used as a lookup key, and rows with
// an empty first cell are dropped rather than rejected.
package normalize

import (
	"strings"

	"github.com/MikeWKI/WKI-WIP/internal/models"
)

// Columns is the positional schema of the service department sheets.
// "Triage Notes " carries the trailing space found in the exported header.
var Columns = []string{
	"Customer",
	"UNIT",
	"R.O.",
	"Bay #",
	"First Shift Notes",
	"Second Shift Notes",
	"Ordered parts/ETA and TCS case #s",
	"Triage Notes ",
	"Quote Status",
	"Repair Condition",
	"Contact Info",
	"Account Status",
	"Customer Status",
	"Call",
}

// fields returns pointers to the sheet-backed fields of o in Columns order.
func fields(o *models.Order) []*string {
	return []*string{
		&o.Customer,
		&o.Unit,
		&o.RO,
		&o.Bay,
		&o.FirstShift,
		&o.SecondShift,
		&o.OrderedParts,
		&o.TriageNotes,
		&o.QuoteStatus,
		&o.RepairCondition,
		&o.ContactInfo,
		&o.AccountStatus,
		&o.CustomerStatus,
		&o.Call,
	}
}

// allFields also covers metadata so Normalize trims the whole record.
func allFields(o *models.Order) []*string {
	return append(fields(o),
		&o.ID,
		&o.LegacyID,
		&o.DateAdded,
		&o.ArchiveMonth,
		&o.DateCompleted,
		&o.CompletedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
}

// FromCells maps a positional row. Missing trailing cells become empty
// strings and extra cells are ignored. The second return is false when the
// first cell is blank and the row must be skipped.
func FromCells(cells []string) (models.Order, bool) {
	if len(cells) == 0 || strings.TrimSpace(cells[0]) == "" {
		return models.Order{}, false
	}

	var o models.Order
	for i, f := range fields(&o) {
		if i < len(cells) {
			*f = strings.TrimSpace(cells[i])
		}
	}
	return o, true
}

// FromMap maps a header-keyed row. Headers are matched exactly first and then
// with surrounding whitespace ignored, so "Triage Notes" and "Triage Notes "
// resolve to the same column.
func FromMap(row map[string]string) (models.Order, bool) {
	trimmed := make(map[string]string, len(row))
	for k, v := range row {
		key := strings.TrimSpace(k)
		if _, ok := trimmed[key]; !ok {
			trimmed[key] = v
		}
	}

	lookup := func(column string) string {
		if v, ok := row[column]; ok {
			return v
		}
		return trimmed[strings.TrimSpace(column)]
	}

	cells := make([]string, len(Columns))
	for i, column := range Columns {
		cells[i] = lookup(column)
	}
	return FromCells(cells)
}

// Normalize trims every string field. Applying it twice is a no-op.
func Normalize(o models.Order) models.Order {
	for _, f := range allFields(&o) {
		*f = strings.TrimSpace(*f)
	}
	return o
}

// All normalizes orders and drops those whose customer is blank.
func All(orders []models.Order) []models.Order {
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		o = Normalize(o)
		if o.Customer == "" {
			continue
		}
		out = append(out, o)
	}
	return out
}

// IsSentinel reports separator rows such as ">>> BAY 3 <<<" that the sheets
// use as visual dividers.
func IsSentinel(customer string) bool {
	customer = strings.TrimSpace(customer)
	return strings.HasPrefix(customer, ">") || strings.HasPrefix(customer, "<")
}

// HasRequired reports whether the fields the API refuses to create without
// are present.
func HasRequired(o models.Order) bool {
	return o.Customer != "" && o.Unit != "" && o.RO != ""
}
