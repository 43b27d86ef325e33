package normalize

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeWKI/WKI-WIP/internal/models"
)

func TestFromCellsPadsShortRows(t *testing.T) {
	o, ok := FromCells([]string{" Metro 12.19 ", "333", "40832"})
	require.True(t, ok)

	assert.Equal(t, "Metro 12.19", o.Customer)
	assert.Equal(t, "333", o.Unit)
	assert.Equal(t, "40832", o.RO)
	assert.Equal(t, "", o.Bay)
	assert.Equal(t, "", o.Call)
}

func TestFromCellsIgnoresExtraCells(t *testing.T) {
	cells := make([]string, len(Columns)+3)
	cells[0] = "Freight Logistics"
	cells[len(Columns)-1] = "called"
	cells[len(Columns)] = "overflow"

	o, ok := FromCells(cells)
	require.True(t, ok)
	assert.Equal(t, "called", o.Call)
}

func TestFromCellsDropsBlankKey(t *testing.T) {
	tests := []struct {
		name  string
		cells []string
	}{
		{"nil row", nil},
		{"empty first cell", []string{"", "333", "40832"}},
		{"whitespace first cell", []string{"   \t", "333", "40832"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := FromCells(tt.cells)
			assert.False(t, ok)
		})
	}
}

func TestFromMapToleratesHeaderSpacing(t *testing.T) {
	withSpace := map[string]string{
		"Customer":      "Miramar Transport",
		"UNIT":          "95",
		"R.O.":          "40841",
		"Triage Notes ": " check APU ",
	}
	withoutSpace := map[string]string{
		" Customer":    "Miramar Transport",
		"UNIT ":        "95",
		"R.O.":         "40841",
		"Triage Notes": "check APU",
	}

	a, ok := FromMap(withSpace)
	require.True(t, ok)
	b, ok := FromMap(withoutSpace)
	require.True(t, ok)

	assert.Equal(t, "check APU", a.TriageNotes)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("header spacing changed the result (-a +b):\n%s", diff)
	}
}

func TestFromMapDropsMissingCustomer(t *testing.T) {
	_, ok := FromMap(map[string]string{"UNIT": "95", "R.O.": "40841"})
	assert.False(t, ok)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	rows := [][]string{
		{" Metro ", " 333 ", "40832 ", "DIRT", " notes  "},
		{"Freight", "7098", "40794", "Row 1", "", " clutch ", "", "", "", "Transmission light "},
		{"Solo"},
	}

	for _, row := range rows {
		once, ok := FromCells(row)
		require.True(t, ok)
		twice := Normalize(once)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Fatalf("normalize not idempotent (-once +twice):\n%s", diff)
		}
	}
}

func TestAllSkipsBlankCustomers(t *testing.T) {
	in := []models.Order{
		{Customer: " A ", RO: "1"},
		{Customer: "   ", RO: "2"},
		{Customer: "B", RO: " 3 "},
	}

	out := All(in)
	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].Customer)
	assert.Equal(t, "3", out[1].RO)
}

func TestIsSentinel(t *testing.T) {
	assert.True(t, IsSentinel(">>> BAY 3"))
	assert.True(t, IsSentinel("  <end>"))
	assert.False(t, IsSentinel("Metro 12.19"))
	assert.False(t, IsSentinel(""))
}

func TestHasRequired(t *testing.T) {
	assert.True(t, HasRequired(models.Order{Customer: "A", Unit: "1", RO: "2"}))
	assert.False(t, HasRequired(models.Order{Customer: "A", Unit: "1"}))
	assert.False(t, HasRequired(models.Order{Unit: "1", RO: "2"}))
}
