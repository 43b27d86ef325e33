package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"

	"github.com/MikeWKI/WKI-WIP/internal/api"
)

func TestFitCutsToWidth(t *testing.T) {
	gofakeit.Seed(7)
	for i := 0; i < 50; i++ {
		name := gofakeit.Company() + " " + gofakeit.Company() + " " + gofakeit.Company()
		got := Fit(name, ColCustomer.Width)
		assert.LessOrEqual(t, runewidth.StringWidth(got), ColCustomer.Width, name)
		assert.True(t, strings.HasPrefix(name, got))
	}
}

func TestFitFlattensNewlines(t *testing.T) {
	assert.Equal(t, "waiting on parts ETA 12/30", Fit("waiting on parts\nETA  12/30", 40))
}

func TestFitWideRunes(t *testing.T) {
	got := Fit("東京トラック整備", 6)
	assert.Equal(t, "東京ト", got)
}

func TestTableRendersRows(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, ColRO, ColCustomer, ColResult)
	tbl.Append("40832", "Metro Transit Authority of the Greater Region", "OK 201")
	tbl.Append("40833")
	tbl.Render()

	out := buf.String()
	assert.Equal(t, 2, tbl.Len())
	assert.Contains(t, out, "40832")
	assert.Contains(t, out, "OK 201")
	assert.Contains(t, out, Fit("Metro Transit Authority of the Greater Region", ColCustomer.Width))
	assert.NotContains(t, out, "Greater Region")
}

func TestEmptyTableRendersNothing(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, ColRO).Render()
	assert.Empty(t, buf.String())
}

func TestTallyPartitions(t *testing.T) {
	var tally Tally
	outcomes := []api.Outcome{
		api.OutcomeSuccess, api.OutcomeSuccess, api.OutcomeRejected,
		api.OutcomeTransport, api.OutcomeSuccess,
	}
	for _, o := range outcomes {
		tally.Add(o)
	}

	assert.Equal(t, 3, tally.Success)
	assert.Equal(t, 1, tally.Rejected)
	assert.Equal(t, 1, tally.Transport)
	assert.Equal(t, len(outcomes), tally.Total())
	assert.Equal(t, 2, tally.Failed())
}

func TestZeroTallyFooter(t *testing.T) {
	var buf bytes.Buffer
	Tally{}.WriteFooter(&buf, "Deleted")

	out := buf.String()
	assert.Contains(t, out, "Deleted: 0")
	assert.Contains(t, out, "Rejected: 0")
	assert.Contains(t, out, "Transport failure: 0")
	assert.Contains(t, out, "Total: 0")
	assert.NotContains(t, out, "orphans")
	assert.NotContains(t, out, "Skipped")
}

func TestSkippedStaysOutOfTotal(t *testing.T) {
	var tally Tally
	tally.Add(api.OutcomeSuccess)
	tally.Add(api.OutcomeSkipped)

	assert.Equal(t, 1, tally.Total())
	assert.Equal(t, 0, tally.Failed())

	var buf bytes.Buffer
	tally.WriteFooter(&buf, "Deleted")
	assert.Contains(t, buf.String(), "Total: 1")
	assert.Contains(t, buf.String(), "Skipped (no id, not sent): 1")
}

func TestFooterMentionsOrphans(t *testing.T) {
	var buf bytes.Buffer
	Tally{Rejected: 1, Orphaned: 1}.WriteFooter(&buf, "Archived")
	assert.Contains(t, buf.String(), "wip completed orphans")
}
