package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/MikeWKI/WKI-WIP/internal/api/apitest"
	"github.com/MikeWKI/WKI-WIP/internal/config"
	"github.com/MikeWKI/WKI-WIP/internal/database"
	"github.com/MikeWKI/WKI-WIP/internal/models"
	"github.com/MikeWKI/WKI-WIP/internal/plan"
)

type harness struct {
	t   *testing.T
	srv *apitest.Server
	dir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("timeouts:\n  delay: 1ms\n"), 0o644))
	return &harness{t: t, srv: srv, dir: dir}
}

// resetFlags puts every flag back to its default; cobra keeps parsed values
// between executions of the same command tree.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func (h *harness) run(input string, args ...string) (string, error) {
	h.t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(append(args,
		"--config", filepath.Join(h.dir, "config.yaml"),
		"--env-file", filepath.Join(h.dir, "missing.env"),
		"--api-url", h.srv.BaseURL(),
		"--plan-dir", h.dir,
	))
	err := rootCmd.Execute()
	return out.String(), err
}

func (h *harness) path(name string) string {
	return filepath.Join(h.dir, name)
}

func (h *harness) write(name, content string) string {
	h.t.Helper()
	p := h.path(name)
	require.NoError(h.t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestImportCSVThenRetry(t *testing.T) {
	h := newHarness(t)
	file := h.write("wip.csv", "Customer,UNIT,R.O.,Bay #,Customer Status\n"+
		"Metro,333,40832,DIRT,In Progress\n"+
		">>> WAITING ON PARTS,,,,\n"+
		"Acme,1,40001,,\n"+
		"No RO,5,,,\n")
	h.srv.FailCreate["40001"] = 500

	out, err := h.run("", "import", "csv", "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 valid orders")
	assert.Contains(t, out, "1 separators, 1 missing customer/unit/RO")
	assert.Contains(t, out, "Created: 1")
	assert.Equal(t, 2, h.srv.CallCount("POST /api/orders"))

	parsed, err := plan.LoadOrders(h.path(plan.ParsedOrdersFile))
	require.NoError(t, err)
	assert.Len(t, parsed, 2)

	failed, err := plan.LoadFailed(h.path(plan.FailedOrdersFile))
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "40001", failed[0].Order.RO)
	assert.Equal(t, 500, failed[0].StatusCode)

	delete(h.srv.FailCreate, "40001")
	out, err = h.run("", "retry", "--delay", "1ms", "--timeout", "5s")
	require.NoError(t, err)
	assert.Contains(t, out, "Resubmitted: 1")

	active, _ := h.srv.Snapshot()
	assert.Len(t, active, 2)
	failed, err = plan.LoadFailed(h.path(plan.FailedOrdersFile))
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestImportCSVDryRunMakesNoCalls(t *testing.T) {
	h := newHarness(t)
	file := h.write("wip.csv", "Customer,UNIT,R.O.\nMetro,333,40832\n")

	_, err := h.run("", "import", "csv", "--file", file, "--dry-run")
	require.NoError(t, err)
	assert.Zero(t, h.srv.CallCount("POST /api/orders"))
	assert.FileExists(t, h.path(plan.ParsedOrdersFile))
}

func TestRetryWithoutFailuresFile(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "retry", "--delay", "1ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestImportArchiveBulk(t *testing.T) {
	h := newHarness(t)
	file := h.write("nov.csv", "Metro,333,40832\nAcme,1,40001\n,,\n")

	out, err := h.run("", "import", "archive", "--file", file, "--month", "November 2025", "--mode", "bulk")
	require.NoError(t, err)
	assert.Contains(t, out, "Archived: 2")

	_, archived := h.srv.Snapshot()
	require.Len(t, archived, 2)
	for _, o := range archived {
		assert.Equal(t, "November 2025", o.ArchiveMonth)
	}
}

func TestImportArchiveRejectsUnknownMode(t *testing.T) {
	h := newHarness(t)
	file := h.write("nov.csv", "Metro,333,40832\n")

	_, err := h.run("", "import", "archive", "--file", file, "--month", "November 2025", "--mode", "fast")
	require.Error(t, err)
	assert.Empty(t, h.srv.Calls)
}

func seedDuplicates(h *harness) []models.Order {
	return h.srv.Seed(
		models.Order{Customer: "Metro", Unit: "333", RO: "40832"},
		models.Order{Customer: "Metro", Unit: "333", RO: "40832"},
		models.Order{Customer: "Acme", Unit: "1", RO: "40001"},
		models.Order{Customer: "Metro", Unit: "333", RO: "40832"},
	)
}

func TestDuplicatesCheckThenRemove(t *testing.T) {
	h := newHarness(t)
	seeded := seedDuplicates(h)

	out, err := h.run("", "duplicates", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Duplicate RO numbers: 1")
	assert.Contains(t, out, "would delete 2 orders")

	groups, err := plan.LoadGroups(h.path(plan.DuplicateOrdersFile))
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 3, groups[0].Count)

	out, err = h.run("delete\n", "duplicates", "remove")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted: 2")

	active, _ := h.srv.Snapshot()
	ids := []string{}
	for _, o := range active {
		ids = append(ids, o.ID)
	}
	assert.ElementsMatch(t, []string{seeded[2].ID, seeded[3].ID}, ids)
}

func TestDuplicatesRemoveCancelled(t *testing.T) {
	h := newHarness(t)
	seedDuplicates(h)

	_, err := h.run("", "duplicates", "check")
	require.NoError(t, err)

	out, err := h.run("no\n", "duplicates", "remove")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled. No changes made.")
	assert.Zero(t, h.srv.CallCount("DELETE /api/orders/:id"))
}

func TestDuplicatesRemoveNeedsPlan(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("DELETE\n", "duplicates", "remove")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicates check")
}

func TestDuplicatesRemoveEmptyPlan(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, plan.Save(h.path(plan.DuplicateOrdersFile), []models.DuplicateGroup{}))

	out, err := h.run("", "duplicates", "remove")
	require.NoError(t, err)
	assert.Contains(t, out, "No duplicates to remove!")
}

func TestCompletedCheckThenArchive(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed(
		models.Order{Customer: "Acme", Unit: "1", RO: "40001", CustomerStatus: "Completed"},
		models.Order{Customer: "Zeta", Unit: "2", RO: "40002", RepairCondition: "complete - ready"},
		models.Order{Customer: "Metro", Unit: "3", RO: "40003", CustomerStatus: "In Progress"},
	)
	h.srv.SeedArchived(
		models.Order{Customer: "Old", Unit: "9", RO: "50001", ArchiveMonth: "October 2025"},
		models.Order{Customer: "Old", Unit: "9", RO: "50001", ArchiveMonth: "November 2025"},
	)

	out, err := h.run("", "completed", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Completed orders ready to archive: 2")
	assert.Contains(t, out, "RO numbers archived more than once: 1")
	assert.Contains(t, out, "wip archives dedupe")

	toArchive, err := plan.LoadOrders(h.path(plan.OrdersToArchiveFile))
	require.NoError(t, err)
	assert.Len(t, toArchive, 2)

	out, err = h.run("December 2025\narchive\n", "completed", "archive")
	require.NoError(t, err)
	assert.Contains(t, out, "Archived to 'December 2025': 2")

	active, archived := h.srv.Snapshot()
	require.Len(t, active, 1)
	assert.Equal(t, "40003", active[0].RO)
	months := map[string]int{}
	for _, o := range archived {
		months[o.ArchiveMonth]++
	}
	assert.Equal(t, 2, months["December 2025"])
}

func TestCompletedArchiveBlankMonthCancels(t *testing.T) {
	h := newHarness(t)
	seeded := h.srv.Seed(models.Order{Customer: "Acme", Unit: "1", RO: "40001", CustomerStatus: "Completed"})
	require.NoError(t, plan.Save(h.path(plan.OrdersToArchiveFile), seeded))

	out, err := h.run("\n", "completed", "archive")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")
	assert.Zero(t, h.srv.CallCount("POST /api/orders/:id/archive"))
}

func TestCompletedOrphansSaveCompletedOnes(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed(
		models.Order{Customer: "Acme", Unit: "1", RO: "40001", CustomerStatus: "Completed"},
		models.Order{Customer: "Metro", Unit: "3", RO: "40003", ArchiveMonth: "November 2025"},
	)

	out, err := h.run("", "completed", "orphans", "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "Orphaned orders: 1")

	saved, err := plan.LoadOrders(h.path(plan.OrdersToArchiveFile))
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "40001", saved[0].RO)
}

func TestExcelArchiveRowRetriedIntoItsMonth(t *testing.T) {
	h := newHarness(t)

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "October 2025"))
	rows := [][]interface{}{
		{"Customer", "UNIT", "R.O.", "Customer Status"},
		{"Acme", "1", "40001", "Waiting on parts"},
		{"Zeta", "2", "40002", "Waiting on parts"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("October 2025", cell, &row))
	}
	book := h.path("wip.xlsx")
	require.NoError(t, f.SaveAs(book))
	require.NoError(t, f.Close())

	h.srv.FailCreate["40001"] = 500
	_, err := h.run("", "import", "excel", "--file", book)
	require.NoError(t, err)

	failed, err := plan.LoadFailed(h.path(plan.FailedOrdersFile))
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "October 2025", failed[0].Month)

	delete(h.srv.FailCreate, "40001")
	_, err = h.run("", "retry", "--delay", "1ms", "--timeout", "5s")
	require.NoError(t, err)

	active, archived := h.srv.Snapshot()
	assert.Empty(t, active)
	require.Len(t, archived, 2)
	for _, o := range archived {
		assert.Equal(t, "October 2025", o.ArchiveMonth, o.RO)
	}
}

func TestTwoStepArchiveOrphansFinishedLater(t *testing.T) {
	h := newHarness(t)
	file := h.write("oct.csv", "Acme,1,40001,,,,,,,,,,Waiting on parts\nZeta,2,40002\n")

	h.srv.FailCreate["40002"] = 500
	h.srv.FailArchive["*"] = 500
	out, err := h.run("", "import", "archive", "--file", file, "--month", "October 2025", "--mode", "two-step")
	require.NoError(t, err)
	assert.Contains(t, out, "wip completed orphans")

	failed, err := plan.LoadFailed(h.path(plan.FailedOrdersFile))
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "40002", failed[0].Order.RO)
	assert.Equal(t, "October 2025", failed[0].Month)

	recorded, err := plan.LoadOrphans(h.path(plan.OrphanedOrdersFile))
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, "40001", recorded[0].RO)
	assert.Equal(t, "October 2025", recorded[0].Month)

	delete(h.srv.FailArchive, "*")
	out, err = h.run("", "completed", "orphans")
	require.NoError(t, err)
	assert.Contains(t, out, "Orphaned orders: 1")
	assert.Equal(t, 1, h.srv.CallCount("POST /api/orders/:id/archive"))

	out, err = h.run("archive\n", "completed", "orphans", "--archive")
	require.NoError(t, err)
	assert.Contains(t, out, "Archived: 1")

	active, archived := h.srv.Snapshot()
	assert.Empty(t, active)
	require.Len(t, archived, 1)
	assert.Equal(t, "October 2025", archived[0].ArchiveMonth)

	recorded, err = plan.LoadOrphans(h.path(plan.OrphanedOrdersFile))
	require.NoError(t, err)
	assert.Empty(t, recorded)
}

func TestArchivesDedupeQueuesOlderRecords(t *testing.T) {
	h := newHarness(t)
	archived := h.srv.SeedArchived(
		models.Order{Customer: "Old", Unit: "9", RO: "50001", ArchiveMonth: "October 2025"},
		models.Order{Customer: "Old", Unit: "9", RO: "50001", ArchiveMonth: "November 2025"},
	)

	_, err := h.run("", "completed", "check")
	require.NoError(t, err)

	out, err := h.run("DELETE\n", "archives", "dedupe")
	require.NoError(t, err)
	assert.Contains(t, out, "1 archived orders queued")

	queue, err := plan.LoadDeletions(h.path(plan.ArchivedToDeleteFile))
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, archived[0].ID, queue[0].ID)
	assert.Equal(t, "October 2025", queue[0].Month)

	_, after := h.srv.Snapshot()
	assert.Len(t, after, 2)
}

func TestArchivesDedupeNeedsArchives(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, plan.Save(h.path(plan.DuplicateArchivesFile), []models.DuplicateGroup{}))
	h.srv.FailList = 500

	_, err := h.run("DELETE\n", "archives", "dedupe")
	require.Error(t, err)
}

func TestClearRequiresExactPhrase(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed(
		models.Order{Customer: "Acme", Unit: "1", RO: "40001"},
		models.Order{Customer: "Metro", Unit: "3", RO: "40003"},
	)

	out, err := h.run("clear database\n", "clear", "--delay", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "This will delete 2 orders")
	assert.Contains(t, out, "Cancelled")
	active, _ := h.srv.Snapshot()
	assert.Len(t, active, 2)

	out, err = h.run("CLEAR DATABASE\n", "clear", "--delay", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted: 2")
	active, _ = h.srv.Snapshot()
	assert.Empty(t, active)
}

func TestCollectionSelection(t *testing.T) {
	c := config.Default().Collections

	assert.Equal(t, "archivedorders", pickCollection("", false, c))
	assert.Equal(t, "orders", pickCollection("", true, c))
	assert.Equal(t, "scratch", pickCollection("scratch", true, c))

	counts := []database.CollectionCount{
		{Name: "archivedorders", Count: 12},
		{Name: "archives", Count: 0},
		{Name: "orders", Count: 3},
		{Name: "sessions", Count: 40},
	}
	assert.Equal(t, []string{"archivedorders", "orders"}, sampledCollections(counts, c))
}
