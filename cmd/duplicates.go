package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MikeWKI/WKI-WIP/internal/models"
	"github.com/MikeWKI/WKI-WIP/internal/plan"
	"github.com/MikeWKI/WKI-WIP/internal/prompt"
	"github.com/MikeWKI/WKI-WIP/internal/reconcile"
	"github.com/MikeWKI/WKI-WIP/internal/report"
)

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Find and remove active orders that share an RO number",
}

var duplicatesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "List active orders sharing an RO and save duplicate_orders.json",
	RunE:  runDuplicatesCheck,
}

var duplicatesRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Delete all but the most recently updated order in each duplicate group",
	Long: `Reads duplicate_orders.json written by 'wip duplicates check', keeps the
order with the newest updatedAt (createdAt when updatedAt is missing) in each
group and deletes the others after confirmation.`,
	RunE: runDuplicatesRemove,
}

func init() {
	duplicatesCmd.AddCommand(duplicatesCheckCmd, duplicatesRemoveCmd)
}

func runDuplicatesCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	banner(out, "Checking active orders for duplicate RO numbers")

	orders, err := newClient(0, 0).ListOrders(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch orders: %w", err)
	}
	fmt.Fprintf(out, "Total orders: %d\n", len(orders))

	groups := reconcile.DuplicateGroups(orders)
	path := planPath(plan.DuplicateOrdersFile)
	if err := plan.Save(path, groups); err != nil {
		return err
	}

	if len(groups) == 0 {
		fmt.Fprintln(out, "No duplicate RO numbers found.")
		return nil
	}

	fmt.Fprintf(out, "Duplicate RO numbers: %d\n\n", len(groups))
	writeGroups(out, groups, false)

	fmt.Fprintf(out, "\nRemoving duplicates would delete %d orders.\n", reconcile.SurplusCount(groups))
	fmt.Fprintf(out, "Saved to %s. Run 'wip duplicates remove' to clean up.\n", path)
	return nil
}

// writeGroups prints one row per duplicate group. With months set the
// archive bucket of every member is listed too.
func writeGroups(out io.Writer, groups []models.DuplicateGroup, months bool) {
	cols := []report.Column{report.ColRO, {Title: "Count", Width: 5}, report.ColCustomer}
	if months {
		cols = append(cols, report.Column{Title: "Months", Width: 40})
	}
	t := report.NewTable(out, cols...)
	for _, g := range groups {
		row := []string{g.RO, strconv.Itoa(g.Count), distinct(g.Orders, func(o models.Order) string { return o.Customer })}
		if months {
			row = append(row, distinct(g.Orders, func(o models.Order) string { return o.ArchiveMonth }))
		}
		t.Append(row...)
	}
	t.Render()
}

func distinct(orders []models.Order, field func(models.Order) string) string {
	seen := make(map[string]bool)
	var values []string
	for _, o := range orders {
		v := field(o)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	return strings.Join(values, ", ")
}

func runDuplicatesRemove(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := planPath(plan.DuplicateOrdersFile)

	groups, err := plan.LoadGroups(path)
	if errors.Is(err, plan.ErrNotFound) {
		return fmt.Errorf("%s not found: run 'wip duplicates check' first", path)
	}
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Fprintln(out, "No duplicates to remove!")
		return nil
	}

	banner(out, "Removing duplicate active orders")
	surplus := reconcile.SurplusCount(groups)
	fmt.Fprintf(out, "Found %d RO numbers with duplicates (%d orders to delete).\n", len(groups), surplus)
	fmt.Fprintln(out, "The most recently updated order in each group is kept.")

	message := fmt.Sprintf("\nThis will permanently delete %d orders.", surplus)
	if !prompt.Confirm(stdin(cmd), out, message, "DELETE", true) {
		return cancelled(out)
	}

	resolutions := reconcile.Resolve(groups, reconcile.ActiveRecency)
	keep := report.NewTable(out, report.ColRO, report.ColCustomer, report.Column{Title: "Kept (updated)", Width: 24})
	var doomed []models.Order
	for _, r := range resolutions {
		keep.Append(r.Key, r.Keep.Customer, reconcile.ActiveRecency(r.Keep))
		doomed = append(doomed, r.Delete...)
	}
	fmt.Fprintln(out)
	keep.Render()
	fmt.Fprintln(out)

	m := newMutator(cmd, newClient(0, 0))
	m.Delete(cmd.Context(), doomed)
	m.Finish("Deleted")
	return nil
}
