package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MikeWKI/WKI-WIP/internal/models"
	"github.com/MikeWKI/WKI-WIP/internal/mutator"
	"github.com/MikeWKI/WKI-WIP/internal/plan"
	"github.com/MikeWKI/WKI-WIP/internal/prompt"
	"github.com/MikeWKI/WKI-WIP/internal/reconcile"
	"github.com/MikeWKI/WKI-WIP/internal/report"
)

var (
	completedMonth string
	orphansSave    bool
	orphansArchive bool
)

var completedCmd = &cobra.Command{
	Use:   "completed",
	Short: "Find completed orders and move them into the archive",
}

var completedCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "List completed active orders and duplicate archived orders",
	Long: `An active order is completed when its customer status or repair condition
mentions "complete". The list is saved to orders_to_archive.json. The archive
is scanned too: RO numbers archived more than once, in any month, are saved
to duplicate_archives.json.`,
	RunE: runCompletedCheck,
}

var completedArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive the orders saved in orders_to_archive.json",
	RunE:  runCompletedArchive,
}

var completedOrphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List active orders an interrupted archive import left behind",
	Long: `Lists active orders that should already be archived: those an archive
import created but failed to archive (recorded in orphaned_orders.json with
the month they were meant for), and any other order marked complete.

With --archive, orders with a recorded month are archived into it after
confirmation. With --save, the rest are written to orders_to_archive.json so
'wip completed archive' can finish the job.`,
	RunE: runCompletedOrphans,
}

func init() {
	completedArchiveCmd.Flags().StringVarP(&completedMonth, "month", "m", "", "archive month label (prompted when empty)")
	completedOrphansCmd.Flags().BoolVar(&orphansSave, "save", false, "write orphans with no recorded month to orders_to_archive.json")
	completedOrphansCmd.Flags().BoolVar(&orphansArchive, "archive", false, "archive orphans into their recorded month")

	completedCmd.AddCommand(completedCheckCmd, completedArchiveCmd, completedOrphansCmd)
}

func runCompletedCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	banner(out, "Checking for completed orders and duplicate archives")

	client := newClient(0, 0)
	orders, err := client.ListOrders(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch orders: %w", err)
	}
	fmt.Fprintf(out, "Active orders: %d\n", len(orders))

	completed := reconcile.Completed(orders)
	if completed == nil {
		completed = []models.Order{}
	}
	archivePath := planPath(plan.OrdersToArchiveFile)
	if err := plan.Save(archivePath, completed); err != nil {
		return err
	}

	if len(completed) == 0 {
		fmt.Fprintln(out, "No completed orders found.")
	} else {
		fmt.Fprintf(out, "\nCompleted orders ready to archive: %d\n", len(completed))
		t := report.NewTable(out, report.ColRO, report.ColCustomer, report.ColUnit, report.Column{Title: "Status", Width: 30})
		for _, o := range completed {
			status := o.CustomerStatus
			if !reconcile.MentionsComplete(strings.ToLower(status)) {
				status = o.RepairCondition
			}
			t.Append(o.RO, o.Customer, o.Unit, status)
		}
		t.Render()
		fmt.Fprintf(out, "Saved to %s\n", archivePath)
	}

	byMonth, err := client.ListArchives(cmd.Context())
	if err != nil {
		logger.Warn("could not fetch archives, skipping archive checks", zap.Error(err))
		fmt.Fprintf(out, "\nCould not fetch archives (%v). Archive checks skipped.\n", err)
		byMonth = nil
	}
	archived := flattenArchives(byMonth)

	var groups []models.DuplicateGroup
	if len(archived) > 0 {
		fmt.Fprintf(out, "\nArchived orders: %d\n", len(archived))
		counts := report.NewTable(out, report.ColMonth, report.Column{Title: "Orders", Width: 6})
		for _, mc := range reconcile.CountByMonth(archived) {
			counts.Append(mc.Month, strconv.Itoa(mc.Count))
		}
		counts.Render()

		groups = reconcile.DuplicateGroups(archived)
	}
	if groups == nil {
		groups = []models.DuplicateGroup{}
	}
	dupPath := planPath(plan.DuplicateArchivesFile)
	if err := plan.Save(dupPath, groups); err != nil {
		return err
	}
	if len(groups) > 0 {
		fmt.Fprintf(out, "\nRO numbers archived more than once: %d (%d surplus records)\n", len(groups), reconcile.SurplusCount(groups))
		writeGroups(out, groups, true)
		fmt.Fprintf(out, "Saved to %s\n", dupPath)
	}

	fmt.Fprintln(out, "\nNext steps:")
	if len(completed) > 0 {
		fmt.Fprintln(out, "  wip completed archive    move the completed orders into the archive")
	}
	if len(groups) > 0 {
		fmt.Fprintln(out, "  wip archives dedupe      queue surplus archived orders for deletion")
	}
	if len(completed) == 0 && len(groups) == 0 {
		fmt.Fprintln(out, "  nothing to do")
	}
	return nil
}

// flattenArchives lists every archived order, filling in the bucket label
// from the response key where the record itself lacks one.
func flattenArchives(byMonth map[string][]models.Order) []models.Order {
	filled := make(map[string][]models.Order, len(byMonth))
	for month, orders := range byMonth {
		list := make([]models.Order, len(orders))
		for i, o := range orders {
			if o.ArchiveMonth == "" {
				o.ArchiveMonth = month
			}
			list[i] = o
		}
		filled[month] = list
	}
	return reconcile.Flatten(filled)
}

func runCompletedArchive(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := planPath(plan.OrdersToArchiveFile)

	orders, err := plan.LoadOrders(path)
	if errors.Is(err, plan.ErrNotFound) {
		return fmt.Errorf("%s not found: run 'wip completed check' first", path)
	}
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Fprintln(out, "No orders to archive.")
		return nil
	}

	banner(out, fmt.Sprintf("Archiving %d completed orders", len(orders)))
	in := stdin(cmd)

	month := strings.TrimSpace(completedMonth)
	if month == "" {
		label := fmt.Sprintf("Archive month (e.g. %q)", models.ArchiveMonthLabel(time.Now()))
		answer, _ := prompt.Ask(in, out, label)
		month = answer
	}
	if month == "" {
		return cancelled(out)
	}

	message := fmt.Sprintf("This will archive %d orders to '%s'.", len(orders), month)
	if !prompt.Confirm(in, out, message, "ARCHIVE", true) {
		return cancelled(out)
	}
	fmt.Fprintln(out)

	m := newMutator(cmd, newClient(0, 0))
	m.Archive(cmd.Context(), orders, month)
	m.Finish(fmt.Sprintf("Archived to '%s'", month))
	return nil
}

func runCompletedOrphans(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	banner(out, "Looking for orphaned active orders")

	orphanPath := planPath(plan.OrphanedOrdersFile)
	known, err := plan.LoadOrphans(orphanPath)
	if err != nil && !errors.Is(err, plan.ErrNotFound) {
		return err
	}
	recorded := make(map[string]string, len(known))
	for _, o := range known {
		recorded[o.ID] = o.Month
	}

	client := newClient(0, 0)
	orders, err := client.ListOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch orders: %w", err)
	}

	orphans := reconcile.Orphans(orders, recorded)
	if len(orphans) == 0 {
		fmt.Fprintln(out, "No orphaned orders found.")
		return nil
	}

	var bucketed []reconcile.Orphan
	var loose []models.Order
	fmt.Fprintf(out, "Orphaned orders: %d\n", len(orphans))
	t := report.NewTable(out, report.ColRO, report.ColCustomer, report.ColMonth, report.Column{Title: "Status", Width: 30})
	for _, o := range orphans {
		month := o.Month
		if month == "" {
			month = "-"
			loose = append(loose, o.Order)
		} else {
			bucketed = append(bucketed, o)
		}
		t.Append(o.Order.RO, o.Order.Customer, month, o.Order.CustomerStatus)
	}
	t.Render()

	if orphansSave && len(loose) > 0 {
		path := planPath(plan.OrdersToArchiveFile)
		if err := plan.Save(path, loose); err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%d orders with no recorded month saved to %s. Run 'wip completed archive' to archive them.\n", len(loose), path)
	}

	if !orphansArchive {
		if len(bucketed) > 0 {
			fmt.Fprintln(out, "\nRun with --archive to move orders with a recorded month into it.")
		}
		if len(loose) > 0 && !orphansSave {
			fmt.Fprintln(out, "Run with --save, then 'wip completed archive', for the rest.")
		}
		return nil
	}
	if len(bucketed) == 0 {
		fmt.Fprintln(out, "\nNo orphans have a recorded month to archive into.")
		return nil
	}

	message := fmt.Sprintf("\nThis will archive %d orders into their recorded months.", len(bucketed))
	if !prompt.Confirm(stdin(cmd), out, message, "ARCHIVE", true) {
		return cancelled(out)
	}
	fmt.Fprintln(out)

	m := newMutator(cmd, client)
	for _, o := range bucketed {
		m.Archive(ctx, []models.Order{o.Order}, o.Month)
	}
	m.Finish("Archived")

	return plan.Save(orphanPath, unresolvedOrphans(known, orders, m))
}

// unresolvedOrphans keeps the recorded orphans that are still active and
// were not archived by this run.
func unresolvedOrphans(known []plan.OrphanedOrder, active []models.Order, m *mutator.Mutator) []plan.OrphanedOrder {
	stillActive := make(map[string]bool, len(active))
	for _, o := range active {
		stillActive[o.OrderID()] = true
	}
	for _, r := range m.Records {
		if r.Result.OK() {
			stillActive[r.Order.OrderID()] = false
		}
	}

	out := []plan.OrphanedOrder{}
	for _, o := range known {
		if stillActive[o.ID] {
			out = append(out, o)
		}
	}
	return out
}
