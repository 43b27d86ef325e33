package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MikeWKI/WKI-WIP/internal/api"
	"github.com/MikeWKI/WKI-WIP/internal/backup"
	"github.com/MikeWKI/WKI-WIP/internal/database"
	"github.com/MikeWKI/WKI-WIP/internal/plan"
	"github.com/MikeWKI/WKI-WIP/internal/prompt"
	"github.com/MikeWKI/WKI-WIP/internal/reconcile"
	"github.com/MikeWKI/WKI-WIP/internal/report"
)

var (
	purgeBackup    bool
	purgeBackupDir string
	purgeTarget    string
)

var archivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "Clean up duplicate archived orders",
}

var archivesDedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Queue surplus archived orders for deletion",
	Long: `Reads duplicate_archives.json written by 'wip completed check'. For every RO
the archived record created most recently is kept; the rest are written to
archived_to_delete.json. The API cannot delete archived orders, so nothing is
removed here: run 'wip archives purge' to delete the queue from MongoDB.`,
	RunE: runArchivesDedupe,
}

var archivesPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete the archived orders queued in archived_to_delete.json",
	RunE:  runArchivesPurge,
}

func init() {
	archivesPurgeCmd.Flags().BoolVar(&purgeBackup, "backup", true, "back up the archive collection first")
	archivesPurgeCmd.Flags().StringVar(&purgeBackupDir, "backup-dir", "./backups", "directory for the backup file")
	archivesPurgeCmd.Flags().StringVar(&purgeTarget, "collection", "", "archive collection (default from config)")

	archivesCmd.AddCommand(archivesDedupeCmd, archivesPurgeCmd)
}

func runArchivesDedupe(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	banner(out, "Resolving duplicate archived orders")

	byMonth, err := newClient(0, 0).ListArchives(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch archives: %w", err)
	}
	fmt.Fprintf(out, "Archived orders: %d\n", len(reconcile.Flatten(byMonth)))

	path := planPath(plan.DuplicateArchivesFile)
	groups, err := plan.LoadGroups(path)
	if errors.Is(err, plan.ErrNotFound) {
		return fmt.Errorf("%s not found: run 'wip completed check' first", path)
	}
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Fprintln(out, "No duplicate archives to remove!")
		return nil
	}

	surplus := reconcile.SurplusCount(groups)
	fmt.Fprintf(out, "Found %d RO numbers archived more than once (%d surplus records).\n", len(groups), surplus)
	message := fmt.Sprintf("\nThis will queue %d archived orders for permanent deletion.", surplus)
	if !prompt.Confirm(stdin(cmd), out, message, "DELETE", true) {
		return cancelled(out)
	}
	fmt.Fprintln(out)

	t := report.NewTable(out, report.Column{Title: "Action", Width: 6}, report.ColRO, report.ColMonth, report.ColCustomer, report.Column{Title: "Created", Width: 24})
	queue := []plan.QueuedDeletion{}
	for _, r := range reconcile.Resolve(groups, reconcile.ArchivedRecency) {
		t.Append("KEEP", r.Key, r.Keep.ArchiveMonth, r.Keep.Customer, reconcile.ArchivedRecency(r.Keep))
		for _, o := range r.Delete {
			t.Append("DELETE", r.Key, o.ArchiveMonth, o.Customer, reconcile.ArchivedRecency(o))
			queue = append(queue, plan.QueuedDeletion{
				ID:       o.OrderID(),
				RO:       o.RO,
				Customer: o.Customer,
				Month:    o.ArchiveMonth,
			})
		}
	}
	t.Render()

	queuePath := planPath(plan.ArchivedToDeleteFile)
	if err := plan.Save(queuePath, queue); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d archived orders queued in %s\n", len(queue), queuePath)
	fmt.Fprintln(out, "Run 'wip archives purge' to delete them from the database.")
	return nil
}

func runArchivesPurge(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	path := planPath(plan.ArchivedToDeleteFile)

	queue, err := plan.LoadDeletions(path)
	if errors.Is(err, plan.ErrNotFound) {
		return fmt.Errorf("%s not found: run 'wip archives dedupe' first", path)
	}
	if err != nil {
		return err
	}
	if len(queue) == 0 {
		fmt.Fprintln(out, "No queued archive deletions.")
		return nil
	}

	collection := purgeTarget
	if collection == "" {
		collection = cfg.Collections.Archived
	}
	fmt.Fprintf(out, "Purging %d archived orders from %s.%s\n", len(queue), cfg.DBName, collection)
	message := fmt.Sprintf("This will permanently delete %d archived orders.", len(queue))
	if !prompt.Confirm(stdin(cmd), out, message, "DELETE", true) {
		return cancelled(out)
	}

	db, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if purgeBackup {
		snap, err := backup.NewService(db).BackupCollection(ctx, collection, purgeBackupDir, database.FormatJSON)
		if err != nil {
			return fmt.Errorf("backup before purge failed: %w", err)
		}
		fmt.Fprintf(out, "Backed up %d documents to %s\n", snap.Documents, snap.Path)
	}
	fmt.Fprintln(out)

	var tally report.Tally
	t := report.NewTable(out, report.ColRO, report.ColMonth, report.ColCustomer, report.ColResult)
	for _, q := range queue {
		if ctx.Err() != nil {
			break
		}
		deleted, err := db.DeleteByID(ctx, collection, q.ID)
		switch {
		case err != nil:
			logger.Warn("archive delete failed", zap.String("id", q.ID), zap.String("ro", q.RO), zap.Error(err))
			tally.Add(api.OutcomeTransport)
			t.Append(q.RO, q.Month, q.Customer, "ERROR")
		case !deleted:
			tally.Add(api.OutcomeRejected)
			t.Append(q.RO, q.Month, q.Customer, "NOT FOUND")
		default:
			tally.Add(api.OutcomeSuccess)
			t.Append(q.RO, q.Month, q.Customer, "DELETED")
		}
	}
	t.Render()
	tally.WriteFooter(out, "Deleted")
	return nil
}
