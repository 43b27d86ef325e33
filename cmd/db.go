package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/MikeWKI/WKI-WIP/internal/backup"
	"github.com/MikeWKI/WKI-WIP/internal/config"
	"github.com/MikeWKI/WKI-WIP/internal/database"
	"github.com/MikeWKI/WKI-WIP/internal/models"
	"github.com/MikeWKI/WKI-WIP/internal/prompt"
	"github.com/MikeWKI/WKI-WIP/internal/reconcile"
	"github.com/MikeWKI/WKI-WIP/internal/report"
)

var (
	sampleMonth      string
	sampleCollection string
	sampleLimit      int64
	sampleActive     bool

	dbDupCollection string
	dbDupActive     bool

	migrateBackup bool
	migrateYes    bool

	outputDir        string
	backupFormat     string
	backupCollection string

	inputFile         string
	restoreFormat     string
	restoreCollection string
	dropExisting      bool
	skipConfirmation  bool
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect and maintain the MongoDB database directly",
	Long: `Commands that talk to MongoDB instead of the API: inspection, archive
migration, and BSON or JSON backups. Connection settings come from --db-uri
and --database, the config file, or MONGODB_URI and DB_NAME.`,
}

var dbCollectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List collections with document counts",
	RunE:  runDBCollections,
}

var dbSampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Show a few documents from an archive collection",
	RunE:  runDBSample,
}

var dbDuplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Report RO numbers repeated within each archive month",
	RunE:  runDBDuplicates,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate-archives",
	Short: "Move documents from the legacy archive collection into the current one",
	RunE:  runDBMigrate,
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Backup MongoDB collections",
	Long:  "Backup MongoDB collections to BSON or JSON files",
	RunE:  runBackup,
}

var dbRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a MongoDB collection from backup",
	Long:  "Restore a MongoDB collection from a BSON or JSON backup file",
	RunE:  runRestore,
}

func init() {
	dbSampleCmd.Flags().StringVarP(&sampleMonth, "month", "m", "", "only documents archived under this month")
	dbSampleCmd.Flags().StringVarP(&sampleCollection, "collection", "c", "", "collection (default: archive collection from config)")
	dbSampleCmd.Flags().Int64VarP(&sampleLimit, "limit", "n", 5, "number of documents")
	dbSampleCmd.Flags().BoolVar(&sampleActive, "active", false, "sample the active orders collection")

	dbDuplicatesCmd.Flags().StringVarP(&dbDupCollection, "collection", "c", "", "collection (default: archive collection from config)")
	dbDuplicatesCmd.Flags().BoolVar(&dbDupActive, "active", false, "check the active orders collection as a whole")

	dbMigrateCmd.Flags().BoolVar(&migrateBackup, "backup", true, "back up both collections first")
	dbMigrateCmd.Flags().StringVarP(&outputDir, "output", "o", "./backups", "directory for backup files")
	dbMigrateCmd.Flags().BoolVar(&migrateYes, "yes", false, "skip the confirmation prompt")

	dbBackupCmd.Flags().StringVarP(&outputDir, "output", "o", "./backups", "output directory for backup files")
	dbBackupCmd.Flags().StringVarP(&backupFormat, "format", "f", database.FormatBSON, "backup format: bson or json")
	dbBackupCmd.Flags().StringVarP(&backupCollection, "collection", "c", "", "collection to back up (default: all collections)")

	dbRestoreCmd.Flags().StringVarP(&inputFile, "input", "i", "", "backup file to restore (required)")
	dbRestoreCmd.Flags().StringVarP(&restoreFormat, "format", "f", "", "backup format: bson or json (default from the file extension)")
	dbRestoreCmd.Flags().StringVarP(&restoreCollection, "collection", "c", "", "target collection (default from the backup file name)")
	dbRestoreCmd.Flags().BoolVar(&dropExisting, "drop", false, "drop the existing collection before restoring")
	dbRestoreCmd.Flags().BoolVar(&skipConfirmation, "yes", false, "skip the confirmation prompt")
	dbRestoreCmd.MarkFlagRequired("input")

	dbCmd.AddCommand(dbCollectionsCmd, dbSampleCmd, dbDuplicatesCmd, dbMigrateCmd, dbBackupCmd, dbRestoreCmd)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// pickCollection resolves the collection a db subcommand reads: an explicit
// name wins, then --active, then the archive collection.
func pickCollection(explicit string, active bool, c config.Collections) string {
	switch {
	case explicit != "":
		return explicit
	case active:
		return c.Active
	default:
		return c.Archived
	}
}

// sampledCollections names the non-empty order collections worth showing
// documents from.
func sampledCollections(counts []database.CollectionCount, c config.Collections) []string {
	var names []string
	for _, cc := range counts {
		if cc.Count == 0 {
			continue
		}
		switch cc.Name {
		case c.Active, c.Archived, c.Legacy:
			names = append(names, cc.Name)
		}
	}
	return names
}

func runDBCollections(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	db, err := connectDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	counts, err := db.CollectionCounts(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Database: %s\n", cfg.DBName)
	t := report.NewTable(out, report.Column{Title: "Collection", Width: 24}, report.Column{Title: "Documents", Width: 9})
	for _, c := range counts {
		t.Append(c.Name, strconv.FormatInt(c.Count, 10))
	}
	t.Render()

	for _, name := range sampledCollections(counts, cfg.Collections) {
		sample, err := db.Sample(cmd.Context(), name, "", 3)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nSample from %s:\n", name)
		writeSample(out, sample)
	}
	return nil
}

func writeSample(out io.Writer, orders []models.Order) {
	t := report.NewTable(out, report.Column{Title: "ID", Width: 24}, report.ColRO, report.ColCustomer, report.ColUnit, report.ColMonth)
	for _, o := range orders {
		t.Append(o.OrderID(), o.RO, o.Customer, o.Unit, o.ArchiveMonth)
	}
	t.Render()
}

func runDBSample(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	collection := pickCollection(sampleCollection, sampleActive, cfg.Collections)

	db, err := connectDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	orders, err := db.Sample(cmd.Context(), collection, sampleMonth, sampleLimit)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Fprintf(out, "No documents in %s", collection)
		if sampleMonth != "" {
			fmt.Fprintf(out, " for %s", sampleMonth)
		}
		fmt.Fprintln(out)
		return nil
	}
	writeSample(out, orders)
	return nil
}

func runDBDuplicates(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	collection := pickCollection(dbDupCollection, dbDupActive, cfg.Collections)

	db, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if collection == cfg.Collections.Active {
		orders, err := db.FindOrders(ctx, collection, bson.M{}, 0)
		if err != nil {
			return err
		}
		groups := reconcile.DuplicateGroups(orders)
		fmt.Fprintf(out, "%s: %d documents, %d duplicated RO numbers, %d surplus\n",
			collection, len(orders), len(groups), reconcile.SurplusCount(groups))
		if len(groups) > 0 {
			writeGroups(out, groups, false)
		}
		return nil
	}

	months, err := db.CountByMonth(ctx, collection)
	if err != nil {
		return err
	}
	if len(months) == 0 {
		fmt.Fprintf(out, "No documents in %s\n", collection)
		return nil
	}

	total := 0
	for _, mc := range months {
		filter := bson.M{"archiveMonth": mc.Month}
		if mc.Month == "" {
			filter = bson.M{"archiveMonth": bson.M{"$in": bson.A{nil, ""}}}
		}
		orders, err := db.FindOrders(ctx, collection, filter, 0)
		if err != nil {
			return err
		}
		groups := reconcile.DuplicateGroups(orders)
		label := orDefault(mc.Month, "(no month)")
		fmt.Fprintf(out, "\n%s: %d documents, %d unique RO numbers, %d duplicated\n",
			label, mc.Count, mc.Count-reconcile.SurplusCount(groups), len(groups))
		if len(groups) > 0 {
			writeGroups(out, groups, false)
		}
		total += reconcile.SurplusCount(groups)
	}
	fmt.Fprintf(out, "\nSurplus documents across all months: %d\n", total)
	return nil
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	from, to := cfg.Collections.Legacy, cfg.Collections.Archived

	db, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	orders, err := db.FindOrders(ctx, from, bson.M{}, 0)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Fprintf(out, "%s is empty, nothing to migrate.\n", from)
		return nil
	}

	fmt.Fprintf(out, "Moving %d documents from %s.%s to %s.%s\n", len(orders), cfg.DBName, from, cfg.DBName, to)
	if !migrateYes && !prompt.Confirm(stdin(cmd), out, "Continue?", "MIGRATE", true) {
		return cancelled(out)
	}

	if migrateBackup {
		snaps, err := backup.NewService(db).BackupCollections(ctx, []string{from, to}, outputDir, database.FormatJSON)
		if err != nil {
			return fmt.Errorf("backup before migration failed: %w", err)
		}
		for _, s := range snaps {
			fmt.Fprintf(out, "Backed up %d documents from %s to %s\n", s.Documents, s.Collection, s.Path)
		}
	}

	n, err := db.MoveCollection(ctx, from, to)
	if err != nil {
		return fmt.Errorf("moved %d documents: %w", n, err)
	}
	fmt.Fprintf(out, "Moved %d documents.\n\n", n)

	months, err := db.CountByMonth(ctx, to)
	if err != nil {
		return err
	}
	t := report.NewTable(out, report.ColMonth, report.Column{Title: "Documents", Width: 9})
	for _, mc := range months {
		t.Append(orDefault(mc.Month, "(no month)"), strconv.Itoa(mc.Count))
	}
	t.Render()
	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if err := backup.ValidateFormat(backupFormat); err != nil {
		return err
	}

	db, err := connectDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	backupService := backup.NewService(db)

	var snaps []backup.Snapshot
	if backupCollection != "" {
		fmt.Fprintf(out, "Backing up collection '%s' as %s...\n", backupCollection, backupFormat)
		snap, err := backupService.BackupCollection(cmd.Context(), backupCollection, outputDir, backupFormat)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		snaps = append(snaps, snap)
	} else {
		fmt.Fprintf(out, "Backing up all collections in '%s' as %s...\n", cfg.DBName, backupFormat)
		snaps, err = backupService.BackupDatabase(cmd.Context(), outputDir, backupFormat)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
	}

	fmt.Fprintf(out, "Created %d backup files:\n", len(snaps))
	for _, s := range snaps {
		fmt.Fprintf(out, "  - %s (%d documents)\n", s.Path, s.Documents)
	}
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	format := restoreFormat
	if format == "" {
		switch ext := filepath.Ext(inputFile); ext {
		case ".bson":
			format = database.FormatBSON
		case ".json":
			format = database.FormatJSON
		default:
			return fmt.Errorf("cannot detect format from extension %q, use --format", ext)
		}
	}
	if err := backup.ValidateBackupFile(inputFile, format); err != nil {
		return fmt.Errorf("backup file validation failed: %w", err)
	}

	target := restoreCollection
	if target == "" {
		target = backup.CollectionFromFilename(inputFile)
	}
	if target == "" {
		return fmt.Errorf("cannot determine target collection from %s, use --collection", filepath.Base(inputFile))
	}

	if !skipConfirmation {
		fmt.Fprintln(out, "About to restore:")
		fmt.Fprintf(out, "  Source file:       %s\n", inputFile)
		fmt.Fprintf(out, "  Target database:   %s\n", cfg.DBName)
		fmt.Fprintf(out, "  Target collection: %s\n", target)
		fmt.Fprintf(out, "  Format:            %s\n", format)
		if dropExisting {
			fmt.Fprintln(out, "  WARNING: the existing collection will be DROPPED!")
		}
		if !prompt.Confirm(stdin(cmd), out, "Continue?", "RESTORE", true) {
			return cancelled(out)
		}
	}

	db, err := connectDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := backup.NewService(db).RestoreCollection(cmd.Context(), target, inputFile, format, dropExisting)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Restored %d documents into %s\n", n, target)
	return nil
}
