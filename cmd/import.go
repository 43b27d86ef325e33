package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeWKI/WKI-WIP/internal/csv"
	"github.com/MikeWKI/WKI-WIP/internal/excel"
	"github.com/MikeWKI/WKI-WIP/internal/models"
	"github.com/MikeWKI/WKI-WIP/internal/normalize"
	"github.com/MikeWKI/WKI-WIP/internal/plan"
)

const (
	archiveModeTwoStep = "two-step"
	archiveModeBulk    = "bulk"
	archiveModeDirect  = "direct"
)

var (
	csvFile         string
	csvEncoding     string
	csvDryRun       bool
	jsonFile        string
	excelFile       string
	archiveFile     string
	archiveEncoding string
	archiveMonth    string
	archiveMode     string
	archiveTarget   string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import orders from CSV, JSON or Excel",
}

var importCSVCmd = &cobra.Command{
	Use:   "csv",
	Short: "Import a header-bearing CSV export of the WIP sheet",
	Long: `Reads a CSV whose first row holds the sheet's column names, drops separator
rows and rows missing customer, unit or RO, saves the parsed orders to
parsed_orders.json, then creates each order through the API. Orders the API
does not accept are saved to failed_orders.json for 'wip retry'.`,
	RunE: runImportCSV,
}

var importJSONCmd = &cobra.Command{
	Use:   "json",
	Short: "Create every order in a JSON array through the API",
	RunE:  runImportJSON,
}

var importExcelCmd = &cobra.Command{
	Use:   "excel",
	Short: "Import every sheet of an .xlsx workbook",
	Long: `Sheets whose name contains "current" or "wip" are imported as active orders.
Every other sheet is treated as an archive bucket named after the sheet: each
row is created and then immediately archived into that month.`,
	RunE: runImportExcel,
}

var importArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Import a headerless monthly CSV straight into the archive",
	Long: `Reads a headerless CSV (columns in sheet order) and archives every row under
--month. Modes:
  two-step  create each order, then archive it (one pair of calls per row)
  bulk      one call to the bulk archive endpoint
  direct    insert into MongoDB, bypassing the API`,
	RunE: runImportArchive,
}

func init() {
	importCSVCmd.Flags().StringVarP(&csvFile, "file", "f", "current_wip.csv", "CSV file with a header row")
	importCSVCmd.Flags().StringVar(&csvEncoding, "encoding", csv.EncodingUTF8, "source encoding: utf-8 or windows-1252")
	importCSVCmd.Flags().BoolVar(&csvDryRun, "dry-run", false, "parse and save parsed_orders.json without calling the API")

	importJSONCmd.Flags().StringVarP(&jsonFile, "file", "f", "", "JSON file (default <plan-dir>/parsed_orders.json)")

	importExcelCmd.Flags().StringVarP(&excelFile, "file", "f", "current_wip.xlsx", "Excel workbook")

	importArchiveCmd.Flags().StringVarP(&archiveFile, "file", "f", "", "headerless CSV file (required)")
	importArchiveCmd.Flags().StringVarP(&archiveMonth, "month", "m", "", "archive month label, e.g. \"November 2025\" (required)")
	importArchiveCmd.Flags().StringVar(&archiveMode, "mode", archiveModeTwoStep, "two-step, bulk or direct")
	importArchiveCmd.Flags().StringVar(&archiveTarget, "collection", "", "target collection for direct mode (default from config)")
	importArchiveCmd.Flags().StringVar(&archiveEncoding, "encoding", csv.EncodingUTF8, "source encoding: utf-8 or windows-1252")
	importArchiveCmd.MarkFlagRequired("file")
	importArchiveCmd.MarkFlagRequired("month")

	importCmd.AddCommand(importCSVCmd, importJSONCmd, importExcelCmd, importArchiveCmd)
}

func runImportCSV(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	banner(out, "Importing CSV into active orders")

	result, err := csv.NewParser(csvFile).WithEncoding(csvEncoding).ParseWithHeader()
	if err != nil {
		return fmt.Errorf("failed to parse CSV: %w", err)
	}

	orders, sentinels, invalid := selectImportable(result.Orders, time.Now())
	fmt.Fprintf(out, "Found %d valid orders in %s\n", len(orders), csvFile)
	if n := result.Skipped + sentinels + invalid; n > 0 {
		fmt.Fprintf(out, "Skipped %d rows (%d blank, %d separators, %d missing customer/unit/RO)\n",
			n, result.Skipped, sentinels, invalid)
	}

	parsedPath := planPath(plan.ParsedOrdersFile)
	if err := plan.Save(parsedPath, orders); err != nil {
		return err
	}
	fmt.Fprintf(out, "Backup saved to %s\n\n", parsedPath)

	if csvDryRun || len(orders) == 0 {
		return nil
	}
	return createAll(cmd, orders)
}

// selectImportable drops separator rows and rows the API would reject, and
// stamps today's date on the rest.
func selectImportable(rows []models.Order, now time.Time) (orders []models.Order, sentinels, invalid int) {
	today := models.Today(now)
	for _, o := range rows {
		if normalize.IsSentinel(o.Customer) {
			sentinels++
			continue
		}
		if !normalize.HasRequired(o) {
			invalid++
			continue
		}
		if o.DateAdded == "" {
			o.DateAdded = today
		}
		orders = append(orders, o)
	}
	return orders, sentinels, invalid
}

func runImportJSON(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := jsonFile
	if path == "" {
		path = planPath(plan.ParsedOrdersFile)
	}
	banner(out, "Uploading orders from "+path)

	orders, err := plan.LoadOrders(path)
	if err != nil {
		return err
	}
	orders = normalize.All(orders)
	if len(orders) == 0 {
		fmt.Fprintln(out, "No orders to upload.")
		return nil
	}
	return createAll(cmd, orders)
}

func createAll(cmd *cobra.Command, orders []models.Order) error {
	m := newMutator(cmd, newClient(0, 0))
	m.Create(cmd.Context(), orders)
	m.Finish("Created")
	return saveFailures(cmd.OutOrStdout(), m.FailedOrders())
}

func saveFailures(out io.Writer, failed []plan.FailedOrder) error {
	if len(failed) == 0 {
		return nil
	}
	path := planPath(plan.FailedOrdersFile)
	if err := plan.Save(path, failed); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d failed orders saved to %s. Run 'wip retry' to resubmit them.\n", len(failed), path)
	return nil
}

// saveOrphans adds orders left active by a failed archive call to the
// orphan file, so 'wip completed orphans' can finish archiving them.
func saveOrphans(out io.Writer, found []plan.OrphanedOrder) error {
	if len(found) == 0 {
		return nil
	}
	path := planPath(plan.OrphanedOrdersFile)
	known, err := plan.LoadOrphans(path)
	if err != nil && !errors.Is(err, plan.ErrNotFound) {
		return err
	}
	if err := plan.Save(path, plan.MergeOrphans(known, found)); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d orders left active saved to %s. Run 'wip completed orphans --archive' to finish them.\n", len(found), path)
	return nil
}

func runImportExcel(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	banner(out, "Importing Excel workbook "+excelFile)

	sheets, err := excel.ReadWorkbook(excelFile)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(sheets))
	for _, s := range sheets {
		names = append(names, s.Name)
	}
	fmt.Fprintf(out, "Sheets found: %s\n", strings.Join(names, ", "))

	client := newClient(0, 0)
	today := models.Today(time.Now())
	var failed []plan.FailedOrder
	var orphans []plan.OrphanedOrder

	for _, sheet := range sheets {
		fmt.Fprintf(out, "\nSheet: %s\n", sheet.Name)
		if len(sheet.Orders) == 0 {
			fmt.Fprintf(out, "No valid orders found in sheet '%s'\n", sheet.Name)
			continue
		}
		fmt.Fprintf(out, "Found %d valid orders (%d rows missing customer/unit/RO)\n", len(sheet.Orders), sheet.Invalid)

		orders := make([]models.Order, len(sheet.Orders))
		for i, o := range sheet.Orders {
			o.DateAdded = today
			orders[i] = o
		}

		m := newMutator(cmd, client)
		if sheet.IsActive() {
			fmt.Fprintln(out, "Importing to current orders")
			m.Create(cmd.Context(), orders)
			m.Finish("Created")
		} else {
			fmt.Fprintf(out, "Importing to archive: %s\n", sheet.ArchiveMonth())
			m.CreateThenArchive(cmd.Context(), orders, sheet.ArchiveMonth())
			m.Finish("Archived")
		}
		failed = append(failed, m.FailedOrders()...)
		orphans = append(orphans, m.OrphanedOrders()...)
	}

	if err := saveFailures(out, failed); err != nil {
		return err
	}
	return saveOrphans(out, orphans)
}

func runImportArchive(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	month := strings.TrimSpace(archiveMonth)
	if month == "" {
		return fmt.Errorf("--month must not be blank")
	}
	switch archiveMode {
	case archiveModeTwoStep, archiveModeBulk, archiveModeDirect:
	default:
		return fmt.Errorf("invalid --mode %q: use two-step, bulk or direct", archiveMode)
	}

	fmt.Fprintf(out, "Importing %s to archive: %s (%s)\n", archiveFile, month, archiveMode)

	result, err := csv.NewParser(archiveFile).WithEncoding(archiveEncoding).ParseHeaderless()
	if err != nil {
		return fmt.Errorf("failed to parse CSV: %w", err)
	}
	fmt.Fprintf(out, "Found %d orders to archive\n", len(result.Orders))
	fmt.Fprintf(out, "Skipped %d empty rows\n\n", result.Skipped)
	if len(result.Orders) == 0 {
		fmt.Fprintln(out, "No orders to import.")
		return nil
	}

	switch archiveMode {
	case archiveModeBulk:
		now := models.FormatTimestamp(time.Now())
		orders := make([]models.Order, len(result.Orders))
		for i, o := range result.Orders {
			o.ArchiveMonth = month
			o.CompletedAt = now
			orders[i] = o
		}
		m := newMutator(cmd, newClient(0, 0))
		_, res := m.BulkArchive(cmd.Context(), orders)
		if !res.OK() {
			return fmt.Errorf("bulk archive failed: %w", res.Err)
		}
		return nil

	case archiveModeDirect:
		collection := archiveTarget
		if collection == "" {
			collection = cfg.Collections.Archived
		}
		db, err := connectDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.InsertArchived(cmd.Context(), collection, month, result.Orders)
		if err != nil {
			return fmt.Errorf("inserted %d of %d orders: %w", n, len(result.Orders), err)
		}
		fmt.Fprintf(out, "Inserted %d orders into %s.%s under %s\n", n, cfg.DBName, collection, month)
		return nil

	default:
		m := newMutator(cmd, newClient(0, 0))
		m.CreateThenArchive(cmd.Context(), result.Orders, month)
		m.Finish("Archived")
		if err := saveFailures(out, m.FailedOrders()); err != nil {
			return err
		}
		return saveOrphans(out, m.OrphanedOrders())
	}
}
