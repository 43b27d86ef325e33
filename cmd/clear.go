package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MikeWKI/WKI-WIP/internal/prompt"
)

var clearDelay time.Duration

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every active order",
	Long: `Deletes every active order through the API. Archived orders are not
touched. Intended for a full re-import from the spreadsheet; requires
typing CLEAR DATABASE exactly.`,
	RunE: runClear,
}

func init() {
	clearCmd.Flags().DurationVar(&clearDelay, "delay", 50*time.Millisecond, "pause between deletes")
}

func runClear(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	client := newClient(0, clearDelay)

	count := "an unknown number of"
	if orders, err := client.ListOrders(ctx); err != nil {
		logger.Warn("could not count active orders", zap.Error(err))
	} else {
		if len(orders) == 0 {
			fmt.Fprintln(out, "No active orders to delete.")
			return nil
		}
		count = fmt.Sprint(len(orders))
	}

	fmt.Fprintln(out, "WARNING: this deletes ALL active orders.")
	fmt.Fprintf(out, "API: %s\n", cfg.APIURL)
	message := fmt.Sprintf("This will delete %s orders. Archived orders are not affected.", count)
	if !prompt.Confirm(stdin(cmd), out, message, "CLEAR DATABASE", false) {
		return cancelled(out)
	}

	// Fetch again: the list may have changed while waiting for confirmation.
	orders, err := client.ListOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch orders: %w", err)
	}
	fmt.Fprintf(out, "\nDeleting %d orders...\n", len(orders))

	m := newMutator(cmd, client)
	m.Delete(ctx, orders)
	m.Finish("Deleted")

	fmt.Fprintln(out, "\nNext: 'wip import excel' or 'wip import csv' to reload the sheet.")
	return nil
}
