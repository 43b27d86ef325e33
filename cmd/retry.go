package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeWKI/WKI-WIP/internal/plan"
)

var (
	retryTimeout time.Duration
	retryDelay   time.Duration
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Resubmit the orders saved in failed_orders.json",
	Long: `Creates every order recorded in failed_orders.json again, with a longer
timeout and a slower pace than a normal import. Orders that were headed for
an archive month are created and archived into that month. The file is rewritten with
whatever still fails, so the command can be run until it is empty.`,
	RunE: runRetry,
}

func init() {
	retryCmd.Flags().DurationVar(&retryTimeout, "timeout", 30*time.Second, "per-request timeout")
	retryCmd.Flags().DurationVar(&retryDelay, "delay", 500*time.Millisecond, "pause between requests")
}

func runRetry(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := planPath(plan.FailedOrdersFile)

	failed, err := plan.LoadFailed(path)
	if errors.Is(err, plan.ErrNotFound) {
		return fmt.Errorf("%s not found: nothing has failed yet", path)
	}
	if err != nil {
		return err
	}
	if len(failed) == 0 {
		fmt.Fprintln(out, "No failed orders to retry.")
		return nil
	}

	banner(out, fmt.Sprintf("Retrying %d failed orders", len(failed)))

	m := newMutator(cmd, newClient(retryTimeout, retryDelay))
	m.Resubmit(cmd.Context(), failed)
	m.Finish("Resubmitted")

	remaining := m.FailedOrders()
	// An interrupted run leaves the tail untried.
	remaining = append(remaining, failed[len(m.Records):]...)
	if remaining == nil {
		remaining = []plan.FailedOrder{}
	}
	if err := plan.Save(path, remaining); err != nil {
		return err
	}
	if len(remaining) > 0 {
		fmt.Fprintf(out, "\n%d orders still failing, kept in %s\n", len(remaining), path)
	}
	return saveOrphans(out, m.OrphanedOrders())
}
