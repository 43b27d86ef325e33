package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeWKI/WKI-WIP/internal/api"
	"github.com/MikeWKI/WKI-WIP/internal/database"
	"github.com/MikeWKI/WKI-WIP/internal/mutator"
)

// newClient builds an API client from the resolved configuration. Positive
// arguments override the configured write timeout and pause between writes.
func newClient(write, delay time.Duration) *api.Client {
	if write <= 0 {
		write = cfg.Timeouts.Write
	}
	if delay <= 0 {
		delay = cfg.Timeouts.Delay
	}
	return api.NewClient(api.Options{
		BaseURL:      cfg.APIURL,
		WriteTimeout: write,
		ReadTimeout:  cfg.Timeouts.Read,
		BulkTimeout:  cfg.Timeouts.Bulk,
		Delay:        delay,
		RunID:        runID,
		Logger:       logger,
	})
}

func newMutator(cmd *cobra.Command, client mutator.Remote) *mutator.Mutator {
	return mutator.New(client, cmd.OutOrStdout(), logger)
}

func connectDB(ctx context.Context) (*database.MongoDB, error) {
	db, err := database.NewMongoDB(ctx, cfg.DBURI, cfg.DBName, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	return db, nil
}

func planPath(name string) string {
	return filepath.Join(planDir, name)
}

// stdin wraps the command input once so consecutive prompts share the
// buffer.
func stdin(cmd *cobra.Command) *bufio.Reader {
	return bufio.NewReader(cmd.InOrStdin())
}

func banner(out io.Writer, title string) {
	fmt.Fprintln(out, title)
	fmt.Fprintf(out, "API: %s\n\n", cfg.APIURL)
}

func cancelled(out io.Writer) error {
	fmt.Fprintln(out, "Cancelled. No changes made.")
	return nil
}
