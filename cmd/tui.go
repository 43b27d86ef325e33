package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/MikeWKI/WKI-WIP/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse plan files interactively",
	Long: `Start a terminal UI for reviewing the plan files written by the check
commands (duplicate_orders.json, orders_to_archive.json and the rest) before
running the command that acts on them. The UI never changes anything.`,
	RunE: runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	p := tea.NewProgram(
		tui.NewModel(planDir),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
