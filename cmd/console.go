/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"repairdesk/internal/bootstrap"
	"repairdesk/internal/bootstrap/logging"
	"repairdesk/internal/errs"
	"repairdesk/internal/usecase/deskconsole"
	"repairdesk/internal/usecase/servicedesk"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the interactive incident board",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, _ := cmd.Flags().GetString("actor")
		customer, _ := cmd.Flags().GetString("customer")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")

		model := deskconsole.NewBoardModel(ctx, svc, deskconsole.BoardOptions{
			Actor:           actor,
			CustomerID:      customer,
			StatusFilter:    status,
			Limit:           limit,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run incident board")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().String("actor", "", "User recorded on board actions (default: console)")
	consoleCmd.Flags().String("customer", "", "Optional customer filter")
	consoleCmd.Flags().String("status", "", "Optional status filter")
	consoleCmd.Flags().Int("limit", 50, "Maximum incidents on the board")
	consoleCmd.Flags().Duration("refresh-interval", 5*time.Second, "Auto refresh interval")
}
