/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"repairdesk/internal/bootstrap"
	"repairdesk/internal/bootstrap/logging"
	"repairdesk/internal/errs"
	"repairdesk/internal/usecase/servicedesk"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Show the audit history of an incident",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("incident")
		order, _ := cmd.Flags().GetString("order")

		tl, err := svc.BuildAuditTimeline(ctx, servicedesk.TimelineInput{IncidentID: id, Order: order})
		if err != nil {
			logging.Error(ctx, "build audit timeline failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "build audit timeline")
		}

		if _, err := fmt.Fprint(cmd.OutOrStdout(), renderTimeline(tl)); err != nil {
			return errs.Wrap(err, "write timeline output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(timelineCmd)

	timelineCmd.Flags().String("incident", "", "Incident id")
	timelineCmd.Flags().String("order", "desc", "Sort order (asc|desc)")
	_ = timelineCmd.MarkFlagRequired("incident")
}
