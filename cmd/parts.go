/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"repairdesk/internal/bootstrap"
	"repairdesk/internal/bootstrap/logging"
	"repairdesk/internal/domain/incident"
	"repairdesk/internal/errs"
	"repairdesk/internal/usecase/servicedesk"
)

var partsCmd = &cobra.Command{
	Use:   "parts",
	Short: "Request parts from the warehouse and record the outcome",
}

var partsRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Open a parts request for an incident",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("incident")
		requester, _ := cmd.Flags().GetString("requester")
		note, _ := cmd.Flags().GetString("note")
		rawParts, _ := cmd.Flags().GetStringArray("part")
		items, err := parsePartFlags(rawParts)
		if err != nil {
			return err
		}

		result, err := svc.SubmitPartsRequest(ctx, servicedesk.SubmitPartsRequestInput{
			IncidentID:  id,
			RequesterID: requester,
			Items:       items,
			Note:        note,
		})
		if err != nil {
			logging.Error(ctx, "submit parts request failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "submit parts request")
		}

		out := cmd.OutOrStdout()
		if _, err := fmt.Fprintf(out, "parts requested: %s\n", result.PartsRequest.ID); err != nil {
			return errs.Wrap(err, "write request output")
		}
		for _, item := range result.PartsRequest.Items {
			if _, err := fmt.Fprintln(out, "  "+renderPart(item)); err != nil {
				return errs.Wrap(err, "write request output")
			}
		}
		return writeIncident(out, result.Incident)
	}),
}

type partsResolver func(*servicedesk.Service, context.Context, servicedesk.ResolvePartsRequestInput) (incident.PartsRequest, error)

func resolvePartsCommand(use string, short string, resolve partsResolver) *cobra.Command {
	command := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
			ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

			id, _ := cmd.Flags().GetString("id")
			by, _ := cmd.Flags().GetString("by")

			resolved, err := resolve(svc, ctx, servicedesk.ResolvePartsRequestInput{PartsRequestID: id, ResolvedBy: by})
			if err != nil {
				logging.Error(ctx, use+" parts request failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrapf(err, "%s parts request", use)
			}

			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "parts request %s: %s\n", resolved.ID, resolved.Status); err != nil {
				return errs.Wrapf(err, "write %s output", use)
			}
			return nil
		}),
	}
	command.Flags().String("id", "", "Parts request id")
	command.Flags().String("by", "", "Warehouse user")
	_ = command.MarkFlagRequired("id")
	return command
}

var partsFulfillCmd = resolvePartsCommand("fulfill", "Mark a parts request as fulfilled", (*servicedesk.Service).MarkPartsFulfilled)

var partsRejectCmd = resolvePartsCommand("reject", "Mark a parts request as rejected", (*servicedesk.Service).MarkPartsRejected)

var partsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the parts requests of an incident",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("incident")
		list, err := svc.ListPartsRequests(ctx, id)
		if err != nil {
			logging.Error(ctx, "list parts requests failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list parts requests")
		}

		out := cmd.OutOrStdout()
		for _, req := range list {
			if _, err := fmt.Fprintf(out, "%s  %s  by %s\n", titleStyle.Render(req.ID), statusStyle.Render(string(req.Status)), req.RequesterID); err != nil {
				return errs.Wrap(err, "write list output")
			}
			for _, item := range req.Items {
				if _, err := fmt.Fprintln(out, "  "+renderPart(item)); err != nil {
					return errs.Wrap(err, "write list output")
				}
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(partsCmd)
	partsCmd.AddCommand(partsRequestCmd)
	partsCmd.AddCommand(partsFulfillCmd)
	partsCmd.AddCommand(partsRejectCmd)
	partsCmd.AddCommand(partsListCmd)

	partsRequestCmd.Flags().String("incident", "", "Incident id")
	partsRequestCmd.Flags().String("requester", "", "Requesting technician")
	partsRequestCmd.Flags().String("note", "", "Note for the warehouse")
	partsRequestCmd.Flags().StringArray("part", nil, "Part as CODE:QTY[:DESCRIPTION], repeatable")
	_ = partsRequestCmd.MarkFlagRequired("incident")
	_ = partsRequestCmd.MarkFlagRequired("part")

	partsListCmd.Flags().String("incident", "", "Incident id")
	_ = partsListCmd.MarkFlagRequired("incident")
}
