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

var changeRequestCmd = &cobra.Command{
	Use:     "change-request",
	Aliases: []string{"cr"},
	Short:   "Submit and resolve approval requests",
}

var changeRequestSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Ask a supervisor to approve an exchange, trade-in or credit note",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("incident")
		diagnostic, _ := cmd.Flags().GetString("diagnostic")
		kind, _ := cmd.Flags().GetString("kind")
		requester, _ := cmd.Flags().GetString("requester")
		justification, _ := cmd.Flags().GetString("justification")
		evidence, _ := cmd.Flags().GetStringSlice("evidence")

		created, err := svc.SubmitChangeRequest(ctx, servicedesk.SubmitChangeRequestInput{
			IncidentID:    id,
			DiagnosticID:  diagnostic,
			Kind:          kind,
			RequesterID:   requester,
			Justification: justification,
			EvidenceRefs:  evidence,
		})
		if err != nil {
			logging.Error(ctx, "submit change request failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "submit change request")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "change request submitted: %s (%s)\n", created.ID, created.Kind); err != nil {
			return errs.Wrap(err, "write submit output")
		}
		return nil
	}),
}

var changeRequestResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Approve or reject a pending change request",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("id")
		outcome, _ := cmd.Flags().GetString("outcome")
		by, _ := cmd.Flags().GetString("by")
		note, _ := cmd.Flags().GetString("note")

		result, err := svc.ResolveChangeRequest(ctx, servicedesk.ResolveChangeRequestInput{
			ChangeRequestID: id,
			Outcome:         outcome,
			ResolvedBy:      by,
			Note:            note,
		})
		if err != nil {
			logging.Error(ctx, "resolve change request failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "resolve change request")
		}

		out := cmd.OutOrStdout()
		if _, err := fmt.Fprintf(out, "change request %s: %s\n", result.ChangeRequest.ID, result.ChangeRequest.Status); err != nil {
			return errs.Wrap(err, "write resolve output")
		}
		if err := writeIncident(out, result.Incident); err != nil {
			return errs.Wrap(err, "write resolve output")
		}
		return nil
	}),
}

var changeRequestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the change requests of an incident",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("incident")
		list, err := svc.ListChangeRequests(ctx, id)
		if err != nil {
			logging.Error(ctx, "list change requests failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list change requests")
		}

		out := cmd.OutOrStdout()
		for _, req := range list {
			line := fmt.Sprintf("%s  %s  %s  requested by %s  %s",
				titleStyle.Render(req.ID), req.Kind, statusStyle.Render(string(req.Status)), req.RequesterID,
				dimStyle.Render(req.CreatedAt.Format(timestampLayout)))
			if _, err := fmt.Fprintln(out, line); err != nil {
				return errs.Wrap(err, "write list output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(changeRequestCmd)
	changeRequestCmd.AddCommand(changeRequestSubmitCmd)
	changeRequestCmd.AddCommand(changeRequestResolveCmd)
	changeRequestCmd.AddCommand(changeRequestListCmd)

	changeRequestSubmitCmd.Flags().String("incident", "", "Incident id")
	changeRequestSubmitCmd.Flags().String("diagnostic", "", "Diagnostic id backing the request")
	changeRequestSubmitCmd.Flags().String("kind", "", "Request kind (warranty_exchange|trade_in|credit_note)")
	changeRequestSubmitCmd.Flags().String("requester", "", "Requesting technician")
	changeRequestSubmitCmd.Flags().String("justification", "", "Why the change is needed")
	changeRequestSubmitCmd.Flags().StringSlice("evidence", nil, "Evidence photo reference")
	_ = changeRequestSubmitCmd.MarkFlagRequired("incident")
	_ = changeRequestSubmitCmd.MarkFlagRequired("kind")

	changeRequestResolveCmd.Flags().String("id", "", "Change request id")
	changeRequestResolveCmd.Flags().String("outcome", "", "approved or rejected")
	changeRequestResolveCmd.Flags().String("by", "", "Approver")
	changeRequestResolveCmd.Flags().String("note", "", "Resolution note")
	_ = changeRequestResolveCmd.MarkFlagRequired("id")
	_ = changeRequestResolveCmd.MarkFlagRequired("outcome")
	_ = changeRequestResolveCmd.MarkFlagRequired("by")

	changeRequestListCmd.Flags().String("incident", "", "Incident id")
	_ = changeRequestListCmd.MarkFlagRequired("incident")
}
