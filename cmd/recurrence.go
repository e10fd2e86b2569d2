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

var recurrenceCmd = &cobra.Command{
	Use:   "recurrence",
	Short: "Check whether an incident repeats an earlier repair under warranty",
}

var recurrenceCandidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List earlier finished repairs of the same customer",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("incident")
		sameProduct, _ := cmd.Flags().GetBool("same-product")

		candidates, err := svc.ListRecurrenceCandidates(ctx, servicedesk.ListCandidatesInput{
			IncidentID:      id,
			SameProductOnly: sameProduct,
		})
		if err != nil {
			logging.Error(ctx, "list recurrence candidates failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list recurrence candidates")
		}

		out := cmd.OutOrStdout()
		if len(candidates) == 0 {
			if _, err := fmt.Fprintln(out, "no earlier repairs"); err != nil {
				return errs.Wrap(err, "write candidates output")
			}
			return nil
		}
		for _, c := range candidates {
			window := warnStyle.Render("outside warranty window")
			if c.WithinWarrantyWindow {
				window = "within warranty window"
			}
			if _, err := fmt.Fprintf(out, "%s  delivered %s  %d days ago  %s\n",
				renderIncidentLine(c.Incident), formatTimestamp(c.Incident.DeliveredAt), c.DaysSinceRepair, window); err != nil {
				return errs.Wrap(err, "write candidates output")
			}
		}
		return nil
	}),
}

var recurrenceVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Record a recurrence verdict for an incident",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("incident")
		prior, _ := cmd.Flags().GetString("prior")
		verifier, _ := cmd.Flags().GetString("verifier")
		isRecurrence, _ := cmd.Flags().GetBool("recurrence")
		reason, _ := cmd.Flags().GetString("rejection-reason")
		justification, _ := cmd.Flags().GetString("justification")

		input := servicedesk.RecurrenceVerificationInput{
			IncidentID:      id,
			VerifierID:      verifier,
			PriorIncidentID: prior,
			IsRecurrence:    isRecurrence,
			RejectionReason: reason,
			Justification:   justification,
		}
		if cmd.Flags().Changed("qualifies") {
			qualifies, _ := cmd.Flags().GetBool("qualifies")
			input.QualifiesForReentry = &qualifies
		}

		result, err := svc.RunRecurrenceVerification(ctx, input)
		if err != nil {
			logging.Error(ctx, "recurrence verification failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "run recurrence verification")
		}

		out := cmd.OutOrStdout()
		verdict := "not granted"
		if result.Verification.Approved() {
			verdict = "warranty re-entry granted"
		}
		if _, err := fmt.Fprintf(out, "verification %s: %s (%d days since repair)\n", result.Verification.ID, verdict, result.Verification.DaysSinceRepair); err != nil {
			return errs.Wrap(err, "write verify output")
		}
		return writeIncident(out, result.Incident)
	}),
}

var recurrenceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recurrence verdicts of an incident",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("incident")
		list, err := svc.ListRecurrenceVerifications(ctx, id)
		if err != nil {
			logging.Error(ctx, "list recurrence verifications failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list recurrence verifications")
		}

		for _, v := range list {
			reason := ""
			if v.RejectionReason != nil {
				reason = " reason=" + string(*v.RejectionReason)
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  approved=%t%s  by %s  %s\n",
				titleStyle.Render(v.ID), v.Approved(), reason, v.VerifierID, dimStyle.Render(v.VerifiedAt.Format(timestampLayout))); err != nil {
				return errs.Wrap(err, "write list output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(recurrenceCmd)
	recurrenceCmd.AddCommand(recurrenceCandidatesCmd)
	recurrenceCmd.AddCommand(recurrenceVerifyCmd)
	recurrenceCmd.AddCommand(recurrenceListCmd)

	recurrenceCandidatesCmd.Flags().String("incident", "", "Incident id")
	recurrenceCandidatesCmd.Flags().Bool("same-product", false, "Only repairs of the same product")
	_ = recurrenceCandidatesCmd.MarkFlagRequired("incident")

	recurrenceVerifyCmd.Flags().String("incident", "", "Incident id")
	recurrenceVerifyCmd.Flags().String("prior", "", "Earlier incident this one repeats")
	recurrenceVerifyCmd.Flags().String("verifier", "", "Verifying user")
	recurrenceVerifyCmd.Flags().Bool("recurrence", false, "The fault repeats the earlier repair")
	recurrenceVerifyCmd.Flags().Bool("qualifies", false, "The repeat qualifies for a free re-entry")
	recurrenceVerifyCmd.Flags().String("rejection-reason", "", "Reason when not granted (out_of_window|misuse|different_fault|no_prior_incident)")
	recurrenceVerifyCmd.Flags().String("justification", "", "Verdict justification")
	_ = recurrenceVerifyCmd.MarkFlagRequired("incident")
	_ = recurrenceVerifyCmd.MarkFlagRequired("verifier")

	recurrenceListCmd.Flags().String("incident", "", "Incident id")
	_ = recurrenceListCmd.MarkFlagRequired("incident")
}
