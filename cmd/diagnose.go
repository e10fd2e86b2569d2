/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"repairdesk/internal/bootstrap"
	"repairdesk/internal/bootstrap/logging"
	"repairdesk/internal/domain/incident"
	"repairdesk/internal/errs"
	"repairdesk/internal/usecase/servicedesk"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Record a diagnosis and apply its resolution",
	Long: "Finalizes the technician's diagnosis. Warranty exchanges, trade-ins and credit notes\n" +
		"open a change request and wait for approval; pending parts opens a parts request.\n" +
		"With --draft the diagnosis is only saved and the incident does not move.",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("incident")
		draft, _ := cmd.Flags().GetBool("draft")
		expected, _ := cmd.Flags().GetInt64("expected-version")
		input, err := diagnosticInputFromFlags(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if draft {
			saved, err := svc.SaveDiagnosticDraft(ctx, servicedesk.SaveDraftInput{IncidentID: id, Diagnostic: input})
			if err != nil {
				logging.Error(ctx, "save diagnostic draft failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "save diagnostic draft")
			}
			if _, err := fmt.Fprintf(out, "draft saved: %s v%d\n", saved.ID, saved.Version); err != nil {
				return errs.Wrap(err, "write draft output")
			}
			return nil
		}

		outcome, err := svc.RunDiagnosticDecision(ctx, servicedesk.DiagnosticDecisionInput{
			IncidentID:      id,
			Diagnostic:      input,
			ExpectedVersion: expected,
		})
		if err != nil {
			logging.Error(ctx, "diagnostic decision failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "run diagnostic decision")
		}

		if err := writeIncident(out, outcome.Incident); err != nil {
			return errs.Wrap(err, "write diagnose output")
		}
		if cr := outcome.ChangeRequest; cr != nil {
			if _, err := fmt.Fprintf(out, "awaiting approval: change request %s (%s)\n", cr.ID, cr.Kind); err != nil {
				return errs.Wrap(err, "write diagnose output")
			}
		}
		if pr := outcome.PartsRequest; pr != nil {
			if _, err := fmt.Fprintf(out, "parts requested: %s\n", pr.ID); err != nil {
				return errs.Wrap(err, "write diagnose output")
			}
			for _, item := range pr.Items {
				if _, err := fmt.Fprintln(out, "  "+renderPart(item)); err != nil {
					return errs.Wrap(err, "write diagnose output")
				}
			}
		}
		return nil
	}),
}

func diagnosticInputFromFlags(cmd *cobra.Command) (incident.DiagnosticInput, error) {
	technician, _ := cmd.Flags().GetString("technician")
	faults, _ := cmd.Flags().GetStringArray("fault")
	causes, _ := cmd.Flags().GetStringArray("cause")
	rawParts, _ := cmd.Flags().GetStringArray("part")
	requiresParts, _ := cmd.Flags().GetBool("requires-parts")
	recommendations, _ := cmd.Flags().GetString("recommendations")
	resolution, _ := cmd.Flags().GetString("resolution")
	note, _ := cmd.Flags().GetString("note")
	photos, _ := cmd.Flags().GetStringSlice("photo")
	minutes, _ := cmd.Flags().GetInt("minutes")
	cost, _ := cmd.Flags().GetFloat64("cost")
	justification, _ := cmd.Flags().GetString("justification")
	evidence, _ := cmd.Flags().GetStringSlice("evidence")

	parts, err := parsePartFlags(rawParts)
	if err != nil {
		return incident.DiagnosticInput{}, err
	}

	return incident.DiagnosticInput{
		TechnicianID:     technician,
		Faults:           faults,
		Causes:           causes,
		Parts:            parts,
		RequiresParts:    requiresParts,
		Recommendations:  recommendations,
		Resolution:       resolution,
		ResolutionNote:   note,
		PhotoRefs:        photos,
		EstimatedMinutes: minutes,
		EstimatedCost:    cost,
		Justification:    justification,
		EvidenceRefs:     evidence,
	}, nil
}

// parsePartFlags reads CODE:QTY[:DESCRIPTION] values in order. A missing
// quantity means one, a repeated code adds to its line and a zero quantity
// removes the line.
func parsePartFlags(values []string) ([]incident.SelectedPart, error) {
	selection := incident.NewPartSelection()
	for _, raw := range values {
		fields := strings.SplitN(raw, ":", 3)
		part := incident.SelectedPart{Code: strings.TrimSpace(fields[0]), Quantity: 1}
		if part.Code == "" {
			return nil, errs.Validationf("part", "part %q has no code", raw)
		}
		if len(fields) > 1 && strings.TrimSpace(fields[1]) != "" {
			qty, err := strconv.Atoi(strings.TrimSpace(fields[1]))
			if err != nil || qty < 0 {
				return nil, errs.Validationf("part", "part %q has an invalid quantity", raw)
			}
			part.Quantity = qty
		}
		if len(fields) > 2 {
			part.Description = strings.TrimSpace(fields[2])
		}
		if part.Quantity == 0 {
			selection.SetQuantity(part.Code, 0)
			continue
		}
		selection.Add(part)
	}
	return selection.Lines(), nil
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)

	diagnoseCmd.Flags().String("incident", "", "Incident id")
	diagnoseCmd.Flags().String("technician", "", "Technician id")
	diagnoseCmd.Flags().StringArray("fault", nil, "Detected fault, repeatable")
	diagnoseCmd.Flags().StringArray("cause", nil, "Probable cause, repeatable")
	diagnoseCmd.Flags().StringArray("part", nil, "Selected part as CODE:QTY[:DESCRIPTION], repeatable")
	diagnoseCmd.Flags().Bool("requires-parts", false, "Parts are needed but not selected yet")
	diagnoseCmd.Flags().String("recommendations", "", "Recommendations for the customer")
	diagnoseCmd.Flags().String("resolution", "", "Resolution (repaired|pending_parts|estimate|percentage_discount|warranty_exchange|credit_note|pending_delivery|logistics_shipment)")
	diagnoseCmd.Flags().String("note", "", "Resolution note")
	diagnoseCmd.Flags().StringSlice("photo", nil, "Diagnostic photo reference")
	diagnoseCmd.Flags().Int("minutes", 0, "Estimated repair minutes")
	diagnoseCmd.Flags().Float64("cost", 0, "Estimated repair cost")
	diagnoseCmd.Flags().String("justification", "", "Justification for approval-gated resolutions")
	diagnoseCmd.Flags().StringSlice("evidence", nil, "Evidence photo reference for approval-gated resolutions")
	diagnoseCmd.Flags().Bool("draft", false, "Only save a draft")
	diagnoseCmd.Flags().Int64("expected-version", 0, "Fail with a conflict unless the incident is at this version")
	_ = diagnoseCmd.MarkFlagRequired("incident")
	_ = diagnoseCmd.MarkFlagRequired("technician")
}
