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
	"repairdesk/internal/domain/incident"
	"repairdesk/internal/errs"
	"repairdesk/internal/usecase/servicedesk"
)

var incidentCmd = &cobra.Command{
	Use:   "incident",
	Short: "Register incidents and move them through the repair lifecycle",
}

var incidentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new incident",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		customer, _ := cmd.Flags().GetString("customer")
		product, _ := cmd.Flags().GetString("product")
		problem, _ := cmd.Flags().GetString("problem")
		channel, _ := cmd.Flags().GetString("channel")
		address, _ := cmd.Flags().GetString("delivery-address")
		warranty, _ := cmd.Flags().GetBool("warranty")
		actor, _ := cmd.Flags().GetString("actor")

		created, err := svc.CreateIncident(ctx, servicedesk.CreateIncidentInput{
			CustomerID:         customer,
			ProductID:          product,
			ProblemDescription: problem,
			EntryChannel:       channel,
			DeliveryAddressID:  address,
			WarrantyCoverage:   warranty,
			Actor:              actor,
		})
		if err != nil {
			logging.Error(ctx, "create incident failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create incident")
		}

		if err := writeIncident(cmd.OutOrStdout(), created); err != nil {
			return errs.Wrap(err, "write create output")
		}
		return nil
	}),
}

type transitionCall func(*servicedesk.Service, *cobra.Command, servicedesk.TransitionInput) (incident.Incident, error)

func transitionCommand(use string, short string, call transitionCall) *cobra.Command {
	command := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
			ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
			cmd.SetContext(ctx)

			id, _ := cmd.Flags().GetString("incident")
			actor, _ := cmd.Flags().GetString("actor")
			expected, _ := cmd.Flags().GetInt64("expected-version")

			updated, err := call(svc, cmd, servicedesk.TransitionInput{
				IncidentID:      id,
				Actor:           actor,
				ExpectedVersion: expected,
			})
			if err != nil {
				logging.Error(ctx, use+" incident failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrapf(err, "%s incident", use)
			}

			if err := writeIncident(cmd.OutOrStdout(), updated); err != nil {
				return errs.Wrapf(err, "write %s output", use)
			}
			return nil
		}),
	}
	addIncidentFlags(command)
	return command
}

func addIncidentFlags(command *cobra.Command) {
	command.Flags().String("incident", "", "Incident id")
	command.Flags().String("actor", "", "User performing the change")
	command.Flags().Int64("expected-version", 0, "Fail with a conflict unless the incident is at this version")
	_ = command.MarkFlagRequired("incident")
}

var incidentAdmitCmd = transitionCommand("admit", "Admit a registered incident for diagnosis",
	func(svc *servicedesk.Service, cmd *cobra.Command, in servicedesk.TransitionInput) (incident.Incident, error) {
		return svc.AdmitIncident(cmd.Context(), in)
	})

var incidentStartCmd = transitionCommand("start", "Start diagnosing an admitted incident",
	func(svc *servicedesk.Service, cmd *cobra.Command, in servicedesk.TransitionInput) (incident.Incident, error) {
		return svc.StartDiagnosis(cmd.Context(), in)
	})

var incidentDeliverCmd = transitionCommand("deliver", "Hand the device back to the customer",
	func(svc *servicedesk.Service, cmd *cobra.Command, in servicedesk.TransitionInput) (incident.Incident, error) {
		return svc.MarkDelivered(cmd.Context(), in)
	})

var incidentScheduleCmd = &cobra.Command{
	Use:   "schedule-delivery",
	Short: "Move a finished repair to pickup or shipment",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("incident")
		actor, _ := cmd.Flags().GetString("actor")
		expected, _ := cmd.Flags().GetInt64("expected-version")
		shipment, _ := cmd.Flags().GetBool("shipment")

		updated, err := svc.ScheduleDelivery(ctx, servicedesk.ScheduleDeliveryInput{
			IncidentID:      id,
			Actor:           actor,
			Shipment:        shipment,
			ExpectedVersion: expected,
		})
		if err != nil {
			logging.Error(ctx, "schedule delivery failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "schedule delivery")
		}

		if err := writeIncident(cmd.OutOrStdout(), updated); err != nil {
			return errs.Wrap(err, "write schedule output")
		}
		return nil
	}),
}

var incidentRejectCmd = &cobra.Command{
	Use:   "reject",
	Short: "Close an incident without repair",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("incident")
		actor, _ := cmd.Flags().GetString("actor")
		expected, _ := cmd.Flags().GetInt64("expected-version")
		reason, _ := cmd.Flags().GetString("reason")

		updated, err := svc.RejectIncident(ctx, servicedesk.RejectIncidentInput{
			IncidentID:      id,
			Actor:           actor,
			Reason:          reason,
			ExpectedVersion: expected,
		})
		if err != nil {
			logging.Error(ctx, "reject incident failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "reject incident")
		}

		if err := writeIncident(cmd.OutOrStdout(), updated); err != nil {
			return errs.Wrap(err, "write reject output")
		}
		return nil
	}),
}

var incidentObserveCmd = &cobra.Command{
	Use:   "observe",
	Short: "Append a line to the observation log",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("incident")
		user, _ := cmd.Flags().GetString("user")
		message, _ := cmd.Flags().GetString("message")

		updated, err := svc.AppendObservation(ctx, servicedesk.AppendObservationInput{
			IncidentID: id,
			User:       user,
			Message:    message,
		})
		if err != nil {
			logging.Error(ctx, "append observation failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "append observation")
		}

		if err := writeIncident(cmd.OutOrStdout(), updated); err != nil {
			return errs.Wrap(err, "write observe output")
		}
		return nil
	}),
}

var incidentPhotoCmd = &cobra.Command{
	Use:   "photo",
	Short: "Attach photo references to an incident",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("incident")
		user, _ := cmd.Flags().GetString("user")
		kind, _ := cmd.Flags().GetString("kind")
		refs, _ := cmd.Flags().GetStringSlice("ref")

		input := servicedesk.AddPhotosInput{IncidentID: id, UploadedBy: user}
		for _, ref := range refs {
			input.Photos = append(input.Photos, servicedesk.PhotoInput{Kind: kind, Ref: ref})
		}
		photos, err := svc.AddPhotos(ctx, input)
		if err != nil {
			logging.Error(ctx, "add photos failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "add photos")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "stored %d photo(s) on %s\n", len(photos), id); err != nil {
			return errs.Wrap(err, "write photo output")
		}
		return nil
	}),
}

var incidentShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show an incident with its diagnostic, approvals and parts",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("incident")
		detail, err := svc.GetIncidentDetail(ctx, id)
		if err != nil {
			logging.Error(ctx, "show incident failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "show incident")
		}

		if _, err := fmt.Fprint(cmd.OutOrStdout(), renderDetail(detail)); err != nil {
			return errs.Wrap(err, "write show output")
		}
		return nil
	}),
}

var incidentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List incidents, newest first",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *servicedesk.Service, _ *servicedesk.DraftAutoSaver) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		customer, _ := cmd.Flags().GetString("customer")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		list, err := svc.ListIncidents(ctx, servicedesk.ListIncidentsInput{
			CustomerID: customer,
			Status:     status,
			Limit:      limit,
		})
		if err != nil {
			logging.Error(ctx, "list incidents failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list incidents")
		}

		out := cmd.OutOrStdout()
		if len(list) == 0 {
			if _, err := fmt.Fprintln(out, "no incidents"); err != nil {
				return errs.Wrap(err, "write list output")
			}
			return nil
		}
		for _, item := range list {
			if err := writeIncident(out, item); err != nil {
				return errs.Wrap(err, "write list output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(incidentCmd)
	incidentCmd.AddCommand(incidentCreateCmd)
	incidentCmd.AddCommand(incidentAdmitCmd)
	incidentCmd.AddCommand(incidentStartCmd)
	incidentCmd.AddCommand(incidentScheduleCmd)
	incidentCmd.AddCommand(incidentDeliverCmd)
	incidentCmd.AddCommand(incidentRejectCmd)
	incidentCmd.AddCommand(incidentObserveCmd)
	incidentCmd.AddCommand(incidentPhotoCmd)
	incidentCmd.AddCommand(incidentShowCmd)
	incidentCmd.AddCommand(incidentListCmd)

	incidentCreateCmd.Flags().String("customer", "", "Customer id")
	incidentCreateCmd.Flags().String("product", "", "Product id")
	incidentCreateCmd.Flags().String("problem", "", "Problem reported by the customer")
	incidentCreateCmd.Flags().String("channel", "counter", "Entry channel (counter|logistics)")
	incidentCreateCmd.Flags().String("delivery-address", "", "Delivery address id, required for logistics intake")
	incidentCreateCmd.Flags().Bool("warranty", false, "Device is covered by warranty")
	incidentCreateCmd.Flags().String("actor", "", "User registering the incident")
	_ = incidentCreateCmd.MarkFlagRequired("customer")
	_ = incidentCreateCmd.MarkFlagRequired("problem")

	addIncidentFlags(incidentScheduleCmd)
	incidentScheduleCmd.Flags().Bool("shipment", false, "Ship to the delivery address instead of counter pickup")

	addIncidentFlags(incidentRejectCmd)
	incidentRejectCmd.Flags().String("reason", "", "Why the incident is closed")
	_ = incidentRejectCmd.MarkFlagRequired("reason")

	incidentObserveCmd.Flags().String("incident", "", "Incident id")
	incidentObserveCmd.Flags().String("user", "", "Author of the observation")
	incidentObserveCmd.Flags().String("message", "", "Observation text")
	_ = incidentObserveCmd.MarkFlagRequired("incident")
	_ = incidentObserveCmd.MarkFlagRequired("message")

	incidentPhotoCmd.Flags().String("incident", "", "Incident id")
	incidentPhotoCmd.Flags().String("user", "", "Uploader")
	incidentPhotoCmd.Flags().String("kind", "evidence", "Photo kind (intake|diagnostic|evidence|delivery)")
	incidentPhotoCmd.Flags().StringSlice("ref", nil, "Photo storage reference, repeatable")
	_ = incidentPhotoCmd.MarkFlagRequired("incident")
	_ = incidentPhotoCmd.MarkFlagRequired("ref")

	incidentShowCmd.Flags().String("incident", "", "Incident id")
	_ = incidentShowCmd.MarkFlagRequired("incident")

	incidentListCmd.Flags().String("customer", "", "Filter by customer id")
	incidentListCmd.Flags().String("status", "", "Filter by status")
	incidentListCmd.Flags().Int("limit", 50, "Maximum incidents to list")
}
