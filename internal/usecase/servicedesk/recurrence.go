package servicedesk

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"repairdesk/internal/bootstrap/logging"
	"repairdesk/internal/domain/incident"
	"repairdesk/internal/errs"
)

type ListCandidatesInput struct {
	IncidentID      string
	SameProductOnly bool
}

type RecurrenceVerificationInput struct {
	IncidentID          string
	VerifierID          string
	PriorIncidentID     string
	IsRecurrence        bool
	QualifiesForReentry *bool
	RejectionReason     string
	Justification       string
}

type RecurrenceResult struct {
	Verification incident.RecurrenceVerification
	Incident     incident.Incident
}

var verificationFields = []string{
	"prior_incident_id",
	"is_recurrence",
	"qualifies_for_reentry",
	"rejection_reason",
	"days_since_repair",
	"verifier_id",
}

func verificationSnapshot(v incident.RecurrenceVerification) map[string]string {
	snapshot := map[string]string{
		"prior_incident_id": derefString(v.PriorIncidentID),
		"is_recurrence":     strconv.FormatBool(v.IsRecurrence),
		"verifier_id":       v.VerifierID,
	}
	if v.QualifiesForReentry != nil {
		snapshot["qualifies_for_reentry"] = strconv.FormatBool(*v.QualifiesForReentry)
	}
	if v.RejectionReason != nil {
		snapshot["rejection_reason"] = string(*v.RejectionReason)
	}
	if v.DaysSinceRepair != incident.NotApplicableDays {
		snapshot["days_since_repair"] = strconv.Itoa(v.DaysSinceRepair)
	}
	return snapshot
}

// ListRecurrenceCandidates lists the customer's finished repairs, newest first,
// with the days since each one was repaired.
func (s *Service) ListRecurrenceCandidates(ctx context.Context, input ListCandidatesInput) ([]incident.RecurrenceCandidate, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	current, err := s.incidents.Get(ctx, input.IncidentID)
	if err != nil {
		return nil, err
	}
	history, err := s.incidents.ListByCustomer(ctx, current.CustomerID)
	if err != nil {
		return nil, err
	}
	return incident.SelectCandidates(current, history, input.SameProductOnly, s.clock()), nil
}

// RunRecurrenceVerification records a verifier's decision on whether the
// incident is a recurrence of a prior repair. A granted re-entry links the
// incident to its origin and puts it under warranty coverage.
func (s *Service) RunRecurrenceVerification(ctx context.Context, input RecurrenceVerificationInput) (RecurrenceResult, error) {
	if err := checkContext(ctx); err != nil {
		return RecurrenceResult{}, err
	}
	ctx = logging.WithIncident(ctx, input.IncidentID)

	var before incident.Incident
	var result RecurrenceResult
	err := s.inIncidentTx(ctx, input.IncidentID, func(txCtx context.Context) error {
		current, err := s.incidents.Get(txCtx, input.IncidentID)
		if err != nil {
			return err
		}
		before = current
		result.Incident = current
		if current.Status.IsTerminal() {
			return errs.Validationf("status", "incident is already %s", current.Status)
		}

		priorID := strings.TrimSpace(input.PriorIncidentID)
		if priorID != "" {
			if priorID == current.ID {
				return errs.Validation("prior_incident_id", "an incident cannot recur from itself")
			}
			if _, err := s.incidents.Get(txCtx, priorID); err != nil {
				return err
			}
		}

		history, err := s.incidents.ListByCustomer(txCtx, current.CustomerID)
		if err != nil {
			return err
		}
		now := s.clock()
		candidates := incident.SelectCandidates(current, history, false, now)
		record, err := incident.EvaluateVerification(current, incident.VerificationDecision{
			VerifierID:          input.VerifierID,
			PriorIncidentID:     priorID,
			IsRecurrence:        input.IsRecurrence,
			QualifiesForReentry: input.QualifiesForReentry,
			RejectionReason:     input.RejectionReason,
			Justification:       input.Justification,
		}, candidates, now)
		if err != nil {
			return err
		}
		record.ID = s.newID()

		if result.Verification, err = s.verifications.Create(txCtx, record); err != nil {
			return err
		}
		snapshot := verificationSnapshot(result.Verification)
		if err := s.changeLog.Append(txCtx, incident.ChangeLogEntry{
			IncidentID:    current.ID,
			Action:        incident.ActionCreate,
			Table:         tableVerifications,
			ChangedFields: createdFields(verificationFields, snapshot),
			After:         snapshot,
			Actor:         record.VerifierID,
			CreatedAt:     now,
		}); err != nil {
			return err
		}

		if !record.Approved() {
			return nil
		}
		next := current
		next.OriginIncidentID = record.PriorIncidentID
		next.WarrantyCoverage = true
		result.Incident, err = s.saveIncident(txCtx, current, next, record.VerifierID)
		return err
	})
	if err != nil {
		s.recordConflict(ctx, "recurrence_verification", err)
		return RecurrenceResult{}, err
	}

	s.afterCommit(ctx, before, result.Incident)
	s.metrics.RecurrenceVerified(result.Verification.Approved())
	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", componentEngine)),
		"recurrence verified",
		slog.Bool("recurrence", result.Verification.IsRecurrence),
		slog.Bool("reentry", result.Verification.Approved()),
		slog.Int("days_since_repair", result.Verification.DaysSinceRepair),
	)
	return result, nil
}

func (s *Service) ListRecurrenceVerifications(ctx context.Context, incidentID string) ([]incident.RecurrenceVerification, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if _, err := s.incidents.Get(ctx, incidentID); err != nil {
		return nil, err
	}
	return s.verifications.ListByIncident(ctx, incidentID)
}
