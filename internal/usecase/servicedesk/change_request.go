package servicedesk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"repairdesk/internal/bootstrap/logging"
	"repairdesk/internal/domain/incident"
	"repairdesk/internal/errs"
	"repairdesk/internal/ports"
)

type SubmitChangeRequestInput struct {
	IncidentID    string
	DiagnosticID  string
	Kind          string
	RequesterID   string
	Justification string
	EvidenceRefs  []string
}

type ResolveChangeRequestInput struct {
	ChangeRequestID string
	Outcome         string
	ResolvedBy      string
	Note            string
}

type ChangeRequestResolution struct {
	ChangeRequest incident.ChangeRequest
	Incident      incident.Incident
}

var changeRequestFields = []string{"kind", "status", "diagnostic_id", "requester_id", "resolved_by", "resolution_note"}

func changeRequestSnapshot(req incident.ChangeRequest) map[string]string {
	return map[string]string{
		"kind":            string(req.Kind),
		"status":          string(req.Status),
		"diagnostic_id":   req.DiagnosticID,
		"requester_id":    req.RequesterID,
		"resolved_by":     req.ResolvedBy,
		"resolution_note": req.ResolutionNote,
	}
}

// SubmitChangeRequest opens an approval request for an incident under diagnosis
// outside of a diagnostic decision.
func (s *Service) SubmitChangeRequest(ctx context.Context, input SubmitChangeRequestInput) (incident.ChangeRequest, error) {
	if err := checkContext(ctx); err != nil {
		return incident.ChangeRequest{}, err
	}
	kind, err := incident.ParseChangeKind(input.Kind)
	if err != nil {
		return incident.ChangeRequest{}, err
	}

	var created incident.ChangeRequest
	err = s.inIncidentTx(ctx, input.IncidentID, func(txCtx context.Context) error {
		current, err := s.incidents.Get(txCtx, input.IncidentID)
		if err != nil {
			return err
		}
		if current.Status != incident.StatusInDiagnosis {
			return errs.Validationf("status", "change requests are raised while the incident is %s, incident is %s", incident.StatusInDiagnosis, current.Status)
		}
		if pending, ok, err := s.changeRequests.Pending(txCtx, current.ID); err != nil {
			return err
		} else if ok {
			return errs.Conflict("incident", current.ID, fmt.Sprintf("change request %s is pending", pending.ID))
		}

		diagnosticID := strings.TrimSpace(input.DiagnosticID)
		if diagnosticID == "" {
			if diag, ok, err := s.diagnostics.Current(txCtx, current.ID); err != nil {
				return err
			} else if ok {
				diagnosticID = diag.ID
			}
		} else if _, err := s.diagnostics.Get(txCtx, diagnosticID); err != nil {
			return err
		}

		created, err = s.openChangeRequest(txCtx, incident.ChangeRequest{
			IncidentID:    current.ID,
			DiagnosticID:  diagnosticID,
			Kind:          kind,
			RequesterID:   input.RequesterID,
			Justification: input.Justification,
			EvidenceRefs:  input.EvidenceRefs,
		})
		return err
	})
	if err != nil {
		s.recordConflict(ctx, "submit_change_request", err)
		return incident.ChangeRequest{}, err
	}
	return created, nil
}

// openChangeRequest validates and stores a pending request inside the caller's transaction.
func (s *Service) openChangeRequest(txCtx context.Context, req incident.ChangeRequest) (incident.ChangeRequest, error) {
	req.ID = s.newID()
	req.RequesterID = strings.TrimSpace(req.RequesterID)
	req.Justification = strings.TrimSpace(req.Justification)
	req.EvidenceRefs = incident.CleanStrings(req.EvidenceRefs)
	req.Status = incident.ApprovalPending
	req.CreatedAt = s.clock()
	if err := incident.ValidateChangeRequest(req); err != nil {
		return incident.ChangeRequest{}, err
	}

	created, err := s.changeRequests.Create(txCtx, req)
	if err != nil {
		return incident.ChangeRequest{}, err
	}
	snapshot := changeRequestSnapshot(created)
	if err := s.changeLog.Append(txCtx, incident.ChangeLogEntry{
		IncidentID:    created.IncidentID,
		Action:        incident.ActionCreate,
		Table:         tableChangeRequests,
		ChangedFields: createdFields(changeRequestFields, snapshot),
		After:         snapshot,
		Actor:         created.RequesterID,
		CreatedAt:     created.CreatedAt,
	}); err != nil {
		return incident.ChangeRequest{}, err
	}
	return created, nil
}

// ResolveChangeRequest records the supervisor's decision. Approval advances the
// held incident to the status of the request kind; rejection leaves it in
// diagnosis for another resolution. Of two concurrent resolutions exactly one
// wins and the other gets a ConflictError.
func (s *Service) ResolveChangeRequest(ctx context.Context, input ResolveChangeRequestInput) (ChangeRequestResolution, error) {
	if err := checkContext(ctx); err != nil {
		return ChangeRequestResolution{}, err
	}
	outcome, err := incident.ParseApprovalOutcome(input.Outcome)
	if err != nil {
		return ChangeRequestResolution{}, err
	}
	resolvedBy := strings.TrimSpace(input.ResolvedBy)
	if resolvedBy == "" {
		return ChangeRequestResolution{}, errs.Validation("resolved_by", "approver is required")
	}

	existing, err := s.changeRequests.Get(ctx, input.ChangeRequestID)
	if err != nil {
		return ChangeRequestResolution{}, err
	}
	ctx = logging.WithIncident(ctx, existing.IncidentID)

	var before incident.Incident
	var result ChangeRequestResolution
	err = s.inIncidentTx(ctx, existing.IncidentID, func(txCtx context.Context) error {
		req, err := s.changeRequests.Get(txCtx, input.ChangeRequestID)
		if err != nil {
			return err
		}
		if err := incident.ResolveApproval(req, outcome); err != nil {
			return err
		}
		current, err := s.incidents.Get(txCtx, req.IncidentID)
		if err != nil {
			return err
		}
		before = current
		result.Incident = current
		if outcome == incident.ApprovalApproved && current.Status != incident.StatusInDiagnosis {
			return errs.Conflict("incident", current.ID, fmt.Sprintf("incident is %s, approval needs %s", current.Status, incident.StatusInDiagnosis))
		}

		resolvedAt := s.clock()
		resolved := req
		resolved.Status = outcome
		resolved.ResolvedBy = resolvedBy
		resolved.ResolutionNote = strings.TrimSpace(input.Note)
		resolved.ResolvedAt = &resolvedAt
		if result.ChangeRequest, err = s.changeRequests.Resolve(txCtx, resolved); err != nil {
			return err
		}

		fields, beforeValues, afterValues := diffFields(changeRequestFields, changeRequestSnapshot(req), changeRequestSnapshot(result.ChangeRequest))
		if err := s.changeLog.Append(txCtx, incident.ChangeLogEntry{
			IncidentID:    req.IncidentID,
			Action:        incident.ActionUpdate,
			Table:         tableChangeRequests,
			ChangedFields: fields,
			Before:        beforeValues,
			After:         afterValues,
			Actor:         resolvedBy,
			CreatedAt:     resolvedAt,
		}); err != nil {
			return err
		}

		if outcome != incident.ApprovalApproved {
			return nil
		}
		target, _ := incident.StatusForChangeKind(req.Kind)
		if err := incident.ValidateTransition(current.Status, target); err != nil {
			return err
		}
		next := current
		next.Status = target
		result.Incident, err = s.saveIncident(txCtx, current, next, resolvedBy)
		return err
	})
	if err != nil {
		s.recordConflict(ctx, "resolve_change_request", err)
		return ChangeRequestResolution{}, err
	}

	s.afterCommit(ctx, before, result.Incident)
	s.metrics.ChangeRequestResolved(string(result.ChangeRequest.Kind), string(result.ChangeRequest.Status))
	s.notifyResolved(ctx, result)
	return result, nil
}

// notifyResolved tells the requester about the decision. Delivery failures are
// logged and never undo the committed resolution.
func (s *Service) notifyResolved(ctx context.Context, result ChangeRequestResolution) {
	if s.notifier == nil {
		return
	}
	req := result.ChangeRequest
	event := ports.ChangeRequestResolved{
		ChangeRequestID: req.ID,
		IncidentID:      req.IncidentID,
		IncidentCode:    result.Incident.Code,
		Kind:            string(req.Kind),
		Outcome:         string(req.Status),
		RequesterID:     req.RequesterID,
		ResolvedBy:      req.ResolvedBy,
		Note:            req.ResolutionNote,
	}
	if req.ResolvedAt != nil {
		event.ResolvedAt = *req.ResolvedAt
	}
	if err := s.notifier.ChangeRequestResolved(ctx, event); err != nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", componentEngine)),
			"notify change request resolution failed",
			slog.String("change_request_id", req.ID),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}

func (s *Service) ListChangeRequests(ctx context.Context, incidentID string) ([]incident.ChangeRequest, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if _, err := s.incidents.Get(ctx, incidentID); err != nil {
		return nil, err
	}
	return s.changeRequests.ListByIncident(ctx, incidentID)
}

func (s *Service) GetChangeRequest(ctx context.Context, changeRequestID string) (incident.ChangeRequest, error) {
	if err := checkContext(ctx); err != nil {
		return incident.ChangeRequest{}, err
	}
	return s.changeRequests.Get(ctx, changeRequestID)
}
