package servicedesk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"repairdesk/internal/bootstrap/logging"
	"repairdesk/internal/domain/incident"
	"repairdesk/internal/errs"
)

type DiagnosticDecisionInput struct {
	IncidentID string
	Diagnostic incident.DiagnosticInput
	// ExpectedVersion, when set, must match the stored incident version.
	ExpectedVersion int64
}

// DiagnosticOutcome reports what a decision produced. ChangeRequest is set for
// a gated resolution and PartsRequest when parts were selected for pending parts.
type DiagnosticOutcome struct {
	Incident      incident.Incident
	Diagnostic    incident.Diagnostic
	Decision      incident.Decision
	ChangeRequest *incident.ChangeRequest
	PartsRequest  *incident.PartsRequest
}

// RunDiagnosticDecision finalizes the diagnosis and applies the resolution.
// A failed guard leaves nothing written. A gated resolution keeps the incident
// in diagnosis and opens a change request instead of moving it.
func (s *Service) RunDiagnosticDecision(ctx context.Context, input DiagnosticDecisionInput) (DiagnosticOutcome, error) {
	if err := checkContext(ctx); err != nil {
		return DiagnosticOutcome{}, err
	}
	ctx = logging.WithIncident(ctx, input.IncidentID)

	var before incident.Incident
	var outcome DiagnosticOutcome
	err := s.inIncidentTx(ctx, input.IncidentID, func(txCtx context.Context) error {
		current, err := s.loadIncident(txCtx, input.IncidentID, input.ExpectedVersion)
		if err != nil {
			return err
		}
		before = current

		decision, err := incident.Decide(current.Status, input.Diagnostic)
		if err != nil {
			return err
		}
		if pending, ok, err := s.changeRequests.Pending(txCtx, current.ID); err != nil {
			return err
		} else if ok {
			return errs.Conflict("incident", current.ID, fmt.Sprintf("change request %s is pending", pending.ID))
		}

		parts, err := s.substituteParts(txCtx, input.Diagnostic.Parts)
		if err != nil {
			return err
		}
		body := incident.BuildDiagnostic(input.Diagnostic, decision.Resolution)
		body.Parts = parts

		var partsRequest *incident.PartsRequest
		if decision.RequestParts {
			req := incident.PartsRequest{
				ID:          s.newID(),
				IncidentID:  current.ID,
				RequesterID: body.TechnicianID,
				Items:       parts,
				Note:        body.ResolutionNote,
				Status:      incident.PartsPending,
				CreatedAt:   s.clock(),
			}
			if err := incident.ValidatePartsRequest(req); err != nil {
				return err
			}
			partsRequest = &req
		}

		diagnostic, err := s.storeDiagnostic(txCtx, current.ID, body, incident.DiagnosticFinal)
		if err != nil {
			return err
		}
		outcome.Diagnostic = diagnostic
		outcome.Decision = decision

		if decision.Gated {
			req, err := s.openChangeRequest(txCtx, incident.ChangeRequest{
				IncidentID:    current.ID,
				DiagnosticID:  diagnostic.ID,
				Kind:          decision.ChangeKind,
				RequesterID:   diagnostic.TechnicianID,
				Justification: input.Diagnostic.Justification,
				EvidenceRefs:  input.Diagnostic.EvidenceRefs,
			})
			if err != nil {
				return err
			}
			outcome.ChangeRequest = &req
		}

		if partsRequest != nil {
			created, err := s.partsRequests.Create(txCtx, *partsRequest)
			if err != nil {
				return err
			}
			outcome.PartsRequest = &created
		}

		if decision.Next == current.Status {
			outcome.Incident = current
			return nil
		}
		next := current
		next.Status = decision.Next
		outcome.Incident, err = s.saveIncident(txCtx, current, next, diagnostic.TechnicianID)
		return err
	})
	if err != nil {
		s.recordConflict(ctx, "diagnostic_decision", err)
		return DiagnosticOutcome{}, err
	}

	s.afterCommit(ctx, before, outcome.Incident)
	attrs := []slog.Attr{
		slog.String("resolution", string(outcome.Decision.Resolution)),
		slog.String("status", string(outcome.Incident.Status)),
		slog.Int("diagnostic_version", outcome.Diagnostic.Version),
	}
	if outcome.ChangeRequest != nil {
		attrs = append(attrs, slog.String("change_request_id", outcome.ChangeRequest.ID))
	}
	logging.Info(logging.WithAttrs(ctx, slog.String("component", componentEngine)), "diagnostic decision applied", attrs...)
	return outcome, nil
}

type SaveDraftInput struct {
	IncidentID string
	Diagnostic incident.DiagnosticInput
}

// SaveDiagnosticDraft keeps the technician's unfinished work. Drafts are not
// validated beyond what can be stored and never move the incident. While a
// change request is pending the final diagnostic it refers to stays current,
// so drafts are refused with a conflict.
func (s *Service) SaveDiagnosticDraft(ctx context.Context, input SaveDraftInput) (incident.Diagnostic, error) {
	if err := checkContext(ctx); err != nil {
		return incident.Diagnostic{}, err
	}

	var saved incident.Diagnostic
	err := s.inIncidentTx(ctx, input.IncidentID, func(txCtx context.Context) error {
		current, err := s.incidents.Get(txCtx, input.IncidentID)
		if err != nil {
			return err
		}
		if err := incident.ValidateDraft(current.Status, input.Diagnostic); err != nil {
			return err
		}
		if pending, ok, err := s.changeRequests.Pending(txCtx, current.ID); err != nil {
			return err
		} else if ok {
			return errs.Conflict("incident", current.ID, fmt.Sprintf("change request %s is pending", pending.ID))
		}

		// Drafts keep the raw resolution choice only when it parses.
		resolution, _ := incident.ParseResolution(input.Diagnostic.Resolution)
		saved, err = s.storeDiagnostic(txCtx, current.ID, incident.BuildDiagnostic(input.Diagnostic, resolution), incident.DiagnosticDraft)
		return err
	})
	if err != nil {
		return incident.Diagnostic{}, err
	}
	return saved, nil
}

// storeDiagnostic writes body as the incident's current diagnostic. A current
// draft is overwritten in place; a current final diagnostic is superseded by a
// new version.
func (s *Service) storeDiagnostic(txCtx context.Context, incidentID string, body incident.Diagnostic, state incident.DiagnosticState) (incident.Diagnostic, error) {
	now := s.clock()
	body.IncidentID = incidentID
	body.State = state
	body.UpdatedAt = now

	current, ok, err := s.diagnostics.Current(txCtx, incidentID)
	if err != nil {
		return incident.Diagnostic{}, err
	}
	if ok && current.State == incident.DiagnosticDraft {
		body.ID = current.ID
		body.Version = current.Version
		body.CreatedAt = current.CreatedAt
		return s.diagnostics.Update(txCtx, body)
	}

	body.ID = s.newID()
	body.Version = 1
	body.CreatedAt = now
	if ok {
		if err := s.diagnostics.MarkSuperseded(txCtx, current.ID); err != nil {
			return incident.Diagnostic{}, err
		}
		body.Version = current.Version + 1
	}
	return s.diagnostics.Create(txCtx, body)
}

// substituteParts replaces requested codes by their warehouse parent code.
func (s *Service) substituteParts(ctx context.Context, lines []incident.SelectedPart) ([]incident.SelectedPart, error) {
	if s.catalog == nil || len(lines) == 0 {
		return incident.Substitute(lines, nil)
	}
	return incident.Substitute(lines, func(code string) (string, bool, error) {
		parent, ok, err := s.catalog.ParentCode(ctx, code)
		return strings.TrimSpace(parent), ok, err
	})
}
