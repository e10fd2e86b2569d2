package servicedesk

import (
	"context"
	"strings"

	"repairdesk/internal/domain/incident"
	"repairdesk/internal/errs"
)

type SubmitPartsRequestInput struct {
	IncidentID  string
	RequesterID string
	Items       []incident.SelectedPart
	Note        string
}

type ResolvePartsRequestInput struct {
	PartsRequestID string
	ResolvedBy     string
}

type PartsRequestResult struct {
	PartsRequest incident.PartsRequest
	Incident     incident.Incident
}

var partsRequestFields = []string{"status", "resolved_by"}

func partsRequestSnapshot(req incident.PartsRequest) map[string]string {
	return map[string]string{
		"status":      string(req.Status),
		"resolved_by": req.ResolvedBy,
	}
}

// SubmitPartsRequest asks the warehouse for parts. Codes with a registered
// parent are re-coded to the parent, and an incident still under diagnosis
// moves to pending parts.
func (s *Service) SubmitPartsRequest(ctx context.Context, input SubmitPartsRequestInput) (PartsRequestResult, error) {
	if err := checkContext(ctx); err != nil {
		return PartsRequestResult{}, err
	}

	var before incident.Incident
	var result PartsRequestResult
	err := s.inIncidentTx(ctx, input.IncidentID, func(txCtx context.Context) error {
		current, err := s.incidents.Get(txCtx, input.IncidentID)
		if err != nil {
			return err
		}
		before = current
		if current.Status != incident.StatusInDiagnosis && current.Status != incident.StatusPendingParts {
			return errs.Validationf("status", "parts are requested while the incident is %s or %s, incident is %s", incident.StatusInDiagnosis, incident.StatusPendingParts, current.Status)
		}
		if err := incident.ValidatePartLines(input.Items); err != nil {
			return err
		}

		items, err := s.substituteParts(txCtx, input.Items)
		if err != nil {
			return err
		}
		req := incident.PartsRequest{
			ID:          s.newID(),
			IncidentID:  current.ID,
			RequesterID: strings.TrimSpace(input.RequesterID),
			Items:       items,
			Note:        strings.TrimSpace(input.Note),
			Status:      incident.PartsPending,
			CreatedAt:   s.clock(),
		}
		if err := incident.ValidatePartsRequest(req); err != nil {
			return err
		}
		if result.PartsRequest, err = s.partsRequests.Create(txCtx, req); err != nil {
			return err
		}

		result.Incident = current
		if current.Status == incident.StatusPendingParts {
			return nil
		}
		next := current
		next.Status = incident.StatusPendingParts
		result.Incident, err = s.saveIncident(txCtx, current, next, req.RequesterID)
		return err
	})
	if err != nil {
		s.recordConflict(ctx, "submit_parts_request", err)
		return PartsRequestResult{}, err
	}

	s.afterCommit(ctx, before, result.Incident)
	return result, nil
}

// MarkPartsFulfilled records that the warehouse delivered the parts. The
// technician resumes with StartDiagnosis.
func (s *Service) MarkPartsFulfilled(ctx context.Context, input ResolvePartsRequestInput) (incident.PartsRequest, error) {
	return s.resolvePartsRequest(ctx, input, incident.PartsFulfilled)
}

func (s *Service) MarkPartsRejected(ctx context.Context, input ResolvePartsRequestInput) (incident.PartsRequest, error) {
	return s.resolvePartsRequest(ctx, input, incident.PartsRejected)
}

func (s *Service) resolvePartsRequest(ctx context.Context, input ResolvePartsRequestInput, outcome incident.PartsRequestStatus) (incident.PartsRequest, error) {
	if err := checkContext(ctx); err != nil {
		return incident.PartsRequest{}, err
	}
	resolvedBy := strings.TrimSpace(input.ResolvedBy)
	if resolvedBy == "" {
		return incident.PartsRequest{}, errs.Validation("resolved_by", "resolver is required")
	}

	existing, err := s.partsRequests.Get(ctx, input.PartsRequestID)
	if err != nil {
		return incident.PartsRequest{}, err
	}

	var resolved incident.PartsRequest
	err = s.inIncidentTx(ctx, existing.IncidentID, func(txCtx context.Context) error {
		req, err := s.partsRequests.Get(txCtx, input.PartsRequestID)
		if err != nil {
			return err
		}
		if err := incident.ResolvePartsRequest(req.Status, outcome); err != nil {
			if errs.IsConflict(err) {
				return errs.Conflict("parts_request", req.ID, "already "+string(req.Status))
			}
			return err
		}

		resolvedAt := s.clock()
		next := req
		next.Status = outcome
		next.ResolvedBy = resolvedBy
		next.ResolvedAt = &resolvedAt
		if resolved, err = s.partsRequests.Resolve(txCtx, next); err != nil {
			return err
		}

		fields, beforeValues, afterValues := diffFields(partsRequestFields, partsRequestSnapshot(req), partsRequestSnapshot(resolved))
		return s.changeLog.Append(txCtx, incident.ChangeLogEntry{
			IncidentID:    req.IncidentID,
			Action:        incident.ActionUpdate,
			Table:         tablePartsRequests,
			ChangedFields: fields,
			Before:        beforeValues,
			After:         afterValues,
			Actor:         resolvedBy,
			CreatedAt:     resolvedAt,
		})
	})
	if err != nil {
		s.recordConflict(ctx, "resolve_parts_request", err)
		return incident.PartsRequest{}, err
	}
	return resolved, nil
}

func (s *Service) ListPartsRequests(ctx context.Context, incidentID string) ([]incident.PartsRequest, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if _, err := s.incidents.Get(ctx, incidentID); err != nil {
		return nil, err
	}
	return s.partsRequests.ListByIncident(ctx, incidentID)
}
