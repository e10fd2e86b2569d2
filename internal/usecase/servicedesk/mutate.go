package servicedesk

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"repairdesk/internal/bootstrap/logging"
	"repairdesk/internal/domain/incident"
	"repairdesk/internal/errs"
)

const (
	tableIncidents      = "incidents"
	tableChangeRequests = "change_requests"
	tablePartsRequests  = "parts_requests"
	tableVerifications  = "recurrence_verifications"
)

// inIncidentTx runs fn in one transaction while holding the incident's lock.
func (s *Service) inIncidentTx(ctx context.Context, incidentID string, fn func(txCtx context.Context) error) error {
	unlock := s.locks.Lock(incidentID)
	defer unlock()
	return s.uow.WithTx(ctx, fn)
}

// loadIncident reads the incident and rejects a caller holding an older version.
func (s *Service) loadIncident(ctx context.Context, incidentID string, expectedVersion int64) (incident.Incident, error) {
	current, err := s.incidents.Get(ctx, incidentID)
	if err != nil {
		return incident.Incident{}, err
	}
	if expectedVersion > 0 && current.Version != expectedVersion {
		return incident.Incident{}, errs.Conflict("incident", incidentID, fmt.Sprintf("version %d is stale, current is %d", expectedVersion, current.Version))
	}
	return current, nil
}

// saveIncident writes next with the version check and records the changed fields.
func (s *Service) saveIncident(txCtx context.Context, before incident.Incident, next incident.Incident, actor string) (incident.Incident, error) {
	next.UpdatedAt = s.clock()
	updated, err := s.incidents.Update(txCtx, next)
	if err != nil {
		return incident.Incident{}, err
	}

	fields, beforeValues, afterValues := diffFields(incidentFields, incidentSnapshot(before), incidentSnapshot(updated))
	if len(fields) == 0 {
		return updated, nil
	}
	if err := s.changeLog.Append(txCtx, incident.ChangeLogEntry{
		IncidentID:    updated.ID,
		Action:        incident.ActionUpdate,
		Table:         tableIncidents,
		ChangedFields: fields,
		Before:        beforeValues,
		After:         afterValues,
		Actor:         actor,
		CreatedAt:     updated.UpdatedAt,
	}); err != nil {
		return incident.Incident{}, err
	}
	return updated, nil
}

// afterCommit runs the side effects of a committed incident write.
func (s *Service) afterCommit(ctx context.Context, before incident.Incident, after incident.Incident) {
	if before.Status != after.Status {
		s.metrics.StatusTransition(string(before.Status), string(after.Status))
		logging.Info(
			logging.WithAttrs(logging.WithIncident(ctx, after.ID), slog.String("component", componentEngine)),
			"incident status changed",
			slog.String("from", string(before.Status)),
			slog.String("to", string(after.Status)),
			slog.Int64("version", after.Version),
		)
	}
	s.setCacheBestEffort(ctx, after)
}

// mutateIncident is the shape of every plain incident write: lock, load, change,
// save with the version check and record.
func (s *Service) mutateIncident(
	ctx context.Context,
	operation string,
	incidentID string,
	actor string,
	expectedVersion int64,
	fn func(inc *incident.Incident) error,
) (incident.Incident, error) {
	if err := checkContext(ctx); err != nil {
		return incident.Incident{}, err
	}

	var before, after incident.Incident
	err := s.inIncidentTx(ctx, incidentID, func(txCtx context.Context) error {
		current, err := s.loadIncident(txCtx, incidentID, expectedVersion)
		if err != nil {
			return err
		}
		before = current

		next := current
		if err := fn(&next); err != nil {
			return err
		}
		after, err = s.saveIncident(txCtx, current, next, actor)
		return err
	})
	if err != nil {
		s.recordConflict(ctx, operation, err)
		return incident.Incident{}, err
	}

	s.afterCommit(ctx, before, after)
	return after, nil
}

var incidentFields = []string{
	"customer_id",
	"product_id",
	"problem_description",
	"entry_channel",
	"warranty_coverage",
	"status",
	"origin_incident_id",
	"delivery_address_id",
	"delivered_at",
}

// incidentSnapshot renders the audited incident columns. The observation log is
// not part of it; its entries show up in the timeline by themselves.
func incidentSnapshot(inc incident.Incident) map[string]string {
	return map[string]string{
		"customer_id":         inc.CustomerID,
		"product_id":          derefString(inc.ProductID),
		"problem_description": inc.ProblemDescription,
		"entry_channel":       string(inc.EntryChannel),
		"warranty_coverage":   strconv.FormatBool(inc.WarrantyCoverage),
		"status":              string(inc.Status),
		"origin_incident_id":  derefString(inc.OriginIncidentID),
		"delivery_address_id": derefString(inc.DeliveryAddressID),
		"delivered_at":        formatTime(inc.DeliveredAt),
	}
}

// diffFields returns the fields of order whose values differ, with both sides.
func diffFields(order []string, before map[string]string, after map[string]string) ([]string, map[string]string, map[string]string) {
	var fields []string
	beforeValues := make(map[string]string)
	afterValues := make(map[string]string)
	for _, field := range order {
		if before[field] == after[field] {
			continue
		}
		fields = append(fields, field)
		beforeValues[field] = before[field]
		afterValues[field] = after[field]
	}
	return fields, beforeValues, afterValues
}

// createdFields lists the non-empty keys of snapshot in the given order.
func createdFields(order []string, snapshot map[string]string) []string {
	out := make([]string, 0, len(order))
	for _, field := range order {
		if snapshot[field] != "" {
			out = append(out, field)
		}
	}
	return out
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func formatTime(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
