package ports

import (
	"context"

	"repairdesk/internal/domain/incident"
)

type IncidentFilter struct {
	CustomerID string
	Status     incident.Status
	Limit      int
}

type IncidentRepository interface {
	// Create assigns the sequential incident code and stores version 1.
	Create(ctx context.Context, inc incident.Incident) (incident.Incident, error)
	Get(ctx context.Context, id string) (incident.Incident, error)
	List(ctx context.Context, filter IncidentFilter) ([]incident.Incident, error)
	ListByCustomer(ctx context.Context, customerID string) ([]incident.Incident, error)
	// Update writes inc only if the stored version still equals inc.Version and
	// returns the row with its version bumped. A stale version is a ConflictError.
	Update(ctx context.Context, inc incident.Incident) (incident.Incident, error)
}

type DiagnosticRepository interface {
	Create(ctx context.Context, d incident.Diagnostic) (incident.Diagnostic, error)
	Update(ctx context.Context, d incident.Diagnostic) (incident.Diagnostic, error)
	Get(ctx context.Context, id string) (incident.Diagnostic, error)
	// Current returns the newest diagnostic that has not been superseded.
	Current(ctx context.Context, incidentID string) (incident.Diagnostic, bool, error)
	ListByIncident(ctx context.Context, incidentID string) ([]incident.Diagnostic, error)
	MarkSuperseded(ctx context.Context, id string) error
}

type PartsRequestRepository interface {
	Create(ctx context.Context, req incident.PartsRequest) (incident.PartsRequest, error)
	Get(ctx context.Context, id string) (incident.PartsRequest, error)
	ListByIncident(ctx context.Context, incidentID string) ([]incident.PartsRequest, error)
	// Resolve moves a pending request to a terminal status. A request that is no
	// longer pending is a ConflictError.
	Resolve(ctx context.Context, req incident.PartsRequest) (incident.PartsRequest, error)
}

type ChangeRequestRepository interface {
	Create(ctx context.Context, req incident.ChangeRequest) (incident.ChangeRequest, error)
	Get(ctx context.Context, id string) (incident.ChangeRequest, error)
	ListByIncident(ctx context.Context, incidentID string) ([]incident.ChangeRequest, error)
	Pending(ctx context.Context, incidentID string) (incident.ChangeRequest, bool, error)
	// Resolve stores the outcome only while the stored request is still pending.
	// The loser of two concurrent resolutions gets a ConflictError.
	Resolve(ctx context.Context, req incident.ChangeRequest) (incident.ChangeRequest, error)
}

type RecurrenceVerificationRepository interface {
	Create(ctx context.Context, v incident.RecurrenceVerification) (incident.RecurrenceVerification, error)
	ListByIncident(ctx context.Context, incidentID string) ([]incident.RecurrenceVerification, error)
}

type PhotoRepository interface {
	CreateBatch(ctx context.Context, photos []incident.Photo) error
	ListByIncident(ctx context.Context, incidentID string) ([]incident.Photo, error)
}

type ChangeLogRepository interface {
	Append(ctx context.Context, entry incident.ChangeLogEntry) error
	ListByIncident(ctx context.Context, incidentID string) ([]incident.ChangeLogEntry, error)
}
