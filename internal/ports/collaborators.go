package ports

import (
	"context"
	"time"
)

// PartCatalog resolves warehouse parent codes for requested parts.
type PartCatalog interface {
	ParentCode(ctx context.Context, code string) (parent string, found bool, err error)
}

type ChangeRequestResolved struct {
	ChangeRequestID string
	IncidentID      string
	IncidentCode    string
	Kind            string
	Outcome         string
	RequesterID     string
	ResolvedBy      string
	Note            string
	ResolvedAt      time.Time
}

// Notifier tells a requester that their change request was decided.
type Notifier interface {
	ChangeRequestResolved(ctx context.Context, event ChangeRequestResolved) error
}

// Metrics records engine outcomes. Implementations must be safe for concurrent use.
type Metrics interface {
	StatusTransition(from string, to string)
	ChangeRequestResolved(kind string, outcome string)
	RecurrenceVerified(approved bool)
	Conflict(operation string)
	AutosaveRun(failed bool)
}
