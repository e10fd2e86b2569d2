package notify

import (
	"context"
	"log/slog"

	"repairdesk/internal/bootstrap/logging"
	"repairdesk/internal/ports"
)

// LogNotifier writes resolutions to the structured log. It is the default
// driver when no broker is configured.
type LogNotifier struct{}

var _ ports.Notifier = LogNotifier{}

func NewLogNotifier() LogNotifier {
	return LogNotifier{}
}

func (LogNotifier) ChangeRequestResolved(ctx context.Context, event ports.ChangeRequestResolved) error {
	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "notify.log")),
		"change request resolved",
		slog.String("change_request_id", event.ChangeRequestID),
		slog.String("incident_id", event.IncidentID),
		slog.String("incident_code", event.IncidentCode),
		slog.String("kind", event.Kind),
		slog.String("outcome", event.Outcome),
		slog.String("requester_id", event.RequesterID),
		slog.String("resolved_by", event.ResolvedBy),
	)
	return nil
}
