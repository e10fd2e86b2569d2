package servicedesk

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"repairdesk/internal/bootstrap/logging"
	"repairdesk/internal/domain/incident"
)

type TimelineInput struct {
	IncidentID string
	// Order is "asc" or "desc"; empty means newest first.
	Order string
}

type Timeline struct {
	Incident  incident.Incident
	Order     incident.SortOrder
	Events    []incident.AuditEvent
	Malformed []incident.Observation
}

// BuildAuditTimeline merges the change log, diagnostics, parts requests, photo
// batches and the free-text observation log of one incident into one ordered
// history. Unreadable observation timestamps are logged and kept as plain entries.
func (s *Service) BuildAuditTimeline(ctx context.Context, input TimelineInput) (Timeline, error) {
	if err := checkContext(ctx); err != nil {
		return Timeline{}, err
	}
	order, err := incident.ParseSortOrder(input.Order)
	if err != nil {
		return Timeline{}, err
	}
	ctx = logging.WithIncident(ctx, input.IncidentID)

	inc, err := s.incidents.Get(ctx, input.IncidentID)
	if err != nil {
		return Timeline{}, err
	}

	src := incident.TimelineSources{ObservationLog: inc.ObservationLog}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		src.ChangeLog, err = s.changeLog.ListByIncident(gctx, inc.ID)
		return err
	})
	g.Go(func() error {
		var err error
		src.Diagnostics, err = s.diagnostics.ListByIncident(gctx, inc.ID)
		return err
	})
	g.Go(func() error {
		var err error
		src.PartsRequests, err = s.partsRequests.ListByIncident(gctx, inc.ID)
		return err
	})
	g.Go(func() error {
		var err error
		src.Photos, err = s.photos.ListByIncident(gctx, inc.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Timeline{}, err
	}

	events, malformed := incident.BuildTimeline(src, order, s.location)
	for _, obs := range malformed {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", componentEngine)),
			"observation timestamp unreadable",
			slog.Int("line", obs.Line),
			slog.String("raw", obs.Raw),
		)
	}

	return Timeline{
		Incident:  inc,
		Order:     order,
		Events:    events,
		Malformed: malformed,
	}, nil
}
