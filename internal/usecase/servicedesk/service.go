package servicedesk

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"repairdesk/internal/bootstrap/logging"
	"repairdesk/internal/domain/incident"
	"repairdesk/internal/errs"
	"repairdesk/internal/ports"
)

const (
	componentEngine   = "servicedesk"
	statusCacheTTL    = 10 * time.Minute
	statusCachePrefix = "incident_status:"
)

var errContextRequired = errors.New("context is required")

// Dependencies lists the adapters the service needs. Cache, Catalog, Notifier
// and Metrics are optional.
type Dependencies struct {
	Incidents      ports.IncidentRepository
	Diagnostics    ports.DiagnosticRepository
	PartsRequests  ports.PartsRequestRepository
	ChangeRequests ports.ChangeRequestRepository
	Verifications  ports.RecurrenceVerificationRepository
	Photos         ports.PhotoRepository
	ChangeLog      ports.ChangeLogRepository
	UnitOfWork     ports.UnitOfWork
	Cache          ports.Cache
	Catalog        ports.PartCatalog
	Notifier       ports.Notifier
	Metrics        ports.Metrics
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone used for observation timestamps without an offset.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// Service runs the incident workflow: lifecycle, diagnosis, approvals, parts,
// recurrence verification and the audit timeline.
type Service struct {
	incidents      ports.IncidentRepository
	diagnostics    ports.DiagnosticRepository
	partsRequests  ports.PartsRequestRepository
	changeRequests ports.ChangeRequestRepository
	verifications  ports.RecurrenceVerificationRepository
	photos         ports.PhotoRepository
	changeLog      ports.ChangeLogRepository
	uow            ports.UnitOfWork
	cache          ports.Cache
	catalog        ports.PartCatalog
	notifier       ports.Notifier
	metrics        ports.Metrics

	location *time.Location
	now      func() time.Time
	newID    func() string
	locks    *keyedLocker
}

func NewService(deps Dependencies, opts ...Option) (*Service, error) {
	switch {
	case deps.Incidents == nil:
		return nil, errors.New("incident repository is required")
	case deps.Diagnostics == nil:
		return nil, errors.New("diagnostic repository is required")
	case deps.PartsRequests == nil:
		return nil, errors.New("parts request repository is required")
	case deps.ChangeRequests == nil:
		return nil, errors.New("change request repository is required")
	case deps.Verifications == nil:
		return nil, errors.New("recurrence verification repository is required")
	case deps.Photos == nil:
		return nil, errors.New("photo repository is required")
	case deps.ChangeLog == nil:
		return nil, errors.New("change log repository is required")
	case deps.UnitOfWork == nil:
		return nil, errors.New("unit of work is required")
	}

	s := &Service{
		incidents:      deps.Incidents,
		diagnostics:    deps.Diagnostics,
		partsRequests:  deps.PartsRequests,
		changeRequests: deps.ChangeRequests,
		verifications:  deps.Verifications,
		photos:         deps.Photos,
		changeLog:      deps.ChangeLog,
		uow:            deps.UnitOfWork,
		cache:          deps.Cache,
		catalog:        deps.Catalog,
		notifier:       deps.Notifier,
		metrics:        deps.Metrics,
		location:       time.UTC,
		now:            time.Now,
		newID:          uuid.NewString,
		locks:          newKeyedLocker(),
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return errContextRequired
	}
	return ctx.Err()
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func statusCacheKey(incidentID string) string {
	return statusCachePrefix + incidentID
}

// CachedStatus returns the last committed status kept in the cache, if any.
func (s *Service) CachedStatus(ctx context.Context, incidentID string) (incident.Status, bool, error) {
	if err := checkContext(ctx); err != nil {
		return "", false, err
	}
	if s.cache == nil {
		return "", false, nil
	}
	raw, ok, err := s.cache.Get(ctx, statusCacheKey(incidentID))
	if err != nil || !ok {
		return "", false, err
	}
	status, err := incident.ParseStatus(raw)
	if err != nil {
		return "", false, nil
	}
	return status, true, nil
}

func (s *Service) setCacheBestEffort(ctx context.Context, inc incident.Incident) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, statusCacheKey(inc.ID), string(inc.Status), statusCacheTTL); err != nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", componentEngine)),
			"cache incident status failed",
			slog.String("incident_id", inc.ID),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}

func (s *Service) recordConflict(ctx context.Context, operation string, err error) {
	if !errs.IsConflict(err) {
		return
	}
	s.metrics.Conflict(operation)
	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", componentEngine)),
		"write conflict",
		slog.String("operation", operation),
		slog.String("reason", err.Error()),
	)
}

type nopMetrics struct{}

func (nopMetrics) StatusTransition(string, string)      {}
func (nopMetrics) ChangeRequestResolved(string, string) {}
func (nopMetrics) RecurrenceVerified(bool)              {}
func (nopMetrics) Conflict(string)                      {}
func (nopMetrics) AutosaveRun(bool)                     {}
