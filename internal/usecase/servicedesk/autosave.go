package servicedesk

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"repairdesk/internal/bootstrap/logging"
	"repairdesk/internal/domain/incident"
	"repairdesk/internal/errs"
)

const DefaultAutosaveInterval = 30 * time.Second

// DraftAutoSaver periodically flushes the latest staged draft of each incident.
// A failed save is logged and retried on the next tick; it never interrupts
// the technician.
type DraftAutoSaver struct {
	service  *Service
	interval time.Duration

	mu     sync.Mutex
	staged map[string]incident.DiagnosticInput
}

func NewDraftAutoSaver(service *Service, interval time.Duration) *DraftAutoSaver {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	return &DraftAutoSaver{
		service:  service,
		interval: interval,
		staged:   make(map[string]incident.DiagnosticInput),
	}
}

// Stage replaces the pending draft of an incident; only the latest one is saved.
func (a *DraftAutoSaver) Stage(incidentID string, input incident.DiagnosticInput) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.staged[incidentID] = input
}

// Discard drops a staged draft, typically after the diagnosis was finalized.
func (a *DraftAutoSaver) Discard(incidentID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.staged, incidentID)
}

func (a *DraftAutoSaver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.staged)
}

// Start runs the save loop until ctx is done, then flushes once more.
func (a *DraftAutoSaver) Start(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.Flush(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			a.Flush(ctx)
		}
	}
}

// Flush saves every staged draft and reports how many were saved.
func (a *DraftAutoSaver) Flush(ctx context.Context) int {
	a.mu.Lock()
	batch := a.staged
	a.staged = make(map[string]incident.DiagnosticInput, len(batch))
	a.mu.Unlock()

	saved := 0
	logCtx := logging.WithAttrs(ctx, slog.String("component", "servicedesk.autosave"))
	for incidentID, input := range batch {
		_, err := a.service.SaveDiagnosticDraft(ctx, SaveDraftInput{IncidentID: incidentID, Diagnostic: input})
		a.service.metrics.AutosaveRun(err != nil)
		if err == nil {
			saved++
			continue
		}

		logging.Warn(logCtx, "autosave draft failed",
			slog.String("incident_id", incidentID),
			slog.Any("err", errs.Loggable(err)),
		)
		// Validation and missing incidents will not heal by retrying.
		if errs.IsValidation(err) || errs.IsNotFound(err) {
			continue
		}
		a.restage(incidentID, input)
	}
	return saved
}

func (a *DraftAutoSaver) restage(incidentID string, input incident.DiagnosticInput) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, newer := a.staged[incidentID]; !newer {
		a.staged[incidentID] = input
	}
}
