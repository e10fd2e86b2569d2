package incident

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"repairdesk/internal/domain/clock"
	"repairdesk/internal/errs"
)

// ObservationMatchWindow is how far an observation may sit from an event and still be shown beside it.
const ObservationMatchWindow = 5 * time.Minute

type EventKind string

const (
	EventCreate       EventKind = "create"
	EventUpdate       EventKind = "update"
	EventDelete       EventKind = "delete"
	EventDiagnostic   EventKind = "diagnostic"
	EventPartsRequest EventKind = "parts_request"
	EventPhotoBatch   EventKind = "photo_batch"
	EventObservation  EventKind = "observation"
)

// AuditEvent is one entry of the reconstructed timeline. It is never persisted.
type AuditEvent struct {
	Kind        EventKind
	Title       string
	Description string
	Actor       string
	// Timestamp is nil only for untimed legacy observations.
	Timestamp   *time.Time
	Observation *Observation
	SourceID    string
}

type SortOrder string

const (
	SortDescending SortOrder = "desc"
	SortAscending  SortOrder = "asc"
)

func ParseSortOrder(raw string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "desc", "descending":
		return SortDescending, nil
	case "asc", "ascending":
		return SortAscending, nil
	default:
		return "", errs.Validationf("order", "sort order must be asc or desc, got %q", raw)
	}
}

var tableTitles = map[string]string{
	"incidents":                "Incident",
	"diagnostics":              "Diagnostic",
	"parts_requests":           "Parts request",
	"change_requests":          "Change request",
	"recurrence_verifications": "Recurrence verification",
	"photos":                   "Photo",
}

var actionVerbs = map[ChangeAction]string{
	ActionCreate: "created",
	ActionUpdate: "updated",
	ActionDelete: "deleted",
}

// EventsFromChangeLog turns structured change-log entries into timeline events.
func EventsFromChangeLog(entries []ChangeLogEntry) []AuditEvent {
	out := make([]AuditEvent, 0, len(entries))
	for _, entry := range entries {
		subject, ok := tableTitles[entry.Table]
		if !ok {
			subject = entry.Table
		}
		verb, ok := actionVerbs[entry.Action]
		if !ok {
			verb = string(entry.Action)
		}

		kind := EventUpdate
		switch entry.Action {
		case ActionCreate:
			kind = EventCreate
		case ActionDelete:
			kind = EventDelete
		}

		ts := entry.CreatedAt
		out = append(out, AuditEvent{
			Kind:        kind,
			Title:       subject + " " + verb,
			Description: describeChanges(entry),
			Actor:       entry.Actor,
			Timestamp:   &ts,
			SourceID:    fmt.Sprintf("changelog:%d", entry.ID),
		})
	}
	return out
}

func describeChanges(entry ChangeLogEntry) string {
	parts := make([]string, 0, len(entry.ChangedFields))
	for _, field := range entry.ChangedFields {
		before, hadBefore := entry.Before[field]
		after := entry.After[field]
		switch {
		case hadBefore && before != "":
			parts = append(parts, fmt.Sprintf("%s: %s -> %s", field, before, after))
		default:
			parts = append(parts, fmt.Sprintf("%s: %s", field, after))
		}
	}
	return strings.Join(parts, "; ")
}

func EventFromDiagnostic(d Diagnostic) AuditEvent {
	ts := d.UpdatedAt
	if ts.IsZero() {
		ts = d.CreatedAt
	}
	desc := []string{}
	if len(d.Faults) > 0 {
		desc = append(desc, "faults: "+strings.Join(d.Faults, ", "))
	}
	if len(d.Causes) > 0 {
		desc = append(desc, "causes: "+strings.Join(d.Causes, ", "))
	}
	if d.Resolution != "" {
		desc = append(desc, "resolution: "+string(d.Resolution))
	}
	return AuditEvent{
		Kind:        EventDiagnostic,
		Title:       fmt.Sprintf("Diagnostic v%d %s", d.Version, d.State),
		Description: strings.Join(desc, "; "),
		Actor:       d.TechnicianID,
		Timestamp:   &ts,
		SourceID:    "diagnostic:" + d.ID,
	}
}

func EventFromPartsRequest(p PartsRequest) AuditEvent {
	ts := p.CreatedAt
	items := make([]string, 0, len(p.Items))
	for _, item := range p.Items {
		line := fmt.Sprintf("%d x %s", item.Quantity, item.Code)
		if item.OriginalCode != "" {
			line += " (for " + item.OriginalCode + ")"
		}
		items = append(items, line)
	}
	return AuditEvent{
		Kind:        EventPartsRequest,
		Title:       fmt.Sprintf("Parts requested (%s)", p.Status),
		Description: strings.Join(items, ", "),
		Actor:       p.RequesterID,
		Timestamp:   &ts,
		SourceID:    "parts_request:" + p.ID,
	}
}

// PhotoBatches groups photos by kind. A batch is timed by its earliest photo.
func PhotoBatches(photos []Photo) []AuditEvent {
	groups := make(map[PhotoKind][]Photo)
	order := make([]PhotoKind, 0, 4)
	for _, photo := range photos {
		if _, ok := groups[photo.Kind]; !ok {
			order = append(order, photo.Kind)
		}
		groups[photo.Kind] = append(groups[photo.Kind], photo)
	}

	out := make([]AuditEvent, 0, len(order))
	for _, kind := range order {
		batch := groups[kind]
		sort.SliceStable(batch, func(i, j int) bool { return batch[i].TakenAt.Before(batch[j].TakenAt) })
		first := batch[0]
		ts := first.TakenAt
		refs := make([]string, 0, len(batch))
		for _, photo := range batch {
			refs = append(refs, photo.Ref)
		}
		out = append(out, AuditEvent{
			Kind:        EventPhotoBatch,
			Title:       fmt.Sprintf("%d %s photo(s) added", len(batch), kind),
			Description: strings.Join(refs, ", "),
			Actor:       first.UploadedBy,
			Timestamp:   &ts,
			SourceID:    "photos:" + string(kind),
		})
	}
	return out
}

// MergeObservations links observations to structured events and appends the rest
// as standalone entries. Events are visited oldest first and each takes the first
// unconsumed observation, in log order, within ObservationMatchWindow. The greedy
// pass can pair an observation with the wrong event when events cluster.
func MergeObservations(events []AuditEvent, observations []Observation) []AuditEvent {
	merged := make([]AuditEvent, len(events))
	copy(merged, events)
	sortEvents(merged, SortAscending)

	consumed := make([]bool, len(observations))
	for i := range merged {
		if merged[i].Timestamp == nil {
			continue
		}
		for j := range observations {
			obs := observations[j]
			if consumed[j] || obs.Timestamp == nil {
				continue
			}
			if clock.WithinWindow(*obs.Timestamp, *merged[i].Timestamp, ObservationMatchWindow) {
				linked := obs
				merged[i].Observation = &linked
				consumed[j] = true
				break
			}
		}
	}

	for j, obs := range observations {
		if consumed[j] {
			continue
		}
		merged = append(merged, AuditEvent{
			Kind:        EventObservation,
			Title:       "Observation",
			Description: obs.Message,
			Actor:       obs.User,
			Timestamp:   obs.Timestamp,
			SourceID:    fmt.Sprintf("observation:%d", obs.Line),
		})
	}
	return merged
}

// SortEvents re-sorts by timestamp. Untimed entries always go last in their original order.
func SortEvents(events []AuditEvent, order SortOrder) []AuditEvent {
	out := make([]AuditEvent, len(events))
	copy(out, events)
	sortEvents(out, order)
	return out
}

func sortEvents(events []AuditEvent, order SortOrder) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].Timestamp, events[j].Timestamp
		switch {
		case a == nil || b == nil:
			return a != nil && b == nil
		case order == SortAscending:
			return a.Before(*b)
		default:
			return a.After(*b)
		}
	})
}

// TimelineSources are the raw inputs of BuildTimeline.
type TimelineSources struct {
	ChangeLog      []ChangeLogEntry
	Diagnostics    []Diagnostic
	PartsRequests  []PartsRequest
	Photos         []Photo
	ObservationLog string
}

// BuildTimeline assembles, links, deduplicates and orders the full incident history.
func BuildTimeline(src TimelineSources, order SortOrder, loc *time.Location) ([]AuditEvent, []Observation) {
	events := EventsFromChangeLog(src.ChangeLog)
	for _, d := range src.Diagnostics {
		events = append(events, EventFromDiagnostic(d))
	}
	for _, p := range src.PartsRequests {
		events = append(events, EventFromPartsRequest(p))
	}
	events = append(events, PhotoBatches(src.Photos)...)

	observations := ParseObservationLog(src.ObservationLog, loc)
	malformed := make([]Observation, 0)
	for _, obs := range observations {
		if obs.Malformed {
			malformed = append(malformed, obs)
		}
	}

	return SortEvents(MergeObservations(events, observations), order), malformed
}
