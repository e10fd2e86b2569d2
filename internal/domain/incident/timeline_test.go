package incident

import (
	"testing"
	"time"
)

var timelineBase = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func TestMergeObservationsWindow(t *testing.T) {
	src := TimelineSources{
		ChangeLog: []ChangeLogEntry{{
			ID:            1,
			IncidentID:    "inc-1",
			Action:        ActionUpdate,
			Table:         "incidents",
			ChangedFields: []string{"status"},
			Before:        map[string]string{"status": "registered"},
			After:         map[string]string{"status": "pending_diagnosis"},
			Actor:         "front-desk",
			CreatedAt:     timelineBase,
		}},
		ObservationLog: "[2024-01-15 10:04] Ana: nota cercana\n[2024-01-15 10:06] Ana: nota lejana",
	}

	events, malformed := BuildTimeline(src, SortAscending, time.UTC)
	if len(malformed) != 0 {
		t.Fatalf("malformed = %#v, want none", malformed)
	}
	if len(events) != 2 {
		t.Fatalf("BuildTimeline() len = %d, want 2: %#v", len(events), events)
	}

	linked := events[0]
	if linked.Kind != EventUpdate || linked.Observation == nil || linked.Observation.Message != "nota cercana" {
		t.Fatalf("events[0] = %#v, want status change with linked observation", linked)
	}
	if linked.Description != "status: registered -> pending_diagnosis" {
		t.Fatalf("events[0].Description = %q", linked.Description)
	}
	if standalone := events[1]; standalone.Kind != EventObservation || standalone.Description != "nota lejana" {
		t.Fatalf("events[1] = %#v, want standalone observation", standalone)
	}
}

func TestObservationLinksToSingleEvent(t *testing.T) {
	first := timelineBase
	second := timelineBase.Add(2 * time.Minute)
	events := []AuditEvent{
		{Kind: EventUpdate, Title: "a", Timestamp: &second},
		{Kind: EventUpdate, Title: "b", Timestamp: &first},
	}
	obsAt := timelineBase.Add(time.Minute)
	got := MergeObservations(events, []Observation{{Line: 1, Timestamp: &obsAt, Message: "x"}})

	linked := 0
	for _, event := range got {
		if event.Observation != nil {
			linked++
			if event.Title != "b" {
				t.Fatalf("observation linked to %q, want oldest event b", event.Title)
			}
		}
	}
	if linked != 1 || len(got) != 2 {
		t.Fatalf("MergeObservations() linked = %d len = %d", linked, len(got))
	}
}

func TestSortOrderAndPhotoBatches(t *testing.T) {
	src := TimelineSources{
		Diagnostics: []Diagnostic{{
			ID:           "d1",
			TechnicianID: "tech-1",
			Version:      1,
			State:        DiagnosticFinal,
			Faults:       []string{"ruido"},
			CreatedAt:    timelineBase.Add(time.Hour),
		}},
		PartsRequests: []PartsRequest{{
			ID:          "p1",
			RequesterID: "tech-1",
			Status:      PartsPending,
			Items:       []SelectedPart{{Code: "A-100P", Quantity: 2, OriginalCode: "A-100"}},
			CreatedAt:   timelineBase.Add(2 * time.Hour),
		}},
		Photos: []Photo{
			{ID: "ph2", Kind: PhotoIntake, Ref: "b.jpg", TakenAt: timelineBase.Add(10 * time.Minute)},
			{ID: "ph1", Kind: PhotoIntake, Ref: "a.jpg", TakenAt: timelineBase.Add(-30 * time.Minute)},
			{ID: "ph3", Kind: PhotoDiagnostic, Ref: "c.jpg", TakenAt: timelineBase.Add(90 * time.Minute)},
		},
		ObservationLog: "nota sin fecha",
	}

	desc, _ := BuildTimeline(src, SortDescending, time.UTC)
	asc, _ := BuildTimeline(src, SortAscending, time.UTC)
	if len(desc) != 5 || len(asc) != 5 {
		t.Fatalf("len desc = %d asc = %d, want 5", len(desc), len(asc))
	}

	wantAsc := []EventKind{EventPhotoBatch, EventDiagnostic, EventPhotoBatch, EventPartsRequest, EventObservation}
	for i, kind := range wantAsc {
		if asc[i].Kind != kind {
			t.Fatalf("asc[%d].Kind = %s, want %s", i, asc[i].Kind, kind)
		}
	}
	if asc[0].Description != "a.jpg, b.jpg" || !asc[0].Timestamp.Equal(timelineBase.Add(-30*time.Minute)) {
		t.Fatalf("intake batch = %#v", asc[0])
	}
	if asc[3].Description != "2 x A-100P (for A-100)" {
		t.Fatalf("parts request description = %q", asc[3].Description)
	}

	wantDesc := []EventKind{EventPartsRequest, EventPhotoBatch, EventDiagnostic, EventPhotoBatch, EventObservation}
	for i, kind := range wantDesc {
		if desc[i].Kind != kind {
			t.Fatalf("desc[%d].Kind = %s, want %s", i, desc[i].Kind, kind)
		}
	}
}

func TestBuildTimelineReportsMalformedLines(t *testing.T) {
	events, malformed := BuildTimeline(TimelineSources{ObservationLog: "[mañana] Ana: algo\n[2024-01-15 10:00] ok"}, SortDescending, time.UTC)
	if len(malformed) != 1 || malformed[0].Line != 1 {
		t.Fatalf("malformed = %#v, want line 1", malformed)
	}
	if len(events) != 2 || events[0].Timestamp == nil || events[1].Timestamp != nil {
		t.Fatalf("events = %#v, want timed entry first and untimed last", events)
	}
}

func TestParseSortOrder(t *testing.T) {
	if got, err := ParseSortOrder(""); err != nil || got != SortDescending {
		t.Fatalf("ParseSortOrder(\"\") = %s, %v", got, err)
	}
	if got, err := ParseSortOrder("ASC"); err != nil || got != SortAscending {
		t.Fatalf("ParseSortOrder(ASC) = %s, %v", got, err)
	}
	if _, err := ParseSortOrder("sideways"); err == nil {
		t.Fatalf("ParseSortOrder(sideways) error = nil")
	}
}
