package incident

import (
	"testing"
	"time"

	"repairdesk/internal/errs"
)

var recurrenceNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func deliveredDaysAgo(days int) *time.Time {
	at := recurrenceNow.Add(-time.Duration(days) * 24 * time.Hour)
	return &at
}

func boolPtr(v bool) *bool { return &v }

func TestWarrantyWindowBoundary(t *testing.T) {
	if days := DaysSinceRepair(deliveredDaysAgo(30), recurrenceNow); days != 30 || !WithinWarrantyWindow(days) {
		t.Fatalf("30 days: DaysSinceRepair() = %d, within = %v", days, WithinWarrantyWindow(days))
	}
	if days := DaysSinceRepair(deliveredDaysAgo(31), recurrenceNow); days != 31 || WithinWarrantyWindow(days) {
		t.Fatalf("31 days: DaysSinceRepair() = %d, within = %v", days, WithinWarrantyWindow(days))
	}

	almost := recurrenceNow.Add(-(24*time.Hour - time.Minute))
	if days := DaysSinceRepair(&almost, recurrenceNow); days != 0 {
		t.Fatalf("23h59m: DaysSinceRepair() = %d, want 0", days)
	}
	if days := DaysSinceRepair(nil, recurrenceNow); days != NotApplicableDays || WithinWarrantyWindow(days) {
		t.Fatalf("no delivery: DaysSinceRepair() = %d", days)
	}
}

func TestSelectCandidatesFiltersAndOrders(t *testing.T) {
	drill := "drill-9"
	saw := "saw-1"
	current := Incident{ID: "inc-now", CustomerID: "cust-1", ProductID: &drill, Status: StatusInDiagnosis}
	history := []Incident{
		current,
		{ID: "old", CustomerID: "cust-1", ProductID: &drill, Status: StatusDelivered, DeliveredAt: deliveredDaysAgo(90)},
		{ID: "recent", CustomerID: "cust-1", ProductID: &drill, Status: StatusDelivered, DeliveredAt: deliveredDaysAgo(10)},
		{ID: "undelivered", CustomerID: "cust-1", ProductID: &drill, Status: StatusRepaired},
		{ID: "other-customer", CustomerID: "cust-2", ProductID: &drill, Status: StatusDelivered, DeliveredAt: deliveredDaysAgo(3)},
		{ID: "open", CustomerID: "cust-1", ProductID: &drill, Status: StatusPendingParts},
		{ID: "other-product", CustomerID: "cust-1", ProductID: &saw, Status: StatusDelivered, DeliveredAt: deliveredDaysAgo(5)},
	}

	got := SelectCandidates(current, history, true, recurrenceNow)
	ids := make([]string, 0, len(got))
	for _, candidate := range got {
		ids = append(ids, candidate.Incident.ID)
	}
	want := []string{"recent", "old", "undelivered"}
	if len(ids) != len(want) {
		t.Fatalf("SelectCandidates() ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("SelectCandidates() ids = %v, want %v", ids, want)
		}
	}
	if !got[0].WithinWarrantyWindow || got[1].WithinWarrantyWindow || got[2].DaysSinceRepair != NotApplicableDays {
		t.Fatalf("SelectCandidates() windows = %#v", got)
	}

	if all := SelectCandidates(current, history, false, recurrenceNow); len(all) != 4 {
		t.Fatalf("SelectCandidates(any product) len = %d, want 4", len(all))
	}
}

func TestEvaluateVerificationWithoutHistory(t *testing.T) {
	current := Incident{ID: "inc-1", CustomerID: "cust-1"}
	record, err := EvaluateVerification(current, VerificationDecision{
		VerifierID:      "sup-1",
		IsRecurrence:    false,
		RejectionReason: "no_prior_incident",
		Justification:   "El cliente no tiene reparaciones previas",
	}, nil, recurrenceNow)
	if err != nil {
		t.Fatalf("EvaluateVerification() error = %v", err)
	}
	if record.PriorIncidentID != nil || record.DaysSinceRepair != NotApplicableDays {
		t.Fatalf("record = %#v, want no prior incident", record)
	}
	if record.RejectionReason == nil || *record.RejectionReason != ReasonNoPriorIncident || record.Approved() {
		t.Fatalf("record = %#v, want rejected with no_prior_incident", record)
	}
}

func TestEvaluateVerificationGuards(t *testing.T) {
	current := Incident{ID: "inc-1", CustomerID: "cust-1"}
	candidates := []RecurrenceCandidate{{
		Incident:             Incident{ID: "prior", CustomerID: "cust-1", Status: StatusDelivered},
		DaysSinceRepair:      12,
		WithinWarrantyWindow: true,
	}}
	longEnough := "Mismo fallo de bobinado que en la reparación anterior"

	cases := []struct {
		name  string
		dec   VerificationDecision
		field string
	}{
		{
			name:  "short justification",
			dec:   VerificationDecision{VerifierID: "sup-1", IsRecurrence: true, QualifiesForReentry: boolPtr(true), PriorIncidentID: "prior", Justification: "  corto  "},
			field: "justification",
		},
		{
			name:  "recurrence without reentry decision",
			dec:   VerificationDecision{VerifierID: "sup-1", IsRecurrence: true, PriorIncidentID: "prior", Justification: longEnough},
			field: "qualifies_for_reentry",
		},
		{
			name:  "denied without reason",
			dec:   VerificationDecision{VerifierID: "sup-1", IsRecurrence: true, QualifiesForReentry: boolPtr(false), Justification: longEnough},
			field: "rejection_reason",
		},
		{
			name:  "not recurrence without reason",
			dec:   VerificationDecision{VerifierID: "sup-1", Justification: longEnough},
			field: "rejection_reason",
		},
		{
			name:  "granted without prior",
			dec:   VerificationDecision{VerifierID: "sup-1", IsRecurrence: true, QualifiesForReentry: boolPtr(true), Justification: longEnough},
			field: "prior_incident_id",
		},
		{
			name:  "unknown prior",
			dec:   VerificationDecision{VerifierID: "sup-1", IsRecurrence: true, QualifiesForReentry: boolPtr(true), PriorIncidentID: "ghost", Justification: longEnough},
			field: "prior_incident_id",
		},
		{
			name:  "granted but not recurrence",
			dec:   VerificationDecision{VerifierID: "sup-1", QualifiesForReentry: boolPtr(true), RejectionReason: "misuse", Justification: longEnough},
			field: "qualifies_for_reentry",
		},
		{
			name:  "no verifier",
			dec:   VerificationDecision{IsRecurrence: true, QualifiesForReentry: boolPtr(true), PriorIncidentID: "prior", Justification: longEnough},
			field: "verifier_id",
		},
	}

	for _, c := range cases {
		_, err := EvaluateVerification(current, c.dec, candidates, recurrenceNow)
		if got := errs.ValidationField(err); got != c.field {
			t.Fatalf("%s: EvaluateVerification() error = %v, want field %q", c.name, err, c.field)
		}
	}
}

func TestEvaluateVerificationGrantsReentry(t *testing.T) {
	current := Incident{ID: "inc-1", CustomerID: "cust-1"}
	candidates := []RecurrenceCandidate{{
		Incident:             Incident{ID: "prior", CustomerID: "cust-1", Status: StatusDelivered},
		DaysSinceRepair:      12,
		WithinWarrantyWindow: true,
	}}

	record, err := EvaluateVerification(current, VerificationDecision{
		VerifierID:          "sup-1",
		PriorIncidentID:     "prior",
		IsRecurrence:        true,
		QualifiesForReentry: boolPtr(true),
		RejectionReason:     "misuse",
		Justification:       "Mismo fallo de bobinado que en la reparación anterior",
	}, candidates, recurrenceNow)
	if err != nil {
		t.Fatalf("EvaluateVerification() error = %v", err)
	}
	if !record.Approved() || record.DaysSinceRepair != 12 || record.RejectionReason != nil {
		t.Fatalf("record = %#v, want approved with 12 days", record)
	}
	if record.PriorIncidentID == nil || *record.PriorIncidentID != "prior" {
		t.Fatalf("PriorIncidentID = %v", record.PriorIncidentID)
	}
}

func TestJustificationCountsCharactersNotBytes(t *testing.T) {
	current := Incident{ID: "inc-1", CustomerID: "cust-1"}
	// 19 characters, more than 20 bytes.
	nineteen := "ñññññññññññññññññññ"
	_, err := EvaluateVerification(current, VerificationDecision{
		VerifierID:      "sup-1",
		RejectionReason: "different_fault",
		Justification:   nineteen,
	}, nil, recurrenceNow)
	if errs.ValidationField(err) != "justification" {
		t.Fatalf("EvaluateVerification(19 runes) error = %v", err)
	}

	_, err = EvaluateVerification(current, VerificationDecision{
		VerifierID:      "sup-1",
		RejectionReason: "different_fault",
		Justification:   nineteen + "ñ",
	}, nil, recurrenceNow)
	if err != nil {
		t.Fatalf("EvaluateVerification(20 runes) error = %v", err)
	}
}
