package incident

import (
	"testing"

	"repairdesk/internal/errs"
)

func validInput() DiagnosticInput {
	return DiagnosticInput{
		TechnicianID: "tech-1",
		Faults:       []string{"Motor no arranca"},
		Causes:       []string{"Bobinado quemado"},
		Resolution:   "repaired",
	}
}

func TestDecideExitGuardNamesMissingField(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*DiagnosticInput)
		field string
	}{
		{name: "no faults", edit: func(in *DiagnosticInput) { in.Faults = nil }, field: "faults"},
		{name: "blank faults", edit: func(in *DiagnosticInput) { in.Faults = []string{" ", ""} }, field: "faults"},
		{name: "no causes", edit: func(in *DiagnosticInput) { in.Causes = []string{"  "} }, field: "causes"},
		{name: "no resolution", edit: func(in *DiagnosticInput) { in.Resolution = "" }, field: "resolution"},
		{name: "unknown resolution", edit: func(in *DiagnosticInput) { in.Resolution = "teleport" }, field: "resolution"},
		{name: "no technician", edit: func(in *DiagnosticInput) { in.TechnicianID = "" }, field: "technician_id"},
		{name: "negative cost", edit: func(in *DiagnosticInput) { in.EstimatedCost = -1 }, field: "estimated_cost"},
		{name: "zero quantity", edit: func(in *DiagnosticInput) {
			in.Parts = []SelectedPart{{Code: "A-1", Quantity: 0, Description: "brush"}}
		}, field: "parts[0].quantity"},
	}

	for _, c := range cases {
		in := validInput()
		c.edit(&in)
		_, err := Decide(StatusInDiagnosis, in)
		if got := errs.ValidationField(err); got != c.field {
			t.Fatalf("%s: Decide() error = %v, want field %q", c.name, err, c.field)
		}
	}
}

func TestDecideRequiresInDiagnosis(t *testing.T) {
	for _, status := range []Status{StatusRegistered, StatusPendingDiagnosis, StatusPendingParts, StatusRepaired} {
		if _, err := Decide(status, validInput()); errs.ValidationField(err) != "status" {
			t.Fatalf("Decide(%s) error = %v, want status ValidationError", status, err)
		}
	}
}

func TestDecideUngatedResolution(t *testing.T) {
	decision, err := Decide(StatusInDiagnosis, validInput())
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Gated || decision.Next != StatusRepaired || decision.Target != StatusRepaired {
		t.Fatalf("Decide() = %#v", decision)
	}
}

func TestDecidePendingPartsEntryGuard(t *testing.T) {
	in := validInput()
	in.Resolution = "pending_parts"
	if _, err := Decide(StatusInDiagnosis, in); errs.ValidationField(err) != "parts" {
		t.Fatalf("Decide(no parts) error = %v, want parts ValidationError", err)
	}

	in.RequiresParts = true
	decision, err := Decide(StatusInDiagnosis, in)
	if err != nil {
		t.Fatalf("Decide(requires parts flag) error = %v", err)
	}
	if decision.Next != StatusPendingParts || decision.RequestParts {
		t.Fatalf("Decide(requires parts flag) = %#v, want pending_parts without parts request", decision)
	}

	in.RequiresParts = false
	in.Parts = []SelectedPart{{Code: "A-1", Quantity: 2, Description: "brush"}}
	decision, err = Decide(StatusInDiagnosis, in)
	if err != nil {
		t.Fatalf("Decide(with parts) error = %v", err)
	}
	if !decision.RequestParts {
		t.Fatalf("Decide(with parts) = %#v, want RequestParts", decision)
	}
}

func TestDecideGatedResolutionHoldsStatus(t *testing.T) {
	in := validInput()
	in.Resolution = "warranty_exchange"
	in.Justification = "Motor quemado por defecto de fábrica"

	if _, err := Decide(StatusInDiagnosis, in); errs.ValidationField(err) != "evidence_refs" {
		t.Fatalf("Decide(no evidence) error = %v, want evidence_refs ValidationError", err)
	}

	in.EvidenceRefs = []string{"photo-1"}
	decision, err := Decide(StatusInDiagnosis, in)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if !decision.Gated || decision.ChangeKind != ChangeKindWarrantyExchange {
		t.Fatalf("Decide() = %#v, want gated warranty exchange", decision)
	}
	if decision.Next != StatusInDiagnosis || decision.Target != StatusWarrantyExchange {
		t.Fatalf("Decide() next/target = %s/%s", decision.Next, decision.Target)
	}

	in.Resolution = "credit_note"
	in.Justification = ""
	if _, err := Decide(StatusInDiagnosis, in); errs.ValidationField(err) != "justification" {
		t.Fatalf("Decide(credit note, no justification) error = %v", err)
	}
}

func TestBuildDiagnosticCleansLists(t *testing.T) {
	in := validInput()
	in.Faults = []string{" ruido ", ""}
	in.PhotoRefs = []string{"", "p1"}

	d := BuildDiagnostic(in, ResolutionRepaired)
	if len(d.Faults) != 1 || d.Faults[0] != "ruido" {
		t.Fatalf("Faults = %#v", d.Faults)
	}
	if len(d.PhotoRefs) != 1 || d.PhotoRefs[0] != "p1" {
		t.Fatalf("PhotoRefs = %#v", d.PhotoRefs)
	}
}

func TestValidateDraftAllowsIncompleteFindings(t *testing.T) {
	in := DiagnosticInput{TechnicianID: "tech-1"}
	if err := ValidateDraft(StatusInDiagnosis, in); err != nil {
		t.Fatalf("ValidateDraft() error = %v", err)
	}
	if err := ValidateDraft(StatusRepaired, in); errs.ValidationField(err) != "status" {
		t.Fatalf("ValidateDraft(repaired) error = %v", err)
	}
}
