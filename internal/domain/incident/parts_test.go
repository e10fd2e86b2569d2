package incident

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"repairdesk/internal/errs"
)

func TestPartSelectionMergesAndRemoves(t *testing.T) {
	sel := NewPartSelection()
	sel.Add(SelectedPart{Code: "A-100", Quantity: 1, Description: "Carbon brush"})
	sel.Add(SelectedPart{Code: "A-100", Quantity: 2})
	sel.Add(SelectedPart{Code: "B-200", Quantity: 1, Description: "Switch"})

	want := []SelectedPart{
		{Code: "A-100", Quantity: 3, Description: "Carbon brush"},
		{Code: "B-200", Quantity: 1, Description: "Switch"},
	}
	if diff := cmp.Diff(want, sel.Lines()); diff != "" {
		t.Fatalf("Lines() mismatch (-want +got):\n%s", diff)
	}

	sel.SetQuantity("A-100", 0)
	sel.SetQuantity("B-200", 0)
	if sel.Len() != 0 {
		t.Fatalf("Len() = %d after removing every line, want 0", sel.Len())
	}
}

func TestPartSelectionIgnoresNonPositiveAdds(t *testing.T) {
	sel := NewPartSelection(SelectedPart{Code: "A-1", Quantity: 0}, SelectedPart{Code: " ", Quantity: 2})
	if sel.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", sel.Len())
	}
	sel.Add(SelectedPart{Code: "A-1", Quantity: 1})
	sel.SetQuantity("A-1", 5)
	if got := sel.Lines()[0].Quantity; got != 5 {
		t.Fatalf("quantity = %d, want 5", got)
	}
}

func TestSubstituteKeepsOriginalCode(t *testing.T) {
	parents := map[string]string{"A-100": "A-100P", "A-101": "A-100P"}
	resolve := func(code string) (string, bool, error) {
		parent, ok := parents[code]
		return parent, ok, nil
	}

	got, err := Substitute([]SelectedPart{
		{Code: "A-100", Quantity: 1, Description: "brush"},
		{Code: "A-100", Quantity: 2, Description: "brush"},
		{Code: "A-101", Quantity: 1, Description: "brush alt"},
		{Code: "C-1", Quantity: 1, Description: "cable"},
	}, resolve)
	if err != nil {
		t.Fatalf("Substitute() error = %v", err)
	}

	want := []SelectedPart{
		{Code: "A-100P", Quantity: 3, Description: "brush", OriginalCode: "A-100"},
		{Code: "A-100P", Quantity: 1, Description: "brush alt", OriginalCode: "A-101"},
		{Code: "C-1", Quantity: 1, Description: "cable"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Substitute() mismatch (-want +got):\n%s", diff)
	}
}

func TestSubstituteWithoutResolverStillMerges(t *testing.T) {
	lines := []SelectedPart{
		{Code: "A-1", Quantity: 1, Description: "brush"},
		{Code: "A-1", Quantity: 2},
		{Code: "B-2", Quantity: 1, Description: "switch"},
	}
	want := []SelectedPart{
		{Code: "A-1", Quantity: 3, Description: "brush"},
		{Code: "B-2", Quantity: 1, Description: "switch"},
	}

	noop := func(string) (string, bool, error) { return "", false, nil }
	for name, resolve := range map[string]ParentResolver{"nil": nil, "noop": noop} {
		got, err := Substitute(lines, resolve)
		if err != nil {
			t.Fatalf("Substitute(%s) error = %v", name, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("Substitute(%s) mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestPartSelectionKeepsSubstitutedOriginsApart(t *testing.T) {
	sel := NewPartSelection(
		SelectedPart{Code: "P-1", OriginalCode: "A-1", Quantity: 1},
		SelectedPart{Code: "P-1", OriginalCode: "A-2", Quantity: 1},
		SelectedPart{Code: "P-1", OriginalCode: "A-1", Quantity: 2},
	)
	want := []SelectedPart{
		{Code: "P-1", OriginalCode: "A-1", Quantity: 3},
		{Code: "P-1", OriginalCode: "A-2", Quantity: 1},
	}
	if diff := cmp.Diff(want, sel.Lines()); diff != "" {
		t.Fatalf("Lines() mismatch (-want +got):\n%s", diff)
	}
}

func TestSubstitutePropagatesLookupErrors(t *testing.T) {
	boom := errors.New("catalogue offline")
	_, err := Substitute([]SelectedPart{{Code: "A", Quantity: 1}}, func(string) (string, bool, error) {
		return "", false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Substitute() error = %v, want catalogue error", err)
	}
}

func TestValidatePartsRequest(t *testing.T) {
	base := PartsRequest{IncidentID: "inc-1", RequesterID: "tech-1"}

	if err := ValidatePartsRequest(base); errs.ValidationField(err) != "items" {
		t.Fatalf("ValidatePartsRequest(empty) error = %v", err)
	}

	negative := base
	negative.Items = []SelectedPart{{Code: "A", Quantity: -1, Description: "x"}}
	if err := ValidatePartsRequest(negative); errs.ValidationField(err) != "parts[0].quantity" {
		t.Fatalf("ValidatePartsRequest(negative) error = %v", err)
	}

	noDescription := base
	noDescription.Items = []SelectedPart{{Code: "A", Quantity: 1, Description: "x"}, {Code: "B", Quantity: 1}}
	if err := ValidatePartsRequest(noDescription); errs.ValidationField(err) != "items[1].description" {
		t.Fatalf("ValidatePartsRequest(no description) error = %v", err)
	}

	ok := base
	ok.Items = []SelectedPart{{Code: "A", Quantity: 1, Description: "x"}}
	if err := ValidatePartsRequest(ok); err != nil {
		t.Fatalf("ValidatePartsRequest(valid) error = %v", err)
	}
}

func TestResolvePartsRequestNeverCyclesBack(t *testing.T) {
	if err := ResolvePartsRequest(PartsPending, PartsFulfilled); err != nil {
		t.Fatalf("ResolvePartsRequest(pending, fulfilled) error = %v", err)
	}
	if err := ResolvePartsRequest(PartsFulfilled, PartsRejected); !errs.IsConflict(err) {
		t.Fatalf("ResolvePartsRequest(fulfilled, rejected) error = %v, want ConflictError", err)
	}
	if err := ResolvePartsRequest(PartsPending, PartsPending); !errs.IsValidation(err) {
		t.Fatalf("ResolvePartsRequest(pending, pending) error = %v, want ValidationError", err)
	}
}
