package incident

import (
	"strings"

	"repairdesk/internal/errs"
)

// DiagnosticInput is what the technician enters on the diagnosis screen.
type DiagnosticInput struct {
	TechnicianID     string
	Faults           []string
	Causes           []string
	Parts            []SelectedPart
	RequiresParts    bool
	Recommendations  string
	Resolution       string
	ResolutionNote   string
	PhotoRefs        []string
	EstimatedMinutes int
	EstimatedCost    float64

	// Justification and EvidenceRefs feed the change request of a gated resolution.
	Justification string
	EvidenceRefs  []string
}

// Decision is the outcome of the diagnostic decision table for one input.
type Decision struct {
	Resolution Resolution
	// Target is the status the resolution maps to.
	Target Status
	// Next is the status the incident takes now. It equals the current status
	// while a change request is pending.
	Next         Status
	Gated        bool
	ChangeKind   ChangeKind
	RequestParts bool
}

// Decide evaluates the exit guard of InDiagnosis and the resolution lookup table.
// It never mutates anything; a returned error means no transition happens.
func Decide(current Status, in DiagnosticInput) (Decision, error) {
	if current != StatusInDiagnosis {
		return Decision{}, errs.Validationf("status", "diagnosis can only be finalized from %s, incident is %s", StatusInDiagnosis, current)
	}
	if strings.TrimSpace(in.TechnicianID) == "" {
		return Decision{}, errs.Validation("technician_id", "technician is required")
	}
	if len(CleanStrings(in.Faults)) == 0 {
		return Decision{}, errs.Validation("faults", "at least one non-empty fault is required")
	}
	if len(CleanStrings(in.Causes)) == 0 {
		return Decision{}, errs.Validation("causes", "at least one non-empty cause is required")
	}
	resolution, err := ParseResolution(in.Resolution)
	if err != nil {
		return Decision{}, err
	}
	if err := validateEstimates(in); err != nil {
		return Decision{}, err
	}
	if err := ValidatePartLines(in.Parts); err != nil {
		return Decision{}, err
	}

	target, ok := StatusFor(resolution)
	if !ok {
		return Decision{}, errs.Validationf("resolution", "resolution %q has no mapped status", resolution)
	}
	if err := ValidateTransition(current, target); err != nil {
		return Decision{}, err
	}

	decision := Decision{
		Resolution: resolution,
		Target:     target,
		Next:       target,
	}

	if target == StatusPendingParts {
		if len(in.Parts) == 0 && !in.RequiresParts {
			return Decision{}, errs.Validation("parts", "pending parts requires a selected part or the requires-parts flag")
		}
		decision.RequestParts = len(in.Parts) > 0
	}

	if kind, gated := GatedKind(resolution); gated {
		if err := ValidateChangeRequestFields(kind, in.Justification, in.EvidenceRefs); err != nil {
			return Decision{}, err
		}
		decision.Gated = true
		decision.ChangeKind = kind
		decision.Next = current
	}

	return decision, nil
}

// ValidateDraft checks the little a draft needs; drafts may be incomplete.
func ValidateDraft(current Status, in DiagnosticInput) error {
	if current != StatusInDiagnosis {
		return errs.Validationf("status", "drafts are only kept while the incident is %s", StatusInDiagnosis)
	}
	if strings.TrimSpace(in.TechnicianID) == "" {
		return errs.Validation("technician_id", "technician is required")
	}
	if err := validateEstimates(in); err != nil {
		return err
	}
	return ValidatePartLines(in.Parts)
}

// BuildDiagnostic copies the input into a diagnostic record body.
func BuildDiagnostic(in DiagnosticInput, resolution Resolution) Diagnostic {
	return Diagnostic{
		TechnicianID:     strings.TrimSpace(in.TechnicianID),
		Faults:           CleanStrings(in.Faults),
		Causes:           CleanStrings(in.Causes),
		Parts:            MergeParts(in.Parts),
		RequiresParts:    in.RequiresParts,
		Recommendations:  strings.TrimSpace(in.Recommendations),
		Resolution:       resolution,
		ResolutionNote:   strings.TrimSpace(in.ResolutionNote),
		PhotoRefs:        CleanStrings(in.PhotoRefs),
		EstimatedMinutes: in.EstimatedMinutes,
		EstimatedCost:    in.EstimatedCost,
	}
}

func validateEstimates(in DiagnosticInput) error {
	if in.EstimatedMinutes < 0 {
		return errs.Validation("estimated_minutes", "must not be negative")
	}
	if in.EstimatedCost < 0 {
		return errs.Validation("estimated_cost", "must not be negative")
	}
	return nil
}

// CleanStrings trims every entry and drops the empty ones.
func CleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
