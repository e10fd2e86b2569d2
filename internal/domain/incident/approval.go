package incident

import (
	"fmt"
	"strings"

	"repairdesk/internal/errs"
)

func ParseChangeKind(raw string) (ChangeKind, error) {
	kind := ChangeKind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_"))
	switch kind {
	case ChangeKindWarrantyExchange, ChangeKindTradeIn, ChangeKindCreditNote:
		return kind, nil
	default:
		return "", errs.Validationf("kind", "unknown change kind %q", raw)
	}
}

// StatusForChangeKind is the status an approved request advances the incident to.
func StatusForChangeKind(kind ChangeKind) (Status, bool) {
	switch kind {
	case ChangeKindWarrantyExchange:
		return StatusWarrantyExchange, true
	case ChangeKindTradeIn:
		return StatusPercentageDiscount, true
	case ChangeKindCreditNote:
		return StatusCreditNote, true
	default:
		return "", false
	}
}

// ValidateChangeRequestFields enforces the submission invariants of a change request.
func ValidateChangeRequestFields(kind ChangeKind, justification string, evidence []string) error {
	if _, ok := StatusForChangeKind(kind); !ok {
		return errs.Validationf("kind", "unknown change kind %q", kind)
	}
	if strings.TrimSpace(justification) == "" {
		return errs.Validation("justification", "a justification is required")
	}
	if kind == ChangeKindWarrantyExchange && len(CleanStrings(evidence)) == 0 {
		return errs.Validation("evidence_refs", "a warranty exchange needs at least one evidence photo")
	}
	return nil
}

func ValidateChangeRequest(req ChangeRequest) error {
	if strings.TrimSpace(req.IncidentID) == "" {
		return errs.Validation("incident_id", "incident is required")
	}
	if strings.TrimSpace(req.RequesterID) == "" {
		return errs.Validation("requester_id", "requester is required")
	}
	return ValidateChangeRequestFields(req.Kind, req.Justification, req.EvidenceRefs)
}

func ParseApprovalOutcome(raw string) (ApprovalStatus, error) {
	switch ApprovalStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case ApprovalApproved, "approve":
		return ApprovalApproved, nil
	case ApprovalRejected, "reject":
		return ApprovalRejected, nil
	default:
		return "", errs.Validationf("outcome", "outcome must be approved or rejected, got %q", raw)
	}
}

// ResolveApproval checks a pending -> terminal move. A decided request is never overwritten.
func ResolveApproval(req ChangeRequest, outcome ApprovalStatus) error {
	if outcome != ApprovalApproved && outcome != ApprovalRejected {
		return errs.Validationf("outcome", "outcome must be approved or rejected, got %q", outcome)
	}
	if req.Status != ApprovalPending {
		return errs.Conflict("change_request", req.ID, fmt.Sprintf("already %s", req.Status))
	}
	return nil
}
