package incident

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"repairdesk/internal/domain/clock"
	"repairdesk/internal/errs"
)

const (
	// WarrantyWindowDays is the re-entry window after delivery.
	WarrantyWindowDays = 30
	// MinJustificationLength is counted in characters after trimming.
	MinJustificationLength = 20
	// NotApplicableDays marks a candidate without a delivery date.
	NotApplicableDays = -1
)

var allowedRejectionReasons = map[RejectionReason]struct{}{
	ReasonOutOfWindow:     {},
	ReasonMisuse:          {},
	ReasonDifferentFault:  {},
	ReasonNoPriorIncident: {},
}

func ParseRejectionReason(raw string) (RejectionReason, error) {
	reason := RejectionReason(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_"))
	if _, ok := allowedRejectionReasons[reason]; !ok {
		allowed := make([]string, 0, len(allowedRejectionReasons))
		for r := range allowedRejectionReasons {
			allowed = append(allowed, string(r))
		}
		sort.Strings(allowed)
		return "", errs.Validationf("rejection_reason", "unknown rejection reason %q (allowed: %s)", raw, strings.Join(allowed, ", "))
	}
	return reason, nil
}

// RecurrenceCandidate is a prior finished repair shown to the verifier.
type RecurrenceCandidate struct {
	Incident             Incident
	DaysSinceRepair      int
	WithinWarrantyWindow bool
}

// DaysSinceRepair is floor((now - deliveredAt) / 1 day), or NotApplicableDays without a delivery date.
func DaysSinceRepair(deliveredAt *time.Time, now time.Time) int {
	if deliveredAt == nil || deliveredAt.IsZero() {
		return NotApplicableDays
	}
	return clock.DaysBetween(*deliveredAt, now)
}

func WithinWarrantyWindow(days int) bool {
	return days >= 0 && days <= WarrantyWindowDays
}

// SelectCandidates keeps the customer's finished repairs other than current, newest delivery first.
func SelectCandidates(current Incident, history []Incident, sameProductOnly bool, now time.Time) []RecurrenceCandidate {
	out := make([]RecurrenceCandidate, 0, len(history))
	for _, prior := range history {
		if prior.ID == current.ID || prior.CustomerID != current.CustomerID {
			continue
		}
		if !prior.Status.IsRepairCompleted() {
			continue
		}
		if sameProductOnly && !sameProduct(current.ProductID, prior.ProductID) {
			continue
		}
		days := DaysSinceRepair(prior.DeliveredAt, now)
		out = append(out, RecurrenceCandidate{
			Incident:             prior,
			DaysSinceRepair:      days,
			WithinWarrantyWindow: WithinWarrantyWindow(days),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].DaysSinceRepair, out[j].DaysSinceRepair
		if (a < 0) != (b < 0) {
			return a >= 0
		}
		return a < b
	})
	return out
}

func sameProduct(a *string, b *string) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.TrimSpace(*a) != "" && strings.TrimSpace(*a) == strings.TrimSpace(*b)
}

// VerificationDecision is the verifier's judgment on one incident.
type VerificationDecision struct {
	VerifierID          string
	PriorIncidentID     string
	IsRecurrence        bool
	QualifiesForReentry *bool
	RejectionReason     string
	Justification       string
}

// EvaluateVerification runs the decision tree top-down and returns the record to persist.
// candidates must be the output of SelectCandidates for the same incident.
func EvaluateVerification(current Incident, dec VerificationDecision, candidates []RecurrenceCandidate, now time.Time) (RecurrenceVerification, error) {
	verifier := strings.TrimSpace(dec.VerifierID)
	if verifier == "" {
		return RecurrenceVerification{}, errs.Validation("verifier_id", "verifier is required")
	}
	justification := strings.TrimSpace(dec.Justification)
	if n := utf8.RuneCountInString(justification); n < MinJustificationLength {
		return RecurrenceVerification{}, errs.Validationf("justification", "justification needs at least %d characters, got %d", MinJustificationLength, n)
	}

	record := RecurrenceVerification{
		IncidentID:      current.ID,
		IsRecurrence:    dec.IsRecurrence,
		Justification:   justification,
		DaysSinceRepair: NotApplicableDays,
		VerifierID:      verifier,
		VerifiedAt:      now,
	}

	if priorID := strings.TrimSpace(dec.PriorIncidentID); priorID != "" {
		candidate, ok := findCandidate(candidates, priorID)
		if !ok {
			return RecurrenceVerification{}, errs.Validationf("prior_incident_id", "incident %s is not a finished repair of this customer", priorID)
		}
		record.PriorIncidentID = &priorID
		record.DaysSinceRepair = candidate.DaysSinceRepair
	}

	switch {
	case !dec.IsRecurrence:
		if dec.QualifiesForReentry != nil && *dec.QualifiesForReentry {
			return RecurrenceVerification{}, errs.Validation("qualifies_for_reentry", "re-entry cannot be granted when the fault is not a recurrence")
		}
		reason, err := requireReason(dec.RejectionReason)
		if err != nil {
			return RecurrenceVerification{}, err
		}
		record.RejectionReason = &reason
	case dec.QualifiesForReentry == nil:
		return RecurrenceVerification{}, errs.Validation("qualifies_for_reentry", "a recurrence needs an explicit re-entry decision")
	case !*dec.QualifiesForReentry:
		reason, err := requireReason(dec.RejectionReason)
		if err != nil {
			return RecurrenceVerification{}, err
		}
		granted := false
		record.QualifiesForReentry = &granted
		record.RejectionReason = &reason
	default:
		if record.PriorIncidentID == nil {
			return RecurrenceVerification{}, errs.Validation("prior_incident_id", "granting re-entry requires the prior incident")
		}
		granted := true
		record.QualifiesForReentry = &granted
	}

	return record, nil
}

func requireReason(raw string) (RejectionReason, error) {
	if strings.TrimSpace(raw) == "" {
		return "", errs.Validation("rejection_reason", "a rejection reason is required")
	}
	return ParseRejectionReason(raw)
}

func findCandidate(candidates []RecurrenceCandidate, incidentID string) (RecurrenceCandidate, bool) {
	for _, candidate := range candidates {
		if candidate.Incident.ID == incidentID {
			return candidate, true
		}
	}
	return RecurrenceCandidate{}, false
}
