package incident

import (
	"sort"
	"strings"

	"repairdesk/internal/errs"
)

// Status is the closed set of incident lifecycle states.
type Status string

const (
	StatusRegistered         Status = "registered"
	StatusPendingDiagnosis   Status = "pending_diagnosis"
	StatusInDiagnosis        Status = "in_diagnosis"
	StatusRepaired           Status = "repaired"
	StatusPendingParts       Status = "pending_parts"
	StatusEstimate           Status = "estimate"
	StatusPercentageDiscount Status = "percentage_discount"
	StatusWarrantyExchange   Status = "warranty_exchange"
	StatusCreditNote         Status = "credit_note"
	StatusPendingDelivery    Status = "pending_delivery"
	StatusLogisticsShipment  Status = "logistics_shipment"
	StatusDelivered          Status = "delivered"
	StatusRejected           Status = "rejected"
)

var allStatuses = map[Status]struct{}{
	StatusRegistered:         {},
	StatusPendingDiagnosis:   {},
	StatusInDiagnosis:        {},
	StatusRepaired:           {},
	StatusPendingParts:       {},
	StatusEstimate:           {},
	StatusPercentageDiscount: {},
	StatusWarrantyExchange:   {},
	StatusCreditNote:         {},
	StatusPendingDelivery:    {},
	StatusLogisticsShipment:  {},
	StatusDelivered:          {},
	StatusRejected:           {},
}

// resolutionOutcomes are the states a finished diagnosis can land in directly.
var resolutionOutcomes = []Status{
	StatusRepaired,
	StatusPendingParts,
	StatusEstimate,
	StatusPercentageDiscount,
	StatusWarrantyExchange,
	StatusCreditNote,
	StatusPendingDelivery,
	StatusLogisticsShipment,
}

// transitions lists the legal non-rejection moves. Rejection is handled by CanTransition.
var transitions = map[Status][]Status{
	StatusRegistered:         {StatusPendingDiagnosis},
	StatusPendingDiagnosis:   {StatusInDiagnosis},
	StatusInDiagnosis:        resolutionOutcomes,
	StatusPendingParts:       {StatusInDiagnosis},
	StatusRepaired:           {StatusPendingDelivery, StatusLogisticsShipment, StatusDelivered},
	StatusEstimate:           {StatusInDiagnosis, StatusPendingDelivery, StatusDelivered},
	StatusPercentageDiscount: {StatusPendingDelivery, StatusDelivered},
	StatusWarrantyExchange:   {StatusPendingDelivery, StatusLogisticsShipment, StatusDelivered},
	StatusCreditNote:         {StatusDelivered},
	StatusPendingDelivery:    {StatusLogisticsShipment, StatusDelivered},
	StatusLogisticsShipment:  {StatusDelivered},
}

func (s Status) String() string { return string(s) }

func (s Status) Valid() bool {
	_, ok := allStatuses[s]
	return ok
}

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusRejected
}

// IsRepairCompleted reports whether an incident in this state counts as a prior
// repair for recurrence lookups.
func (s Status) IsRepairCompleted() bool {
	return s == StatusDelivered || s == StatusRepaired
}

func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", errs.Validationf("status", "unknown status %q (allowed: %s)", raw, strings.Join(AllowedStatuses(), ", "))
	}
	return status, nil
}

func AllowedStatuses() []string {
	out := make([]string, 0, len(allStatuses))
	for status := range allStatuses {
		out = append(out, string(status))
	}
	sort.Strings(out)
	return out
}

// CanTransition reports whether from -> to is a legal move. Rejection is reachable
// from every non-terminal state.
func CanTransition(from Status, to Status) bool {
	if !from.Valid() || !to.Valid() || from.IsTerminal() {
		return false
	}
	if to == StatusRejected {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition is CanTransition with a field-specific error.
func ValidateTransition(from Status, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return errs.Validationf("status", "transition %s -> %s is not allowed", from, to)
}

// Resolution is the technician's chosen outcome for a diagnosis.
type Resolution string

const (
	ResolutionRepaired           Resolution = "repaired"
	ResolutionPendingParts       Resolution = "pending_parts"
	ResolutionEstimate           Resolution = "estimate"
	ResolutionPercentageDiscount Resolution = "percentage_discount"
	ResolutionWarrantyExchange   Resolution = "warranty_exchange"
	ResolutionCreditNote         Resolution = "credit_note"
	ResolutionPendingDelivery    Resolution = "pending_delivery"
	ResolutionLogisticsShipment  Resolution = "logistics_shipment"
)

var resolutionStatus = map[Resolution]Status{
	ResolutionRepaired:           StatusRepaired,
	ResolutionPendingParts:       StatusPendingParts,
	ResolutionEstimate:           StatusEstimate,
	ResolutionPercentageDiscount: StatusPercentageDiscount,
	ResolutionWarrantyExchange:   StatusWarrantyExchange,
	ResolutionCreditNote:         StatusCreditNote,
	ResolutionPendingDelivery:    StatusPendingDelivery,
	ResolutionLogisticsShipment:  StatusLogisticsShipment,
}

// resolutionAliases accepts the labels technicians see on the workshop screens.
var resolutionAliases = map[string]Resolution{
	"trade_in":        ResolutionPercentageDiscount,
	"trade-in":        ResolutionPercentageDiscount,
	"percentage":      ResolutionPercentageDiscount,
	"exchange":        ResolutionWarrantyExchange,
	"warranty":        ResolutionWarrantyExchange,
	"credit-note":     ResolutionCreditNote,
	"nota_credito":    ResolutionCreditNote,
	"reparado":        ResolutionRepaired,
	"presupuesto":     ResolutionEstimate,
	"envio":           ResolutionLogisticsShipment,
	"pendiente_pieza": ResolutionPendingParts,
}

func ParseResolution(raw string) (Resolution, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return "", errs.Validation("resolution", "a resolution choice is required")
	}
	normalized = strings.ReplaceAll(normalized, " ", "_")
	if alias, ok := resolutionAliases[normalized]; ok {
		return alias, nil
	}
	resolution := Resolution(strings.ReplaceAll(normalized, "-", "_"))
	if _, ok := resolutionStatus[resolution]; !ok {
		return "", errs.Validationf("resolution", "unknown resolution %q (allowed: %s)", raw, strings.Join(AllowedResolutions(), ", "))
	}
	return resolution, nil
}

func AllowedResolutions() []string {
	out := make([]string, 0, len(resolutionStatus))
	for resolution := range resolutionStatus {
		out = append(out, string(resolution))
	}
	sort.Strings(out)
	return out
}

// StatusFor maps a resolution to the status it leads to.
func StatusFor(resolution Resolution) (Status, bool) {
	status, ok := resolutionStatus[resolution]
	return status, ok
}

// GatedKind returns the change-request kind a resolution must be approved under.
func GatedKind(resolution Resolution) (ChangeKind, bool) {
	switch resolution {
	case ResolutionWarrantyExchange:
		return ChangeKindWarrantyExchange, true
	case ResolutionPercentageDiscount:
		return ChangeKindTradeIn, true
	case ResolutionCreditNote:
		return ChangeKindCreditNote, true
	default:
		return "", false
	}
}

type EntryChannel string

const (
	ChannelCounter   EntryChannel = "counter"
	ChannelLogistics EntryChannel = "logistics"
)

func ParseEntryChannel(raw string) (EntryChannel, error) {
	switch EntryChannel(strings.ToLower(strings.TrimSpace(raw))) {
	case ChannelCounter, "":
		return ChannelCounter, nil
	case ChannelLogistics:
		return ChannelLogistics, nil
	default:
		return "", errs.Validationf("entry_channel", "unknown entry channel %q", raw)
	}
}
