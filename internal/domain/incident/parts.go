package incident

import (
	"fmt"
	"strings"

	"repairdesk/internal/errs"
)

// PartSelection is the technician's working list of parts. A code appears at
// most once per original code, so substituted lines of different origins stay apart.
type PartSelection struct {
	lines []SelectedPart
}

func NewPartSelection(lines ...SelectedPart) *PartSelection {
	s := &PartSelection{}
	for _, line := range lines {
		s.Add(line)
	}
	return s
}

// MergeParts folds repeated codes into one line and drops non-positive quantities.
func MergeParts(lines []SelectedPart) []SelectedPart {
	return NewPartSelection(lines...).Lines()
}

// Add increments the quantity of an existing line or appends a new one.
// Lines with a non-positive quantity are ignored.
func (s *PartSelection) Add(part SelectedPart) {
	part.Code = strings.TrimSpace(part.Code)
	part.OriginalCode = strings.TrimSpace(part.OriginalCode)
	if part.Code == "" || part.Quantity <= 0 {
		return
	}
	if idx := s.index(part.Code, part.OriginalCode); idx >= 0 {
		s.lines[idx].Quantity += part.Quantity
		if s.lines[idx].Description == "" {
			s.lines[idx].Description = strings.TrimSpace(part.Description)
		}
		return
	}
	part.Description = strings.TrimSpace(part.Description)
	s.lines = append(s.lines, part)
}

// SetQuantity overwrites the quantity of a requested code; zero or less removes it.
func (s *PartSelection) SetQuantity(code string, quantity int) {
	idx := s.index(strings.TrimSpace(code), "")
	if idx < 0 {
		return
	}
	if quantity <= 0 {
		s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
		return
	}
	s.lines[idx].Quantity = quantity
}

func (s *PartSelection) Lines() []SelectedPart {
	return append([]SelectedPart(nil), s.lines...)
}

func (s *PartSelection) Len() int { return len(s.lines) }

func (s *PartSelection) index(code string, originalCode string) int {
	for i, line := range s.lines {
		if line.Code == code && line.OriginalCode == originalCode {
			return i
		}
	}
	return -1
}

// ParentResolver returns the parent substitute of a part code, if one is registered.
type ParentResolver func(code string) (parent string, ok bool, err error)

// Substitute merges the selection and re-codes every line whose code has a
// parent substitute, keeping the requested code in OriginalCode. Without a
// resolver the lines are only merged.
func Substitute(lines []SelectedPart, resolve ParentResolver) ([]SelectedPart, error) {
	merged := MergeParts(lines)
	if resolve == nil {
		return merged, nil
	}

	out := NewPartSelection()
	for _, line := range merged {
		if line.OriginalCode == "" {
			parent, ok, err := resolve(line.Code)
			if err != nil {
				return nil, errs.Wrapf(err, "resolve parent code of %s", line.Code)
			}
			parent = strings.TrimSpace(parent)
			if ok && parent != "" && parent != line.Code {
				line.OriginalCode = line.Code
				line.Code = parent
			}
		}
		out.Add(line)
	}
	return out.Lines(), nil
}

// ValidatePartLines checks codes and quantities of a selection.
func ValidatePartLines(lines []SelectedPart) error {
	for i, line := range lines {
		if strings.TrimSpace(line.Code) == "" {
			return errs.Validationf(fmt.Sprintf("parts[%d].code", i), "part code is required")
		}
		if line.Quantity <= 0 {
			return errs.Validationf(fmt.Sprintf("parts[%d].quantity", i), "quantity of %s must be a positive integer, got %d", line.Code, line.Quantity)
		}
	}
	return nil
}

// ValidatePartsRequest is the submission gate of a parts request.
func ValidatePartsRequest(req PartsRequest) error {
	if strings.TrimSpace(req.IncidentID) == "" {
		return errs.Validation("incident_id", "incident is required")
	}
	if strings.TrimSpace(req.RequesterID) == "" {
		return errs.Validation("requester_id", "requester is required")
	}
	if len(req.Items) == 0 {
		return errs.Validation("items", "a parts request needs at least one item")
	}
	if err := ValidatePartLines(req.Items); err != nil {
		return err
	}
	for i, item := range req.Items {
		// A missing description means the catalogue and the selection disagree.
		if strings.TrimSpace(item.Description) == "" {
			return errs.Validationf(fmt.Sprintf("items[%d].description", i), "part %s has no description", item.Code)
		}
	}
	return nil
}

// ResolvePartsRequest moves a pending request to a terminal status.
func ResolvePartsRequest(current PartsRequestStatus, outcome PartsRequestStatus) error {
	if outcome != PartsFulfilled && outcome != PartsRejected {
		return errs.Validationf("status", "unknown parts request outcome %q", outcome)
	}
	if current != PartsPending {
		return errs.Conflict("parts_request", "", fmt.Sprintf("already %s", current))
	}
	return nil
}
