package httpapi

import (
	"time"

	"repairdesk/internal/domain/incident"
	"repairdesk/internal/usecase/servicedesk"
)

type incidentResponse struct {
	ID                 string     `json:"id"`
	Code               string     `json:"code"`
	CustomerID         string     `json:"customer_id"`
	ProductID          *string    `json:"product_id,omitempty"`
	ProblemDescription string     `json:"problem_description"`
	EntryChannel       string     `json:"entry_channel"`
	WarrantyCoverage   bool       `json:"warranty_coverage"`
	Status             string     `json:"status"`
	OriginIncidentID   *string    `json:"origin_incident_id,omitempty"`
	DeliveryAddressID  *string    `json:"delivery_address_id,omitempty"`
	DeliveredAt        *time.Time `json:"delivered_at,omitempty"`
	ObservationLog     string     `json:"observation_log,omitempty"`
	Version            int64      `json:"version"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toIncident(inc incident.Incident) incidentResponse {
	return incidentResponse{
		ID:                 inc.ID,
		Code:               inc.Code,
		CustomerID:         inc.CustomerID,
		ProductID:          inc.ProductID,
		ProblemDescription: inc.ProblemDescription,
		EntryChannel:       string(inc.EntryChannel),
		WarrantyCoverage:   inc.WarrantyCoverage,
		Status:             string(inc.Status),
		OriginIncidentID:   inc.OriginIncidentID,
		DeliveryAddressID:  inc.DeliveryAddressID,
		DeliveredAt:        inc.DeliveredAt,
		ObservationLog:     inc.ObservationLog,
		Version:            inc.Version,
		CreatedAt:          inc.CreatedAt,
		UpdatedAt:          inc.UpdatedAt,
	}
}

func toIncidents(in []incident.Incident) []incidentResponse {
	out := make([]incidentResponse, 0, len(in))
	for _, inc := range in {
		out = append(out, toIncident(inc))
	}
	return out
}

type diagnosticRequest struct {
	TechnicianID     string                  `json:"technician_id"`
	Faults           []string                `json:"faults"`
	Causes           []string                `json:"causes"`
	Parts            []incident.SelectedPart `json:"parts"`
	RequiresParts    bool                    `json:"requires_parts"`
	Recommendations  string                  `json:"recommendations"`
	Resolution       string                  `json:"resolution"`
	ResolutionNote   string                  `json:"resolution_note"`
	PhotoRefs        []string                `json:"photo_refs"`
	EstimatedMinutes int                     `json:"estimated_minutes"`
	EstimatedCost    float64                 `json:"estimated_cost"`
	Justification    string                  `json:"justification"`
	EvidenceRefs     []string                `json:"evidence_refs"`
	ExpectedVersion  int64                   `json:"expected_version"`
}

func (r diagnosticRequest) input() incident.DiagnosticInput {
	return incident.DiagnosticInput{
		TechnicianID:     r.TechnicianID,
		Faults:           r.Faults,
		Causes:           r.Causes,
		Parts:            r.Parts,
		RequiresParts:    r.RequiresParts,
		Recommendations:  r.Recommendations,
		Resolution:       r.Resolution,
		ResolutionNote:   r.ResolutionNote,
		PhotoRefs:        r.PhotoRefs,
		EstimatedMinutes: r.EstimatedMinutes,
		EstimatedCost:    r.EstimatedCost,
		Justification:    r.Justification,
		EvidenceRefs:     r.EvidenceRefs,
	}
}

type diagnosticResponse struct {
	ID               string                  `json:"id"`
	IncidentID       string                  `json:"incident_id"`
	TechnicianID     string                  `json:"technician_id"`
	Version          int                     `json:"version"`
	State            string                  `json:"state"`
	Superseded       bool                    `json:"superseded"`
	Faults           []string                `json:"faults"`
	Causes           []string                `json:"causes"`
	Parts            []incident.SelectedPart `json:"parts"`
	RequiresParts    bool                    `json:"requires_parts"`
	Recommendations  string                  `json:"recommendations,omitempty"`
	Resolution       string                  `json:"resolution,omitempty"`
	ResolutionNote   string                  `json:"resolution_note,omitempty"`
	PhotoRefs        []string                `json:"photo_refs"`
	EstimatedMinutes int                     `json:"estimated_minutes"`
	EstimatedCost    float64                 `json:"estimated_cost"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

func toDiagnostic(d incident.Diagnostic) diagnosticResponse {
	return diagnosticResponse{
		ID:               d.ID,
		IncidentID:       d.IncidentID,
		TechnicianID:     d.TechnicianID,
		Version:          d.Version,
		State:            string(d.State),
		Superseded:       d.Superseded,
		Faults:           d.Faults,
		Causes:           d.Causes,
		Parts:            d.Parts,
		RequiresParts:    d.RequiresParts,
		Recommendations:  d.Recommendations,
		Resolution:       string(d.Resolution),
		ResolutionNote:   d.ResolutionNote,
		PhotoRefs:        d.PhotoRefs,
		EstimatedMinutes: d.EstimatedMinutes,
		EstimatedCost:    d.EstimatedCost,
		UpdatedAt:        d.UpdatedAt,
	}
}

type changeRequestResponse struct {
	ID             string     `json:"id"`
	IncidentID     string     `json:"incident_id"`
	DiagnosticID   string     `json:"diagnostic_id,omitempty"`
	Kind           string     `json:"kind"`
	RequesterID    string     `json:"requester_id"`
	Justification  string     `json:"justification"`
	EvidenceRefs   []string   `json:"evidence_refs"`
	Status         string     `json:"status"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	ResolutionNote string     `json:"resolution_note,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

func toChangeRequest(req incident.ChangeRequest) changeRequestResponse {
	return changeRequestResponse{
		ID:             req.ID,
		IncidentID:     req.IncidentID,
		DiagnosticID:   req.DiagnosticID,
		Kind:           string(req.Kind),
		RequesterID:    req.RequesterID,
		Justification:  req.Justification,
		EvidenceRefs:   req.EvidenceRefs,
		Status:         string(req.Status),
		ResolvedBy:     req.ResolvedBy,
		ResolutionNote: req.ResolutionNote,
		CreatedAt:      req.CreatedAt,
		ResolvedAt:     req.ResolvedAt,
	}
}

func toChangeRequests(in []incident.ChangeRequest) []changeRequestResponse {
	out := make([]changeRequestResponse, 0, len(in))
	for _, req := range in {
		out = append(out, toChangeRequest(req))
	}
	return out
}

type partsRequestResponse struct {
	ID          string                  `json:"id"`
	IncidentID  string                  `json:"incident_id"`
	RequesterID string                  `json:"requester_id"`
	Items       []incident.SelectedPart `json:"items"`
	Note        string                  `json:"note,omitempty"`
	Status      string                  `json:"status"`
	CreatedAt   time.Time               `json:"created_at"`
	ResolvedAt  *time.Time              `json:"resolved_at,omitempty"`
	ResolvedBy  string                  `json:"resolved_by,omitempty"`
}

func toPartsRequest(req incident.PartsRequest) partsRequestResponse {
	return partsRequestResponse{
		ID:          req.ID,
		IncidentID:  req.IncidentID,
		RequesterID: req.RequesterID,
		Items:       req.Items,
		Note:        req.Note,
		Status:      string(req.Status),
		CreatedAt:   req.CreatedAt,
		ResolvedAt:  req.ResolvedAt,
		ResolvedBy:  req.ResolvedBy,
	}
}

func toPartsRequests(in []incident.PartsRequest) []partsRequestResponse {
	out := make([]partsRequestResponse, 0, len(in))
	for _, req := range in {
		out = append(out, toPartsRequest(req))
	}
	return out
}

type decisionResponse struct {
	Incident      incidentResponse       `json:"incident"`
	Diagnostic    diagnosticResponse     `json:"diagnostic"`
	Resolution    string                 `json:"resolution"`
	Target        string                 `json:"target_status"`
	Gated         bool                   `json:"gated"`
	ChangeRequest *changeRequestResponse `json:"change_request,omitempty"`
	PartsRequest  *partsRequestResponse  `json:"parts_request,omitempty"`
}

func toDecision(out servicedesk.DiagnosticOutcome) decisionResponse {
	resp := decisionResponse{
		Incident:   toIncident(out.Incident),
		Diagnostic: toDiagnostic(out.Diagnostic),
		Resolution: string(out.Decision.Resolution),
		Target:     string(out.Decision.Target),
		Gated:      out.Decision.Gated,
	}
	if out.ChangeRequest != nil {
		cr := toChangeRequest(*out.ChangeRequest)
		resp.ChangeRequest = &cr
	}
	if out.PartsRequest != nil {
		pr := toPartsRequest(*out.PartsRequest)
		resp.PartsRequest = &pr
	}
	return resp
}

type detailResponse struct {
	Incident             incidentResponse       `json:"incident"`
	CurrentDiagnostic    *diagnosticResponse    `json:"current_diagnostic,omitempty"`
	PendingChangeRequest *changeRequestResponse `json:"pending_change_request,omitempty"`
	PartsRequests        []partsRequestResponse `json:"parts_requests"`
	Verifications        []verificationResponse `json:"verifications"`
}

func toDetail(d servicedesk.IncidentDetail) detailResponse {
	resp := detailResponse{
		Incident:      toIncident(d.Incident),
		PartsRequests: toPartsRequests(d.PartsRequests),
		Verifications: toVerifications(d.Verifications),
	}
	if d.CurrentDiagnostic != nil {
		diag := toDiagnostic(*d.CurrentDiagnostic)
		resp.CurrentDiagnostic = &diag
	}
	if d.PendingChangeRequest != nil {
		cr := toChangeRequest(*d.PendingChangeRequest)
		resp.PendingChangeRequest = &cr
	}
	return resp
}

type candidateResponse struct {
	Incident             incidentResponse `json:"incident"`
	DaysSinceRepair      int              `json:"days_since_repair"`
	WithinWarrantyWindow bool             `json:"within_warranty_window"`
}

func toCandidates(in []incident.RecurrenceCandidate) []candidateResponse {
	out := make([]candidateResponse, 0, len(in))
	for _, c := range in {
		out = append(out, candidateResponse{
			Incident:             toIncident(c.Incident),
			DaysSinceRepair:      c.DaysSinceRepair,
			WithinWarrantyWindow: c.WithinWarrantyWindow,
		})
	}
	return out
}

type verificationResponse struct {
	ID                  string    `json:"id"`
	IncidentID          string    `json:"incident_id"`
	PriorIncidentID     *string   `json:"prior_incident_id,omitempty"`
	IsRecurrence        bool      `json:"is_recurrence"`
	QualifiesForReentry *bool     `json:"qualifies_for_reentry,omitempty"`
	RejectionReason     *string   `json:"rejection_reason,omitempty"`
	Justification       string    `json:"justification"`
	DaysSinceRepair     int       `json:"days_since_repair"`
	VerifierID          string    `json:"verifier_id"`
	VerifiedAt          time.Time `json:"verified_at"`
}

func toVerification(v incident.RecurrenceVerification) verificationResponse {
	resp := verificationResponse{
		ID:                  v.ID,
		IncidentID:          v.IncidentID,
		PriorIncidentID:     v.PriorIncidentID,
		IsRecurrence:        v.IsRecurrence,
		QualifiesForReentry: v.QualifiesForReentry,
		Justification:       v.Justification,
		DaysSinceRepair:     v.DaysSinceRepair,
		VerifierID:          v.VerifierID,
		VerifiedAt:          v.VerifiedAt,
	}
	if v.RejectionReason != nil {
		reason := string(*v.RejectionReason)
		resp.RejectionReason = &reason
	}
	return resp
}

func toVerifications(in []incident.RecurrenceVerification) []verificationResponse {
	out := make([]verificationResponse, 0, len(in))
	for _, v := range in {
		out = append(out, toVerification(v))
	}
	return out
}

type observationResponse struct {
	Line      int        `json:"line"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	User      string     `json:"user,omitempty"`
	Message   string     `json:"message"`
	Malformed bool       `json:"malformed,omitempty"`
}

func toObservation(obs incident.Observation) observationResponse {
	return observationResponse{
		Line:      obs.Line,
		Timestamp: obs.Timestamp,
		User:      obs.User,
		Message:   obs.Message,
		Malformed: obs.Malformed,
	}
}

type eventResponse struct {
	Kind        string               `json:"kind"`
	Title       string               `json:"title"`
	Description string               `json:"description,omitempty"`
	Actor       string               `json:"actor,omitempty"`
	Timestamp   *time.Time           `json:"timestamp"`
	Observation *observationResponse `json:"observation,omitempty"`
	SourceID    string               `json:"source_id"`
}

type timelineResponse struct {
	IncidentID string                `json:"incident_id"`
	Code       string                `json:"code"`
	Order      string                `json:"order"`
	Events     []eventResponse       `json:"events"`
	Malformed  []observationResponse `json:"malformed_observations"`
}

func toTimeline(tl servicedesk.Timeline) timelineResponse {
	resp := timelineResponse{
		IncidentID: tl.Incident.ID,
		Code:       tl.Incident.Code,
		Order:      string(tl.Order),
		Events:     make([]eventResponse, 0, len(tl.Events)),
		Malformed:  make([]observationResponse, 0, len(tl.Malformed)),
	}
	for _, event := range tl.Events {
		item := eventResponse{
			Kind:        string(event.Kind),
			Title:       event.Title,
			Description: event.Description,
			Actor:       event.Actor,
			Timestamp:   event.Timestamp,
			SourceID:    event.SourceID,
		}
		if event.Observation != nil {
			obs := toObservation(*event.Observation)
			item.Observation = &obs
		}
		resp.Events = append(resp.Events, item)
	}
	for _, obs := range tl.Malformed {
		resp.Malformed = append(resp.Malformed, toObservation(obs))
	}
	return resp
}
