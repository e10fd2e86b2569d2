package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"repairdesk/internal/domain/incident"
	"repairdesk/internal/usecase/servicedesk"
)

type createIncidentRequest struct {
	CustomerID         string `json:"customer_id"`
	ProductID          string `json:"product_id"`
	ProblemDescription string `json:"problem_description"`
	EntryChannel       string `json:"entry_channel"`
	DeliveryAddressID  string `json:"delivery_address_id"`
	WarrantyCoverage   bool   `json:"warranty_coverage"`
	Actor              string `json:"actor"`
}

type transitionRequest struct {
	Actor           string `json:"actor"`
	ExpectedVersion int64  `json:"expected_version"`
}

type rejectRequest struct {
	Actor           string `json:"actor"`
	Reason          string `json:"reason"`
	ExpectedVersion int64  `json:"expected_version"`
}

type scheduleDeliveryRequest struct {
	Actor           string `json:"actor"`
	Shipment        bool   `json:"shipment"`
	ExpectedVersion int64  `json:"expected_version"`
}

type observationRequest struct {
	User    string `json:"user"`
	Message string `json:"message"`
}

type photosRequest struct {
	UploadedBy string `json:"uploaded_by"`
	Photos     []struct {
		Kind string `json:"kind"`
		Ref  string `json:"ref"`
	} `json:"photos"`
}

type changeRequestRequest struct {
	DiagnosticID  string   `json:"diagnostic_id"`
	Kind          string   `json:"kind"`
	RequesterID   string   `json:"requester_id"`
	Justification string   `json:"justification"`
	EvidenceRefs  []string `json:"evidence_refs"`
}

type resolveRequest struct {
	Outcome    string `json:"outcome"`
	ResolvedBy string `json:"resolved_by"`
	Note       string `json:"note"`
}

type partsRequestRequest struct {
	RequesterID string                  `json:"requester_id"`
	Items       []incident.SelectedPart `json:"items"`
	Note        string                  `json:"note"`
}

type resolvePartsRequest struct {
	ResolvedBy string `json:"resolved_by"`
}

type verificationRequest struct {
	VerifierID          string `json:"verifier_id"`
	PriorIncidentID     string `json:"prior_incident_id"`
	IsRecurrence        bool   `json:"is_recurrence"`
	QualifiesForReentry *bool  `json:"qualifies_for_reentry"`
	RejectionReason     string `json:"rejection_reason"`
	Justification       string `json:"justification"`
}

func incidentID(r *http.Request) string {
	return chi.URLParam(r, "incidentID")
}

func (h *handler) createIncident(w http.ResponseWriter, r *http.Request) {
	var req createIncidentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := h.svc.CreateIncident(r.Context(), servicedesk.CreateIncidentInput(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIncident(created))
}

func (h *handler) listIncidents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.svc.ListIncidents(r.Context(), servicedesk.ListIncidentsInput{
		CustomerID: r.URL.Query().Get("customer_id"),
		Status:     r.URL.Query().Get("status"),
		Limit:      limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncidents(list))
}

func (h *handler) getIncident(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetIncidentDetail(r.Context(), incidentID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetail(detail))
}

type transitionFunc func(*servicedesk.Service, *http.Request, servicedesk.TransitionInput) (incident.Incident, error)

func (h *handler) runTransition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	var req transitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := fn(h.svc, r, servicedesk.TransitionInput{
		IncidentID:      incidentID(r),
		Actor:           req.Actor,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncident(updated))
}

func (h *handler) admitIncident(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(s *servicedesk.Service, r *http.Request, in servicedesk.TransitionInput) (incident.Incident, error) {
		return s.AdmitIncident(r.Context(), in)
	})
}

func (h *handler) startDiagnosis(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(s *servicedesk.Service, r *http.Request, in servicedesk.TransitionInput) (incident.Incident, error) {
		return s.StartDiagnosis(r.Context(), in)
	})
}

func (h *handler) deliverIncident(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(s *servicedesk.Service, r *http.Request, in servicedesk.TransitionInput) (incident.Incident, error) {
		return s.MarkDelivered(r.Context(), in)
	})
}

func (h *handler) rejectIncident(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := h.svc.RejectIncident(r.Context(), servicedesk.RejectIncidentInput{
		IncidentID:      incidentID(r),
		Actor:           req.Actor,
		Reason:          req.Reason,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncident(updated))
}

func (h *handler) scheduleDelivery(w http.ResponseWriter, r *http.Request) {
	var req scheduleDeliveryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := h.svc.ScheduleDelivery(r.Context(), servicedesk.ScheduleDeliveryInput{
		IncidentID:      incidentID(r),
		Actor:           req.Actor,
		Shipment:        req.Shipment,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncident(updated))
}

func (h *handler) appendObservation(w http.ResponseWriter, r *http.Request) {
	var req observationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := h.svc.AppendObservation(r.Context(), servicedesk.AppendObservationInput{
		IncidentID: incidentID(r),
		User:       req.User,
		Message:    req.Message,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncident(updated))
}

func (h *handler) addPhotos(w http.ResponseWriter, r *http.Request) {
	var req photosRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	input := servicedesk.AddPhotosInput{IncidentID: incidentID(r), UploadedBy: req.UploadedBy}
	for _, photo := range req.Photos {
		input.Photos = append(input.Photos, servicedesk.PhotoInput{Kind: photo.Kind, Ref: photo.Ref})
	}
	photos, err := h.svc.AddPhotos(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"stored": len(photos)})
}

func (h *handler) runDecision(w http.ResponseWriter, r *http.Request) {
	var req diagnosticRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.svc.RunDiagnosticDecision(r.Context(), servicedesk.DiagnosticDecisionInput{
		IncidentID:      incidentID(r),
		Diagnostic:      req.input(),
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.saver != nil {
		h.saver.Discard(out.Incident.ID)
	}
	status := http.StatusOK
	if out.Decision.Gated {
		status = http.StatusAccepted
	}
	writeJSON(w, status, toDecision(out))
}

// saveDraft stages the draft for the auto-saver, or saves it right away when
// no auto-saver runs or ?now=true is given.
func (h *handler) saveDraft(w http.ResponseWriter, r *http.Request) {
	var req diagnosticRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if h.saver != nil && !queryBool(r, "now") {
		h.saver.Stage(incidentID(r), req.input())
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "staged"})
		return
	}
	saved, err := h.svc.SaveDiagnosticDraft(r.Context(), servicedesk.SaveDraftInput{IncidentID: incidentID(r), Diagnostic: req.input()})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDiagnostic(saved))
}

func (h *handler) listChangeRequests(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListChangeRequests(r.Context(), incidentID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChangeRequests(list))
}

func (h *handler) submitChangeRequest(w http.ResponseWriter, r *http.Request) {
	var req changeRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := h.svc.SubmitChangeRequest(r.Context(), servicedesk.SubmitChangeRequestInput{
		IncidentID:    incidentID(r),
		DiagnosticID:  req.DiagnosticID,
		Kind:          req.Kind,
		RequesterID:   req.RequesterID,
		Justification: req.Justification,
		EvidenceRefs:  req.EvidenceRefs,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChangeRequest(created))
}

func (h *handler) resolveChangeRequest(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.svc.ResolveChangeRequest(r.Context(), servicedesk.ResolveChangeRequestInput{
		ChangeRequestID: chi.URLParam(r, "changeRequestID"),
		Outcome:         req.Outcome,
		ResolvedBy:      req.ResolvedBy,
		Note:            req.Note,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"change_request": toChangeRequest(out.ChangeRequest),
		"incident":       toIncident(out.Incident),
	})
}

func (h *handler) listPartsRequests(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListPartsRequests(r.Context(), incidentID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPartsRequests(list))
}

func (h *handler) submitPartsRequest(w http.ResponseWriter, r *http.Request) {
	var req partsRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.svc.SubmitPartsRequest(r.Context(), servicedesk.SubmitPartsRequestInput{
		IncidentID:  incidentID(r),
		RequesterID: req.RequesterID,
		Items:       req.Items,
		Note:        req.Note,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"parts_request": toPartsRequest(out.PartsRequest),
		"incident":      toIncident(out.Incident),
	})
}

func (h *handler) fulfillPartsRequest(w http.ResponseWriter, r *http.Request) {
	h.resolveParts(w, r, (*servicedesk.Service).MarkPartsFulfilled)
}

func (h *handler) rejectPartsRequest(w http.ResponseWriter, r *http.Request) {
	h.resolveParts(w, r, (*servicedesk.Service).MarkPartsRejected)
}

type resolvePartsFunc func(*servicedesk.Service, context.Context, servicedesk.ResolvePartsRequestInput) (incident.PartsRequest, error)

func (h *handler) resolveParts(w http.ResponseWriter, r *http.Request, fn resolvePartsFunc) {
	var req resolvePartsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resolved, err := fn(h.svc, r.Context(), servicedesk.ResolvePartsRequestInput{
		PartsRequestID: chi.URLParam(r, "partsRequestID"),
		ResolvedBy:     req.ResolvedBy,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPartsRequest(resolved))
}

func (h *handler) listCandidates(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListRecurrenceCandidates(r.Context(), servicedesk.ListCandidatesInput{
		IncidentID:      incidentID(r),
		SameProductOnly: queryBool(r, "same_product"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCandidates(list))
}

func (h *handler) listVerifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListRecurrenceVerifications(r.Context(), incidentID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVerifications(list))
}

func (h *handler) runVerification(w http.ResponseWriter, r *http.Request) {
	var req verificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.svc.RunRecurrenceVerification(r.Context(), servicedesk.RecurrenceVerificationInput{
		IncidentID:          incidentID(r),
		VerifierID:          req.VerifierID,
		PriorIncidentID:     req.PriorIncidentID,
		IsRecurrence:        req.IsRecurrence,
		QualifiesForReentry: req.QualifiesForReentry,
		RejectionReason:     req.RejectionReason,
		Justification:       req.Justification,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"verification": toVerification(out.Verification),
		"incident":     toIncident(out.Incident),
	})
}

func (h *handler) timeline(w http.ResponseWriter, r *http.Request) {
	tl, err := h.svc.BuildAuditTimeline(r.Context(), servicedesk.TimelineInput{
		IncidentID: incidentID(r),
		Order:      r.URL.Query().Get("order"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeline(tl))
}
