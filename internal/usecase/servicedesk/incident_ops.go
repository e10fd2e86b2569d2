package servicedesk

import (
	"context"
	"strings"

	"repairdesk/internal/domain/incident"
	"repairdesk/internal/errs"
	"repairdesk/internal/ports"
)

type CreateIncidentInput struct {
	CustomerID         string
	ProductID          string
	ProblemDescription string
	EntryChannel       string
	DeliveryAddressID  string
	WarrantyCoverage   bool
	Actor              string
}

type TransitionInput struct {
	IncidentID string
	Actor      string
	// ExpectedVersion, when set, must match the stored version.
	ExpectedVersion int64
}

type RejectIncidentInput struct {
	IncidentID      string
	Actor           string
	Reason          string
	ExpectedVersion int64
}

type ScheduleDeliveryInput struct {
	IncidentID      string
	Actor           string
	Shipment        bool
	ExpectedVersion int64
}

type AppendObservationInput struct {
	IncidentID string
	User       string
	Message    string
}

type PhotoInput struct {
	Kind string
	Ref  string
}

type AddPhotosInput struct {
	IncidentID string
	UploadedBy string
	Photos     []PhotoInput
}

// IncidentDetail is one incident with everything hanging off it.
type IncidentDetail struct {
	Incident             incident.Incident
	CurrentDiagnostic    *incident.Diagnostic
	PendingChangeRequest *incident.ChangeRequest
	PartsRequests        []incident.PartsRequest
	Verifications        []incident.RecurrenceVerification
}

type ListIncidentsInput struct {
	CustomerID string
	Status     string
	Limit      int
}

// CreateIncident registers a new incident and assigns its sequential code.
func (s *Service) CreateIncident(ctx context.Context, input CreateIncidentInput) (incident.Incident, error) {
	if err := checkContext(ctx); err != nil {
		return incident.Incident{}, err
	}

	customerID := strings.TrimSpace(input.CustomerID)
	if customerID == "" {
		return incident.Incident{}, errs.Validation("customer_id", "customer is required")
	}
	problem := strings.TrimSpace(input.ProblemDescription)
	if problem == "" {
		return incident.Incident{}, errs.Validation("problem_description", "problem description is required")
	}
	channel, err := incident.ParseEntryChannel(input.EntryChannel)
	if err != nil {
		return incident.Incident{}, err
	}
	deliveryAddress := optionalString(input.DeliveryAddressID)
	if channel == incident.ChannelLogistics && deliveryAddress == nil {
		return incident.Incident{}, errs.Validation("delivery_address_id", "logistics intake needs a delivery address")
	}

	now := s.clock()
	inc := incident.Incident{
		ID:                 s.newID(),
		CustomerID:         customerID,
		ProductID:          optionalString(input.ProductID),
		ProblemDescription: problem,
		EntryChannel:       channel,
		WarrantyCoverage:   input.WarrantyCoverage,
		Status:             incident.StatusRegistered,
		DeliveryAddressID:  deliveryAddress,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	var created incident.Incident
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		created, err = s.incidents.Create(txCtx, inc)
		if err != nil {
			return err
		}
		snapshot := incidentSnapshot(created)
		return s.changeLog.Append(txCtx, incident.ChangeLogEntry{
			IncidentID:    created.ID,
			Action:        incident.ActionCreate,
			Table:         tableIncidents,
			ChangedFields: createdFields(incidentFields, snapshot),
			After:         snapshot,
			Actor:         strings.TrimSpace(input.Actor),
			CreatedAt:     now,
		})
	})
	if err != nil {
		return incident.Incident{}, err
	}

	s.setCacheBestEffort(ctx, created)
	return created, nil
}

// AdmitIncident moves a registered incident to the diagnosis queue.
func (s *Service) AdmitIncident(ctx context.Context, input TransitionInput) (incident.Incident, error) {
	return s.transition(ctx, "admit", input, incident.StatusPendingDiagnosis)
}

// StartDiagnosis puts a queued incident, or one whose parts arrived, on the bench.
func (s *Service) StartDiagnosis(ctx context.Context, input TransitionInput) (incident.Incident, error) {
	return s.transition(ctx, "start_diagnosis", input, incident.StatusInDiagnosis)
}

// MarkDelivered closes an incident and stamps the delivery time the warranty
// window is counted from.
func (s *Service) MarkDelivered(ctx context.Context, input TransitionInput) (incident.Incident, error) {
	return s.mutateIncident(ctx, "deliver", input.IncidentID, input.Actor, input.ExpectedVersion, func(inc *incident.Incident) error {
		if err := incident.ValidateTransition(inc.Status, incident.StatusDelivered); err != nil {
			return err
		}
		deliveredAt := s.clock()
		inc.Status = incident.StatusDelivered
		inc.DeliveredAt = &deliveredAt
		return nil
	})
}

// ScheduleDelivery queues a finished incident for pickup or for a logistics shipment.
func (s *Service) ScheduleDelivery(ctx context.Context, input ScheduleDeliveryInput) (incident.Incident, error) {
	target := incident.StatusPendingDelivery
	if input.Shipment {
		target = incident.StatusLogisticsShipment
	}
	return s.mutateIncident(ctx, "schedule_delivery", input.IncidentID, input.Actor, input.ExpectedVersion, func(inc *incident.Incident) error {
		if target == incident.StatusLogisticsShipment && inc.DeliveryAddressID == nil {
			return errs.Validation("delivery_address_id", "a shipment needs a delivery address")
		}
		if err := incident.ValidateTransition(inc.Status, target); err != nil {
			return err
		}
		inc.Status = target
		return nil
	})
}

// RejectIncident closes an incident without repair. The reason goes to the
// observation log so it shows next to the status change in the timeline.
func (s *Service) RejectIncident(ctx context.Context, input RejectIncidentInput) (incident.Incident, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return incident.Incident{}, errs.Validation("reason", "a rejection reason is required")
	}
	actor := strings.TrimSpace(input.Actor)
	if actor == "" {
		return incident.Incident{}, errs.Validation("actor", "actor is required")
	}
	return s.mutateIncident(ctx, "reject", input.IncidentID, actor, input.ExpectedVersion, func(inc *incident.Incident) error {
		if err := incident.ValidateTransition(inc.Status, incident.StatusRejected); err != nil {
			return err
		}
		inc.Status = incident.StatusRejected
		inc.ObservationLog = appendObservationLine(inc.ObservationLog, incident.FormatObservation(s.clock(), actor, "Rechazado: "+reason, s.location))
		return nil
	})
}

func (s *Service) transition(ctx context.Context, operation string, input TransitionInput, target incident.Status) (incident.Incident, error) {
	return s.mutateIncident(ctx, operation, input.IncidentID, input.Actor, input.ExpectedVersion, func(inc *incident.Incident) error {
		if err := incident.ValidateTransition(inc.Status, target); err != nil {
			return err
		}
		inc.Status = target
		return nil
	})
}

// AppendObservation adds one timestamped line to the legacy observation log.
// Earlier lines are never rewritten.
func (s *Service) AppendObservation(ctx context.Context, input AppendObservationInput) (incident.Incident, error) {
	user := strings.TrimSpace(input.User)
	if user == "" {
		return incident.Incident{}, errs.Validation("user", "user is required")
	}
	if strings.TrimSpace(input.Message) == "" {
		return incident.Incident{}, errs.Validation("message", "message is required")
	}
	return s.mutateIncident(ctx, "append_observation", input.IncidentID, user, 0, func(inc *incident.Incident) error {
		inc.ObservationLog = appendObservationLine(inc.ObservationLog, incident.FormatObservation(s.clock(), user, input.Message, s.location))
		return nil
	})
}

func appendObservationLine(log string, line string) string {
	log = strings.TrimRight(log, "\r\n")
	if log == "" {
		return line
	}
	return log + "\n" + line
}

// AddPhotos stores one batch of photo references for an incident.
func (s *Service) AddPhotos(ctx context.Context, input AddPhotosInput) ([]incident.Photo, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	uploadedBy := strings.TrimSpace(input.UploadedBy)
	if uploadedBy == "" {
		return nil, errs.Validation("uploaded_by", "uploader is required")
	}
	if len(input.Photos) == 0 {
		return nil, errs.Validation("photos", "at least one photo is required")
	}

	now := s.clock()
	photos := make([]incident.Photo, 0, len(input.Photos))
	for i, in := range input.Photos {
		kind, err := parsePhotoKind(in.Kind)
		if err != nil {
			return nil, errs.Validationf("photos", "photo %d: %v", i, err)
		}
		ref := strings.TrimSpace(in.Ref)
		if ref == "" {
			return nil, errs.Validationf("photos", "photo %d: ref is required", i)
		}
		photos = append(photos, incident.Photo{
			ID:         s.newID(),
			IncidentID: input.IncidentID,
			Kind:       kind,
			Ref:        ref,
			UploadedBy: uploadedBy,
			TakenAt:    now,
		})
	}

	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.incidents.Get(txCtx, input.IncidentID); err != nil {
			return err
		}
		return s.photos.CreateBatch(txCtx, photos)
	})
	if err != nil {
		return nil, err
	}
	return photos, nil
}

func parsePhotoKind(raw string) (incident.PhotoKind, error) {
	switch kind := incident.PhotoKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case incident.PhotoIntake, incident.PhotoDiagnostic, incident.PhotoEvidence, incident.PhotoDelivery:
		return kind, nil
	default:
		return "", errs.Validationf("kind", "unknown photo kind %q", raw)
	}
}

func (s *Service) GetIncident(ctx context.Context, incidentID string) (incident.Incident, error) {
	if err := checkContext(ctx); err != nil {
		return incident.Incident{}, err
	}
	return s.incidents.Get(ctx, incidentID)
}

func (s *Service) GetIncidentDetail(ctx context.Context, incidentID string) (IncidentDetail, error) {
	if err := checkContext(ctx); err != nil {
		return IncidentDetail{}, err
	}

	inc, err := s.incidents.Get(ctx, incidentID)
	if err != nil {
		return IncidentDetail{}, err
	}
	detail := IncidentDetail{Incident: inc}

	if current, ok, err := s.diagnostics.Current(ctx, incidentID); err != nil {
		return IncidentDetail{}, err
	} else if ok {
		detail.CurrentDiagnostic = &current
	}
	if pending, ok, err := s.changeRequests.Pending(ctx, incidentID); err != nil {
		return IncidentDetail{}, err
	} else if ok {
		detail.PendingChangeRequest = &pending
	}
	if detail.PartsRequests, err = s.partsRequests.ListByIncident(ctx, incidentID); err != nil {
		return IncidentDetail{}, err
	}
	if detail.Verifications, err = s.verifications.ListByIncident(ctx, incidentID); err != nil {
		return IncidentDetail{}, err
	}
	return detail, nil
}

func (s *Service) ListIncidents(ctx context.Context, input ListIncidentsInput) ([]incident.Incident, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	filter := ports.IncidentFilter{
		CustomerID: strings.TrimSpace(input.CustomerID),
		Limit:      input.Limit,
	}
	if raw := strings.TrimSpace(input.Status); raw != "" {
		status, err := incident.ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}
	return s.incidents.List(ctx, filter)
}

func optionalString(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
