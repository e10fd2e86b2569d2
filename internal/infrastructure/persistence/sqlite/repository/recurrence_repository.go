package repository

import (
	"context"

	"gorm.io/gorm"

	"repairdesk/internal/domain/incident"
	"repairdesk/internal/errs"
	"repairdesk/internal/infrastructure/persistence/sqlite/model"
	"repairdesk/internal/ports"
)

// RecurrenceVerificationRepository keeps every verification ever made; nothing is overwritten.
type RecurrenceVerificationRepository struct {
	base
}

var _ ports.RecurrenceVerificationRepository = (*RecurrenceVerificationRepository)(nil)

func NewRecurrenceVerificationRepository(db *gorm.DB) *RecurrenceVerificationRepository {
	return &RecurrenceVerificationRepository{base{db: db}}
}

func (r *RecurrenceVerificationRepository) Create(ctx context.Context, v incident.RecurrenceVerification) (incident.RecurrenceVerification, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return incident.RecurrenceVerification{}, err
	}

	var reason *string
	if v.RejectionReason != nil {
		value := string(*v.RejectionReason)
		reason = &value
	}
	row := model.RecurrenceVerification{
		ID:                  v.ID,
		IncidentID:          v.IncidentID,
		PriorIncidentID:     v.PriorIncidentID,
		IsRecurrence:        v.IsRecurrence,
		QualifiesForReentry: v.QualifiesForReentry,
		RejectionReason:     reason,
		Justification:       v.Justification,
		DaysSinceRepair:     v.DaysSinceRepair,
		VerifierID:          v.VerifierID,
		VerifiedAt:          v.VerifiedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return incident.RecurrenceVerification{}, errs.Wrap(err, "insert recurrence verification")
	}
	return mapVerification(row), nil
}

func (r *RecurrenceVerificationRepository) ListByIncident(ctx context.Context, incidentID string) ([]incident.RecurrenceVerification, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.RecurrenceVerification
	if err := db.Where("incident_id = ?", incidentID).Order("verified_at asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query recurrence verifications")
	}

	items := make([]incident.RecurrenceVerification, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapVerification(row))
	}
	return items, nil
}

func mapVerification(row model.RecurrenceVerification) incident.RecurrenceVerification {
	var reason *incident.RejectionReason
	if row.RejectionReason != nil {
		value := incident.RejectionReason(*row.RejectionReason)
		reason = &value
	}
	return incident.RecurrenceVerification{
		ID:                  row.ID,
		IncidentID:          row.IncidentID,
		PriorIncidentID:     row.PriorIncidentID,
		IsRecurrence:        row.IsRecurrence,
		QualifiesForReentry: row.QualifiesForReentry,
		RejectionReason:     reason,
		Justification:       row.Justification,
		DaysSinceRepair:     row.DaysSinceRepair,
		VerifierID:          row.VerifierID,
		VerifiedAt:          row.VerifiedAt,
	}
}
