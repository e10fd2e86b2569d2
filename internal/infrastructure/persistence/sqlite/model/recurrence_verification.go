package model

import "time"

type RecurrenceVerification struct {
	ID                  string    `gorm:"column:id;type:text;primaryKey"`
	IncidentID          string    `gorm:"column:incident_id;type:text;not null;index"`
	PriorIncidentID     *string   `gorm:"column:prior_incident_id;type:text"`
	IsRecurrence        bool      `gorm:"column:is_recurrence;not null"`
	QualifiesForReentry *bool     `gorm:"column:qualifies_for_reentry"`
	RejectionReason     *string   `gorm:"column:rejection_reason;type:text"`
	Justification       string    `gorm:"column:justification;type:text;not null"`
	DaysSinceRepair     int       `gorm:"column:days_since_repair;not null"`
	VerifierID          string    `gorm:"column:verifier_id;type:text;not null"`
	VerifiedAt          time.Time `gorm:"column:verified_at;not null;index"`
}

func (RecurrenceVerification) TableName() string {
	return "recurrence_verifications"
}
