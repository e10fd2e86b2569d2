package model

import (
	"time"

	"gorm.io/datatypes"
)

type ChangeRequest struct {
	ID             string         `gorm:"column:id;type:text;primaryKey"`
	IncidentID     string         `gorm:"column:incident_id;type:text;not null;index"`
	DiagnosticID   string         `gorm:"column:diagnostic_id;type:text;not null;default:''"`
	Kind           string         `gorm:"column:kind;type:text;not null"`
	RequesterID    string         `gorm:"column:requester_id;type:text;not null"`
	Justification  string         `gorm:"column:justification;type:text;not null"`
	EvidenceRefs   datatypes.JSON `gorm:"column:evidence_refs;not null"`
	Status         string         `gorm:"column:status;type:text;not null;index"`
	ResolvedBy     string         `gorm:"column:resolved_by;type:text;not null;default:''"`
	ResolutionNote string         `gorm:"column:resolution_note;type:text;not null;default:''"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null"`
	ResolvedAt     *time.Time     `gorm:"column:resolved_at"`
}

func (ChangeRequest) TableName() string {
	return "change_requests"
}
