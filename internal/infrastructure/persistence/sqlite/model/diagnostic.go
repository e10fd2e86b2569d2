package model

import (
	"time"

	"gorm.io/datatypes"
)

type Diagnostic struct {
	ID               string         `gorm:"column:id;type:text;primaryKey"`
	IncidentID       string         `gorm:"column:incident_id;type:text;not null;index:idx_diagnostics_incident_version,priority:1"`
	Version          int            `gorm:"column:version;not null;index:idx_diagnostics_incident_version,priority:2"`
	TechnicianID     string         `gorm:"column:technician_id;type:text;not null"`
	State            string         `gorm:"column:state;type:text;not null"`
	Superseded       bool           `gorm:"column:superseded;not null;default:0"`
	Faults           datatypes.JSON `gorm:"column:faults;not null"`
	Causes           datatypes.JSON `gorm:"column:causes;not null"`
	Parts            datatypes.JSON `gorm:"column:parts;not null"`
	RequiresParts    bool           `gorm:"column:requires_parts;not null;default:0"`
	Recommendations  string         `gorm:"column:recommendations;type:text;not null;default:''"`
	Resolution       string         `gorm:"column:resolution;type:text;not null;default:''"`
	ResolutionNote   string         `gorm:"column:resolution_note;type:text;not null;default:''"`
	PhotoRefs        datatypes.JSON `gorm:"column:photo_refs;not null"`
	EstimatedMinutes int            `gorm:"column:estimated_minutes;not null;default:0"`
	EstimatedCost    float64        `gorm:"column:estimated_cost;not null;default:0"`
	CreatedAt        time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;not null"`
}

func (Diagnostic) TableName() string {
	return "diagnostics"
}
