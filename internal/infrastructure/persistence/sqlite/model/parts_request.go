package model

import (
	"time"

	"gorm.io/datatypes"
)

type PartsRequest struct {
	ID          string         `gorm:"column:id;type:text;primaryKey"`
	IncidentID  string         `gorm:"column:incident_id;type:text;not null;index"`
	RequesterID string         `gorm:"column:requester_id;type:text;not null"`
	Items       datatypes.JSON `gorm:"column:items;not null"`
	Note        string         `gorm:"column:note;type:text;not null;default:''"`
	Status      string         `gorm:"column:status;type:text;not null;index"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null"`
	ResolvedAt  *time.Time     `gorm:"column:resolved_at"`
	ResolvedBy  string         `gorm:"column:resolved_by;type:text;not null;default:''"`
}

func (PartsRequest) TableName() string {
	return "parts_requests"
}
