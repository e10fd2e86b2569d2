package model

import "time"

type Photo struct {
	ID         string    `gorm:"column:id;type:text;primaryKey"`
	IncidentID string    `gorm:"column:incident_id;type:text;not null;index"`
	Kind       string    `gorm:"column:kind;type:text;not null"`
	Ref        string    `gorm:"column:ref;type:text;not null"`
	UploadedBy string    `gorm:"column:uploaded_by;type:text;not null"`
	TakenAt    time.Time `gorm:"column:taken_at;not null"`
}

func (Photo) TableName() string {
	return "photos"
}
