package model

import (
	"time"

	"gorm.io/datatypes"
)

type ChangeLog struct {
	ChangeLogID   uint64         `gorm:"column:change_log_id;primaryKey;autoIncrement"`
	IncidentID    string         `gorm:"column:incident_id;type:text;not null;index"`
	Action        string         `gorm:"column:action;type:text;not null"`
	EntityTable   string         `gorm:"column:entity_table;type:text;not null"`
	ChangedFields datatypes.JSON `gorm:"column:changed_fields;not null"`
	BeforeValues  datatypes.JSON `gorm:"column:before_values;not null"`
	AfterValues   datatypes.JSON `gorm:"column:after_values;not null"`
	Actor         string         `gorm:"column:actor;type:text;not null"`
	CreatedAt     time.Time      `gorm:"column:created_at;not null;index"`
}

func (ChangeLog) TableName() string {
	return "change_log"
}
