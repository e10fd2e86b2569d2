package model

import "time"

type Incident struct {
	ID                 string     `gorm:"column:id;type:text;primaryKey"`
	Seq                uint64     `gorm:"column:seq;not null;uniqueIndex"`
	Code               string     `gorm:"column:code;type:text;not null;uniqueIndex"`
	CustomerID         string     `gorm:"column:customer_id;type:text;not null;index"`
	ProductID          *string    `gorm:"column:product_id;type:text"`
	ProblemDescription string     `gorm:"column:problem_description;type:text;not null"`
	EntryChannel       string     `gorm:"column:entry_channel;type:text;not null"`
	WarrantyCoverage   bool       `gorm:"column:warranty_coverage;not null;default:0"`
	Status             string     `gorm:"column:status;type:text;not null;index"`
	OriginIncidentID   *string    `gorm:"column:origin_incident_id;type:text"`
	DeliveryAddressID  *string    `gorm:"column:delivery_address_id;type:text"`
	DeliveredAt        *time.Time `gorm:"column:delivered_at"`
	ObservationLog     string     `gorm:"column:observation_log;type:text;not null;default:''"`
	Version            int64      `gorm:"column:version;not null;default:1"`
	CreatedAt          time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;not null"`
}

func (Incident) TableName() string {
	return "incidents"
}
