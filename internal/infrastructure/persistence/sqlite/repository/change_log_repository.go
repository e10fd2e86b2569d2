package repository

import (
	"context"

	"gorm.io/gorm"

	"repairdesk/internal/domain/incident"
	"repairdesk/internal/errs"
	"repairdesk/internal/infrastructure/persistence/sqlite/model"
	"repairdesk/internal/ports"
)

type ChangeLogRepository struct {
	base
}

var _ ports.ChangeLogRepository = (*ChangeLogRepository)(nil)

func NewChangeLogRepository(db *gorm.DB) *ChangeLogRepository {
	return &ChangeLogRepository{base{db: db}}
}

func (r *ChangeLogRepository) Append(ctx context.Context, entry incident.ChangeLogEntry) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	fields, err := encodeList(entry.ChangedFields)
	if err != nil {
		return err
	}
	before, err := encodeMap(entry.Before)
	if err != nil {
		return err
	}
	after, err := encodeMap(entry.After)
	if err != nil {
		return err
	}

	row := model.ChangeLog{
		IncidentID:    entry.IncidentID,
		Action:        string(entry.Action),
		EntityTable:   entry.Table,
		ChangedFields: fields,
		BeforeValues:  before,
		AfterValues:   after,
		Actor:         entry.Actor,
		CreatedAt:     entry.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert change log entry")
	}
	return nil
}

func (r *ChangeLogRepository) ListByIncident(ctx context.Context, incidentID string) ([]incident.ChangeLogEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.ChangeLog
	if err := db.Where("incident_id = ?", incidentID).Order("change_log_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query change log")
	}

	items := make([]incident.ChangeLogEntry, 0, len(rows))
	for _, row := range rows {
		fields, err := decodeJSON[[]string](row.ChangedFields, "change log fields")
		if err != nil {
			return nil, err
		}
		before, err := decodeJSON[map[string]string](row.BeforeValues, "change log before values")
		if err != nil {
			return nil, err
		}
		after, err := decodeJSON[map[string]string](row.AfterValues, "change log after values")
		if err != nil {
			return nil, err
		}
		items = append(items, incident.ChangeLogEntry{
			ID:            row.ChangeLogID,
			IncidentID:    row.IncidentID,
			Action:        incident.ChangeAction(row.Action),
			Table:         row.EntityTable,
			ChangedFields: fields,
			Before:        before,
			After:         after,
			Actor:         row.Actor,
			CreatedAt:     row.CreatedAt,
		})
	}
	return items, nil
}
