package repository

import (
	"context"

	"gorm.io/gorm"

	"repairdesk/internal/domain/incident"
	"repairdesk/internal/errs"
	"repairdesk/internal/infrastructure/persistence/sqlite/model"
	"repairdesk/internal/ports"
)

type PhotoRepository struct {
	base
}

var _ ports.PhotoRepository = (*PhotoRepository)(nil)

func NewPhotoRepository(db *gorm.DB) *PhotoRepository {
	return &PhotoRepository{base{db: db}}
}

func (r *PhotoRepository) CreateBatch(ctx context.Context, photos []incident.Photo) error {
	if len(photos) == 0 {
		return nil
	}
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	rows := make([]model.Photo, 0, len(photos))
	for _, photo := range photos {
		rows = append(rows, model.Photo{
			ID:         photo.ID,
			IncidentID: photo.IncidentID,
			Kind:       string(photo.Kind),
			Ref:        photo.Ref,
			UploadedBy: photo.UploadedBy,
			TakenAt:    photo.TakenAt,
		})
	}
	if err := db.Create(&rows).Error; err != nil {
		return errs.Wrap(err, "insert photos")
	}
	return nil
}

func (r *PhotoRepository) ListByIncident(ctx context.Context, incidentID string) ([]incident.Photo, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Photo
	if err := db.Where("incident_id = ?", incidentID).Order("taken_at asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query photos")
	}

	items := make([]incident.Photo, 0, len(rows))
	for _, row := range rows {
		items = append(items, incident.Photo{
			ID:         row.ID,
			IncidentID: row.IncidentID,
			Kind:       incident.PhotoKind(row.Kind),
			Ref:        row.Ref,
			UploadedBy: row.UploadedBy,
			TakenAt:    row.TakenAt,
		})
	}
	return items, nil
}
