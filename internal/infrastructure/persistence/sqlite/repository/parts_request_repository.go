package repository

import (
	"context"

	"gorm.io/gorm"

	"repairdesk/internal/domain/incident"
	"repairdesk/internal/errs"
	"repairdesk/internal/infrastructure/persistence/sqlite/model"
	"repairdesk/internal/ports"
)

type PartsRequestRepository struct {
	base
}

var _ ports.PartsRequestRepository = (*PartsRequestRepository)(nil)

func NewPartsRequestRepository(db *gorm.DB) *PartsRequestRepository {
	return &PartsRequestRepository{base{db: db}}
}

func (r *PartsRequestRepository) Create(ctx context.Context, req incident.PartsRequest) (incident.PartsRequest, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return incident.PartsRequest{}, err
	}

	items, err := encodeList(req.Items)
	if err != nil {
		return incident.PartsRequest{}, err
	}
	row := model.PartsRequest{
		ID:          req.ID,
		IncidentID:  req.IncidentID,
		RequesterID: req.RequesterID,
		Items:       items,
		Note:        req.Note,
		Status:      string(req.Status),
		CreatedAt:   req.CreatedAt,
		ResolvedAt:  req.ResolvedAt,
		ResolvedBy:  req.ResolvedBy,
	}
	if err := db.Create(&row).Error; err != nil {
		return incident.PartsRequest{}, errs.Wrap(err, "insert parts request")
	}
	return mapPartsRequest(row)
}

func (r *PartsRequestRepository) Get(ctx context.Context, id string) (incident.PartsRequest, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return incident.PartsRequest{}, err
	}

	var row model.PartsRequest
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		return incident.PartsRequest{}, notFoundOr(err, "parts_request", id)
	}
	return mapPartsRequest(row)
}

func (r *PartsRequestRepository) ListByIncident(ctx context.Context, incidentID string) ([]incident.PartsRequest, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.PartsRequest
	if err := db.Where("incident_id = ?", incidentID).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query parts requests")
	}

	items := make([]incident.PartsRequest, 0, len(rows))
	for _, row := range rows {
		req, err := mapPartsRequest(row)
		if err != nil {
			return nil, err
		}
		items = append(items, req)
	}
	return items, nil
}

func (r *PartsRequestRepository) Resolve(ctx context.Context, req incident.PartsRequest) (incident.PartsRequest, error) {
	var resolved incident.PartsRequest
	err := r.inTx(ctx, func(_ context.Context, db *gorm.DB) error {
		result := db.Model(&model.PartsRequest{}).
			Where("id = ? AND status = ?", req.ID, string(incident.PartsPending)).
			Updates(map[string]any{
				"status":      string(req.Status),
				"resolved_at": req.ResolvedAt,
				"resolved_by": req.ResolvedBy,
			})
		if result.Error != nil {
			return errs.Wrap(result.Error, "resolve parts request")
		}
		if result.RowsAffected == 0 {
			return staleOrMissing(db, &model.PartsRequest{}, "parts_request", req.ID, "parts request is no longer pending")
		}

		var row model.PartsRequest
		if err := db.Where("id = ?", req.ID).Take(&row).Error; err != nil {
			return notFoundOr(err, "parts_request", req.ID)
		}
		var err error
		resolved, err = mapPartsRequest(row)
		return err
	})
	if err != nil {
		return incident.PartsRequest{}, err
	}
	return resolved, nil
}

func mapPartsRequest(row model.PartsRequest) (incident.PartsRequest, error) {
	items, err := decodeJSON[[]incident.SelectedPart](row.Items, "parts request items")
	if err != nil {
		return incident.PartsRequest{}, err
	}
	return incident.PartsRequest{
		ID:          row.ID,
		IncidentID:  row.IncidentID,
		RequesterID: row.RequesterID,
		Items:       items,
		Note:        row.Note,
		Status:      incident.PartsRequestStatus(row.Status),
		CreatedAt:   row.CreatedAt,
		ResolvedAt:  row.ResolvedAt,
		ResolvedBy:  row.ResolvedBy,
	}, nil
}
