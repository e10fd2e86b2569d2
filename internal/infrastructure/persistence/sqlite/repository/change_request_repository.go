package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"repairdesk/internal/domain/incident"
	"repairdesk/internal/errs"
	"repairdesk/internal/infrastructure/persistence/sqlite/model"
	"repairdesk/internal/ports"
)

type ChangeRequestRepository struct {
	base
}

var _ ports.ChangeRequestRepository = (*ChangeRequestRepository)(nil)

func NewChangeRequestRepository(db *gorm.DB) *ChangeRequestRepository {
	return &ChangeRequestRepository{base{db: db}}
}

func (r *ChangeRequestRepository) Create(ctx context.Context, req incident.ChangeRequest) (incident.ChangeRequest, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return incident.ChangeRequest{}, err
	}

	evidence, err := encodeList(req.EvidenceRefs)
	if err != nil {
		return incident.ChangeRequest{}, err
	}
	row := model.ChangeRequest{
		ID:             req.ID,
		IncidentID:     req.IncidentID,
		DiagnosticID:   req.DiagnosticID,
		Kind:           string(req.Kind),
		RequesterID:    req.RequesterID,
		Justification:  req.Justification,
		EvidenceRefs:   evidence,
		Status:         string(req.Status),
		ResolvedBy:     req.ResolvedBy,
		ResolutionNote: req.ResolutionNote,
		CreatedAt:      req.CreatedAt,
		ResolvedAt:     req.ResolvedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return incident.ChangeRequest{}, errs.Wrap(err, "insert change request")
	}
	return mapChangeRequest(row)
}

func (r *ChangeRequestRepository) Get(ctx context.Context, id string) (incident.ChangeRequest, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return incident.ChangeRequest{}, err
	}

	var row model.ChangeRequest
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		return incident.ChangeRequest{}, notFoundOr(err, "change_request", id)
	}
	return mapChangeRequest(row)
}

func (r *ChangeRequestRepository) ListByIncident(ctx context.Context, incidentID string) ([]incident.ChangeRequest, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.ChangeRequest
	if err := db.Where("incident_id = ?", incidentID).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query change requests")
	}

	items := make([]incident.ChangeRequest, 0, len(rows))
	for _, row := range rows {
		req, err := mapChangeRequest(row)
		if err != nil {
			return nil, err
		}
		items = append(items, req)
	}
	return items, nil
}

func (r *ChangeRequestRepository) Pending(ctx context.Context, incidentID string) (incident.ChangeRequest, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return incident.ChangeRequest{}, false, err
	}

	var row model.ChangeRequest
	err = db.Where("incident_id = ? AND status = ?", incidentID, string(incident.ApprovalPending)).
		Order("created_at desc").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return incident.ChangeRequest{}, false, nil
	}
	if err != nil {
		return incident.ChangeRequest{}, false, errs.Wrap(err, "query pending change request")
	}

	req, err := mapChangeRequest(row)
	if err != nil {
		return incident.ChangeRequest{}, false, err
	}
	return req, true, nil
}

func (r *ChangeRequestRepository) Resolve(ctx context.Context, req incident.ChangeRequest) (incident.ChangeRequest, error) {
	var resolved incident.ChangeRequest
	err := r.inTx(ctx, func(_ context.Context, db *gorm.DB) error {
		result := db.Model(&model.ChangeRequest{}).
			Where("id = ? AND status = ?", req.ID, string(incident.ApprovalPending)).
			Updates(map[string]any{
				"status":          string(req.Status),
				"resolved_by":     req.ResolvedBy,
				"resolution_note": req.ResolutionNote,
				"resolved_at":     req.ResolvedAt,
			})
		if result.Error != nil {
			return errs.Wrap(result.Error, "resolve change request")
		}
		if result.RowsAffected == 0 {
			return staleOrMissing(db, &model.ChangeRequest{}, "change_request", req.ID, "change request was already resolved")
		}

		var row model.ChangeRequest
		if err := db.Where("id = ?", req.ID).Take(&row).Error; err != nil {
			return notFoundOr(err, "change_request", req.ID)
		}
		var err error
		resolved, err = mapChangeRequest(row)
		return err
	})
	if err != nil {
		return incident.ChangeRequest{}, err
	}
	return resolved, nil
}

func mapChangeRequest(row model.ChangeRequest) (incident.ChangeRequest, error) {
	evidence, err := decodeJSON[[]string](row.EvidenceRefs, "change request evidence")
	if err != nil {
		return incident.ChangeRequest{}, err
	}
	return incident.ChangeRequest{
		ID:             row.ID,
		IncidentID:     row.IncidentID,
		DiagnosticID:   row.DiagnosticID,
		Kind:           incident.ChangeKind(row.Kind),
		RequesterID:    row.RequesterID,
		Justification:  row.Justification,
		EvidenceRefs:   evidence,
		Status:         incident.ApprovalStatus(row.Status),
		ResolvedBy:     row.ResolvedBy,
		ResolutionNote: row.ResolutionNote,
		CreatedAt:      row.CreatedAt,
		ResolvedAt:     row.ResolvedAt,
	}, nil
}
