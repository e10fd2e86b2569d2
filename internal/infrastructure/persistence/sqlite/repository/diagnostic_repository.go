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

type DiagnosticRepository struct {
	base
}

var _ ports.DiagnosticRepository = (*DiagnosticRepository)(nil)

func NewDiagnosticRepository(db *gorm.DB) *DiagnosticRepository {
	return &DiagnosticRepository{base{db: db}}
}

func (r *DiagnosticRepository) Create(ctx context.Context, d incident.Diagnostic) (incident.Diagnostic, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return incident.Diagnostic{}, err
	}

	row, err := toDiagnosticRow(d)
	if err != nil {
		return incident.Diagnostic{}, err
	}
	if err := db.Create(&row).Error; err != nil {
		return incident.Diagnostic{}, errs.Wrap(err, "insert diagnostic")
	}
	return mapDiagnostic(row)
}

func (r *DiagnosticRepository) Update(ctx context.Context, d incident.Diagnostic) (incident.Diagnostic, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return incident.Diagnostic{}, err
	}

	row, err := toDiagnosticRow(d)
	if err != nil {
		return incident.Diagnostic{}, err
	}
	result := db.Model(&model.Diagnostic{}).
		Where("id = ?", d.ID).
		Updates(map[string]any{
			"technician_id":     row.TechnicianID,
			"state":             row.State,
			"superseded":        row.Superseded,
			"faults":            row.Faults,
			"causes":            row.Causes,
			"parts":             row.Parts,
			"requires_parts":    row.RequiresParts,
			"recommendations":   row.Recommendations,
			"resolution":        row.Resolution,
			"resolution_note":   row.ResolutionNote,
			"photo_refs":        row.PhotoRefs,
			"estimated_minutes": row.EstimatedMinutes,
			"estimated_cost":    row.EstimatedCost,
			"updated_at":        row.UpdatedAt,
		})
	if result.Error != nil {
		return incident.Diagnostic{}, errs.Wrap(result.Error, "update diagnostic")
	}
	if result.RowsAffected == 0 {
		return incident.Diagnostic{}, errs.NotFound("diagnostic", d.ID)
	}
	return r.Get(ctx, d.ID)
}

func (r *DiagnosticRepository) Get(ctx context.Context, id string) (incident.Diagnostic, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return incident.Diagnostic{}, err
	}

	var row model.Diagnostic
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		return incident.Diagnostic{}, notFoundOr(err, "diagnostic", id)
	}
	return mapDiagnostic(row)
}

func (r *DiagnosticRepository) Current(ctx context.Context, incidentID string) (incident.Diagnostic, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return incident.Diagnostic{}, false, err
	}

	var row model.Diagnostic
	err = db.Where("incident_id = ? AND superseded = ?", incidentID, false).
		Order("version desc").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return incident.Diagnostic{}, false, nil
	}
	if err != nil {
		return incident.Diagnostic{}, false, errs.Wrap(err, "query current diagnostic")
	}

	d, err := mapDiagnostic(row)
	if err != nil {
		return incident.Diagnostic{}, false, err
	}
	return d, true, nil
}

func (r *DiagnosticRepository) ListByIncident(ctx context.Context, incidentID string) ([]incident.Diagnostic, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Diagnostic
	if err := db.Where("incident_id = ?", incidentID).Order("version asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query diagnostics")
	}

	items := make([]incident.Diagnostic, 0, len(rows))
	for _, row := range rows {
		d, err := mapDiagnostic(row)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, nil
}

func (r *DiagnosticRepository) MarkSuperseded(ctx context.Context, id string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.Diagnostic{}).Where("id = ?", id).Update("superseded", true)
	if result.Error != nil {
		return errs.Wrap(result.Error, "mark diagnostic superseded")
	}
	if result.RowsAffected == 0 {
		return errs.NotFound("diagnostic", id)
	}
	return nil
}

func toDiagnosticRow(d incident.Diagnostic) (model.Diagnostic, error) {
	faults, err := encodeList(d.Faults)
	if err != nil {
		return model.Diagnostic{}, err
	}
	causes, err := encodeList(d.Causes)
	if err != nil {
		return model.Diagnostic{}, err
	}
	parts, err := encodeList(d.Parts)
	if err != nil {
		return model.Diagnostic{}, err
	}
	photos, err := encodeList(d.PhotoRefs)
	if err != nil {
		return model.Diagnostic{}, err
	}

	return model.Diagnostic{
		ID:               d.ID,
		IncidentID:       d.IncidentID,
		Version:          d.Version,
		TechnicianID:     d.TechnicianID,
		State:            string(d.State),
		Superseded:       d.Superseded,
		Faults:           faults,
		Causes:           causes,
		Parts:            parts,
		RequiresParts:    d.RequiresParts,
		Recommendations:  d.Recommendations,
		Resolution:       string(d.Resolution),
		ResolutionNote:   d.ResolutionNote,
		PhotoRefs:        photos,
		EstimatedMinutes: d.EstimatedMinutes,
		EstimatedCost:    d.EstimatedCost,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}, nil
}

func mapDiagnostic(row model.Diagnostic) (incident.Diagnostic, error) {
	faults, err := decodeJSON[[]string](row.Faults, "diagnostic faults")
	if err != nil {
		return incident.Diagnostic{}, err
	}
	causes, err := decodeJSON[[]string](row.Causes, "diagnostic causes")
	if err != nil {
		return incident.Diagnostic{}, err
	}
	parts, err := decodeJSON[[]incident.SelectedPart](row.Parts, "diagnostic parts")
	if err != nil {
		return incident.Diagnostic{}, err
	}
	photos, err := decodeJSON[[]string](row.PhotoRefs, "diagnostic photo refs")
	if err != nil {
		return incident.Diagnostic{}, err
	}

	return incident.Diagnostic{
		ID:               row.ID,
		IncidentID:       row.IncidentID,
		TechnicianID:     row.TechnicianID,
		Version:          row.Version,
		State:            incident.DiagnosticState(row.State),
		Superseded:       row.Superseded,
		Faults:           faults,
		Causes:           causes,
		Parts:            parts,
		RequiresParts:    row.RequiresParts,
		Recommendations:  row.Recommendations,
		Resolution:       incident.Resolution(row.Resolution),
		ResolutionNote:   row.ResolutionNote,
		PhotoRefs:        photos,
		EstimatedMinutes: row.EstimatedMinutes,
		EstimatedCost:    row.EstimatedCost,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}, nil
}
