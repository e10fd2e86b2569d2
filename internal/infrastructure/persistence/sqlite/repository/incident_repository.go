package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"repairdesk/internal/domain/incident"
	"repairdesk/internal/errs"
	"repairdesk/internal/infrastructure/persistence/sqlite/model"
	"repairdesk/internal/ports"
)

const incidentCodeFormat = "INC-%06d"

type IncidentRepository struct {
	base
}

var _ ports.IncidentRepository = (*IncidentRepository)(nil)

func NewIncidentRepository(db *gorm.DB) *IncidentRepository {
	return &IncidentRepository{base{db: db}}
}

func (r *IncidentRepository) Create(ctx context.Context, inc incident.Incident) (incident.Incident, error) {
	var created incident.Incident
	err := r.inTx(ctx, func(_ context.Context, db *gorm.DB) error {
		var maxSeq uint64
		if err := db.Model(&model.Incident{}).Select("COALESCE(MAX(seq), 0)").Scan(&maxSeq).Error; err != nil {
			return errs.Wrap(err, "query incident sequence")
		}

		row := toIncidentRow(inc)
		row.Seq = maxSeq + 1
		row.Code = fmt.Sprintf(incidentCodeFormat, row.Seq)
		row.Version = 1
		if err := db.Create(&row).Error; err != nil {
			return errs.Wrap(err, "insert incident")
		}
		created = mapIncident(row)
		return nil
	})
	if err != nil {
		return incident.Incident{}, err
	}
	return created, nil
}

func (r *IncidentRepository) Get(ctx context.Context, id string) (incident.Incident, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return incident.Incident{}, err
	}

	var row model.Incident
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		return incident.Incident{}, notFoundOr(err, "incident", id)
	}
	return mapIncident(row), nil
}

func (r *IncidentRepository) List(ctx context.Context, filter ports.IncidentFilter) ([]incident.Incident, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Incident{})
	if customerID := strings.TrimSpace(filter.CustomerID); customerID != "" {
		query = query.Where("customer_id = ?", customerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.Incident
	if err := query.Order("seq desc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query incidents")
	}
	return mapIncidents(rows), nil
}

func (r *IncidentRepository) ListByCustomer(ctx context.Context, customerID string) ([]incident.Incident, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Incident
	if err := db.Where("customer_id = ?", customerID).Order("seq asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query customer incidents")
	}
	return mapIncidents(rows), nil
}

func (r *IncidentRepository) Update(ctx context.Context, inc incident.Incident) (incident.Incident, error) {
	if !inc.Status.Valid() {
		return incident.Incident{}, errs.Validationf("status", "unknown status %q", inc.Status)
	}

	var updated incident.Incident
	err := r.inTx(ctx, func(_ context.Context, db *gorm.DB) error {
		updatedAt := inc.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}

		result := db.Model(&model.Incident{}).
			Where("id = ? AND version = ?", inc.ID, inc.Version).
			Updates(map[string]any{
				"customer_id":         inc.CustomerID,
				"product_id":          inc.ProductID,
				"problem_description": inc.ProblemDescription,
				"entry_channel":       string(inc.EntryChannel),
				"warranty_coverage":   inc.WarrantyCoverage,
				"status":              string(inc.Status),
				"origin_incident_id":  inc.OriginIncidentID,
				"delivery_address_id": inc.DeliveryAddressID,
				"delivered_at":        inc.DeliveredAt,
				"observation_log":     inc.ObservationLog,
				"version":             inc.Version + 1,
				"updated_at":          updatedAt,
			})
		if result.Error != nil {
			return errs.Wrap(result.Error, "update incident")
		}
		if result.RowsAffected == 0 {
			return staleOrMissing(db, &model.Incident{}, "incident", inc.ID,
				fmt.Sprintf("incident changed since version %d, reload and retry", inc.Version))
		}

		var row model.Incident
		if err := db.Where("id = ?", inc.ID).Take(&row).Error; err != nil {
			return notFoundOr(err, "incident", inc.ID)
		}
		updated = mapIncident(row)
		return nil
	})
	if err != nil {
		return incident.Incident{}, err
	}
	return updated, nil
}

func toIncidentRow(inc incident.Incident) model.Incident {
	return model.Incident{
		ID:                 inc.ID,
		Code:               inc.Code,
		CustomerID:         inc.CustomerID,
		ProductID:          inc.ProductID,
		ProblemDescription: inc.ProblemDescription,
		EntryChannel:       string(inc.EntryChannel),
		WarrantyCoverage:   inc.WarrantyCoverage,
		Status:             string(inc.Status),
		OriginIncidentID:   inc.OriginIncidentID,
		DeliveryAddressID:  inc.DeliveryAddressID,
		DeliveredAt:        inc.DeliveredAt,
		ObservationLog:     inc.ObservationLog,
		Version:            inc.Version,
		CreatedAt:          inc.CreatedAt,
		UpdatedAt:          inc.UpdatedAt,
	}
}

func mapIncident(row model.Incident) incident.Incident {
	return incident.Incident{
		ID:                 row.ID,
		Code:               row.Code,
		CustomerID:         row.CustomerID,
		ProductID:          row.ProductID,
		ProblemDescription: row.ProblemDescription,
		EntryChannel:       incident.EntryChannel(row.EntryChannel),
		WarrantyCoverage:   row.WarrantyCoverage,
		Status:             incident.Status(row.Status),
		OriginIncidentID:   row.OriginIncidentID,
		DeliveryAddressID:  row.DeliveryAddressID,
		DeliveredAt:        row.DeliveredAt,
		ObservationLog:     row.ObservationLog,
		Version:            row.Version,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}

func mapIncidents(rows []model.Incident) []incident.Incident {
	items := make([]incident.Incident, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapIncident(row))
	}
	return items
}
