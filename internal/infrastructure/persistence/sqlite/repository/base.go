package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"repairdesk/internal/errs"
	"repairdesk/internal/ports"
)

type base struct {
	db *gorm.DB
}

func (b base) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return b.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

// inTx runs fn inside the transaction carried by ctx, opening one when there is none.
func (b base) inTx(ctx context.Context, fn func(ctx context.Context, db *gorm.DB) error) error {
	if ports.InTx(ctx) {
		db, err := b.dbFromContext(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, db)
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx), tx.WithContext(ctx))
	})
}

// staleOrMissing explains a guarded update that touched no row.
func staleOrMissing(db *gorm.DB, table any, resource string, id string, reason string) error {
	var count int64
	if err := db.Model(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return errs.Wrapf(err, "count %s", resource)
	}
	if count == 0 {
		return errs.NotFound(resource, id)
	}
	return errs.Conflict(resource, id, reason)
}

func notFoundOr(err error, resource string, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound(resource, id)
	}
	return errs.Wrapf(err, "query %s", resource)
}

func encodeList[T any](items []T) (datatypes.JSON, error) {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, errs.Wrap(err, "encode json column")
	}
	return datatypes.JSON(raw), nil
}

func encodeMap(values map[string]string) (datatypes.JSON, error) {
	if values == nil {
		values = map[string]string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, errs.Wrap(err, "encode json column")
	}
	return datatypes.JSON(raw), nil
}

func decodeJSON[T any](raw datatypes.JSON, column string) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, errs.Wrapf(err, "decode %s", column)
	}
	return out, nil
}
