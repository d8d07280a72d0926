// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/tomtom215/circulation/internal/models"
)

// poolRow is a license_pools row; the identifier is flattened.
type poolRow struct {
	ID                 int64      `db:"id"`
	CollectionID       int64      `db:"collection_id"`
	DataSource         string     `db:"data_source"`
	IdentifierType     string     `db:"identifier_type"`
	Identifier         string     `db:"identifier"`
	LicensesOwned      int        `db:"licenses_owned"`
	LicensesAvailable  int        `db:"licenses_available"`
	LicensesReserved   int        `db:"licenses_reserved"`
	PatronsInHoldQueue int        `db:"patrons_in_hold_queue"`
	LastChecked        *time.Time `db:"last_checked"`
	WorkID             int64      `db:"work_id"`
	OpenAccess         bool       `db:"open_access"`
}

var poolColumns = []any{
	"id", "collection_id", "data_source", "identifier_type", "identifier",
	"licenses_owned", "licenses_available", "licenses_reserved", "patrons_in_hold_queue",
	"last_checked", "work_id", "open_access",
}

func (r *poolRow) model() *models.LicensePool {
	return &models.LicensePool{
		ID:                 r.ID,
		CollectionID:       r.CollectionID,
		DataSource:         r.DataSource,
		Identifier:         models.Identifier{Type: r.IdentifierType, Value: r.Identifier},
		LicensesOwned:      r.LicensesOwned,
		LicensesAvailable:  r.LicensesAvailable,
		LicensesReserved:   r.LicensesReserved,
		PatronsInHoldQueue: r.PatronsInHoldQueue,
		LastChecked:        r.LastChecked,
		WorkID:             r.WorkID,
		OpenAccess:         r.OpenAccess,
	}
}

func (s *Store) getPool(ctx context.Context, q sqlx.QueryerContext, where goqu.Ex) (*models.LicensePool, error) {
	var row poolRow
	if err := get(ctx, q, &row, s.from(tablePools).Select(poolColumns...).Where(where)); err != nil {
		return nil, err
	}
	return row.model(), nil
}

func poolKey(collectionID int64, dataSource string, id models.Identifier) goqu.Ex {
	return goqu.Ex{
		"collection_id":   collectionID,
		"data_source":     dataSource,
		"identifier_type": id.Type,
		"identifier":      id.Value,
	}
}

// GetPool returns a pool by id.
func (s *Store) GetPool(ctx context.Context, id int64) (*models.LicensePool, error) {
	return s.getPool(ctx, s.db, goqu.Ex{"id": id})
}

// FindPool returns a pool by natural key.
func (s *Store) FindPool(ctx context.Context, collectionID int64, dataSource string, id models.Identifier) (*models.LicensePool, error) {
	return s.getPool(ctx, s.db, poolKey(collectionID, dataSource, id))
}

// GetOrCreatePool looks a pool up by natural key, creating it when absent.
// A concurrent creator wins; the loser reads its row.
func (s *Store) GetOrCreatePool(ctx context.Context, collectionID int64, dataSource string, id models.Identifier) (*models.LicensePool, bool, error) {
	key := poolKey(collectionID, dataSource, id)
	pool, err := s.getPool(ctx, s.db, key)
	if err == nil {
		return pool, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, err
	}

	_, insertErr := exec(ctx, s.db, s.insert(tablePools).Rows(goqu.Record{
		"collection_id":   collectionID,
		"data_source":     dataSource,
		"identifier_type": id.Type,
		"identifier":      id.Value,
	}))
	pool, err = s.getPool(ctx, s.db, key)
	switch {
	case err == nil:
		return pool, insertErr == nil, nil
	case insertErr != nil:
		return nil, false, fmt.Errorf("insert license pool: %w", insertErr)
	default:
		return nil, false, err
	}
}

// UpdateAvailability writes counts and checked in one transaction and
// reports whether any count changed.
func (s *Store) UpdateAvailability(ctx context.Context, poolID int64, a models.Availability, checked time.Time) (*models.LicensePool, bool, error) {
	var (
		pool    *models.LicensePool
		changed bool
	)
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if pool, err = s.getPool(ctx, tx, goqu.Ex{"id": poolID}); err != nil {
			return err
		}
		changed = a.Apply(pool)
		checked = checked.UTC()
		pool.LastChecked = &checked
		_, err = exec(ctx, tx, s.update(tablePools).Set(goqu.Record{
			"licenses_owned":        pool.LicensesOwned,
			"licenses_available":    pool.LicensesAvailable,
			"licenses_reserved":     pool.LicensesReserved,
			"patrons_in_hold_queue": pool.PatronsInHoldQueue,
			"last_checked":          checked,
		}).Where(goqu.Ex{"id": poolID}))
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return pool, changed, nil
}

// SetWork binds a pool to a work.
func (s *Store) SetWork(ctx context.Context, poolID, workID int64) error {
	n, err := exec(ctx, s.db, s.update(tablePools).Set(goqu.Record{"work_id": workID}).Where(goqu.Ex{"id": poolID}))
	if err != nil {
		return fmt.Errorf("set work: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// mechanismRow is a delivery_mechanisms row.
type mechanismRow struct {
	ID            int64  `db:"id"`
	LicensePoolID int64  `db:"license_pool_id"`
	ContentType   string `db:"content_type"`
	DRMScheme     string `db:"drm_scheme"`
	RightsStatus  string `db:"rights_status"`
	Available     bool   `db:"available"`
}

var mechanismColumns = []any{"id", "license_pool_id", "content_type", "drm_scheme", "rights_status", "available"}

func (r *mechanismRow) model() models.LicensePoolDeliveryMechanism {
	return models.LicensePoolDeliveryMechanism{
		ID:            r.ID,
		LicensePoolID: r.LicensePoolID,
		Mechanism:     models.DeliveryMechanism{ContentType: r.ContentType, DRMScheme: r.DRMScheme},
		RightsStatus:  r.RightsStatus,
		Available:     r.Available,
	}
}

// GetDeliveryMechanism returns a pool delivery mechanism by id.
func (s *Store) GetDeliveryMechanism(ctx context.Context, id int64) (*models.LicensePoolDeliveryMechanism, error) {
	var row mechanismRow
	if err := get(ctx, s.db, &row, s.from(tableMechanisms).Select(mechanismColumns...).Where(goqu.Ex{"id": id})); err != nil {
		return nil, err
	}
	m := row.model()
	return &m, nil
}

// ListDeliveryMechanisms lists every mechanism recorded for a pool,
// available or not.
func (s *Store) ListDeliveryMechanisms(ctx context.Context, poolID int64) ([]models.LicensePoolDeliveryMechanism, error) {
	var rows []mechanismRow
	if err := selectAll(ctx, s.db, &rows, s.from(tableMechanisms).Select(mechanismColumns...).
		Where(goqu.Ex{"license_pool_id": poolID}).Order(goqu.I("id").Asc())); err != nil {
		return nil, fmt.Errorf("list delivery mechanisms: %w", err)
	}
	out := make([]models.LicensePoolDeliveryMechanism, len(rows))
	for i := range rows {
		out[i] = rows[i].model()
	}
	return out, nil
}

// SetDeliveryMechanism creates or updates the availability of one
// mechanism for a pool.
func (s *Store) SetDeliveryMechanism(ctx context.Context, poolID int64, m models.DeliveryMechanism, available bool) (*models.LicensePoolDeliveryMechanism, error) {
	where := goqu.Ex{"license_pool_id": poolID, "content_type": m.ContentType, "drm_scheme": m.DRMScheme}
	var out models.LicensePoolDeliveryMechanism
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var row mechanismRow
		err := get(ctx, tx, &row, s.from(tableMechanisms).Select(mechanismColumns...).Where(where))
		switch {
		case err == nil:
			if row.Available != available {
				if _, err := exec(ctx, tx, s.update(tableMechanisms).
					Set(goqu.Record{"available": available}).Where(goqu.Ex{"id": row.ID})); err != nil {
					return fmt.Errorf("update delivery mechanism: %w", err)
				}
				row.Available = available
			}
		case errors.Is(err, models.ErrNotFound):
			if _, err := exec(ctx, tx, s.insert(tableMechanisms).Rows(goqu.Record{
				"license_pool_id": poolID,
				"content_type":    m.ContentType,
				"drm_scheme":      m.DRMScheme,
				"rights_status":   models.RightsInCopyright,
				"available":       available,
			})); err != nil {
				return fmt.Errorf("insert delivery mechanism: %w", err)
			}
			if err := get(ctx, tx, &row, s.from(tableMechanisms).Select(mechanismColumns...).Where(where)); err != nil {
				return err
			}
		default:
			return err
		}
		out = row.model()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
