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

var (
	loanColumns = []any{"id", "patron_id", "license_pool_id", "start_at", "end_at", "fulfillment_id", "external_identifier"}
	holdColumns = []any{"id", "patron_id", "license_pool_id", "start_at", "end_at", "position"}
)

func patronPool(patronID, poolID int64) goqu.Ex {
	return goqu.Ex{"patron_id": patronID, "license_pool_id": poolID}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// GetLoan returns the patron's loan of a pool.
func (s *Store) GetLoan(ctx context.Context, patronID, poolID int64) (*models.Loan, error) {
	var l models.Loan
	if err := get(ctx, s.db, &l, s.from(tableLoans).Select(loanColumns...).Where(patronPool(patronID, poolID))); err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLoans lists a patron's loans in creation order.
func (s *Store) ListLoans(ctx context.Context, patronID int64) ([]models.Loan, error) {
	var out []models.Loan
	if err := selectAll(ctx, s.db, &out, s.from(tableLoans).Select(loanColumns...).
		Where(goqu.Ex{"patron_id": patronID}).Order(goqu.I("id").Asc())); err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	return out, nil
}

// PutLoan inserts or updates the loan for (l.PatronID, l.LicensePoolID)
// and reports whether it was created.
func (s *Store) PutLoan(ctx context.Context, l *models.Loan) (*models.Loan, bool, error) {
	var (
		out     models.Loan
		created bool
	)
	key := patronPool(l.PatronID, l.LicensePoolID)
	record := goqu.Record{
		"start_at":            utcPtr(l.Start),
		"end_at":              utcPtr(l.End),
		"fulfillment_id":      l.FulfillmentID,
		"external_identifier": l.ExternalIdentifier,
	}
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var existing models.Loan
		err := get(ctx, tx, &existing, s.from(tableLoans).Select(loanColumns...).Where(key))
		switch {
		case err == nil:
			if _, err := exec(ctx, tx, s.update(tableLoans).Set(record).Where(goqu.Ex{"id": existing.ID})); err != nil {
				return fmt.Errorf("update loan: %w", err)
			}
		case errors.Is(err, models.ErrNotFound):
			record["patron_id"] = l.PatronID
			record["license_pool_id"] = l.LicensePoolID
			if _, err := exec(ctx, tx, s.insert(tableLoans).Rows(record)); err != nil {
				return fmt.Errorf("insert loan: %w", err)
			}
			created = true
		default:
			return err
		}
		return get(ctx, tx, &out, s.from(tableLoans).Select(loanColumns...).Where(key))
	})
	if err != nil {
		return nil, false, err
	}
	return &out, created, nil
}

// DeleteLoan removes a loan by id.
func (s *Store) DeleteLoan(ctx context.Context, id int64) error {
	n, err := exec(ctx, s.db, s.delete(tableLoans).Where(goqu.Ex{"id": id}))
	if err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// MechanismsInUse lists the mechanisms of a pool that some loan has been
// fulfilled with.
func (s *Store) MechanismsInUse(ctx context.Context, poolID int64) ([]models.DeliveryMechanism, error) {
	var out []models.DeliveryMechanism
	err := selectAll(ctx, s.db, &out, s.dialect.
		From(goqu.T(tableMechanisms).As("m")).
		Prepared(true).
		Join(goqu.T(tableLoans).As("l"), goqu.On(goqu.I("l.fulfillment_id").Eq(goqu.I("m.id")))).
		Where(goqu.I("l.license_pool_id").Eq(poolID)).
		SelectDistinct(goqu.I("m.content_type").As("content_type"), goqu.I("m.drm_scheme").As("drm_scheme")))
	if err != nil {
		return nil, fmt.Errorf("list mechanisms in use: %w", err)
	}
	return out, nil
}

// GetHold returns the patron's hold on a pool.
func (s *Store) GetHold(ctx context.Context, patronID, poolID int64) (*models.Hold, error) {
	var h models.Hold
	if err := get(ctx, s.db, &h, s.from(tableHolds).Select(holdColumns...).Where(patronPool(patronID, poolID))); err != nil {
		return nil, err
	}
	return &h, nil
}

// ListHolds lists a patron's holds in creation order.
func (s *Store) ListHolds(ctx context.Context, patronID int64) ([]models.Hold, error) {
	var out []models.Hold
	if err := selectAll(ctx, s.db, &out, s.from(tableHolds).Select(holdColumns...).
		Where(goqu.Ex{"patron_id": patronID}).Order(goqu.I("id").Asc())); err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}
	return out, nil
}

// PutHold inserts or updates the hold for (h.PatronID, h.LicensePoolID)
// and reports whether it was created.
func (s *Store) PutHold(ctx context.Context, h *models.Hold) (*models.Hold, bool, error) {
	var (
		out     models.Hold
		created bool
	)
	key := patronPool(h.PatronID, h.LicensePoolID)
	record := goqu.Record{
		"start_at": utcPtr(h.Start),
		"end_at":   utcPtr(h.End),
		"position": h.Position,
	}
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var existing models.Hold
		err := get(ctx, tx, &existing, s.from(tableHolds).Select(holdColumns...).Where(key))
		switch {
		case err == nil:
			if _, err := exec(ctx, tx, s.update(tableHolds).Set(record).Where(goqu.Ex{"id": existing.ID})); err != nil {
				return fmt.Errorf("update hold: %w", err)
			}
		case errors.Is(err, models.ErrNotFound):
			record["patron_id"] = h.PatronID
			record["license_pool_id"] = h.LicensePoolID
			if _, err := exec(ctx, tx, s.insert(tableHolds).Rows(record)); err != nil {
				return fmt.Errorf("insert hold: %w", err)
			}
			created = true
		default:
			return err
		}
		return get(ctx, tx, &out, s.from(tableHolds).Select(holdColumns...).Where(key))
	})
	if err != nil {
		return nil, false, err
	}
	return &out, created, nil
}

// DeleteHold removes a hold by id.
func (s *Store) DeleteHold(ctx context.Context, id int64) error {
	n, err := exec(ctx, s.db, s.delete(tableHolds).Where(goqu.Ex{"id": id}))
	if err != nil {
		return fmt.Errorf("delete hold: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
