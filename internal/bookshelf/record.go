// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package bookshelf

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/models"
)

// RecordLoan writes the local loan for a vendor-reported loan and reports
// whether it was created. Formats the vendor lists for the loan replace the
// pool's delivery mechanisms. A lock-in reported by the vendor becomes the
// loan's fulfillment; otherwise an existing fulfillment is kept.
func RecordLoan(ctx context.Context, store models.Store, patron *models.Patron, pool *models.LicensePool, info *circulation.LoanInfo) (*models.Loan, bool, error) {
	loan := &models.Loan{
		PatronID:      patron.ID,
		LicensePoolID: pool.ID,
		Start:         info.Start,
		End:           info.End,
	}
	existing, err := store.GetLoan(ctx, patron.ID, pool.ID)
	switch {
	case err == nil:
		loan.FulfillmentID = existing.FulfillmentID
		loan.ExternalIdentifier = existing.ExternalIdentifier
	case !errors.Is(err, models.ErrNotFound):
		return nil, false, fmt.Errorf("load loan: %w", err)
	}

	if len(info.Formats) > 0 {
		if _, err := models.SyncDeliveryMechanisms(ctx, store, store, pool.ID, info.Formats); err != nil {
			return nil, false, fmt.Errorf("sync delivery mechanisms: %w", err)
		}
	}

	if info.LockedTo != nil {
		row, err := store.SetDeliveryMechanism(ctx, pool.ID, *info.LockedTo, true)
		if err != nil {
			return nil, false, fmt.Errorf("record locked-in mechanism: %w", err)
		}
		loan.FulfillmentID = row.ID
	}

	stored, created, err := store.PutLoan(ctx, loan)
	if err != nil {
		return nil, false, fmt.Errorf("store loan: %w", err)
	}
	return stored, created, nil
}

// RecordHold writes the local hold for a vendor-reported hold and reports
// whether it was created.
func RecordHold(ctx context.Context, store models.HoldStore, patron *models.Patron, pool *models.LicensePool, info *circulation.HoldInfo) (*models.Hold, bool, error) {
	stored, created, err := store.PutHold(ctx, &models.Hold{
		PatronID:      patron.ID,
		LicensePoolID: pool.ID,
		Start:         info.Start,
		End:           info.End,
		Position:      info.Position,
	})
	if err != nil {
		return nil, false, fmt.Errorf("store hold: %w", err)
	}
	return stored, created, nil
}
