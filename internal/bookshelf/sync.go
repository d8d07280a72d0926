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
	"github.com/tomtom215/circulation/internal/logging"
	"github.com/tomtom215/circulation/internal/metrics"
	"github.com/tomtom215/circulation/internal/models"
)

// ActivitySource reports a patron's current loans and holds at one vendor.
// An error fetching loans must be returned; a vendor that knows of no holds
// returns an empty slice.
type ActivitySource interface {
	PatronActivity(ctx context.Context, patron *models.Patron, pin string) ([]circulation.LoanInfo, []circulation.HoldInfo, error)
}

// Scope names the rows a Syncer owns: pools of DataSource in one of
// CollectionIDs.
type Scope struct {
	DataSource    string
	CollectionIDs []int64
}

func (s Scope) owns(pool *models.LicensePool) bool {
	return pool.DataSource == s.DataSource && s.managed(pool.CollectionID)
}

func (s Scope) managed(collectionID int64) bool {
	for _, id := range s.CollectionIDs {
		if id == collectionID {
			return true
		}
	}
	return false
}

// Changes counts what one sync did to one kind of row.
type Changes struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// Result reports a completed sync.
type Result struct {
	Loans Changes `json:"loans"`
	Holds Changes `json:"holds"`
	// Skipped counts snapshot entries outside the scope.
	Skipped int `json:"skipped"`
}

// Syncer reconciles local loans and holds with an ActivitySource.
type Syncer struct {
	store  models.Store
	source ActivitySource
	scope  Scope
}

// New creates a Syncer.
func New(store models.Store, source ActivitySource, scope Scope) *Syncer {
	return &Syncer{store: store, source: source, scope: scope}
}

// Sync fetches the patron's vendor activity and reconciles local rows with
// it.
func (s *Syncer) Sync(ctx context.Context, patron *models.Patron, pin string) (result Result, err error) {
	ctx = logging.ContextWithOperation(ctx, "bookshelf_sync")
	defer func() { metrics.RecordSync(err) }()

	loans, holds, err := s.source.PatronActivity(ctx, patron, pin)
	if err != nil {
		return Result{}, fmt.Errorf("fetch patron activity: %w", err)
	}

	keptLoans := make(map[int64]bool, len(loans))
	for i := range loans {
		pool, ok, err := s.pool(ctx, loans[i].CollectionID, loans[i].DataSource, loans[i].IdentifierType, loans[i].Identifier)
		if err != nil {
			return result, err
		}
		if !ok {
			result.Skipped++
			continue
		}
		_, created, err := RecordLoan(ctx, s.store, patron, pool, &loans[i])
		if err != nil {
			return result, err
		}
		keptLoans[pool.ID] = true
		count(&result.Loans, created)
	}
	if result.Loans.Deleted, err = s.deleteStaleLoans(ctx, patron, keptLoans); err != nil {
		return result, err
	}

	keptHolds := make(map[int64]bool, len(holds))
	for i := range holds {
		pool, ok, err := s.pool(ctx, holds[i].CollectionID, holds[i].DataSource, holds[i].IdentifierType, holds[i].Identifier)
		if err != nil {
			return result, err
		}
		if !ok {
			result.Skipped++
			continue
		}
		_, created, err := RecordHold(ctx, s.store, patron, pool, &holds[i])
		if err != nil {
			return result, err
		}
		keptHolds[pool.ID] = true
		count(&result.Holds, created)
	}
	if result.Holds.Deleted, err = s.deleteStaleHolds(ctx, patron, keptHolds); err != nil {
		return result, err
	}

	metrics.RecordSyncChanges("loan", result.Loans.Created, result.Loans.Updated, result.Loans.Deleted)
	metrics.RecordSyncChanges("hold", result.Holds.Created, result.Holds.Updated, result.Holds.Deleted)
	logging.Ctx(ctx).Info().
		Int64("patron_id", patron.ID).
		Int("loans", len(keptLoans)).
		Int("holds", len(keptHolds)).
		Int("loans_deleted", result.Loans.Deleted).
		Int("holds_deleted", result.Holds.Deleted).
		Msg("Bookshelf synced")
	return result, nil
}

func count(c *Changes, created bool) {
	if created {
		c.Created++
	} else {
		c.Updated++
	}
}

// pool resolves the pool of a snapshot entry, creating it on first sight.
// It reports false for entries outside the scope.
func (s *Syncer) pool(ctx context.Context, collectionID int64, dataSource, idType, idValue string) (*models.LicensePool, bool, error) {
	if dataSource != s.scope.DataSource || !s.scope.managed(collectionID) {
		logging.Ctx(ctx).Warn().
			Int64("collection_id", collectionID).
			Str("data_source", dataSource).
			Msg("Vendor reported activity outside the synced collections")
		return nil, false, nil
	}
	pool, _, err := s.store.GetOrCreatePool(ctx, collectionID, dataSource, models.Identifier{Type: idType, Value: idValue})
	if err != nil {
		return nil, false, fmt.Errorf("resolve pool %s: %w", idValue, err)
	}
	return pool, true, nil
}

func (s *Syncer) deleteStaleLoans(ctx context.Context, patron *models.Patron, kept map[int64]bool) (int, error) {
	local, err := s.store.ListLoans(ctx, patron.ID)
	if err != nil {
		return 0, fmt.Errorf("list loans: %w", err)
	}
	deleted := 0
	for _, l := range local {
		stale, err := s.stale(ctx, l.LicensePoolID, kept)
		if err != nil {
			return deleted, err
		}
		if !stale {
			continue
		}
		if err := s.store.DeleteLoan(ctx, l.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return deleted, fmt.Errorf("delete loan %d: %w", l.ID, err)
		}
		deleted++
	}
	return deleted, nil
}

func (s *Syncer) deleteStaleHolds(ctx context.Context, patron *models.Patron, kept map[int64]bool) (int, error) {
	local, err := s.store.ListHolds(ctx, patron.ID)
	if err != nil {
		return 0, fmt.Errorf("list holds: %w", err)
	}
	deleted := 0
	for _, h := range local {
		stale, err := s.stale(ctx, h.LicensePoolID, kept)
		if err != nil {
			return deleted, err
		}
		if !stale {
			continue
		}
		if err := s.store.DeleteHold(ctx, h.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return deleted, fmt.Errorf("delete hold %d: %w", h.ID, err)
		}
		deleted++
	}
	return deleted, nil
}

// stale reports whether a local row for poolID is owned by this syncer and
// missing from the snapshot.
func (s *Syncer) stale(ctx context.Context, poolID int64, kept map[int64]bool) (bool, error) {
	if kept[poolID] {
		return false, nil
	}
	pool, err := s.store.GetPool(ctx, poolID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load pool %d: %w", poolID, err)
	}
	return s.scope.owns(pool), nil
}
