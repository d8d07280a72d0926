// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package models

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_PoolLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	id := Identifier{Type: IdentifierTypeOverdrive, Value: "abc"}

	pool, created, err := store.GetOrCreatePool(ctx, 1, DataSourceOverdrive, id)
	checkNoError(t, err)
	if !created {
		t.Error("first lookup should create the pool")
	}

	again, created, err := store.GetOrCreatePool(ctx, 1, DataSourceOverdrive, id)
	checkNoError(t, err)
	if created || again.ID != pool.ID {
		t.Errorf("second lookup should return pool %d, got %d (created=%v)", pool.ID, again.ID, created)
	}

	other, created, err := store.GetOrCreatePool(ctx, 2, DataSourceOverdrive, id)
	checkNoError(t, err)
	if !created || other.ID == pool.ID {
		t.Error("same identifier in another collection is a different pool")
	}

	_, err = store.FindPool(ctx, 3, DataSourceOverdrive, id)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_UpdateAvailabilityClamps(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	pool, _, _ := store.GetOrCreatePool(ctx, 1, DataSourceOverdrive, Identifier{Type: IdentifierTypeOverdrive, Value: "x"})

	owned, available, queue := 5, -2, 3
	now := time.Now()
	updated, changed, err := store.UpdateAvailability(ctx, pool.ID, Availability{
		LicensesOwned:      &owned,
		LicensesAvailable:  &available,
		PatronsInHoldQueue: &queue,
	}, now)
	checkNoError(t, err)
	if !changed {
		t.Error("expected change")
	}
	checkIntEqual(t, "owned", updated.LicensesOwned, 5)
	checkIntEqual(t, "available", updated.LicensesAvailable, 0)
	checkIntEqual(t, "queue", updated.PatronsInHoldQueue, 3)
	if updated.LastChecked == nil || !updated.LastChecked.Equal(now) {
		t.Errorf("last checked not recorded: %v", updated.LastChecked)
	}

	// Nil fields leave counts alone but still record the check.
	later := now.Add(time.Minute)
	updated, changed, err = store.UpdateAvailability(ctx, pool.ID, Availability{}, later)
	checkNoError(t, err)
	if changed {
		t.Error("empty availability should not change counts")
	}
	checkIntEqual(t, "owned", updated.LicensesOwned, 5)
	if !updated.LastChecked.Equal(later) {
		t.Error("last checked should advance")
	}
}

func TestMemoryStore_OneLoanPerPatronPool(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, created, err := store.PutLoan(ctx, &Loan{PatronID: 1, LicensePoolID: 2})
	checkNoError(t, err)
	if !created {
		t.Error("expected creation")
	}
	end := time.Now().Add(time.Hour)
	second, created, err := store.PutLoan(ctx, &Loan{PatronID: 1, LicensePoolID: 2, End: &end})
	checkNoError(t, err)
	if created || second.ID != first.ID {
		t.Error("second put should update the existing loan")
	}

	loans, _ := store.ListLoans(ctx, 1)
	checkIntEqual(t, "loans", len(loans), 1)

	checkNoError(t, store.DeleteLoan(ctx, first.ID))
	_, err = store.GetLoan(ctx, 1, 2)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStore_Credentials(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	cred := &Credential{DataSource: DataSourceOverdrive, Type: "OAuth Token", PatronID: 4, CollectionID: 1, Credential: "a", Expires: time.Now().Add(time.Hour)}

	checkNoError(t, store.PutCredential(ctx, cred))
	cred.Credential = "b"
	checkNoError(t, store.PutCredential(ctx, cred))

	got, err := store.GetCredential(ctx, cred.Key())
	checkNoError(t, err)
	if got.Credential != "b" {
		t.Errorf("expected replaced credential, got %q", got.Credential)
	}
	if !got.Valid(time.Now()) {
		t.Error("credential should be valid")
	}
	if got.Valid(time.Now().Add(2 * time.Hour)) {
		t.Error("credential should expire")
	}
}
