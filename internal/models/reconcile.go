// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package models

import (
	"context"
	"fmt"
	"sort"
)

// MechanismDiff is the change needed to make a pool's delivery mechanisms
// mirror a vendor's latest format list. Nothing is ever deleted: a
// mechanism the vendor stopped offering is marked unavailable.
type MechanismDiff struct {
	// MarkAvailable holds mechanisms that are new or currently unavailable.
	MarkAvailable []DeliveryMechanism
	// MarkUnavailable holds mechanisms currently available that the vendor
	// no longer offers.
	MarkUnavailable []DeliveryMechanism
	// Pinned is the subset of MarkUnavailable still referenced by a loan.
	Pinned []DeliveryMechanism
}

// Empty reports whether the diff changes nothing.
func (d MechanismDiff) Empty() bool {
	return len(d.MarkAvailable) == 0 && len(d.MarkUnavailable) == 0
}

// ReconcileDeliveryMechanisms compares the stored rows of one pool with the
// authoritative set reported by the vendor. inUse lists mechanisms with an
// active loan reference. Output slices are sorted for stable application.
func ReconcileDeliveryMechanisms(current []LicensePoolDeliveryMechanism, authoritative, inUse []DeliveryMechanism) MechanismDiff {
	want := make(map[DeliveryMechanism]bool, len(authoritative))
	for _, m := range authoritative {
		want[m] = true
	}
	pinned := make(map[DeliveryMechanism]bool, len(inUse))
	for _, m := range inUse {
		pinned[m] = true
	}

	var diff MechanismDiff
	seen := make(map[DeliveryMechanism]bool, len(current))
	for _, row := range current {
		seen[row.Mechanism] = true
		switch {
		case want[row.Mechanism] && !row.Available:
			diff.MarkAvailable = append(diff.MarkAvailable, row.Mechanism)
		case !want[row.Mechanism] && row.Available:
			diff.MarkUnavailable = append(diff.MarkUnavailable, row.Mechanism)
			if pinned[row.Mechanism] {
				diff.Pinned = append(diff.Pinned, row.Mechanism)
			}
		}
	}
	for m := range want {
		if !seen[m] {
			diff.MarkAvailable = append(diff.MarkAvailable, m)
		}
	}

	sortMechanisms(diff.MarkAvailable)
	sortMechanisms(diff.MarkUnavailable)
	sortMechanisms(diff.Pinned)
	return diff
}

// ApplyMechanismDiff writes diff to store for the given pool.
func ApplyMechanismDiff(ctx context.Context, store PoolStore, poolID int64, diff MechanismDiff) error {
	for _, m := range diff.MarkAvailable {
		if _, err := store.SetDeliveryMechanism(ctx, poolID, m, true); err != nil {
			return fmt.Errorf("mark %s available: %w", m, err)
		}
	}
	for _, m := range diff.MarkUnavailable {
		if _, err := store.SetDeliveryMechanism(ctx, poolID, m, false); err != nil {
			return fmt.Errorf("mark %s unavailable: %w", m, err)
		}
	}
	return nil
}

func sortMechanisms(ms []DeliveryMechanism) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].ContentType != ms[j].ContentType {
			return ms[i].ContentType < ms[j].ContentType
		}
		return ms[i].DRMScheme < ms[j].DRMScheme
	})
}

// SyncDeliveryMechanisms reconciles and applies the vendor's authoritative
// mechanism set for one pool.
func SyncDeliveryMechanisms(ctx context.Context, pools PoolStore, loans LoanStore, poolID int64, authoritative []DeliveryMechanism) (MechanismDiff, error) {
	current, err := pools.ListDeliveryMechanisms(ctx, poolID)
	if err != nil {
		return MechanismDiff{}, fmt.Errorf("list delivery mechanisms: %w", err)
	}
	inUse, err := loans.MechanismsInUse(ctx, poolID)
	if err != nil {
		return MechanismDiff{}, fmt.Errorf("list mechanisms in use: %w", err)
	}
	diff := ReconcileDeliveryMechanisms(current, authoritative, inUse)
	if diff.Empty() {
		return diff, nil
	}
	return diff, ApplyMechanismDiff(ctx, pools, poolID, diff)
}
