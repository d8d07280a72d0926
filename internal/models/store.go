// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package models

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by store lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// CredentialStore persists vendor tokens.
type CredentialStore interface {
	GetCredential(ctx context.Context, key CredentialKey) (*Credential, error)
	// PutCredential replaces the credential stored under c.Key().
	PutCredential(ctx context.Context, c *Credential) error
	DeleteCredential(ctx context.Context, key CredentialKey) error
}

// PatronStore reads patrons and their libraries.
type PatronStore interface {
	GetPatron(ctx context.Context, id int64) (*Patron, error)
	GetLibrary(ctx context.Context, id int64) (*Library, error)
}

// PoolStore owns license pools and their delivery mechanisms.
type PoolStore interface {
	GetPool(ctx context.Context, id int64) (*LicensePool, error)
	FindPool(ctx context.Context, collectionID int64, dataSource string, id Identifier) (*LicensePool, error)
	// GetOrCreatePool looks a pool up by natural key, creating it when
	// absent. The bool reports creation.
	GetOrCreatePool(ctx context.Context, collectionID int64, dataSource string, id Identifier) (*LicensePool, bool, error)
	// UpdateAvailability writes the counts in a and checked in one update
	// and reports whether any count changed.
	UpdateAvailability(ctx context.Context, poolID int64, a Availability, checked time.Time) (*LicensePool, bool, error)
	SetWork(ctx context.Context, poolID, workID int64) error

	GetDeliveryMechanism(ctx context.Context, id int64) (*LicensePoolDeliveryMechanism, error)
	ListDeliveryMechanisms(ctx context.Context, poolID int64) ([]LicensePoolDeliveryMechanism, error)
	// SetDeliveryMechanism creates or updates the availability of one
	// mechanism for a pool.
	SetDeliveryMechanism(ctx context.Context, poolID int64, m DeliveryMechanism, available bool) (*LicensePoolDeliveryMechanism, error)
}

// LoanStore owns loans. There is at most one loan per (patron, pool).
type LoanStore interface {
	GetLoan(ctx context.Context, patronID, poolID int64) (*Loan, error)
	ListLoans(ctx context.Context, patronID int64) ([]Loan, error)
	// PutLoan inserts or updates the loan for (l.PatronID, l.LicensePoolID)
	// and reports whether it was created.
	PutLoan(ctx context.Context, l *Loan) (*Loan, bool, error)
	DeleteLoan(ctx context.Context, id int64) error
	// MechanismsInUse lists the delivery mechanisms of a pool that some
	// loan has been fulfilled with.
	MechanismsInUse(ctx context.Context, poolID int64) ([]DeliveryMechanism, error)
}

// HoldStore owns holds. There is at most one hold per (patron, pool).
type HoldStore interface {
	GetHold(ctx context.Context, patronID, poolID int64) (*Hold, error)
	ListHolds(ctx context.Context, patronID int64) ([]Hold, error)
	PutHold(ctx context.Context, h *Hold) (*Hold, bool, error)
	DeleteHold(ctx context.Context, id int64) error
}

// Store is the full persistence contract used by the circulation engine.
type Store interface {
	CredentialStore
	PatronStore
	PoolStore
	LoanStore
	HoldStore
}
