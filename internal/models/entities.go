// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package models

import (
	"time"
)

// Data sources and identifier types known to this service.
const (
	DataSourceOverdrive     = "Overdrive"
	IdentifierTypeOverdrive = "Overdrive ID"
)

// Patron is a library user. Patrons are created by the upstream
// authentication layer and only read here.
type Patron struct {
	ID                      int64  `json:"id" db:"id"`
	LibraryID               int64  `json:"library_id" db:"library_id"`
	AuthorizationIdentifier string `json:"-" db:"authorization_identifier"`
}

// Library is the patron's home library.
type Library struct {
	ID        int64  `json:"id" db:"id"`
	ShortName string `json:"short_name" db:"short_name"`
}

// Collection is one vendor account. ParentID is set for Overdrive
// Advantage collections.
type Collection struct {
	ID                int64  `json:"id" db:"id"`
	Name              string `json:"name" db:"name"`
	DataSource        string `json:"data_source" db:"data_source"`
	ExternalAccountID string `json:"external_account_id" db:"external_account_id"`
	ParentID          int64  `json:"parent_id,omitempty" db:"parent_id"`
}

// Credential is a typed, expiring vendor token. PatronID and CollectionID
// are zero when the credential is not scoped to one.
type Credential struct {
	DataSource   string    `json:"data_source" db:"data_source"`
	Type         string    `json:"type" db:"type"`
	PatronID     int64     `json:"patron_id" db:"patron_id"`
	CollectionID int64     `json:"collection_id" db:"collection_id"`
	Credential   string    `json:"credential" db:"credential"`
	Expires      time.Time `json:"expires" db:"expires"`
}

// CredentialKey is the natural key of a Credential; at most one live
// credential exists per key.
type CredentialKey struct {
	DataSource   string
	Type         string
	PatronID     int64
	CollectionID int64
}

// Key returns the natural key of c.
func (c *Credential) Key() CredentialKey {
	return CredentialKey{DataSource: c.DataSource, Type: c.Type, PatronID: c.PatronID, CollectionID: c.CollectionID}
}

// Valid reports whether c holds a token that has not expired at now.
// Expired credentials stay in the store but are never used.
func (c *Credential) Valid(now time.Time) bool {
	return c != nil && c.Credential != "" && now.Before(c.Expires)
}

// Identifier is a vendor-scoped title identifier.
type Identifier struct {
	Type  string `json:"type" db:"identifier_type"`
	Value string `json:"identifier" db:"identifier"`
}

func (i Identifier) String() string { return i.Type + "/" + i.Value }

// LicensePool binds an Identifier to a Collection and carries its
// circulation counts. The counts are never negative.
type LicensePool struct {
	ID                 int64      `json:"id" db:"id"`
	CollectionID       int64      `json:"collection_id" db:"collection_id"`
	DataSource         string     `json:"data_source" db:"data_source"`
	Identifier         Identifier `json:"identifier"`
	LicensesOwned      int        `json:"licenses_owned" db:"licenses_owned"`
	LicensesAvailable  int        `json:"licenses_available" db:"licenses_available"`
	LicensesReserved   int        `json:"licenses_reserved" db:"licenses_reserved"`
	PatronsInHoldQueue int        `json:"patrons_in_hold_queue" db:"patrons_in_hold_queue"`
	LastChecked        *time.Time `json:"last_checked,omitempty" db:"last_checked"`
	WorkID             int64      `json:"work_id,omitempty" db:"work_id"`
	OpenAccess         bool       `json:"open_access" db:"open_access"`
}

// Availability is a counter update for a LicensePool. Nil fields leave the
// stored value untouched.
type Availability struct {
	LicensesOwned      *int
	LicensesAvailable  *int
	LicensesReserved   *int
	PatronsInHoldQueue *int
}

// Apply writes a onto p, clamping negative counts to zero, and reports
// whether any count changed.
func (a Availability) Apply(p *LicensePool) bool {
	changed := false
	set := func(dst *int, v *int) {
		if v == nil {
			return
		}
		n := max(*v, 0)
		if *dst != n {
			*dst = n
			changed = true
		}
	}
	set(&p.LicensesOwned, a.LicensesOwned)
	set(&p.LicensesAvailable, a.LicensesAvailable)
	set(&p.LicensesReserved, a.LicensesReserved)
	set(&p.PatronsInHoldQueue, a.PatronsInHoldQueue)
	return changed
}

// LicensePoolDeliveryMechanism records whether the vendor currently offers
// a pool in one DeliveryMechanism.
type LicensePoolDeliveryMechanism struct {
	ID            int64             `json:"id" db:"id"`
	LicensePoolID int64             `json:"license_pool_id" db:"license_pool_id"`
	Mechanism     DeliveryMechanism `json:"delivery_mechanism"`
	RightsStatus  string            `json:"rights_status" db:"rights_status"`
	Available     bool              `json:"available" db:"available"`
}

// Rights status recorded for vendor-licensed content.
const RightsInCopyright = "http://librarysimplified.org/terms/rights-status/in-copyright"

// Loan is a patron's current borrow of a pool. End is nil when the loan has
// no fixed due date. FulfillmentID references the chosen
// LicensePoolDeliveryMechanism.
type Loan struct {
	ID                 int64      `json:"id" db:"id"`
	PatronID           int64      `json:"patron_id" db:"patron_id"`
	LicensePoolID      int64      `json:"license_pool_id" db:"license_pool_id"`
	Start              *time.Time `json:"start,omitempty" db:"start_at"`
	End                *time.Time `json:"end,omitempty" db:"end_at"`
	FulfillmentID      int64      `json:"fulfillment_id,omitempty" db:"fulfillment_id"`
	ExternalIdentifier string     `json:"external_identifier,omitempty" db:"external_identifier"`
}

// Hold is a patron's place in a pool's queue. A zero Position means the
// hold is ready to borrow; nil means unknown.
type Hold struct {
	ID            int64      `json:"id" db:"id"`
	PatronID      int64      `json:"patron_id" db:"patron_id"`
	LicensePoolID int64      `json:"license_pool_id" db:"license_pool_id"`
	Start         *time.Time `json:"start,omitempty" db:"start_at"`
	End           *time.Time `json:"end,omitempty" db:"end_at"`
	Position      *int       `json:"position,omitempty" db:"position"`
}
