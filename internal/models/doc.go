// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

/*
Package models defines the persisted circulation entities and the storage
contract the vendor integrations depend on.

Entities:

  - Patron, Library: read-only identity data owned by the upstream layer
  - Collection: one vendor account; Advantage collections have a parent
  - Credential: typed, expiring vendor token keyed by CredentialKey
  - LicensePool: a title within a collection plus its circulation counts
  - DeliveryMechanism, LicensePoolDeliveryMechanism: formats and their
    current availability per pool
  - Loan, Hold: a patron's borrow or queue position for one pool

Storage is split into small interfaces (CredentialStore, PatronStore,
PoolStore, LoanStore, HoldStore) composed into Store. MemoryStore is the
in-process implementation; the database package provides the SQL one.

ReconcileDeliveryMechanisms is a pure function computing which mechanisms
of a pool must be marked available or unavailable after a vendor response.
It never deletes rows, so mechanisms still referenced by a loan survive.
*/
package models
