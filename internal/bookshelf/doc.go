// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

/*
Package bookshelf aligns a patron's local loans and holds with what a vendor
reports.

Every Sync call fetches a fresh snapshot of the patron's loans and holds and
re-derives local membership from it:

  - titles in the snapshot get a pool (created on first sight) and a loan
    or hold row, updated in place when one exists
  - formats the vendor lists for a loan replace the pool's delivery
    mechanisms
  - local rows in a managed collection that the snapshot no longer lists
    are deleted
  - rows whose pool belongs to another data source or an unmanaged
    collection are never touched

Two calls against the same snapshot leave identical rows behind. A failure
to fetch loans aborts the sync before anything is written.

Usage:

	syncer := bookshelf.New(store, overdriveAPI, bookshelf.Scope{
		DataSource:    models.DataSourceOverdrive,
		CollectionIDs: []int64{collection.ID},
	})
	result, err := syncer.Sync(ctx, patron, pin)
*/
package bookshelf
