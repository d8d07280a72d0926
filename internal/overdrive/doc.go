// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

/*
Package overdrive integrates one Overdrive collection with the circulation
service.

An API owns the client credentials token, looks up patron tokens on
demand, and translates Overdrive's checkout, hold and fulfillment documents
into circulation values:

	api, err := overdrive.New(doer, store, collection, overdrive.SettingsFromConfig(cfg),
		overdrive.WithEventSink(publisher))
	loan, err := api.Checkout(ctx, patron, pin, pool, nil)
	f, err := api.Fulfill(ctx, patron, pin, pool, mechanism, returnURL)

Vendor error codes become circulation.Error kinds (see errors.go); any
response that fails validation is a *ValidationError.

Format handling lives in formats.go: internal format names map to delivery
mechanisms, loans lock in to one of the lock-in formats at first
fulfillment, and manifest formats hand the client a manifest link plus the
patron's token.

Availability is refreshed one title at a time (UpdateLicensePool), in
batches (FetchBookInfoList) or from the change feed (CirculationMonitor).
*/
package overdrive
