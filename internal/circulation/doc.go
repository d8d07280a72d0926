// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

/*
Package circulation defines the vocabulary shared by every vendor
integration: the closed taxonomy of circulation failures, the LoanInfo,
HoldInfo and Fulfillment values returned by vendor calls, and the analytics
events emitted when circulation state changes.

# Errors

Every semantic failure is an *Error carrying a Kind. Callers branch with
errors.Is against the package sentinels:

	loan, err := api.Checkout(ctx, patron, pin, pool, mechanism)
	switch {
	case errors.Is(err, circulation.ErrNoAvailableCopies):
		// place a hold instead
	case errors.Is(err, circulation.ErrPatronLoanLimitReached):
		// tell the patron
	}

Problem converts any error into an RFC 7807 document for the API layer.
Raw vendor detail is attached only in debug mode.

# Events

Engines publish an Event through an EventSink after each successful state
change. Publishing never fails the circulation operation.
*/
package circulation
