// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

/*
Package api exposes the circulation controller contract over HTTP.

Routes (all under /api/v1 require a bearer token, see package auth):

	GET    /api/v1/patrons/{patronID}/loans                  local loans
	POST   /api/v1/patrons/{patronID}/loans                  borrow; falls through to a hold
	DELETE /api/v1/patrons/{patronID}/loans/{poolID}         return
	GET    /api/v1/patrons/{patronID}/loans/{poolID}/fulfill fulfill (?mechanism=<delivery mechanism id>)
	GET    /api/v1/patrons/{patronID}/holds                  local holds
	POST   /api/v1/patrons/{patronID}/holds                  place hold; a title already held answers with the local hold
	DELETE /api/v1/patrons/{patronID}/holds/{poolID}         release hold
	POST   /api/v1/patrons/{patronID}/sync                   bookshelf sync
	POST   /api/v1/pools/{poolID}/availability               availability refresh (staff)
	POST   /api/v1/titles/{titleID}/availability             refresh or create a pool by vendor id (staff)
	GET    /health
	GET    /metrics
	GET    /swagger/*                                        OpenAPI document (doc.json) and UI

The patron PIN travels in the X-Patron-Pin header and is never logged.

The vendor engine only talks to the vendor; this package keeps the local
loan and hold rows in step with each successful call. Every failure is an
application/problem+json document produced by circulation.Problem.
*/
package api
