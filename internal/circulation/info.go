// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package circulation

import (
	"time"

	"github.com/tomtom215/circulation/internal/models"
)

// LoanInfo summarizes a loan as the vendor reports it. It is produced fresh
// by every vendor call and never stored.
type LoanInfo struct {
	CollectionID   int64      `json:"collection_id"`
	DataSource     string     `json:"data_source"`
	IdentifierType string     `json:"identifier_type"`
	Identifier     string     `json:"identifier"`
	Start          *time.Time `json:"start,omitempty"`
	End            *time.Time `json:"end,omitempty"`
	// LockedTo is set when the vendor will only deliver one mechanism.
	LockedTo *models.DeliveryMechanism `json:"locked_to,omitempty"`
	// Formats lists every internal mechanism the vendor currently offers
	// for this loan.
	Formats []models.DeliveryMechanism `json:"formats,omitempty"`
}

// HoldInfo summarizes a hold as the vendor reports it. A Position of zero
// means the title is ready to borrow.
type HoldInfo struct {
	CollectionID   int64      `json:"collection_id"`
	DataSource     string     `json:"data_source"`
	IdentifierType string     `json:"identifier_type"`
	Identifier     string     `json:"identifier"`
	Start          *time.Time `json:"start,omitempty"`
	End            *time.Time `json:"end,omitempty"`
	Position       *int       `json:"position,omitempty"`
}

// FulfillmentKind tells the caller how to deliver a Fulfillment.
type FulfillmentKind string

const (
	// FulfillRedirect sends the client straight to ContentLink.
	FulfillRedirect FulfillmentKind = "redirect"
	// FulfillFetch proxies ContentLink (e.g. an ACSM rights document).
	FulfillFetch FulfillmentKind = "fetch"
	// FulfillManifest hands the client a link plus the vendor credentials
	// needed to fetch the manifest itself.
	FulfillManifest FulfillmentKind = "manifest"
)

// Fulfillment is the outcome of a fulfill call.
type Fulfillment struct {
	Kind           FulfillmentKind `json:"type"`
	CollectionID   int64           `json:"collection_id"`
	DataSource     string          `json:"data_source"`
	IdentifierType string          `json:"identifier_type"`
	Identifier     string          `json:"identifier"`
	ContentLink    string          `json:"content_link"`
	ContentType    string          `json:"content_type,omitempty"`

	// Manifest fulfillment only. The access token is a patron credential
	// and is never logged.
	ScopeString string `json:"scope_string,omitempty"`
	AccessToken string `json:"-"`
}

// ManifestHeaders returns the headers a client needs to fetch a manifest.
func (f *Fulfillment) ManifestHeaders() map[string]string {
	if f.Kind != FulfillManifest {
		return nil
	}
	return map[string]string{
		"Location":                         f.ContentLink,
		"X-Overdrive-Scope":                f.ScopeString,
		"X-Overdrive-Patron-Authorization": "Bearer " + f.AccessToken,
	}
}
