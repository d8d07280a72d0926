// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package overdrive

import "time"

// Server families.
const (
	ServerProduction = "production"
	ServerTesting    = "testing"
)

// Hosts holds the base URLs of the four Overdrive services.
type Hosts struct {
	API         string
	Patron      string
	OAuth       string
	OAuthPatron string
}

var (
	ProductionHosts = Hosts{
		API:         "https://api.overdrive.com",
		Patron:      "https://patron.api.overdrive.com",
		OAuth:       "https://oauth.overdrive.com",
		OAuthPatron: "https://oauth-patron.overdrive.com",
	}
	TestingHosts = Hosts{
		API:         "https://integration.api.overdrive.com",
		Patron:      "https://integration-patron.api.overdrive.com",
		OAuth:       "https://oauth.overdrive.com",
		OAuthPatron: "https://oauth-patron.overdrive.com",
	}
)

// HostsFor returns the hosts of a server family. Unknown names get
// production.
func HostsFor(server string) Hosts {
	if server == ServerTesting {
		return TestingHosts
	}
	return ProductionHosts
}

// Endpoint templates, relative to the host named in each group.
const (
	// OAuth hosts.
	tokenPath       = "/token"
	patronTokenPath = "/patrontoken"

	// API host.
	libraryPath      = "/v1/libraries/%s"
	advantagePath    = "/v1/libraries/%s/advantageAccounts/%s"
	allProductsPath  = "/v1/collections/%s/products?sort=%s"
	metadataPath     = "/v1/collections/%s/products/%s/metadata"
	eventsPath       = "/v1/collections/%s/products?lastUpdateTime=%s&limit=%d"
	availabilityPath = "/v2/collections/%s/products/%s/availability"

	// Patron host.
	mePath        = "/v1/patrons/me"
	checkoutsPath = "/v1/patrons/me/checkouts"
	checkoutPath  = "/v1/patrons/me/checkouts/%s"
	holdsPath     = "/v1/patrons/me/holds"
	holdPath      = "/v1/patrons/me/holds/%s"
)

const (
	// CredentialTypePatron is the stored type of patron bearer tokens.
	CredentialTypePatron = "Palace Context Patron OAuth Token"

	// DefaultErrorURL fills the {errorpageurl} slot of download links. A
	// patron never sees it.
	DefaultErrorURL = "http://librarysimplified.org/"

	// MainAccountID is the account id Overdrive uses for the parent
	// library in availability documents.
	MainAccountID = -1

	// ILSNameDefault is sent when a library has no configured ILS name.
	ILSNameDefault = "default"

	PageSizeLimit = 300

	// EventDelay is subtracted from the start of a recent-changes scan;
	// Overdrive's change feed lags behind real time.
	EventDelay = 120 * time.Minute

	// MaxBookRetries bounds how often the monitor retries one title.
	MaxBookRetries = 3

	// TimeFormat is the timestamp layout of the change feed query.
	TimeFormat = "2006-01-02T15:04:05Z"

	tokenExpiryFactor = 0.9
)
