// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package overdrive

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/httpclient"
	"github.com/tomtom215/circulation/internal/models"
)

func TestClientToken_CachedUntilExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		token, err := f.api.clientToken(ctx)
		checkNoError(t, err)
		checkStringEqual(t, "token", token, "client-token")
	}
	checkIntEqual(t, "token requests", f.vendor.count("POST /token"), 1)

	req := f.vendor.last("POST /token")
	checkStringEqual(t, "auth", req.Auth, basicAuth("key", "secret"))
	checkStringEqual(t, "body", req.Body, "grant_type=client_credentials")
}

func TestClientToken_ExpiryFactor(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := tokenResponse{AccessToken: "x", ExpiresIn: 1000}
	checkStringEqual(t, "expiry", tok.expiry(now).Format(time.RFC3339), "2026-01-01T00:15:00Z")
}

// A rejected collection token is refreshed once; a second rejection is
// reported instead of looping.
func TestGet_BoundedRefresh(t *testing.T) {
	f := newFixture(t)
	f.vendor.json("GET /v1/collections/x/products", http.StatusUnauthorized, `{"errorCode":"Unauthorized"}`)

	_, err := f.api.Get(context.Background(), f.vendor.url("/v1/collections/x/products"))
	checkError(t, err)
	var bad *httpclient.BadResponseError
	if !errors.As(err, &bad) {
		t.Fatalf("expected *BadResponseError, got %T", err)
	}
	checkContains(t, "message", err.Error(), "Something's wrong with the Overdrive OAuth Bearer Token!")
	checkIntEqual(t, "token requests", f.vendor.count("POST /token"), 2)
	checkIntEqual(t, "gets", f.vendor.count("GET /v1/collections/x/products"), 2)
}

func TestGet_RefreshThenSucceed(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.vendor.handle("GET /v1/collections/x/products", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})

	resp, err := f.api.Get(context.Background(), f.vendor.url("/v1/collections/x/products"))
	checkNoError(t, err)
	checkIntEqual(t, "status", resp.StatusCode, http.StatusOK)
	checkIntEqual(t, "token requests", f.vendor.count("POST /token"), 2)
}

func TestPatronRequest_BoundedRefresh(t *testing.T) {
	f := newFixture(t)
	f.vendor.json(checkoutRoute, http.StatusUnauthorized, `{}`)

	_, err := f.api.GetLoan(context.Background(), f.patron, "1234", testOverdriveID)
	ce := checkKind(t, err, circulation.KindPatronAuthorizationFailed)
	checkStringEqual(t, "message", ce.Message, "Something's wrong with the patron OAuth Bearer Token!")
	checkIntEqual(t, "patron token requests", f.vendor.count("POST /patrontoken"), 2)
	checkIntEqual(t, "loan requests", f.vendor.count(checkoutRoute), 2)
}

func TestPatronToken_Form(t *testing.T) {
	tests := []struct {
		name string
		pin  string
		want url.Values
	}{
		{
			name: "with pin",
			pin:  "1234",
			want: url.Values{"grant_type": {"password"}, "username": {"2345"}, "password": {"1234"},
				"scope": {"websiteid:100 authorizationname:main-ils"}},
		},
		{
			name: "barcode only",
			want: url.Values{"grant_type": {"password"}, "username": {"2345"}, "password": {"[ignore]"},
				"password_required": {"false"}, "scope": {"websiteid:100 authorizationname:main-ils"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.api.settings.ILSName = func(short string) string { return short + "-ils" }

			cred, err := f.api.patronCredential(context.Background(), f.patron, tt.pin)
			checkNoError(t, err)
			checkStringEqual(t, "token", cred.Credential, "patron-token")

			req := f.vendor.last("POST /patrontoken")
			checkStringEqual(t, "auth", req.Auth, basicAuth("fulfillment-key", "fulfillment-secret"))
			got, err := url.ParseQuery(req.Body)
			checkNoError(t, err)
			checkStringEqual(t, "form", got.Encode(), tt.want.Encode())
		})
	}
}

func TestPatronToken_StoredAndReused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.api.patronCredential(ctx, f.patron, "1234")
	checkNoError(t, err)
	_, err = f.api.patronCredential(ctx, f.patron, "1234")
	checkNoError(t, err)
	checkIntEqual(t, "patron token requests", f.vendor.count("POST /patrontoken"), 1)

	stored, err := f.store.GetCredential(ctx, f.api.patronCredentialKey(f.patron))
	checkNoError(t, err)
	checkStringEqual(t, "type", stored.Type, CredentialTypePatron)
	checkStringEqual(t, "expires", stored.Expires.Format(time.RFC3339), f.now.Add(3240*time.Second).Format(time.RFC3339))
}

func TestPatronToken_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantMsg   string
		wantDebug string
	}{
		{
			name:      "oauth error",
			status:    http.StatusBadRequest,
			body:      `{"error":"unauthorized_client","error_description":"Invalid Library Card"}`,
			wantMsg:   "Invalid Library Card",
			wantDebug: "Patron token request failed. Status code: '400'. Error: 'unauthorized_client'. Description: 'Invalid Library Card'.",
		},
		{
			name:      "record not found",
			status:    http.StatusBadRequest,
			body:      `{"error":"unauthorized_client","error_description":"Requested record not found"}`,
			wantMsg:   "Requested record not found",
			wantDebug: "verify the library's ILS name",
		},
		{
			name:      "unparseable",
			status:    http.StatusForbidden,
			body:      `<html>no</html>`,
			wantMsg:   "Failed to authenticate with Overdrive",
			wantDebug: "Status code: '403'. Error: 'Unknown'.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.vendor.json("POST /patrontoken", tt.status, tt.body)

			_, err := f.api.patronCredential(context.Background(), f.patron, "1234")
			ce := checkKind(t, err, circulation.KindPatronAuthorizationFailed)
			checkStringEqual(t, "message", ce.Message, tt.wantMsg)
			checkContains(t, "debug", ce.Debug, tt.wantDebug)
		})
	}
}

func TestPatronToken_NoFulfillmentCredentials(t *testing.T) {
	f := newFixture(t)
	f.api.settings.FulfillmentKey = ""

	_, err := f.api.patronCredential(context.Background(), f.patron, "1234")
	checkKind(t, err, circulation.KindCannotFulfill)
	checkIntEqual(t, "patron token requests", f.vendor.count("POST /patrontoken"), 0)
}

func TestNew_RequiresSettings(t *testing.T) {
	store := models.NewMemoryStore()
	good := Settings{ClientKey: "k", ClientSecret: "s", WebsiteID: "1", LibraryID: "2"}

	tests := []struct {
		name   string
		mutate func(*Settings, *models.Collection)
		want   string
	}{
		{"client key", func(s *Settings, _ *models.Collection) { s.ClientKey = "" }, "client key"},
		{"client secret", func(s *Settings, _ *models.Collection) { s.ClientSecret = "" }, "client secret"},
		{"website", func(s *Settings, _ *models.Collection) { s.WebsiteID = "" }, "website id"},
		{"library", func(s *Settings, _ *models.Collection) { s.LibraryID = "" }, "library id"},
		{"advantage", func(_ *Settings, c *models.Collection) { c.ParentID = 9 }, "advantage library id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := good
			c := models.Collection{ID: 3}
			tt.mutate(&s, &c)
			_, err := New(nil, store, c, s)
			checkError(t, err)
			checkContains(t, "error", err.Error(), tt.want)
		})
	}

	api, err := New(nil, store, models.Collection{ID: 3}, good)
	checkNoError(t, err)
	checkStringEqual(t, "default host", api.settings.Hosts.API, ProductionHosts.API)
	checkIntEqual(t, "batch", api.settings.BatchConcurrency, 5)
	checkStringEqual(t, "data source", api.Collection().DataSource, models.DataSourceOverdrive)
}
