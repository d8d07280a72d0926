// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package overdrive

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/httpclient"
	"github.com/tomtom215/circulation/internal/logging"
	"github.com/tomtom215/circulation/internal/metrics"
	"github.com/tomtom215/circulation/internal/models"
)

// tokenCache holds the collection bearer token. Two callers may refresh
// at once; the last write wins and both tokens are valid.
type tokenCache struct {
	mu      sync.RWMutex
	token   string
	expires time.Time
}

func (c *tokenCache) get(now time.Time) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" || !now.Before(c.expires) {
		return "", false
	}
	return c.token, true
}

func (c *tokenCache) set(token string, expires time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expires = expires
}

func basicAuth(key, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(key+":"+secret))
}

// clientToken returns the cached collection token, fetching a new one when
// it is missing or expired.
func (a *API) clientToken(ctx context.Context) (string, error) {
	if token, ok := a.tokens.get(a.now()); ok {
		metrics.TokenCacheHits.WithLabelValues("client").Inc()
		return token, nil
	}
	return a.refreshClientToken(ctx)
}

func (a *API) refreshClientToken(ctx context.Context) (token string, err error) {
	defer func() { metrics.RecordTokenRefresh("client", err) }()

	form := url.Values{"grant_type": {"client_credentials"}}
	resp, err := a.postForm(ctx, a.settings.Hosts.OAuth+tokenPath, form,
		basicAuth(a.settings.ClientKey, a.settings.ClientSecret), httpclient.Codes(http.StatusOK))
	if err != nil {
		return "", fmt.Errorf("refresh client token: %w", err)
	}
	data, err := decode[tokenResponse](resp)
	if err != nil {
		return "", fmt.Errorf("refresh client token: %w", err)
	}
	a.tokens.set(data.AccessToken, data.expiry(a.now()))
	logging.Ctx(ctx).Debug().Int64("collection_id", a.collection.ID).Msg("Refreshed Overdrive client token")
	return data.AccessToken, nil
}

func (a *API) patronCredentialKey(patron *models.Patron) models.CredentialKey {
	return models.CredentialKey{
		DataSource:   models.DataSourceOverdrive,
		Type:         CredentialTypePatron,
		PatronID:     patron.ID,
		CollectionID: a.collection.ID,
	}
}

// patronCredential returns a live patron bearer token, from the store
// when possible.
func (a *API) patronCredential(ctx context.Context, patron *models.Patron, pin string) (*models.Credential, error) {
	cred, err := a.store.GetCredential(ctx, a.patronCredentialKey(patron))
	switch {
	case err == nil && cred.Valid(a.now()):
		metrics.TokenCacheHits.WithLabelValues("patron").Inc()
		return cred, nil
	case err != nil && !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("load patron credential: %w", err)
	}
	return a.refreshPatronCredential(ctx, patron, pin)
}

// ScopeString is the X-Overdrive-Scope value for the patron's library.
func (a *API) ScopeString(ctx context.Context, patron *models.Patron) (string, error) {
	ils := ILSNameDefault
	if a.settings.ILSName != nil {
		library, err := a.store.GetLibrary(ctx, patron.LibraryID)
		if err != nil {
			return "", fmt.Errorf("load library %d: %w", patron.LibraryID, err)
		}
		ils = a.settings.ILSName(library.ShortName)
	}
	return fmt.Sprintf("websiteid:%s authorizationname:%s", a.settings.WebsiteID, ils), nil
}

// refreshPatronCredential requests a patron token with the fulfillment
// key pair and persists it.
func (a *API) refreshPatronCredential(ctx context.Context, patron *models.Patron, pin string) (cred *models.Credential, err error) {
	defer func() { metrics.RecordTokenRefresh("patron", err) }()

	if a.settings.FulfillmentKey == "" || a.settings.FulfillmentSecret == "" {
		return nil, circulation.New(circulation.KindCannotFulfill, "Overdrive fulfillment credentials are not configured")
	}
	scope, err := a.ScopeString(ctx, patron)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"grant_type": {"password"},
		"scope":      {scope},
	}
	if patron.AuthorizationIdentifier != "" {
		form.Set("username", patron.AuthorizationIdentifier)
	}
	if pin != "" {
		form.Set("password", pin)
	} else {
		// Some libraries authenticate by barcode alone; Overdrive refuses
		// the token when they do not.
		form.Set("password_required", "false")
		form.Set("password", "[ignore]")
	}

	resp, err := a.postForm(ctx, a.settings.Hosts.OAuthPatron+patronTokenPath, form,
		basicAuth(a.settings.FulfillmentKey, a.settings.FulfillmentSecret), []string{"2xx"})
	if err != nil {
		var bad *httpclient.BadResponseError
		if errors.As(err, &bad) {
			return nil, patronAuthFailure(ctx, patron, bad)
		}
		return nil, err
	}
	data, err := decode[tokenResponse](resp)
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Debug().
		Int64("patron_id", patron.ID).
		Str("token", logging.RedactToken(data.AccessToken)).
		Msg("Issued Overdrive patron token")

	cred = &models.Credential{
		DataSource:   models.DataSourceOverdrive,
		Type:         CredentialTypePatron,
		PatronID:     patron.ID,
		CollectionID: a.collection.ID,
		Credential:   data.AccessToken,
		Expires:      data.expiry(a.now()),
	}
	if err := a.store.PutCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("store patron credential: %w", err)
	}
	return cred, nil
}

// patronAuthFailure turns a rejected patron token request into
// PatronAuthorizationFailed.
func patronAuthFailure(ctx context.Context, patron *models.Patron, bad *httpclient.BadResponseError) error {
	code, description := "Unknown", "Failed to authenticate with Overdrive"
	if doc := parseErrorResponse(bad.Body); doc != nil {
		code = doc.Code()
		if doc.Text() != "" {
			description = doc.Text()
		}
	}
	debug := fmt.Sprintf("Patron token request failed. Status code: '%d'. Error: '%s'. Description: '%s'.",
		bad.StatusCode, code, description)
	if strings.Contains(description, "Requested record not found") {
		debug += " The patron barcode was not found in the ILS Overdrive checks against; verify the library's ILS name."
	}
	logging.Ctx(ctx).Info().
		Str("barcode", logging.RedactBarcode(patron.AuthorizationIdentifier)).
		Int("status", bad.StatusCode).
		Str("error_code", code).
		Msg("Overdrive patron authentication failed")
	return circulation.New(circulation.KindPatronAuthorizationFailed, description).WithDebug(debug).Wrap(bad)
}

func (a *API) postForm(ctx context.Context, rawURL string, form url.Values, authorization string, allowed []string) (*httpclient.Response, error) {
	header := http.Header{}
	header.Set("Authorization", authorization)
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.doer.Do(ctx, &httpclient.Request{
		Method:       http.MethodPost,
		URL:          rawURL,
		Header:       header,
		Body:         []byte(form.Encode()),
		MaxRetries:   a.settings.MaxRetries,
		AllowedCodes: allowed,
	})
}
