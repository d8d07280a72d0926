// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package overdrive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/config"
	"github.com/tomtom215/circulation/internal/httpclient"
	"github.com/tomtom215/circulation/internal/logging"
	"github.com/tomtom215/circulation/internal/models"
)

// Settings is the resolved configuration of one Overdrive collection.
type Settings struct {
	ClientKey    string
	ClientSecret string
	WebsiteID    string

	// LibraryID is the Overdrive library account. For an Advantage child
	// collection it is the parent library and AdvantageLibraryID names the
	// child account.
	LibraryID          string
	AdvantageLibraryID string

	// FulfillmentKey and FulfillmentSecret authenticate patron token
	// requests.
	FulfillmentKey    string
	FulfillmentSecret string

	Hosts Hosts

	// ILSName maps a library short name to the ILS name Overdrive knows
	// it by. Nil means ILSNameDefault for every library.
	ILSName func(libraryShortName string) string

	MaxRetries       int
	BatchConcurrency int
}

// SettingsFromConfig builds Settings from the loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	server := ServerProduction
	if cfg.Overdrive.Testing() {
		server = ServerTesting
	}
	return Settings{
		ClientKey:          cfg.Overdrive.ClientKey,
		ClientSecret:       cfg.Overdrive.ClientSecret,
		WebsiteID:          cfg.Overdrive.WebsiteID,
		LibraryID:          cfg.Overdrive.LibraryID,
		AdvantageLibraryID: cfg.Collection.AdvantageLibraryID,
		FulfillmentKey:     cfg.Overdrive.FulfillmentKey,
		FulfillmentSecret:  cfg.Overdrive.FulfillmentSecret,
		Hosts:              HostsFor(server),
		ILSName:            cfg.Libraries.ILSName,
		MaxRetries:         cfg.Overdrive.MaxRetryCount,
		BatchConcurrency:   cfg.Overdrive.BatchConcurrency,
	}
}

// API talks to Overdrive on behalf of one collection. It is safe for
// concurrent use.
type API struct {
	doer       httpclient.Doer
	store      models.Store
	collection models.Collection
	settings   Settings
	events     circulation.EventSink
	coverage   CoverageProvider
	now        func() time.Time

	tokens tokenCache

	collectionMu    sync.Mutex
	collectionToken string
}

// Option configures an API.
type Option func(*API)

// WithEventSink sets where circulation events are published.
func WithEventSink(sink circulation.EventSink) Option {
	return func(a *API) { a.events = sink }
}

// WithCoverageProvider replaces the default bibliographic coverage.
func WithCoverageProvider(p CoverageProvider) Option {
	return func(a *API) { a.coverage = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *API) { a.now = now }
}

// New creates an API for collection.
func New(doer httpclient.Doer, store models.Store, collection models.Collection, settings Settings, opts ...Option) (*API, error) {
	switch {
	case settings.ClientKey == "":
		return nil, errors.New("overdrive client key is not configured")
	case settings.ClientSecret == "":
		return nil, errors.New("overdrive client secret is not configured")
	case settings.WebsiteID == "":
		return nil, errors.New("overdrive website id is not configured")
	case settings.LibraryID == "":
		return nil, fmt.Errorf("collection %d must have an Overdrive library id", collection.ID)
	case collection.ParentID != 0 && settings.AdvantageLibraryID == "":
		return nil, fmt.Errorf("advantage collection %d must have an advantage library id", collection.ID)
	}
	if settings.Hosts == (Hosts{}) {
		settings.Hosts = ProductionHosts
	}
	if settings.BatchConcurrency < 1 {
		settings.BatchConcurrency = 5
	}
	if collection.DataSource == "" {
		collection.DataSource = models.DataSourceOverdrive
	}

	a := &API{
		doer:       doer,
		store:      store,
		collection: collection,
		settings:   settings,
		events:     circulation.NopSink{},
		now:        time.Now,
	}
	a.coverage = &MetadataCoverage{api: a}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Collection returns the collection this API serves.
func (a *API) Collection() models.Collection { return a.collection }

// advantage reports whether the collection is an Advantage child.
func (a *API) advantage() bool { return a.collection.ParentID != 0 }

// advantageAccountID is the account id this collection appears under in
// availability documents.
func (a *API) advantageAccountID() int64 {
	if !a.advantage() {
		return MainAccountID
	}
	id, err := strconv.ParseInt(a.settings.AdvantageLibraryID, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Get performs an authenticated GET with the collection token. 2xx, 3xx
// and 404 responses are returned; a 401 refreshes the token once.
func (a *API) Get(ctx context.Context, rawURL string) (*httpclient.Response, error) {
	for attempt := 0; ; attempt++ {
		token, err := a.clientToken(ctx)
		if err != nil {
			return nil, err
		}
		header := http.Header{}
		header.Set("Authorization", "Bearer "+token)
		resp, err := a.doer.Do(ctx, &httpclient.Request{
			Method:       http.MethodGet,
			URL:          rawURL,
			Header:       header,
			MaxRetries:   a.settings.MaxRetries,
			AllowedCodes: []string{"2xx", "3xx", "401", "404"},
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusUnauthorized {
			return resp, nil
		}
		if attempt > 0 {
			return nil, httpclient.NewBadResponseError(rawURL, "Something's wrong with the Overdrive OAuth Bearer Token!", resp, "")
		}
		if _, err := a.refreshClientToken(ctx); err != nil {
			return nil, err
		}
	}
}

// getJSON GETs rawURL and decodes a 200 response. Any other status is a
// bad response.
func getJSON[T any](ctx context.Context, a *API, rawURL string) (*T, error) {
	resp, err := a.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.NewBadResponseError(rawURL,
			fmt.Sprintf("Got status code %d from external server, cannot continue.", resp.StatusCode), resp, "")
	}
	return decode[T](resp)
}

// CollectionToken returns the token that scopes catalog requests to this
// collection, looking it up on first use.
func (a *API) CollectionToken(ctx context.Context) (string, error) {
	a.collectionMu.Lock()
	defer a.collectionMu.Unlock()
	if a.collectionToken != "" {
		return a.collectionToken, nil
	}

	endpoint := a.settings.Hosts.API + fmt.Sprintf(libraryPath, a.settings.LibraryID)
	if a.advantage() {
		endpoint = a.settings.Hosts.API + fmt.Sprintf(advantagePath, a.settings.LibraryID, a.settings.AdvantageLibraryID)
	}
	lib, err := getJSON[libraryResponse](ctx, a, endpoint)
	if err != nil {
		return "", fmt.Errorf("fetch library: %w", err)
	}
	if lib.Code() != "" {
		return "", fmt.Errorf("overdrive credentials are valid but could not fetch library: %s", lib.Text())
	}
	if lib.CollectionToken == "" {
		return "", fmt.Errorf("library %s has no collection token", a.settings.LibraryID)
	}
	a.collectionToken = lib.CollectionToken
	return a.collectionToken, nil
}

// AdvantageAccounts lists the Advantage accounts of the parent library.
func (a *API) AdvantageAccounts(ctx context.Context) ([]AdvantageAccount, error) {
	lib, err := getJSON[libraryResponse](ctx, a, a.settings.Hosts.API+fmt.Sprintf(libraryPath, a.settings.LibraryID))
	if err != nil {
		return nil, fmt.Errorf("fetch library: %w", err)
	}
	if lib.Links.AdvantageAccounts == nil || lib.Links.AdvantageAccounts.Href == "" {
		return nil, nil
	}
	accounts, err := getJSON[advantageAccountsResponse](ctx, a, lib.Links.AdvantageAccounts.Href)
	if err != nil {
		return nil, fmt.Errorf("fetch advantage accounts: %w", err)
	}
	return accounts.AdvantageAccounts, nil
}

// patronRequest describes one call made with a patron token.
type patronRequest struct {
	method string
	url    string
	body   []byte
	// passCodes are non-2xx statuses returned to the caller instead of
	// being mapped through errorFromResponse.
	passCodes []string
}

// doPatron performs req with the patron's bearer token. A 401 refreshes the
// token and retries once; a second 401 is PatronAuthorizationFailed. Other
// failures are mapped through errorFromResponse.
func (a *API) doPatron(ctx context.Context, patron *models.Patron, pin string, req patronRequest) (*httpclient.Response, error) {
	method := strings.ToUpper(req.method)
	if method == "" {
		method = http.MethodGet
		if len(req.body) > 0 {
			method = http.MethodPost
		}
	}

	cred, err := a.patronCredential(ctx, patron, pin)
	if err != nil {
		return nil, err
	}
	for attempt := 0; ; attempt++ {
		header := http.Header{}
		header.Set("Authorization", "Bearer "+cred.Credential)
		if len(req.body) > 0 {
			header.Set("Content-Type", "application/json")
		}
		resp, err := a.doer.Do(ctx, &httpclient.Request{
			Method:       method,
			URL:          req.url,
			Header:       header,
			Body:         req.body,
			MaxRetries:   a.settings.MaxRetries,
			AllowedCodes: append([]string{"2xx", "401"}, req.passCodes...),
		})
		if err != nil {
			var bad *httpclient.BadResponseError
			if errors.As(err, &bad) {
				return nil, errorFromResponse(&httpclient.Response{
					StatusCode: bad.StatusCode, Header: bad.Header, Body: bad.Body, URL: req.url,
				})
			}
			return nil, err
		}
		if resp.StatusCode != http.StatusUnauthorized {
			return resp, nil
		}
		if attempt > 0 {
			return nil, circulation.New(circulation.KindPatronAuthorizationFailed,
				"Something's wrong with the patron OAuth Bearer Token!")
		}
		logging.Ctx(ctx).Debug().Int64("patron_id", patron.ID).Msg("Patron token rejected, refreshing")
		if cred, err = a.refreshPatronCredential(ctx, patron, pin); err != nil {
			return nil, err
		}
	}
}

// patronJSON performs req and decodes the response as T.
func patronJSON[T any](ctx context.Context, a *API, patron *models.Patron, pin string, req patronRequest) (*T, error) {
	resp, err := a.doPatron(ctx, patron, pin, req)
	if err != nil {
		return nil, err
	}
	return decode[T](resp)
}

func (a *API) patronURL(format string, args ...any) string {
	return a.settings.Hosts.Patron + fmt.Sprintf(format, args...)
}

func (a *API) apiURL(format string, args ...any) string {
	return a.settings.Hosts.API + fmt.Sprintf(format, args...)
}
