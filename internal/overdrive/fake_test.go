// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package overdrive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/httpclient"
	"github.com/tomtom215/circulation/internal/models"
)

const (
	testOverdriveID = "a1b2c3d4-0000-4000-8000-000000000001"
	testLibraryID   = "1201"
	collectionToken = "ctok"
)

var upperID = strings.ToUpper(testOverdriveID)

// vendor is a scripted Overdrive. Routes are keyed "METHOD /path" and may
// be replaced at any time; unknown routes answer 599 so a test notices.
type vendor struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []recordedRequest
}

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   string
}

func newVendor(t *testing.T) *vendor {
	t.Helper()
	v := &vendor{t: t, routes: make(map[string]http.HandlerFunc)}
	v.server = httptest.NewServer(http.HandlerFunc(v.serve))
	t.Cleanup(v.server.Close)

	v.json("POST /token", http.StatusOK, `{"access_token":"client-token","expires_in":3600,"token_type":"bearer"}`)
	v.json("POST /patrontoken", http.StatusOK, `{"access_token":"patron-token","expires_in":3600,"token_type":"bearer"}`)
	v.json("GET /v1/libraries/"+testLibraryID, http.StatusOK, `{"collectionToken":"`+collectionToken+`"}`)
	return v
}

func (v *vendor) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	key := r.Method + " " + r.URL.Path

	v.mu.Lock()
	v.requests = append(v.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Auth:   r.Header.Get("Authorization"),
		Body:   string(body),
	})
	h, ok := v.routes[key]
	v.mu.Unlock()

	if !ok {
		w.WriteHeader(599)
		_, _ = io.WriteString(w, "no route for "+key)
		return
	}
	h(w, r)
}

func (v *vendor) handle(route string, h http.HandlerFunc) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.routes[route] = h
}

// json answers route with a fixed status and body. A zero status means
// 204.
func (v *vendor) json(route string, status int, body string) {
	if status == 0 {
		status = http.StatusNoContent
	}
	v.handle(route, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

// count returns how many requests hit route.
func (v *vendor) count(route string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, r := range v.requests {
		if r.Method+" "+r.Path == route {
			n++
		}
	}
	return n
}

// last returns the most recent request to route.
func (v *vendor) last(route string) recordedRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := len(v.requests) - 1; i >= 0; i-- {
		if r := v.requests[i]; r.Method+" "+r.Path == route {
			return r
		}
	}
	v.t.Fatalf("no request to %s", route)
	return recordedRequest{}
}

func (v *vendor) url(path string) string { return v.server.URL + path }

type noCoverage struct{}

func (noCoverage) EnsureCoverage(context.Context, *models.LicensePool) error { return nil }

type fixture struct {
	vendor     *vendor
	store      *models.MemoryStore
	sink       *circulation.RecordingSink
	api        *API
	library    models.Library
	patron     *models.Patron
	collection models.Collection
	pool       *models.LicensePool
	now        time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	v := newVendor(t)
	store := models.NewMemoryStore()
	lib := store.AddLibrary(models.Library{ShortName: "main"})
	patron := store.AddPatron(models.Patron{LibraryID: lib.ID, AuthorizationIdentifier: "2345"})
	coll := store.AddCollection(models.Collection{
		Name:              "Overdrive",
		DataSource:        models.DataSourceOverdrive,
		ExternalAccountID: testLibraryID,
	})

	ctx := context.Background()
	pool, _, err := store.GetOrCreatePool(ctx, coll.ID, models.DataSourceOverdrive,
		models.Identifier{Type: models.IdentifierTypeOverdrive, Value: testOverdriveID})
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	sink := &circulation.RecordingSink{}
	client := httpclient.New(httpclient.Config{
		Timeout:     2 * time.Second,
		MaxRetries:  1,
		BackoffBase: time.Millisecond,
		BackoffMax:  2 * time.Millisecond,
	})
	base := []Option{WithEventSink(sink), WithCoverageProvider(noCoverage{}), WithClock(func() time.Time { return now })}
	api, err := New(client, store, coll, testSettings(v), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{
		vendor:     v,
		store:      store,
		sink:       sink,
		api:        api,
		library:    lib,
		patron:     &patron,
		collection: coll,
		pool:       pool,
		now:        now,
	}
}

func testSettings(v *vendor) Settings {
	return Settings{
		ClientKey:         "key",
		ClientSecret:      "secret",
		WebsiteID:         "100",
		LibraryID:         testLibraryID,
		FulfillmentKey:    "fulfillment-key",
		FulfillmentSecret: "fulfillment-secret",
		Hosts: Hosts{
			API:         v.server.URL,
			Patron:      v.server.URL,
			OAuth:       v.server.URL,
			OAuthPatron: v.server.URL,
		},
	}
}

// checkoutOpts shapes a checkout document.
type checkoutOpts struct {
	lockedIn bool
	formats  []string
	// lockInOptions become the options of the format action. Nil means no
	// format action.
	lockInOptions []string
	noEarlyReturn bool
}

// checkoutDoc renders a checkout the way the patron API does.
func (v *vendor) checkoutDoc(o checkoutOpts) string {
	self := v.url("/v1/patrons/me/checkouts/" + upperID)
	actions := map[string]any{}
	if !o.noEarlyReturn {
		actions["earlyReturn"] = map[string]any{"href": self, "method": "DELETE"}
	}
	if o.lockInOptions != nil {
		actions["format"] = map[string]any{
			"href":   self + "/formats",
			"method": "POST",
			"type":   "application/vnd.overdrive.api+json",
			"fields": []map[string]any{
				{"name": "reserveId", "value": upperID},
				{"name": "formatType", "options": o.lockInOptions},
			},
		}
	}
	formats := make([]map[string]any, 0, len(o.formats))
	for _, f := range o.formats {
		formats = append(formats, v.formatDoc(f))
	}
	doc := map[string]any{
		"reserveId":        upperID,
		"crossRefId":       4242,
		"expires":          "2026-10-22T12:00:00Z",
		"checkoutDate":     "2026-10-01T12:00:00Z",
		"isFormatLockedIn": o.lockedIn,
		"actions":          actions,
		"formats":          formats,
	}
	out, err := json.Marshal(doc)
	if err != nil {
		v.t.Fatalf("marshal checkout: %v", err)
	}
	return string(out)
}

func (v *vendor) formatDoc(format string) map[string]any {
	download := v.url("/v1/patrons/me/checkouts/"+upperID+"/formats/"+format+"/downloadlink") +
		"?errorpageurl={errorpageurl}&odreadauthurl={odreadauthurl}"
	return map[string]any{
		"formatType": format,
		"linkTemplates": map[string]any{
			"downloadLink": map[string]any{"href": download, "type": "application/json"},
		},
	}
}

func (v *vendor) formatJSON(format string) string {
	out, err := json.Marshal(v.formatDoc(format))
	if err != nil {
		v.t.Fatalf("marshal format: %v", err)
	}
	return string(out)
}

func errorDoc(code, message string) string {
	return `{"errorCode":"` + code + `","message":"` + message + `","token":"abc"}`
}

// eventTypes returns the types of the events published so far.
func (f *fixture) eventTypes() []string { return f.sink.Types() }

func ptr[T any](v T) *T { return &v }
