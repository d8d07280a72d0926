// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/circulation/internal/auth"
	"github.com/tomtom215/circulation/internal/bookshelf"
	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/config"
	"github.com/tomtom215/circulation/internal/models"
)

// fakeCirculation records calls and answers with canned results.
type fakeCirculation struct {
	collection models.Collection

	loan        *circulation.LoanInfo
	checkoutErr error
	hold        *circulation.HoldInfo
	holdErr     error
	checkinErr  error
	releaseErr  error
	fulfillment *circulation.Fulfillment
	fulfillErr  error
	refreshed   *models.LicensePool
	changed     bool
	isNew       bool
	refreshErr  error

	checkoutMechanism *models.DeliveryMechanism
	holdEmail         string
	fulfilledWith     models.DeliveryMechanism
	returnURL         string
	calls             []string
}

func (f *fakeCirculation) Collection() models.Collection { return f.collection }

func (f *fakeCirculation) Checkout(_ context.Context, _ *models.Patron, _ string, _ *models.LicensePool, m *models.DeliveryMechanism) (*circulation.LoanInfo, error) {
	f.calls = append(f.calls, "checkout")
	f.checkoutMechanism = m
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return f.loan, nil
}

func (f *fakeCirculation) Checkin(context.Context, *models.Patron, string, *models.LicensePool) error {
	f.calls = append(f.calls, "checkin")
	return f.checkinErr
}

func (f *fakeCirculation) PlaceHold(_ context.Context, _ *models.Patron, _ string, _ *models.LicensePool, email string) (*circulation.HoldInfo, error) {
	f.calls = append(f.calls, "place_hold")
	f.holdEmail = email
	if f.holdErr != nil {
		return nil, f.holdErr
	}
	return f.hold, nil
}

func (f *fakeCirculation) ReleaseHold(context.Context, *models.Patron, string, *models.LicensePool) error {
	f.calls = append(f.calls, "release_hold")
	return f.releaseErr
}

func (f *fakeCirculation) Fulfill(_ context.Context, _ *models.Patron, _ string, _ *models.LicensePool, m models.DeliveryMechanism, returnURL string) (*circulation.Fulfillment, error) {
	f.calls = append(f.calls, "fulfill")
	f.fulfilledWith = m
	f.returnURL = returnURL
	if f.fulfillErr != nil {
		return nil, f.fulfillErr
	}
	return f.fulfillment, nil
}

func (f *fakeCirculation) UpdateAvailability(_ context.Context, pool *models.LicensePool) (*models.LicensePool, bool, error) {
	f.calls = append(f.calls, "update_availability")
	if f.refreshErr != nil {
		return nil, false, f.refreshErr
	}
	if f.refreshed != nil {
		return f.refreshed, f.changed, nil
	}
	return pool, f.changed, nil
}

func (f *fakeCirculation) UpdateLicensePool(context.Context, string) (*models.LicensePool, bool, bool, error) {
	f.calls = append(f.calls, "update_license_pool")
	return f.refreshed, f.isNew, f.changed, f.refreshErr
}

type fakeSyncer struct {
	result bookshelf.Result
	err    error
	pins   []string
}

func (s *fakeSyncer) Sync(_ context.Context, _ *models.Patron, pin string) (bookshelf.Result, error) {
	s.pins = append(s.pins, pin)
	return s.result, s.err
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeMonitor struct{ last time.Time }

func (m fakeMonitor) LastRun() time.Time { return m.last }

// fixture is a handler over a memory store holding one patron and one
// pool of the served collection.
type fixture struct {
	store   *models.MemoryStore
	circ    *fakeCirculation
	shelf   *fakeSyncer
	handler *Handler
	patron  models.Patron
	pool    *models.LicensePool
	other   *models.LicensePool
}

func newFixture(t *testing.T, opts ...HandlerOption) *fixture {
	t.Helper()
	ctx := context.Background()
	store := models.NewMemoryStore()
	lib := store.AddLibrary(models.Library{ShortName: "main"})
	patron := store.AddPatron(models.Patron{LibraryID: lib.ID, AuthorizationIdentifier: "2345"})
	coll := store.AddCollection(models.Collection{Name: "Overdrive", DataSource: models.DataSourceOverdrive})
	otherColl := store.AddCollection(models.Collection{Name: "Elsewhere", DataSource: models.DataSourceOverdrive})

	pool, _, err := store.GetOrCreatePool(ctx, coll.ID, models.DataSourceOverdrive,
		models.Identifier{Type: models.IdentifierTypeOverdrive, Value: "od-1"})
	checkNoError(t, err)
	other, _, err := store.GetOrCreatePool(ctx, otherColl.ID, models.DataSourceOverdrive,
		models.Identifier{Type: models.IdentifierTypeOverdrive, Value: "od-2"})
	checkNoError(t, err)

	circ := &fakeCirculation{collection: coll}
	shelf := &fakeSyncer{}
	return &fixture{
		store:   store,
		circ:    circ,
		shelf:   shelf,
		handler: NewHandler(store, circ, shelf, opts...),
		patron:  patron,
		pool:    pool,
		other:   other,
	}
}

// router serves the fixture with authentication disabled.
func (f *fixture) router() http.Handler {
	return NewRouter(f.handler, auth.NewDisabledMiddleware(), config.SecurityConfig{RateLimitDisabled: true}).Handler()
}

func (f *fixture) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	return serve(t, f.router(), method, path, body, header)
}

func serve(t *testing.T, h http.Handler, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		checkNoError(t, err)
		buf.Write(data)
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeData unmarshals the data member of a success envelope.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	checkNoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	checkStringEqual(t, "envelope status", env.Status, "success")
	checkNoError(t, json.Unmarshal(env.Data, dst))
}

// decodeProblem unmarshals a problem document.
func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) circulation.ProblemDetail {
	t.Helper()
	checkStringEqual(t, "Content-Type", rec.Header().Get("Content-Type"), problemContentType)
	var pd circulation.ProblemDetail
	checkNoError(t, json.Unmarshal(rec.Body.Bytes(), &pd))
	return pd
}

var errBoom = errors.New("boom")

func ptrTime(t time.Time) *time.Time { return &t }

func bytesContain(b []byte, s string) bool { return bytes.Contains(b, []byte(s)) }
