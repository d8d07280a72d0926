// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/tomtom215/circulation/internal/bookshelf"
	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/models"
)

func loansPath(patronID int64) string { return fmt.Sprintf("/api/v1/patrons/%d/loans", patronID) }
func holdsPath(patronID int64) string { return fmt.Sprintf("/api/v1/patrons/%d/holds", patronID) }

func TestBorrow_CreatesLoan(t *testing.T) {
	f := newFixture(t)
	end := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	f.circ.loan = &circulation.LoanInfo{End: &end}

	body := models.BorrowRequest{PoolID: f.pool.ID, ContentType: models.MediaTypeEPUB, DRMScheme: models.DRMAdobe}
	rec := f.do(t, http.MethodPost, loansPath(f.patron.ID), body, http.Header{PatronPinHeader: {"1234"}})
	checkStatus(t, rec, http.StatusCreated)

	var got BorrowResult
	decodeData(t, rec, &got)
	checkStringEqual(t, "type", got.Type, "loan")
	if got.Loan == nil || got.Hold != nil {
		t.Fatalf("result = %+v, want a loan only", got)
	}
	if f.circ.checkoutMechanism == nil || f.circ.checkoutMechanism.DRMScheme != models.DRMAdobe {
		t.Errorf("checkout mechanism = %v, want adobe epub", f.circ.checkoutMechanism)
	}

	loan, err := f.store.GetLoan(context.Background(), f.patron.ID, f.pool.ID)
	checkNoError(t, err)
	if loan.End == nil || !loan.End.Equal(end) {
		t.Errorf("stored loan end = %v, want %v", loan.End, end)
	}

	// Borrowing again updates the same row.
	rec = f.do(t, http.MethodPost, loansPath(f.patron.ID), models.BorrowRequest{PoolID: f.pool.ID}, nil)
	checkStatus(t, rec, http.StatusOK)
	if f.circ.checkoutMechanism != nil {
		t.Errorf("checkout mechanism = %v, want nil without content_type", f.circ.checkoutMechanism)
	}
}

func TestBorrow_RecordsLockIn(t *testing.T) {
	f := newFixture(t)
	locked := models.DeliveryMechanism{ContentType: models.MediaTypeKindle, DRMScheme: models.DRMKindle}
	f.circ.loan = &circulation.LoanInfo{LockedTo: &locked}

	rec := f.do(t, http.MethodPost, loansPath(f.patron.ID), models.BorrowRequest{PoolID: f.pool.ID}, nil)
	checkStatus(t, rec, http.StatusCreated)

	loan, err := f.store.GetLoan(context.Background(), f.patron.ID, f.pool.ID)
	checkNoError(t, err)
	if loan.FulfillmentID == 0 {
		t.Fatal("loan has no fulfillment after a locked-in checkout")
	}
	lpdm, err := f.store.GetDeliveryMechanism(context.Background(), loan.FulfillmentID)
	checkNoError(t, err)
	if lpdm.Mechanism != locked {
		t.Errorf("fulfillment = %v, want %v", lpdm.Mechanism, locked)
	}
}

func TestBorrow_FallsThroughToHold(t *testing.T) {
	f := newFixture(t)
	f.circ.checkoutErr = circulation.New(circulation.KindNoAvailableCopies, "all out")
	position := 3
	f.circ.hold = &circulation.HoldInfo{Position: &position}

	rec := f.do(t, http.MethodPost, loansPath(f.patron.ID), models.BorrowRequest{PoolID: f.pool.ID}, nil)
	checkStatus(t, rec, http.StatusCreated)

	var got BorrowResult
	decodeData(t, rec, &got)
	checkStringEqual(t, "type", got.Type, "hold")
	if got.Hold == nil || got.Hold.Position == nil || *got.Hold.Position != 3 {
		t.Fatalf("hold = %+v, want position 3", got.Hold)
	}
	checkStringEqual(t, "hold email", f.circ.holdEmail, "")
	if len(f.circ.calls) != 2 || f.circ.calls[1] != "place_hold" {
		t.Errorf("calls = %v, want checkout then place_hold", f.circ.calls)
	}
	if _, err := f.store.GetHold(context.Background(), f.patron.ID, f.pool.ID); err != nil {
		t.Errorf("hold not stored: %v", err)
	}
	if _, err := f.store.GetLoan(context.Background(), f.patron.ID, f.pool.ID); err == nil {
		t.Error("loan stored for a failed checkout")
	}
}

func TestBorrow_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		patronID   func(f *fixture) int64
		body       func(f *fixture) any
		checkErr   error
		wantStatus int
		wantType   string
	}{
		{
			name:       "missing pool id",
			body:       func(*fixture) any { return map[string]any{} },
			wantStatus: http.StatusBadRequest,
			wantType:   slugInvalidInput,
		},
		{
			name:       "drm scheme without content type",
			body:       func(f *fixture) any { return models.BorrowRequest{PoolID: f.pool.ID, DRMScheme: models.DRMAdobe} },
			wantStatus: http.StatusBadRequest,
			wantType:   slugInvalidInput,
		},
		{
			name:       "pool of another collection",
			body:       func(f *fixture) any { return models.BorrowRequest{PoolID: f.other.ID} },
			wantStatus: http.StatusNotFound,
			wantType:   slugNotFound,
		},
		{
			name:       "unknown pool",
			body:       func(*fixture) any { return models.BorrowRequest{PoolID: 9999} },
			wantStatus: http.StatusNotFound,
			wantType:   slugNotFound,
		},
		{
			name:       "unknown patron",
			patronID:   func(*fixture) int64 { return 9999 },
			body:       func(f *fixture) any { return models.BorrowRequest{PoolID: f.pool.ID} },
			wantStatus: http.StatusNotFound,
			wantType:   slugNotFound,
		},
		{
			name:       "loan limit",
			body:       func(f *fixture) any { return models.BorrowRequest{PoolID: f.pool.ID} },
			checkErr:   circulation.New(circulation.KindPatronLoanLimitReached, ""),
			wantStatus: http.StatusForbidden,
			wantType:   "loan-limit-reached",
		},
		{
			name:       "patron credentials rejected",
			body:       func(f *fixture) any { return models.BorrowRequest{PoolID: f.pool.ID} },
			checkErr:   circulation.New(circulation.KindPatronAuthorizationFailed, "bad pin"),
			wantStatus: http.StatusUnauthorized,
			wantType:   "invalid-credentials",
		},
		{
			name:       "unexpected failure",
			body:       func(f *fixture) any { return models.BorrowRequest{PoolID: f.pool.ID} },
			checkErr:   errBoom,
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.circ.checkoutErr = tt.checkErr
			f.circ.loan = &circulation.LoanInfo{}
			patronID := f.patron.ID
			if tt.patronID != nil {
				patronID = tt.patronID(f)
			}

			rec := f.do(t, http.MethodPost, loansPath(patronID), tt.body(f), nil)
			checkStatus(t, rec, tt.wantStatus)
			pd := decodeProblem(t, rec)
			checkIntEqual(t, "problem status", pd.Status, tt.wantStatus)
			if tt.wantType != "" {
				checkStringEqual(t, "problem type", pd.Type, circulation.ProblemTypePrefix+tt.wantType)
			}
			if pd.Debug != "" {
				t.Errorf("debug detail %q leaked without debug mode", pd.Debug)
			}
		})
	}
}

func TestBorrow_DebugDetail(t *testing.T) {
	f := newFixture(t, WithDebug(true))
	f.circ.checkoutErr = circulation.New(circulation.KindCannotLoan, "no").WithDebug("vendor said NotAllowed")

	rec := f.do(t, http.MethodPost, loansPath(f.patron.ID), models.BorrowRequest{PoolID: f.pool.ID}, nil)
	pd := decodeProblem(t, rec)
	checkStringEqual(t, "debug", pd.Debug, "vendor said NotAllowed")
}

func TestReturnLoan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.store.PutLoan(ctx, &models.Loan{PatronID: f.patron.ID, LicensePoolID: f.pool.ID})
	checkNoError(t, err)

	path := fmt.Sprintf("%s/%d", loansPath(f.patron.ID), f.pool.ID)
	rec := f.do(t, http.MethodDelete, path, nil, nil)
	checkStatus(t, rec, http.StatusNoContent)
	if _, err := f.store.GetLoan(ctx, f.patron.ID, f.pool.ID); err == nil {
		t.Error("local loan survived the return")
	}

	// Returning with no local row still succeeds.
	rec = f.do(t, http.MethodDelete, path, nil, nil)
	checkStatus(t, rec, http.StatusNoContent)

	f.circ.checkinErr = circulation.New(circulation.KindCannotReturn, "")
	rec = f.do(t, http.MethodDelete, path, nil, nil)
	checkStatus(t, rec, http.StatusBadGateway)
}

func TestReturnLoan_KeepsLoanOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.store.PutLoan(ctx, &models.Loan{PatronID: f.patron.ID, LicensePoolID: f.pool.ID})
	checkNoError(t, err)
	f.circ.checkinErr = errBoom

	rec := f.do(t, http.MethodDelete, fmt.Sprintf("%s/%d", loansPath(f.patron.ID), f.pool.ID), nil, nil)
	checkStatus(t, rec, http.StatusInternalServerError)
	if _, err := f.store.GetLoan(ctx, f.patron.ID, f.pool.ID); err != nil {
		t.Errorf("local loan removed after a failed return: %v", err)
	}
}

func TestFulfill(t *testing.T) {
	ctx := context.Background()
	epub := models.DeliveryMechanism{ContentType: models.MediaTypeEPUB, DRMScheme: models.DRMAdobe}
	streaming := models.DeliveryMechanism{ContentType: models.MediaTypeStreamingText, DRMScheme: models.DRMStreaming}
	manifest := models.DeliveryMechanism{ContentType: models.MediaTypeOverdriveAudioManifest, DRMScheme: models.DRMLibby}

	tests := []struct {
		name        string
		mechanism   models.DeliveryMechanism
		fulfillment circulation.Fulfillment
		wantStatus  int
		wantLocked  bool
		check       func(t *testing.T, header http.Header)
	}{
		{
			name:        "redirect",
			mechanism:   streaming,
			fulfillment: circulation.Fulfillment{Kind: circulation.FulfillRedirect, ContentLink: "https://read.example/book"},
			wantStatus:  http.StatusFound,
			check: func(t *testing.T, header http.Header) {
				checkStringEqual(t, "Location", header.Get("Location"), "https://read.example/book")
			},
		},
		{
			name:        "fetch",
			mechanism:   epub,
			fulfillment: circulation.Fulfillment{Kind: circulation.FulfillFetch, ContentLink: "https://dl.example/acsm", ContentType: models.DRMAdobe},
			wantStatus:  http.StatusOK,
			wantLocked:  true,
		},
		{
			name:      "manifest",
			mechanism: manifest,
			fulfillment: circulation.Fulfillment{
				Kind:        circulation.FulfillManifest,
				ContentLink: "https://patron.example/manifest",
				ScopeString: "websiteid:100 authorizationname:default",
				AccessToken: "patron-token",
			},
			wantStatus: http.StatusOK,
			wantLocked: true,
			check: func(t *testing.T, header http.Header) {
				checkStringEqual(t, "scope", header.Get("X-Overdrive-Scope"), "websiteid:100 authorizationname:default")
				checkStringEqual(t, "authorization", header.Get("X-Overdrive-Patron-Authorization"), "Bearer patron-token")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			lpdm, err := f.store.SetDeliveryMechanism(ctx, f.pool.ID, tt.mechanism, true)
			checkNoError(t, err)
			_, _, err = f.store.PutLoan(ctx, &models.Loan{PatronID: f.patron.ID, LicensePoolID: f.pool.ID})
			checkNoError(t, err)
			fulfillment := tt.fulfillment
			f.circ.fulfillment = &fulfillment

			path := fmt.Sprintf("%s/%d/fulfill?mechanism=%d&return_url=%s",
				loansPath(f.patron.ID), f.pool.ID, lpdm.ID, "https%3A%2F%2Fapp.example%2Fdone")
			rec := f.do(t, http.MethodGet, path, nil, nil)
			checkStatus(t, rec, tt.wantStatus)
			if f.circ.fulfilledWith != tt.mechanism {
				t.Errorf("fulfilled with %v, want %v", f.circ.fulfilledWith, tt.mechanism)
			}
			checkStringEqual(t, "return url", f.circ.returnURL, "https://app.example/done")
			if tt.check != nil {
				tt.check(t, rec.Header())
			}
			if rec.Body.Len() > 0 && bytesContain(rec.Body.Bytes(), "patron-token") {
				t.Error("access token leaked into the response body")
			}

			loan, err := f.store.GetLoan(ctx, f.patron.ID, f.pool.ID)
			checkNoError(t, err)
			checkBool(t, "loan locked", loan.FulfillmentID == lpdm.ID, tt.wantLocked)
		})
	}
}

func TestFulfill_KeepsExistingLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.store.SetDeliveryMechanism(ctx, f.pool.ID, models.DeliveryMechanism{ContentType: models.MediaTypePDF, DRMScheme: models.DRMAdobe}, true)
	checkNoError(t, err)
	second, err := f.store.SetDeliveryMechanism(ctx, f.pool.ID, models.DeliveryMechanism{ContentType: models.MediaTypeEPUB, DRMScheme: models.DRMAdobe}, true)
	checkNoError(t, err)
	_, _, err = f.store.PutLoan(ctx, &models.Loan{PatronID: f.patron.ID, LicensePoolID: f.pool.ID, FulfillmentID: first.ID})
	checkNoError(t, err)
	f.circ.fulfillment = &circulation.Fulfillment{Kind: circulation.FulfillFetch, ContentLink: "https://dl.example"}

	rec := f.do(t, http.MethodGet, fmt.Sprintf("%s/%d/fulfill?mechanism=%d", loansPath(f.patron.ID), f.pool.ID, second.ID), nil, nil)
	checkStatus(t, rec, http.StatusOK)
	loan, err := f.store.GetLoan(ctx, f.patron.ID, f.pool.ID)
	checkNoError(t, err)
	if loan.FulfillmentID != first.ID {
		t.Errorf("fulfillment = %d, want the original %d", loan.FulfillmentID, first.ID)
	}
}

func TestFulfill_Rejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	foreign, err := f.store.SetDeliveryMechanism(ctx, f.other.ID, models.DeliveryMechanism{ContentType: models.MediaTypeEPUB}, true)
	checkNoError(t, err)
	base := fmt.Sprintf("%s/%d/fulfill", loansPath(f.patron.ID), f.pool.ID)

	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"missing mechanism", "", http.StatusBadRequest},
		{"non-numeric mechanism", "?mechanism=epub", http.StatusBadRequest},
		{"unknown mechanism", "?mechanism=9999", http.StatusNotFound},
		{"mechanism of another pool", fmt.Sprintf("?mechanism=%d", foreign.ID), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, base+tt.query, nil, nil)
			checkStatus(t, rec, tt.wantStatus)
		})
	}
	if len(f.circ.calls) != 0 {
		t.Errorf("vendor called for rejected requests: %v", f.circ.calls)
	}
}

func TestPlaceAndReleaseHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	f.circ.hold = &circulation.HoldInfo{Start: ptrTime(start)}

	rec := f.do(t, http.MethodPost, holdsPath(f.patron.ID), models.HoldRequest{PoolID: f.pool.ID, Email: "reader@example.org"}, nil)
	checkStatus(t, rec, http.StatusCreated)
	checkStringEqual(t, "hold email", f.circ.holdEmail, "reader@example.org")

	rec = f.do(t, http.MethodGet, holdsPath(f.patron.ID), nil, nil)
	checkStatus(t, rec, http.StatusOK)
	var holds []models.Hold
	decodeData(t, rec, &holds)
	checkIntEqual(t, "holds", len(holds), 1)

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("%s/%d", holdsPath(f.patron.ID), f.pool.ID), nil, nil)
	checkStatus(t, rec, http.StatusNoContent)
	if _, err := f.store.GetHold(ctx, f.patron.ID, f.pool.ID); err == nil {
		t.Error("local hold survived the release")
	}
}

func TestPlaceHold_Rejected(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, holdsPath(f.patron.ID), models.HoldRequest{PoolID: f.pool.ID, Email: "not-an-email"}, nil)
	checkStatus(t, rec, http.StatusBadRequest)

	f.circ.holdErr = circulation.New(circulation.KindPatronHoldLimitReached, "")
	rec = f.do(t, http.MethodPost, holdsPath(f.patron.ID), models.HoldRequest{PoolID: f.pool.ID}, nil)
	checkStatus(t, rec, http.StatusForbidden)
	pd := decodeProblem(t, rec)
	checkStringEqual(t, "type", pd.Type, circulation.ProblemTypePrefix+"hold-limit-reached")
}

func TestPlaceHold_AlreadyOnHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.circ.holdErr = circulation.New(circulation.KindAlreadyOnHold, "AlreadyOnWaitList")

	// No local row yet: one is recorded at an unknown position.
	rec := f.do(t, http.MethodPost, holdsPath(f.patron.ID), models.HoldRequest{PoolID: f.pool.ID}, nil)
	checkStatus(t, rec, http.StatusCreated)
	var got BorrowResult
	decodeData(t, rec, &got)
	checkStringEqual(t, "type", got.Type, "hold")
	if got.Hold == nil || got.Hold.Position != nil {
		t.Fatalf("hold = %+v, want a hold without position", got.Hold)
	}

	// A known local hold is shown as it is.
	position := 3
	_, _, err := f.store.PutHold(ctx, &models.Hold{PatronID: f.patron.ID, LicensePoolID: f.pool.ID, Position: &position})
	checkNoError(t, err)
	rec = f.do(t, http.MethodPost, holdsPath(f.patron.ID), models.HoldRequest{PoolID: f.pool.ID}, nil)
	checkStatus(t, rec, http.StatusOK)
	got = BorrowResult{}
	decodeData(t, rec, &got)
	if got.Hold == nil || got.Hold.Position == nil || *got.Hold.Position != 3 {
		t.Errorf("hold = %+v, want the local hold at position 3", got.Hold)
	}
}

func TestListLoans_Empty(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, loansPath(f.patron.ID), nil, nil)
	checkStatus(t, rec, http.StatusOK)
	if !bytesContain(rec.Body.Bytes(), `"data":[]`) {
		t.Errorf("body = %s, want an empty list", rec.Body.String())
	}
}

func TestSync(t *testing.T) {
	f := newFixture(t)
	f.shelf.result = bookshelf.Result{
		Loans: bookshelf.Changes{Created: 2, Deleted: 1},
		Holds: bookshelf.Changes{Updated: 1},
	}

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/patrons/%d/sync", f.patron.ID), nil, http.Header{PatronPinHeader: {"9999"}})
	checkStatus(t, rec, http.StatusOK)
	var got models.SyncResponse
	decodeData(t, rec, &got)
	checkIntEqual(t, "loans created", got.LoansCreated, 2)
	checkIntEqual(t, "loans deleted", got.LoansDeleted, 1)
	checkIntEqual(t, "holds updated", got.HoldsUpdated, 1)
	if len(f.shelf.pins) != 1 || f.shelf.pins[0] != "9999" {
		t.Errorf("pins = %v, want the header pin", f.shelf.pins)
	}

	f.shelf.err = circulation.New(circulation.KindPatronAuthorizationFailed, "")
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/patrons/%d/sync", f.patron.ID), nil, nil)
	checkStatus(t, rec, http.StatusUnauthorized)
}

func TestRefreshAvailability(t *testing.T) {
	f := newFixture(t)
	updated := *f.pool
	updated.LicensesAvailable = 4
	f.circ.refreshed = &updated
	f.circ.changed = true

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/pools/%d/availability", f.pool.ID), nil, nil)
	checkStatus(t, rec, http.StatusOK)
	var got models.AvailabilityResponse
	decodeData(t, rec, &got)
	checkBool(t, "changed", got.Changed, true)
	checkBool(t, "is new", got.IsNew, false)
	checkIntEqual(t, "available", got.Pool.LicensesAvailable, 4)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/pools/%d/availability", f.other.ID), nil, nil)
	checkStatus(t, rec, http.StatusNotFound)
}

func TestImportTitle(t *testing.T) {
	f := newFixture(t)
	f.circ.refreshed = f.pool
	f.circ.isNew = true

	rec := f.do(t, http.MethodPost, "/api/v1/titles/od-1/availability", nil, nil)
	checkStatus(t, rec, http.StatusCreated)
	var got models.AvailabilityResponse
	decodeData(t, rec, &got)
	checkBool(t, "is new", got.IsNew, true)

	f.circ.refreshed = nil
	f.circ.isNew = false
	rec = f.do(t, http.MethodPost, "/api/v1/titles/od-404/availability", nil, nil)
	checkStatus(t, rec, http.StatusNotFound)
}

func TestHealth(t *testing.T) {
	last := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		opts       []HandlerOption
		wantStatus string
		wantDB     bool
		wantLast   bool
	}{
		{"no dependencies", nil, "healthy", false, false},
		{"database up", []HandlerOption{WithDatabase(fakePinger{})}, "healthy", true, false},
		{"database down", []HandlerOption{WithDatabase(fakePinger{err: errBoom})}, "degraded", false, false},
		{"monitor ran", []HandlerOption{WithMonitor(fakeMonitor{last: last})}, "healthy", false, true},
		{"monitor never ran", []HandlerOption{WithMonitor(fakeMonitor{})}, "healthy", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.opts...)
			rec := f.do(t, http.MethodGet, "/health", nil, nil)
			checkStatus(t, rec, http.StatusOK)
			var got models.HealthStatus
			decodeData(t, rec, &got)
			checkStringEqual(t, "status", got.Status, tt.wantStatus)
			checkBool(t, "database connected", got.DatabaseConnected, tt.wantDB)
			checkBool(t, "last monitor run", got.LastMonitorRun != nil, tt.wantLast)
			if tt.wantLast && !got.LastMonitorRun.Equal(last) {
				t.Errorf("last monitor run = %v, want %v", got.LastMonitorRun, last)
			}
		})
	}
}
