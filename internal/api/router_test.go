// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	_ "github.com/tomtom215/circulation/docs"
	"github.com/tomtom215/circulation/internal/auth"
	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/config"
	"github.com/tomtom215/circulation/internal/middleware"
	"github.com/tomtom215/circulation/internal/models"
)

func authedRouter(t *testing.T, f *fixture, security config.SecurityConfig) (http.Handler, *auth.JWTVerifier) {
	t.Helper()
	security.JWTSecret = "test-secret-with-enough-entropy"
	verifier, err := auth.NewJWTVerifier(&security)
	checkNoError(t, err)
	mw, err := NewAuthMiddleware(&security)
	checkNoError(t, err)
	return NewRouter(f.handler, mw, security).Handler(), verifier
}

func bearer(t *testing.T, v *auth.JWTVerifier, subject string, roles ...string) http.Header {
	t.Helper()
	token, err := v.Sign(subject, roles, time.Hour)
	checkNoError(t, err)
	return http.Header{"Authorization": {"Bearer " + token}}
}

func TestRouter_Authorization(t *testing.T) {
	f := newFixture(t)
	f.circ.loan = &circulation.LoanInfo{}
	router, verifier := authedRouter(t, f, config.SecurityConfig{RateLimitDisabled: true})
	self := strconv.FormatInt(f.patron.ID, 10)
	borrow := models.BorrowRequest{PoolID: f.pool.ID}

	tests := []struct {
		name       string
		method     string
		path       string
		header     http.Header
		wantStatus int
		wantType   string
	}{
		{"no token", http.MethodPost, loansPath(f.patron.ID), nil, http.StatusUnauthorized, slugUnauthorized},
		{"garbage token", http.MethodPost, loansPath(f.patron.ID), http.Header{"Authorization": {"Bearer nope"}}, http.StatusUnauthorized, slugUnauthorized},
		{"patron for self", http.MethodPost, loansPath(f.patron.ID), bearer(t, verifier, self, auth.RolePatron), http.StatusCreated, ""},
		{"patron for another patron", http.MethodPost, loansPath(f.patron.ID + 1), bearer(t, verifier, self, auth.RolePatron), http.StatusForbidden, slugForbidden},
		{"staff for a patron", http.MethodGet, loansPath(f.patron.ID), bearer(t, verifier, "ops", auth.RoleStaff), http.StatusOK, ""},
		{"patron refreshing availability", http.MethodPost, fmt.Sprintf("/api/v1/pools/%d/availability", f.pool.ID), bearer(t, verifier, self, auth.RolePatron), http.StatusForbidden, slugForbidden},
		{"health needs no token", http.MethodGet, "/health", nil, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body any
			if tt.method == http.MethodPost {
				body = borrow
			}
			rec := serve(t, router, tt.method, tt.path, body, tt.header)
			checkStatus(t, rec, tt.wantStatus)
			if tt.wantType != "" {
				pd := decodeProblem(t, rec)
				checkStringEqual(t, "problem type", pd.Type, circulation.ProblemTypePrefix+tt.wantType)
			}
			if tt.wantStatus == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate")
			}
		})
	}
}

func TestRouter_RateLimit(t *testing.T) {
	f := newFixture(t)
	router, verifier := authedRouter(t, f, config.SecurityConfig{RateLimitReqs: 1, RateLimitWindow: time.Minute})
	header := bearer(t, verifier, "ops", auth.RoleStaff)

	rec := serve(t, router, http.MethodGet, loansPath(f.patron.ID), nil, header)
	checkStatus(t, rec, http.StatusOK)
	rec = serve(t, router, http.MethodGet, loansPath(f.patron.ID), nil, header)
	checkStatus(t, rec, http.StatusTooManyRequests)
	pd := decodeProblem(t, rec)
	checkStringEqual(t, "problem type", pd.Type, circulation.ProblemTypePrefix+slugRateLimited)

	// Health is outside the limited group.
	rec = serve(t, router, http.MethodGet, "/health", nil, nil)
	checkStatus(t, rec, http.StatusOK)
}

func TestRouter_UnknownRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/nowhere", nil, nil)
	checkStatus(t, rec, http.StatusNotFound)
	pd := decodeProblem(t, rec)
	checkStringEqual(t, "problem type", pd.Type, circulation.ProblemTypePrefix+slugNotFound)

	rec = f.do(t, http.MethodPut, loansPath(f.patron.ID), nil, nil)
	checkStatus(t, rec, http.StatusMethodNotAllowed)
	pd = decodeProblem(t, rec)
	checkStringEqual(t, "problem type", pd.Type, circulation.ProblemTypePrefix+slugMethodNotAllowed)

	rec = f.do(t, http.MethodDelete, loansPath(f.patron.ID)+"/abc", nil, nil)
	checkStatus(t, rec, http.StatusBadRequest)
}

func TestRouter_RequestID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil, http.Header{middleware.RequestIDHeader: {"upstream-42"}})
	checkStringEqual(t, "request id", rec.Header().Get(middleware.RequestIDHeader), "upstream-42")
	if !bytesContain(rec.Body.Bytes(), `"request_id":"upstream-42"`) {
		t.Errorf("body = %s, want the request id in metadata", rec.Body.String())
	}
}

func TestRouter_Metrics(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/metrics", nil, nil)
	checkStatus(t, rec, http.StatusOK)
}

func TestNewAuthMiddleware(t *testing.T) {
	_, err := NewAuthMiddleware(&config.SecurityConfig{})
	if err == nil {
		t.Fatal("expected an error without a JWT secret")
	}

	f := newFixture(t)
	mw, err := NewAuthMiddleware(&config.SecurityConfig{AuthDisabled: true})
	checkNoError(t, err)
	h := NewRouter(f.handler, mw, config.SecurityConfig{RateLimitDisabled: true}).Handler()
	rec := serve(t, h, http.MethodGet, loansPath(f.patron.ID), nil, nil)
	checkStatus(t, rec, http.StatusOK)
}

// Every API route is described in the OpenAPI document, which is served
// without a token.
func TestRouter_OpenAPIDocument(t *testing.T) {
	f := newFixture(t)
	router, _ := authedRouter(t, f, config.SecurityConfig{RateLimitDisabled: true})

	rec := serve(t, router, http.MethodGet, "/swagger/doc.json", nil, nil)
	checkStatus(t, rec, http.StatusOK)
	var doc struct {
		Swagger string                     `json:"swagger"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	checkNoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	checkStringEqual(t, "swagger", doc.Swagger, "2.0")

	routes, ok := router.(chi.Routes)
	if !ok {
		t.Fatalf("router is %T, want chi.Routes", router)
	}
	walk := func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if route == "/metrics" || strings.HasPrefix(route, "/swagger/") {
			return nil
		}
		if _, ok := doc.Paths[route][strings.ToLower(method)]; !ok {
			t.Errorf("%s %s is not in the OpenAPI document", method, route)
		}
		return nil
	}
	checkNoError(t, chi.Walk(routes, walk))

	rec = serve(t, router, http.MethodGet, "/swagger/index.html", nil, nil)
	checkStatus(t, rec, http.StatusOK)
}
