// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/circulation/internal/auth"
	"github.com/tomtom215/circulation/internal/config"
	"github.com/tomtom215/circulation/internal/middleware"
)

const (
	defaultRateLimitReqs   = 100
	defaultRateLimitWindow = time.Minute
)

// Router wires the handler into a chi mux.
type Router struct {
	handler  *Handler
	auth     *auth.Middleware
	security config.SecurityConfig
}

// NewRouter creates a Router. authMW guards every /api/v1 route.
func NewRouter(handler *Handler, authMW *auth.Middleware, security config.SecurityConfig) *Router {
	return &Router{handler: handler, auth: authMW, security: security}
}

// NewAuthMiddleware builds the /api/v1 guard from security settings. With
// AuthDisabled every request runs as anonymous staff.
func NewAuthMiddleware(security *config.SecurityConfig) (*auth.Middleware, error) {
	if security.AuthDisabled {
		return auth.NewDisabledMiddleware(), nil
	}
	verifier, err := auth.NewJWTVerifier(security)
	if err != nil {
		return nil, err
	}
	enforcer, err := auth.NewEnforcer()
	if err != nil {
		return nil, err
	}
	return auth.NewMiddleware(verifier, enforcer, authProblem), nil
}

// Handler builds the http.Handler for all routes.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.cors())
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		notFound(w, r, "No route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondProblem(w, r, apiProblem(http.StatusMethodNotAllowed, slugMethodNotAllowed,
			"Method not allowed", r.Method+" is not supported on "+r.URL.Path))
	})

	r.Get("/health", rt.handler.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.rateLimit())
		r.Use(rt.auth.Handler)

		r.Route("/patrons/{patronID}", func(r chi.Router) {
			r.Get("/loans", rt.handler.ListLoans)
			r.Post("/loans", rt.handler.Borrow)
			r.Delete("/loans/{poolID}", rt.handler.ReturnLoan)
			r.Get("/loans/{poolID}/fulfill", rt.handler.Fulfill)

			r.Get("/holds", rt.handler.ListHolds)
			r.Post("/holds", rt.handler.PlaceHold)
			r.Delete("/holds/{poolID}", rt.handler.ReleaseHold)

			r.Post("/sync", rt.handler.Sync)
		})

		r.Post("/pools/{poolID}/availability", rt.handler.RefreshAvailability)
		r.Post("/titles/{titleID}/availability", rt.handler.ImportTitle)
	})

	return r
}

func (rt *Router) cors() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: rt.security.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", PatronPinHeader, middleware.RequestIDHeader},
		ExposedHeaders: []string{
			middleware.RequestIDHeader,
			"Location",
			"X-Overdrive-Scope",
			"X-Overdrive-Patron-Authorization",
		},
		MaxAge: 86400,
	})
}

func (rt *Router) rateLimit() func(http.Handler) http.Handler {
	if rt.security.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	reqs, window := rt.security.RateLimitReqs, rt.security.RateLimitWindow
	if reqs <= 0 {
		reqs = defaultRateLimitReqs
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return httprate.Limit(reqs, window,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondProblem(w, r, apiProblem(http.StatusTooManyRequests, slugRateLimited,
				"Too many requests", "Rate limit exceeded, retry later"))
		}),
	)
}
