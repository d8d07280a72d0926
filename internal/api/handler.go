// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package api

import (
	"context"
	"time"

	"github.com/tomtom215/circulation/internal/bookshelf"
	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/models"
)

// Circulation is the vendor engine of one collection.
type Circulation interface {
	Collection() models.Collection
	Checkout(ctx context.Context, patron *models.Patron, pin string, pool *models.LicensePool, mechanism *models.DeliveryMechanism) (*circulation.LoanInfo, error)
	Checkin(ctx context.Context, patron *models.Patron, pin string, pool *models.LicensePool) error
	PlaceHold(ctx context.Context, patron *models.Patron, pin string, pool *models.LicensePool, email string) (*circulation.HoldInfo, error)
	ReleaseHold(ctx context.Context, patron *models.Patron, pin string, pool *models.LicensePool) error
	Fulfill(ctx context.Context, patron *models.Patron, pin string, pool *models.LicensePool, mechanism models.DeliveryMechanism, returnURL string) (*circulation.Fulfillment, error)
	UpdateAvailability(ctx context.Context, pool *models.LicensePool) (*models.LicensePool, bool, error)
	// UpdateLicensePool refreshes the pool for a vendor title id, creating
	// it when unseen. It reports whether the pool is new and whether its
	// counts changed.
	UpdateLicensePool(ctx context.Context, vendorID string) (*models.LicensePool, bool, bool, error)
}

// BookshelfSyncer aligns a patron's local rows with the vendor.
type BookshelfSyncer interface {
	Sync(ctx context.Context, patron *models.Patron, pin string) (bookshelf.Result, error)
}

// Pinger reports database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MonitorStatus reports when the circulation monitor last completed.
type MonitorStatus interface {
	LastRun() time.Time
}

// Version is reported by /health.
var Version = "dev"

// Handler serves the API routes.
type Handler struct {
	store   models.Store
	circ    Circulation
	shelf   BookshelfSyncer
	db      Pinger
	monitor MonitorStatus
	debug   bool

	startTime time.Time
	now       func() time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithDatabase makes /health report database connectivity.
func WithDatabase(db Pinger) HandlerOption {
	return func(h *Handler) { h.db = db }
}

// WithMonitor makes /health report the last monitor run.
func WithMonitor(m MonitorStatus) HandlerOption {
	return func(h *Handler) { h.monitor = m }
}

// WithDebug attaches vendor debug detail to problem documents.
func WithDebug(debug bool) HandlerOption {
	return func(h *Handler) { h.debug = debug }
}

// NewHandler creates a Handler.
func NewHandler(store models.Store, circ Circulation, shelf BookshelfSyncer, opts ...HandlerOption) *Handler {
	h := &Handler{
		store:     store,
		circ:      circ,
		shelf:     shelf,
		startTime: time.Now(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
