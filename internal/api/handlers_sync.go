// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/circulation/internal/logging"
	"github.com/tomtom215/circulation/internal/models"
)

// Sync aligns the patron's local loans and holds with the vendor.
// @Summary Sync a bookshelf
// @Tags Sync
// @Produce json
// @Param patronID path int true "Patron ID"
// @Param X-Patron-Pin header string false "Patron PIN"
// @Success 200 {object} models.APIResponse{data=models.SyncResponse}
// @Failure 401 {object} circulation.ProblemDetail "Vendor rejected the patron credentials"
// @Failure 404 {object} circulation.ProblemDetail "Patron not found"
// @Security BearerAuth
// @Router /api/v1/patrons/{patronID}/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	patron, pin, ok := h.patron(w, r)
	if !ok {
		return
	}
	ctx := logging.ContextWithOperation(r.Context(), "sync_bookshelf")
	result, err := h.shelf.Sync(ctx, patron, pin)
	if err != nil {
		h.problem(w, r, err)
		return
	}
	logging.Ctx(ctx).Info().
		Int64("patron_id", patron.ID).
		Int("skipped", result.Skipped).
		Dur("duration", time.Since(start)).
		Msg("Bookshelf synced")

	respondJSON(w, r, http.StatusOK, &models.SyncResponse{
		LoansCreated: result.Loans.Created,
		LoansUpdated: result.Loans.Updated,
		LoansDeleted: result.Loans.Deleted,
		HoldsCreated: result.Holds.Created,
		HoldsUpdated: result.Holds.Updated,
		HoldsDeleted: result.Holds.Deleted,
	})
}

// RefreshAvailability asks the vendor for a pool's current counts.
// @Summary Refresh pool availability
// @Tags Availability
// @Produce json
// @Param poolID path int true "License pool ID"
// @Success 200 {object} models.APIResponse{data=models.AvailabilityResponse}
// @Failure 404 {object} circulation.ProblemDetail "Pool not found"
// @Security BearerAuth
// @Router /api/v1/pools/{poolID}/availability [post]
func (h *Handler) RefreshAvailability(w http.ResponseWriter, r *http.Request) {
	pool, ok := h.poolFromPath(w, r)
	if !ok {
		return
	}
	ctx := logging.ContextWithOperation(r.Context(), "update_availability")
	updated, changed, err := h.circ.UpdateAvailability(ctx, pool)
	if err != nil {
		h.problem(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, &models.AvailabilityResponse{Pool: updated, Changed: changed})
}

// ImportTitle refreshes the pool for a vendor title id, creating it when
// this collection has never seen the title.
// @Summary Import a vendor title
// @Tags Availability
// @Produce json
// @Param titleID path string true "Overdrive title ID"
// @Success 200 {object} models.APIResponse{data=models.AvailabilityResponse} "Known pool refreshed"
// @Success 201 {object} models.APIResponse{data=models.AvailabilityResponse} "Pool created"
// @Failure 404 {object} circulation.ProblemDetail "Vendor could not report on the title"
// @Security BearerAuth
// @Router /api/v1/titles/{titleID}/availability [post]
func (h *Handler) ImportTitle(w http.ResponseWriter, r *http.Request) {
	titleID := strings.TrimSpace(chi.URLParam(r, "titleID"))
	if titleID == "" {
		badRequest(w, r, "titleID is required")
		return
	}
	ctx := logging.ContextWithOperation(r.Context(), "update_license_pool")
	pool, isNew, changed, err := h.circ.UpdateLicensePool(ctx, titleID)
	if err != nil {
		h.problem(w, r, err)
		return
	}
	if pool == nil {
		notFound(w, r, "The vendor could not report on title "+titleID)
		return
	}
	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	respondJSON(w, r, status, &models.AvailabilityResponse{Pool: pool, IsNew: isNew, Changed: changed})
}
