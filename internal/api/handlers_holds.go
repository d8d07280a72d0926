// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/circulation/internal/bookshelf"
	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/logging"
	"github.com/tomtom215/circulation/internal/models"
)

// ListHolds returns the patron's local holds.
// @Summary List holds
// @Tags Holds
// @Produce json
// @Param patronID path int true "Patron ID"
// @Success 200 {object} models.APIResponse{data=[]models.Hold}
// @Failure 404 {object} circulation.ProblemDetail "Patron not found"
// @Security BearerAuth
// @Router /api/v1/patrons/{patronID}/holds [get]
func (h *Handler) ListHolds(w http.ResponseWriter, r *http.Request) {
	patron, _, ok := h.patron(w, r)
	if !ok {
		return
	}
	holds, err := h.store.ListHolds(r.Context(), patron.ID)
	if err != nil {
		h.problem(w, r, err)
		return
	}
	if holds == nil {
		holds = []models.Hold{}
	}
	respondJSON(w, r, http.StatusOK, holds)
}

// PlaceHold puts the patron in a title's queue.
// @Summary Place a hold
// @Description A title the patron already waits for answers with the local hold.
// @Tags Holds
// @Accept json
// @Produce json
// @Param patronID path int true "Patron ID"
// @Param X-Patron-Pin header string false "Patron PIN"
// @Param request body models.HoldRequest true "Pool and optional notification email"
// @Success 200 {object} models.APIResponse{data=BorrowResult} "Existing hold"
// @Success 201 {object} models.APIResponse{data=BorrowResult} "New hold"
// @Failure 400 {object} circulation.ProblemDetail "Invalid request"
// @Failure 404 {object} circulation.ProblemDetail "Patron or pool not found"
// @Failure 403 {object} circulation.ProblemDetail "Hold limit reached"
// @Security BearerAuth
// @Router /api/v1/patrons/{patronID}/holds [post]
func (h *Handler) PlaceHold(w http.ResponseWriter, r *http.Request) {
	patron, pin, ok := h.patron(w, r)
	if !ok {
		return
	}
	var req models.HoldRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	pool, ok := h.pool(w, r, req.PoolID)
	if !ok {
		return
	}
	ctx := logging.ContextWithOperation(r.Context(), "place_hold")
	h.placeHold(w, r.WithContext(ctx), patron, pin, pool, req.Email)
}

func (h *Handler) placeHold(w http.ResponseWriter, r *http.Request, patron *models.Patron, pin string, pool *models.LicensePool, email string) {
	info, err := h.circ.PlaceHold(r.Context(), patron, pin, pool, email)
	if errors.Is(err, circulation.ErrAlreadyOnHold) {
		logging.Ctx(r.Context()).Info().Int64("pool_id", pool.ID).Msg("Patron already on the vendor wait list")
		info, err = h.knownHold(r.Context(), patron, pool)
	}
	if err != nil {
		h.problem(w, r, err)
		return
	}
	hold, created, err := bookshelf.RecordHold(r.Context(), h.store, patron, pool, info)
	if err != nil {
		h.problem(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, r, status, &BorrowResult{Type: "hold", Hold: hold})
}

// knownHold describes a hold the vendor already has: the local row when
// there is one, otherwise a hold at an unknown position.
func (h *Handler) knownHold(ctx context.Context, patron *models.Patron, pool *models.LicensePool) (*circulation.HoldInfo, error) {
	info := &circulation.HoldInfo{
		CollectionID:   pool.CollectionID,
		DataSource:     pool.DataSource,
		IdentifierType: pool.Identifier.Type,
		Identifier:     pool.Identifier.Value,
	}
	local, err := h.store.GetHold(ctx, patron.ID, pool.ID)
	switch {
	case err == nil:
		info.Start, info.End, info.Position = local.Start, local.End, local.Position
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}
	return info, nil
}

// ReleaseHold leaves a title's queue and removes the local row.
// @Summary Release a hold
// @Tags Holds
// @Param patronID path int true "Patron ID"
// @Param X-Patron-Pin header string false "Patron PIN"
// @Param poolID path int true "License pool ID"
// @Success 204 "Released"
// @Failure 400 {object} circulation.ProblemDetail "Invalid request"
// @Failure 404 {object} circulation.ProblemDetail "Patron or pool not found"
// @Security BearerAuth
// @Router /api/v1/patrons/{patronID}/holds/{poolID} [delete]
func (h *Handler) ReleaseHold(w http.ResponseWriter, r *http.Request) {
	patron, pin, ok := h.patron(w, r)
	if !ok {
		return
	}
	pool, ok := h.poolFromPath(w, r)
	if !ok {
		return
	}
	ctx := logging.ContextWithOperation(r.Context(), "release_hold")
	if err := h.circ.ReleaseHold(ctx, patron, pin, pool); err != nil {
		h.problem(w, r, err)
		return
	}

	hold, err := h.store.GetHold(r.Context(), patron.ID, pool.ID)
	switch {
	case err == nil:
		if err := h.store.DeleteHold(r.Context(), hold.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			h.problem(w, r, err)
			return
		}
	case !errors.Is(err, models.ErrNotFound):
		h.problem(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
