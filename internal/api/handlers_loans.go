// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tomtom215/circulation/internal/bookshelf"
	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/logging"
	"github.com/tomtom215/circulation/internal/models"
)

// BorrowResult is the body of a borrow. Exactly one of Loan and Hold is
// set; Type says which.
type BorrowResult struct {
	Type string       `json:"type"`
	Loan *models.Loan `json:"loan,omitempty"`
	Hold *models.Hold `json:"hold,omitempty"`
}

// ListLoans returns the patron's local loans.
// @Summary List loans
// @Description Returns the loans recorded locally for a patron. Run a sync first to pick up vendor changes.
// @Tags Loans
// @Produce json
// @Param patronID path int true "Patron ID"
// @Success 200 {object} models.APIResponse{data=[]models.Loan}
// @Failure 404 {object} circulation.ProblemDetail "Patron not found"
// @Security BearerAuth
// @Router /api/v1/patrons/{patronID}/loans [get]
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	patron, _, ok := h.patron(w, r)
	if !ok {
		return
	}
	loans, err := h.store.ListLoans(r.Context(), patron.ID)
	if err != nil {
		h.problem(w, r, err)
		return
	}
	if loans == nil {
		loans = []models.Loan{}
	}
	respondJSON(w, r, http.StatusOK, loans)
}

// Borrow checks a title out for the patron. When no copy is free the
// patron is put on hold instead.
// @Summary Borrow a title
// @Description Checks a title out. When no copy is free the patron joins the hold queue and a hold is returned instead.
// @Tags Loans
// @Accept json
// @Produce json
// @Param patronID path int true "Patron ID"
// @Param X-Patron-Pin header string false "Patron PIN"
// @Param request body models.BorrowRequest true "Pool and optional delivery mechanism"
// @Success 200 {object} models.APIResponse{data=BorrowResult} "Existing loan or hold"
// @Success 201 {object} models.APIResponse{data=BorrowResult} "New loan or hold"
// @Failure 400 {object} circulation.ProblemDetail "Invalid request"
// @Failure 404 {object} circulation.ProblemDetail "Patron or pool not found"
// @Failure 403 {object} circulation.ProblemDetail "Loan or hold limit reached"
// @Failure 502 {object} circulation.ProblemDetail "Vendor unavailable"
// @Security BearerAuth
// @Router /api/v1/patrons/{patronID}/loans [post]
func (h *Handler) Borrow(w http.ResponseWriter, r *http.Request) {
	patron, pin, ok := h.patron(w, r)
	if !ok {
		return
	}
	var req models.BorrowRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	pool, ok := h.pool(w, r, req.PoolID)
	if !ok {
		return
	}

	ctx := logging.ContextWithOperation(r.Context(), "borrow")
	var mechanism *models.DeliveryMechanism
	if req.ContentType != "" {
		mechanism = &models.DeliveryMechanism{ContentType: req.ContentType, DRMScheme: req.DRMScheme}
	}

	info, err := h.circ.Checkout(ctx, patron, pin, pool, mechanism)
	if errors.Is(err, circulation.ErrNoAvailableCopies) {
		logging.Ctx(ctx).Info().Int64("pool_id", pool.ID).Msg("No copies available, placing hold")
		h.placeHold(w, r.WithContext(ctx), patron, pin, pool, "")
		return
	}
	if err != nil {
		h.problem(w, r, err)
		return
	}

	loan, created, err := bookshelf.RecordLoan(ctx, h.store, patron, pool, info)
	if err != nil {
		h.problem(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, r, status, &BorrowResult{Type: "loan", Loan: loan})
}

// ReturnLoan returns a loan early and removes the local row.
// @Summary Return a loan
// @Tags Loans
// @Param patronID path int true "Patron ID"
// @Param X-Patron-Pin header string false "Patron PIN"
// @Param poolID path int true "License pool ID"
// @Success 204 "Returned"
// @Failure 400 {object} circulation.ProblemDetail "Invalid request"
// @Failure 404 {object} circulation.ProblemDetail "Patron or pool not found"
// @Security BearerAuth
// @Router /api/v1/patrons/{patronID}/loans/{poolID} [delete]
func (h *Handler) ReturnLoan(w http.ResponseWriter, r *http.Request) {
	patron, pin, ok := h.patron(w, r)
	if !ok {
		return
	}
	pool, ok := h.poolFromPath(w, r)
	if !ok {
		return
	}

	ctx := logging.ContextWithOperation(r.Context(), "return")
	if err := h.circ.Checkin(ctx, patron, pin, pool); err != nil {
		h.problem(w, r, err)
		return
	}
	if err := h.deleteLoan(r, patron.ID, pool.ID); err != nil {
		h.problem(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteLoan(r *http.Request, patronID, poolID int64) error {
	loan, err := h.store.GetLoan(r.Context(), patronID, poolID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := h.store.DeleteLoan(r.Context(), loan.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	return nil
}

// Fulfill delivers a loan in the mechanism named by ?mechanism=, the id of
// one of the pool's delivery mechanisms. Redirect fulfillments answer 302,
// manifest fulfillments carry the vendor headers a client needs to fetch
// the manifest itself.
// @Summary Fulfill a loan
// @Tags Loans
// @Produce json
// @Param patronID path int true "Patron ID"
// @Param X-Patron-Pin header string false "Patron PIN"
// @Param poolID path int true "License pool ID"
// @Param mechanism query int true "Delivery mechanism ID of the pool"
// @Param return_url query string false "Where a streaming reader sends the patron back to"
// @Success 200 {object} models.APIResponse{data=circulation.Fulfillment}
// @Success 302 "Redirect to the content link"
// @Failure 400 {object} circulation.ProblemDetail "Invalid request"
// @Failure 404 {object} circulation.ProblemDetail "Patron or pool not found"
// @Security BearerAuth
// @Router /api/v1/patrons/{patronID}/loans/{poolID}/fulfill [get]
func (h *Handler) Fulfill(w http.ResponseWriter, r *http.Request) {
	patron, pin, ok := h.patron(w, r)
	if !ok {
		return
	}
	pool, ok := h.poolFromPath(w, r)
	if !ok {
		return
	}
	mechanismID, err := strconv.ParseInt(r.URL.Query().Get("mechanism"), 10, 64)
	if err != nil || mechanismID <= 0 {
		badRequest(w, r, "mechanism must be a delivery mechanism id")
		return
	}
	lpdm, err := h.store.GetDeliveryMechanism(r.Context(), mechanismID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		h.problem(w, r, err)
		return
	}
	if lpdm == nil || lpdm.LicensePoolID != pool.ID {
		notFound(w, r, fmt.Sprintf("Delivery mechanism %d is not offered by pool %d", mechanismID, pool.ID))
		return
	}

	ctx := logging.ContextWithOperation(r.Context(), "fulfill")
	f, err := h.circ.Fulfill(ctx, patron, pin, pool, lpdm.Mechanism, r.URL.Query().Get("return_url"))
	if err != nil {
		h.problem(w, r, err)
		return
	}
	if !lpdm.Mechanism.Streaming() {
		h.lockLoan(r, patron.ID, pool.ID, lpdm.ID)
	}

	switch f.Kind {
	case circulation.FulfillRedirect:
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, f.ContentLink, http.StatusFound)
	case circulation.FulfillManifest:
		for k, v := range f.ManifestHeaders() {
			w.Header().Set(k, v)
		}
		respondJSON(w, r, http.StatusOK, f)
	default:
		respondJSON(w, r, http.StatusOK, f)
	}
}

// lockLoan records the first downloadable mechanism a loan is fulfilled
// with. Failure to record it does not fail the fulfillment.
func (h *Handler) lockLoan(r *http.Request, patronID, poolID, mechanismID int64) {
	log := logging.Ctx(r.Context())
	loan, err := h.store.GetLoan(r.Context(), patronID, poolID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			log.Warn().Err(err).Int64("pool_id", poolID).Msg("Could not load loan after fulfillment")
		}
		return
	}
	if loan.FulfillmentID != 0 {
		return
	}
	loan.FulfillmentID = mechanismID
	if _, _, err := h.store.PutLoan(r.Context(), loan); err != nil {
		log.Warn().Err(err).Int64("loan_id", loan.ID).Msg("Could not record loan fulfillment")
	}
}
