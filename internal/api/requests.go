// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/circulation/internal/models"
	"github.com/tomtom215/circulation/internal/validation"
)

// PatronPinHeader carries the patron's PIN. It may be absent for libraries
// that authenticate by barcode alone.
const PatronPinHeader = "X-Patron-Pin"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// idParam parses a positive integer path parameter.
func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

// decodeBody decodes and validates a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return errors.New("request body too large")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("request body is not valid JSON: %w", err)
	}
	return validation.Struct(dst)
}

// patron loads the patron named in the path. It writes the problem and
// returns false when the patron cannot be resolved.
func (h *Handler) patron(w http.ResponseWriter, r *http.Request) (*models.Patron, string, bool) {
	id, err := idParam(r, "patronID")
	if err != nil {
		badRequest(w, r, err.Error())
		return nil, "", false
	}
	patron, err := h.store.GetPatron(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		notFound(w, r, fmt.Sprintf("No patron with id %d", id))
		return nil, "", false
	}
	if err != nil {
		h.problem(w, r, err)
		return nil, "", false
	}
	return patron, r.Header.Get(PatronPinHeader), true
}

// pool loads a pool of this API's collection.
func (h *Handler) pool(w http.ResponseWriter, r *http.Request, id int64) (*models.LicensePool, bool) {
	pool, err := h.store.GetPool(r.Context(), id)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		h.problem(w, r, err)
		return nil, false
	}
	if pool == nil || pool.CollectionID != h.circ.Collection().ID {
		notFound(w, r, fmt.Sprintf("No license pool with id %d in this collection", id))
		return nil, false
	}
	return pool, true
}

// poolFromPath loads the pool named by the poolID path parameter.
func (h *Handler) poolFromPath(w http.ResponseWriter, r *http.Request) (*models.LicensePool, bool) {
	id, err := idParam(r, "poolID")
	if err != nil {
		badRequest(w, r, err.Error())
		return nil, false
	}
	return h.pool(w, r, id)
}
