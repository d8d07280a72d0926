// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/logging"
	"github.com/tomtom215/circulation/internal/middleware"
	"github.com/tomtom215/circulation/internal/models"
)

const problemContentType = "application/problem+json"

// respondJSON writes data in the success envelope. Circulation responses
// describe one patron's state and are never cached.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeBody(w, status, "application/json", &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(r.Context()),
		},
	})
}

// respondProblem writes pd as a problem document.
func respondProblem(w http.ResponseWriter, r *http.Request, pd circulation.ProblemDetail) {
	log := logging.Ctx(r.Context())
	event := log.Info()
	if pd.Status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Int("status", pd.Status).Str("type", pd.Type).Str("path", r.URL.Path).Msg("API request failed")
	writeBody(w, pd.Status, problemContentType, pd)
}

func writeBody(w http.ResponseWriter, status int, contentType string, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// problem maps err onto its problem document.
func (h *Handler) problem(w http.ResponseWriter, r *http.Request, err error) {
	pd := circulation.Problem(err, h.debug)
	if pd.Status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Circulation request failed")
	}
	respondProblem(w, r, pd)
}

// Problem types owned by the API itself.
const (
	slugInvalidInput     = "invalid-input"
	slugNotFound         = "not-found"
	slugUnauthorized     = "unauthorized"
	slugForbidden        = "forbidden"
	slugInternal         = "internal-server-error"
	slugRateLimited      = "rate-limited"
	slugMethodNotAllowed = "method-not-allowed"
)

func apiProblem(status int, slug, title, detail string) circulation.ProblemDetail {
	return circulation.ProblemDetail{
		Type:   circulation.ProblemTypePrefix + slug,
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

func badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	respondProblem(w, r, apiProblem(http.StatusBadRequest, slugInvalidInput, "Invalid input", detail))
}

func notFound(w http.ResponseWriter, r *http.Request, detail string) {
	respondProblem(w, r, apiProblem(http.StatusNotFound, slugNotFound, "Not found", detail))
}

// authProblem renders auth middleware failures; it satisfies
// auth.ErrorWriter.
func authProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	slug, title := slugInternal, "Internal server error"
	switch status {
	case http.StatusUnauthorized:
		slug, title = slugUnauthorized, "Unauthorized"
	case http.StatusForbidden:
		slug, title = slugForbidden, "Forbidden"
	}
	respondProblem(w, r, apiProblem(status, slug, title, detail))
}
