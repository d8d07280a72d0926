// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/circulation/internal/logging"
	"github.com/tomtom215/circulation/internal/models"
)

const healthPingTimeout = 2 * time.Second

// Health reports service health. A failed database ping degrades the
// status but still answers 200 so load balancers can tell the difference
// from a dead process.
// @Summary Health check
// @Tags Core
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.HealthStatus}
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := &models.HealthStatus{
		Status:  "healthy",
		Version: Version,
		Uptime:  h.now().Sub(h.startTime).Seconds(),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Health check database ping failed")
			status.Status = "degraded"
		} else {
			status.DatabaseConnected = true
		}
	}

	if h.monitor != nil {
		if last := h.monitor.LastRun(); !last.IsZero() {
			last = last.UTC()
			status.LastMonitorRun = &last
		}
	}

	respondJSON(w, r, http.StatusOK, status)
}
