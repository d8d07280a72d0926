// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package models

import (
	"time"
)

// APIResponse is the envelope for successful API responses. Failures are
// served as problem detail documents instead.
//
// Example:
//
//	{
//	  "status": "success",
//	  "data": {"type": "loan", "identifier": "3a1f..."},
//	  "metadata": {"timestamp": "2026-03-01T12:00:00Z", "request_id": "..."}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
}

// Metadata describes how a response was produced.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// BorrowRequest is the body of POST /api/v1/patrons/{patronID}/loans.
type BorrowRequest struct {
	PoolID      int64  `json:"pool_id" validate:"required,gt=0"`
	ContentType string `json:"content_type,omitempty" validate:"required_with=DRMScheme,omitempty,max=255"`
	DRMScheme   string `json:"drm_scheme,omitempty" validate:"omitempty,max=255"`
}

// HoldRequest is the body of POST /api/v1/patrons/{patronID}/holds.
type HoldRequest struct {
	PoolID int64  `json:"pool_id" validate:"required,gt=0"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
}

// SyncResponse reports the effect of one bookshelf sync.
type SyncResponse struct {
	LoansCreated int `json:"loans_created"`
	LoansUpdated int `json:"loans_updated"`
	LoansDeleted int `json:"loans_deleted"`
	HoldsCreated int `json:"holds_created"`
	HoldsUpdated int `json:"holds_updated"`
	HoldsDeleted int `json:"holds_deleted"`
}

// AvailabilityResponse reports an availability refresh for one pool.
type AvailabilityResponse struct {
	Pool    *LicensePool `json:"pool"`
	IsNew   bool         `json:"is_new"`
	Changed bool         `json:"changed"`
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status            string     `json:"status"`
	Version           string     `json:"version"`
	DatabaseConnected bool       `json:"database_connected"`
	LastMonitorRun    *time.Time `json:"last_monitor_run,omitempty"`
	Uptime            float64    `json:"uptime_seconds"`
}
