// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

// Package logging provides centralized zerolog-based structured logging.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("collection", name).Msg("circulation monitor started")
//	logging.Err(err).Msg("availability refresh failed")
//
//	// Correlated logging inside a request or circulation operation
//	logging.Ctx(ctx).Warn().Str("overdrive_id", id).Msg("early return link missing")
//
// # Patron data
//
// Barcodes, PINs, bearer tokens and notification addresses are never logged
// verbatim. Use RedactBarcode, RedactToken and RedactEmail when a value is
// needed to correlate a problem.
//
// # Suture integration
//
// NewSlogLogger returns an *slog.Logger backed by zerolog, used by
// sutureslog so supervisor events land in the same stream:
//
//	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
package logging
