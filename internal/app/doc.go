// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

// Package app assembles the circulation components from configuration. The
// server and the operator CLI build the same graph:
//
//	store (database or memory) + credential overlay (badger/redis)
//	  -> retrying HTTP client behind a circuit breaker
//	  -> overdrive.API with an analytics event sink
//	  -> bookshelf.Syncer and the circulation monitor
package app
