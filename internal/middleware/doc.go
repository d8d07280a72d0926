// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

// Package middleware holds the HTTP middleware shared by every API route:
// request identification for log correlation and Prometheus request
// instrumentation keyed by the matched chi route pattern.
package middleware
