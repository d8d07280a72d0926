// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package logging

import "strings"

// RedactToken masks a bearer token, keeping the first and last 4 characters.
// Example: "eyJhbGciOiJSUzI1NiIs" -> "eyJh...I1Ni"
func RedactToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// RedactBarcode masks a patron authorization identifier, keeping the last 4 characters.
// Example: "23333012345678" -> "***5678"
func RedactBarcode(barcode string) string {
	if barcode == "" {
		return ""
	}
	if len(barcode) <= 4 {
		return "***"
	}
	return "***" + barcode[len(barcode)-4:]
}

// RedactEmail masks a hold notification address.
// Example: "reader@example.org" -> "re***@example.org"
func RedactEmail(email string) string {
	if email == "" {
		return ""
	}
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 2 {
		return "***" + domain
	}
	return local[:2] + "***" + domain
}

// Truncate shortens s to at most maxLen bytes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
