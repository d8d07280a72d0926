// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package httpclient

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// maxErrorBodySize limits how much of a response body is copied into
// debug messages.
const maxErrorBodySize = 64 * 1024

// Series returns the status class of code, e.g. "4xx".
func Series(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// CodeMatches reports whether code appears in codes, either exactly
// ("404") or by class ("4xx").
func CodeMatches(code int, codes []string) bool {
	exact := strconv.Itoa(code)
	series := Series(code)
	for _, c := range codes {
		if c == exact || c == series {
			return true
		}
	}
	return false
}

// Codes converts integer status codes into the string form accepted by
// Request.AllowedCodes and Request.DisallowedCodes.
func Codes(codes ...int) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = strconv.Itoa(c)
	}
	return out
}

// ProcessResponse checks resp against the allow and deny lists.
//
// Explicitly allowed codes always pass. Otherwise a 5xx, a disallowed code,
// or a code outside a non-empty allow list produces a *BadResponseError.
func ProcessResponse(rawURL string, resp *Response, allowed, disallowed []string) error {
	code := resp.StatusCode
	if CodeMatches(code, allowed) {
		return nil
	}

	var message string
	switch {
	case code >= 500 && code < 600, CodeMatches(code, disallowed):
		message = fmt.Sprintf(BadStatusCodeMessage, code)
	case len(allowed) > 0:
		sorted := append([]string(nil), allowed...)
		sort.Strings(sorted)
		message = fmt.Sprintf("Got status code %d from external server, but can only continue on: %s.",
			code, strings.Join(sorted, ", "))
	default:
		return nil
	}

	return NewBadResponseError(rawURL, message, resp, "Response content: "+excerpt(resp.Body))
}

// excerpt returns body as text, truncated for diagnostics.
func excerpt(body []byte) string {
	if len(body) > maxErrorBodySize {
		return string(body[:maxErrorBodySize]) + "\n... (truncated)"
	}
	return string(body)
}

// readBody reads at most limit bytes of r.
func readBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}
