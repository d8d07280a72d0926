// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package logging

import "testing"

func TestRedaction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"token empty", RedactToken, "", ""},
		{"token short", RedactToken, "abc", "***"},
		{"token long", RedactToken, "eyJhbGciOiJSUzI1NiIs", "eyJh...I1Ni"},
		{"barcode empty", RedactBarcode, "", ""},
		{"barcode short", RedactBarcode, "1234", "***"},
		{"barcode long", RedactBarcode, "23333012345678", "***5678"},
		{"email", RedactEmail, "reader@example.org", "re***@example.org"},
		{"email short local", RedactEmail, "ab@example.org", "***@example.org"},
		{"email invalid", RedactEmail, "not-an-email", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("0123456789abc", 10); got != "0123456789..." {
		t.Errorf("Truncate long = %q", got)
	}
}
