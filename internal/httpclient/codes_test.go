// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package httpclient

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestCodeMatches(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		codes []string
		want  bool
	}{
		{"exact", 404, []string{"404"}, true},
		{"series", 404, []string{"4xx"}, true},
		{"other series", 404, []string{"2xx"}, false},
		{"empty", 200, nil, false},
		{"mixed", 201, []string{"401", "2xx"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeMatches(tt.code, tt.codes); got != tt.want {
				t.Errorf("CodeMatches(%d, %v) = %v, want %v", tt.code, tt.codes, got, tt.want)
			}
		})
	}
}

func TestProcessResponse(t *testing.T) {
	const target = "https://api.overdrive.com/v1/collections/abc"
	tests := []struct {
		name       string
		code       int
		allowed    []string
		disallowed []string
		wantErr    string
	}{
		{"ok without lists", 200, nil, nil, ""},
		{"4xx without lists", 404, nil, nil, ""},
		{"5xx", 503, nil, nil, "Got status code 503 from external server, cannot continue."},
		{"5xx allowed", 503, []string{"503"}, nil, ""},
		{"disallowed series", 404, nil, []string{"4xx"}, "Got status code 404 from external server, cannot continue."},
		{"outside allow list", 302, []string{"404", "2xx"}, nil, "but can only continue on: 2xx, 404."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &Response{StatusCode: tt.code, Body: []byte("body text")}
			err := ProcessResponse(target, resp, tt.allowed, tt.disallowed)
			if tt.wantErr == "" {
				checkNoError(t, err)
				return
			}
			var bad *BadResponseError
			if !errors.As(err, &bad) {
				t.Fatalf("expected *BadResponseError, got %v", err)
			}
			checkContains(t, "message", bad.Message, tt.wantErr)
			checkStringEqual(t, "debug", bad.Debug, "Response content: body text")
			checkStringEqual(t, "service", bad.Service, "api.overdrive.com")
		})
	}
}

func TestErrorMessages(t *testing.T) {
	remote := NewRemoteIntegrationError("https://oauth.overdrive.com/token", "boom", "trace")
	checkStringEqual(t, "remote", remote.Error(), "Error accessing https://oauth.overdrive.com/token: boom\n\ntrace")
	checkStringEqual(t, "service", remote.Service, "oauth.overdrive.com")
	checkContains(t, "detail", remote.Detail(), "oauth.overdrive.com")

	named := NewRemoteIntegrationError("Overdrive", "boom", "")
	checkStringEqual(t, "named", named.Error(), "Error accessing Overdrive: boom")
	checkStringEqual(t, "named service", named.Service, "Overdrive")

	bad := NewBadResponseError("Overdrive", "nope", &Response{StatusCode: 418, Body: []byte("teapot")}, "")
	checkStringEqual(t, "bad", bad.Error(), "Bad response from Overdrive: nope\n\nStatus code: 418\nContent: teapot")
	checkStringEqual(t, "bad title", bad.Title(), "Bad response")

	var ie IntegrationError = bad
	checkStringEqual(t, "remote via interface", ie.Remote().Message, "nope")
}

func TestExcerpt_Truncates(t *testing.T) {
	long := strings.Repeat("x", maxErrorBodySize+10)
	got := excerpt([]byte(long))
	if !strings.HasSuffix(got, "... (truncated)") {
		t.Error("expected truncation marker")
	}
	if len(got) > maxErrorBodySize+len("\n... (truncated)") {
		t.Errorf("excerpt too long: %d", len(got))
	}
	checkStringEqual(t, "short", excerpt([]byte("short")), "short")
}

func TestCodes(t *testing.T) {
	got := Codes(http.StatusOK, http.StatusNotFound)
	checkStringEqual(t, "joined", strings.Join(got, ","), "200,404")
}
