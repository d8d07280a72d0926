// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// BadStatusCodeMessage is the message of a BadResponseError raised for a
// 5xx or explicitly disallowed status.
const BadStatusCodeMessage = "Got status code %d from external server, cannot continue."

// IntegrationError is implemented by every transport failure type so
// callers can reach the shared detail with errors.As.
type IntegrationError interface {
	error
	Remote() *RemoteIntegrationError
	// Title is a short, user-facing name of the failure class.
	Title() string
	// Detail is a user-facing sentence naming the service.
	Detail() string
}

// RemoteIntegrationError describes a failure talking to a third-party
// service. Service is the host of URL when URL is absolute.
type RemoteIntegrationError struct {
	URL     string
	Service string
	Message string
	Debug   string
}

// NewRemoteIntegrationError builds the shared error detail. urlOrService
// is either an absolute URL or a service name such as "Overdrive".
func NewRemoteIntegrationError(urlOrService, message, debug string) *RemoteIntegrationError {
	e := &RemoteIntegrationError{URL: urlOrService, Service: urlOrService, Message: message, Debug: debug}
	if strings.HasPrefix(urlOrService, "http:") || strings.HasPrefix(urlOrService, "https:") {
		if u, err := url.Parse(urlOrService); err == nil {
			e.Service = u.Host
		}
	}
	return e
}

func (e *RemoteIntegrationError) describe(format string) string {
	msg := e.Message
	if e.Debug != "" {
		msg += "\n\n" + e.Debug
	}
	return fmt.Sprintf(format, e.URL, msg)
}

func (e *RemoteIntegrationError) Error() string {
	return e.describe("Error accessing %s: %s")
}

func (e *RemoteIntegrationError) Remote() *RemoteIntegrationError { return e }
func (e *RemoteIntegrationError) Title() string                   { return "Failure contacting external service" }
func (e *RemoteIntegrationError) Detail() string {
	return fmt.Sprintf("The server tried to access %s but the third-party service experienced an error.", e.Service)
}

// BadResponseError means the request completed but the response was not
// acceptable. Body holds the full response body.
type BadResponseError struct {
	*RemoteIntegrationError
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewBadResponseError builds a BadResponseError. An empty debug message is
// replaced with the status code and response content.
func NewBadResponseError(urlOrService, message string, resp *Response, debug string) *BadResponseError {
	e := &BadResponseError{}
	if resp != nil {
		e.StatusCode = resp.StatusCode
		e.Header = resp.Header
		e.Body = resp.Body
		if debug == "" {
			debug = fmt.Sprintf("Status code: %d\nContent: %s", resp.StatusCode, excerpt(resp.Body))
		}
	}
	e.RemoteIntegrationError = NewRemoteIntegrationError(urlOrService, message, debug)
	return e
}

func (e *BadResponseError) Error() string  { return e.describe("Bad response from %s: %s") }
func (e *BadResponseError) Title() string  { return "Bad response" }
func (e *BadResponseError) Detail() string {
	return fmt.Sprintf("The server made a request to %s, and got an unexpected or invalid response.", e.Service)
}

// RequestNetworkError wraps a transport failure other than a timeout.
type RequestNetworkError struct {
	*RemoteIntegrationError
	Err error
}

func (e *RequestNetworkError) Error() string  { return e.describe("Network error contacting %s: %s") }
func (e *RequestNetworkError) Unwrap() error  { return e.Err }
func (e *RequestNetworkError) Title() string  { return "Network failure contacting third-party service" }
func (e *RequestNetworkError) Detail() string {
	return fmt.Sprintf("The server experienced a network error while contacting %s.", e.Service)
}

// RequestTimedOutError wraps a request that exceeded its timeout.
type RequestTimedOutError struct {
	*RemoteIntegrationError
	Err error
}

func (e *RequestTimedOutError) Error() string  { return e.describe("Timeout accessing %s: %s") }
func (e *RequestTimedOutError) Unwrap() error  { return e.Err }
func (e *RequestTimedOutError) Title() string  { return "Timeout" }
func (e *RequestTimedOutError) Detail() string {
	return fmt.Sprintf("The server made a request to %s, and that request timed out.", e.Service)
}

// IsTransient reports whether err is a timeout, a network failure or a 5xx
// bad response. Circuit breakers count only these as failures.
func IsTransient(err error) bool {
	var timeout *RequestTimedOutError
	var network *RequestNetworkError
	var bad *BadResponseError
	switch {
	case errors.As(err, &timeout), errors.As(err, &network):
		return true
	case errors.As(err, &bad):
		return bad.StatusCode >= 500
	}
	return false
}
