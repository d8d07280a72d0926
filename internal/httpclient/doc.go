// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

/*
Package httpclient is the outbound HTTP layer shared by every vendor
integration.

Client performs one logical request as up to 1+MaxRetries attempts. Attempts
that fail with a timeout, a network error or a retryable status (429, 500,
502, 503, 504) are retried after a jittered exponential backoff. A numeric
Retry-After header replaces the computed delay when it does not exceed the
backoff cap. The final response is validated against the request's allowed
and disallowed status codes; codes may be exact ("404") or a class ("4xx").

Failures are reported as typed errors that share a RemoteIntegrationError:

	RequestTimedOutError   the attempt exceeded its timeout
	RequestNetworkError    connection refused, DNS failure, reset, open breaker
	BadResponseError       the vendor answered with an unacceptable status

BreakerClient adds a per-host circuit breaker that counts only transient
failures, and Batch fans a set of calls out with bounded concurrency.

Usage:

	client := httpclient.New(httpclient.Config{MaxRetries: 5})
	resp, err := client.Do(ctx, &httpclient.Request{
		URL:          "https://api.overdrive.com/v1/libraries/1",
		AllowedCodes: []string{"2xx"},
	})
*/
package httpclient
