// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package httpclient

import (
	"context"
	"errors"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/circulation/internal/logging"
	"github.com/tomtom215/circulation/internal/metrics"
)

// BreakerClient wraps a Doer with one circuit breaker per vendor host.
//
// Only transient failures (timeouts, network errors, 5xx) count against the
// breaker; a vendor rejecting a checkout with a 4xx is a healthy vendor.
type BreakerClient struct {
	next     Doer
	prefix   string
	settings func(name string) gobreaker.Settings

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*Response]
}

// NewBreakerClient wraps next. Breakers are named prefix + ":" + host.
// Configuration:
//   - Max 3 requests in half-open state
//   - 1 minute measurement window
//   - 2 minute open period before probing
//   - Opens at a 60% failure rate over at least 10 requests
func NewBreakerClient(next Doer, prefix string) *BreakerClient {
	return &BreakerClient{
		next:     next,
		prefix:   prefix,
		settings: defaultBreakerSettings,
		breakers: make(map[string]*gobreaker.CircuitBreaker[*Response]),
	}
}

func defaultBreakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	}
}

// Do executes req through the breaker for its host.
func (b *BreakerClient) Do(ctx context.Context, req *Request) (*Response, error) {
	cb := b.breaker(hostOf(req.URL))
	name := cb.Name()

	resp, err := cb.Execute(func() (*Response, error) {
		return b.next.Do(ctx, req)
	})

	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(name, "rejected").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("breaker", name).Msg("[CIRCUIT BREAKER] Request rejected")
		return nil, &RequestNetworkError{
			RemoteIntegrationError: NewRemoteIntegrationError(req.URL, "circuit breaker is open", ""),
			Err:                    err,
		}
	case IsTransient(err):
		metrics.CircuitBreakerRequests.WithLabelValues(name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(float64(cb.Counts().ConsecutiveFailures))
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
	}
	return resp, err
}

// State returns the state of the breaker for host.
func (b *BreakerClient) State(host string) gobreaker.State {
	return b.breaker(host).State()
}

func (b *BreakerClient) breaker(host string) *gobreaker.CircuitBreaker[*Response] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[host]; ok {
		return cb
	}
	name := b.prefix + ":" + host
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
	cb := gobreaker.NewCircuitBreaker[*Response](b.settings(name))
	b.breakers[host] = cb
	return cb
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
