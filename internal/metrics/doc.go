// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

/*
Package metrics provides Prometheus instrumentation for the circulation service.

All collectors are registered with the default registry through promauto and
exposed at /metrics by the API router.

# Metric Families

Vendor traffic:
  - vendor_request_duration_seconds{host,method}
  - vendor_requests_total{host,method,status}: status is the HTTP code, "timeout" or "network"
  - vendor_request_retries_total{host}
  - vendor_rate_limit_waits_total{host}
  - vendor_token_refreshes_total{kind,outcome}, vendor_token_cache_hits_total{kind}

Circulation:
  - circulation_operations_total{operation,outcome}: outcome is "success" or an error kind
  - circulation_operation_duration_seconds{operation}
  - bookshelf_sync_changes_total{kind,action}, bookshelf_syncs_total{outcome}
  - availability_refreshes_total{outcome}
  - circulation_monitor_last_success_timestamp, circulation_monitor_titles_processed_total

Resilience:
  - circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total{name,result}
  - circuit_breaker_consecutive_failures{name}
  - circuit_breaker_state_transitions_total{name,from_state,to_state}

API and events:
  - api_requests_total, api_request_duration_seconds, api_active_requests
  - analytics_events_published_total{type,outcome}

# Example Queries

	# Vendor error rate
	sum(rate(vendor_requests_total{status=~"5..|timeout|network"}[5m]))
	  / sum(rate(vendor_requests_total[5m]))

	# Checkout rejections by kind
	sum by (outcome) (rate(circulation_operations_total{operation="checkout",outcome!="success"}[1h]))
*/
package metrics
