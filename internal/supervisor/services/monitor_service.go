// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/circulation/internal/logging"
)

const (
	defaultMonitorInterval = 5 * time.Minute

	// maxConsecutiveFailures is how many failed scans in a row the service
	// tolerates before returning, letting the supervisor back off.
	maxConsecutiveFailures = 5
)

// Monitor is one periodic scan, such as the recent-changes circulation
// monitor.
type Monitor interface {
	Name() string
	RunOnce(ctx context.Context) (int, error)
}

// MonitorService runs a Monitor immediately and then every interval.
type MonitorService struct {
	monitor  Monitor
	interval time.Duration
}

// NewMonitorService wraps m. A non-positive interval means five minutes.
func NewMonitorService(m Monitor, interval time.Duration) *MonitorService {
	if interval <= 0 {
		interval = defaultMonitorInterval
	}
	return &MonitorService{monitor: m, interval: interval}
}

// Serve implements suture.Service. A failed scan is logged and retried on
// the next tick; after maxConsecutiveFailures the service fails.
func (s *MonitorService) Serve(ctx context.Context) error {
	ctx = logging.ContextWithOperation(ctx, "circulation_monitor")
	log := logging.Ctx(ctx).With().Str("monitor", s.monitor.Name()).Logger()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	failures := 0
	for {
		start := time.Now()
		n, err := s.monitor.RunOnce(ctx)
		switch {
		case err == nil:
			failures = 0
			log.Info().Int("titles", n).Dur("duration", time.Since(start)).Msg("Monitor scan complete")
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			return ctx.Err()
		default:
			failures++
			log.Warn().Err(err).Int("consecutive_failures", failures).Msg("Monitor scan failed")
			if failures >= maxConsecutiveFailures {
				return fmt.Errorf("%s: %d consecutive failures: %w", s.monitor.Name(), failures, err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *MonitorService) String() string {
	return s.monitor.Name()
}
