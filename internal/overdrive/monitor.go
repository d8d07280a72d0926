// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package overdrive

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/circulation/internal/logging"
	"github.com/tomtom215/circulation/internal/metrics"
)

// CirculationMonitor refreshes the titles Overdrive reports as changed
// since its previous run.
type CirculationMonitor struct {
	api     *API
	overlap time.Duration

	mu      sync.Mutex
	lastRun time.Time

	// completed mirrors lastRun for readers that must not wait on a scan.
	completed atomic.Int64
}

// NewCirculationMonitor creates a monitor for api's collection. Each scan
// starts overlap before the previous one; the first scan looks back
// EventDelay.
func NewCirculationMonitor(api *API, overlap time.Duration) *CirculationMonitor {
	if overlap <= 0 {
		overlap = time.Minute
	}
	return &CirculationMonitor{api: api, overlap: overlap}
}

// Name identifies the monitor in logs.
func (m *CirculationMonitor) Name() string {
	return "overdrive-circulation-monitor:" + m.api.collection.Name
}

// LastRun returns the start of the last complete scan, or the zero time.
func (m *CirculationMonitor) LastRun() time.Time {
	if ns := m.completed.Load(); ns != 0 {
		return time.Unix(0, ns).UTC()
	}
	return time.Time{}
}

// RunOnce scans the change feed once and returns how many titles it
// refreshed. The start of the next scan only moves forward when the whole
// feed was read.
func (m *CirculationMonitor) RunOnce(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx = logging.ContextWithOperation(ctx, "circulation_monitor")
	started := m.api.now().UTC()
	since := started.Add(-EventDelay)
	if !m.lastRun.IsZero() {
		since = m.lastRun.Add(-m.overlap)
	}

	token, err := m.api.CollectionToken(ctx)
	if err != nil {
		return 0, err
	}
	next := m.api.apiURL(eventsPath, token, since.Format(TimeFormat), PageSizeLimit)

	refreshed := 0
	for next != "" {
		page, err := getJSON[productsPage](ctx, m.api, next)
		if err != nil {
			metrics.RecordMonitorRun(refreshed)
			return refreshed, fmt.Errorf("fetch changed products: %w", err)
		}
		for _, p := range page.Products {
			if err := m.refreshTitle(ctx, p.ID); err != nil {
				return refreshed, err
			}
			refreshed++
		}
		next = ""
		if link, ok := page.Links["next"]; ok && link.Href != "" {
			next = MakeLinkSafe(link.Href)
		}
	}

	m.lastRun = started
	m.completed.Store(started.UnixNano())
	metrics.RecordMonitorRun(refreshed)
	logging.Ctx(ctx).Info().
		Str("collection", m.api.collection.Name).
		Time("since", since).
		Int("titles", refreshed).
		Msg("Circulation monitor run complete")
	return refreshed, nil
}

// refreshTitle updates one title, retrying up to MaxBookRetries times. A
// title that keeps failing is logged and skipped.
func (m *CirculationMonitor) refreshTitle(ctx context.Context, overdriveID string) error {
	var err error
	for attempt := 1; attempt <= MaxBookRetries; attempt++ {
		if _, _, _, err = m.api.UpdateLicensePool(ctx, overdriveID); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Ctx(ctx).Warn().Err(err).Str("overdrive_id", overdriveID).Int("attempt", attempt).Msg("Title refresh failed")
	}
	logging.Ctx(ctx).Error().Err(err).Str("overdrive_id", overdriveID).Msg("Giving up on title refresh")
	return nil
}
