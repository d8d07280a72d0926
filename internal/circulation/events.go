// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package circulation

import (
	"context"
	"sync"
	"time"
)

// Analytics event types emitted after successful circulation operations.
const (
	EventCheckout              = "circulation.checkout"
	EventCheckin               = "circulation.checkin"
	EventFulfill               = "circulation.fulfill"
	EventHoldPlace             = "circulation.hold_place"
	EventHoldRelease           = "circulation.hold_release"
	EventHoldConvertedToLoan   = "circulation.hold_converted_to_loan"
	EventAvailabilityChanged   = "circulation.availability_changed"
	EventLicensePoolDiscovered = "circulation.license_pool_discovered"
)

// Event is one analytics record.
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	PatronID      int64     `json:"patron_id,omitempty"`
	LicensePoolID int64     `json:"license_pool_id"`
	CollectionID  int64     `json:"collection_id"`
	Identifier    string    `json:"identifier"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventSink receives analytics events. Publishing is best effort: callers
// log a failed publish and carry on.
type EventSink interface {
	Publish(ctx context.Context, e Event) error
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) error { return nil }

// RecordingSink keeps events in memory. Tests use it to assert on emitted
// analytics.
type RecordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *RecordingSink) Publish(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of the recorded events.
func (s *RecordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Types returns the recorded event types in order.
func (s *RecordingSink) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}
