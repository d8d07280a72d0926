// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package eventprocessor

import (
	"context"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/metrics"
)

// DefaultTopic carries circulation analytics.
const DefaultTopic = "circulation_events"

// Sink publishes circulation events to one topic.
type Sink struct {
	publisher *Publisher
	topic     string
}

var _ circulation.EventSink = (*Sink)(nil)

// NewSink returns a circulation.EventSink backed by pub.
func NewSink(pub *Publisher, topic string) *Sink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Sink{publisher: pub, topic: topic}
}

// Publish encodes e and sends it. Events without an id get one.
func (s *Sink) Publish(ctx context.Context, e circulation.Event) (err error) {
	defer func() { metrics.RecordEventPublished(e.Type, err) }()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	data, err := MarshalEvent(&e)
	if err != nil {
		return err
	}
	msg := message.NewMessage(e.ID, data)
	msg.Metadata.Set("type", e.Type)
	msg.Metadata.Set("collection_id", strconv.FormatInt(e.CollectionID, 10))
	if e.PatronID != 0 {
		msg.Metadata.Set("patron_id", strconv.FormatInt(e.PatronID, 10))
	}
	return s.publisher.Publish(ctx, s.topic, msg)
}
