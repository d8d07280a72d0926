// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

// Package eventprocessor publishes circulation events through Watermill.
//
// Three backends are supported:
//   - gochannel: in-process pub/sub, the default for single-node deployments
//     and tests
//   - nats: an external NATS JetStream cluster, for deployments where event
//     consumers run elsewhere
//   - embedded: a JetStream server started inside the process, owned and
//     shut down by the Publisher
//
// Events are JSON encoded with goccy/go-json. The event id becomes the
// Watermill message UUID and, on NATS, the Nats-Msg-Id header so JetStream
// drops duplicates. Publishing goes through a gobreaker circuit breaker; an
// open breaker fails fast instead of stalling circulation requests.
//
// Sink adapts a Publisher to circulation.EventSink:
//
//	pub, err := eventprocessor.NewPublisherFromConfig(cfg.Events)
//	if err != nil {
//	    return err
//	}
//	defer pub.Close()
//	api, err := overdrive.New(client, store, coll, settings,
//	    overdrive.WithEventSink(eventprocessor.NewSink(pub, cfg.Events.Topic)))
package eventprocessor
