// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/circulation/internal/config"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// NATSConfig configures the NATS backend.
type NATSConfig struct {
	URL             string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int
	// TrackMsgID sets Nats-Msg-Id so JetStream deduplicates redeliveries.
	TrackMsgID bool
}

// DefaultNATSConfig returns reconnect settings suited to a long-running
// service.
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:             url,
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 8 * 1024 * 1024,
		TrackMsgID:      true,
	}
}

// Publisher wraps a Watermill publisher with a circuit breaker.
type Publisher struct {
	publisher      message.Publisher
	circuitBreaker *gobreaker.CircuitBreaker[any]
	trackMsgID     bool

	// server is the embedded JetStream server the publisher owns, if any.
	server *EmbeddedServer

	mu     sync.RWMutex
	closed bool
}

// NewPublisher wraps an existing Watermill publisher.
func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{
		publisher:      pub,
		circuitBreaker: NewCircuitBreaker(DefaultCircuitBreakerConfig()),
	}
}

// NewGoChannelPublisher creates an in-process publisher. The returned
// GoChannel is also a subscriber for local consumers.
func NewGoChannelPublisher(logger watermill.LoggerAdapter) (*Publisher, *gochannel.GoChannel) {
	if logger == nil {
		logger = defaultLogger()
	}
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
	return NewPublisher(ch), ch
}

// NewNATSPublisher creates a JetStream publisher. The stream is provisioned
// on first publish.
func NewNATSPublisher(cfg NATSConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = defaultLogger()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    cfg.TrackMsgID,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	p := NewPublisher(pub)
	p.trackMsgID = cfg.TrackMsgID
	return p, nil
}

// NewPublisherFromConfig builds the publisher named by cfg.Backend.
func NewPublisherFromConfig(cfg config.EventsConfig) (*Publisher, error) {
	switch cfg.Backend {
	case "", "gochannel":
		p, _ := NewGoChannelPublisher(nil)
		return p, nil
	case "nats":
		return NewNATSPublisher(DefaultNATSConfig(cfg.NATSURL), nil)
	case "embedded":
		srv, err := NewEmbeddedServer(DefaultServerConfig(cfg.StoreDir))
		if err != nil {
			return nil, err
		}
		p, err := NewNATSPublisher(DefaultNATSConfig(srv.ClientURL()), nil)
		if err != nil {
			_ = srv.Shutdown(context.Background())
			return nil, err
		}
		p.server = srv
		return p, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// Publish sends msg to topic through the circuit breaker.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	if p.trackMsgID && msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}
	msg.SetContext(ctx)

	_, err := p.circuitBreaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(topic, msg)
	})
	return err
}

// Close shuts down the underlying publisher and any embedded server. It is
// safe to call twice.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	err := p.publisher.Close()
	if p.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = errors.Join(err, p.server.Shutdown(ctx))
	}
	return err
}
