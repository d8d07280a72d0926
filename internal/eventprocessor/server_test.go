// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package eventprocessor

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/circulation/internal/config"
)

func TestEmbeddedServer_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a NATS server")
	}
	srv, err := NewEmbeddedServer(DefaultServerConfig(t.TempDir()))
	checkNoError(t, err)
	if !srv.IsRunning() {
		t.Fatal("server not running after start")
	}

	nc, err := natsgo.Connect(srv.ClientURL())
	checkNoError(t, err)
	js, err := nc.JetStream()
	checkNoError(t, err)
	if _, err := js.AccountInfo(); err != nil {
		t.Errorf("JetStream unavailable: %v", err)
	}
	nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	checkNoError(t, srv.Shutdown(ctx))
	if srv.IsRunning() {
		t.Error("server still running after Shutdown")
	}
}

func TestNewPublisherFromConfig_Embedded(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a NATS server")
	}
	pub, err := NewPublisherFromConfig(config.EventsConfig{Backend: "embedded", StoreDir: t.TempDir()})
	checkNoError(t, err)
	if pub.server == nil {
		t.Fatal("publisher does not own an embedded server")
	}

	msg := message.NewMessage(watermill.NewUUID(), []byte(`{"type":"checkout"}`))
	checkNoError(t, pub.Publish(context.Background(), DefaultTopic, msg))
	if got := msg.Metadata.Get(natsgo.MsgIdHdr); got != msg.UUID {
		t.Errorf("Nats-Msg-Id = %q, want %q", got, msg.UUID)
	}

	checkNoError(t, pub.Close())
	if pub.server.IsRunning() {
		t.Error("embedded server still running after Close")
	}
}
