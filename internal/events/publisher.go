// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

//go:build nats

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/ornithographus/internal/logging"
)

// NewPublisher provisions the tile event stream and creates a Mirror
// backed by a resilient Watermill NATS publisher. The connection
// reconnects indefinitely and JetStream deduplicates on the message
// UUID; the default circuit breaker is attached so a broker outage
// cannot stall background batches.
func NewPublisher(cfg Config) (*Mirror, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
		natsgo.ErrorHandler(func(nc *natsgo.Conn, sub *natsgo.Subscription, err error) {
			fields := watermill.LogFields{}
			if sub != nil {
				fields["subject"] = sub.Subject
			}
			logger.Error("NATS error", err, fields)
		}),
	}

	// Provision the stream over a short-lived connection so the publisher
	// runs with AutoProvision off. A misconfigured broker fails here, at
	// startup, instead of at the first background batch.
	nc, err := natsgo.Connect(cfg.URL,
		natsgo.Timeout(10*time.Second),
		natsgo.Name("ornithographus-stream-init"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect for stream provisioning: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	provErr := EnsureStream(ctx, nc, cfg.Topic)
	nc.Close()
	if provErr != nil {
		return nil, provErr
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false, // Stream is provisioned by EnsureStream above
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	mirror := NewMirror(pub, cfg.Topic)
	mirror.SetCircuitBreaker(NewCircuitBreaker())
	return mirror, nil
}
