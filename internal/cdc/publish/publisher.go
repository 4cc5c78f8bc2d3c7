// Package publish implements the CDC Publisher: it forwards decoded
// PostgreSQL change events onto a durable NATS JetStream stream, subject
// "cdc.{table}.{op}" per event, waiting for the broker's ack before
// considering the event delivered.
//
// The config-driven constructor/logger shape follows the rest of this
// module's CDC components; the JetStream wiring is written directly
// against nats-io/nats.go's jetstream API.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/aaronwald/ssmd/internal/cdc"
	"github.com/aaronwald/ssmd/internal/metrics"
)

// Publisher publishes CDC events onto a JetStream stream.
type Publisher struct {
	config Config
	logger *slog.Logger

	nc     *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
}

// New connects to NATS and ensures the configured stream exists.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cdc-publisher", "stream", cfg.StreamName)

	nc, err := nats.Connect(cfg.URL, nats.Name("ssmd-cdc-publisher"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	p := &Publisher{config: cfg, logger: logger, nc: nc, js: js}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

// ensureStream creates the CDC stream if it does not already exist, or
// updates its config if it does. Idempotent.
func (p *Publisher) ensureStream(ctx context.Context) error {
	stream, err := p.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      p.config.StreamName,
		Subjects:  []string{p.config.SubjectFilter},
		Storage:   jetstream.FileStorage,
		MaxMsgs:   p.config.MaxMsgs,
		MaxAge:    p.config.MaxAge,
		Retention: jetstream.LimitsPolicy,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStreamEnsure, err)
	}
	p.stream = stream
	return nil
}

// Publish encodes and publishes one CDC event, blocking until JetStream
// acknowledges it durably. Subject is "cdc.{table}.{op}".
func (p *Publisher) Publish(ctx context.Context, event cdc.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.PublishTimeout)
	defer cancel()

	ack, err := p.js.Publish(ctx, event.Subject(), payload, jetstream.WithMsgID(event.LSN+":"+event.Subject()))
	if err != nil {
		metrics.CDCErrorsTotal.WithLabelValues("publish").Inc()
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	metrics.CDCEventsPublishedTotal.WithLabelValues(event.Table, string(event.Op)).Inc()
	p.logger.Debug("published cdc event", "subject", event.Subject(), "lsn", event.LSN, "seq", ack.Sequence)
	return nil
}

// Close closes the NATS connection without draining it.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
