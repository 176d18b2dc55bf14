// Package events announces listing changes on NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/cordobacasas/casas/internal/domain"
)

// Publisher implements domain.EventPublisher. Events are published on a
// subject equal to their type, e.g. "listings.created".
type Publisher struct {
	conn *nats.Conn
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("casas"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect nats at %s: %w", url, err)
	}
	return &Publisher{conn: conn}, nil
}

func (p *Publisher) Publish(ctx context.Context, ev domain.ListingEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.conn.Publish(ev.Type, data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close flushes pending events and closes the connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
