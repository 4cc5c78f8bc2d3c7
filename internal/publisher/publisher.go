// Package publisher binds the transport and journal together and centralizes
// subject naming so other components can subscribe by well-known pattern:
// subject = "{env}.{feed}.{type}.{key}".
package publisher

import (
	"github.com/aaronwald/ssmd/internal/envelope"
	"github.com/aaronwald/ssmd/internal/journal"
	"github.com/aaronwald/ssmd/internal/transport"
)

// Publisher is thin: it exists only to compose subjects and fan a framed
// payload out to both the transport and (if present) the journal.
type Publisher struct {
	transport *transport.Transport
	journal   *journal.Journal
	env       string
	feed      string
}

// New creates a Publisher for a given deployment environment (e.g. "prod")
// and feed (e.g. "kalshi"). journal may be nil if durable archival is not
// wanted for this publisher.
func New(t *transport.Transport, j *journal.Journal, env, feed string) *Publisher {
	return &Publisher{transport: t, journal: j, env: env, feed: feed}
}

// Subject composes the outbound subject for a message type and key, e.g.
// "prod.kalshi.trade.BTCUSD".
func (p *Publisher) Subject(msgType, key string) string {
	return p.env + "." + p.feed + "." + msgType + "." + key
}

// Publish frames payload, publishes it on the composed subject, and (if a
// journal was configured) appends the framed bytes to a topic named for
// the subject.
func (p *Publisher) Publish(msgType, key string, payload []byte) (transport.Message, error) {
	subject := p.Subject(msgType, key)
	framed := envelope.Frame(payload)

	msg, err := p.transport.Publish(subject, framed)
	if err != nil {
		return msg, err
	}

	if p.journal != nil {
		p.journal.Append(subject, []byte(key), framed)
	}

	return msg, nil
}
