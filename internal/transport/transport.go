// Package transport implements the in-memory broadcast pub/sub transport:
// a concurrent subject map with lazily-created per-subject broadcast
// channels, a single monotonic sequence counter shared across all
// subjects, and bounded (1024-deep) per-subscriber buffers that drop the
// oldest buffered message when a subscriber falls behind.
package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/aaronwald/ssmd/internal/clock"
	"github.com/aaronwald/ssmd/internal/metrics"
)

// subscriberBuffer is the per-subscriber broadcast depth. A subscriber
// more than this many messages behind loses the oldest ones; that is not
// an error to the producer.
const subscriberBuffer = 1024

// ErrTimeout is returned by Request: request/reply has no backing
// implementation in the in-memory transport.
var ErrTimeout = errors.New("transport: request timed out")

// ErrClosed is returned by Subscription.Next when the transport has been
// closed.
var ErrClosed = errors.New("transport: closed")

// Message is an envelope delivered to a subscriber.
type Message struct {
	Subject   string
	Payload   []byte
	Headers   map[string]string
	Timestamp uint64
	Sequence  uint64
}

// Transport is safe for concurrent publish, subscribe, and unsubscribe
// from any number of goroutines.
type Transport struct {
	clock *clock.Clock
	seq   atomic.Uint64

	topics sync.Map // string -> *topic

	closed atomic.Bool
}

type topic struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// New creates a Transport that stamps envelopes using c.
func New(c *clock.Clock) *Transport {
	return &Transport{clock: c}
}

// Publish fans payload out to every current subscriber of subject with no
// headers attached.
func (t *Transport) Publish(subject string, payload []byte) (Message, error) {
	return t.PublishWithHeaders(subject, payload, nil)
}

// PublishWithHeaders is Publish with caller-supplied headers.
func (t *Transport) PublishWithHeaders(subject string, payload []byte, headers map[string]string) (Message, error) {
	msg := Message{
		Subject:   subject,
		Payload:   payload,
		Headers:   headers,
		Sequence:  t.seq.Add(1) - 1,
		Timestamp: t.clock.NowTSC(),
	}

	if t.closed.Load() {
		return msg, ErrClosed
	}

	metrics.TransportPublishTotal.WithLabelValues(subject).Inc()
	if v, ok := t.topics.Load(subject); ok {
		v.(*topic).broadcast(msg)
	}
	return msg, nil
}

// Request always fails in the in-memory transport; request/reply is not
// implemented here.
func (t *Transport) Request(ctx context.Context, subject string, payload []byte) (Message, error) {
	return Message{}, ErrTimeout
}

// Subscribe creates or attaches to subject's broadcast channel.
func (t *Transport) Subscribe(subject string) *Subscription {
	tp := t.getOrCreateTopic(subject)

	sub := &Subscription{
		subject: subject,
		topic:   tp,
		ch:      make(chan Message, subscriberBuffer),
	}

	tp.mu.Lock()
	tp.subs[sub] = struct{}{}
	tp.mu.Unlock()

	return sub
}

func (t *Transport) getOrCreateTopic(subject string) *topic {
	if v, ok := t.topics.Load(subject); ok {
		return v.(*topic)
	}
	nt := &topic{subs: make(map[*Subscription]struct{})}
	actual, _ := t.topics.LoadOrStore(subject, nt)
	return actual.(*topic)
}

// Close closes every subscription's channel. Subsequent Publish calls
// return ErrClosed.
func (t *Transport) Close() {
	t.closed.Store(true)
	t.topics.Range(func(_, v any) bool {
		tp := v.(*topic)
		tp.mu.Lock()
		for sub := range tp.subs {
			close(sub.ch)
		}
		// Detach everything so a broadcast racing with Close never
		// reaches a closed channel.
		tp.subs = make(map[*Subscription]struct{})
		tp.mu.Unlock()
		return true
	})
}

func (tp *topic) broadcast(msg Message) {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	for sub := range tp.subs {
		sub.deliver(msg)
	}
}

// Subscription is a handle returned by Transport.Subscribe.
type Subscription struct {
	subject string
	topic   *topic
	ch      chan Message
}

// deliver sends msg to the subscription's buffer, dropping the oldest
// buffered message if the buffer is full.
func (s *Subscription) deliver(msg Message) {
	select {
	case s.ch <- msg:
		return
	default:
	}
	// Buffer full: drop oldest, then try once more.
	metrics.TransportSubscriberDropsTotal.WithLabelValues(s.subject).Inc()
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- msg:
	default:
	}
}

// Next suspends until a message is available or the transport closes.
func (s *Subscription) Next(ctx context.Context) (Message, error) {
	select {
	case msg, ok := <-s.ch:
		if !ok {
			return Message{}, ErrClosed
		}
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Ack is a no-op for the in-memory transport; durable transports would
// advance delivery state here.
func (s *Subscription) Ack(sequence uint64) {}

// Unsubscribe detaches the subscription from its subject.
func (s *Subscription) Unsubscribe() {
	s.topic.mu.Lock()
	delete(s.topic.subs, s)
	s.topic.mu.Unlock()
}
