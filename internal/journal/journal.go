// Package journal implements the append-only, per-topic ordered log used
// downstream of the transport. Sequences are allocated from a single
// global atomic counter shared across all topics, a deliberate
// simplification that still guarantees per-topic monotonicity trivially.
package journal

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/aaronwald/ssmd/internal/clock"
	"github.com/aaronwald/ssmd/internal/metrics"
)

// Entry is one journal record.
type Entry struct {
	Sequence  uint64
	Timestamp uint64
	Topic     string
	Key       []byte
	Payload   []byte
	Headers   map[string]string
}

// TopicConfig describes a topic to create.
type TopicConfig struct {
	Name string
}

// Journal is safe for concurrent Append and Reader construction.
type Journal struct {
	clock *clock.Clock
	seq   atomic.Uint64

	mu     sync.RWMutex
	topics map[string][]Entry
}

// New creates an empty Journal that stamps entries using c.
func New(c *clock.Clock) *Journal {
	return &Journal{
		clock:  c,
		topics: make(map[string][]Entry),
	}
}

// CreateTopic idempotently ensures a topic exists.
func (j *Journal) CreateTopic(cfg TopicConfig) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.topics[cfg.Name]; !ok {
		j.topics[cfg.Name] = nil
	}
}

// Append stamps a sequence and timestamp and appends payload to topic.
func (j *Journal) Append(topic string, key, payload []byte) uint64 {
	return j.AppendWithHeaders(topic, key, payload, nil)
}

// AppendWithHeaders is Append with caller-supplied headers.
func (j *Journal) AppendWithHeaders(topic string, key, payload []byte, headers map[string]string) uint64 {
	// The sequence must be allocated under j.mu, not before it: allocating
	// via the atomic counter first and only then racing for the lock lets
	// two concurrent appends to the same topic land out of sequence order,
	// which breaks the Reader's sort.Search-based seek.
	j.mu.Lock()
	seq := j.seq.Add(1) - 1

	e := Entry{
		Sequence:  seq,
		Timestamp: j.clock.NowTSC(),
		Topic:     topic,
		Key:       key,
		Payload:   payload,
		Headers:   headers,
	}

	j.topics[topic] = append(j.topics[topic], e)
	j.mu.Unlock()

	metrics.JournalAppendsTotal.WithLabelValues(topic).Inc()
	return seq
}

// EndPosition returns the last entry's sequence for topic, or 0 if the
// topic is absent or empty.
func (j *Journal) EndPosition(topic string) uint64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	entries := j.topics[topic]
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].Sequence
}

// Reader snapshots topic's current entries and positions a Reader
// according to pos. The snapshot does not observe entries appended after
// Reader is called.
func (j *Journal) Reader(topic string, pos Position) *Reader {
	j.mu.RLock()
	entries := j.topics[topic]
	j.mu.RUnlock()

	return &Reader{
		entries: entries,
		idx:     resolveIndex(entries, pos),
	}
}

// positionKind selects how a Position resolves to an index.
type positionKind int

const (
	kindBeginning positionKind = iota
	kindEnd
	kindSequence
	kindTime
)

// Position identifies where a Reader should start.
type Position struct {
	kind positionKind
	seq  uint64
	ts   uint64
}

// Beginning positions a Reader at the first entry.
func Beginning() Position { return Position{kind: kindBeginning} }

// End positions a Reader past the last entry.
func End() Position { return Position{kind: kindEnd} }

// AtSequence positions a Reader at the first entry whose sequence is >= s.
func AtSequence(s uint64) Position { return Position{kind: kindSequence, seq: s} }

// AtTime positions a Reader at the first entry whose timestamp is >= t.
func AtTime(t uint64) Position { return Position{kind: kindTime, ts: t} }

func resolveIndex(entries []Entry, pos Position) int {
	switch pos.kind {
	case kindBeginning:
		return 0
	case kindEnd:
		return len(entries)
	case kindSequence:
		return sort.Search(len(entries), func(i int) bool { return entries[i].Sequence >= pos.seq })
	case kindTime:
		return sort.Search(len(entries), func(i int) bool { return entries[i].Timestamp >= pos.ts })
	default:
		return len(entries)
	}
}

// Reader iterates a fixed snapshot of a topic's entries.
type Reader struct {
	entries []Entry
	idx     int
}

// Next returns the next entry, or (Entry{}, false) at end of snapshot.
func (r *Reader) Next() (Entry, bool) {
	if r.idx >= len(r.entries) {
		return Entry{}, false
	}
	e := r.entries[r.idx]
	r.idx++
	return e, true
}

// Seek repositions within the same snapshot; it does not refresh with
// newer writes.
func (r *Reader) Seek(pos Position) {
	r.idx = resolveIndex(r.entries, pos)
}
