// Package ring implements the fixed-capacity, memory-mapped single-producer
// single-consumer ring buffer that hands messages from a hot producer
// thread to the disk flusher. There are no internal locks: exactly one
// goroutine may call TryWrite and exactly one (a different) goroutine may
// call TryRead/Peek, matching the cache-line-padded, CAS-free slot layout
// of a classic wait-free SPSC disruptor ring.
//
// The backing file is transient storage: on Open it is truncated and
// re-created, so both counters always start at 0 after a restart.
package ring

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/edsrzf/mmap-go"

	"github.com/aaronwald/ssmd/internal/metrics"
)

// HeaderSize is the per-slot header: a 4-byte length and a 4-byte flags
// field, both little-endian.
const HeaderSize = 8

// ErrNotPowerOfTwo is returned by Open when Config.Slots is not a power of
// two (required so the slot index can be computed with a mask instead of a
// modulo).
var ErrNotPowerOfTwo = errors.New("ring: slots must be a power of two")

// ErrSlotTooSmall is returned by Open when Config.SlotSize cannot hold even
// the header.
var ErrSlotTooSmall = errors.New("ring: slot size must exceed header size")

// Config parameterizes ring geometry and backing storage.
type Config struct {
	// Path is the backing file path, e.g. "{dir}/ring.buf".
	Path string
	// SlotSize is the number of bytes per slot, including the header.
	SlotSize uint32
	// Slots is the number of slots in the ring. Must be a power of two.
	Slots uint32
	// Feed labels this ring's metrics, e.g. "kalshi". Defaults to Path
	// if empty.
	Feed string
}

// Ring is a fixed-capacity SPSC ring buffer backed by a memory-mapped file.
type Ring struct {
	file *os.File
	mm   mmap.MMap

	feed     string
	slotSize uint32
	slots    uint64
	mask     uint64

	// writePos is advanced only by the producer; _padA keeps it off the
	// cache line shared with readPos to avoid false sharing between the
	// two threads.
	writePos atomic.Uint64
	_padA    [56]byte
	readPos  atomic.Uint64
	_padB    [56]byte
}

// Open creates (truncating any existing contents) and memory-maps the ring
// file described by cfg.
func Open(cfg Config) (*Ring, error) {
	if cfg.Slots == 0 || cfg.Slots&(cfg.Slots-1) != 0 {
		return nil, ErrNotPowerOfTwo
	}
	if cfg.SlotSize <= HeaderSize {
		return nil, ErrSlotTooSmall
	}

	size := int64(cfg.SlotSize) * int64(cfg.Slots)

	f, err := os.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ring: open %s: %w", cfg.Path, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("ring: truncate %s: %w", cfg.Path, err)
	}

	mm, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ring: mmap %s: %w", cfg.Path, err)
	}

	feed := cfg.Feed
	if feed == "" {
		feed = cfg.Path
	}

	return &Ring{
		file:     f,
		mm:       mm,
		feed:     feed,
		slotSize: cfg.SlotSize,
		slots:    uint64(cfg.Slots),
		mask:     uint64(cfg.Slots) - 1,
	}, nil
}

// Close unmaps and closes the backing file.
func (r *Ring) Close() error {
	err := r.mm.Unmap()
	if cerr := r.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// MaxPayload returns the largest payload TryWrite can accept.
func (r *Ring) MaxPayload() uint32 {
	return r.slotSize - HeaderSize
}

// TryWrite attempts to write data into the next slot. It returns false,
// without error, if data exceeds MaxPayload or the ring is full; both are
// expected backpressure outcomes the producer must handle, not failures.
func (r *Ring) TryWrite(data []byte) bool {
	if uint32(len(data)) > r.MaxPayload() {
		metrics.RingWriteRejectedTotal.WithLabelValues(r.feed).Inc()
		return false
	}

	wp := r.writePos.Load()
	rp := r.readPos.Load()
	if wp-rp >= r.slots {
		metrics.RingWriteRejectedTotal.WithLabelValues(r.feed).Inc()
		return false
	}

	off := (wp & r.mask) * uint64(r.slotSize)
	slot := r.mm[off : off+uint64(r.slotSize)]
	binary.LittleEndian.PutUint32(slot[0:4], uint32(len(data)))
	binary.LittleEndian.PutUint32(slot[4:8], 0)
	copy(slot[HeaderSize:], data)

	r.writePos.Store(wp + 1)
	metrics.RingDepth.WithLabelValues(r.feed).Set(float64(wp + 1 - r.readPos.Load()))
	return true
}

// TryRead returns and consumes the next payload, or (nil, false) if the
// ring is empty.
func (r *Ring) TryRead() ([]byte, bool) {
	return r.read(true)
}

// Peek returns the next payload without advancing the read position.
func (r *Ring) Peek() ([]byte, bool) {
	return r.read(false)
}

func (r *Ring) read(advance bool) ([]byte, bool) {
	rp := r.readPos.Load()
	wp := r.writePos.Load()
	if rp >= wp {
		return nil, false
	}

	off := (rp & r.mask) * uint64(r.slotSize)
	slot := r.mm[off : off+uint64(r.slotSize)]
	length := binary.LittleEndian.Uint32(slot[0:4])

	payload := make([]byte, length)
	copy(payload, slot[HeaderSize:uint64(HeaderSize)+uint64(length)])

	if advance {
		r.readPos.Store(rp + 1)
		metrics.RingDepth.WithLabelValues(r.feed).Set(float64(r.writePos.Load() - (rp + 1)))
	}
	return payload, true
}

// IsFull reports whether the ring currently holds Slots unconsumed entries.
func (r *Ring) IsFull() bool {
	return r.writePos.Load()-r.readPos.Load() >= r.slots
}

// IsEmpty reports whether there is nothing left to read.
func (r *Ring) IsEmpty() bool {
	return r.readPos.Load() >= r.writePos.Load()
}

// WritePosition returns the current write counter.
func (r *Ring) WritePosition() uint64 {
	return r.writePos.Load()
}

// ReadPosition returns the current read counter.
func (r *Ring) ReadPosition() uint64 {
	return r.readPos.Load()
}
