// Package clock provides the process-wide TSC-style timestamp source used
// on the hot publish path. Readings are monotonic, opaque, and cheap: no
// syscall is issued per call. They are NOT wall-clock and NOT portable
// across hosts or process restarts; conversion to wall-clock happens only
// at the disk boundary (see internal/flusher).
package clock

import (
	"time"

	"github.com/agilira/go-timecache"
)

// Clock is a cached monotonic timestamp source. A single Clock is meant to
// be constructed once per process and shared by every hot-path producer.
type Clock struct {
	tc *timecache.TimeCache
}

// New creates a Clock backed by a background-refreshed cache with the given
// refresh resolution. A resolution of zero uses the library's default.
func New(resolution time.Duration) *Clock {
	if resolution <= 0 {
		return &Clock{tc: timecache.DefaultCache()}
	}
	return &Clock{tc: timecache.NewWithResolution(resolution)}
}

// NowTSC returns the current opaque monotonic reading. It never issues a
// syscall: the underlying value is refreshed by a background goroutine.
func (c *Clock) NowTSC() uint64 {
	return uint64(c.tc.CachedTime().UnixNano())
}

// Stop releases the background refresh goroutine. Call once at process
// shutdown; not required for correctness, only to free the goroutine.
func (c *Clock) Stop() {
	c.tc.Stop()
}
