// Package flusher implements the dedicated disk flusher: it drains a
// hot-path ring buffer in batches, stamps wall-clock time on each message,
// rotates output files on UTC date change, and appends to a buffered
// JSONL writer. It is the only place in the publisher core that performs
// blocking file I/O, and it runs pinned to its own OS thread so that I/O
// never stalls other hot-path work.
package flusher

import (
	"bufio"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/aaronwald/ssmd/internal/metrics"
	"github.com/aaronwald/ssmd/internal/ring"
)

const (
	// BatchSize is the maximum number of ring entries drained per loop
	// iteration.
	BatchSize = 64
	// EmptySleep is how long the flusher sleeps when the ring has
	// nothing to drain.
	EmptySleep = 100 * time.Microsecond

	dateLayout = "2006-01-02"
	dirMode    = 0o750
	fileMode   = 0o644
	writerSize = 64 * 1024
)

// Flusher drains a ring into dated JSONL files under a base directory.
type Flusher struct {
	ring    *ring.Ring
	baseDir string
	feed    string
	logger  *slog.Logger

	shutdown atomic.Bool

	curDate string
	file    *os.File
	w       *bufio.Writer
}

// New creates a Flusher for the given ring, base directory, and feed name.
// Output files are written to {baseDir}/{YYYY-MM-DD}/{feed}.jsonl.
func New(r *ring.Ring, baseDir, feed string, logger *slog.Logger) *Flusher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flusher{
		ring:    r,
		baseDir: baseDir,
		feed:    feed,
		logger:  logger.With("component", "flusher", "feed", feed),
	}
}

// Stop signals the Run loop to drain remaining ring contents, flush, and
// return. Safe to call from any goroutine.
func (f *Flusher) Stop() {
	f.shutdown.Store(true)
}

// Run drives the flusher loop until Stop is called. It blocks the calling
// goroutine and should be started with `go f.Run()`. Always flushes and
// closes the current file before returning, including on panic.
func (f *Flusher) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer func() {
		if r := recover(); r != nil {
			f.flush()
			f.closeFile()
			panic(r)
		}
	}()

	for !f.shutdown.Load() {
		if f.drainBatch() > 0 {
			f.flush()
		} else {
			time.Sleep(EmptySleep)
		}
	}

	// Drain whatever remains before exiting.
	for f.drainBatch() > 0 {
	}
	f.flush()
	f.closeFile()
}

func (f *Flusher) drainBatch() int {
	n := 0
	for i := 0; i < BatchSize; i++ {
		payload, ok := f.ring.TryRead()
		if !ok {
			break
		}
		n++
		f.writeRecord(payload)
	}
	return n
}

func (f *Flusher) writeRecord(payload []byte) {
	ts := time.Now().UTC()
	date := ts.Format(dateLayout)

	if date != f.curDate {
		if err := f.rotate(date); err != nil {
			f.logger.Error("rotate failed, message for this date will be dropped until next rotate succeeds",
				"error", err, "date", date)
		}
	}

	if f.w == nil {
		f.logger.Warn("dropping message: no open writer")
		return
	}

	f.w.WriteString(`{"ts":"`)
	f.w.WriteString(ts.Format(time.RFC3339Nano))
	f.w.WriteString(`","data":`)
	f.w.Write(payload)
	f.w.WriteString("}\n")

	metrics.FlusherRecordsWrittenTotal.WithLabelValues(f.feed).Inc()
}

// rotate flushes and closes the current file, then opens
// {baseDir}/{date}/{feed}.jsonl for append. On failure curDate is left
// unchanged so the next write retries rotation.
func (f *Flusher) rotate(date string) error {
	f.flush()
	f.closeFile()

	dir := filepath.Join(f.baseDir, date)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		metrics.FlusherRotateErrorsTotal.WithLabelValues(f.feed).Inc()
		return errors.Join(errRotateDir, err)
	}

	path := filepath.Join(dir, f.feed+".jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, fileMode)
	if err != nil {
		metrics.FlusherRotateErrorsTotal.WithLabelValues(f.feed).Inc()
		return errors.Join(errRotateFile, err)
	}

	f.file = file
	f.w = bufio.NewWriterSize(file, writerSize)
	f.curDate = date
	metrics.FlusherRotationsTotal.WithLabelValues(f.feed).Inc()
	return nil
}

func (f *Flusher) flush() {
	if f.w == nil {
		return
	}
	if err := f.w.Flush(); err != nil {
		f.logger.Error("flush failed", "error", err)
	}
}

func (f *Flusher) closeFile() {
	if f.file == nil {
		return
	}
	if err := f.file.Close(); err != nil {
		f.logger.Error("close failed", "error", err)
	}
	f.file = nil
	f.w = nil
}

var (
	errRotateDir  = errors.New("flusher: create directory")
	errRotateFile = errors.New("flusher: open file")
)
