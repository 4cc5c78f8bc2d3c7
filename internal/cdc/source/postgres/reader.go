// Package postgres implements the WAL Reader: a PostgreSQL logical-
// replication client that ensures a named wal2json slot, polls decoded
// changes over an ordinary connection (pg_logical_slot_get_changes is a
// SQL function, not a streaming-replication-protocol call), and emits
// LSN-tagged CDC events.
//
// The Reader struct shape (config, logger, events/errors channels,
// started/lastLSN under a mutex, stopOnce/closeOnce) mirrors a generic
// long-running source-connector pattern; the run loop drives a poll
// ticker against jackc/pgx/v5 rather than a streaming-replication-protocol
// listener, since pg_logical_slot_get_changes is a plain SQL call.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aaronwald/ssmd/internal/cdc"
	"github.com/aaronwald/ssmd/internal/cdc/state"
	"github.com/aaronwald/ssmd/internal/metrics"
)

// Lifecycle states.
const (
	StateUnconnected = "unconnected"
	StateConnecting  = "connecting"
	StateSlotEnsured = "slot_ensured"
	StatePolling     = "polling"
	StateFailed      = "failed"
)

var transitions = map[string][]string{
	StateUnconnected: {StateConnecting},
	StateConnecting:  {StateSlotEnsured, StateFailed},
	StateSlotEnsured: {StatePolling, StateFailed},
	StatePolling:     {StatePolling, StateFailed},
}

// pollRetryInterval is how long the loop sleeps after a failed poll
// before retrying.
const pollRetryInterval = 5 * time.Second

// Reader is a PostgreSQL WAL Reader source.
type Reader struct {
	config Config
	logger *slog.Logger
	pool   *pgxpool.Pool
	sm     *state.Machine

	events chan cdc.Event
	errs   chan error

	mu        sync.RWMutex
	started   bool
	lastLSN   string
	cancel    context.CancelFunc
	stopOnce  sync.Once
	closeOnce sync.Once
}

// New creates a Reader. It does not connect until Start is called.
func New(cfg Config, logger *slog.Logger) (*Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Reader{
		config: cfg,
		logger: logger.With("component", "wal-reader", "source", cfg.Name),
		events: make(chan cdc.Event, cfg.EventBufferSize),
		errs:   make(chan error, 1),
		sm:     state.New(StateUnconnected, transitions),
	}, nil
}

// Start begins capturing CDC events. It returns immediately; events and
// terminal errors are delivered on the returned channels.
func (r *Reader) Start(ctx context.Context) (<-chan cdc.Event, <-chan error) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		r.errs <- ErrAlreadyStarted
		return r.events, r.errs
	}
	r.started = true
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	go r.run(runCtx)

	return r.events, r.errs
}

// Stop gracefully stops the reader.
func (r *Reader) Stop(ctx context.Context) error {
	r.mu.RLock()
	started := r.started
	r.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
	})
	return nil
}

// LastLSN returns the last LSN observed by poll_changes.
func (r *Reader) LastLSN() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastLSN
}

// Name returns the source name.
func (r *Reader) Name() string {
	return r.config.Name
}

// State returns the reader's current lifecycle state.
func (r *Reader) State() string {
	return r.sm.State()
}

func (r *Reader) run(ctx context.Context) {
	defer r.closeOnce.Do(func() { close(r.events) })

	r.sm.Transition(StateConnecting)

	pool, err := pgxpool.New(ctx, r.config.ConnectionURL)
	if err != nil {
		metrics.CDCErrorsTotal.WithLabelValues("connect").Inc()
		r.fail(fmt.Errorf("%w: %v", ErrConnectionFailed, err))
		return
	}
	r.pool = pool
	defer pool.Close()

	if err := r.ensureSlot(ctx); err != nil {
		metrics.CDCErrorsTotal.WithLabelValues("slot_ensure").Inc()
		r.fail(fmt.Errorf("%w: %v", ErrSlotEnsureFailed, err))
		return
	}
	r.sm.Transition(StateSlotEnsured)
	r.sm.Transition(StatePolling)

	r.logger.Info("WAL reader polling", "slot", r.config.SlotName, "interval", r.config.PollInterval)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("WAL reader stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
			if err := r.pollOnce(ctx); err != nil {
				metrics.CDCErrorsTotal.WithLabelValues("poll").Inc()
				r.logger.Error("poll_changes failed, retrying", "error", err, "retry_in", pollRetryInterval)
				select {
				case <-ctx.Done():
					return
				case <-time.After(pollRetryInterval):
				}
			}
		}
	}
}

func (r *Reader) pollOnce(ctx context.Context) error {
	events, err := r.pollChanges(ctx)
	if err != nil {
		return err
	}
	for _, e := range events {
		r.mu.Lock()
		r.lastLSN = e.LSN
		r.mu.Unlock()

		select {
		case r.events <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// ensureSlot checks pg_replication_slots for the configured slot; if
// absent, creates a logical slot with output plugin wal2json. Idempotent.
func (r *Reader) ensureSlot(ctx context.Context) error {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_replication_slots WHERE slot_name = $1)`,
		r.config.SlotName,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check replication slot: %w", err)
	}
	if exists {
		return nil
	}

	_, err = r.pool.Exec(ctx,
		`SELECT pg_create_logical_replication_slot($1, 'wal2json')`,
		r.config.SlotName,
	)
	if err != nil {
		return fmt.Errorf("create replication slot: %w", err)
	}
	return nil
}

// CurrentLSN returns pg_current_wal_lsn()::text.
func (r *Reader) CurrentLSN(ctx context.Context) (string, error) {
	var lsn string
	err := r.pool.QueryRow(ctx, `SELECT pg_current_wal_lsn()::text`).Scan(&lsn)
	if err != nil {
		return "", fmt.Errorf("current lsn: %w", err)
	}
	return lsn, nil
}

// pollChanges calls pg_logical_slot_get_changes, which is destructive: it
// advances the slot's confirmed_flush_lsn as a side effect of the SQL
// function call itself. Every event returned here must be durably
// published downstream before the next poll tick, or it is lost.
func (r *Reader) pollChanges(ctx context.Context) ([]cdc.Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT lsn, data FROM pg_logical_slot_get_changes($1, NULL, NULL, 'include-lsn', '1', 'include-timestamp', '1')`,
		r.config.SlotName,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPollFailed, err)
	}
	defer rows.Close()

	var events []cdc.Event
	for rows.Next() {
		var lsn, data string
		if err := rows.Scan(&lsn, &data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPollFailed, err)
		}

		rowEvents, err := parseWAL2JSON(lsn, []byte(data))
		if err != nil {
			r.logger.Warn("skipping malformed wal2json row", "lsn", lsn, "error", err)
			continue
		}
		events = append(events, rowEvents...)
	}
	return events, rows.Err()
}

func (r *Reader) fail(err error) {
	if terr := r.sm.Transition(StateFailed); terr != nil {
		r.logger.Warn("failed to record failed state", "error", terr)
	}
	r.logger.Error("WAL reader failed", "error", err)
	select {
	case r.errs <- err:
	default:
	}
}
