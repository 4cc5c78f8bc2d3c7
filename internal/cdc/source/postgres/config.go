package postgres

import "time"

// Config configures a WAL Reader.
type Config struct {
	// Name identifies this source for logging and metrics.
	Name string

	// ConnectionURL is the PostgreSQL connection string.
	ConnectionURL string

	// SlotName is the logical replication slot name. It is created with
	// output plugin wal2json on first use and never dropped.
	SlotName string

	// PublicationName names the publication listing the tables of
	// interest. It is required by Validate but is not passed to the slot
	// or to the poll query, so it does not filter what wal2json emits.
	PublicationName string

	// Tables lists the tables of interest. It is informational only:
	// polling is not filtered by it.
	Tables []string

	// PollInterval is the cadence of poll_changes calls.
	PollInterval time.Duration

	// EventBufferSize sizes the reader's output channel.
	EventBufferSize int
}

// DefaultConfig returns the default replication slot, publication, and
// polling settings.
func DefaultConfig() Config {
	return Config{
		Name:            "postgres",
		SlotName:        "ssmd_cdc",
		PublicationName: "ssmd_cdc_pub",
		PollInterval:    100 * time.Millisecond,
		EventBufferSize: 1000,
	}
}

// Validate checks that required fields are set.
func (c Config) Validate() error {
	if c.ConnectionURL == "" {
		return ErrMissingConnectionURL
	}
	if c.SlotName == "" {
		return ErrMissingSlotName
	}
	if c.PublicationName == "" {
		return ErrMissingPublicationName
	}
	return nil
}
