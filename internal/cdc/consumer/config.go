package consumer

import "time"

// Config configures the CDC Consumer.
type Config struct {
	// NATSURL is the NATS server URL.
	NATSURL string

	// StreamName is the JetStream stream created by the CDC publisher.
	StreamName string

	// ConsumerName is the durable consumer name.
	ConsumerName string

	// FetchBatchSize bounds how many messages are pulled per fetch.
	FetchBatchSize int

	// FetchTimeout bounds how long a single fetch call waits for messages.
	FetchTimeout time.Duration

	// ProgressLogInterval is how many processed events elapse between
	// progress log lines.
	ProgressLogInterval int
}

// DefaultConfig returns the default Config.
func DefaultConfig() Config {
	return Config{
		StreamName:          "CDC",
		FetchBatchSize:      100,
		FetchTimeout:        5 * time.Second,
		ProgressLogInterval: 100,
	}
}
