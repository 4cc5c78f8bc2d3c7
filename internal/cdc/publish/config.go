package publish

import "time"

// Config configures the NATS JetStream CDC publisher.
type Config struct {
	// URL is the NATS server URL.
	URL string

	// StreamName is the durable JetStream stream name.
	StreamName string

	// SubjectFilter is the wildcard subject the stream captures ("cdc.>").
	SubjectFilter string

	// MaxMsgs and MaxAge bound the stream's retention.
	MaxMsgs int64
	MaxAge  time.Duration

	// PublishTimeout bounds how long Publish waits for a JetStream ack.
	PublishTimeout time.Duration
}

// DefaultConfig returns a file-backed durable stream retaining 100k
// messages for 7 days.
func DefaultConfig() Config {
	return Config{
		StreamName:     "CDC",
		SubjectFilter:  "cdc.>",
		MaxMsgs:        100_000,
		MaxAge:         7 * 24 * time.Hour,
		PublishTimeout: 5 * time.Second,
	}
}
