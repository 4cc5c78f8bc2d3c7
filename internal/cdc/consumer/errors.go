package consumer

import "errors"

var (
	ErrNotConnected   = errors.New("consumer: not connected")
	ErrConsumerEnsure = errors.New("consumer: failed to ensure durable consumer")
	ErrFetchFailed    = errors.New("consumer: fetch failed")
	ErrWarmFailed     = errors.New("consumer: cache warm failed")
)
