package publish

import "errors"

var (
	ErrNotConnected  = errors.New("publish: not connected")
	ErrStreamEnsure  = errors.New("publish: failed to ensure stream")
	ErrEncodeFailed  = errors.New("publish: failed to encode event")
	ErrPublishFailed = errors.New("publish: publish not acked")
)
