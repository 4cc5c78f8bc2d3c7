package postgres

import "errors"

var (
	ErrMissingConnectionURL   = errors.New("postgres: missing connection url")
	ErrMissingSlotName        = errors.New("postgres: missing slot name")
	ErrMissingPublicationName = errors.New("postgres: missing publication name")
	ErrAlreadyStarted         = errors.New("postgres: reader already started")
	ErrNotStarted             = errors.New("postgres: reader not started")
	ErrConnectionFailed       = errors.New("postgres: connection failed")
	ErrSlotEnsureFailed       = errors.New("postgres: failed to ensure replication slot")
	ErrPollFailed             = errors.New("postgres: poll_changes failed")
)
