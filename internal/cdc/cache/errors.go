package cache

import "errors"

var (
	ErrEncodeFailed = errors.New("cache: failed to encode value")
	ErrSetFailed    = errors.New("cache: set failed")
	ErrDeleteFailed = errors.New("cache: delete failed")
	ErrGetFailed    = errors.New("cache: get failed")
)
