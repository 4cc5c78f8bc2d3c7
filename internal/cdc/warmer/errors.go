package warmer

import "errors"

var (
	ErrConnectFailed   = errors.New("warmer: connection failed")
	ErrLSNFailed       = errors.New("warmer: failed to read current lsn")
	ErrWarmTableFailed = errors.New("warmer: failed to warm table")
)
