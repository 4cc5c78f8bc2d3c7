package cdc

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMalformedLSN is returned when an LSN string is not of the form
// "HEX/HEX".
var ErrMalformedLSN = errors.New("cdc: malformed LSN")

// ParseLSN splits a PostgreSQL LSN of the form "HEX/HEX" into its two
// 32-bit halves. Naive lexicographic string comparison of LSNs is wrong
// ("0/9" sorts after "0/10"); callers must compare the parsed pairs
// instead.
func ParseLSN(s string) (hi, lo uint64, err error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, 0, ErrMalformedLSN
	}
	hi, err = strconv.ParseUint(parts[0], 16, 64)
	if err != nil {
		return 0, 0, ErrMalformedLSN
	}
	lo, err = strconv.ParseUint(parts[1], 16, 64)
	if err != nil {
		return 0, 0, ErrMalformedLSN
	}
	return hi, lo, nil
}

// CompareLSN returns -1, 0, or 1 as a compares less than, equal to, or
// greater than b. It returns an error if either string is malformed.
func CompareLSN(a, b string) (int, error) {
	ahi, alo, err := ParseLSN(a)
	if err != nil {
		return 0, err
	}
	bhi, blo, err := ParseLSN(b)
	if err != nil {
		return 0, err
	}

	if ahi != bhi {
		if ahi < bhi {
			return -1, nil
		}
		return 1, nil
	}
	switch {
	case alo < blo:
		return -1, nil
	case alo > blo:
		return 1, nil
	default:
		return 0, nil
	}
}

// LSNLess reports whether a < b. Malformed input compares as false.
func LSNLess(a, b string) bool {
	c, err := CompareLSN(a, b)
	return err == nil && c < 0
}
