package gleif

import "errors"

var (
	// ErrRateLimited is returned when GLEIF answers HTTP 429 on both the
	// first attempt and the single retry.
	ErrRateLimited = errors.New("gleif: rate limited")

	// ErrNotFound is returned when no record exists for the requested LEI.
	ErrNotFound = errors.New("gleif: LEI not found")
)
