package config

import "errors"

// Validation errors.
//
// Design decision: Package-level sentinel errors so callers can use
// errors.Is while still getting a readable message.
var (
	// ErrInvalidThreshold is returned when the threshold is outside the
	// 0 to 64 range a 64-bit hash comparison can produce.
	ErrInvalidThreshold = errors.New("invalid threshold: must be between 0 and 64")

	// ErrInvalidScanDelay is returned when the scan delay is negative.
	ErrInvalidScanDelay = errors.New("invalid scan delay: must be non-negative")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
