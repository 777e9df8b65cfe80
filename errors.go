package bloom

import "errors"

var (
	ErrZeroBits             = errors.New("bloom: bit count must be greater than zero")
	ErrTooManyBits          = errors.New("bloom: bit count exceeds MaxBits")
	ErrZeroHashes           = errors.New("bloom: hash count must be greater than zero")
	ErrZeroCapacity         = errors.New("bloom: expected element count must be greater than zero")
	ErrBadFalsePositiveRate = errors.New("bloom: false positive rate must be in (0, 1)")

	// ErrTruncated is returned when a persisted image ends before the
	// header or the declared bit array is complete.
	ErrTruncated = errors.New("bloom: persisted image is truncated")

	// ErrNotFound is returned by RedisStore.Load when the key does not exist.
	ErrNotFound = errors.New("bloom: no filter stored under key")
)
