package tdigest

import "errors"

// Errors returned by digest operations. Call sites wrap them with extra
// context, so match with errors.Is rather than direct comparison.
var (
	// ErrEmpty is returned by queries that require at least one sample.
	ErrEmpty = errors.New("operation is undefined for an empty digest")

	// ErrDomain is returned when an argument falls outside its allowed
	// range, e.g. a quantile outside [0, 1] or a NaN sample.
	ErrDomain = errors.New("argument outside allowed range")

	// ErrMalformed is returned when a serialized digest fails validation.
	ErrMalformed = errors.New("malformed digest representation")

	// ErrNilDigest is returned when merging with a nil digest.
	ErrNilDigest = errors.New("cannot merge with a nil digest")
)
