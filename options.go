package tdigest

import "fmt"

// Option configures a digest at construction time.
type Option func(*TDigest) error

// MaxCentroids bounds the number of centroids the digest may hold.
//
// The budget rules how aggressively samples are merged together - the
// smaller the budget the coarser the summary and the less accurate the
// mid-range quantiles get. Digests built without this option keep one
// centroid per distinct sample and never lose precision, at the cost of
// unbounded memory.
//
// n must be at least 1, will yield an error otherwise.
func MaxCentroids(n uint32) Option {
	return func(t *TDigest) error {
		if n < 1 {
			return fmt.Errorf("%w: max centroids must be >= 1", ErrDomain)
		}
		t.maxCentroids = n
		return nil
	}
}
