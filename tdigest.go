// Package tdigest maintains compact, mergeable summaries of unbounded
// streams of real-valued observations for approximate rank and quantile
// statistics.
//
// A digest keeps a list of weighted centroids, bounded when a centroid
// budget is configured and then biased toward the distribution tails,
// alongside exact running aggregates (min, max, sum
// and count). Typical use cases involve accumulating measurements on
// several distinct nodes of a cluster and then merging the summaries to
// get a system-wide quantile overview: latency percentiles for
// distributed systems, sensory data from IoT devices, quantiles over
// enormous datasets.
//
// After you create (and configure, if desired) the digest:
//
//	digest, err := tdigest.New(tdigest.MaxCentroids(100))
//
// you can register measurements:
//
//	digest.Add(value)
//
// estimate quantiles:
//
//	digest.Quantile(0.99)
//
// and merge with another digest:
//
//	merged, err := digest.Merge(otherDigest)
//
// A digest is not safe for concurrent mutation; readers may share one as
// long as no writer is active.
package tdigest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// TDigest is a quantile approximation data structure.
//
// The zero value is not usable; construct with New, FromValues or one of
// the deserialization entry points.
type TDigest struct {
	summary      *summary
	maxCentroids uint32 // 0 means unbounded
	count        float64
	sum          float64
	min          float64
	max          float64
}

// New creates an empty digest.
//
// Without options the digest is unbounded: it keeps one centroid per
// distinct sample and never loses precision. Pass MaxCentroids to bound
// memory and enable compression.
func New(options ...Option) (*TDigest, error) {
	t := &TDigest{
		min: math.Inf(1),
		max: math.Inf(-1),
	}
	for _, option := range options {
		if err := option(t); err != nil {
			return nil, err
		}
	}
	t.summary = newSummary(estimateCapacity(t.maxCentroids))
	return t, nil
}

// FromValues creates a digest from an initial batch of samples.
func FromValues(values []float64, options ...Option) (*TDigest, error) {
	t, err := New(options...)
	if err != nil {
		return nil, err
	}
	if err := t.AddBatch(values); err != nil {
		return nil, err
	}
	return t, nil
}

// Add registers a new sample in the digest.
//
// NaN values yield an error; infinities are accepted and propagate into
// the min/max/mean aggregates.
func (t *TDigest) Add(value float64) error {
	return t.AddBatch([]float64{value})
}

// AddBatch registers a batch of samples in a single compression pass,
// which is considerably cheaper than adding them one by one.
//
// An empty batch is a no-op. If any value is NaN the whole batch is
// rejected and the digest is left unchanged.
func (t *TDigest) AddBatch(values []float64) error {
	if len(values) == 0 {
		return nil
	}
	for _, v := range values {
		if math.IsNaN(v) {
			return fmt.Errorf("%w: cannot add NaN", ErrDomain)
		}
	}

	buf := make([]centroid, 0, t.summary.Len()+len(values))
	buf = t.summary.appendTo(buf)
	for _, v := range values {
		buf = append(buf, centroid{mean: v, weight: 1})
	}

	t.count += float64(len(values))
	t.sum += floats.Sum(values)
	t.min = math.Min(t.min, floats.Min(values))
	t.max = math.Max(t.max, floats.Max(values))

	t.runMerge(buf)
	return nil
}

// Merge combines t and other into a new digest, leaving both inputs
// intact. The result's centroid budget is the larger of the two, with
// unbounded dominating any bound.
func (t *TDigest) Merge(other *TDigest) (*TDigest, error) {
	if other == nil {
		return nil, ErrNilDigest
	}

	merged := &TDigest{
		maxCentroids: combinedBudget(t.maxCentroids, other.maxCentroids),
		count:        t.count + other.count,
		sum:          t.sum + other.sum,
		min:          math.Min(t.min, other.min),
		max:          math.Max(t.max, other.max),
	}
	merged.summary = newSummary(t.summary.Len() + other.summary.Len())

	buf := make([]centroid, 0, t.summary.Len()+other.summary.Len())
	buf = t.summary.appendTo(buf)
	buf = other.summary.appendTo(buf)
	merged.runMerge(buf)
	return merged, nil
}

// MergeInPlace folds other's contribution into t without modifying other.
// t's centroid budget is unchanged.
func (t *TDigest) MergeInPlace(other *TDigest) error {
	if other == nil {
		return ErrNilDigest
	}
	if other.count == 0 {
		return nil
	}

	buf := make([]centroid, 0, t.summary.Len()+other.summary.Len())
	buf = t.summary.appendTo(buf)
	buf = other.summary.appendTo(buf)

	t.count += other.count
	t.sum += other.sum
	t.min = math.Min(t.min, other.min)
	t.max = math.Max(t.max, other.max)

	t.runMerge(buf)
	return nil
}

// MergeAll folds every digest in ds into a single new digest using one
// batched compression pass over the concatenated centroid lists, which is
// both faster and slightly more accurate than repeated pairwise merging.
//
// When no option sets a budget, the result takes the largest budget among
// the sources, with unbounded dominating. An empty ds yields an empty
// digest with the supplied budget (or unbounded).
func MergeAll(ds []*TDigest, options ...Option) (*TDigest, error) {
	for _, d := range ds {
		if d == nil {
			return nil, ErrNilDigest
		}
	}

	merged, err := New(options...)
	if err != nil {
		return nil, err
	}
	if len(options) == 0 && len(ds) > 0 {
		budget := ds[0].maxCentroids
		for _, d := range ds[1:] {
			budget = combinedBudget(budget, d.maxCentroids)
		}
		merged.maxCentroids = budget
	}

	var buf []centroid
	for _, d := range ds {
		buf = d.summary.appendTo(buf)
		merged.count += d.count
		merged.sum += d.sum
		merged.min = math.Min(merged.min, d.min)
		merged.max = math.Max(merged.max, d.max)
	}
	merged.runMerge(buf)
	return merged, nil
}

// Compress runs one compression pass under the given budget without
// changing the digest's configured budget. The effective budget is
// floored at min(Count, 3) so that quantile interpolation keeps at least
// three anchor points on non-trivial digests.
//
// Compressing twice with the same budget leaves the centroid list
// unchanged after the first pass.
func (t *TDigest) Compress(maxCentroids uint32) error {
	if maxCentroids == 0 {
		return fmt.Errorf("%w: compression budget must be positive", ErrDomain)
	}
	if t.count == 0 {
		return nil
	}

	budget := maxCentroids
	if floor := math.Min(t.count, 3); float64(budget) < floor {
		budget = uint32(floor)
	}

	configured := t.maxCentroids
	t.maxCentroids = budget
	t.runMerge(t.summary.appendTo(make([]centroid, 0, t.summary.Len())))
	t.maxCentroids = configured
	return nil
}

// MaxCentroids returns the configured centroid budget. bounded is false
// when the digest is unbounded.
func (t *TDigest) MaxCentroids() (n uint32, bounded bool) {
	return t.maxCentroids, t.maxCentroids != 0
}

// SetMaxCentroids reconfigures the centroid budget; n = 0 makes the
// digest unbounded. Lowering the bound below the current centroid count
// compresses immediately so the bound holds at all times.
func (t *TDigest) SetMaxCentroids(n uint32) {
	t.maxCentroids = n
	if n != 0 && t.summary.Len() > int(n) {
		t.runMerge(t.summary.appendTo(make([]centroid, 0, t.summary.Len())))
	}
}

// Count returns the total weight of all ingested observations.
func (t *TDigest) Count() float64 {
	return t.count
}

// Len returns the number of centroids currently held.
func (t *TDigest) Len() int {
	return t.summary.Len()
}

// Equals reports whether two digests hold element-wise identical centroid
// lists (strict IEEE comparison, not approximate) and the same budget.
func (t *TDigest) Equals(other *TDigest) bool {
	if other == nil {
		return false
	}
	return t.maxCentroids == other.maxCentroids && t.summary.equals(other.summary)
}

// Clone returns a deep copy of the digest.
func (t *TDigest) Clone() *TDigest {
	clone := *t
	clone.summary = t.summary.Clone()
	return &clone
}

// ForEachCentroid calls f for each centroid in ascending mean order.
//
// Iteration stops when f returns false, or when all centroids have been
// visited.
func (t *TDigest) ForEachCentroid(f func(mean, weight float64) bool) {
	t.summary.Iterate(func(c centroid) bool {
		return f(c.mean, c.weight)
	})
}

func (t *TDigest) String() string {
	return fmt.Sprintf("TDigest(count=%v, centroids=%d, maxCentroids=%d)",
		t.count, t.summary.Len(), t.maxCentroids)
}

func combinedBudget(a, b uint32) uint32 {
	if a == 0 || b == 0 {
		return 0
	}
	return max(a, b)
}

func estimateCapacity(maxCentroids uint32) int {
	if maxCentroids == 0 {
		return 64
	}
	return int(maxCentroids)
}
