package tdigest

import (
	"fmt"
	"math"
	"sort"
)

// Quantile returns the estimated value below which a fraction q of the
// ingested observations falls.
//
// q must be within [0, 1]. Quantile(0) and Quantile(1) return the exact
// minimum and maximum.
func (t *TDigest) Quantile(q float64) (float64, error) {
	if math.IsNaN(q) || q < 0 || q > 1 {
		return 0, fmt.Errorf("%w: quantile %v not in [0, 1]", ErrDomain, q)
	}
	if t.count == 0 {
		return 0, fmt.Errorf("%w: quantile", ErrEmpty)
	}
	if q == 0 {
		return t.min, nil
	}
	if q == 1 {
		return t.max, nil
	}

	n := t.summary.Len()
	total := t.count
	target := q * total

	// First centroid whose midpoint reaches the target weight.
	idx := sort.Search(n, func(i int) bool {
		return t.summary.Midpoint(i) >= target
	})

	var value float64
	switch {
	case idx == 0:
		// Before the first midpoint: interpolate up from the exact
		// minimum. A singleton first centroid collapses the interval.
		if t.summary.Weight(0) == 1 {
			value = t.summary.Mean(0)
			break
		}
		mid := t.summary.Midpoint(0)
		value = t.min + target/mid*(t.summary.Mean(0)-t.min)
	case idx == n:
		// Past the last midpoint: interpolate toward the exact maximum.
		if t.summary.Weight(n-1) == 1 {
			value = t.summary.Mean(n - 1)
			break
		}
		mid := t.summary.Midpoint(n - 1)
		value = t.summary.Mean(n-1) + (target-mid)/(total-mid)*(t.max-t.summary.Mean(n-1))
	default:
		prevMid := t.summary.Midpoint(idx - 1)
		nextMid := t.summary.Midpoint(idx)
		fraction := (target - prevMid) / (nextMid - prevMid)
		value = t.summary.Mean(idx-1) + fraction*(t.summary.Mean(idx)-t.summary.Mean(idx-1))
	}

	return clamp(value, t.min, t.max), nil
}

// Percentile is Quantile with p expressed in [0, 100].
func (t *TDigest) Percentile(p float64) (float64, error) {
	if math.IsNaN(p) || p < 0 || p > 100 {
		return 0, fmt.Errorf("%w: percentile %v not in [0, 100]", ErrDomain, p)
	}
	return t.Quantile(p / 100)
}

// Median returns the estimated 50th percentile.
func (t *TDigest) Median() (float64, error) {
	return t.Quantile(0.5)
}

// IQR returns the estimated interquartile range, the distance between the
// 75th and 25th percentiles.
func (t *TDigest) IQR() (float64, error) {
	q1, err := t.Quantile(0.25)
	if err != nil {
		return 0, err
	}
	q3, err := t.Quantile(0.75)
	if err != nil {
		return 0, err
	}
	return q3 - q1, nil
}

// CDF returns the estimated fraction of ingested observations that are
// less than or equal to x. It is non-decreasing in x and the inverse of
// Quantile up to the digest's interpolation error.
func (t *TDigest) CDF(x float64) (float64, error) {
	if math.IsNaN(x) {
		return 0, fmt.Errorf("%w: cdf of NaN", ErrDomain)
	}
	if t.count == 0 {
		return 0, fmt.Errorf("%w: cdf", ErrEmpty)
	}
	if x <= t.min {
		return 0, nil
	}
	if x >= t.max {
		return 1, nil
	}

	n := t.summary.Len()
	total := t.count

	var cum float64
	switch {
	case x < t.summary.Mean(0):
		// Between the exact minimum and the first mean. x > t.min here,
		// so the bracket has positive width.
		mid := t.summary.Midpoint(0)
		cum = mid * (x - t.min) / (t.summary.Mean(0) - t.min)
	case x >= t.summary.Mean(n-1):
		// Between the last mean and the exact maximum. x < t.max here,
		// so again the bracket has positive width.
		mid := t.summary.Midpoint(n - 1)
		cum = mid + (total-mid)*(x-t.summary.Mean(n-1))/(t.max-t.summary.Mean(n-1))
	default:
		// Last centroid with mean <= x and the first one beyond it. Ties
		// on the mean resolve to the rightmost centroid, so point masses
		// contribute their full weight at x.
		upper := sort.Search(n, func(i int) bool {
			return t.summary.Mean(i) > x
		})
		lowerMid := t.summary.Midpoint(upper - 1)
		upperMid := t.summary.Midpoint(upper)
		fraction := (x - t.summary.Mean(upper-1)) / (t.summary.Mean(upper) - t.summary.Mean(upper-1))
		cum = lowerMid + fraction*(upperMid-lowerMid)
	}

	return clamp(cum/total, 0, 1), nil
}

// Probability returns the estimated probability mass of the interval
// [x1, x2], i.e. CDF(x2) - CDF(x1). No ordering of the bounds is
// required; the result is negative when x2 < x1.
func (t *TDigest) Probability(x1, x2 float64) (float64, error) {
	c1, err := t.CDF(x1)
	if err != nil {
		return 0, err
	}
	c2, err := t.CDF(x2)
	if err != nil {
		return 0, err
	}
	return c2 - c1, nil
}

// Mean returns the exact arithmetic mean of all ingested observations.
// After reconstruction from a serialized centroid list it degrades to the
// centroid-weighted estimate, since raw samples are not retained.
func (t *TDigest) Mean() (float64, error) {
	if t.count == 0 {
		return 0, fmt.Errorf("%w: mean", ErrEmpty)
	}
	return t.sum / t.count, nil
}

// TrimmedMean returns the mean of the observations whose cumulative rank
// lies within [q1, q2], integrating the piecewise-linear inverse CDF.
// Centroids straddling a boundary contribute the overlapping fraction of
// their weight.
//
// Requires 0 <= q1 < q2 <= 1.
func (t *TDigest) TrimmedMean(q1, q2 float64) (float64, error) {
	if math.IsNaN(q1) || math.IsNaN(q2) || q1 < 0 || q2 > 1 || q1 >= q2 {
		return 0, fmt.Errorf("%w: trimmed mean bounds [%v, %v]", ErrDomain, q1, q2)
	}
	if t.count == 0 {
		return 0, fmt.Errorf("%w: trimmed mean", ErrEmpty)
	}

	lo := q1 * t.count
	hi := q2 * t.count

	var sum, weight, head float64
	for i := 0; i < t.summary.Len(); i++ {
		w := t.summary.Weight(i)
		overlap := math.Min(head+w, hi) - math.Max(head, lo)
		head += w
		if overlap <= 0 {
			continue
		}
		sum += overlap * t.summary.Mean(i)
		weight += overlap
	}
	if weight == 0 {
		// The trim window is narrower than the float resolution of the
		// cumulative axis; fall back to the point estimate.
		return t.Quantile(q1)
	}
	return sum / weight, nil
}

// Min returns the exact minimum ingested value.
func (t *TDigest) Min() (float64, error) {
	if t.count == 0 {
		return 0, fmt.Errorf("%w: min", ErrEmpty)
	}
	return t.min, nil
}

// Max returns the exact maximum ingested value.
func (t *TDigest) Max() (float64, error) {
	if t.count == 0 {
		return 0, fmt.Errorf("%w: max", ErrEmpty)
	}
	return t.max, nil
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(x, hi))
}
