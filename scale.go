package tdigest

import "math"

// scaleK1 maps a quantile position q in [0, 1] into the k1 index space:
//
//	k1(q, δ) = δ/(2π) · asin(2q − 1)
//
// The arcsine stretches the quantile axis near q=0 and q=1, which keeps
// tail clusters small and makes extreme quantile estimates more accurate
// than the center ones. Strictly increasing in q and symmetric about
// q=0.5 (k1(q) = -k1(1-q)).
func scaleK1(q, delta float64) float64 {
	if q <= 0 {
		return -delta / 4
	}
	if q >= 1 {
		return delta / 4
	}
	return delta / (2 * math.Pi) * math.Asin(2*q-1)
}

// kWidth returns the k1-space width of the cumulative interval [qLo, qHi].
func kWidth(qLo, qHi, delta float64) float64 {
	return scaleK1(qHi, delta) - scaleK1(qLo, delta)
}

// fitsSizeBound reports whether a cluster spanning cumulative positions
// [qLo, qHi] may exist as a single centroid under budget delta. Equality
// counts as fitting so that centroid counts stay non-increasing under
// repeated compression with the same budget.
func fitsSizeBound(qLo, qHi, delta float64) bool {
	return kWidth(qLo, qHi, delta) <= 1
}
