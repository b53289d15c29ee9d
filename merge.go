package tdigest

import (
	"math"
	"slices"
)

// runMerge compresses the working buffer into a new centroid sequence and
// installs it in the digest's store. buf holds every source centroid: the
// existing store, foreign centroids from merges and raw samples as
// singletons. It is sorted in place; the digest's aggregates must already
// reflect the buffer's contents because endpoint protection keys off the
// recorded min and max.
func (t *TDigest) runMerge(buf []centroid) {
	if len(buf) == 0 {
		t.summary.replace(buf)
		return
	}

	slices.SortStableFunc(buf, centroidCompare)

	if t.maxCentroids == 0 {
		t.summary.replace(fuseEqualMeans(buf))
		return
	}

	delta := float64(t.maxCentroids)
	var total float64
	for _, c := range buf {
		total += c.weight
	}

	out := mergePass(buf, delta, total, t.min, t.max)
	out = enforceBudget(out, int(t.maxCentroids), delta, total, t.min, t.max)
	t.summary.replace(out)
}

// mergePass scans the sorted buffer left to right, absorbing each source
// centroid into the pending cluster while the combined cluster still fits
// one unit of the k1 index space. Singleton centroids sitting exactly on
// the recorded min or max are emitted as-is so the extreme quantiles stay
// exact across compression.
func mergePass(buf []centroid, delta, total, minValue, maxValue float64) []centroid {
	out := make([]centroid, 0, len(buf))
	var emitted float64

	lo, hi := 0, len(buf)
	if len(buf) > 1 && buf[0].weight == 1 && buf[0].mean == minValue {
		out = append(out, buf[0])
		emitted = buf[0].weight
		lo = 1
	}
	var tail centroid
	hasTail := false
	if hi-lo > 1 && buf[hi-1].weight == 1 && buf[hi-1].mean == maxValue {
		tail = buf[hi-1]
		hasTail = true
		hi--
	}

	pending := buf[lo]
	for _, next := range buf[lo+1 : hi] {
		qLo := emitted / total
		qHi := (emitted + pending.weight + next.weight) / total
		if fitsSizeBound(qLo, qHi, delta) {
			pending.absorb(next)
			continue
		}
		out = append(out, pending)
		emitted += pending.weight
		pending = next
	}
	out = append(out, pending)
	if hasTail {
		out = append(out, tail)
	}
	return out
}

// enforceBudget folds the adjacent pair with the smallest k1-space width
// until the sequence fits the budget. The greedy scan can overshoot the
// budget by a couple of clusters near the protected endpoints; this pass
// makes the bound exact. Protected endpoint singletons join a fold only
// when no interior pair is left.
func enforceBudget(out []centroid, budget int, delta, total, minValue, maxValue float64) []centroid {
	for len(out) > budget && len(out) > 1 {
		lo, hi := 0, len(out)-1
		if len(out) > 2 && out[0].weight == 1 && out[0].mean == minValue {
			lo = 1
		}
		if hi-lo > 1 && out[len(out)-1].weight == 1 && out[len(out)-1].mean == maxValue {
			hi--
		}

		best, bestWidth := lo, math.Inf(1)
		var head float64
		for i := 0; i < hi; i++ {
			if i >= lo {
				qLo := head / total
				qHi := (head + out[i].weight + out[i+1].weight) / total
				if w := kWidth(qLo, qHi, delta); w < bestWidth {
					best, bestWidth = i, w
				}
			}
			head += out[i].weight
		}

		out[best].absorb(out[best+1])
		out = append(out[:best+1], out[best+2:]...)
	}
	return out
}

// fuseEqualMeans compacts the sorted buffer for an unbounded digest. No
// interpolation loss is allowed in that mode, so only centroids with
// bitwise-equal means fuse.
func fuseEqualMeans(buf []centroid) []centroid {
	out := buf[:1]
	for _, next := range buf[1:] {
		last := &out[len(out)-1]
		if next.mean == last.mean {
			last.weight += next.weight
			continue
		}
		out = append(out, next)
	}
	return out
}
