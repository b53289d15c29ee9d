package tdigest

import (
	"slices"

	"github.com/moritzmucha/fastdigest/internal/fenwick"
)

// centroid is a cluster of observations summarized by the mean of its
// members and the weight (observation count) it carries.
type centroid struct {
	mean   float64
	weight float64
}

// absorb folds other into c using the incremental weighted-mean update.
// Compared to recomputing Σ(w·m)/Σw per absorption this keeps the
// accumulated rounding error linear in the number of merges.
func (c *centroid) absorb(other centroid) {
	c.weight += other.weight
	c.mean += (other.mean - c.mean) * other.weight / c.weight
}

func centroidCompare(a, b centroid) int {
	if a.mean < b.mean {
		return -1
	}
	if a.mean > b.mean {
		return 1
	}
	return 0
}

// summary is the ordered centroid store: parallel mean/weight slices
// sorted by mean, plus a prefix-sum cache over the weights. The store only
// changes through replace, which installs a fully compressed sequence and
// rebuilds the cache, so readers always observe a sorted state.
type summary struct {
	means   []float64
	weights []float64
	bitree  *fenwick.List
}

func newSummary(initialCapacity int) *summary {
	s := &summary{
		means:   make([]float64, 0, initialCapacity),
		weights: make([]float64, 0, initialCapacity),
	}
	s.rebuildPrefixSums()
	return s
}

func (s *summary) Len() int {
	return len(s.means)
}

func (s *summary) Mean(uncheckedIndex int) float64 {
	return s.means[uncheckedIndex]
}

func (s *summary) Weight(uncheckedIndex int) float64 {
	return s.weights[uncheckedIndex]
}

// replace swaps in a freshly compressed centroid sequence. The caller
// guarantees buf is sorted by mean.
func (s *summary) replace(buf []centroid) {
	s.means = s.means[:0]
	s.weights = s.weights[:0]
	for _, c := range buf {
		s.means = append(s.means, c.mean)
		s.weights = append(s.weights, c.weight)
	}
	s.rebuildPrefixSums()
}

// Reinitialize the prefix sum cache. Wholesale rebuild is the right shape
// here: replace is the only mutation and it rewrites every weight anyway.
func (s *summary) rebuildPrefixSums() {
	s.bitree = fenwick.New(s.weights...)
}

// HeadSum returns the total weight of the centroids before index.
func (s *summary) HeadSum(index int) float64 {
	return s.bitree.Sum(index)
}

// Midpoint returns the cumulative weight position of the index-th
// centroid's mean: the weight before it plus half its own weight.
func (s *summary) Midpoint(index int) float64 {
	return s.HeadSum(index) + s.weights[index]/2
}

func (s *summary) TotalWeight() float64 {
	return s.bitree.Sum(s.Len())
}

// Iterate calls f for each centroid in mean order.
//
// Iteration stops early when f returns false.
func (s *summary) Iterate(f func(c centroid) bool) {
	for i := range s.means {
		if !f(centroid{mean: s.means[i], weight: s.weights[i]}) {
			break
		}
	}
}

// appendTo appends the centroid sequence onto dst, building a working
// buffer for the merging engine.
func (s *summary) appendTo(dst []centroid) []centroid {
	for i := range s.means {
		dst = append(dst, centroid{mean: s.means[i], weight: s.weights[i]})
	}
	return dst
}

func (s *summary) Clone() *summary {
	clone := &summary{
		means:   slices.Clone(s.means),
		weights: slices.Clone(s.weights),
	}
	clone.rebuildPrefixSums()
	return clone
}

// equals compares centroid sequences under strict IEEE equality. NaN
// never enters the store, so slice equality is well defined.
func (s *summary) equals(other *summary) bool {
	return slices.Equal(s.means, other.means) &&
		slices.Equal(s.weights, other.weights)
}
