package tdigest

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	rng "github.com/leesper/go_rng"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	uniform := rng.NewUniformGenerator(0xD16E57)
	digest, err := New(MaxCentroids(50))
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		require.NoError(t, digest.Add(uniform.Float64Range(-10, 10)))
	}

	data, err := json.Marshal(digest)
	require.NoError(t, err)

	restored, err := FromJSON(data)
	require.NoError(t, err)

	assert.True(t, restored.Equals(digest),
		"round-tripped digest must have an identical centroid list and budget")
	assert.Equal(t, digest.Count(), restored.Count())
}

func TestJSONRoundTripEmpty(t *testing.T) {
	t.Parallel()

	digest, err := New()
	require.NoError(t, err)

	data, err := json.Marshal(digest)
	require.NoError(t, err)

	restored, err := FromJSON(data)
	require.NoError(t, err)
	assert.True(t, restored.Equals(digest))
	assert.Equal(t, 0.0, restored.Count())
}

func TestJSONSchema(t *testing.T) {
	t.Parallel()

	digest, err := FromValues([]float64{1, 2}, MaxCentroids(10))
	require.NoError(t, err)

	data, err := json.Marshal(digest)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, float64(10), doc["max_centroids"])

	centroids, ok := doc["centroids"].([]interface{})
	require.True(t, ok, "centroids must be a list")
	require.Len(t, centroids, 2)
	first, ok := centroids[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), first["m"])
	assert.Equal(t, float64(1), first["c"])

	// Unbounded digests publish an explicit null.
	unbounded, err := FromValues([]float64{1})
	require.NoError(t, err)
	data, err = json.Marshal(unbounded)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	v, present := doc["max_centroids"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestJSONAcceptsUnsortedInput(t *testing.T) {
	t.Parallel()

	restored, err := FromJSON([]byte(`{
		"max_centroids": 100,
		"centroids": [
			{"m": 5.0, "c": 2.0},
			{"m": 1.0, "c": 1.0},
			{"m": 3.0, "c": 4.0}
		]
	}`))
	require.NoError(t, err)

	means, weights := centroidsOf(restored)
	assert.Equal(t, []float64{1, 3, 5}, means)
	assert.Equal(t, []float64{1, 4, 2}, weights)

	// Aggregates are reconstructed from the centroid list.
	assert.Equal(t, 7.0, restored.Count())
	minV, err := restored.Min()
	require.NoError(t, err)
	assert.Equal(t, 1.0, minV)
	maxV, err := restored.Max()
	require.NoError(t, err)
	assert.Equal(t, 5.0, maxV)
	mean, err := restored.Mean()
	require.NoError(t, err)
	assert.InDelta(t, (1*1+3*4+5*2)/7.0, mean, 1e-12)
}

func TestJSONReconstructedMeanIsAnEstimate(t *testing.T) {
	t.Parallel()

	digest, err := FromValues(sequenceOf(0, 100), MaxCentroids(3))
	require.NoError(t, err)
	exact, err := digest.Mean()
	require.NoError(t, err)
	require.Equal(t, 50.0, exact)

	data, err := json.Marshal(digest)
	require.NoError(t, err)
	restored, err := FromJSON(data)
	require.NoError(t, err)

	estimated, err := restored.Mean()
	require.NoError(t, err)
	assert.InDelta(t, exact, estimated, 1e-9,
		"the weighted estimate coincides here because compression preserves weighted sums")
}

func TestJSONMalformed(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing centroids":     `{"max_centroids": 10}`,
		"negative weight":       `{"centroids": [{"m": 1, "c": -1}]}`,
		"zero weight":           `{"centroids": [{"m": 1, "c": 0}]}`,
		"zero budget":           `{"max_centroids": 0, "centroids": []}`,
		"negative budget":       `{"max_centroids": -3, "centroids": []}`,
		"not an object":         `[1, 2, 3]`,
		"truncated":             `{"centroids": [{"m": 1`,
		"non-numeric mean":      `{"centroids": [{"m": "x", "c": 1}]}`,
		"non-finite weight str": `{"centroids": [{"m": 1, "c": "Infinity"}]}`,
	}
	for name, payload := range cases {
		_, err := FromJSON([]byte(payload))
		assert.ErrorIs(t, err, ErrMalformed, "case %q", name)
	}
}

func TestJSONEnforcesStatedBudget(t *testing.T) {
	t.Parallel()

	// Foreign input claiming a budget smaller than its centroid list gets
	// compressed on reconstruction so the invariant holds.
	restored, err := FromJSON([]byte(`{
		"max_centroids": 3,
		"centroids": [
			{"m": 1, "c": 1}, {"m": 2, "c": 1}, {"m": 3, "c": 1},
			{"m": 4, "c": 1}, {"m": 5, "c": 1}, {"m": 6, "c": 1}
		]
	}`))
	require.NoError(t, err)
	assert.LessOrEqual(t, restored.Len(), 3)
	assert.Equal(t, 6.0, restored.Count())
}

func TestBinaryRoundTrip(t *testing.T) {
	t.Parallel()

	uniform := rng.NewUniformGenerator(0xB17E5)
	digest, err := New(MaxCentroids(30))
	require.NoError(t, err)
	var sum float64
	for i := 0; i < 500; i++ {
		v := uniform.Float64Range(0, 1e6)
		sum += v
		require.NoError(t, digest.Add(v))
	}

	raw, err := digest.AsBytes()
	require.NoError(t, err)

	restored, err := FromBytes(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.True(t, restored.Equals(digest))

	// The binary format carries the exact aggregates.
	wantMin, _ := digest.Min()
	gotMin, _ := restored.Min()
	assert.Equal(t, wantMin, gotMin)
	wantMax, _ := digest.Max()
	gotMax, _ := restored.Max()
	assert.Equal(t, wantMax, gotMax)
	wantMean, _ := digest.Mean()
	gotMean, _ := restored.Mean()
	assert.Equal(t, wantMean, gotMean, "binary round trip keeps Mean exact")
	assert.Equal(t, digest.Count(), restored.Count())
}

func TestBinaryRoundTripEmpty(t *testing.T) {
	t.Parallel()

	digest, err := New()
	require.NoError(t, err)

	raw, err := digest.AsBytes()
	require.NoError(t, err)
	restored, err := FromBytes(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.True(t, restored.Equals(digest))
	_, err = restored.Quantile(0.5)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestBinaryRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := FromBytes(bytes.NewReader([]byte{}))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = FromBytes(bytes.NewReader([]byte{0, 0, 0, 99}))
	assert.ErrorIs(t, err, ErrMalformed, "unknown version must be rejected")

	digest, err := FromValues([]float64{1, 2, 3})
	require.NoError(t, err)
	raw, err := digest.AsBytes()
	require.NoError(t, err)

	_, err = FromBytes(bytes.NewReader(raw[:len(raw)-5]))
	assert.ErrorIs(t, err, ErrMalformed, "truncated payload must be rejected")
}

func TestValidateCentroid(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validateCentroid(centroid{mean: 1, weight: 1}))
	assert.NoError(t, validateCentroid(centroid{mean: math.Inf(1), weight: 1}))
	assert.ErrorIs(t, validateCentroid(centroid{mean: math.NaN(), weight: 1}), ErrMalformed)
	assert.ErrorIs(t, validateCentroid(centroid{mean: 1, weight: 0}), ErrMalformed)
	assert.ErrorIs(t, validateCentroid(centroid{mean: 1, weight: -2}), ErrMalformed)
	assert.ErrorIs(t, validateCentroid(centroid{mean: 1, weight: math.Inf(1)}), ErrMalformed)
	assert.ErrorIs(t, validateCentroid(centroid{mean: 1, weight: math.NaN()}), ErrMalformed)
}
