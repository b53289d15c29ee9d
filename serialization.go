package tdigest

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

const encodingVersion int32 = 1

// Deserialization refuses centroid counts beyond this, so a corrupt
// length prefix cannot trigger a huge allocation.
const maxSerializedCentroids = 1 << 22

var endianess = binary.BigEndian

type jsonCentroid struct {
	Mean   float64 `json:"m"`
	Weight float64 `json:"c"`
}

type jsonDigest struct {
	MaxCentroids *uint32        `json:"max_centroids"`
	Centroids    []jsonCentroid `json:"centroids"`
}

// MarshalJSON serializes the digest as its centroid list:
//
//	{"max_centroids": 100, "centroids": [{"m": 0.5, "c": 2}, ...]}
//
// max_centroids is null for unbounded digests. The format retains no raw
// samples; see UnmarshalJSON for what survives the round trip.
func (t *TDigest) MarshalJSON() ([]byte, error) {
	doc := jsonDigest{
		Centroids: make([]jsonCentroid, 0, t.Len()),
	}
	if t.maxCentroids != 0 {
		n := t.maxCentroids
		doc.MaxCentroids = &n
	}
	t.summary.Iterate(func(c centroid) bool {
		doc.Centroids = append(doc.Centroids, jsonCentroid{Mean: c.mean, Weight: c.weight})
		return true
	})
	return json.Marshal(doc)
}

// UnmarshalJSON reconstructs a digest from its serialized centroid list.
// The input list need not be sorted. A missing centroids key, a NaN
// mean or a non-positive or non-finite weight yields ErrMalformed. Missing or null max_centroids means unbounded.
//
// Raw samples are not retained by the format, so the rebuilt aggregates
// are the best reconstruction the centroid list allows: min and max
// become the extreme centroid means and Mean degrades to the
// centroid-weighted estimate unless every centroid is a singleton.
func (t *TDigest) UnmarshalJSON(data []byte) error {
	var doc struct {
		MaxCentroids *uint32         `json:"max_centroids"`
		Centroids    *[]jsonCentroid `json:"centroids"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Centroids == nil {
		return fmt.Errorf("%w: missing centroids key", ErrMalformed)
	}

	buf := make([]centroid, 0, len(*doc.Centroids))
	for _, c := range *doc.Centroids {
		cc := centroid{mean: c.Mean, weight: c.Weight}
		if err := validateCentroid(cc); err != nil {
			return err
		}
		buf = append(buf, cc)
	}

	var budget uint32
	if doc.MaxCentroids != nil {
		if *doc.MaxCentroids < 1 {
			return fmt.Errorf("%w: max_centroids must be positive or null", ErrMalformed)
		}
		budget = *doc.MaxCentroids
	}

	slices.SortStableFunc(buf, centroidCompare)

	var sum, total float64
	for _, c := range buf {
		sum += c.mean * c.weight
		total += c.weight
	}

	t.maxCentroids = budget
	t.count = total
	t.sum = sum
	t.min = math.Inf(1)
	t.max = math.Inf(-1)
	if len(buf) > 0 {
		t.min = buf[0].mean
		t.max = buf[len(buf)-1].mean
	}
	t.summary = newSummary(len(buf))
	t.summary.replace(buf)

	// Foreign input may carry more centroids than its own stated budget.
	if t.maxCentroids != 0 && t.summary.Len() > int(t.maxCentroids) {
		t.runMerge(t.summary.appendTo(nil))
	}
	return nil
}

// FromJSON deserializes a digest previously produced by MarshalJSON (or
// any other writer of the same centroid-list format).
func FromJSON(data []byte) (*TDigest, error) {
	t := new(TDigest)
	if err := t.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return t, nil
}

// AsBytes serializes the digest into a byte array so it can be saved to
// disk or sent over the wire.
//
// Unlike the JSON form, the binary format carries the exact running
// aggregates, so Min, Max and Mean survive the round trip exactly.
func (t *TDigest) AsBytes() ([]byte, error) {
	buffer := new(bytes.Buffer)

	for _, v := range []interface{}{
		encodingVersion,
		t.maxCentroids,
		t.count,
		t.sum,
		t.min,
		t.max,
		int32(t.Len()),
	} {
		if err := binary.Write(buffer, endianess, v); err != nil {
			return nil, err
		}
	}

	var err error
	t.summary.Iterate(func(c centroid) bool {
		if err = binary.Write(buffer, endianess, c.mean); err != nil {
			return false
		}
		err = binary.Write(buffer, endianess, c.weight)
		return err == nil
	})
	if err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

// FromBytes reads a byte buffer with a serialized digest (from AsBytes)
// and deserializes it.
func FromBytes(buf *bytes.Reader) (*TDigest, error) {
	var version int32
	if err := binary.Read(buf, endianess, &version); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if version != encodingVersion {
		return nil, fmt.Errorf("%w: unsupported encoding version %d", ErrMalformed, version)
	}

	t := new(TDigest)
	var numCentroids int32
	for _, v := range []interface{}{
		&t.maxCentroids,
		&t.count,
		&t.sum,
		&t.min,
		&t.max,
		&numCentroids,
	} {
		if err := binary.Read(buf, endianess, v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	if numCentroids < 0 || numCentroids > maxSerializedCentroids {
		return nil, fmt.Errorf("%w: bad number of centroids %d", ErrMalformed, numCentroids)
	}

	centroids := make([]centroid, 0, numCentroids)
	for i := int32(0); i < numCentroids; i++ {
		var c centroid
		if err := binary.Read(buf, endianess, &c.mean); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if err := binary.Read(buf, endianess, &c.weight); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if err := validateCentroid(c); err != nil {
			return nil, err
		}
		centroids = append(centroids, c)
	}

	slices.SortStableFunc(centroids, centroidCompare)
	t.summary = newSummary(len(centroids))
	t.summary.replace(centroids)
	if t.maxCentroids != 0 && t.summary.Len() > int(t.maxCentroids) {
		t.runMerge(t.summary.appendTo(nil))
	}
	return t, nil
}

func validateCentroid(c centroid) error {
	if math.IsNaN(c.mean) {
		return fmt.Errorf("%w: centroid mean must not be NaN", ErrMalformed)
	}
	if math.IsNaN(c.weight) || math.IsInf(c.weight, 0) || c.weight <= 0 {
		return fmt.Errorf("%w: centroid weight %v must be positive and finite", ErrMalformed, c.weight)
	}
	return nil
}
