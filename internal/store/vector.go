package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

// CosineSimilarity computes the cosine similarity between two vectors,
// clamped to [-1, 1] against floating point drift. Mismatched lengths or
// zero vectors yield -1, the worst possible score.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return -1
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return similarity
}

// CosineDistance is 1 - CosineSimilarity, ranging from 0 (identical) to 2.
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}

// L2Normalize returns a copy of v scaled to unit length. A zero vector
// comes back as a zero copy rather than NaN.
func L2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}

	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// MeanEmbedding L2-normalizes every sample, averages them elementwise and
// re-normalizes the mean. All samples must share the same length.
func MeanEmbedding(samples [][]float32) ([]float32, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to average")
	}

	dim := len(samples[0])
	acc := make([]float64, dim)
	for _, s := range samples {
		if len(s) != dim {
			return nil, fmt.Errorf("%w: sample has %d values, want %d", ErrDimensionMismatch, len(s), dim)
		}
		for i, x := range L2Normalize(s) {
			acc[i] += float64(x)
		}
	}

	mean := make([]float32, dim)
	for i, x := range acc {
		mean[i] = float32(x / float64(len(samples)))
	}
	return L2Normalize(mean), nil
}

// EncodeEmbedding serializes a vector as little endian float32 bytes for
// backends without a native vector column.
func EncodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// DecodeEmbedding parses little endian float32 bytes. When dim > 0 the
// decoded length must match it exactly.
func DecodeEmbedding(data []byte, dim int) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding blob of %d bytes is not a float32 sequence", len(data))
	}

	n := len(data) / 4
	if dim > 0 && n != dim {
		return nil, fmt.Errorf("%w: blob holds %d values, want %d", ErrDimensionMismatch, n, dim)
	}

	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}
