package store

import "math"

// Metric identifies a distance function over the embedding space.
type Metric string

const (
	// MetricEuclidean is the default metric. Face encodings from the
	// extraction server are compared with plain Euclidean distance.
	MetricEuclidean Metric = "euclidean"

	// MetricCosine measures angular distance, range [0, 2].
	MetricCosine Metric = "cosine"
)

// Valid reports whether m names a known metric.
func (m Metric) Valid() bool {
	return m == MetricEuclidean || m == MetricCosine
}

// Distance computes the distance between two vectors under the metric.
func (m Metric) Distance(a, b []float32) float64 {
	if m == MetricCosine {
		return CosineDistance(a, b)
	}
	return EuclideanDistance(a, b)
}

// EuclideanDistance computes the L2 distance between two vectors.
// Returns +Inf for mismatched or empty input.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CosineDistance computes the cosine distance between two vectors.
// Returns a value between 0 (identical) and 2 (opposite).
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0 // Maximum distance for invalid input
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0 // Maximum distance for zero vectors
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return 1 - similarity
}

// Similarity converts a distance to a similarity score in [0, 1].
// similarity = 1 - distance, clamped; monotonically decreasing in distance.
func Similarity(distance float64) float64 {
	s := 1 - distance
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
