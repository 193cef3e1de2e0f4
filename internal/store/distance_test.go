package store

import (
	"math"
	"testing"
)

func TestEuclideanDistance(t *testing.T) {
	t.Run("identical vectors", func(t *testing.T) {
		a := []float32{0.1, 0.2, 0.3}
		if d := EuclideanDistance(a, a); d != 0 {
			t.Errorf("expected 0, got %f", d)
		}
	})

	t.Run("known distance", func(t *testing.T) {
		a := []float32{0, 0}
		b := []float32{3, 4}
		if d := EuclideanDistance(a, b); math.Abs(d-5) > 1e-9 {
			t.Errorf("expected 5, got %f", d)
		}
	})

	t.Run("mismatched lengths", func(t *testing.T) {
		if d := EuclideanDistance([]float32{1}, []float32{1, 2}); !math.IsInf(d, 1) {
			t.Errorf("expected +Inf, got %f", d)
		}
	})

	t.Run("empty vectors", func(t *testing.T) {
		if d := EuclideanDistance(nil, nil); !math.IsInf(d, 1) {
			t.Errorf("expected +Inf, got %f", d)
		}
	})
}

func TestCosineDistance(t *testing.T) {
	t.Run("identical vectors", func(t *testing.T) {
		a := []float32{0.5, 0.5, 0.5}
		if d := CosineDistance(a, a); math.Abs(d) > 1e-9 {
			t.Errorf("expected 0, got %f", d)
		}
	})

	t.Run("opposite vectors", func(t *testing.T) {
		a := []float32{1, 0}
		b := []float32{-1, 0}
		if d := CosineDistance(a, b); math.Abs(d-2) > 1e-9 {
			t.Errorf("expected 2, got %f", d)
		}
	})

	t.Run("orthogonal vectors", func(t *testing.T) {
		a := []float32{1, 0}
		b := []float32{0, 1}
		if d := CosineDistance(a, b); math.Abs(d-1) > 1e-9 {
			t.Errorf("expected 1, got %f", d)
		}
	})

	t.Run("zero vector", func(t *testing.T) {
		if d := CosineDistance([]float32{0, 0}, []float32{1, 1}); d != 2 {
			t.Errorf("expected max distance 2, got %f", d)
		}
	})
}

func TestMetricDistance(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	if d := MetricEuclidean.Distance(a, b); math.Abs(d-math.Sqrt2) > 1e-9 {
		t.Errorf("euclidean: expected sqrt(2), got %f", d)
	}
	if d := MetricCosine.Distance(a, b); math.Abs(d-1) > 1e-9 {
		t.Errorf("cosine: expected 1, got %f", d)
	}
}

func TestMetricValid(t *testing.T) {
	if !MetricEuclidean.Valid() || !MetricCosine.Valid() {
		t.Error("known metrics should be valid")
	}
	if Metric("manhattan").Valid() {
		t.Error("unknown metric should be invalid")
	}
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		distance float64
		want     float64
	}{
		{0, 1},
		{0.3, 0.7},
		{1, 0},
		{1.5, 0},  // clamped at 0
		{-0.1, 1}, // clamped at 1
	}

	for _, tc := range cases {
		if got := Similarity(tc.distance); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Similarity(%f) = %f, want %f", tc.distance, got, tc.want)
		}
	}
}

func TestSimilarityMonotonic(t *testing.T) {
	prev := 2.0
	for d := 0.0; d <= 2.0; d += 0.05 {
		s := Similarity(d)
		if s > prev {
			t.Fatalf("similarity increased with distance at %f", d)
		}
		prev = s
	}
}
