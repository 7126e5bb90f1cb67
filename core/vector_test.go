package core

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float32
	}{
		{
			name: "identical vectors",
			a:    []float32{1, 2, 3},
			b:    []float32{1, 2, 3},
			want: 1,
		},
		{
			name: "orthogonal vectors",
			a:    []float32{1, 0},
			b:    []float32{0, 1},
			want: 0,
		},
		{
			name: "opposite vectors",
			a:    []float32{1, 0},
			b:    []float32{-1, 0},
			want: -1,
		},
		{
			name: "zero vector",
			a:    []float32{0, 0},
			b:    []float32{1, 2},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosine_Symmetric(t *testing.T) {
	a := []float32{0.3, 0.5, 0.9, 0.1}
	b := []float32{0.8, 0.2, 0.4, 0.7}

	if Cosine(a, b) != Cosine(b, a) {
		t.Error("Cosine() is not symmetric")
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})

	var mag float64
	for _, val := range v {
		mag += float64(val) * float64(val)
	}
	if math.Abs(math.Sqrt(mag)-1) > 1e-6 {
		t.Errorf("Normalize() produced magnitude %v, want 1", math.Sqrt(mag))
	}
}

func TestNormalize_ZeroVector(t *testing.T) {
	v := Normalize([]float32{0, 0, 0})
	for _, val := range v {
		if val != 0 {
			t.Error("Normalize() of zero vector should remain zero")
		}
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	v := []float32{3, 4}
	_ = Normalize(v)
	if v[0] != 3 || v[1] != 4 {
		t.Errorf("Normalize() mutated its input: %v", v)
	}
}
