// Package vecmath provides the small dense-vector helpers used by the
// attention matrix and the sampling statistics.
package vecmath

import "math"

// Dot returns the dot product of a and b, or 0 when lengths differ.
func Dot(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths, empty input and zero vectors yield 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	normA, normB := Dot(a, a), Dot(b, b)
	if normA == 0 || normB == 0 {
		return 0
	}
	return Dot(a, b) / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ScaleToMax returns a copy of vec divided by its largest absolute value.
// A zero vector is returned as zeros.
func ScaleToMax(vec []float64) []float64 {
	out := make([]float64, len(vec))
	var peak float64
	for _, v := range vec {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = v / peak
	}
	return out
}

// LeakyReLU returns x for positive x and slope*x otherwise.
func LeakyReLU(x, slope float64) float64 {
	if x > 0 {
		return x
	}
	return slope * x
}

// Softmax returns exp(x_i/temperature) normalised over the entries where
// mask is true. Masked-out entries are 0. A nil mask includes everything.
// Rows with no included entries come back as all zeros.
func Softmax(xs []float64, temperature float64, mask []bool) []float64 {
	out := make([]float64, len(xs))
	if temperature <= 0 {
		temperature = 1
	}
	peak := math.Inf(-1)
	for i, x := range xs {
		if mask != nil && !mask[i] {
			continue
		}
		if x/temperature > peak {
			peak = x / temperature
		}
	}
	if math.IsInf(peak, -1) {
		return out
	}
	var sum float64
	for i, x := range xs {
		if mask != nil && !mask[i] {
			continue
		}
		out[i] = math.Exp(x/temperature - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Finite returns x, or 0 when x is NaN or infinite.
func Finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

// Sum returns the sum of vec.
func Sum(vec []float64) float64 {
	var s float64
	for _, v := range vec {
		s += v
	}
	return s
}

// MeanVariance returns the mean and population variance of xs.
func MeanVariance(xs []float64) (mean, variance float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	mean = Sum(xs) / float64(len(xs))
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return mean, variance
}
