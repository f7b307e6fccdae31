package embedding

import "math"

// Normalize returns a unit-length copy of v. ok is false when v has no
// usable norm (all zeros, NaN or Inf); the copy is then returned unscaled.
func Normalize(v []float32) (out []float32, ok bool) {
	out = make([]float32, len(v))
	copy(out, v)

	var sum float64
	for _, x := range out {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return out, false
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range out {
		out[i] *= inv
	}
	return out, true
}

// Dot is the inner product; on normalized vectors it equals cosine similarity.
func Dot(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
