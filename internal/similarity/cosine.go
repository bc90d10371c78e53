package similarity

import "math"

// cosine returns the cosine similarity of a and b, and false when either
// vector has zero norm.
func cosine(a, b []float64) (float64, bool) {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

// meanInto divides every element of sum by n in place.
func meanInto(sum []float64, n int) {
	for i := range sum {
		sum[i] /= float64(n)
	}
}

// addInto adds src to dst element-wise.
func addInto(dst, src []float64) {
	for i, v := range src {
		dst[i] += v
	}
}
