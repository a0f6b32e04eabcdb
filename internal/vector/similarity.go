package vector

import "math"

// L2Distance returns the Euclidean distance between a and b. Vectors of
// different length have infinite distance.
func L2Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	return math.Sqrt(squaredL2(a, b))
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
