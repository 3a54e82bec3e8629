package gesture

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// EuclideanStep returns how far sample lies outside the tolerance sphere
// around waypoint, or 0 when it is inside.
func EuclideanStep(sample, waypoint r3.Vec, tolerance float64) float64 {
	d := r3.Norm(r3.Sub(sample, waypoint)) - tolerance
	if d < 0 {
		return 0
	}
	return d
}

// DTWCost calculates the Dynamic Time Warping alignment cost between two
// paths. Border cells accumulate along their single valid predecessor.
// The cost is not normalized. Returns infinity if either path is empty.
func DTWCost(a, b []r3.Vec) float64 {
	m := len(a)
	n := len(b)
	if m == 0 || n == 0 {
		return math.Inf(1)
	}

	cost := make([]float64, m*n)
	at := func(i, j int) float64 { return cost[i*n+j] }

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			d := r3.Norm(r3.Sub(a[i], b[j]))
			switch {
			case i == 0 && j == 0:
				cost[0] = d
			case i == 0:
				cost[j] = d + at(0, j-1)
			case j == 0:
				cost[i*n] = d + at(i-1, 0)
			default:
				cost[i*n+j] = d + min3(at(i-1, j), at(i, j-1), at(i-1, j-1))
			}
		}
	}

	return cost[m*n-1]
}

// min3 returns the minimum of three float64 values.
func min3(a, b, c float64) float64 {
	if a <= b && a <= c {
		return a
	}
	if b <= c {
		return b
	}
	return c
}
