package geometry

import (
	"math"
	"sync"
)

var gaussianCache sync.Map // int -> []float64

// GaussianLatitudes returns the 2n latitudes, in degrees from north to south,
// of the Gaussian grid with n latitudes between a pole and the equator. They
// are the arcsines of the roots of the Legendre polynomial of degree 2n.
// The result must not be modified.
func GaussianLatitudes(n int) []float64 {
	if v, ok := gaussianCache.Load(n); ok {
		return v.([]float64)
	}
	deg := 2 * n
	lats := make([]float64, deg)
	for k := 0; k < n; k++ {
		// Tricomi's approximation of the k-th root, refined by Newton's method.
		x := math.Cos(math.Pi * (float64(k) + 0.75) / (float64(deg) + 0.5))
		for iter := 0; iter < 100; iter++ {
			p, dp := legendre(deg, x)
			dx := p / dp
			x -= dx
			if math.Abs(dx) < 1e-15 {
				break
			}
		}
		lat := math.Asin(x) * 180 / math.Pi
		lats[k] = lat
		lats[deg-1-k] = -lat
	}
	v, _ := gaussianCache.LoadOrStore(n, lats)
	return v.([]float64)
}

// legendre evaluates the Legendre polynomial of degree n and its derivative
// at x by the three-term recurrence.
func legendre(n int, x float64) (p, dp float64) {
	p0, p1 := 1.0, x
	for k := 2; k <= n; k++ {
		p0, p1 = p1, ((2*float64(k)-1)*x*p1-(float64(k)-1)*p0)/float64(k)
	}
	dp = float64(n) * (x*p1 - p0) / (x*x - 1)
	return p1, dp
}
