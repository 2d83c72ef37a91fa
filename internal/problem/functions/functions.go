// Package functions holds the raw benchmark functions behind the suites.
//
// Every function is written in its untransformed form with the optimum at a
// fixed point (see Function.Optimum); suites add shifts, offsets and
// constraints on top.
package functions

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ConditionNumber of the ellipsoid.
const ConditionNumber = 1e6

// SlopeOptimum is the absolute coordinate of the linear slope optimum.
const SlopeOptimum = 5.0

// Function is one entry of the catalogue.
type Function struct {
	// Index is the 1-based function number used in problem ids.
	Index int
	// Name is used in ids of simple suites.
	Name string
	// Evaluate computes the raw value. slope is only read by the linear
	// slope and may be nil for every other function.
	Evaluate func(x, slope []float64) float64
	// Optimum fills xopt with the raw optimum.
	Optimum func(xopt []float64)
	// Shiftable is false for functions whose optimum sits on the boundary.
	Shiftable bool
}

// Catalogue returns the functions in suite order.
func Catalogue() []Function {
	return []Function{
		{Index: 1, Name: "sphere", Evaluate: func(x, _ []float64) float64 { return Sphere(x) }, Optimum: zero, Shiftable: true},
		{Index: 2, Name: "ellipsoid", Evaluate: func(x, _ []float64) float64 { return Ellipsoid(x) }, Optimum: zero, Shiftable: true},
		{Index: 3, Name: "rastrigin", Evaluate: func(x, _ []float64) float64 { return Rastrigin(x) }, Optimum: zero, Shiftable: true},
		{Index: 4, Name: "bueche_rastrigin", Evaluate: func(x, _ []float64) float64 { return BuecheRastrigin(x) }, Optimum: zero, Shiftable: true},
		{Index: 5, Name: "linear_slope", Evaluate: LinearSlope, Optimum: func(xopt []float64) {
			for i := range xopt {
				xopt[i] = SlopeOptimum
			}
		}},
		{Index: 6, Name: "rosenbrock", Evaluate: func(x, _ []float64) float64 { return Rosenbrock(x) }, Optimum: func(xopt []float64) {
			for i := range xopt {
				xopt[i] = 1
			}
		}, Shiftable: true},
	}
}

func zero(xopt []float64) {
	for i := range xopt {
		xopt[i] = 0
	}
}

// Sphere is sum x_i^2.
func Sphere(x []float64) float64 {
	return floats.Dot(x, x)
}

// Ellipsoid is sum 10^(6 i/(n-1)) x_i^2.
func Ellipsoid(x []float64) float64 {
	n := len(x)
	if n == 1 {
		return x[0] * x[0]
	}
	var sum float64
	for i, v := range x {
		sum += math.Pow(ConditionNumber, float64(i)/float64(n-1)) * v * v
	}
	return sum
}

// Rastrigin is 10 (n - sum cos(2 pi x_i)) + sum x_i^2.
func Rastrigin(x []float64) float64 {
	var sum1 float64
	for _, v := range x {
		sum1 += math.Cos(2 * math.Pi * v)
	}
	return 10*(float64(len(x))-sum1) + floats.Dot(x, x)
}

// BuecheRastrigin is Rastrigin with the odd coordinates of positive sign
// scaled up, which breaks the symmetry around the optimum.
func BuecheRastrigin(x []float64) float64 {
	z := make([]float64, len(x))
	n := len(x)
	for i, v := range x {
		s := 1.0
		if n > 1 {
			s = math.Pow(10, 0.5*float64(i)/float64(n-1))
		}
		if i%2 == 0 && v > 0 {
			s *= 10
		}
		z[i] = s * v
	}
	return Rastrigin(z)
}

// LinearSlope is zero at slope and grows linearly away from it inside the
// box; coordinates beyond the optimum are clamped onto it.
func LinearSlope(x, slope []float64) float64 {
	n := len(x)
	var sum float64
	for i, v := range x {
		base := 1.0
		if n > 1 {
			base = math.Pow(10, float64(i)/float64(n-1))
		}
		s := base
		if slope[i] < 0 {
			s = -base
		}
		if v*slope[i] < SlopeOptimum*SlopeOptimum {
			sum += SlopeOptimum*math.Abs(s) - s*v
		} else {
			sum += SlopeOptimum*math.Abs(s) - s*slope[i]
		}
	}
	return sum
}

// Rosenbrock is sum 100 (x_i^2 - x_{i+1})^2 + (x_i - 1)^2.
func Rosenbrock(x []float64) float64 {
	var sum float64
	for i := 0; i < len(x)-1; i++ {
		a := x[i]*x[i] - x[i+1]
		b := x[i] - 1
		sum += 100*a*a + b*b
	}
	return sum
}

// ByIndex returns the catalogue entry with the 1-based index.
func ByIndex(index int) (Function, bool) {
	for _, f := range Catalogue() {
		if f.Index == index {
			return f, true
		}
	}
	return Function{}, false
}
