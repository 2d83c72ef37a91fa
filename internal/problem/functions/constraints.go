package functions

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LinearConstraints evaluates g(x) = A (x - xopt). Every row is active at
// xopt and the origin is feasible, so the origin can serve as the initial
// solution.
type LinearConstraints struct {
	a    *mat.Dense
	xopt *mat.VecDense
}

// NewLinearConstraints draws count normalized rows from rng. Rows are
// oriented so that a.(0 - xopt) <= 0.
func NewLinearConstraints(rng *rand.Rand, count int, xopt []float64) *LinearConstraints {
	n := len(xopt)
	a := mat.NewDense(count, n, nil)
	row := make([]float64, n)
	for i := 0; i < count; i++ {
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		if norm := floats.Norm(row, 2); norm > 0 {
			floats.Scale(1/norm, row)
		}
		if floats.Dot(row, xopt) < 0 {
			floats.Scale(-1, row)
		}
		a.SetRow(i, row)
	}
	return &LinearConstraints{
		a:    a,
		xopt: mat.NewVecDense(n, append([]float64(nil), xopt...)),
	}
}

// Count returns the number of constraints.
func (c *LinearConstraints) Count() int {
	r, _ := c.a.Dims()
	return r
}

// Evaluate writes the constraint values for x into y.
func (c *LinearConstraints) Evaluate(x, y []float64) {
	d := mat.NewVecDense(len(x), append([]float64(nil), x...))
	d.SubVec(d, c.xopt)
	out := mat.NewVecDense(len(y), y)
	out.MulVec(c.a, d)
}

// Penalty is the sum of the positive constraint values.
func Penalty(g []float64) float64 {
	var sum float64
	for _, v := range g {
		if v > 0 || math.IsNaN(v) {
			sum += v
		}
	}
	return sum
}
