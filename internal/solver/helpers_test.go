package solver

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/cocogo/internal/problem"
	"github.com/copyleftdev/cocogo/internal/problem/functions"
)

// sphereProblem returns a sphere in [-5, 5]^dim with optimum 0 at
// (center, ..., center). The initial solution is the origin.
func sphereProblem(t *testing.T, dim int, center float64) *problem.Problem {
	t.Helper()
	lower, upper := make([]float64, dim), make([]float64, dim)
	for i := range lower {
		lower[i], upper[i] = -5, 5
	}
	p, err := problem.New(problem.Definition{
		ID:           "sphere_test",
		Dimension:    dim,
		Objectives:   1,
		Lower:        lower,
		Upper:        upper,
		KnownOptimum: true,
		Objective: func(x, y []float64) {
			z := make([]float64, len(x))
			for i := range x {
				z[i] = x[i] - center
			}
			y[0] = functions.Sphere(z)
		},
	})
	require.NoError(t, err)
	return p
}

// constrainedProblem returns a sphere shifted to (1, ..., 1) with the
// constraint sum(x) <= 0, so the constrained optimum lies on the boundary.
func constrainedProblem(t *testing.T, dim int) *problem.Problem {
	t.Helper()
	lower, upper := make([]float64, dim), make([]float64, dim)
	for i := range lower {
		lower[i], upper[i] = -5, 5
	}
	p, err := problem.New(problem.Definition{
		ID:           "constrained_test",
		Dimension:    dim,
		Objectives:   1,
		Constraints:  1,
		Lower:        lower,
		Upper:        upper,
		KnownOptimum: false,
		Objective: func(x, y []float64) {
			y[0] = 0
			for _, v := range x {
				y[0] += (v - 1) * (v - 1)
			}
		},
		Constraint: func(x, g []float64) {
			g[0] = 0
			for _, v := range x {
				g[0] += v
			}
		},
	})
	require.NoError(t, err)
	return p
}

// assertFloat64SlicesEqual checks if two float64 slices are approximately equal
func assertFloat64SlicesEqual(t *testing.T, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}
