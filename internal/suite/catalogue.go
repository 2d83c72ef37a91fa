package suite

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/copyleftdev/cocogo/internal/problem"
	"github.com/copyleftdev/cocogo/internal/problem/functions"
)

const (
	lowerBound = -5.0
	upperBound = 5.0
	maxShift   = 3.0
	maxOffset  = 1000.0
)

// catalogue is the full set of problems a suite name stands for.
type catalogue struct {
	name        string
	functions   []int
	dimensions  []int
	instances   []int
	years       map[int][]int
	knownOptima bool
	build       func(c *catalogue, function, dimension, instance int) (problem.Definition, error)
}

func rangeInts(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

var catalogues = map[string]*catalogue{
	"toy": {
		name:        "toy",
		functions:   rangeInts(1, 6),
		dimensions:  []int{2, 3, 5, 10, 20},
		instances:   []int{1},
		knownOptima: true,
		build:       buildToy,
	},
	"shifted": {
		name:        "shifted",
		functions:   rangeInts(1, 6),
		dimensions:  []int{2, 3, 5, 10, 20, 40},
		instances:   rangeInts(1, 15),
		years:       map[int][]int{2009: rangeInts(1, 5), 2010: rangeInts(1, 15)},
		knownOptima: true,
		build:       buildShifted,
	},
	"shifted-cons": {
		name:        "shifted-cons",
		functions:   rangeInts(1, 4),
		dimensions:  []int{2, 3, 5, 10, 20, 40},
		instances:   rangeInts(1, 15),
		years:       map[int][]int{2022: rangeInts(1, 15)},
		knownOptima: true,
		build:       buildConstrained,
	},
	"shifted-mixint": {
		name:        "shifted-mixint",
		functions:   rangeInts(1, 6),
		dimensions:  []int{2, 3, 5, 10, 20, 40},
		instances:   rangeInts(1, 15),
		years:       map[int][]int{2019: rangeInts(1, 15)},
		knownOptima: true,
		build:       buildMixedInteger,
	},
}

// Names returns the known suite names.
func Names() []string {
	return []string{"toy", "shifted", "shifted-cons", "shifted-mixint"}
}

func box(dim int) (lower, upper []float64) {
	lower = make([]float64, dim)
	upper = make([]float64, dim)
	for i := range lower {
		lower[i], upper[i] = lowerBound, upperBound
	}
	return lower, upper
}

func indexedID(suite string, function, instance, dimension int) string {
	return fmt.Sprintf("%s_f%03d_i%02d_d%02d", suite, function, instance, dimension)
}

func indexedName(suite string, function, instance, dimension int) string {
	return fmt.Sprintf("%s suite problem f%d instance %d in %dD", suite, function, instance, dimension)
}

func buildToy(c *catalogue, function, dimension, instance int) (problem.Definition, error) {
	f, ok := functions.ByIndex(function)
	if !ok {
		return problem.Definition{}, fmt.Errorf("no function %d", function)
	}
	xopt := make([]float64, dimension)
	f.Optimum(xopt)
	lower, upper := box(dimension)
	return problem.Definition{
		ID:            fmt.Sprintf("%s_d%02d", f.Name, dimension),
		Name:          f.Name,
		Dimension:     dimension,
		Objectives:    1,
		Lower:         lower,
		Upper:         upper,
		BestValue:     0,
		BestParameter: xopt,
		KnownOptimum:  c.knownOptima,
		Objective:     func(x, y []float64) { y[0] = f.Evaluate(x, xopt) },
		Suite:         c.name,
		Function:      function,
		Instance:      instance,
	}, nil
}

// instanceRand seeds the transformation of one instance. The seed does not
// depend on the dimension, so instances of different dimensions share their
// leading coordinates.
func instanceRand(function, instance int) *rand.Rand {
	return rand.New(rand.NewSource(int64(function + 10000*instance)))
}

// shiftedInstance draws the optimum and the value offset of an instance.
type shiftedInstance struct {
	raw   functions.Function
	xopt  []float64
	shift []float64
	fopt  float64
}

func drawShifted(rng *rand.Rand, f functions.Function, dimension int) *shiftedInstance {
	s := &shiftedInstance{
		raw:   f,
		xopt:  make([]float64, dimension),
		shift: make([]float64, dimension),
	}
	f.Optimum(s.xopt)
	for i := range s.xopt {
		u := rng.Float64()
		if f.Shiftable {
			s.shift[i] = maxShift * (2*u - 1)
			s.xopt[i] += s.shift[i]
		} else if u < 0.5 {
			s.xopt[i] = -s.xopt[i]
		}
	}
	s.fopt = math.Max(-maxOffset, math.Min(maxOffset, math.Round(100*rng.NormFloat64()*100)/100))
	return s
}

// roundIntegers moves the first n coordinates of the optimum onto integers.
func (s *shiftedInstance) roundIntegers(n int) {
	raw := make([]float64, len(s.xopt))
	s.raw.Optimum(raw)
	for i := 0; i < n; i++ {
		s.xopt[i] = math.Round(s.xopt[i])
		if s.raw.Shiftable {
			s.shift[i] = s.xopt[i] - raw[i]
		}
	}
}

func (s *shiftedInstance) evaluate(x []float64) float64 {
	if !s.raw.Shiftable {
		return s.raw.Evaluate(x, s.xopt) + s.fopt
	}
	z := make([]float64, len(x))
	for i := range x {
		z[i] = x[i] - s.shift[i]
	}
	return s.raw.Evaluate(z, nil) + s.fopt
}

func (s *shiftedInstance) definition(c *catalogue, function, dimension, instance int) problem.Definition {
	lower, upper := box(dimension)
	return problem.Definition{
		ID:            indexedID(c.name, function, instance, dimension),
		Name:          indexedName(c.name, function, instance, dimension),
		Dimension:     dimension,
		Objectives:    1,
		Lower:         lower,
		Upper:         upper,
		BestValue:     s.fopt,
		BestParameter: s.xopt,
		KnownOptimum:  c.knownOptima,
		Objective:     func(x, y []float64) { y[0] = s.evaluate(x) },
		Suite:         c.name,
		Function:      function,
		Instance:      instance,
	}
}

func buildShifted(c *catalogue, function, dimension, instance int) (problem.Definition, error) {
	f, ok := functions.ByIndex(function)
	if !ok {
		return problem.Definition{}, fmt.Errorf("no function %d", function)
	}
	s := drawShifted(instanceRand(function, instance), f, dimension)
	return s.definition(c, function, dimension, instance), nil
}

// buildConstrained maps functions 1-4 onto sphere and ellipsoid with one or
// two linear constraints active at the optimum.
func buildConstrained(c *catalogue, function, dimension, instance int) (problem.Definition, error) {
	if function < 1 || function > 4 {
		return problem.Definition{}, fmt.Errorf("no function %d", function)
	}
	f, _ := functions.ByIndex(1 + (function-1)/2)
	count := 1 + (function-1)%2

	rng := instanceRand(function, instance)
	s := drawShifted(rng, f, dimension)
	cons := functions.NewLinearConstraints(rng, count, s.xopt)

	def := s.definition(c, function, dimension, instance)
	def.Constraints = cons.Count()
	def.Constraint = cons.Evaluate
	def.InitialSolution = make([]float64, dimension)
	return def, nil
}

// buildMixedInteger declares the first half of the variables integer.
func buildMixedInteger(c *catalogue, function, dimension, instance int) (problem.Definition, error) {
	f, ok := functions.ByIndex(function)
	if !ok {
		return problem.Definition{}, fmt.Errorf("no function %d", function)
	}
	ints := dimension / 2
	s := drawShifted(instanceRand(function, instance), f, dimension)
	s.roundIntegers(ints)

	def := s.definition(c, function, dimension, instance)
	def.IntegerVariables = ints
	def.Objective = func(x, y []float64) {
		z := append([]float64(nil), x...)
		for i := 0; i < ints; i++ {
			z[i] = math.Round(z[i])
		}
		y[0] = s.evaluate(z)
	}
	return def, nil
}
