// Package suite enumerates benchmark problems by function, dimension and
// instance and builds them on demand.
//
// Problems iterate with the dimension outermost, then the function, then the
// instance. A Suite hands out problems it does not own: every problem must be
// closed before the suite is.
package suite

import (
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/copyleftdev/cocogo/internal/errors"
	"github.com/copyleftdev/cocogo/internal/options"
	"github.com/copyleftdev/cocogo/internal/problem"
)

// ErrExhausted is returned by NextProblem once every problem was visited.
var ErrExhausted = errors.New("suite exhausted").WithComponent("suite")

// Option configures a Suite.
type Option func(*Suite)

// WithLogger sets the logger; the default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Suite) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Suite is a filtered view of a catalogue with an iteration cursor.
type Suite struct {
	cat        *catalogue
	functions  []int
	dimensions []int
	instances  []int

	next   int
	live   atomic.Int64
	closed bool
	logger *zap.Logger
}

// New builds the suite called name. instance selects instances ("instances:
// 1-5" or "year: 2009"), filters narrows the catalogue ("dimensions: 2,5",
// "dimension_indices: 1-2", "function_indices: 1-3", "instance_indices: 1").
func New(name, instance, filters string, opts ...Option) (*Suite, error) {
	cat, ok := catalogues[name]
	if !ok {
		return nil, errors.Configuration("unknown suite %q (known: %s)", name, strings.Join(Names(), ", ")).
			WithComponent("suite").WithOperation("new")
	}

	s := &Suite{cat: cat, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}

	instances, err := parseInstances(cat, instance)
	if err != nil {
		return nil, errors.Wrapf(err, "suite %s", name).WithKind(errors.KindConfiguration)
	}
	if err := s.applyFilters(filters, instances); err != nil {
		return nil, errors.Wrapf(err, "suite %s", name).WithKind(errors.KindConfiguration)
	}
	if s.NumberOfProblems() == 0 {
		return nil, errors.Configuration("suite %s: options %q select no problems", name, filters)
	}

	s.logger.Debug("suite created",
		zap.String("suite", name),
		zap.Ints("functions", s.functions),
		zap.Ints("dimensions", s.dimensions),
		zap.Ints("instances", s.instances))
	return s, nil
}

func parseInstances(cat *catalogue, spec string) ([]int, error) {
	set, err := options.Parse(spec)
	if err != nil {
		return nil, err
	}
	if set.Has("instances") {
		list, err := options.ParseRanges(set.String("instances", ""), 1, cat.instances[len(cat.instances)-1])
		if err != nil {
			return nil, errors.Wrap(err, "instances")
		}
		for _, i := range list {
			if !contains(cat.instances, i) {
				return nil, errors.Configuration("instance %d is not part of the suite", i)
			}
		}
		return list, nil
	}
	if set.Has("year") {
		year, err := set.Int("year", 0)
		if err != nil {
			return nil, err
		}
		list, ok := cat.years[year]
		if !ok {
			return nil, errors.Configuration("no instances defined for year %d", year)
		}
		return append([]int(nil), list...), nil
	}
	return append([]int(nil), cat.instances...), nil
}

func (s *Suite) applyFilters(filters string, instances []int) error {
	set, err := options.Parse(filters)
	if err != nil {
		return err
	}

	s.dimensions = append([]int(nil), s.cat.dimensions...)
	if set.Has("dimensions") {
		dims, err := set.Ints("dimensions", nil)
		if err != nil {
			return err
		}
		var kept []int
		for _, d := range dims {
			if !contains(s.cat.dimensions, d) {
				return errors.Configuration("dimension %d is not part of the suite", d)
			}
			if !contains(kept, d) {
				kept = append(kept, d)
			}
		}
		sort.Ints(kept)
		s.dimensions = kept
	} else if set.Has("dimension_indices") {
		idx, err := set.Ranges("dimension_indices", 1, len(s.cat.dimensions))
		if err != nil {
			return err
		}
		s.dimensions = pick(s.cat.dimensions, idx)
	}

	s.functions = append([]int(nil), s.cat.functions...)
	if set.Has("function_indices") {
		idx, err := set.Ranges("function_indices", 1, len(s.cat.functions))
		if err != nil {
			return err
		}
		s.functions = pick(s.cat.functions, idx)
	}

	s.instances = instances
	if set.Has("instance_indices") {
		idx, err := set.Ranges("instance_indices", 1, len(instances))
		if err != nil {
			return err
		}
		s.instances = pick(instances, idx)
	}

	if unknown := set.Unknown("dimensions", "dimension_indices", "function_indices", "instance_indices"); len(unknown) > 0 {
		s.logger.Debug("ignoring unknown suite options", zap.Strings("keys", unknown))
	}
	return nil
}

// pick selects 1-based positions from values.
func pick(values, positions []int) []int {
	out := make([]int, 0, len(positions))
	for _, p := range positions {
		out = append(out, values[p-1])
	}
	return out
}

func contains(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// Name returns the suite name.
func (s *Suite) Name() string { return s.cat.name }

// Functions returns the selected function numbers.
func (s *Suite) Functions() []int { return append([]int(nil), s.functions...) }

// Dimensions returns the selected dimensions.
func (s *Suite) Dimensions() []int { return append([]int(nil), s.dimensions...) }

// Instances returns the selected instance numbers.
func (s *Suite) Instances() []int { return append([]int(nil), s.instances...) }

// KnownOptima reports whether the optimal values of the problems are known.
func (s *Suite) KnownOptima() bool { return s.cat.knownOptima }

// NumberOfProblems returns the size of the selection.
func (s *Suite) NumberOfProblems() int {
	return len(s.functions) * len(s.dimensions) * len(s.instances)
}

// LiveProblems returns the number of problems handed out and not yet closed.
func (s *Suite) LiveProblems() int64 {
	return s.live.Load()
}

// EncodeProblemIndex maps 0-based function, dimension and instance indices
// onto the iteration position.
func (s *Suite) EncodeProblemIndex(functionIdx, dimensionIdx, instanceIdx int) int {
	return instanceIdx + len(s.instances)*(functionIdx+len(s.functions)*dimensionIdx)
}

// DecodeProblemIndex is the inverse of EncodeProblemIndex.
func (s *Suite) DecodeProblemIndex(index int) (functionIdx, dimensionIdx, instanceIdx int) {
	instanceIdx = index % len(s.instances)
	index /= len(s.instances)
	functionIdx = index % len(s.functions)
	dimensionIdx = index / len(s.functions)
	return functionIdx, dimensionIdx, instanceIdx
}

func (s *Suite) checkOpen(op string) {
	if s.closed {
		panic(errors.Precondition("%s on released suite %s", op, s.cat.name).WithComponent("suite").WithOperation(op))
	}
}

// NextProblem returns the next problem, attached to obs when obs is not nil,
// and advances the cursor. A problem that cannot be built or attached leaves
// the cursor where it is, so the same problem is offered again. Once the
// selection is exhausted it returns ErrExhausted on every call.
func (s *Suite) NextProblem(obs problem.Attacher) (*problem.Problem, error) {
	s.checkOpen("next_problem")
	if s.next >= s.NumberOfProblems() {
		return nil, ErrExhausted
	}
	p, err := s.Problem(s.next, obs)
	if err != nil {
		return nil, err
	}
	s.next++
	return p, nil
}

// Problem builds the problem at the given iteration position without moving
// the cursor.
func (s *Suite) Problem(index int, obs problem.Attacher) (*problem.Problem, error) {
	s.checkOpen("problem")
	if index < 0 || index >= s.NumberOfProblems() {
		return nil, errors.NotFound("suite %s has no problem %d", s.cat.name, index)
	}
	f, d, i := s.DecodeProblemIndex(index)
	return s.ProblemFromIndices(f, d, i, obs)
}

// ProblemFromIndices builds a problem from 0-based indices into the
// selection.
func (s *Suite) ProblemFromIndices(functionIdx, dimensionIdx, instanceIdx int, obs problem.Attacher) (*problem.Problem, error) {
	s.checkOpen("problem_from_indices")
	if functionIdx < 0 || functionIdx >= len(s.functions) ||
		dimensionIdx < 0 || dimensionIdx >= len(s.dimensions) ||
		instanceIdx < 0 || instanceIdx >= len(s.instances) {
		return nil, errors.NotFound("suite %s has no problem at indices (%d, %d, %d)",
			s.cat.name, functionIdx, dimensionIdx, instanceIdx)
	}

	function := s.functions[functionIdx]
	dimension := s.dimensions[dimensionIdx]
	instance := s.instances[instanceIdx]
	def, err := s.cat.build(s.cat, function, dimension, instance)
	if err != nil {
		return nil, errors.Wrapf(err, "building f%d d%d i%d", function, dimension, instance)
	}
	def.FunctionIndex = functionIdx
	def.DimensionIndex = dimensionIdx
	def.InstanceIndex = instanceIdx
	def.Index = s.EncodeProblemIndex(functionIdx, dimensionIdx, instanceIdx)

	p, err := problem.New(def)
	if err != nil {
		return nil, err
	}
	s.live.Add(1)
	p.OnRelease(func() { s.live.Add(-1) })

	if obs != nil {
		if err := p.Attach(obs); err != nil {
			_ = p.Close()
			return nil, err
		}
	}
	s.logger.Debug("problem created", zap.String("id", p.ID()), zap.Int("index", def.Index), zap.Bool("observed", p.Observed()))
	return p, nil
}

// Has reports whether the function, dimension and instance numbers are part
// of the selection.
func (s *Suite) Has(function, dimension, instance int) bool {
	return contains(s.functions, function) && contains(s.dimensions, dimension) && contains(s.instances, instance)
}

// ProblemByFunctionDimensionInstance builds the problem for the given
// function number, dimension and instance number. Asking for a triple outside
// the selection is a programming error and panics; use Has to check first.
func (s *Suite) ProblemByFunctionDimensionInstance(function, dimension, instance int, obs problem.Attacher) (*problem.Problem, error) {
	s.checkOpen("problem_by_function_dimension_instance")
	if !s.Has(function, dimension, instance) {
		panic(errors.Precondition("suite %s has no problem f%d d%d i%d", s.cat.name, function, dimension, instance).
			WithComponent("suite").WithOperation("problem_by_function_dimension_instance"))
	}
	return s.ProblemFromIndices(indexOf(s.functions, function), indexOf(s.dimensions, dimension),
		indexOf(s.instances, instance), obs)
}

func indexOf(values []int, v int) int {
	for i, x := range values {
		if x == v {
			return i
		}
	}
	return -1
}

// Close releases the suite. Closing with live problems panics; closing twice
// returns an error.
func (s *Suite) Close() error {
	if s.closed {
		return errors.Precondition("suite %s already closed", s.cat.name).WithComponent("suite").WithOperation("close")
	}
	if n := s.live.Load(); n > 0 {
		panic(errors.Precondition("suite %s closed with %d live problems", s.cat.name, n).
			WithComponent("suite").WithOperation("close"))
	}
	s.closed = true
	return nil
}
