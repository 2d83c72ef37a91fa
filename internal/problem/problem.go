// Package problem implements the evaluation surface of one benchmark
// instance: counters, best-value bookkeeping and the hand-off to an attached
// recorder after every evaluation.
//
// A Problem is owned by a single goroutine at a time. It may be passed
// between goroutines but must not be evaluated concurrently.
package problem

import (
	"math"

	"github.com/copyleftdev/cocogo/internal/errors"
	"github.com/copyleftdev/cocogo/internal/problem/functions"
)

// DefaultFinalTargetDelta is the distance to the optimum that counts as
// solved.
const DefaultFinalTargetDelta = 1e-8

// Objective writes the objective values of x into y.
type Objective func(x, y []float64)

// Definition describes a problem before it is built.
type Definition struct {
	ID   string
	Name string
	Type string

	Dimension        int
	Objectives       int
	Constraints      int
	IntegerVariables int

	Lower []float64
	Upper []float64

	// InitialSolution may be nil; the center of the region of interest is
	// used then.
	InitialSolution []float64

	// BestValue is the optimal value, or a reference value when
	// KnownOptimum is false.
	BestValue     float64
	BestParameter []float64
	KnownOptimum  bool
	// FinalTargetDelta defaults to DefaultFinalTargetDelta.
	FinalTargetDelta float64

	Objective  Objective
	Constraint Objective

	Suite          string
	Function       int
	Instance       int
	FunctionIndex  int
	DimensionIndex int
	InstanceIndex  int
	Index          int
}

// Validate checks the shape of the definition.
func (d *Definition) Validate() error {
	switch {
	case d.ID == "":
		return errors.Configuration("problem id must not be empty")
	case d.Dimension < 1:
		return errors.Configuration("problem %s: dimension must be >= 1, got %d", d.ID, d.Dimension)
	case d.Objectives < 1:
		return errors.Configuration("problem %s: number of objectives must be >= 1, got %d", d.ID, d.Objectives)
	case d.Constraints < 0:
		return errors.Configuration("problem %s: number of constraints must be >= 0, got %d", d.ID, d.Constraints)
	case d.IntegerVariables < 0 || d.IntegerVariables > d.Dimension:
		return errors.Configuration("problem %s: %d integer variables in dimension %d", d.ID, d.IntegerVariables, d.Dimension)
	case len(d.Lower) != d.Dimension || len(d.Upper) != d.Dimension:
		return errors.Configuration("problem %s: bounds must have length %d", d.ID, d.Dimension)
	case d.Objective == nil:
		return errors.Configuration("problem %s: objective is missing", d.ID)
	case d.Constraints > 0 && d.Constraint == nil:
		return errors.Configuration("problem %s: constraint function is missing", d.ID)
	case d.InitialSolution != nil && len(d.InitialSolution) != d.Dimension:
		return errors.Configuration("problem %s: initial solution must have length %d", d.ID, d.Dimension)
	case d.BestParameter != nil && len(d.BestParameter) != d.Dimension:
		return errors.Configuration("problem %s: best parameter must have length %d", d.ID, d.Dimension)
	}
	for i := range d.Lower {
		if !(d.Lower[i] <= d.Upper[i]) {
			return errors.Configuration("problem %s: empty region of interest in coordinate %d", d.ID, i)
		}
	}
	return nil
}

// Problem is one concrete benchmark instance.
type Problem struct {
	def Definition

	evaluations           int64
	constraintEvaluations int64
	bestObserved          float64
	finalTargetHit        bool
	tainted               bool
	closed                bool
	logged                bool

	recorder Recorder
	release  func()
}

// New builds a problem from def. The slices of def are copied.
func New(def Definition) (*Problem, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if def.FinalTargetDelta <= 0 {
		def.FinalTargetDelta = DefaultFinalTargetDelta
	}
	if def.Type == "" {
		def.Type = "single-objective"
	}
	def.Lower = append([]float64(nil), def.Lower...)
	def.Upper = append([]float64(nil), def.Upper...)
	if def.InitialSolution != nil {
		def.InitialSolution = append([]float64(nil), def.InitialSolution...)
	}
	if def.BestParameter != nil {
		def.BestParameter = append([]float64(nil), def.BestParameter...)
	}
	return &Problem{def: def, bestObserved: math.Inf(1)}, nil
}

// OnRelease registers fn to run once when the problem is closed. Suites use
// it to track live problems.
func (p *Problem) OnRelease(fn func()) {
	p.release = fn
}

func (p *Problem) checkOpen(op string) {
	if p.closed {
		panic(errors.Precondition("%s on released problem %s", op, p.def.ID).WithComponent("problem").WithOperation(op))
	}
}

func (p *Problem) checkLength(op, what string, got, want int) {
	if got != want {
		panic(errors.Precondition("%s of %s: %s has length %d, want %d", op, p.def.ID, what, got, want).
			WithComponent("problem").WithOperation(op))
	}
}

// EvaluateFunction writes the objective values of x into y. x must have
// length Dimension and y length NumberOfObjectives; violating this panics
// and leaves the counters untouched.
func (p *Problem) EvaluateFunction(x, y []float64) {
	const op = "evaluate_function"
	p.checkOpen(op)
	p.checkLength(op, "x", len(x), p.def.Dimension)
	p.checkLength(op, "y", len(y), p.def.Objectives)
	if p.tainted && p.recorder != nil {
		panic(errors.Precondition("evaluating tainted observed problem %s", p.def.ID).
			WithComponent("problem").WithOperation(op))
	}

	p.def.Objective(x, y)
	p.evaluations++

	var g []float64
	feasible := true
	if p.def.Constraints > 0 {
		g = make([]float64, p.def.Constraints)
		p.def.Constraint(x, g)
		feasible = functions.Penalty(g) <= 0
	}
	if feasible && y[0] < p.bestObserved {
		p.bestObserved = y[0]
	}
	if p.def.KnownOptimum && p.bestObserved-p.def.BestValue < p.def.FinalTargetDelta {
		p.finalTargetHit = true
	}

	p.logged = false
	if p.recorder != nil {
		p.logged = p.recorder.Observe(Evaluation{
			X:                     x,
			Y:                     y,
			Constraints:           g,
			Evaluations:           p.evaluations,
			ConstraintEvaluations: p.constraintEvaluations,
		})
	}
}

// EvaluateConstraint writes the constraint values of x into y. It does not
// touch the objective bookkeeping.
func (p *Problem) EvaluateConstraint(x, y []float64) {
	const op = "evaluate_constraint"
	p.checkOpen(op)
	p.checkLength(op, "x", len(x), p.def.Dimension)
	p.checkLength(op, "y", len(y), p.def.Constraints)
	if p.def.Constraints == 0 {
		return
	}
	p.def.Constraint(x, y)
	p.constraintEvaluations++
}

// IsFeasible reports whether all constraints hold at x. It is not counted as
// a constraint evaluation.
func (p *Problem) IsFeasible(x []float64) bool {
	p.checkOpen("is_feasible")
	p.checkLength("is_feasible", "x", len(x), p.def.Dimension)
	if p.def.Constraints == 0 {
		return true
	}
	g := make([]float64, p.def.Constraints)
	p.def.Constraint(x, g)
	return functions.Penalty(g) <= 0
}

// RecommendSolution hands x to the attached recorder as the current
// recommendation. Neither counter is increased.
func (p *Problem) RecommendSolution(x []float64) {
	const op = "recommend_solution"
	p.checkOpen(op)
	p.checkLength(op, "x", len(x), p.def.Dimension)
	if p.recorder == nil {
		return
	}
	y := make([]float64, p.def.Objectives)
	p.def.Objective(x, y)
	var g []float64
	if p.def.Constraints > 0 {
		g = make([]float64, p.def.Constraints)
		p.def.Constraint(x, g)
	}
	p.recorder.Recommend(Evaluation{
		X:                     x,
		Y:                     y,
		Constraints:           g,
		Evaluations:           p.evaluations,
		ConstraintEvaluations: p.constraintEvaluations,
	})
}

// SignalRestart tells the recorder that the solver restarted.
func (p *Problem) SignalRestart() {
	p.checkOpen("signal_restart")
	if p.recorder != nil {
		p.recorder.SignalRestart()
	}
}

// FinalTargetHit reports whether an evaluation came within the final target
// delta of the optimum. Once true it stays true.
func (p *Problem) FinalTargetHit() bool {
	return p.finalTargetHit
}

// FinalTargetValue is the optimal value plus the final target delta.
func (p *Problem) FinalTargetValue() float64 {
	return p.def.BestValue + p.def.FinalTargetDelta
}

// BestValue returns the optimal (or reference) value of the problem. Use
// BestObservedValue for the best value found so far.
func (p *Problem) BestValue() float64 {
	return p.def.BestValue
}

// BestObservedValue returns the best feasible objective value evaluated so
// far, +Inf before the first one.
func (p *Problem) BestObservedValue() float64 {
	return p.bestObserved
}

// BestParameter copies the optimal solution into x and taints the problem:
// an observed tainted problem refuses further evaluations.
func (p *Problem) BestParameter(x []float64) error {
	p.checkOpen("best_parameter")
	p.checkLength("best_parameter", "x", len(x), p.def.Dimension)
	if p.def.BestParameter == nil {
		return errors.NotFound("problem %s has no known best parameter", p.def.ID)
	}
	copy(x, p.def.BestParameter)
	p.tainted = true
	return nil
}

// IsTainted reports whether BestParameter was called.
func (p *Problem) IsTainted() bool {
	return p.tainted
}

// InitialSolution fills x with the designated initial solution, or with the
// center of the region of interest. Integer variables are rounded.
func (p *Problem) InitialSolution(x []float64) {
	p.checkLength("initial_solution", "x", len(x), p.def.Dimension)
	if p.def.InitialSolution != nil {
		copy(x, p.def.InitialSolution)
		return
	}
	for i := range x {
		x[i] = p.def.Lower[i] + (p.def.Upper[i]-p.def.Lower[i])/2
		if i < p.def.IntegerVariables {
			x[i] = math.Round(x[i])
		}
	}
}

// Logged reports whether the last evaluation was recorded.
func (p *Problem) Logged() bool {
	return p.logged
}

// Evaluations returns the number of objective evaluations.
func (p *Problem) Evaluations() int64 { return p.evaluations }

// ConstraintEvaluations returns the number of constraint evaluations.
func (p *Problem) ConstraintEvaluations() int64 { return p.constraintEvaluations }

// Identity and shape accessors; immutable after New.

func (p *Problem) ID() string { return p.def.ID }
func (p *Problem) Name() string { return p.def.Name }
func (p *Problem) Type() string { return p.def.Type }
func (p *Problem) Dimension() int { return p.def.Dimension }
func (p *Problem) NumberOfObjectives() int { return p.def.Objectives }
func (p *Problem) NumberOfConstraints() int { return p.def.Constraints }
func (p *Problem) NumberOfIntegerVariables() int { return p.def.IntegerVariables }
func (p *Problem) KnownOptimum() bool { return p.def.KnownOptimum }
func (p *Problem) Suite() string { return p.def.Suite }
func (p *Problem) Function() int { return p.def.Function }
func (p *Problem) Instance() int { return p.def.Instance }
func (p *Problem) FunctionIndex() int { return p.def.FunctionIndex }
func (p *Problem) DimensionIndex() int { return p.def.DimensionIndex }
func (p *Problem) InstanceIndex() int { return p.def.InstanceIndex }
func (p *Problem) Index() int { return p.def.Index }

// Bounds returns copies of the lower and upper bounds of the region of
// interest.
func (p *Problem) Bounds() (lower, upper []float64) {
	return append([]float64(nil), p.def.Lower...), append([]float64(nil), p.def.Upper...)
}

// Closed reports whether Close was called.
func (p *Problem) Closed() bool {
	return p.closed
}

// Close detaches the recorder, which writes its final output, and releases
// the problem. Closing twice panics.
func (p *Problem) Close() error {
	p.checkOpen("close")
	p.closed = true

	var err error
	if p.recorder != nil {
		err = p.recorder.Detach()
		p.recorder = nil
	}
	if p.release != nil {
		p.release()
		p.release = nil
	}
	return err
}
