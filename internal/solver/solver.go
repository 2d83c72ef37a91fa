// Package solver contains the example solvers driven by the experiment
// command. Solvers only talk to a problem through its evaluation surface, so
// every evaluation they make is seen by an attached observer.
package solver

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/cocogo/internal/problem"
)

// Solver runs a search on one problem.
type Solver interface {
	// Name identifies the solver in logs and metrics.
	Name() string

	// Solve evaluates p until budget objective evaluations are spent, the
	// final target is hit or ctx is done.
	Solve(ctx context.Context, p *problem.Problem, budget int64) (*Result, error)
}

// Config contains configuration shared by all solvers.
type Config struct {
	// Random seed for reproducibility; 0 seeds from the clock.
	Seed int64

	// Logger receives per-problem progress; nil discards it.
	Logger *zap.Logger
}

// Solution represents a point in the search space.
type Solution struct {
	Parameters []float64
	Value      float64
}

// Result summarizes a run on one problem.
type Result struct {
	Best           *Solution
	Evaluations    int64
	Restarts       int
	FinalTargetHit bool
	Duration       time.Duration
}

// Names lists the solvers New knows.
func Names() []string {
	return []string{"random", "nelder-mead", "bayesian"}
}

// New returns the solver registered under name.
func New(name string, cfg Config) (Solver, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	if cfg.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	switch name {
	case "random", "random-search":
		return &RandomSearch{rng: rng, logger: cfg.Logger, BatchSize: 10}, nil
	case "nelder-mead", "nm":
		return &NelderMead{rng: rng, logger: cfg.Logger}, nil
	case "bayesian", "bo":
		return &BayesianSearch{rng: rng, logger: cfg.Logger}, nil
	}
	return nil, NewErrorf("unknown solver %q", name).WithOperation("new").WithComponent("solver")
}

// tracker keeps the best solution of a run.
type tracker struct {
	best *Solution
}

func (t *tracker) update(x []float64, value float64) {
	if math.IsNaN(value) {
		return
	}
	if t.best == nil || value < t.best.Value {
		t.best = &Solution{
			Parameters: append([]float64(nil), x...),
			Value:      value,
		}
	}
}

// evaluator evaluates the constraints (when there are any) and then the
// objective of x, and returns the objective penalized by the constraint
// violation.
type evaluator struct {
	p *problem.Problem
	y []float64
	g []float64
}

func newEvaluator(p *problem.Problem) *evaluator {
	return &evaluator{
		p: p,
		y: make([]float64, p.NumberOfObjectives()),
		g: make([]float64, p.NumberOfConstraints()),
	}
}

func (e *evaluator) evaluate(x []float64) float64 {
	var violation float64
	if len(e.g) > 0 {
		e.p.EvaluateConstraint(x, e.g)
		for _, v := range e.g {
			if v > 0 {
				violation += v
			}
		}
	}
	e.p.EvaluateFunction(x, e.y)
	return e.y[0] + violation
}

// done reports whether the run on p should stop.
func done(ctx context.Context, p *problem.Problem, budget int64) bool {
	return ctx.Err() != nil || p.FinalTargetHit() || p.Evaluations() >= budget
}

// uniform fills x with a point drawn uniformly from the region of interest
// and rounds the integer variables.
func uniform(rng *rand.Rand, p *problem.Problem, x []float64) {
	lower, upper := p.Bounds()
	for i := range x {
		x[i] = lower[i] + rng.Float64()*(upper[i]-lower[i])
		if i < p.NumberOfIntegerVariables() {
			x[i] = math.Round(x[i])
		}
	}
}

func result(p *problem.Problem, t *tracker, restarts int, start time.Time) *Result {
	return &Result{
		Best:           t.best,
		Evaluations:    p.Evaluations(),
		Restarts:       restarts,
		FinalTargetHit: p.FinalTargetHit(),
		Duration:       time.Since(start),
	}
}
