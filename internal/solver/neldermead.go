package solver

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/optimize"

	"github.com/copyleftdev/cocogo/internal/problem"
)

// NelderMead runs gonum's Nelder-Mead simplex method with independent
// restarts from uniform random points until the budget is spent. The first
// run starts from the initial solution of the problem.
type NelderMead struct {
	// SimplexSize is the edge length of the initial simplex relative to the
	// region of interest.
	SimplexSize float64

	rng    *rand.Rand
	logger *zap.Logger
}

// NewNelderMead creates a Nelder-Mead solver with its own seed.
func NewNelderMead(seed int64) *NelderMead {
	return &NelderMead{rng: rand.New(rand.NewSource(seed)), logger: zap.NewNop()}
}

// Name implements Solver.
func (nm *NelderMead) Name() string { return "nelder-mead" }

// Solve implements Solver.
func (nm *NelderMead) Solve(ctx context.Context, p *problem.Problem, budget int64) (*Result, error) {
	if budget < 1 {
		return nil, NewErrorf("budget must be positive, got %d", budget).WithOperation("solve").WithComponent(nm.Name())
	}
	start := time.Now()
	eval := newEvaluator(p)
	t := &tracker{}
	lower, upper := p.Bounds()

	size := nm.SimplexSize
	if size <= 0 {
		size = 0.2
	}
	width := 0.0
	for i := range lower {
		width = math.Max(width, upper[i]-lower[i])
	}

	clamped := make([]float64, p.Dimension())
	prob := optimize.Problem{
		Func: func(x []float64) float64 {
			for i := range x {
				clamped[i] = math.Max(lower[i], math.Min(x[i], upper[i]))
				if i < p.NumberOfIntegerVariables() {
					clamped[i] = math.Round(clamped[i])
				}
			}
			v := eval.evaluate(clamped)
			t.update(clamped, v)
			return v
		},
		Status: func() (optimize.Status, error) {
			switch {
			case ctx.Err() != nil:
				return optimize.Failure, ctx.Err()
			case p.FinalTargetHit():
				return optimize.FunctionThreshold, nil
			}
			return optimize.NotTerminated, nil
		},
	}

	x := make([]float64, p.Dimension())
	p.InitialSolution(x)
	runs := 0
	for !done(ctx, p, budget) {
		if runs > 0 {
			p.SignalRestart()
			uniform(nm.rng, p, x)
		}
		settings := &optimize.Settings{
			FuncEvaluations: int(budget - p.Evaluations()),
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-12,
				Relative:   1e-12,
				Iterations: 50 * p.Dimension(),
			},
		}
		method := &optimize.NelderMead{
			Reflection:  1.0,
			Expansion:   2.0,
			Contraction: 0.5,
			Shrink:      0.5,
			SimplexSize: size * width,
		}

		before := p.Evaluations()
		res, err := optimize.Minimize(prob, x, settings, method)
		if err != nil && ctx.Err() == nil {
			nm.logger.Debug("nelder-mead run stopped", zap.String("problem", p.ID()), zap.Error(err))
		}
		if res != nil && len(res.X) == p.Dimension() {
			p.RecommendSolution(clampTo(res.X, lower, upper))
		}
		runs++
		if p.Evaluations() == before {
			break
		}
	}

	restarts := 0
	if runs > 1 {
		restarts = runs - 1
	}
	nm.logger.Debug("nelder-mead finished",
		zap.String("problem", p.ID()),
		zap.Int64("evaluations", p.Evaluations()),
		zap.Int("restarts", restarts))
	return result(p, t, restarts, start), ctx.Err()
}

func clampTo(x, lower, upper []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = math.Max(lower[i], math.Min(x[i], upper[i]))
	}
	return out
}
