package solver

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/cocogo/internal/problem"
)

// RandomSearch samples the region of interest in Latin hypercube batches.
// The first evaluation is the initial solution of the problem.
type RandomSearch struct {
	// BatchSize is the number of points per Latin hypercube.
	BatchSize int

	rng    *rand.Rand
	logger *zap.Logger
}

// NewRandomSearch creates a random search with its own seed.
func NewRandomSearch(seed int64, batchSize int) *RandomSearch {
	return &RandomSearch{BatchSize: batchSize, rng: rand.New(rand.NewSource(seed)), logger: zap.NewNop()}
}

// Name implements Solver.
func (rs *RandomSearch) Name() string { return "random" }

// Solve implements Solver.
func (rs *RandomSearch) Solve(ctx context.Context, p *problem.Problem, budget int64) (*Result, error) {
	if budget < 1 {
		return nil, NewErrorf("budget must be positive, got %d", budget).WithOperation("solve").WithComponent(rs.Name())
	}
	start := time.Now()
	eval := newEvaluator(p)
	t := &tracker{}

	x := make([]float64, p.Dimension())
	p.InitialSolution(x)
	t.update(x, eval.evaluate(x))

	batch := rs.BatchSize
	if batch < 1 {
		batch = 1
	}
	for !done(ctx, p, budget) {
		for _, x := range latinHypercube(rs.rng, p, batch) {
			if done(ctx, p, budget) {
				break
			}
			t.update(x, eval.evaluate(x))
		}
	}

	rs.logger.Debug("random search finished",
		zap.String("problem", p.ID()),
		zap.Int64("evaluations", p.Evaluations()),
		zap.Bool("final_target_hit", p.FinalTargetHit()))
	return result(p, t, 0, start), ctx.Err()
}

// latinHypercube returns n points of the region of interest, one per stratum
// in every coordinate. Integer variables are rounded.
func latinHypercube(rng *rand.Rand, p *problem.Problem, n int) [][]float64 {
	lower, upper := p.Bounds()
	dim := len(lower)
	samples := make([][]float64, n)
	for j := range samples {
		samples[j] = make([]float64, dim)
	}

	strata := make([]float64, n)
	for i := 0; i < dim; i++ {
		for j := range strata {
			strata[j] = (float64(j) + rng.Float64()) / float64(n)
		}
		rng.Shuffle(n, func(k, l int) {
			strata[k], strata[l] = strata[l], strata[k]
		})
		for j := range samples {
			samples[j][i] = lower[i] + strata[j]*(upper[i]-lower[i])
			if i < p.NumberOfIntegerVariables() {
				samples[j][i] = math.Round(samples[j][i])
			}
		}
	}
	return samples
}
