package solver

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/cocogo/internal/problem"
)

// BayesianSearch fits a Gaussian process to the evaluated points and
// evaluates the maximizer of the expected improvement next. The model works
// in the unit cube spanned by the region of interest and is trained on the
// best MaxTrainingPoints points only.
type BayesianSearch struct {
	// InitialPoints is the size of the Latin hypercube design evaluated
	// before the first fit; 0 means 2·dim+1.
	InitialPoints int
	// MaxTrainingPoints bounds the training set; 0 means 60.
	MaxTrainingPoints int
	// Candidates is the number of random points screened per step before the
	// acquisition is refined with Nelder-Mead; 0 means 256.
	Candidates int
	// Xi is the exploration margin of the expected improvement.
	Xi float64

	rng    *rand.Rand
	logger *zap.Logger
}

// NewBayesianSearch creates a Bayesian search with its own seed.
func NewBayesianSearch(seed int64) *BayesianSearch {
	return &BayesianSearch{rng: rand.New(rand.NewSource(seed)), logger: zap.NewNop()}
}

// Name implements Solver.
func (bs *BayesianSearch) Name() string { return "bayesian" }

type observation struct {
	u     []float64
	value float64
}

// Solve implements Solver.
func (bs *BayesianSearch) Solve(ctx context.Context, p *problem.Problem, budget int64) (*Result, error) {
	if budget < 1 {
		return nil, NewErrorf("budget must be positive, got %d", budget).WithOperation("solve").WithComponent(bs.Name())
	}
	start := time.Now()
	eval := newEvaluator(p)
	t := &tracker{}
	lower, upper := p.Bounds()
	dim := p.Dimension()

	var history []observation
	evaluate := func(x []float64) {
		v := eval.evaluate(x)
		t.update(x, v)
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			history = append(history, observation{u: toUnit(x, lower, upper), value: v})
		}
	}

	x := make([]float64, dim)
	p.InitialSolution(x)
	evaluate(x)

	initial := bs.InitialPoints
	if initial <= 0 {
		initial = 2*dim + 1
	}
	for _, x := range latinHypercube(bs.rng, p, initial) {
		if done(ctx, p, budget) {
			break
		}
		evaluate(x)
	}

	gp := &gaussianProcess{
		kernel:   Matern52Kernel{LengthScale: 0.25 * math.Sqrt(float64(dim)), SignalVar: 1},
		noiseVar: 1e-6,
	}
	fits, fallbacks := 0, 0
	for !done(ctx, p, budget) {
		next, err := bs.propose(gp, history, dim)
		if err != nil {
			fallbacks++
			bs.logger.Debug("surrogate fit failed, sampling uniformly", zap.String("problem", p.ID()), zap.Error(err))
			uniform(bs.rng, p, x)
		} else {
			fits++
			fromUnit(next, lower, upper, x)
		}
		for i := 0; i < p.NumberOfIntegerVariables(); i++ {
			x[i] = math.Round(x[i])
		}
		evaluate(x)
	}

	if t.best != nil {
		p.RecommendSolution(t.best.Parameters)
	}
	bs.logger.Debug("bayesian search finished",
		zap.String("problem", p.ID()),
		zap.Int64("evaluations", p.Evaluations()),
		zap.Int("fits", fits),
		zap.Int("fallbacks", fallbacks))
	return result(p, t, 0, start), ctx.Err()
}

// propose fits gp to the best observations and returns the unit-cube point
// with the largest expected improvement it could find.
func (bs *BayesianSearch) propose(gp *gaussianProcess, history []observation, dim int) ([]float64, error) {
	limit := bs.MaxTrainingPoints
	if limit <= 0 {
		limit = 60
	}
	train := append([]observation(nil), history...)
	sort.Slice(train, func(i, j int) bool { return train[i].value < train[j].value })
	if len(train) > limit {
		train = train[:limit]
	}
	if len(train) < 2 {
		return nil, NewErrorf("%d observations are too few to fit", len(train)).WithOperation("propose").WithComponent(bs.Name())
	}

	xs := make([][]float64, len(train))
	ys := make([]float64, len(train))
	for i, o := range train {
		xs[i] = o.u
		ys[i] = o.value
	}
	mean, sd := stat.MeanStdDev(ys, nil)
	if sd <= 0 || math.IsNaN(sd) {
		sd = 1
	}
	floats.AddConst(-mean, ys)
	floats.Scale(1/sd, ys)
	if err := gp.fit(xs, ys); err != nil {
		return nil, err
	}

	best := ys[0]
	acquisition := func(u []float64) float64 {
		mu, sigma := gp.predict(u)
		return expectedImprovement(best, bs.Xi, mu, sigma)
	}

	// screen random candidates and perturbations of the incumbent
	n := bs.Candidates
	if n <= 0 {
		n = 256
	}
	bestU := append([]float64(nil), xs[0]...)
	bestEI := acquisition(bestU)
	u := make([]float64, dim)
	for c := 0; c < n; c++ {
		for i := range u {
			if c%2 == 0 {
				u[i] = bs.rng.Float64()
			} else {
				u[i] = clamp01(xs[0][i] + 0.05*bs.rng.NormFloat64())
			}
		}
		if ei := acquisition(u); ei > bestEI {
			bestEI = ei
			copy(bestU, u)
		}
	}

	clamped := make([]float64, dim)
	refine := optimize.Problem{
		Func: func(v []float64) float64 {
			for i := range v {
				clamped[i] = clamp01(v[i])
			}
			return -acquisition(clamped)
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: 20 * dim,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-9,
			Relative:   1e-9,
			Iterations: 10,
		},
	}
	res, err := optimize.Minimize(refine, bestU, settings, &optimize.NelderMead{SimplexSize: 0.05})
	if err == nil && res != nil && -res.F > bestEI {
		for i := range bestU {
			bestU[i] = clamp01(res.X[i])
		}
	}
	return bestU, nil
}

func toUnit(x, lower, upper []float64) []float64 {
	u := make([]float64, len(x))
	for i := range x {
		u[i] = (x[i] - lower[i]) / (upper[i] - lower[i])
	}
	return u
}

func fromUnit(u, lower, upper, x []float64) {
	for i := range u {
		x[i] = lower[i] + u[i]*(upper[i]-lower[i])
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}
