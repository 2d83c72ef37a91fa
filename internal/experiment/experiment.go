// Package experiment runs a solver over whole suites: every problem is
// attached to an observer, solved within a budget and released again.
package experiment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/cocogo/internal/errors"
	"github.com/copyleftdev/cocogo/internal/metrics"
	"github.com/copyleftdev/cocogo/internal/observer"
	"github.com/copyleftdev/cocogo/internal/solver"
	"github.com/copyleftdev/cocogo/internal/suite"
)

// Config describes an experiment.
type Config struct {
	Suites          []string
	SuiteInstance   string
	SuiteOptions    string
	Observer        string
	ObserverOptions string
	ResultRoot      string
	Solver          string
	// BudgetMultiplier times the dimension is the evaluation budget.
	BudgetMultiplier int
	Seed             int64

	Logger  *zap.Logger
	Metrics *metrics.Collectors
}

// ProblemResult is the outcome on one problem.
type ProblemResult struct {
	ID             string
	Dimension      int
	Evaluations    int64
	Restarts       int
	FinalTargetHit bool
	Best           float64
	Duration       time.Duration
}

// SuiteResult collects the outcomes on one suite.
type SuiteResult struct {
	Suite        string
	ResultFolder string
	Problems     []ProblemResult
}

// Summary reduces a suite result to a few statistics.
type Summary struct {
	Problems        int
	Solved          int
	MeanEvaluations float64
	StdEvaluations  float64
	MedianDuration  time.Duration
}

// Summarize computes the statistics of r.
func (r *SuiteResult) Summarize() Summary {
	s := Summary{Problems: len(r.Problems)}
	if s.Problems == 0 {
		return s
	}
	evals := make([]float64, len(r.Problems))
	durations := make([]float64, len(r.Problems))
	for i, p := range r.Problems {
		evals[i] = float64(p.Evaluations)
		durations[i] = float64(p.Duration)
		if p.FinalTargetHit {
			s.Solved++
		}
	}
	s.MeanEvaluations, s.StdEvaluations = stat.MeanStdDev(evals, nil)
	sort.Float64s(durations)
	s.MedianDuration = time.Duration(stat.Quantile(0.5, stat.Empirical, durations, nil))
	return s
}

// String formats the summary as one line.
func (s Summary) String() string {
	return fmt.Sprintf("%d problems, %d solved, evaluations %.1f ± %.1f, median time %s",
		s.Problems, s.Solved, s.MeanEvaluations, s.StdEvaluations, s.MedianDuration)
}

func (c *Config) validate() error {
	if len(c.Suites) == 0 {
		return errors.Configuration("no suite given")
	}
	if c.BudgetMultiplier < 1 {
		return errors.Configuration("budget multiplier must be >= 1, got %d", c.BudgetMultiplier)
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return nil
}

// Run benchmarks every suite concurrently, each with its own observer. The
// first failing suite cancels the others.
func Run(ctx context.Context, cfg Config) ([]*SuiteResult, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	results := make([]*SuiteResult, len(cfg.Suites))
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range cfg.Suites {
		i, name := i, name
		g.Go(func() error {
			res, err := runSuite(ctx, cfg, name, cfg.Seed+int64(i))
			if err != nil {
				return errors.Wrapf(err, "suite %s", name)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// observerOptions prefixes the user options with defaults naming the result
// folder after solver and suite; later keys win.
func observerOptions(cfg Config, suiteName string) string {
	defaults := fmt.Sprintf("result_folder: %s_on_%s algorithm_name: %s", cfg.Solver, suiteName, cfg.Solver)
	return strings.TrimSpace(defaults + " " + cfg.ObserverOptions)
}

func runSuite(ctx context.Context, cfg Config, name string, seed int64) (*SuiteResult, error) {
	log := cfg.Logger.With(zap.String("suite", name))

	s, err := suite.New(name, cfg.SuiteInstance, cfg.SuiteOptions, suite.WithLogger(log))
	if err != nil {
		return nil, err
	}
	defer s.Close()

	obs, err := observer.New(cfg.Observer, observerOptions(cfg, name),
		observer.WithResultRoot(cfg.ResultRoot), observer.WithLogger(log), observer.WithMetrics(cfg.Metrics))
	if err != nil {
		return nil, err
	}
	defer obs.Close()

	sol, err := solver.New(cfg.Solver, solver.Config{Seed: seed, Logger: log})
	if err != nil {
		return nil, errors.Wrap(err, "solver").WithKind(errors.KindConfiguration)
	}

	res := &SuiteResult{Suite: name, ResultFolder: obs.ResultFolder()}
	for {
		p, err := s.NextProblem(obs)
		if errors.Is(err, suite.ErrExhausted) {
			break
		}
		if err != nil {
			return nil, err
		}

		budget := int64(cfg.BudgetMultiplier) * int64(p.Dimension())
		out, solveErr := sol.Solve(ctx, p, budget)
		closeErr := p.Close()
		if solveErr != nil {
			return nil, solveErr
		}
		if closeErr != nil {
			return nil, closeErr
		}

		pr := ProblemResult{
			ID:             p.ID(),
			Dimension:      p.Dimension(),
			Evaluations:    out.Evaluations,
			Restarts:       out.Restarts,
			FinalTargetHit: out.FinalTargetHit,
			Duration:       out.Duration,
		}
		if out.Best != nil {
			pr.Best = out.Best.Value
		}
		res.Problems = append(res.Problems, pr)
		cfg.Metrics.ObserveProblem(sol.Name(), out.Duration.Seconds())

		log.Debug("problem done",
			zap.String("problem", pr.ID),
			zap.Int64("evaluations", pr.Evaluations),
			zap.Bool("final_target_hit", pr.FinalTargetHit))
	}

	log.Info("suite done", zap.String("summary", res.Summarize().String()))
	return res, nil
}
