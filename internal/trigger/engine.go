// Package trigger decides which evaluations of a benchmark problem are worth
// logging, without storing the evaluations themselves.
//
// Two independent sources are combined with OR: target triggers fire when the
// distance to the optimum first drops below a threshold of a logarithmic (or,
// for unknown optima, linear) grid; evaluation triggers fire when the
// evaluation count reaches a threshold of a logarithmic grid. Every threshold
// fires at most once per Engine, so the logged stream is monotone.
//
// An Engine belongs to a single problem and is not safe for concurrent use.
package trigger

import (
	"github.com/copyleftdev/cocogo/internal/errors"
)

// Config holds the trigger parameters shared by all engines of an observer.
type Config struct {
	// NumberTargetTriggers is the number of targets per decade.
	NumberTargetTriggers int
	// TargetPrecision is the smallest distinguishable distance to the optimum.
	TargetPrecision float64
	// LinearTargetPrecision is the step of linear targets for unknown optima.
	LinearTargetPrecision float64
	// NumberEvaluationTriggers is the number of evaluation counts per decade.
	NumberEvaluationTriggers int
	// BaseEvaluationTriggers are multiplied by dimension*10^p.
	BaseEvaluationTriggers []int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		NumberTargetTriggers:     100,
		TargetPrecision:          1e-8,
		LinearTargetPrecision:    1e-5,
		NumberEvaluationTriggers: 20,
		BaseEvaluationTriggers:   []int{1, 2, 5},
	}
}

// Validate rejects configurations no engine can be built from.
func (c Config) Validate() error {
	switch {
	case c.NumberTargetTriggers < 1:
		return errors.Configuration("number_target_triggers must be >= 1, got %d", c.NumberTargetTriggers)
	case !(c.TargetPrecision > 0):
		return errors.Configuration("target_precision must be > 0, got %g", c.TargetPrecision)
	case !(c.LinearTargetPrecision > 0):
		return errors.Configuration("lin_target_precision must be > 0, got %g", c.LinearTargetPrecision)
	case c.NumberEvaluationTriggers < 0:
		return errors.Configuration("number_evaluation_triggers must be >= 0, got %d", c.NumberEvaluationTriggers)
	case len(c.BaseEvaluationTriggers) == 0:
		return errors.Configuration("base_evaluation_triggers must not be empty")
	}
	for _, b := range c.BaseEvaluationTriggers {
		if b < 1 {
			return errors.Configuration("base_evaluation_triggers must be positive, got %d", b)
		}
	}
	return nil
}

// Decision is the outcome of one observation.
type Decision struct {
	// Target is set when a target threshold was crossed.
	Target bool
	// Reached is set when the crossed target is the final "target reached" level.
	Reached bool
	// Evaluation is set when at least one evaluation threshold was consumed.
	Evaluation bool
	// Consumed is the number of evaluation thresholds consumed.
	Consumed int
}

// ShouldLog combines both trigger kinds.
func (d Decision) ShouldLog() bool {
	return d.Target || d.Evaluation
}

// Engine holds the running trigger state of one problem.
type Engine struct {
	targets     *Targets
	evaluations *EvaluationTriggers
}

// NewEngine validates cfg and returns a fresh engine for a problem.
func NewEngine(cfg Config, dimension int, knownOptimum bool) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dimension < 1 {
		return nil, errors.Configuration("dimension must be >= 1, got %d", dimension)
	}
	return &Engine{
		targets: NewTargets(knownOptimum, cfg.NumberTargetTriggers, cfg.TargetPrecision, cfg.LinearTargetPrecision),
		evaluations: NewEvaluationTriggers(cfg.NumberEvaluationTriggers, cfg.BaseEvaluationTriggers,
			dimension),
	}, nil
}

// Observe evaluates both trigger kinds for a distance to the optimum and an
// evaluation count, advancing both regardless of which one fires.
func (e *Engine) Observe(gap float64, count int64) Decision {
	d := Decision{Target: e.ObserveTarget(gap)}
	d.Reached = d.Target && e.targets.Reached()
	d.Consumed = e.ObserveCount(count)
	d.Evaluation = d.Consumed > 0
	return d
}

// ObserveTarget feeds only the target triggers.
func (e *Engine) ObserveTarget(gap float64) bool {
	return e.targets.Trigger(gap)
}

// ObserveCount feeds only the evaluation triggers and returns the number of
// consumed thresholds.
func (e *Engine) ObserveCount(count int64) int {
	return e.evaluations.Trigger(count)
}

// LastTarget returns the threshold of the last fired target.
func (e *Engine) LastTarget() float64 {
	return e.targets.Last()
}

// TargetReached reports whether the final target level has fired.
func (e *Engine) TargetReached() bool {
	return e.targets.Reached()
}

// NextEvaluationTrigger returns the next evaluation count that fires.
func (e *Engine) NextEvaluationTrigger() int64 {
	return e.evaluations.Next()
}
