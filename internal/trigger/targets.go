package trigger

import (
	"math"
)

// snapTolerance absorbs the rounding error of math.Log10 and math.Pow so that
// exact decades such as 1e-8 or 100 land on integer exponents.
const snapTolerance = 1e-9

// scaledLog10 returns log10(v)*n, snapped to the nearest integer when it is
// within snapTolerance of one.
func scaledLog10(v float64, n int) float64 {
	e := math.Log10(v) * float64(n)
	if r := math.Round(e); math.Abs(e-r) < snapTolerance {
		return r
	}
	return e
}

// LogTargets fires when a value first drops below one of the thresholds
// 10^(k/n), n per decade, down to precision. Values in (-precision,
// precision) share a single "reached" level. Values at or below -precision
// (a reference value that is beaten) map to levels under the reached level,
// lower for larger magnitudes.
//
// The frontier only moves down: a threshold that fired never fires again.
type LogTargets struct {
	n         int
	precision float64
	reached   int

	level int
	value float64
}

// NewLogTargets returns log targets with n thresholds per decade.
func NewLogTargets(n int, precision float64) *LogTargets {
	return &LogTargets{
		n:         n,
		precision: precision,
		reached:   int(math.Ceil(scaledLog10(precision, n))) - 1,
		level:     math.MaxInt,
		value:     math.Inf(1),
	}
}

// level maps v to its target level and the threshold value of that level.
func (t *LogTargets) levelOf(v float64) (level int, target float64, ok bool) {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0, 0, false
	case v >= t.precision:
		level = int(math.Ceil(scaledLog10(v, t.n)))
		return level, math.Pow(10, float64(level)/float64(t.n)), true
	case v > -t.precision:
		return t.reached, t.precision, true
	default:
		below := int(math.Floor(scaledLog10(-v, t.n)))
		base := int(math.Floor(scaledLog10(t.precision, t.n)))
		return t.reached - 1 - (below - base), -math.Pow(10, float64(below)/float64(t.n)), true
	}
}

// Trigger reports whether v crosses an unconsumed threshold and consumes it.
func (t *LogTargets) Trigger(v float64) bool {
	level, target, ok := t.levelOf(v)
	if !ok || level >= t.level {
		return false
	}
	t.level = level
	t.value = target
	return true
}

// Last returns the threshold of the last fired level, +Inf before any.
func (t *LogTargets) Last() float64 {
	return t.value
}

// Reached reports whether the "target reached" level has been consumed.
func (t *LogTargets) Reached() bool {
	return t.level <= t.reached
}

// LinearTargets fires whenever a value drops below the last fired multiple
// of precision. It is used for problems whose optimum is unknown.
type LinearTargets struct {
	precision float64
	steps     float64
}

// NewLinearTargets returns linear targets with the given step.
func NewLinearTargets(precision float64) *LinearTargets {
	return &LinearTargets{precision: precision, steps: math.Inf(1)}
}

// Trigger reports whether v rounds up to a smaller multiple of precision than
// any previous value.
func (t *LinearTargets) Trigger(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	steps := math.Ceil(v / t.precision)
	if r := math.Round(v / t.precision); math.Abs(v/t.precision-r) < snapTolerance {
		steps = r
	}
	if steps >= t.steps {
		return false
	}
	t.steps = steps
	return true
}

// Last returns the last fired target, +Inf before any.
func (t *LinearTargets) Last() float64 {
	return t.steps * t.precision
}

// Targets combines log and linear targets. Both are advanced on every value;
// log targets decide for problems with a known optimum, linear targets
// otherwise.
type Targets struct {
	useLog bool
	log    *LogTargets
	lin    *LinearTargets
}

// NewTargets builds targets for a problem.
func NewTargets(knownOptimum bool, n int, precision, linearPrecision float64) *Targets {
	return &Targets{
		useLog: knownOptimum,
		log:    NewLogTargets(n, precision),
		lin:    NewLinearTargets(linearPrecision),
	}
}

// Trigger feeds v to both target kinds.
func (t *Targets) Trigger(v float64) bool {
	logFired := t.log.Trigger(v)
	linFired := t.lin.Trigger(v)
	if t.useLog {
		return logFired
	}
	return linFired
}

// Last returns the last fired target of the deciding kind.
func (t *Targets) Last() float64 {
	if t.useLog {
		return t.log.Last()
	}
	return t.lin.Last()
}

// Reached reports whether values below precision have been seen. It is
// always false for unknown optima.
func (t *Targets) Reached() bool {
	return t.useLog && t.log.Reached()
}
