package trigger

import (
	"math"
)

// EvaluationTriggers fires on evaluation counts taken from two merged
// sources:
//
//   - floor(10^(k/n)) for k = 0, 1, 2, ... (disabled when n is 0)
//   - base * dimension * 10^p for every base and p = 0, 1, 2, ...
//
// The merged sequence is ascending and free of duplicates. Thresholds are
// consumed in order; a count that jumps past several thresholds consumes all
// of them in one call.
type EvaluationTriggers struct {
	perDecade int
	dimension int64
	bases     []int64

	k      int     // next exponent of the decade source
	next   int64   // next value of the decade source, 0 when disabled
	powers []int64 // current 10^p per base
}

// NewEvaluationTriggers builds the trigger sequence for a problem of the
// given dimension.
func NewEvaluationTriggers(perDecade int, bases []int, dimension int) *EvaluationTriggers {
	e := &EvaluationTriggers{
		perDecade: perDecade,
		dimension: int64(dimension),
		bases:     make([]int64, len(bases)),
		powers:    make([]int64, len(bases)),
	}
	for i, b := range bases {
		e.bases[i] = int64(b)
		e.powers[i] = 1
	}
	if perDecade > 0 {
		e.next = 1
	}
	return e
}

// Clone returns an independent copy with the same running state.
func (e *EvaluationTriggers) Clone() *EvaluationTriggers {
	c := *e
	c.bases = append([]int64(nil), e.bases...)
	c.powers = append([]int64(nil), e.powers...)
	return &c
}

func saturatingMul(a, b int64) int64 {
	if a != 0 && b > math.MaxInt64/a {
		return math.MaxInt64
	}
	return a * b
}

func (e *EvaluationTriggers) baseValue(i int) int64 {
	return saturatingMul(saturatingMul(e.bases[i], e.dimension), e.powers[i])
}

func (e *EvaluationTriggers) decadeValue(k int) int64 {
	v := math.Pow(10, float64(k)/float64(e.perDecade))
	if r := math.Round(v); math.Abs(v-r) < snapTolerance*math.Max(1, v) {
		v = r
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Floor(v))
}

// Next returns the smallest unconsumed threshold, math.MaxInt64 when there is
// none left.
func (e *EvaluationTriggers) Next() int64 {
	next := int64(math.MaxInt64)
	if e.next > 0 && e.next < next {
		next = e.next
	}
	for i := range e.bases {
		if v := e.baseValue(i); v < next {
			next = v
		}
	}
	return next
}

// consume advances every source past v.
func (e *EvaluationTriggers) consume(v int64) {
	if e.next > 0 {
		for e.next <= v && e.next != math.MaxInt64 {
			e.k++
			e.next = e.decadeValue(e.k)
		}
	}
	for i := range e.bases {
		for e.baseValue(i) <= v && e.baseValue(i) != math.MaxInt64 {
			e.powers[i] = saturatingMul(e.powers[i], 10)
		}
	}
}

// Trigger consumes every threshold at or below count and returns how many
// distinct thresholds were consumed.
func (e *EvaluationTriggers) Trigger(count int64) int {
	consumed := 0
	for {
		next := e.Next()
		if next > count || next == math.MaxInt64 {
			return consumed
		}
		e.consume(next)
		consumed++
	}
}

// Thresholds returns the unconsumed thresholds up to and including limit
// without advancing the receiver.
func (e *EvaluationTriggers) Thresholds(limit int64) []int64 {
	c := e.Clone()
	var out []int64
	for {
		next := c.Next()
		if next > limit || next == math.MaxInt64 {
			return out
		}
		out = append(out, next)
		c.consume(next)
	}
}
