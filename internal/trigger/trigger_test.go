package trigger

import (
	"math"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/cocogo/internal/errors"
)

func TestLogTargetsSequence(t *testing.T) {
	targets := NewLogTargets(1, 1e-8)

	steps := []struct {
		value float64
		fired bool
		last  float64
	}{
		{1.40209408, true, 10},
		{0.49529408, true, 1},
		{0.08849408, true, 0.1},
		{0.06713408, false, 0.1},
		{0.00601408, true, 0.01},
	}
	for _, s := range steps {
		assert.Equal(t, s.fired, targets.Trigger(s.value), "value %g", s.value)
		assert.InDelta(t, s.last, targets.Last(), 1e-12, "value %g", s.value)
	}
}

func TestLogTargetsBelowPrecision(t *testing.T) {
	targets := NewLogTargets(1, 1e-5)
	require.True(t, targets.Trigger(1.28e-6))
	assert.InDelta(t, 1e-5, targets.Last(), 1e-18)
	assert.True(t, targets.Reached())

	// everything in (-precision, precision) is the same level
	assert.False(t, targets.Trigger(0))
	assert.False(t, targets.Trigger(1e-9))
	assert.False(t, targets.Trigger(-1e-6))

	// beating a reference value still counts as progress
	assert.True(t, targets.Trigger(-1e-5))
	assert.True(t, targets.Trigger(-1e-3))
	assert.False(t, targets.Trigger(-1e-4))
	assert.Less(t, targets.Last(), 0.0)
}

func TestLogTargetsMonotoneConsumption(t *testing.T) {
	targets := NewLogTargets(10, 1e-8)
	require.True(t, targets.Trigger(5))
	require.True(t, targets.Trigger(0.5))

	// regress above a consumed threshold, then cross it again
	assert.False(t, targets.Trigger(50))
	assert.False(t, targets.Trigger(5))
	assert.False(t, targets.Trigger(0.5))
	assert.False(t, targets.Trigger(0.4))
	assert.True(t, targets.Trigger(0.3))
}

func TestLogTargetsIgnoreNonFinite(t *testing.T) {
	targets := NewLogTargets(100, 1e-8)
	assert.False(t, targets.Trigger(math.NaN()))
	assert.False(t, targets.Trigger(math.Inf(1)))
	assert.True(t, math.IsInf(targets.Last(), 1))
	assert.True(t, targets.Trigger(1e300))
}

func TestLinearTargets(t *testing.T) {
	targets := NewLinearTargets(1e-3)

	steps := []struct {
		value float64
		fired bool
		last  float64
	}{
		{1.40209408, true, 1.403},
		{0.49529408, true, 0.496},
		{0.08849408, true, 0.089},
		{0.06713408, true, 0.068},
		{0.06750000, false, 0.068},
		{0.00601408, true, 0.007},
	}
	for _, s := range steps {
		assert.Equal(t, s.fired, targets.Trigger(s.value), "value %g", s.value)
		assert.InDelta(t, s.last, targets.Last(), 1e-12, "value %g", s.value)
	}
}

func TestTargetsChooseByKnownOptimum(t *testing.T) {
	known := NewTargets(true, 1, 1e-8, 100)
	assert.True(t, known.Trigger(1.40209408))
	assert.True(t, known.Trigger(0.49529408))
	assert.InDelta(t, 1, known.Last(), 1e-12)

	unknown := NewTargets(false, 1, 1e-8, 1e-3)
	assert.True(t, unknown.Trigger(1.40209408))
	assert.True(t, unknown.Trigger(1.30209408))
	assert.InDelta(t, 1.303, unknown.Last(), 1e-12)
	assert.True(t, unknown.Trigger(1e-12))
	assert.False(t, unknown.Reached())
}

// expectedBaseSequence builds sorted, distinct b*d*10^p up to limit.
func expectedBaseSequence(bases []int, d int, limit int64) []int64 {
	seen := map[int64]struct{}{}
	for _, b := range bases {
		for v := int64(b * d); v <= limit; v *= 10 {
			seen[v] = struct{}{}
		}
	}
	out := make([]int64, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestEvaluationTriggersBaseSequence(t *testing.T) {
	tests := []struct {
		name  string
		bases []int
		dim   int
	}{
		{"default bases", []int{1, 2, 5}, 2},
		{"dimension 3", []int{1, 2, 5}, 3},
		{"overlapping bases", []int{1, 10, 3}, 5},
		{"single large base", []int{100}, 2},
		{"dimension 1", []int{2, 5}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEvaluationTriggers(0, tt.bases, tt.dim)
			got := e.Thresholds(1_000_000)
			want := expectedBaseSequence(tt.bases, tt.dim, 1_000_000)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("thresholds mismatch (-want +got):\n%s", diff)
			}
			for i := 1; i < len(got); i++ {
				assert.Less(t, got[i-1], got[i])
			}
		})
	}
}

func TestEvaluationTriggersMergesDecades(t *testing.T) {
	e := NewEvaluationTriggers(20, []int{1, 2, 5}, 2)
	got := e.Thresholds(100)
	want := []int64{1, 2, 3, 4, 5, 6, 7, 8, 10, 11, 12, 14, 15, 17, 19, 20, 22, 25, 28, 31, 35, 39, 40, 44, 50, 56, 63, 70, 79, 89, 100}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("thresholds mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluationTriggersFireOnCounts(t *testing.T) {
	e := NewEvaluationTriggers(0, []int{1, 2, 5}, 2)

	var fired []int64
	for count := int64(1); count <= 5; count++ {
		if e.Trigger(count) > 0 {
			fired = append(fired, count)
		}
	}
	assert.Equal(t, []int64{2, 4}, fired)
	assert.Equal(t, int64(10), e.Next())
}

// A jump fires once and consumes every passed threshold; stepping one count
// at a time over the same range consumes the same thresholds.
func TestEvaluationTriggersJump(t *testing.T) {
	jump := NewEvaluationTriggers(0, []int{1, 2, 5}, 2)
	assert.Equal(t, 0, jump.Trigger(1))
	assert.Equal(t, 3, jump.Trigger(12)) // 2, 4, 10
	assert.Equal(t, int64(20), jump.Next())
	assert.Equal(t, 0, jump.Trigger(12))

	step := NewEvaluationTriggers(0, []int{1, 2, 5}, 2)
	total := 0
	for count := int64(1); count <= 12; count++ {
		total += step.Trigger(count)
	}
	assert.Equal(t, 3, total)
	assert.Equal(t, jump.Next(), step.Next())
}

func TestEvaluationTriggersSaturate(t *testing.T) {
	e := NewEvaluationTriggers(0, []int{5}, 1<<20)
	assert.Greater(t, e.Trigger(math.MaxInt64-1), 0)
	assert.Equal(t, int64(math.MaxInt64), e.Next())
	assert.Equal(t, 0, e.Trigger(math.MaxInt64))
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no targets", func(c *Config) { c.NumberTargetTriggers = 0 }},
		{"zero precision", func(c *Config) { c.TargetPrecision = 0 }},
		{"nan precision", func(c *Config) { c.TargetPrecision = math.NaN() }},
		{"negative linear precision", func(c *Config) { c.LinearTargetPrecision = -1 }},
		{"negative evaluation triggers", func(c *Config) { c.NumberEvaluationTriggers = -1 }},
		{"empty bases", func(c *Config) { c.BaseEvaluationTriggers = nil }},
		{"non-positive base", func(c *Config) { c.BaseEvaluationTriggers = []int{1, 0} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfiguration))

			_, err = NewEngine(cfg, 2, true)
			assert.Error(t, err)
		})
	}
}

func TestEngineEvaluationScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumberEvaluationTriggers = 0
	e, err := NewEngine(cfg, 2, true)
	require.NoError(t, err)

	var logged []int64
	for count := int64(1); count <= 5; count++ {
		// constant value: only the first observation crosses a target
		d := e.Observe(3, count)
		if d.Evaluation {
			logged = append(logged, count)
		}
		assert.Equal(t, count == 1, d.Target, "count %d", count)
	}
	assert.Equal(t, []int64{2, 4}, logged)
	assert.Equal(t, int64(10), e.NextEvaluationTrigger())
}

func TestEngineTargetScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumberTargetTriggers = 1
	cfg.TargetPrecision = 1e-8
	cfg.BaseEvaluationTriggers = []int{1000}
	cfg.NumberEvaluationTriggers = 0
	e, err := NewEngine(cfg, 2, true)
	require.NoError(t, err)

	gaps := []float64{100, 10, 1, 1, 1e-9, 1e-10}
	wantTarget := []bool{true, true, true, false, true, false}
	wantReached := []bool{false, false, false, false, true, false}

	for i, gap := range gaps {
		d := e.Observe(gap, int64(i+1))
		assert.Equal(t, wantTarget[i], d.Target, "gap %g", gap)
		assert.Equal(t, wantReached[i], d.Reached, "gap %g", gap)
		assert.Equal(t, wantTarget[i], d.ShouldLog(), "gap %g", gap)
	}
	assert.True(t, e.TargetReached())
	assert.InDelta(t, 1e-8, e.LastTarget(), 1e-20)
}

func TestEngineBothKindsLogOnce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumberEvaluationTriggers = 0
	e, err := NewEngine(cfg, 1, true)
	require.NoError(t, err)

	d := e.Observe(1, 1)
	assert.True(t, d.Target)
	assert.True(t, d.Evaluation)
	assert.True(t, d.ShouldLog())

	// the same call repeated does not drift
	d = e.Observe(1, 1)
	assert.False(t, d.ShouldLog())
}
