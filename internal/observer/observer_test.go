package observer

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/cocogo/internal/errors"
	"github.com/copyleftdev/cocogo/internal/metrics"
	"github.com/copyleftdev/cocogo/internal/problem"
)

// newProblem returns a problem whose objective is its first variable, so
// tests choose the observed value directly.
func newProblem(t *testing.T, function, instance, dim, constraints int) *problem.Problem {
	t.Helper()
	lower, upper := make([]float64, dim), make([]float64, dim)
	for i := range lower {
		lower[i], upper[i] = -5, 5
	}
	def := problem.Definition{
		ID:           "toy_f00" + string(rune('0'+function)) + "_i0" + string(rune('0'+instance)),
		Dimension:    dim,
		Objectives:   1,
		Constraints:  constraints,
		Lower:        lower,
		Upper:        upper,
		KnownOptimum: true,
		Objective:    func(x, y []float64) { y[0] = x[0] },
		Suite:        "toy",
		Function:     function,
		Instance:     instance,
	}
	if constraints > 0 {
		def.Constraint = func(x, g []float64) {
			g[0] = x[1]
			for i := 1; i < len(g); i++ {
				g[i] = -1
			}
		}
	}
	p, err := problem.New(def)
	require.NoError(t, err)
	return p
}

func evaluate(p *problem.Problem, values ...float64) {
	x := make([]float64, p.Dimension())
	y := make([]float64, 1)
	for _, v := range values {
		x[0] = v
		p.EvaluateFunction(x, y)
	}
}

// rows returns the non-comment lines of a data file.
func rows(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" && !strings.HasPrefix(line, "%") {
			out = append(out, line)
		}
	}
	return out
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

const scenario = "number_target_triggers: 1 number_evaluation_triggers: 0 base_evaluation_triggers: 1,2,5"

func TestNew(t *testing.T) {
	root := t.TempDir()

	t.Run("unknown name", func(t *testing.T) {
		o, err := New("bbob-biobj", "", WithResultRoot(root))
		require.Error(t, err)
		assert.Nil(t, o)
		assert.Equal(t, errors.KindConfiguration, errors.KindOf(err))
	})

	t.Run("no observer", func(t *testing.T) {
		for _, name := range []string{"", "no-observer", "no_observer"} {
			o, err := New(name, "result_folder: unused", WithResultRoot(root))
			require.NoError(t, err)
			assert.Empty(t, o.ResultFolder())

			p := newProblem(t, 1, 1, 2, 0)
			require.NoError(t, p.Attach(o))
			assert.False(t, p.Observed())
			require.NoError(t, p.Close())
			require.NoError(t, o.Close())
		}
		assert.NoDirExists(t, filepath.Join(root, "unused"))
	})

	t.Run("bad options", func(t *testing.T) {
		for _, opts := range []string{
			"number_target_triggers: -1",
			"number_target_triggers: many",
			"target_precision: 0",
			"base_evaluation_triggers: 0,2",
			"result_folder: a/b",
			"algorithm_name: \"two words\"",
			"precision_x: 0",
			"precision_f:",
		} {
			o, err := New("bbob", opts, WithResultRoot(root))
			assert.Error(t, err, opts)
			assert.Nil(t, o, opts)
		}
	})

	t.Run("unknown keys are ignored", func(t *testing.T) {
		o, err := New("toy", "result_folder: extra colour: blue", WithResultRoot(root))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "extra"), o.ResultFolder())
		require.NoError(t, o.Close())
	})
}

func TestParseOptions(t *testing.T) {
	opts, unknown, err := ParseOptions(`result_folder: RS algorithm_name: RS algorithm_info: "random search" ` +
		`number_target_triggers: 10 target_precision: 1e-6 number_evaluation_triggers: 0 ` +
		`base_evaluation_triggers: 1,3 precision_x: 4 precision_f: 10 precision_g: 2 log_discrete_as_int: 1 foo: bar`)
	require.NoError(t, err)
	assert.Equal(t, "RS", opts.ResultFolder)
	assert.Equal(t, "random search", opts.AlgorithmInfo)
	assert.Equal(t, 10, opts.Triggers.NumberTargetTriggers)
	assert.Equal(t, 1e-6, opts.Triggers.TargetPrecision)
	assert.Equal(t, 0, opts.Triggers.NumberEvaluationTriggers)
	assert.Equal(t, []int{1, 3}, opts.Triggers.BaseEvaluationTriggers)
	assert.Equal(t, 4, opts.PrecisionX)
	assert.Equal(t, 10, opts.PrecisionF)
	assert.Equal(t, 2, opts.PrecisionG)
	assert.True(t, opts.LogDiscreteAsInt)
	assert.Equal(t, []string{"foo"}, unknown)

	defaults, unknown, err := ParseOptions("")
	require.NoError(t, err)
	assert.Empty(t, unknown)
	assert.Equal(t, "default", defaults.ResultFolder)
	assert.Equal(t, "ALG", defaults.AlgorithmName)
	assert.Equal(t, 100, defaults.Triggers.NumberTargetTriggers)
	assert.Equal(t, []int{1, 2, 5}, defaults.Triggers.BaseEvaluationTriggers)
	assert.Equal(t, 8, defaults.PrecisionX)
	assert.Equal(t, 15, defaults.PrecisionF)
	assert.Equal(t, 3, defaults.PrecisionG)
	assert.False(t, defaults.LogDiscreteAsInt)
}

func TestResultFolderCollisions(t *testing.T) {
	root := t.TempDir()
	var folders []string
	for i := 0; i < 3; i++ {
		o, err := New("bbob", "result_folder: run", WithResultRoot(root))
		require.NoError(t, err)
		folders = append(folders, o.ResultFolder())
		require.NoError(t, o.Close())
	}
	assert.Equal(t, []string{
		filepath.Join(root, "run"),
		filepath.Join(root, "run_001"),
		filepath.Join(root, "run_002"),
	}, folders)
	for _, f := range folders {
		assert.DirExists(t, f)
	}
}

func TestBBOBScenario(t *testing.T) {
	reg := prometheus.NewRegistry()
	collectors := metrics.New(reg)
	o, err := New("bbob", scenario, WithResultRoot(t.TempDir()), WithMetrics(collectors))
	require.NoError(t, err)

	p := newProblem(t, 1, 1, 2, 0)
	require.NoError(t, p.Attach(o))
	assert.True(t, p.Observed())

	var logged []bool
	for _, v := range []float64{100, 10, 1, 1, 1e-9} {
		evaluate(p, v)
		logged = append(logged, p.Logged())
	}
	assert.Equal(t, []bool{true, true, true, true, true}, logged)
	assert.True(t, p.FinalTargetHit())
	require.NoError(t, p.Close())

	dir := filepath.Join(o.ResultFolder(), "data_f1")
	dat := rows(t, filepath.Join(dir, "bbobexp_f1_DIM2.dat"))
	tdat := rows(t, filepath.Join(dir, "bbobexp_f1_DIM2.tdat"))
	require.Len(t, dat, 4)
	require.Len(t, tdat, 3)

	assert.Equal(t, "1 0 +1.000000000000000e+02 +1.000000000000000e+02 +1.000000000000000e+02 "+
		"+1.00000000e+02 +0.00000000e+00", dat[0])
	for i, want := range []string{"1", "2", "3", "5"} {
		assert.Equal(t, want, strings.Fields(dat[i])[0])
	}
	for i, want := range []string{"2", "4", "5"} {
		assert.Equal(t, want, strings.Fields(tdat[i])[0])
	}
	assert.Empty(t, rows(t, filepath.Join(dir, "bbobexp_f1_DIM2.rdat")))
	assert.Empty(t, rows(t, filepath.Join(dir, "bbobexp_f1_DIM2.mdat")))

	header := readFile(t, filepath.Join(dir, "bbobexp_f1_DIM2.dat"))
	assert.True(t, strings.HasPrefix(header, "% f evaluations | g evaluations | best noise-free fitness - Fopt ("))

	info := readFile(t, filepath.Join(o.ResultFolder(), "bbobexp_f1.info"))
	assert.Contains(t, info, "suite = 'toy', funcId = 1, DIM = 2, Precision = 1.000e-08, algId = 'ALG'")
	assert.Contains(t, info, "data_f1/bbobexp_f1_DIM2.dat, 1:5|1.0e-09")

	assert.Equal(t, 4.0, testutil.ToFloat64(collectors.Records.WithLabelValues("dat")))
	assert.Equal(t, 3.0, testutil.ToFloat64(collectors.Records.WithLabelValues("tdat")))
	assert.Equal(t, 5.0, testutil.ToFloat64(collectors.Evaluations.WithLabelValues("bbob", "toy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collectors.TargetsReached.WithLabelValues("toy")))
	require.NoError(t, o.Close())
}

func TestBBOBInfoLines(t *testing.T) {
	o, err := New("bbob", scenario, WithResultRoot(t.TempDir()))
	require.NoError(t, err)

	run := func(function, instance, dim int) {
		p := newProblem(t, function, instance, dim, 0)
		require.NoError(t, p.Attach(o))
		evaluate(p, 3)
		require.NoError(t, p.Close())
	}
	run(1, 1, 2)
	run(1, 2, 2)
	run(1, 1, 3)
	run(1, 3, 2)
	require.NoError(t, o.Close())

	info := readFile(t, filepath.Join(o.ResultFolder(), "bbobexp_f1.info"))
	lines := strings.Split(info, "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "data_f1/bbobexp_f1_DIM2.dat, 1:1|3.0e+00, 2:1|3.0e+00", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "suite = 'toy', funcId = 1, DIM = 3,"))
	assert.Equal(t, "data_f1/bbobexp_f1_DIM3.dat, 1:1|3.0e+00", lines[5])
	assert.Equal(t, "data_f1/bbobexp_f1_DIM2-001.dat, 3:1|3.0e+00", lines[8])

	// two problems appended to the same data file, one header each
	data := readFile(t, filepath.Join(o.ResultFolder(), "data_f1", "bbobexp_f1_DIM2.dat"))
	assert.Equal(t, 2, strings.Count(data, "% f evaluations"))
	assert.FileExists(t, filepath.Join(o.ResultFolder(), "data_f1", "bbobexp_f1_DIM2-001.tdat"))
}

func TestBBOBRows(t *testing.T) {
	t.Run("variables omitted in large dimensions", func(t *testing.T) {
		o, err := New("bbob", "", WithResultRoot(t.TempDir()))
		require.NoError(t, err)
		p := newProblem(t, 2, 1, maxLoggedDimension, 0)
		require.NoError(t, p.Attach(o))
		evaluate(p, 1)
		require.NoError(t, p.Close())

		dat := rows(t, filepath.Join(o.ResultFolder(), "data_f2", "bbobexp_f2_DIM22.dat"))
		require.Len(t, dat, 1)
		assert.Len(t, strings.Fields(dat[0]), 5)
		require.NoError(t, o.Close())
	})

	t.Run("constraints as digits", func(t *testing.T) {
		o, err := New("bbob", "precision_f: 2 precision_x: 1", WithResultRoot(t.TempDir()))
		require.NoError(t, err)
		p := newProblem(t, 3, 1, 2, 2)
		require.NoError(t, p.Attach(o))
		p.EvaluateFunction([]float64{1, 0.5}, make([]float64, 1))
		require.NoError(t, p.Close())

		dat := rows(t, filepath.Join(o.ResultFolder(), "data_f3", "bbobexp_f3_DIM2.dat"))
		require.Len(t, dat, 1)
		assert.Equal(t, "1 0 +1.50e+00 +1.00e+00 80 +1.0e+00 +5.0e-01", dat[0])
		require.NoError(t, o.Close())
	})

	t.Run("integers", func(t *testing.T) {
		o, err := New("bbob", "log_discrete_as_int: 1 precision_x: 2", WithResultRoot(t.TempDir()))
		require.NoError(t, err)
		lower, upper := []float64{-5, -5}, []float64{5, 5}
		p, err := problem.New(problem.Definition{
			ID: "mixed", Dimension: 2, Objectives: 1, IntegerVariables: 1,
			Lower: lower, Upper: upper, KnownOptimum: true,
			Objective: func(x, y []float64) { y[0] = x[0]*x[0] + x[1]*x[1] },
			Suite:     "toy", Function: 4, Instance: 1,
		})
		require.NoError(t, err)
		require.NoError(t, p.Attach(o))
		p.EvaluateFunction([]float64{2, 0.25}, make([]float64, 1))
		require.NoError(t, p.Close())

		dat := rows(t, filepath.Join(o.ResultFolder(), "data_f4", "bbobexp_f4_DIM2.dat"))
		require.Len(t, dat, 1)
		fields := strings.Fields(dat[0])
		assert.Equal(t, []string{"2", "+2.50e-01"}, fields[len(fields)-2:])
		require.NoError(t, o.Close())
	})
}

func TestBBOBRestartsAndRecommendations(t *testing.T) {
	o, err := New("bbob", scenario, WithResultRoot(t.TempDir()))
	require.NoError(t, err)
	p := newProblem(t, 5, 1, 2, 0)
	require.NoError(t, p.Attach(o))

	p.SignalRestart()
	evaluate(p, 50)
	p.RecommendSolution([]float64{10, 0})
	evaluate(p, 40)
	p.RecommendSolution([]float64{10, 0})
	p.RecommendSolution([]float64{1, 0})
	p.SignalRestart()
	evaluate(p, 30)
	assert.Equal(t, int64(3), p.Evaluations())
	require.NoError(t, p.Close())

	dir := filepath.Join(o.ResultFolder(), "data_f5")
	rdat := rows(t, filepath.Join(dir, "bbobexp_f5_DIM2.rdat"))
	require.Len(t, rdat, 1)
	assert.Equal(t, "2", strings.Fields(rdat[0])[0])

	mdat := rows(t, filepath.Join(dir, "bbobexp_f5_DIM2.mdat"))
	require.Len(t, mdat, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{
		strings.Fields(mdat[0])[0], strings.Fields(mdat[1])[0], strings.Fields(mdat[2])[0],
	})
	assert.Equal(t, "+1.000000000000000e+00", strings.Fields(mdat[2])[2])
	require.NoError(t, o.Close())
}

func TestBBOBObservesOneProblemAtATime(t *testing.T) {
	o, err := New("bbob", "", WithResultRoot(t.TempDir()))
	require.NoError(t, err)

	first := newProblem(t, 1, 1, 2, 0)
	second := newProblem(t, 1, 2, 2, 0)
	require.NoError(t, first.Attach(o))
	err = second.Attach(o)
	require.Error(t, err)
	assert.False(t, second.Observed())

	require.NoError(t, first.Close())
	require.NoError(t, second.Attach(o))
	require.NoError(t, second.Close())
	require.NoError(t, o.Close())
}

func TestCloseDetachesLiveProblem(t *testing.T) {
	o, err := New("bbob", scenario, WithResultRoot(t.TempDir()))
	require.NoError(t, err)
	p := newProblem(t, 1, 1, 2, 0)
	require.NoError(t, p.Attach(o))
	evaluate(p, 100, 10)

	require.NoError(t, o.Close())
	assert.Equal(t, errors.KindPrecondition, errors.KindOf(o.Close()))

	evaluate(p, 1)
	assert.False(t, p.Logged())
	assert.Equal(t, int64(3), p.Evaluations())
	require.NoError(t, p.Close())

	dat := rows(t, filepath.Join(o.ResultFolder(), "data_f1", "bbobexp_f1_DIM2.dat"))
	assert.Len(t, dat, 2)

	late := newProblem(t, 1, 2, 2, 0)
	assert.Error(t, late.Attach(o))
}

func TestToyObserver(t *testing.T) {
	o, err := New("toy", scenario+" precision_f: 3 precision_x: 2", WithResultRoot(t.TempDir()))
	require.NoError(t, err)

	p := newProblem(t, 1, 1, 2, 0)
	require.NoError(t, p.Attach(o))
	evaluate(p, 100, 10, 1, 1, 1e-9)
	require.NoError(t, p.Close())

	q := newProblem(t, 2, 1, 2, 0)
	require.NoError(t, q.Attach(o))
	evaluate(q, 5)
	require.NoError(t, q.Close())
	require.NoError(t, o.Close())

	path := filepath.Join(o.ResultFolder(), toyFile)
	data := rows(t, path)
	require.Len(t, data, 5)
	assert.Equal(t, "1 +1.000e+02 +1.00e+02 +0.00e+00", data[0])
	assert.Equal(t, "5 +1.000e-09 +1.00e-09 +0.00e+00", data[3])

	content := readFile(t, path)
	assert.Contains(t, content, "% problem "+p.ID())
	assert.Contains(t, content, "% 5 evaluations, 4 records")
	assert.Contains(t, content, "target reached true")
}

func TestToyObserverServesProblemsConcurrently(t *testing.T) {
	o, err := New("toy", scenario, WithResultRoot(t.TempDir()))
	require.NoError(t, err)

	p := newProblem(t, 1, 1, 2, 0)
	q := newProblem(t, 2, 1, 2, 0)
	require.NoError(t, p.Attach(o))
	require.NoError(t, q.Attach(o))
	assert.True(t, p.Observed())
	assert.True(t, q.Observed())

	var wg sync.WaitGroup
	for _, pr := range []*problem.Problem{p, q} {
		pr := pr
		wg.Add(1)
		go func() {
			defer wg.Done()
			evaluate(pr, 100, 10, 1)
		}()
	}
	wg.Wait()

	// each problem has its own trigger state, so both log all three
	assert.True(t, p.Logged())
	assert.True(t, q.Logged())
	require.NoError(t, p.Close())

	// the observer detaches the problem still observed and closes the file
	require.NoError(t, o.Close())
	evaluate(q, 1e-3)
	assert.False(t, q.Logged())
	require.NoError(t, q.Close())

	path := filepath.Join(o.ResultFolder(), toyFile)
	assert.Len(t, rows(t, path), 6)
	content := readFile(t, path)
	assert.Contains(t, content, "% problem "+p.ID())
	assert.Contains(t, content, "% problem "+q.ID())
	assert.Equal(t, 2, strings.Count(content, "% 3 evaluations, 3 records"))
}

func TestConstraintDigit(t *testing.T) {
	cases := map[float64]byte{
		-3:   '0',
		0:    '0',
		1e-8: '1',
		5e-7: '2',
		5e-2: '7',
		1:    '8',
		2:    '9',
	}
	for g, want := range cases {
		assert.Equal(t, want, constraintDigit(g), "g=%g", g)
	}
}

func TestLoggable(t *testing.T) {
	assert.Equal(t, nanValue, loggable(math.NaN()))
	assert.Equal(t, infValue, loggable(math.Inf(1)))
	assert.Equal(t, -infValue, loggable(math.Inf(-1)))
	assert.Equal(t, 1.5, loggable(1.5))
}
