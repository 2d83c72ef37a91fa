package observer

import (
	"fmt"
	"math"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/copyleftdev/cocogo/internal/errors"
	"github.com/copyleftdev/cocogo/internal/problem"
	"github.com/copyleftdev/cocogo/internal/trigger"
)

const (
	// Variables are not written for problems of this dimension or larger.
	maxLoggedDimension = 22

	// Substitutes for values that do not fit the data format.
	nanValue = 2e21
	infValue = 1e22

	// Added to infeasible values when the optimum is unknown.
	infeasiblePenalty = 1e10

	dataFormat = "bbob-new2"
)

// constraintLimits map a constraint value to a single digit: the index of the
// first limit not exceeded, 9 above the last one.
var constraintLimits = [...]float64{0, 1e-7, 1e-6, 1e-5, 1e-4, 1e-3, 1e-2, 1e-1, 1}

func constraintDigit(g float64) byte {
	for i, limit := range constraintLimits {
		if g <= limit {
			return byte('0' + i)
		}
	}
	return '9'
}

func loggable(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return nanValue
	case math.IsInf(v, 0):
		return math.Copysign(infValue, v)
	}
	return v
}

// sample is a copy of one evaluation kept for the final lines.
type sample struct {
	x      []float64
	y      float64
	g      []float64
	value  float64
	evals  int64
	cevals int64
}

func (s *sample) set(ev problem.Evaluation, value float64) {
	s.x = append(s.x[:0], ev.X...)
	s.g = append(s.g[:0], ev.Constraints...)
	s.y = ev.Y[0]
	s.value = value
	s.evals = ev.Evaluations
	s.cevals = ev.ConstraintEvaluations
}

// bbobRecorder writes the .info, .dat, .tdat, .rdat and .mdat files of one
// problem.
type bbobRecorder struct {
	obs *Observer

	id          string
	suite       string
	function    int
	instance    int
	dimension   int
	integers    int
	constraints int
	known       bool
	optimum     float64

	engine      *trigger.Engine
	recommended *trigger.Targets

	mu          sync.Mutex
	initialized bool
	detached    bool
	failed      bool
	restarted   bool
	reached     bool

	info, dat, tdat, rdat, mdat *dataFile

	best        float64
	last        sample
	lastDat     int64
	lastTdat    int64
	rec         sample
	hasRec      bool
	lastMdat    int64
	evaluations int64
}

func newBBOBRecorder(o *Observer, p *problem.Problem, engine *trigger.Engine) (*bbobRecorder, error) {
	cfg := o.opts.Triggers
	return &bbobRecorder{
		obs:         o,
		id:          p.ID(),
		suite:       p.Suite(),
		function:    p.Function(),
		instance:    p.Instance(),
		dimension:   p.Dimension(),
		integers:    p.NumberOfIntegerVariables(),
		constraints: p.NumberOfConstraints(),
		known:       p.KnownOptimum(),
		optimum:     p.BestValue(),
		engine:      engine,
		recommended: trigger.NewTargets(p.KnownOptimum(), cfg.NumberTargetTriggers, cfg.TargetPrecision,
			cfg.LinearTargetPrecision),
		best: math.Inf(1),
	}, nil
}

// value is the penalized objective the targets are computed on.
func (r *bbobRecorder) value(ev problem.Evaluation) float64 {
	y := ev.Y[0]
	var violation float64
	for _, g := range ev.Constraints {
		if g > 0 || math.IsNaN(g) {
			violation += g
		}
	}
	if r.known {
		return math.Max(y, r.optimum) + violation
	}
	if violation > 0 || math.IsNaN(violation) {
		return y + infeasiblePenalty
	}
	return y
}

// initialize creates the data files of the problem and extends the .info
// file. It runs on the first evaluation or recommendation.
func (r *bbobRecorder) initialize() error {
	r.initialized = true
	o := r.obs
	opts := o.opts

	base := fmt.Sprintf("bbobexp_f%d", r.function)
	infoPath := filepath.Join(o.folder, base+".info")
	infoExisted := exists(infoPath)

	info, err := openDataFile(infoPath)
	if err != nil {
		return err
	}
	r.info = info

	o.mu.Lock()
	newLine := !infoExisted || o.lastFunction != r.function || o.lastDimension != r.dimension || o.lastDataFile == ""
	dataName := o.lastDataFile
	if newLine {
		dataName = uniqueDataName(o.folder, filepath.Join(fmt.Sprintf("data_f%d", r.function),
			fmt.Sprintf("%s_DIM%d", base, r.dimension)))
		o.lastFunction, o.lastDimension, o.lastDataFile = r.function, r.dimension, dataName
	}
	o.mu.Unlock()

	if newLine {
		if infoExisted {
			if err := info.Printf("\n"); err != nil {
				return err
			}
		}
		err := info.Printf("suite = '%s', funcId = %d, DIM = %d, Precision = %.3e, algId = '%s', "+
			"coco_version = '%s', logger = '%s', data_format = '%s', settings = '%s'\n",
			r.suite, r.function, r.dimension, opts.Triggers.TargetPrecision, opts.AlgorithmName,
			Version, o.name, dataFormat, opts.Settings)
		if err != nil {
			return err
		}
		if err := info.Printf("%% %s\n%s.dat", opts.AlgorithmInfo, filepath.ToSlash(dataName)); err != nil {
			return err
		}
	}
	if err := info.Printf(", %d", r.instance); err != nil {
		return err
	}

	for _, f := range []struct {
		ext  string
		file **dataFile
	}{{"dat", &r.dat}, {"tdat", &r.tdat}, {"rdat", &r.rdat}, {"mdat", &r.mdat}} {
		d, err := openDataFile(filepath.Join(o.folder, dataName+"."+f.ext))
		if err != nil {
			return err
		}
		*f.file = d
		if err := d.Printf("%s\n", r.header()); err != nil {
			return err
		}
	}
	return nil
}

// uniqueDataName returns name, or name-001, name-002, ... when a data file of
// that name already exists under folder.
func uniqueDataName(folder, name string) string {
	candidate := name
	for i := 1; i <= maxFolderSuffix; i++ {
		if !exists(filepath.Join(folder, candidate+".dat")) {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%03d", name, i)
	}
	return candidate
}

func (r *bbobRecorder) header() string {
	ref := "Fopt"
	if !r.known {
		ref = "Fref"
	}
	return fmt.Sprintf("%% f evaluations | g evaluations | best noise-free fitness - %s (%13.12e) + sum g_i+ | "+
		"measured fitness | best measured fitness or single-digit g-values | x1 | x2...", ref, r.optimum)
}

// row formats one data line.
func (r *bbobRecorder) row(evals, cevals int64, best, y float64, x, g []float64) []byte {
	opts := r.obs.opts
	pf, px := opts.PrecisionF, opts.PrecisionX

	line := fmt.Appendf(nil, "%d %d %+.*e %+.*e", evals, cevals, pf, loggable(best-r.optimum), pf, loggable(y))
	if r.constraints > 0 {
		line = append(line, ' ')
		for _, v := range g {
			line = append(line, constraintDigit(v))
		}
	} else {
		line = fmt.Appendf(line, " %+.*e", pf, loggable(best))
	}
	if r.dimension < maxLoggedDimension {
		for i, v := range x {
			if opts.LogDiscreteAsInt && i < r.integers {
				line = fmt.Appendf(line, " %d", int64(math.Round(v)))
				continue
			}
			line = fmt.Appendf(line, " %+.*e", px, v)
		}
	}
	return line
}

func (r *bbobRecorder) write(d *dataFile, kind string, line []byte) bool {
	if err := d.WriteLine(line); err != nil {
		r.obs.logger.Warn("failed to write record", zap.String("file", kind), zap.String("problem", r.id), zap.Error(err))
		return false
	}
	r.obs.metrics.Record(kind)
	return true
}

// ready initializes on first use. A recorder whose files cannot be created
// stops recording; evaluation continues.
func (r *bbobRecorder) ready() bool {
	if r.detached || r.failed {
		return false
	}
	if !r.initialized {
		if err := r.initialize(); err != nil {
			r.failed = true
			r.obs.logger.Error("disabling recorder", zap.String("problem", r.id), zap.Error(err))
			return false
		}
	}
	return true
}

// Observe implements problem.Recorder.
func (r *bbobRecorder) Observe(ev problem.Evaluation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready() {
		return false
	}
	r.obs.metrics.Evaluation(r.obs.name, r.suite)

	value := r.value(ev)
	if value < r.best || r.evaluations == 0 {
		r.best = value
	}
	r.evaluations = ev.Evaluations
	r.last.set(ev, value)

	d := r.engine.Observe(value-r.optimum, ev.Evaluations+ev.ConstraintEvaluations)
	if d.Reached && !r.reached {
		r.reached = true
		r.obs.metrics.TargetReached(r.suite)
	}

	logged := false
	if d.Target || ev.Evaluations == 1 {
		logged = r.write(r.dat, "dat", r.row(ev.Evaluations, ev.ConstraintEvaluations, r.best, ev.Y[0], ev.X, ev.Constraints)) || logged
		r.lastDat = ev.Evaluations
	}
	if d.Evaluation {
		logged = r.write(r.tdat, "tdat", r.row(ev.Evaluations, ev.ConstraintEvaluations, r.best, ev.Y[0], ev.X, ev.Constraints)) || logged
		r.lastTdat = ev.Evaluations
	}
	return logged
}

// Recommend implements problem.Recorder. Recommendations are logged to .mdat
// when they improve the recommendation targets.
func (r *bbobRecorder) Recommend(ev problem.Evaluation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready() {
		return
	}
	value := r.value(ev)
	r.rec.set(ev, value)
	r.hasRec = true
	if r.recommended.Trigger(value - r.optimum) {
		r.write(r.mdat, "mdat", r.row(ev.Evaluations, ev.ConstraintEvaluations, value, ev.Y[0], ev.X, ev.Constraints))
		r.lastMdat = ev.Evaluations
	}
}

// SignalRestart implements problem.Recorder. It records the state at the
// restart in .rdat.
func (r *bbobRecorder) SignalRestart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evaluations == 0 || !r.ready() {
		return
	}
	r.restarted = true
	r.write(r.rdat, "rdat", r.row(r.last.evals, r.last.cevals, r.best, r.last.y, r.last.x, r.last.g))
}

// Detach implements problem.Recorder. It writes the final lines, closes all
// files and releases the observer for the next problem.
func (r *bbobRecorder) Detach() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.detached {
		return nil
	}
	r.detached = true
	defer r.obs.release(r)

	if !r.initialized || r.failed {
		return r.closeFiles()
	}

	if r.evaluations > 0 {
		final := r.row(r.last.evals, r.last.cevals, r.best, r.last.y, r.last.x, r.last.g)
		if r.lastDat != r.evaluations {
			r.write(r.dat, "dat", final)
		}
		if r.lastTdat != r.evaluations {
			r.write(r.tdat, "tdat", final)
		}
	}
	if r.hasRec && r.lastMdat != 0 && r.lastMdat != r.evaluations {
		r.write(r.mdat, "mdat", r.row(r.evaluations, r.last.cevals, r.rec.value, r.rec.y, r.rec.x, r.rec.g))
	}
	if err := r.info.Printf(":%d|%.1e", r.evaluations, loggable(r.best-r.optimum)); err != nil {
		r.closeFiles()
		return errors.Wrapf(err, "finalizing %s", r.id).WithComponent("observer").WithOperation("detach")
	}

	r.obs.logger.Debug("problem detached",
		zap.String("problem", r.id),
		zap.Int64("evaluations", r.evaluations),
		zap.Bool("target_reached", r.reached),
		zap.Bool("restarted", r.restarted))
	return r.closeFiles()
}

func (r *bbobRecorder) closeFiles() error {
	var first error
	for _, d := range []*dataFile{r.info, r.dat, r.tdat, r.rdat, r.mdat} {
		if d == nil {
			continue
		}
		if err := d.Close(); err != nil && first == nil {
			first = errors.Resource(err, "closing %s", d.path)
		}
	}
	return first
}
