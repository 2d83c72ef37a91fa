package observer

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/copyleftdev/cocogo/internal/problem"
	"github.com/copyleftdev/cocogo/internal/trigger"
)

// toyFile collects the rows of every problem observed by a toy observer.
// The observer owns it; recorders only write and flush.
const toyFile = "first_hitting_times.dat"

// toyRecorder writes one row each time a target fires.
type toyRecorder struct {
	obs     *Observer
	id      string
	suite   string
	optimum float64
	engine  *trigger.Engine

	mu       sync.Mutex
	file     *dataFile
	started  bool
	detached bool
	evals    int64
	best     float64
	rows     int
}

func newToyRecorder(o *Observer, p *problem.Problem, engine *trigger.Engine, file *dataFile) *toyRecorder {
	return &toyRecorder{
		obs:     o,
		id:      p.ID(),
		suite:   p.Suite(),
		optimum: p.BestValue(),
		engine:  engine,
		file:    file,
	}
}

func (r *toyRecorder) Observe(ev problem.Evaluation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.detached {
		return false
	}
	r.obs.metrics.Evaluation(r.obs.name, r.suite)
	if !r.started {
		r.started = true
		if err := r.file.Printf("%% problem %s, algorithm %s\n", r.id, r.obs.opts.AlgorithmName); err != nil {
			r.obs.logger.Warn("failed to write problem header", zap.String("problem", r.id), zap.Error(err))
		}
	}

	y := ev.Y[0]
	if ev.Evaluations == 1 || y < r.best {
		r.best = y
	}
	r.evals = ev.Evaluations
	if !r.engine.ObserveTarget(y - r.optimum) {
		return false
	}
	if r.engine.TargetReached() {
		r.obs.metrics.TargetReached(r.suite)
	}

	opts := r.obs.opts
	line := fmt.Appendf(nil, "%d %+.*e", ev.Evaluations, opts.PrecisionF, loggable(y))
	for _, v := range ev.X {
		line = fmt.Appendf(line, " %+.*e", opts.PrecisionX, v)
	}
	for _, g := range ev.Constraints {
		line = fmt.Appendf(line, " %+.*e", opts.PrecisionG, loggable(g))
	}
	if err := r.file.WriteLine(line); err != nil {
		r.obs.logger.Warn("failed to write record", zap.String("problem", r.id), zap.Error(err))
		return false
	}
	r.rows++
	r.obs.metrics.Record("toy")
	return true
}

// Recommend is not recorded by the toy observer.
func (r *toyRecorder) Recommend(problem.Evaluation) {}

// SignalRestart is not recorded by the toy observer.
func (r *toyRecorder) SignalRestart() {}

func (r *toyRecorder) Detach() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.detached {
		return nil
	}
	r.detached = true
	defer r.obs.release(r)

	if r.started {
		err := r.file.Printf("%% %d evaluations, %d records, best %+.*e, target reached %t\n",
			r.evals, r.rows, r.obs.opts.PrecisionF, loggable(r.best), r.engine.TargetReached())
		if err != nil {
			return err
		}
	}
	return r.file.Flush()
}
