// Package observer records the performance of a solver on benchmark
// problems. An Observer owns the logging configuration and hands every
// attached problem a recorder with its own trigger state; the recorder
// decides after each evaluation whether a data line is written.
package observer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/copyleftdev/cocogo/internal/errors"
	"github.com/copyleftdev/cocogo/internal/metrics"
	"github.com/copyleftdev/cocogo/internal/problem"
	"github.com/copyleftdev/cocogo/internal/trigger"
)

// DefaultResultRoot is the folder under which result folders are created.
const DefaultResultRoot = "exdata"

// maxFolderSuffix bounds the NAME_001 ... NAME_999 search.
const maxFolderSuffix = 999

// Option configures an Observer.
type Option func(*Observer)

// WithResultRoot sets the parent of the result folder.
func WithResultRoot(root string) Option {
	return func(o *Observer) {
		if root != "" {
			o.root = root
		}
	}
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Observer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables Prometheus accounting.
func WithMetrics(c *metrics.Collectors) Option {
	return func(o *Observer) {
		o.metrics = c
	}
}

// Observer creates recorders for problems. A bbob observer serves one
// observed problem at a time; a toy observer serves any number, each with its
// own trigger state, writing into one shared file.
type Observer struct {
	name    string
	opts    Options
	root    string
	folder  string
	logger  *zap.Logger
	metrics *metrics.Collectors

	mu     sync.Mutex
	live   map[recorder]struct{}
	closed bool

	// toy output shared by all live toy recorders
	hits *dataFile

	// bbob bookkeeping carried from one problem to the next
	lastFunction  int
	lastDimension int
	lastDataFile  string
}

// Version is written into .info headers.
const Version = "0.4.0"

// recorder is implemented by the observer-specific recorders. Detach must
// be idempotent: the observer and the problem may both call it.
type recorder interface {
	problem.Recorder
}

// New creates an observer. name is "bbob", "toy" or "no-observer" (also
// "no_observer" and ""). The result folder is created right away.
func New(name, opts string, options ...Option) (*Observer, error) {
	switch name {
	case "bbob", "toy":
	case "", "no-observer", "no_observer":
		name = ""
	default:
		return nil, errors.Configuration("unknown observer %q", name).WithComponent("observer").WithOperation("new")
	}

	o := &Observer{name: name, root: DefaultResultRoot, logger: zap.NewNop()}
	for _, opt := range options {
		opt(o)
	}

	parsed, unknown, err := ParseOptions(opts)
	if err != nil {
		return nil, err
	}
	o.opts = parsed
	if len(unknown) > 0 {
		o.logger.Debug("ignoring unknown observer options", zap.Strings("keys", unknown))
	}
	if name == "" {
		return o, nil
	}

	folder, err := createUniqueFolder(o.root, parsed.ResultFolder)
	if err != nil {
		return nil, err
	}
	o.folder = folder
	o.logger.Info("observer created",
		zap.String("observer", name),
		zap.String("result_folder", folder),
		zap.String("algorithm", parsed.AlgorithmName))
	return o, nil
}

// createUniqueFolder creates root/name, or root/name_001, root/name_002, ...
// when it exists. os.Mkdir fails on existing folders, so two observers never
// share a folder.
func createUniqueFolder(root, name string) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", errors.Resource(err, "creating result root %s", root)
	}
	for i := 0; i <= maxFolderSuffix; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%03d", name, i)
		}
		path := filepath.Join(root, candidate)
		err := os.Mkdir(path, 0o755)
		if err == nil {
			return path, nil
		}
		if !os.IsExist(err) {
			return "", errors.Resource(err, "creating result folder %s", path)
		}
	}
	return "", errors.Resource(os.ErrExist, "no free result folder for %s under %s", name, root)
}

// Name returns the observer name, empty for the no-op observer.
func (o *Observer) Name() string { return o.name }

// ResultFolder returns the folder chosen at creation, empty for the no-op
// observer.
func (o *Observer) ResultFolder() string { return o.folder }

// Options returns the parsed options.
func (o *Observer) Options() Options { return o.opts }

// Attach implements problem.Attacher. A bbob observer fails while another
// problem is observed. The no-op observer returns a nil recorder.
func (o *Observer) Attach(p *problem.Problem) (problem.Recorder, error) {
	if o == nil || o.name == "" {
		return nil, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, errors.Configuration("observer %s is closed", o.name).WithComponent("observer").WithOperation("attach")
	}
	if o.name == "bbob" && len(o.live) > 0 {
		return nil, errors.Configuration("observer %s: the observed problem must be closed before %s can be observed",
			o.name, p.ID()).WithComponent("observer").WithOperation("attach")
	}

	engine, err := trigger.NewEngine(o.opts.Triggers, p.Dimension(), p.KnownOptimum())
	if err != nil {
		return nil, err
	}

	var r recorder
	switch o.name {
	case "bbob":
		r, err = newBBOBRecorder(o, p, engine)
	case "toy":
		if o.hits == nil {
			if o.hits, err = openDataFile(filepath.Join(o.folder, toyFile)); err != nil {
				return nil, err
			}
		}
		r = newToyRecorder(o, p, engine, o.hits)
	}
	if err != nil {
		return nil, err
	}
	if o.live == nil {
		o.live = make(map[recorder]struct{})
	}
	o.live[r] = struct{}{}
	o.logger.Debug("problem attached", zap.String("observer", o.name), zap.String("problem", p.ID()))
	return r, nil
}

// release is called by a recorder once it is detached.
func (o *Observer) release(r recorder) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.live, r)
}

// Close finalizes the recorders of problems that are still observed and
// closes the observer. The problems keep working without being recorded.
// Closing twice returns an error.
func (o *Observer) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return errors.Precondition("observer %q already closed", o.name).WithComponent("observer").WithOperation("close")
	}
	o.closed = true
	live := o.live
	o.live = nil
	hits := o.hits
	o.mu.Unlock()

	var first error
	if len(live) > 0 {
		o.logger.Warn("observer closed while problems are observed; detaching", zap.Int("problems", len(live)))
	}
	for r := range live {
		if err := r.Detach(); err != nil && first == nil {
			first = err
		}
	}
	if hits != nil {
		if err := hits.Close(); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		return first
	}
	o.logger.Debug("observer closed", zap.String("observer", o.name), zap.String("result_folder", o.folder))
	return nil
}
