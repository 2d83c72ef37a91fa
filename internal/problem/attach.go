package problem

import (
	"github.com/copyleftdev/cocogo/internal/errors"
)

// Evaluation is what a recorder sees after each evaluation. The slices are
// only valid for the duration of the call.
type Evaluation struct {
	X           []float64
	Y           []float64
	Constraints []float64 // nil for unconstrained problems

	Evaluations           int64
	ConstraintEvaluations int64
}

// Recorder receives the evaluations of one attached problem.
type Recorder interface {
	// Observe is called after every objective evaluation and reports
	// whether a record was written.
	Observe(ev Evaluation) bool
	// Recommend records a recommended solution without counting it.
	Recommend(ev Evaluation)
	// SignalRestart marks that the solver restarted.
	SignalRestart()
	// Detach writes final output and stops recording. It is called once,
	// when the problem is closed. A recorder detached by its owner first
	// must accept the call and do nothing.
	Detach() error
}

// Attacher creates recorders for problems. Observers implement it.
type Attacher interface {
	Attach(p *Problem) (Recorder, error)
}

// Attach binds the problem to a so that every later evaluation is reported.
// A problem is attached at most once, before its first evaluation.
func (p *Problem) Attach(a Attacher) error {
	p.checkOpen("attach")
	if p.recorder != nil {
		panic(errors.Precondition("problem %s is already observed", p.def.ID).WithComponent("problem").WithOperation("attach"))
	}
	if p.evaluations > 0 {
		panic(errors.Precondition("problem %s was evaluated before being observed", p.def.ID).
			WithComponent("problem").WithOperation("attach"))
	}
	r, err := a.Attach(p)
	if err != nil {
		return errors.Wrapf(err, "attaching problem %s", p.def.ID)
	}
	p.recorder = r
	return nil
}

// Observed reports whether a recorder is attached.
func (p *Problem) Observed() bool {
	return p.recorder != nil
}
