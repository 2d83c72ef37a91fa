package server

import (
	"math"
	"sync"
	"time"

	"github.com/copyleftdev/cocogo/internal/errors"
	"github.com/copyleftdev/cocogo/internal/observer"
	"github.com/copyleftdev/cocogo/internal/problem"
	"github.com/copyleftdev/cocogo/internal/suite"
)

// Session is one observed problem served over the API. It owns its suite,
// observer and problem, and releases them in reverse order of creation.
// The mutex keeps a single evaluating caller at a time.
type Session struct {
	ID        string
	StartTime time.Time

	mu          sync.Mutex
	suite       *suite.Suite
	observer    *observer.Observer
	problem     *problem.Problem
	lastUpdated time.Time
	closed      bool
}

// CreateParams selects the problem and observer of a new session. A zero
// function, dimension or instance selects the first problem of the suite.
type CreateParams struct {
	Suite           string `json:"suite"`
	SuiteInstance   string `json:"suite_instance"`
	SuiteOptions    string `json:"suite_options"`
	Function        int    `json:"function"`
	Dimension       int    `json:"dimension"`
	Instance        int    `json:"instance"`
	Observer        string `json:"observer"`
	ObserverOptions string `json:"observer_options"`
}

// EvaluateParams carries a candidate solution.
type EvaluateParams struct {
	SessionID string    `json:"session_id"`
	X         []float64 `json:"x"`
}

// SessionParams names a session.
type SessionParams struct {
	SessionID string `json:"session_id"`
}

// EvaluationResult is returned for every evaluation.
type EvaluationResult struct {
	Values                []*float64 `json:"values"`
	Evaluations           int64      `json:"evaluations"`
	ConstraintEvaluations int64      `json:"constraint_evaluations"`
	Logged                bool       `json:"logged"`
	FinalTargetHit        bool       `json:"final_target_hit"`
}

// SessionStatus describes a session.
type SessionStatus struct {
	ID                    string    `json:"session_id"`
	Problem               string    `json:"problem_id"`
	Name                  string    `json:"name"`
	Dimension             int       `json:"dimension"`
	Objectives            int       `json:"objectives"`
	Constraints           int       `json:"constraints"`
	IntegerVariables      int       `json:"integer_variables"`
	Lower                 []float64 `json:"lower_bounds"`
	Upper                 []float64 `json:"upper_bounds"`
	Evaluations           int64     `json:"evaluations"`
	ConstraintEvaluations int64     `json:"constraint_evaluations"`
	BestObserved          *float64  `json:"best_observed,omitempty"`
	FinalTargetHit        bool      `json:"final_target_hit"`
	FinalTargetValue      *float64  `json:"final_target_value,omitempty"`
	ResultFolder          string    `json:"result_folder,omitempty"`
	StartTime             string    `json:"start_time"`
	LastUpdate            string    `json:"last_update"`
}

// finite maps non-finite values to null, which JSON can encode.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (s *Session) checkLength(what string, got, want int) error {
	if got != want {
		return errors.Configuration("%s has length %d, want %d", what, got, want).WithOperation("evaluate")
	}
	return nil
}

func (s *Session) checkOpen() error {
	if s.closed {
		return errors.NotFound("session %s is closed", s.ID)
	}
	return nil
}

func (s *Session) evaluate(x []float64) (*EvaluationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := s.checkLength("x", len(x), s.problem.Dimension()); err != nil {
		return nil, err
	}

	y := make([]float64, s.problem.NumberOfObjectives())
	s.problem.EvaluateFunction(x, y)
	s.lastUpdated = time.Now()
	return s.result(y), nil
}

func (s *Session) evaluateConstraints(x []float64) (*EvaluationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := s.checkLength("x", len(x), s.problem.Dimension()); err != nil {
		return nil, err
	}

	g := make([]float64, s.problem.NumberOfConstraints())
	s.problem.EvaluateConstraint(x, g)
	s.lastUpdated = time.Now()
	return s.result(g), nil
}

func (s *Session) result(values []float64) *EvaluationResult {
	out := make([]*float64, len(values))
	for i, v := range values {
		out[i] = finite(v)
	}
	return &EvaluationResult{
		Values:                out,
		Evaluations:           s.problem.Evaluations(),
		ConstraintEvaluations: s.problem.ConstraintEvaluations(),
		Logged:                s.problem.Logged(),
		FinalTargetHit:        s.problem.FinalTargetHit(),
	}
}

func (s *Session) status() (*SessionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	p := s.problem
	lower, upper := p.Bounds()
	st := &SessionStatus{
		ID:                    s.ID,
		Problem:               p.ID(),
		Name:                  p.Name(),
		Dimension:             p.Dimension(),
		Objectives:            p.NumberOfObjectives(),
		Constraints:           p.NumberOfConstraints(),
		IntegerVariables:      p.NumberOfIntegerVariables(),
		Lower:                 lower,
		Upper:                 upper,
		Evaluations:           p.Evaluations(),
		ConstraintEvaluations: p.ConstraintEvaluations(),
		BestObserved:          finite(p.BestObservedValue()),
		FinalTargetHit:        p.FinalTargetHit(),
		ResultFolder:          s.observer.ResultFolder(),
		StartTime:             s.StartTime.Format(time.RFC3339),
		LastUpdate:            s.lastUpdated.Format(time.RFC3339),
	}
	if p.KnownOptimum() {
		st.FinalTargetValue = finite(p.FinalTargetValue())
	}
	return st, nil
}

// close releases the problem, then the observer, then the suite.
func (s *Session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	keep(s.problem.Close())
	keep(s.observer.Close())
	keep(s.suite.Close())
	return first
}
