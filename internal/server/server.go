package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/copyleftdev/cocogo/internal/config"
	"github.com/copyleftdev/cocogo/internal/errors"
	"github.com/copyleftdev/cocogo/internal/logging"
	"github.com/copyleftdev/cocogo/internal/metrics"
	"github.com/copyleftdev/cocogo/internal/observer"
	"github.com/copyleftdev/cocogo/internal/problem"
	"github.com/copyleftdev/cocogo/internal/suite"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics enables Prometheus accounting for sessions and observers.
func WithMetrics(c *metrics.Collectors) Option {
	return func(s *Server) { s.metrics = c }
}

// WithZapLogger sets the logger handed to suites and observers.
func WithZapLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.zap = l
		}
	}
}

// Server implements the HTTP and JSON-RPC evaluation service. Each session
// serves one observed benchmark problem.
type Server struct {
	cfg     *config.Config
	logger  Logger
	zap     *zap.Logger
	metrics *metrics.Collectors

	sessions   map[string]*Session
	reserved   int          // slots taken by sessions still being created
	sessionsMu sync.RWMutex // Protects sessions and reserved
}

// NewServer creates a new server instance with the given config and logger
// The logger parameter accepts any type that implements the Logger interface
func NewServer(cfg *config.Config, logger Logger, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		zap:      zap.NewNop(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleCreate)
		r.Get("/sessions/{id}", s.handleStatus)
		r.Post("/sessions/{id}/evaluate", s.handleEvaluate)
		r.Post("/sessions/{id}/constraints", s.handleConstraints)
		r.Delete("/sessions/{id}", s.handleClose)
		r.Get("/suites/{name}/problems", s.handleListProblems)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// createSession builds suite, observer and problem. On failure everything
// created so far is released again.
func (s *Server) createSession(params CreateParams) (*SessionStatus, error) {
	bench := s.cfg.Benchmark
	if params.Suite == "" {
		params.Suite = bench.Suite
	}
	if params.Observer == "" {
		params.Observer = bench.Observer
	}

	if err := s.reserveSlot(); err != nil {
		return nil, err
	}
	inserted := false
	defer func() {
		if !inserted {
			s.releaseSlot()
		}
	}()

	su, err := suite.New(params.Suite, params.SuiteInstance, params.SuiteOptions, suite.WithLogger(s.zap))
	if err != nil {
		return nil, err
	}
	obs, err := observer.New(params.Observer, params.ObserverOptions,
		observer.WithResultRoot(bench.ResultRoot), observer.WithLogger(s.zap), observer.WithMetrics(s.metrics))
	if err != nil {
		su.Close()
		return nil, err
	}

	var p *problem.Problem
	switch {
	case params.Function == 0 && params.Dimension == 0 && params.Instance == 0:
		p, err = su.NextProblem(obs)
	case !su.Has(params.Function, params.Dimension, params.Instance):
		err = errors.NotFound("suite %s has no problem f%d d%d i%d",
			params.Suite, params.Function, params.Dimension, params.Instance)
	default:
		p, err = su.ProblemByFunctionDimensionInstance(params.Function, params.Dimension, params.Instance, obs)
	}
	if err != nil {
		obs.Close()
		su.Close()
		return nil, err
	}

	now := time.Now()
	session := &Session{
		ID:          uuid.NewString(),
		StartTime:   now,
		suite:       su,
		observer:    obs,
		problem:     p,
		lastUpdated: now,
	}
	s.sessionsMu.Lock()
	s.sessions[session.ID] = session
	s.reserved--
	s.sessionsMu.Unlock()
	inserted = true
	s.metrics.SessionOpened()

	s.logger.Info("Session created", map[string]interface{}{
		"session_id": session.ID,
		"problem_id": p.ID(),
		"observer":   params.Observer,
	})
	return session.status()
}

// reserveSlot counts a session against the limit before it is built, so
// concurrent creates cannot exceed it.
func (s *Server) reserveSlot() error {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	if len(s.sessions)+s.reserved >= s.cfg.Server.SessionLimit {
		return errors.Resource(errors.ErrResource, "session limit %d reached", s.cfg.Server.SessionLimit)
	}
	s.reserved++
	return nil
}

func (s *Server) releaseSlot() {
	s.sessionsMu.Lock()
	s.reserved--
	s.sessionsMu.Unlock()
}

func (s *Server) session(id string) (*Session, error) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, errors.NotFound("session %q not found", id)
	}
	return session, nil
}

func (s *Server) closeSession(id string) error {
	s.sessionsMu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.sessionsMu.Unlock()
	if !ok {
		return errors.NotFound("session %q not found", id)
	}

	s.metrics.SessionClosed()
	err := session.close()
	s.logger.Info("Session closed", map[string]interface{}{
		"session_id": id,
	})
	return err
}

// listProblems returns the problem ids of a suite in iteration order.
func (s *Server) listProblems(name, instance, options string) ([]string, error) {
	su, err := suite.New(name, instance, options, suite.WithLogger(s.zap))
	if err != nil {
		return nil, err
	}
	defer su.Close()

	ids := make([]string, 0, su.NumberOfProblems())
	for {
		p, err := su.NextProblem(nil)
		if errors.Is(err, suite.ErrExhausted) {
			return ids, nil
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, p.ID())
		p.Close()
	}
}

// Close releases every open session.
func (s *Server) Close() error {
	s.sessionsMu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.sessionsMu.Unlock()

	var first error
	for _, session := range sessions {
		s.metrics.SessionClosed()
		if err := session.close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.KindConfiguration:
		return http.StatusBadRequest
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindPrecondition:
		return http.StatusUnprocessableEntity
	case errors.KindResource:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	s.respond(w, statusFor(err), map[string]interface{}{
		"error": err.Error(),
		"kind":  errors.KindOf(err).String(),
	})
}

// handleCreate handles POST /api/v1/sessions
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var params CreateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.respondError(w, errors.Configuration("invalid request body: %v", err))
		return
	}

	status, err := s.createSession(params)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, status)
}

// handleStatus handles GET /api/v1/sessions/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	status, err := session.status()
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, status)
}

func (s *Server) decodeX(r *http.Request) ([]float64, error) {
	var body struct {
		X []float64 `json:"x"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, errors.Configuration("invalid request body: %v", err)
	}
	return body.X, nil
}

// handleEvaluate handles POST /api/v1/sessions/{id}/evaluate
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	x, err := s.decodeX(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	result, err := session.evaluate(x)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, result)
}

// handleConstraints handles POST /api/v1/sessions/{id}/constraints
func (s *Server) handleConstraints(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	x, err := s.decodeX(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	result, err := session.evaluateConstraints(x)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, result)
}

// handleClose handles DELETE /api/v1/sessions/{id}
func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.closeSession(chi.URLParam(r, "id")); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "closed"})
}

// handleListProblems handles GET /api/v1/suites/{name}/problems
func (s *Server) handleListProblems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ids, err := s.listProblems(chi.URLParam(r, "name"), q.Get("instance"), q.Get("options"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{
		"suite":    chi.URLParam(r, "name"),
		"problems": ids,
	})
}
