package rebac

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/oarkflow/rebac/logger"
)

// ============================================================================
// HTTP DECISION BOUNDARY
// ============================================================================

// SnapshotSource supplies the snapshot a request is evaluated against.
// Implementations decide freshness; the server treats each returned snapshot
// as immutable for the lifetime of the request.
type SnapshotSource interface {
	Snapshot(r *http.Request) (*Snapshot, error)
}

// StaticSnapshotSource serves one fixed snapshot, useful for tests and for
// deployments that reload by swapping the whole server handler.
type StaticSnapshotSource struct {
	Snap *Snapshot
}

func (s *StaticSnapshotSource) Snapshot(*http.Request) (*Snapshot, error) {
	if s.Snap == nil {
		return nil, errors.New("no snapshot loaded")
	}
	return s.Snap, nil
}

// Server exposes the engine over HTTP. Every endpoint is a pure read of the
// supplied snapshot; a request either yields a definite decision payload or
// an error status, never an ambiguous outcome.
type Server struct {
	engine     *Engine
	source     SnapshotSource
	navigation []NavSection
	log        logger.Logger
	traceID    logger.TraceIDFunc
	mux        *http.ServeMux
}

// ServerOption customizes server construction.
type ServerOption func(*Server)

// WithServerLogger sets the request logger.
func WithServerLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithNavigation replaces the default navigation registry.
func WithNavigation(sections []NavSection) ServerOption {
	return func(s *Server) { s.navigation = sections }
}

// WithTraceIDFunc sets the per-request correlation ID generator.
func WithTraceIDFunc(fn logger.TraceIDFunc) ServerOption {
	return func(s *Server) { s.traceID = fn }
}

// NewServer wires the engine and snapshot source into an http.Handler.
func NewServer(engine *Engine, source SnapshotSource, opts ...ServerOption) *Server {
	s := &Server{
		engine:     engine,
		source:     source,
		navigation: DefaultNavigation(),
		log:        &logger.NullLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("POST /evaluate", s.handleEvaluate)
	s.mux.HandleFunc("POST /evaluate/batch", s.handleEvaluateBatch)
	s.mux.HandleFunc("POST /simulate-role-change", s.handleSimulateRoleChange)
	s.mux.HandleFunc("POST /navigation/evaluate", s.handleNavigationEvaluate)
	s.mux.HandleFunc("POST /navigation/simulate", s.handleNavigationSimulate)
	s.mux.HandleFunc("POST /validate-schedule", s.handleValidateSchedule)
	s.mux.HandleFunc("GET /schedule-presets", s.handleSchedulePresets)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type evaluateRequest struct {
	Resource string        `json:"resource"`
	Action   string        `json:"action"`
	Actor    *ActorContext `json:"actor"`
	At       time.Time     `json:"at,omitempty"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Resource == "" || req.Action == "" || req.Actor == nil {
		s.writeError(w, r, NewValidationError("request", "resource, action and actor are required"))
		return
	}
	snap, err := s.source.Snapshot(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.engine.Evaluate(req.Resource, req.Action, req.Actor, snap, req.At))
}

type batchEvaluateRequest struct {
	Requests []AccessRequest `json:"requests"`
	Actor    *ActorContext   `json:"actor"`
	At       time.Time       `json:"at,omitempty"`
}

func (s *Server) handleEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchEvaluateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Actor == nil {
		s.writeError(w, r, NewValidationError("request", "actor is required"))
		return
	}
	snap, err := s.source.Snapshot(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.engine.EvaluateBatch(req.Requests, req.Actor, snap, req.At))
}

type simulateRoleChangeRequest struct {
	Role       string                   `json:"role"`
	Added      []string                 `json:"added"`
	Removed    []string                 `json:"removed"`
	Population []Triple                 `json:"population"`
	Actors     map[string]*ActorContext `json:"actors"`
	At         time.Time                `json:"at,omitempty"`
}

func (s *Server) handleSimulateRoleChange(w http.ResponseWriter, r *http.Request) {
	var req simulateRoleChangeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Role == "" {
		s.writeError(w, r, NewValidationError("request", "role is required"))
		return
	}
	snap, err := s.source.Snapshot(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report := s.engine.SimulateRoleChange(snap, req.Role, req.Added, req.Removed, req.Population, req.Actors, req.At)
	s.writeJSON(w, r, http.StatusOK, report)
}

type navigationEvaluateRequest struct {
	Permissions []string      `json:"permissions,omitempty"`
	Actor       *ActorContext `json:"actor,omitempty"`
	At          time.Time     `json:"at,omitempty"`
}

func (s *Server) handleNavigationEvaluate(w http.ResponseWriter, r *http.Request) {
	var req navigationEvaluateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Permissions != nil {
		s.writeJSON(w, r, http.StatusOK, EvaluateNavigationWithPermissions(s.navigation, req.Permissions))
		return
	}
	if req.Actor == nil {
		s.writeError(w, r, NewValidationError("request", "permissions or actor is required"))
		return
	}
	snap, err := s.source.Snapshot(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.engine.EvaluateNavigation(s.navigation, req.Actor, snap, req.At))
}

type navigationSimulateRequest struct {
	BaselinePermissions []string `json:"baseline_permissions"`
	ProposedPermissions []string `json:"proposed_permissions"`
}

func (s *Server) handleNavigationSimulate(w http.ResponseWriter, r *http.Request) {
	var req navigationSimulateRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.writeJSON(w, r, http.StatusOK, SimulateNavigation(s.navigation, req.BaselinePermissions, req.ProposedPermissions))
}

type validateScheduleRequest struct {
	Expression string `json:"expression"`
	Count      int    `json:"count,omitempty"`
	Horizon    int    `json:"horizon_days,omitempty"`
}

type validateScheduleResponse struct {
	Valid           bool        `json:"valid"`
	Error           string      `json:"error,omitempty"`
	NextOccurrences []time.Time `json:"next_occurrences,omitempty"`
}

func (s *Server) handleValidateSchedule(w http.ResponseWriter, r *http.Request) {
	var req validateScheduleRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Expression == "" {
		s.writeError(w, r, NewValidationError("request", "expression is required"))
		return
	}
	resp := validateScheduleResponse{Valid: true}
	if err := ValidateSchedule(req.Expression); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
		s.writeJSON(w, r, http.StatusOK, resp)
		return
	}
	count := req.Count
	if count <= 0 {
		count = 3
	}
	next, err := NextOccurrences(req.Expression, count, req.Horizon, time.Now())
	if err == nil {
		resp.NextOccurrences = next
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleSchedulePresets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, SchedulePresets())
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, r, NewValidationError("body", err.Error()))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response encode failed", "path", r.URL.Path, "error", err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if IsValidationError(err) {
		status = http.StatusBadRequest
	}
	kv := []any{"path", r.URL.Path, "status", status, "error", err.Error()}
	if s.traceID != nil {
		kv = append(kv, "trace_id", s.traceID())
	}
	s.log.Error("request failed", kv...)
	s.writeJSON(w, r, status, map[string]string{"error": err.Error()})
}
