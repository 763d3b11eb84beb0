// Package api provides the HTTP API for querying simulation state.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/migration-sim/internal/engine"
	"github.com/talgya/migration-sim/internal/flows"
	"github.com/talgya/migration-sim/internal/lifecycle"
	"github.com/talgya/migration-sim/internal/persistence"
	"github.com/talgya/migration-sim/internal/policy"
)

// Server serves the simulation state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	DB       *persistence.DB // optional, enables POST /api/v1/snapshot
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// CreateLimit caps create requests per client per hour. 0 = 60.
	CreateLimit int
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	limit := s.CreateLimit
	if limit <= 0 {
		limit = 60
	}
	createLimiter := NewRateLimiter(limit, time.Hour)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/flows", s.handleFlows)
	mux.HandleFunc("GET /api/v1/flow/{id}", s.handleFlowDetail)
	mux.HandleFunc("GET /api/v1/flow/{id}/outcome", s.handleFlowOutcome)
	mux.HandleFunc("GET /api/v1/policies", s.handlePolicies)
	mux.HandleFunc("GET /api/v1/policy/{id}", s.handlePolicyDetail)
	mux.HandleFunc("GET /api/v1/outcomes", s.handleOutcomes)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/city/{city}", s.handleCity)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("POST /api/v1/flows", s.adminOnly(RateLimitMiddleware(createLimiter, s.handleCreateFlow)))
	mux.HandleFunc("POST /api/v1/policies", s.adminOnly(RateLimitMiddleware(createLimiter, s.handleCreatePolicy)))
	mux.HandleFunc("POST /api/v1/flow/{id}/transition", s.adminOnly(s.handleFlowTransition))
	mux.HandleFunc("POST /api/v1/policy/{id}/transition", s.adminOnly(s.handlePolicyTransition))
	mux.HandleFunc("POST /api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine. Shut the returned
// server down to stop it.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// Shutdown stops srv, waiting up to timeout for open requests.
func Shutdown(srv *http.Server, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown", "error", err)
	}
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no MIGRASIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.Stats()
	status := map[string]any{
		"tick":            st.Tick,
		"sim_time":        engine.SimTime(s.Sim.Now()),
		"population":      st.TotalPopulation,
		"flows":           st.Flows,
		"active_flows":    st.ActiveFlows,
		"policies":        st.Policies,
		"active_policies": st.ActivePolicies,
		"avg_integration": st.AvgIntegration,
		"events":          st.Events,
	}
	writeJSON(w, status)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Stats())
}

func (s *Server) handleFlows(w http.ResponseWriter, r *http.Request) {
	if city := r.URL.Query().Get("city"); city != "" {
		writeJSON(w, s.Sim.CityFlows(city))
		return
	}
	writeJSON(w, s.Sim.Flows())
}

func (s *Server) handleFlowDetail(w http.ResponseWriter, r *http.Request) {
	f, err := s.Sim.Flow(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, f)
}

func (s *Server) handleFlowOutcome(w http.ResponseWriter, r *http.Request) {
	o, err := s.Sim.OutcomeForFlow(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, o)
}

func (s *Server) handlePolicies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Policies())
}

func (s *Server) handlePolicyDetail(w http.ResponseWriter, r *http.Request) {
	p, err := s.Sim.Policy(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, p)
}

func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	if city := r.URL.Query().Get("city"); city != "" {
		writeJSON(w, s.Sim.CityOutcomes(city))
		return
	}
	writeJSON(w, s.Sim.Outcomes())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	writeJSON(w, s.Sim.RecentEvents(limit))
}

func (s *Server) handleCity(w http.ResponseWriter, r *http.Request) {
	city := r.PathValue("city")
	cityFlows := s.Sim.CityFlows(city)

	population := 0
	for _, f := range cityFlows {
		if f.DestinationCityID == city {
			population += f.PopulationSize
		}
	}
	writeJSON(w, map[string]any{
		"city":       city,
		"population": population,
		"flows":      cityFlows,
		"outcomes":   s.Sim.CityOutcomes(city),
	})
}

func (s *Server) handleCreateFlow(w http.ResponseWriter, r *http.Request) {
	var req engine.FlowParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	f, err := s.Sim.CreateFlow(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, f)
}

func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req engine.PolicyParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	p, err := s.Sim.CreatePolicy(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, p)
}

type transitionRequest struct {
	Event string `json:"event"`
}

func (s *Server) handleFlowTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Event == "" {
		http.Error(w, "invalid json: event required", http.StatusBadRequest)
		return
	}
	f, err := s.Sim.TransitionFlow(r.Context(), r.PathValue("id"), flows.Event(req.Event))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, f)
}

func (s *Server) handlePolicyTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Event == "" {
		http.Error(w, "invalid json: event required", http.StatusBadRequest)
		return
	}
	p, err := s.Sim.TransitionPolicy(r.Context(), r.PathValue("id"), policy.Event(req.Event))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, p)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	snap := s.Sim.Snapshot()
	if err := s.DB.SaveSnapshot(snap); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"tick":    snap.Tick,
		"message": "snapshot saved",
	})
}

// writeError maps engine errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var transition *lifecycle.TransitionError
	switch {
	case errors.Is(err, engine.ErrFlowNotFound),
		errors.Is(err, engine.ErrPolicyNotFound),
		errors.Is(err, engine.ErrOutcomeNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrInvalidFlow), errors.Is(err, engine.ErrInvalidPolicy):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &transition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
