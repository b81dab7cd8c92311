package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/crowdcast/presenced/internal/engine"
	"github.com/crowdcast/presenced/internal/host"
	"github.com/crowdcast/presenced/internal/logger"
)

const targetsTimeout = 15 * time.Second

// TargetLister enumerates capturable windows on demand.
type TargetLister interface {
	ListTargets(ctx context.Context) ([]host.Target, error)
}

// Server exposes the presence engine over HTTP and WebSocket.
type Server struct {
	router    *mux.Router
	engine    *engine.Engine
	targets   TargetLister
	probeName string
	upgrader  websocket.Upgrader
	srv       *http.Server
	log       *zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(eng *engine.Engine, targets TargetLister, probeName string) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		engine:    eng,
		targets:   targets,
		probeName: probeName,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
		log: logger.WithComponent("api"),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Presence state
	api.HandleFunc("/sources", s.handleGetSources).Methods("GET")
	api.HandleFunc("/events", s.handleEventStream)

	// Capture targets
	api.HandleFunc("/targets", s.handleGetTargets).Methods("GET")

	// Manual capture override
	api.HandleFunc("/capture", s.handleSetCapture).Methods("POST")

	// Health check
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.log.Info().Str("addr", addr).Msg("Starting API server")
	s.srv = &http.Server{Addr: addr, Handler: s.enableCORS(s.router)}
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HTTP Handlers

func (s *Server) handleGetSources(w http.ResponseWriter, r *http.Request) {
	sources, anyHooked, manualMode := s.engine.Status()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatusResponse{
		Sources:    sources,
		AnyHooked:  anyHooked,
		ManualMode: manualMode,
	})
}

func (s *Server) handleGetTargets(w http.ResponseWriter, r *http.Request) {
	if s.targets == nil {
		http.Error(w, "target enumeration unavailable", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), targetsTimeout)
	defer cancel()

	targets, err := s.targets.ListTargets(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	suggested := make([]host.Target, 0)
	for _, target := range targets {
		if target.Suggested {
			suggested = append(suggested, target)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TargetsResponse{Targets: targets, Suggested: suggested})
}

func (s *Server) handleSetCapture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	anyHooked, manualMode := s.engine.SetManualCapture(req.Enabled)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CaptureResponse{
		Success:    true,
		Enabled:    req.Enabled,
		ManualMode: manualMode,
		AnyHooked:  anyHooked,
	})
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// Subscribe before sending the initial state so no transition is
	// lost between snapshot and stream.
	updates := s.engine.Subscribe()
	defer s.engine.Unsubscribe(updates)

	_, anyHooked, _ := s.engine.Status()
	if err := conn.WriteJSON(engine.Event{AnyHooked: anyHooked}); err != nil {
		return
	}

	for ev := range updates {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{
		Status:     "healthy",
		Probe:      s.probeName,
		ManualMode: s.engine.ManualMode(),
	})
}
