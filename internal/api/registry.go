// Package api provides REST API endpoints for the callsign registry.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"encoding/json"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/marcoculver/adsb-logger/internal/callsign"
)

// RegistryServer provides REST API access to the callsign registry.
type RegistryServer struct {
	db          *callsign.DB
	port        int
	authEnabled bool
	apiKeys     map[string]bool // Simple API key auth (when enabled).
}

// Config holds configuration for the registry API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string // List of valid API keys.
}

// NewRegistryServer creates a new registry API server.
func NewRegistryServer(db *callsign.DB, cfg Config) *RegistryServer {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}
	return &RegistryServer{
		db:          db,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// Run starts the HTTP server.
func (s *RegistryServer) Run() error {
	addr := ":" + strconv.Itoa(s.port)
	logrus.WithFields(logrus.Fields{
		"addr": addr,
		"auth": s.authEnabled,
	}).Info("registry API starting")

	return http.ListenAndServe(addr, s.router())
}

func (s *RegistryServer) router() chi.Router {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for browser access.
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required).
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			if s.authEnabled {
				r.Use(s.authMiddleware)
			}
			r.Get("/callsigns", s.handleListCallsigns)
			r.Get("/callsigns/{callsign}", s.handleGetCallsign)
			r.Get("/callsigns/{callsign}/schedule", s.handleGetSchedule)
			r.Get("/stats", s.handleStats)
		})
	})

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *RegistryServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter (for simple testing).
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}
		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CallsignResponse is the JSON form of one registry entry.
type CallsignResponse struct {
	Callsign      string `json:"callsign"`
	FlightNumber  string `json:"flight_number,omitempty"`
	Route         string `json:"route,omitempty"`
	Origin        string `json:"origin,omitempty"`
	Destination   string `json:"destination,omitempty"`
	Airline       string `json:"airline,omitempty"`
	HexCode       string `json:"hex_code,omitempty"`
	AircraftType  string `json:"aircraft_type,omitempty"`
	Registration  string `json:"registration,omitempty"`
	FirstSeen     string `json:"first_seen"`
	LastSeen      string `json:"last_seen"`
	SightingCount int    `json:"sighting_count"`
}

func entryToResponse(e *callsign.Entry) CallsignResponse {
	return CallsignResponse{
		Callsign:      e.Callsign,
		FlightNumber:  e.FlightNumber,
		Route:         e.Route,
		Origin:        e.Origin,
		Destination:   e.Destination,
		Airline:       e.Airline,
		HexCode:       e.HexCode,
		AircraftType:  e.AircraftType,
		Registration:  e.Registration,
		FirstSeen:     e.FirstSeen,
		LastSeen:      e.LastSeen,
		SightingCount: e.SightingCount,
	}
}

func (s *RegistryServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *RegistryServer) handleListCallsigns(w http.ResponseWriter, r *http.Request) {
	airline := r.URL.Query().Get("airline")

	entries, err := s.db.All(airline)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]CallsignResponse, 0, len(entries))
	for i := range entries {
		results = append(results, entryToResponse(&entries[i]))
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *RegistryServer) handleGetCallsign(w http.ResponseWriter, r *http.Request) {
	cs := strings.ToUpper(chi.URLParam(r, "callsign"))
	if cs == "" {
		writeError(w, http.StatusBadRequest, "callsign is required")
		return
	}

	entry, err := s.db.Get(cs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "Callsign not found")
		return
	}
	writeJSON(w, http.StatusOK, entryToResponse(entry))
}

func (s *RegistryServer) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	cs := strings.ToUpper(chi.URLParam(r, "callsign"))
	if cs == "" {
		writeError(w, http.StatusBadRequest, "callsign is required")
		return
	}

	sched, err := s.db.Schedule(cs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sched.TotalSightings == 0 {
		writeError(w, http.StatusNotFound, "No sightings for callsign")
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *RegistryServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
