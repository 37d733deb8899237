// Package api exposes the local debug and tooling surface over HTTP: match
// introspection, per-participant views, synthetic input injection and
// journal verification.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sensen-game/sensen-core/internal/journal"
	"github.com/sensen-game/sensen-core/internal/rollback"
	"github.com/sensen-game/sensen-core/internal/scripting"
	"github.com/sensen-game/sensen-core/internal/sim"
)

// Server handles HTTP requests.
type Server struct {
	coordinator *rollback.Coordinator
	journal     *journal.Store
	simulation  *sim.Simulation
	driver      *scripting.Driver // optional, nil when no bot script runs
	logger      *log.Logger
}

// NewServer creates a new API server. The journal and driver are optional.
func NewServer(c *rollback.Coordinator, s *sim.Simulation, j *journal.Store, d *scripting.Driver, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(os.Stdout, "[API] ", log.LstdFlags)
	}
	return &Server{
		coordinator: c,
		journal:     j,
		simulation:  s,
		driver:      d,
		logger:      logger,
	}
}

// Routes sets up the HTTP routes.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Heartbeat("/health"))

	r.Get("/match", s.handleMatch)
	r.Get("/match/view/{participant}", s.handleView)
	r.Post("/match/input", s.handleInput)

	r.Get("/matches", s.handleListMatches)
	r.Get("/matches/{id}/verify", s.handleVerify)

	r.Get("/script/logs", s.handleScriptLogs)

	return r
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
