// Package api exposes the task store over HTTP: REST routes for the board
// and inbox, a change stream for live clients, and the import/assist
// collaborators.
package api

import (
	"encoding/json"
	"log"
	"net/http"

	"brainboard/pkg/assist"
	"brainboard/pkg/gcal"
	"brainboard/pkg/sync"
	"brainboard/pkg/task"
)

// Server is the HTTP API server.
type Server struct {
	store       *task.Store
	engine      *sync.Engine        // nil in local-only mode
	importer    *gcal.Importer      // nil when calendar import is not configured
	transcriber *assist.Transcriber // nil when transcription is not configured
	mux         *http.ServeMux
}

// New creates a new Server. engine, importer and transcriber may each be nil;
// their routes answer 503 when unconfigured.
func New(store *task.Store, engine *sync.Engine, importer *gcal.Importer, transcriber *assist.Transcriber) *Server {
	s := &Server{
		store:       store,
		engine:      engine,
		importer:    importer,
		transcriber: transcriber,
		mux:         http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Tasks
	s.mux.HandleFunc("GET /api/tasks", s.handleTaskList)
	s.mux.HandleFunc("POST /api/tasks", s.handleTaskCreate)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskGet)
	s.mux.HandleFunc("PATCH /api/tasks/{id}", s.handleTaskUpdate)
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.handleTaskDelete)
	s.mux.HandleFunc("POST /api/tasks/{id}/move", s.handleTaskMove)
	s.mux.HandleFunc("POST /api/tasks/{id}/toggle", s.handleTaskToggle)

	// Board
	s.mux.HandleFunc("GET /api/board", s.handleBoard)
	s.mux.HandleFunc("GET /api/stream", s.handleStream)

	// Collaborators
	s.mux.HandleFunc("POST /api/import", s.handleImport)
	s.mux.HandleFunc("POST /api/resync", s.handleResync)
	s.mux.HandleFunc("POST /api/assist/transcribe", s.handleTranscribe)
	s.mux.HandleFunc("POST /api/assist/extract", s.handleExtract)
	s.mux.HandleFunc("POST /api/assist/summary", s.handleSummary)

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	all := s.store.All()
	unscheduled, pending := 0, 0
	for _, t := range all {
		if !t.Scheduled() {
			unscheduled++
		}
		if t.Status == task.StatusPending {
			pending++
		}
	}
	writeJSON(w, 200, map[string]any{
		"tasks":       len(all),
		"unscheduled": unscheduled,
		"pending":     pending,
		"syncing":     s.engine != nil,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
