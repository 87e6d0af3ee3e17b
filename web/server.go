package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/custom_errors"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/events"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/models"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/queue"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/storage"
	"github.com/KarimZoPr0/Game-Code-Execution-Engine-sub000/internal/workerpool"
)

// Server is the request boundary: it assigns job ids, feeds the queue and
// exposes the progress/reload streams and promoted artifacts.
type Server struct {
	queue     *queue.BuildQueue
	pool      *workerpool.Pool
	bus       *events.Bus
	artifacts *storage.ArtifactStore
}

func NewServer(q *queue.BuildQueue, pool *workerpool.Pool, bus *events.Bus, artifacts *storage.ArtifactStore) *Server {
	return &Server{queue: q, pool: pool, bus: bus, artifacts: artifacts}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/builds", s.handleSubmitBuild)
		r.Get("/builds/{id}", s.handleGetBuild)
		r.Delete("/builds/{id}", s.handleCancelBuild)
		r.Get("/builds/{id}/events", s.handleBuildEvents)
		r.Get("/reload/events", s.handleReloadEvents)
		r.Get("/stats", s.handleStats)
	})
	r.Get("/builds/{id}/*", s.handleArtifact)

	return r
}

type buildRequest struct {
	Files         []models.SourceFile  `json:"files"`
	EntryPoint    string               `json:"entryPoint"`
	Language      string               `json:"language"`
	Profile       *models.BuildProfile `json:"profile,omitempty"`
	TargetBuildID string               `json:"targetBuildId,omitempty"`
	Priority      int                  `json:"priority,omitempty"`
}

// POST /api/builds -> queue a compilation and return the assigned job id.
func (s *Server) handleSubmitBuild(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, "at least one source file is required")
		return
	}
	if req.EntryPoint == "" {
		writeError(w, http.StatusBadRequest, "entryPoint is required")
		return
	}

	job := &models.BuildJob{
		ID:            uuid.NewString(),
		Files:         req.Files,
		EntryPoint:    req.EntryPoint,
		Language:      req.Language,
		Profile:       req.Profile,
		TargetBuildID: req.TargetBuildID,
		Priority:      req.Priority,
	}

	queued, err := s.queue.Enqueue(job)
	if err != nil {
		if errors.Is(err, custom_errors.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"id":       queued.ID,
		"status":   queued.Status,
		"priority": queued.Priority,
	})
}

// GET /api/builds/{id} -> job snapshot.
func (s *Server) handleGetBuild(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.queue.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "build not found")
		return
	}

	// The payload can be large; the status endpoint omits it.
	job.Files = nil
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

// DELETE /api/builds/{id} -> cancel a pending build.
func (s *Server) handleCancelBuild(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.queue.Get(id); !ok {
		writeError(w, http.StatusNotFound, "build not found")
		return
	}
	if !s.queue.CancelJob(id, "cancelled by client") {
		writeError(w, http.StatusConflict, "build is no longer pending")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"id": id, "cancelled": true})
}

// GET /api/builds/{id}/events -> per-job progress stream (SSE). The stream
// ends on the job's terminal event.
func (s *Server) handleBuildEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Subscribe before inspecting the snapshot so no terminal event can slip
	// between the two.
	ch, cancel := s.bus.Subscribe(id)
	defer cancel()

	job, ok := s.queue.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "build not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if job.Status.Terminal() {
		writeSSE(w, terminalEventFor(job))
		flusher.Flush()
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
			if ev.Terminal() {
				return
			}
		}
	}
}

// GET /api/reload/events -> pool-wide hot-reload stream (SSE). Running
// sessions keep this open for the process lifetime.
func (s *Server) handleReloadEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ch, cancel := s.bus.SubscribeBroadcast()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

// GET /builds/{id}/* -> serve one promoted artifact file for previews.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rel := chi.URLParam(r, "*")
	if rel == "" {
		rel = "index.html"
	}

	file, err := s.artifacts.Open(id, rel)
	if err != nil {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "artifact unreadable")
		return
	}
	http.ServeContent(w, r, filepath.Base(rel), info.ModTime(), file)
}

// GET /api/stats -> pool and queue snapshot.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.pool.Stats())
}

// terminalEventFor synthesizes the terminal event for a subscriber that
// arrived after the job finished.
func terminalEventFor(job *models.BuildJob) models.BuildEvent {
	ev := models.BuildEvent{
		JobID:     job.ID,
		Timestamp: time.Now().UnixMilli(),
	}
	if job.CompletedAt != nil {
		ev.Timestamp = job.CompletedAt.UnixMilli()
	}
	switch {
	case job.Error != nil:
		ev.Type = models.EventError
		ev.Message = *job.Error
	default:
		ev.Type = models.EventDone
		ev.PreviewPath = job.PreviewPath
	}
	return ev
}

func writeSSE(w http.ResponseWriter, ev models.BuildEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("marshal sse event: %v", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
