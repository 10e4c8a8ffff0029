package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	gsync "github.com/ganttd/ganttd/internal/gantt/sync"
)

// InvalidBodyMessage is returned with 400 when a sync body cannot be decoded.
const InvalidBodyMessage = "invalid request body"

// handleLoad serves GET /api/load.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	resp, err := s.engine.Load(r.Context(), r.Header.Get(RequestIDHeader))
	if err != nil {
		s.requestLog(r).WithError(err).Error("failed to load tasks")
		writeJSON(w, http.StatusInternalServerError, gsync.ErrorResponse{
			Success: false,
			Message: gsync.LoadFailedMessage,
		})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSync serves POST /api/sync. Engine failures are reported inside a
// 200 envelope; only an undecodable body changes the status.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var req gsync.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.requestLog(r).WithError(err).Warn("rejected sync request")
		writeJSON(w, status, gsync.ErrorResponse{
			Success: false,
			Message: InvalidBodyMessage,
		})
		return
	}

	writeJSON(w, http.StatusOK, s.engine.Sync(r.Context(), &req))
}

// handleHealth reports whether the store answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "ok"}
	if s.cfg.Feed != nil {
		body["clients"] = s.cfg.Feed.ClientCount()
	}

	status := http.StatusOK
	if s.cfg.Health != nil {
		if err := s.cfg.Health(r.Context()); err != nil {
			s.requestLog(r).WithError(err).Warn("health check failed")
			body["status"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, body)
}

func (s *Server) requestLog(r *http.Request) logrus.FieldLogger {
	return s.log.WithFields(logrus.Fields{
		"request_id": RequestID(r.Context()),
		"path":       r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
