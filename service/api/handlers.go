package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	model "github.com/viant/tapedeck/model/session"
)

// SessionHandler handles session requests
type SessionHandler struct {
	controller Controller
	defaults   Defaults
}

// NewSessionHandler creates a session handler
func NewSessionHandler(controller Controller, defaults Defaults) *SessionHandler {
	return &SessionHandler{controller: controller, defaults: defaults}
}

type statusResponse struct {
	ID     uint32 `json:"id"`
	Status string `json:"status"`
}

type navigateRequest struct {
	URL string `json:"url"`
}

// Spawn handles POST /sessions
func (h *SessionHandler) Spawn(w http.ResponseWriter, r *http.Request) {
	cfg := &model.Config{}
	if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	h.applyDefaults(cfg)
	if err := h.controller.Spawn(r.Context(), cfg); err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, &statusResponse{ID: cfg.ID, Status: string(model.StateRunning)})
}

func (h *SessionHandler) applyDefaults(cfg *model.Config) {
	if cfg.FrameSize.Width == 0 && cfg.FrameSize.Height == 0 {
		cfg.FrameSize = h.defaults.FrameSize
	}
	if !cfg.PreviewEnabled {
		cfg.PreviewEnabled = h.defaults.Preview
	}
	if cfg.Sink.IsEmpty() && h.defaults.EncodeDir != "" {
		cfg.Sink.FilePath = model.RecordingPath(h.defaults.EncodeDir, cfg.ID)
	}
}

// Stop handles DELETE /sessions/{id}
func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.stop(w, r, id)
}

// StopByQuery handles GET /stop?id=N, id defaults to 0
func (h *SessionHandler) StopByQuery(w http.ResponseWriter, r *http.Request) {
	var id uint32
	if value := r.URL.Query().Get("id"); value != "" {
		parsed, err := parseID(value)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		id = parsed
	}
	h.stop(w, r, id)
}

func (h *SessionHandler) stop(w http.ResponseWriter, r *http.Request, id uint32) {
	if err := h.controller.Stop(r.Context(), id); err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, &statusResponse{ID: id, Status: string(model.StateStopped)})
}

// Navigate handles POST /sessions/{id}/navigate
func (h *SessionHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req := &navigateRequest{}
	if err = json.NewDecoder(r.Body).Decode(req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if err = h.controller.Navigate(r.Context(), id, req.URL); err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, &statusResponse{ID: id, Status: string(model.StateRunning)})
}

// List handles GET /sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.controller.List(r.Context())
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseID(value string) (uint32, error) {
	id, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid session id: %q", value)
	}
	return uint32(id), nil
}

// statusOf maps the session error taxonomy to HTTP statuses
func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrRegistryClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrNavigation):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
