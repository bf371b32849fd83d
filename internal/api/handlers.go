// Package api provides HTTP handlers for InterviewPipe endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/interviewpipe/interviewpipe/internal/models"
	"github.com/interviewpipe/interviewpipe/internal/voice"
)

// turnRequest is the body for POST /turn.
type turnRequest struct {
	UserHandle  int64  `json:"user_handle"`
	DisplayName string `json:"display_name,omitempty"`
	Message     string `json:"message"`
}

// voiceRequest is the body for POST /voice. Action "confirm" replays a held
// low-confidence transcript; otherwise the transcription is processed.
type voiceRequest struct {
	UserHandle    int64               `json:"user_handle"`
	DisplayName   string              `json:"display_name,omitempty"`
	Action        string              `json:"action,omitempty"`
	Transcription voice.Transcription `json:"transcription"`
}

// sessionRequest is the body for POST /reset and /complete.
type sessionRequest struct {
	UserHandle int64 `json:"user_handle"`
}

func (s *Server) turnHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.turnHandler: processing turn request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.turnHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Message == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("message is required"))
		return
	}

	turn, err := s.orchestrator.HandleUserTurn(r.Context(), req.UserHandle, req.DisplayName, req.Message)
	if err != nil {
		writeOrchestratorError(w, "turnHandler", err)
		return
	}
	slog.Info("Server.turnHandler: turn processed", "userHandle", req.UserHandle, "stage", turn.Stage, "archived", turn.Archived)
	writeJSONResponse(w, http.StatusOK, models.Success(turn))
}

func (s *Server) voiceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.voiceHandler: processing voice request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req voiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.voiceHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	var (
		turn models.OutboundTurn
		err  error
	)
	if req.Action == "confirm" {
		turn, err = s.orchestrator.ConfirmVoiceTurn(r.Context(), req.UserHandle, req.DisplayName)
	} else {
		turn, err = s.orchestrator.HandleVoiceTurn(r.Context(), req.UserHandle, req.DisplayName, req.Transcription)
	}
	if err != nil {
		writeOrchestratorError(w, "voiceHandler", err)
		return
	}
	if len(turn.SuggestedActions) > 0 {
		writeJSONResponse(w, http.StatusOK, models.Pending("transcription needs confirmation", turn))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(turn))
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	turn, err := s.orchestrator.Reset(r.Context(), req.UserHandle)
	if err != nil {
		writeOrchestratorError(w, "resetHandler", err)
		return
	}
	slog.Info("Server.resetHandler: session reset", "userHandle", req.UserHandle)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Interview reset", turn))
}

func (s *Server) completeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	turn, err := s.orchestrator.Complete(r.Context(), req.UserHandle)
	if err != nil {
		writeOrchestratorError(w, "completeHandler", err)
		return
	}
	slog.Info("Server.completeHandler: session completed", "userHandle", req.UserHandle)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Interview archived", turn))
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userHandle, err := strconv.ParseInt(r.URL.Query().Get("user_handle"), 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("user_handle query parameter is required"))
		return
	}
	report, err := s.orchestrator.Status(r.Context(), userHandle)
	if err != nil {
		writeOrchestratorError(w, "statusHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(report))
}

func (s *Server) personasHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	type personaInfo struct {
		ID          models.Persona `json:"id"`
		Description string         `json:"description"`
		Default     bool           `json:"default,omitempty"`
	}
	personas := make([]personaInfo, 0, len(models.Personas()))
	for _, p := range models.Personas() {
		personas = append(personas, personaInfo{
			ID:          p,
			Description: p.Description(),
			Default:     p == models.DefaultPersona,
		})
	}
	writeJSONResponse(w, http.StatusOK, models.Success(personas))
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}

// writeOrchestratorError maps orchestrator errors onto HTTP status codes.
func writeOrchestratorError(w http.ResponseWriter, handler string, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidUserHandle):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
	case errors.Is(err, models.ErrSessionNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error("no active interview session"))
	default:
		slog.Error("Server."+handler+": request failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
	}
}
