package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/dictation/internal/dictation"
	"github.com/mattjoyce/dictation/internal/history"
	"github.com/mattjoyce/dictation/internal/recorder"
	"github.com/mattjoyce/dictation/internal/whisper"
)

const maxListLimit = 500

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	info, err := s.dictation.RecordingInfo(r.Context())
	if err != nil {
		s.logger.Warn("failed to read recording state", "error", err)
	}
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Recording:     info != nil,
		Model:         s.dictation.Effective(r.Context()).Model,
	})
}

// handleRecordingStatus handles GET /recording.
func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.dictation.RecordingInfo(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, recordingResponse(info))
}

func recordingResponse(info *recorder.Info) RecordingResponse {
	if info == nil {
		return RecordingResponse{}
	}
	started := info.StartedAt
	return RecordingResponse{
		Recording:      true,
		PID:            info.PID,
		File:           info.File,
		StartedAt:      &started,
		ElapsedSeconds: int64(info.Elapsed.Seconds()),
	}
}

// handleRecordingStart handles POST /recording/start.
func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	path, err := s.dictation.StartRecording(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, RecordingResponse{Recording: true, File: path})
}

// handleRecordingStop handles POST /recording/stop. Text is never injected
// from the web context.
func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	var req StopRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	noInject := false
	o, err := s.dictation.StopRecording(r.Context(), dictation.StopOptions{Inject: &noInject, KeepAudio: req.KeepAudio})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, StopResponse{Outcome: o})
}

// handleTranscribe handles POST /transcriptions.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req TranscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := os.Stat(req.File); err != nil {
		s.writeError(w, http.StatusNotFound, "file not found: "+req.File)
		return
	}

	noInject := false
	o, err := s.dictation.Transcribe(r.Context(), dictation.TranscribeRequest{
		File:      req.File,
		Model:     req.Model,
		Language:  req.Language,
		Inject:    &noInject,
		KeepAudio: !req.DeleteAudio,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

// handleListTranscriptions handles GET /transcriptions?limit=N.
func (s *Server) handleListTranscriptions(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			s.writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and "+strconv.Itoa(maxListLimit))
			return
		}
		limit = n
	}
	entries, err := s.dictation.History(r.Context(), limit)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	respondJSON(w, http.StatusOK, TranscriptionListResponse{Transcriptions: entries})
}

// handleGetTranscription handles GET /transcriptions/{id}.
func (s *Server) handleGetTranscription(w http.ResponseWriter, r *http.Request) {
	entry, err := s.dictation.HistoryEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// handleListModels handles GET /models.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ModelListResponse{
		Active: s.dictation.Effective(r.Context()).Model,
		Models: s.dictation.ListModels(),
	})
}

// handleDownloadModel handles POST /models/{name}/download.
func (s *Server) handleDownloadModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	res, err := s.dictation.DownloadModel(r.Context(), name, nil)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	status := http.StatusCreated
	if res.Existed {
		status = http.StatusOK
	}
	respondJSON(w, status, res)
}

// handleDeleteModel handles DELETE /models/{name}.
func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	deleted, err := s.dictation.DeleteModel(name)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if !deleted {
		s.writeError(w, http.StatusNotFound, "model not installed: "+name)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, recorder.ErrAlreadyRecording):
		return http.StatusConflict
	case errors.Is(err, recorder.ErrSpawnFailed):
		return http.StatusInternalServerError
	case errors.Is(err, whisper.ErrModelNotFound),
		errors.Is(err, whisper.ErrUnknownModel),
		errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dictation.ErrTranscriptionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	s.writeError(w, status, err.Error())
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
