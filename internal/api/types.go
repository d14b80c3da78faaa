package api

import (
	"time"

	"github.com/mattjoyce/dictation/internal/dictation"
	"github.com/mattjoyce/dictation/internal/history"
	"github.com/mattjoyce/dictation/internal/whisper"
)

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Recording     bool   `json:"recording"`
	Model         string `json:"model"`
}

// RecordingResponse is returned by GET /recording and POST /recording/start.
type RecordingResponse struct {
	Recording      bool       `json:"recording"`
	PID            int        `json:"pid,omitempty"`
	File           string     `json:"file,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ElapsedSeconds int64      `json:"elapsed_seconds,omitempty"`
}

// StopRequest is the optional body of POST /recording/stop.
type StopRequest struct {
	KeepAudio bool `json:"keep_audio"`
}

// StopResponse carries the outcome, which is null when no audio was captured.
type StopResponse struct {
	Outcome *dictation.Outcome `json:"outcome"`
}

// TranscribeRequest is the body of POST /transcriptions.
type TranscribeRequest struct {
	File        string `json:"file" validate:"required"`
	Model       string `json:"model,omitempty" validate:"omitempty,max=32"`
	Language    string `json:"language,omitempty" validate:"omitempty,min=2,max=8"`
	DeleteAudio bool   `json:"delete_audio,omitempty"`
}

type TranscriptionListResponse struct {
	Transcriptions []history.Entry `json:"transcriptions"`
}

type ModelListResponse struct {
	Active string              `json:"active"`
	Models []whisper.ModelInfo `json:"models"`
}
