// Package tools defines the dictation tools served over the stdio protocol.
package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/mattjoyce/dictation/internal/dictation"
	"github.com/mattjoyce/dictation/internal/mcp"
	"github.com/mattjoyce/dictation/internal/recorder"
	"github.com/mattjoyce/dictation/internal/whisper"
)

// ErrFileNotFound is returned by dictation_transcribe for a missing audio file.
var ErrFileNotFound = errors.New("file not found")

// Dictation is the orchestrator surface the tools drive.
type Dictation interface {
	StartRecording(ctx context.Context) (string, error)
	StopRecording(ctx context.Context, opts dictation.StopOptions) (*dictation.Outcome, error)
	Transcribe(ctx context.Context, req dictation.TranscribeRequest) (*dictation.Outcome, error)
	IsRecording(ctx context.Context) bool
	RecordingInfo(ctx context.Context) (*recorder.Info, error)
	ListModels() []whisper.ModelInfo
	ModelExists(name string) bool
	DownloadModel(ctx context.Context, name string, progress whisper.ProgressFunc) (whisper.DownloadResult, error)
	Effective(ctx context.Context) dictation.Settings
}

type stopArgs struct {
	Inject *bool `mapstructure:"inject"`
}

type transcribeArgs struct {
	File     string `mapstructure:"file"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
}

type downloadArgs struct {
	Model string `mapstructure:"model"`
}

// Registry returns the six dictation tools in their advertised order.
func Registry(d Dictation) (*mcp.Registry, error) {
	h := &handlers{d: d}
	return mcp.NewRegistry(
		mcp.Tool{
			Name:        "dictation_start",
			Description: "Start recording audio from the microphone for speech-to-text dictation. Returns the audio file path.",
			Handler:     h.start,
		},
		mcp.Tool{
			Name:        "dictation_stop",
			Description: "Stop recording and transcribe the audio to text using whisper.cpp. Returns the transcribed text. Optionally injects text into the focused window.",
			Params: []mcp.Param{
				{Name: "inject", Type: "boolean", Description: "Inject transcribed text into focused window (default: from preferences, then config)"},
			},
			Handler: h.stop,
		},
		mcp.Tool{
			Name:        "dictation_transcribe",
			Description: "Transcribe an existing audio file to text using whisper.cpp.",
			Params: []mcp.Param{
				{Name: "file", Type: "string", Description: "Path to audio file (WAV format)", Required: true},
				{Name: "model", Type: "string", Description: "Whisper model to use (default: base.en)"},
				{Name: "language", Type: "string", Description: "Language code (default: en)"},
			},
			Handler: h.transcribe,
		},
		mcp.Tool{
			Name:        "dictation_status",
			Description: "Check if dictation is currently recording.",
			Handler:     h.status,
		},
		mcp.Tool{
			Name:        "dictation_models",
			Description: "List available whisper models and their installation status.",
			Handler:     h.models,
		},
		mcp.Tool{
			Name:        "dictation_model_download",
			Description: "Download a whisper model for transcription.",
			Params: []mcp.Param{
				{Name: "model", Type: "string", Description: "Model name (e.g., tiny.en, base.en, small.en, medium.en, large)", Required: true},
			},
			Handler: h.download,
		},
	)
}

type handlers struct {
	d Dictation
}

func decode(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (h *handlers) start(ctx context.Context, _ map[string]any) (string, error) {
	path, err := h.d.StartRecording(ctx)
	if errors.Is(err, recorder.ErrAlreadyRecording) {
		return "Already recording. Use dictation_stop to stop and transcribe.", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to start recording: %w", err)
	}
	return fmt.Sprintf("Recording started. Audio file: %s\nSpeak now, then use dictation_stop when done.", path), nil
}

func (h *handlers) stop(ctx context.Context, args map[string]any) (string, error) {
	var a stopArgs
	if err := decode(args, &a); err != nil {
		return "", err
	}
	if !h.d.IsRecording(ctx) {
		return "No recording in progress. Use dictation_start first.", nil
	}
	o, err := h.d.StopRecording(ctx, dictation.StopOptions{Inject: a.Inject})
	if err != nil {
		return "", err
	}
	if o == nil {
		return "Recording stopped but no audio was captured.", nil
	}
	return formatOutcome(o), nil
}

func (h *handlers) transcribe(ctx context.Context, args map[string]any) (string, error) {
	var a transcribeArgs
	if err := decode(args, &a); err != nil {
		return "", err
	}
	if a.File == "" {
		return "", errors.New("file is required")
	}
	if _, err := os.Stat(a.File); err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, a.File)
	}
	noInject := false
	o, err := h.d.Transcribe(ctx, dictation.TranscribeRequest{
		File:      a.File,
		Model:     a.Model,
		Language:  a.Language,
		Inject:    &noInject,
		KeepAudio: true,
	})
	if err != nil {
		return "", err
	}
	return formatOutcome(o), nil
}

func (h *handlers) status(ctx context.Context, _ map[string]any) (string, error) {
	info, err := h.d.RecordingInfo(ctx)
	if err != nil {
		return "", err
	}
	if info == nil {
		return "Not recording.", nil
	}
	return fmt.Sprintf("Recording in progress for %ds.\nFile: %s", int(info.Elapsed.Seconds()), info.File), nil
}

func (h *handlers) models(ctx context.Context, _ map[string]any) (string, error) {
	active := h.d.Effective(ctx).Model
	lines := []string{fmt.Sprintf("Available whisper models (active: %s):\n", active)}
	for _, m := range h.d.ListModels() {
		status := "not downloaded"
		if m.Installed {
			status = "installed"
		}
		marker := ""
		if m.Name == active {
			marker = " *"
		}
		line := fmt.Sprintf("  %s%s - %s", m.Name, marker, status)
		if m.Size > 0 {
			line += fmt.Sprintf(" (%d MB)", (m.Size+(1<<19))>>20)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

func (h *handlers) download(ctx context.Context, args map[string]any) (string, error) {
	var a downloadArgs
	if err := decode(args, &a); err != nil {
		return "", err
	}
	if a.Model == "" {
		return "", errors.New("model is required")
	}
	if h.d.ModelExists(a.Model) {
		return fmt.Sprintf("Model '%s' is already downloaded.", a.Model), nil
	}
	res, err := h.d.DownloadModel(ctx, a.Model, nil)
	if err != nil {
		return "", err
	}
	if res.Existed {
		return fmt.Sprintf("Model '%s' is already downloaded.", a.Model), nil
	}
	return fmt.Sprintf("Model '%s' downloaded to: %s", a.Model, res.Path), nil
}

func formatOutcome(o *dictation.Outcome) string {
	r := o.Result
	var b strings.Builder
	fmt.Fprintf(&b, "Transcription: %s\n", r.Text)
	fmt.Fprintf(&b, "Model: %s | Language: %s | Processing: %.1fs | Segments: %d",
		r.Model, r.Language, r.Processing().Seconds(), len(r.Segments))
	if o.Injected {
		b.WriteString("\nText injected into focused window.")
	}
	return b.String()
}
