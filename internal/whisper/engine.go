// Package whisper runs the whisper.cpp command line recognizer and manages
// its model files.
package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattjoyce/dictation/internal/config"
	"github.com/mattjoyce/dictation/internal/log"
	"github.com/mattjoyce/dictation/internal/transcript"
)

// ErrModelNotFound is returned when the requested model is not installed.
var ErrModelNotFound = errors.New("whisper model not found")

// RunFunc executes a command and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Engine transcribes audio files with whisper-cli.
type Engine struct {
	binary  string
	ffmpeg  string
	threads int
	models  *Models
	run     RunFunc
	logger  *slog.Logger
}

// NewEngine returns an Engine configured from cfg, resolving models through models.
func NewEngine(cfg config.WhisperConfig, models *Models) *Engine {
	return &Engine{
		binary:  cfg.Binary,
		ffmpeg:  cfg.FFmpegBinary,
		threads: cfg.Threads,
		models:  models,
		run:     execRunner,
		logger:  log.WithComponent("whisper"),
	}
}

// output mirrors the parts of whisper-cli's -oj document we read.
type output struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Transcribe recognizes speech in file using model and language.
func (e *Engine) Transcribe(ctx context.Context, file, model, language string) (transcript.EngineOutput, error) {
	info, err := os.Stat(file)
	if err != nil {
		return transcript.EngineOutput{}, fmt.Errorf("audio file: %w", err)
	}

	if !ValidName(model) {
		return transcript.EngineOutput{}, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	if !e.models.Exists(model) {
		return transcript.EngineOutput{}, fmt.Errorf("%w: '%s'. Run: dictation model download %s", ErrModelNotFound, model, model)
	}

	work, err := os.MkdirTemp("", "dictation-whisper-*")
	if err != nil {
		return transcript.EngineOutput{}, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(work)

	logger := e.logger.With("audio_file", file, "model", model, "language", language)

	input := file
	format, err := Inspect(file)
	if err != nil {
		return transcript.EngineOutput{}, err
	}
	if !format.IsTarget() {
		logger.Debug("converting audio", "container", format.Container,
			"sample_rate", format.SampleRate, "channels", format.Channels)
		input = filepath.Join(work, "input.wav")
		if err := e.convertToTarget(ctx, file, input); err != nil {
			return transcript.EngineOutput{}, err
		}
	}

	base := filepath.Join(work, "out")
	args := []string{
		"-m", e.models.Path(model),
		"-f", input,
		"-l", language,
		"-t", strconv.Itoa(e.threads),
		"-oj",
		"-of", base,
		"-np",
	}
	logger.Debug("running whisper", "binary", e.binary, "args", args)
	if out, err := e.run(ctx, e.binary, args...); err != nil {
		return transcript.EngineOutput{}, fmt.Errorf("%s: %w: %s", e.binary, err, lastLine(out))
	}

	data, err := os.ReadFile(base + ".json")
	if err != nil {
		return transcript.EngineOutput{}, fmt.Errorf("read whisper output: %w", err)
	}
	segments, err := parseOutput(data)
	if err != nil {
		return transcript.EngineOutput{}, err
	}

	return transcript.EngineOutput{
		Text:     transcript.JoinSegments(segments),
		Segments: segments,
		FileSize: info.Size(),
	}, nil
}

func parseOutput(data []byte) ([]transcript.Segment, error) {
	var doc output
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}
	segments := make([]transcript.Segment, 0, len(doc.Transcription))
	for _, t := range doc.Transcription {
		segments = append(segments, transcript.Segment{
			Start: t.Offsets.From,
			End:   t.Offsets.To,
			Text:  t.Text,
		})
	}
	return segments, nil
}

func lastLine(out []byte) string {
	s := strings.TrimSpace(string(out))
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
