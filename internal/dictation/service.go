// Package dictation ties recording, speech recognition, history and text
// injection into the operations exposed by the CLI, the HTTP API and the
// stdio tool server.
package dictation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattjoyce/dictation/internal/config"
	"github.com/mattjoyce/dictation/internal/events"
	"github.com/mattjoyce/dictation/internal/history"
	"github.com/mattjoyce/dictation/internal/log"
	"github.com/mattjoyce/dictation/internal/metrics"
	"github.com/mattjoyce/dictation/internal/recorder"
	"github.com/mattjoyce/dictation/internal/settings"
	"github.com/mattjoyce/dictation/internal/transcript"
	"github.com/mattjoyce/dictation/internal/whisper"
)

// ErrTranscriptionFailed wraps every speech engine failure.
var ErrTranscriptionFailed = errors.New("transcription failed")

// Step names the post-transcription side effects.
type Step string

const (
	StepPersist Step = "persist"
	StepInject  Step = "inject"
	StepCleanup Step = "cleanup"
)

// StepStatus is the outcome of one step.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepSkipped StepStatus = "skipped"
	StepFailed  StepStatus = "failed"
)

// StepOutcome records what happened to one step.
type StepOutcome struct {
	Step   Step       `json:"step"`
	Status StepStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// Outcome is the result of a transcription and its side effects. Result is
// always populated; step failures never discard it.
type Outcome struct {
	Result       transcript.Result `json:"result"`
	HistoryID    string            `json:"history_id,omitempty"`
	Injected     bool              `json:"injected"`
	AudioDeleted bool              `json:"audio_deleted"`
	Steps        []StepOutcome     `json:"steps"`
}

// StepStatus returns the recorded status of step, or "" if it never ran.
func (o *Outcome) StepStatus(step Step) StepStatus {
	for _, s := range o.Steps {
		if s.Step == step {
			return s.Status
		}
	}
	return ""
}

// Defaults are the configuration values preferences fall back to.
type Defaults struct {
	Model           string
	Language        string
	Injector        string
	AutoInject      bool
	AutoDeleteAudio bool
	SampleRate      int
	Channels        int
}

// DefaultsFromConfig extracts Defaults from cfg.
func DefaultsFromConfig(cfg *config.Config) Defaults {
	return Defaults{
		Model:           cfg.Whisper.Model,
		Language:        cfg.Whisper.Language,
		Injector:        cfg.Injection.Backend,
		AutoInject:      cfg.Injection.AutoInject,
		AutoDeleteAudio: cfg.Recording.AutoDeleteAudio,
		SampleRate:      cfg.Recording.SampleRate,
		Channels:        cfg.Recording.Channels,
	}
}

// Deps are the collaborators of a Service. Injector, History, Preferences,
// Models, Metrics and Events may be nil.
type Deps struct {
	Recorder    Recorder
	Engine      SpeechEngine
	Injector    TextInjector
	History     HistoryStore
	Preferences PreferenceSource
	Models      ModelManager
	Metrics     *metrics.Metrics
	Events      *events.Hub

	// NewInjector builds an injector for a backend chosen by preference.
	NewInjector func(backend string) (TextInjector, error)
}

// Service is the transcription orchestrator.
type Service struct {
	deps     Deps
	defaults Defaults
	remove   func(string) error
	now      func() time.Time
	logger   *slog.Logger
}

func NewService(deps Deps, defaults Defaults) *Service {
	return &Service{
		deps:     deps,
		defaults: defaults,
		remove:   os.Remove,
		now:      time.Now,
		logger:   log.WithComponent("dictation"),
	}
}

// StopOptions tune StopRecording. A nil Inject defers to preferences and config.
type StopOptions struct {
	Inject    *bool
	KeepAudio bool
}

// TranscribeRequest describes one transcription. Empty Model and Language
// resolve through preferences and config.
type TranscribeRequest struct {
	File      string
	Model     string
	Language  string
	Inject    *bool
	KeepAudio bool
}

// Settings are the effective values after applying preferences over config.
type Settings struct {
	Model           string `json:"model"`
	Language        string `json:"language"`
	Injector        string `json:"injector"`
	AutoInject      bool   `json:"auto_inject"`
	AutoDeleteAudio bool   `json:"auto_delete_audio"`
}

// StartRecording begins a recording session and returns the audio path.
func (s *Service) StartRecording(ctx context.Context) (string, error) {
	path, err := s.deps.Recorder.Start(ctx)
	if err != nil {
		return "", err
	}
	s.deps.Metrics.RecordingEvent("started")
	s.deps.Events.Publish(events.RecordingStarted, map[string]string{"file": path})
	log.WithRecording(path).Info("recording started")
	return path, nil
}

// StopRecording ends the session and transcribes the capture. It returns nil
// without error when nothing was recording or no usable audio was captured.
func (s *Service) StopRecording(ctx context.Context, opts StopOptions) (*Outcome, error) {
	path, ok, err := s.deps.Recorder.Stop(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	s.deps.Metrics.RecordingEvent("stopped")
	s.deps.Events.Publish(events.RecordingStopped, map[string]string{"file": path})
	return s.Transcribe(ctx, TranscribeRequest{
		File:      path,
		Inject:    opts.Inject,
		KeepAudio: opts.KeepAudio,
	})
}

// Transcribe runs the engine on req.File, then persists, injects and cleans
// up. Only an engine failure is returned as an error.
func (s *Service) Transcribe(ctx context.Context, req TranscribeRequest) (*Outcome, error) {
	prefs := s.preferences(ctx)
	model := firstNonEmpty(req.Model, deref(prefs.Model), s.defaults.Model)
	language := firstNonEmpty(req.Language, deref(prefs.Language), s.defaults.Language)
	logger := s.logger.With("audio_file", req.File, "model", model, "language", language)

	started := s.now()
	out, err := s.deps.Engine.Transcribe(ctx, req.File, model, language)
	elapsed := s.now().Sub(started)
	s.deps.Metrics.ObserveTranscription(elapsed, err)
	if err != nil {
		logger.Error("transcription failed", "error", err)
		s.deps.Events.Publish(events.TranscriptionFailed, map[string]string{"file": req.File, "error": err.Error()})
		return nil, fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}

	res := transcript.Result{
		Text:         strings.TrimSpace(out.Text),
		Segments:     out.Segments,
		AudioFile:    req.File,
		Model:        model,
		Language:     language,
		DurationMs:   transcript.EstimateDurationMs(out.FileSize, s.defaults.SampleRate, s.defaults.Channels),
		ProcessingMs: elapsed.Milliseconds(),
	}
	logger.Info("transcription complete", "chars", len(res.Text),
		"segments", len(res.Segments), "processing_ms", res.ProcessingMs)

	o := &Outcome{Result: res}
	s.persist(ctx, o)
	s.inject(ctx, o, prefs, req.Inject)
	s.cleanup(o, prefs, req.KeepAudio)
	s.deps.Events.Publish(events.TranscriptionCompleted, o)
	return o, nil
}

func (s *Service) persist(ctx context.Context, o *Outcome) {
	if s.deps.History == nil {
		s.record(o, StepPersist, StepSkipped, nil)
		return
	}
	id, err := s.deps.History.Save(ctx, o.Result)
	if err != nil {
		s.record(o, StepPersist, StepFailed, err)
		return
	}
	o.HistoryID = id
	s.record(o, StepPersist, StepOK, nil)
}

func (s *Service) inject(ctx context.Context, o *Outcome, prefs settings.Preferences, explicit *bool) {
	enabled := firstBool(explicit, prefs.AutoInject, s.defaults.AutoInject)
	if !enabled || o.Result.Text == "" {
		s.record(o, StepInject, StepSkipped, nil)
		return
	}
	injector, err := s.injectorFor(prefs)
	if err != nil {
		s.record(o, StepInject, StepFailed, err)
		return
	}
	ok, err := injector.Inject(ctx, o.Result.Text)
	if err != nil {
		s.record(o, StepInject, StepFailed, err)
		return
	}
	if !ok {
		s.record(o, StepInject, StepSkipped, nil)
		return
	}
	o.Injected = true
	s.deps.Events.Publish(events.TextInjected, map[string]string{"history_id": o.HistoryID})
	if o.HistoryID != "" {
		if err := s.deps.History.MarkInjected(ctx, o.HistoryID); err != nil {
			s.logger.Warn("failed to mark history entry injected", "id", o.HistoryID, "error", err)
		}
	}
	s.record(o, StepInject, StepOK, nil)
}

func (s *Service) cleanup(o *Outcome, prefs settings.Preferences, keepAudio bool) {
	if keepAudio || !firstBool(nil, prefs.AutoDeleteAudio, s.defaults.AutoDeleteAudio) {
		s.record(o, StepCleanup, StepSkipped, nil)
		return
	}
	if err := s.remove(o.Result.AudioFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.record(o, StepCleanup, StepSkipped, nil)
			return
		}
		s.record(o, StepCleanup, StepFailed, err)
		return
	}
	o.AudioDeleted = true
	s.record(o, StepCleanup, StepOK, nil)
}

func (s *Service) record(o *Outcome, step Step, status StepStatus, err error) {
	so := StepOutcome{Step: step, Status: status}
	if err != nil {
		so.Error = err.Error()
		s.logger.Warn("post-transcription step failed", "step", step, "error", err)
	} else {
		s.logger.Debug("post-transcription step", "step", step, "status", status)
	}
	o.Steps = append(o.Steps, so)
	s.deps.Metrics.StepOutcome(string(step), string(status))
}

func (s *Service) injectorFor(prefs settings.Preferences) (TextInjector, error) {
	if backend := deref(prefs.Injector); backend != "" && backend != s.defaults.Injector && s.deps.NewInjector != nil {
		return s.deps.NewInjector(backend)
	}
	if s.deps.Injector == nil {
		return nil, errors.New("no text injector configured")
	}
	return s.deps.Injector, nil
}

// preferences never fails; an unreadable store falls through to config.
func (s *Service) preferences(ctx context.Context) settings.Preferences {
	if s.deps.Preferences == nil {
		return settings.Preferences{}
	}
	p, err := s.deps.Preferences.Get(ctx)
	if err != nil {
		s.logger.Warn("failed to read preferences, using config defaults", "error", err)
		return settings.Preferences{}
	}
	return p
}

// Effective returns the settings in force after applying stored preferences.
func (s *Service) Effective(ctx context.Context) Settings {
	p := s.preferences(ctx)
	return Settings{
		Model:           firstNonEmpty(deref(p.Model), s.defaults.Model),
		Language:        firstNonEmpty(deref(p.Language), s.defaults.Language),
		Injector:        firstNonEmpty(deref(p.Injector), s.defaults.Injector),
		AutoInject:      firstBool(nil, p.AutoInject, s.defaults.AutoInject),
		AutoDeleteAudio: firstBool(nil, p.AutoDeleteAudio, s.defaults.AutoDeleteAudio),
	}
}

func (s *Service) IsRecording(ctx context.Context) bool {
	return s.deps.Recorder.IsRecording(ctx)
}

// RecordingInfo returns the active session, or nil when idle.
func (s *Service) RecordingInfo(ctx context.Context) (*recorder.Info, error) {
	return s.deps.Recorder.Info(ctx)
}

func (s *Service) ListModels() []whisper.ModelInfo {
	if s.deps.Models == nil {
		return nil
	}
	return s.deps.Models.List()
}

func (s *Service) ModelExists(name string) bool {
	return s.deps.Models != nil && s.deps.Models.Exists(name)
}

// DownloadModel fetches name unless it is already installed.
func (s *Service) DownloadModel(ctx context.Context, name string, progress whisper.ProgressFunc) (whisper.DownloadResult, error) {
	if s.deps.Models == nil {
		return whisper.DownloadResult{}, errors.New("model management is not configured")
	}
	res, err := s.deps.Models.Download(ctx, name, progress)
	if !res.Existed {
		s.deps.Metrics.ModelDownload(err)
		if err == nil {
			s.deps.Events.Publish(events.ModelDownloaded, res)
		}
	}
	return res, err
}

func (s *Service) DeleteModel(name string) (bool, error) {
	if s.deps.Models == nil {
		return false, errors.New("model management is not configured")
	}
	deleted, err := s.deps.Models.Delete(name)
	if deleted {
		s.deps.Events.Publish(events.ModelDeleted, map[string]string{"name": name})
	}
	return deleted, err
}

// History returns up to limit stored transcriptions, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if s.deps.History == nil {
		return nil, nil
	}
	return s.deps.History.List(ctx, limit)
}

func (s *Service) HistoryEntry(ctx context.Context, id string) (*history.Entry, error) {
	if s.deps.History == nil {
		return nil, history.ErrNotFound
	}
	return s.deps.History.Get(ctx, id)
}

// InjectText types text with the preferred injector.
func (s *Service) InjectText(ctx context.Context, text string) (bool, error) {
	injector, err := s.injectorFor(s.preferences(ctx))
	if err != nil {
		return false, err
	}
	return injector.Inject(ctx, text)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstBool(explicit, pref *bool, fallback bool) bool {
	if explicit != nil {
		return *explicit
	}
	if pref != nil {
		return *pref
	}
	return fallback
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
