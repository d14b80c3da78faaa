// Package doctor checks that a dictation configuration can actually record,
// transcribe and inject on this machine.
package doctor

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mattjoyce/dictation/internal/config"
	"github.com/mattjoyce/dictation/internal/inject"
	"github.com/mattjoyce/dictation/internal/storage"
	"github.com/mattjoyce/dictation/internal/whisper"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a configuration against the host.
type Doctor struct {
	cfg      *config.Config
	lookPath func(string) (string, error)
	fsCheck  func(string) error
}

// New creates a Doctor for cfg.
func New(cfg *config.Config) *Doctor {
	return &Doctor{
		cfg:      cfg,
		lookPath: exec.LookPath,
		fsCheck:  storage.CheckLocalFilesystem,
	}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateRecorder(r)
	d.validateWhisper(r)
	d.validateInjector(r)
	d.validateStorage(r)
	d.validateAPIConfig(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateServiceConfig(r *Result) {
	if d.cfg.Service.DataDir == "" {
		d.addError(r, "service", "service.data_dir", "data_dir is required")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(d.cfg.Service.LogLevel)) {
		d.addWarning(r, "service", "service.log_level",
			fmt.Sprintf("unknown log level %q, falling back to info", d.cfg.Service.LogLevel))
	}
}

func (d *Doctor) validateRecorder(r *Result) {
	rc := d.cfg.Recording
	if len(rc.Command) == 0 {
		d.addError(r, "recorder", "recording.command", "recording command is empty")
		return
	}
	if !slices.ContainsFunc(rc.Command, func(a string) bool { return strings.Contains(a, "{file}") }) {
		d.addError(r, "recorder", "recording.command", "recording command must contain a {file} placeholder")
	}
	if _, err := d.lookPath(rc.Command[0]); err != nil {
		d.addError(r, "recorder", "recording.command",
			fmt.Sprintf("capture binary %q not found on PATH", rc.Command[0]))
	}
	if rc.RecordingsPath == "" {
		d.addError(r, "recorder", "recording.recordings_path", "recordings_path is required")
	}
	if rc.MaxDuration <= 0 {
		d.addError(r, "recorder", "recording.max_duration", "max_duration must be positive")
	}
	if rc.SampleRate != 16000 {
		d.addWarning(r, "recorder", "recording.sample_rate",
			fmt.Sprintf("sample rate %d will be resampled to 16000 before transcription", rc.SampleRate))
	}
}

func (d *Doctor) validateWhisper(r *Result) {
	wc := d.cfg.Whisper
	if _, err := d.lookPath(wc.Binary); err != nil {
		d.addError(r, "whisper", "whisper.binary", fmt.Sprintf("speech engine %q not found on PATH", wc.Binary))
	}
	if _, err := d.lookPath(wc.FFmpegBinary); err != nil {
		d.addWarning(r, "whisper", "whisper.ffmpeg_binary",
			fmt.Sprintf("%q not found; only 16 kHz mono WAV input can be transcribed", wc.FFmpegBinary))
	}
	if !whisper.Known(wc.Model) {
		d.addError(r, "whisper", "whisper.model",
			fmt.Sprintf("unknown model %q (known: %s)", wc.Model, strings.Join(whisper.Catalogue, ", ")))
		return
	}
	models := whisper.NewModels(wc.ModelsPath, wc.DownloadURL)
	if !models.Exists(wc.Model) {
		d.addWarning(r, "whisper", "whisper.model",
			fmt.Sprintf("model %q is not downloaded; run `dictation model download %s`", wc.Model, wc.Model))
	}
}

func (d *Doctor) validateInjector(r *Result) {
	backend := d.cfg.Injection.Backend
	bins := inject.RequiredBinaries(backend)
	if bins == nil {
		d.addError(r, "inject", "injection.backend",
			fmt.Sprintf("unknown backend %q (known: %s)", backend, strings.Join(inject.Backends(), ", ")))
		return
	}
	for _, bin := range bins {
		if _, err := d.lookPath(bin); err != nil {
			d.addWarning(r, "inject", "injection.backend",
				fmt.Sprintf("%s backend needs %q on PATH; text will not be injected", backend, bin))
		}
	}
}

func (d *Doctor) validateStorage(r *Result) {
	path := d.cfg.Storage.Path
	if path == "" {
		d.addError(r, "storage", "storage.path", "storage.path is required")
		return
	}
	if err := d.fsCheck(path); err != nil {
		d.addError(r, "storage", "storage.path", err.Error())
		return
	}
	if info, err := os.Stat(filepath.Dir(path)); err == nil && !info.IsDir() {
		d.addError(r, "storage", "storage.path", fmt.Sprintf("%s is not a directory", filepath.Dir(path)))
	}
}

func (d *Doctor) validateAPIConfig(r *Result) {
	api := d.cfg.API
	if api.Listen == "" {
		return
	}
	host, _, err := net.SplitHostPort(api.Listen)
	if err != nil {
		d.addError(r, "api", "api.listen", fmt.Sprintf("invalid listen address %q: %v", api.Listen, err))
		return
	}
	if api.APIKey == "" && !isLoopback(host) {
		d.addWarning(r, "api", "api.api_key", "API listens beyond localhost but no api_key is configured")
	}
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
