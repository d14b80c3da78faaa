package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/dictation/internal/dictation"
	"github.com/mattjoyce/dictation/internal/log"
	"github.com/mattjoyce/dictation/internal/recorder"
	"github.com/mattjoyce/dictation/internal/transcript"
	"github.com/mattjoyce/dictation/internal/whisper"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR")
	os.Exit(m.Run())
}

type fakeDictation struct {
	recording   bool
	startErr    error
	info        *recorder.Info
	outcome     *dictation.Outcome
	err         error
	models      []whisper.ModelInfo
	installed   map[string]bool
	downloadRes whisper.DownloadResult

	stopOpts  dictation.StopOptions
	request   dictation.TranscribeRequest
	downloads []string
}

func (f *fakeDictation) StartRecording(context.Context) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	return "/rec/recording_20260101_090000.wav", nil
}

func (f *fakeDictation) StopRecording(_ context.Context, opts dictation.StopOptions) (*dictation.Outcome, error) {
	f.stopOpts = opts
	return f.outcome, f.err
}

func (f *fakeDictation) Transcribe(_ context.Context, req dictation.TranscribeRequest) (*dictation.Outcome, error) {
	f.request = req
	return f.outcome, f.err
}

func (f *fakeDictation) IsRecording(context.Context) bool { return f.recording }

func (f *fakeDictation) RecordingInfo(context.Context) (*recorder.Info, error) { return f.info, nil }

func (f *fakeDictation) ListModels() []whisper.ModelInfo { return f.models }

func (f *fakeDictation) ModelExists(name string) bool { return f.installed[name] }

func (f *fakeDictation) DownloadModel(_ context.Context, name string, _ whisper.ProgressFunc) (whisper.DownloadResult, error) {
	f.downloads = append(f.downloads, name)
	return f.downloadRes, f.err
}

func (f *fakeDictation) Effective(context.Context) dictation.Settings {
	return dictation.Settings{Model: "base.en", Language: "en"}
}

func call(t *testing.T, f *fakeDictation, name string, args map[string]any) (string, error) {
	t.Helper()
	reg, err := Registry(f)
	require.NoError(t, err)
	tool, ok := reg.Lookup(name)
	require.True(t, ok, name)
	return tool.Handler(context.Background(), args)
}

func sampleOutcome(injected bool) *dictation.Outcome {
	return &dictation.Outcome{
		Result: transcript.Result{
			Text:         "Hello world.",
			Segments:     []transcript.Segment{{Start: 0, End: 500, Text: " Hello"}, {Start: 500, End: 900, Text: " world."}},
			Model:        "base.en",
			Language:     "en",
			ProcessingMs: 1234,
		},
		Injected: injected,
	}
}

func TestRegistryOrder(t *testing.T) {
	reg, err := Registry(&fakeDictation{})
	require.NoError(t, err)
	var names []string
	for _, tool := range reg.Tools() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{
		"dictation_start", "dictation_stop", "dictation_transcribe",
		"dictation_status", "dictation_models", "dictation_model_download",
	}, names)
}

func TestStart(t *testing.T) {
	out, err := call(t, &fakeDictation{}, "dictation_start", nil)
	require.NoError(t, err)
	assert.Equal(t, "Recording started. Audio file: /rec/recording_20260101_090000.wav\nSpeak now, then use dictation_stop when done.", out)

	out, err = call(t, &fakeDictation{startErr: recorder.ErrAlreadyRecording}, "dictation_start", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Already recording")

	_, err = call(t, &fakeDictation{startErr: recorder.ErrSpawnFailed}, "dictation_start", nil)
	assert.ErrorIs(t, err, recorder.ErrSpawnFailed)
}

func TestStop(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeDictation
		args    map[string]any
		want    string
		checkFn func(t *testing.T, f *fakeDictation)
	}{
		{
			name: "not recording",
			fake: &fakeDictation{},
			want: "No recording in progress. Use dictation_start first.",
		},
		{
			name: "no audio",
			fake: &fakeDictation{recording: true},
			want: "Recording stopped but no audio was captured.",
		},
		{
			name: "transcribed and injected",
			fake: &fakeDictation{recording: true, outcome: sampleOutcome(true)},
			want: "Transcription: Hello world.\nModel: base.en | Language: en | Processing: 1.2s | Segments: 2\nText injected into focused window.",
			checkFn: func(t *testing.T, f *fakeDictation) {
				assert.Nil(t, f.stopOpts.Inject)
			},
		},
		{
			name: "inject flag decoded",
			fake: &fakeDictation{recording: true, outcome: sampleOutcome(false)},
			args: map[string]any{"inject": "false"},
			want: "Transcription: Hello world.\nModel: base.en | Language: en | Processing: 1.2s | Segments: 2",
			checkFn: func(t *testing.T, f *fakeDictation) {
				require.NotNil(t, f.stopOpts.Inject)
				assert.False(t, *f.stopOpts.Inject)
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			out, err := call(t, tt.fake, "dictation_stop", tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
			if tt.checkFn != nil {
				tt.checkFn(t, tt.fake)
			}
		})
	}
}

func TestStopTranscriptionFailure(t *testing.T) {
	f := &fakeDictation{recording: true, err: errors.Join(dictation.ErrTranscriptionFailed, whisper.ErrModelNotFound)}
	_, err := call(t, f, "dictation_stop", map[string]any{})
	assert.ErrorIs(t, err, whisper.ErrModelNotFound)
}

func TestTranscribe(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "note.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF"), 0o644))

	f := &fakeDictation{outcome: sampleOutcome(false)}
	out, err := call(t, f, "dictation_transcribe", map[string]any{"file": audio, "model": "tiny.en"})
	require.NoError(t, err)
	assert.Contains(t, out, "Transcription: Hello world.")

	assert.Equal(t, audio, f.request.File)
	assert.Equal(t, "tiny.en", f.request.Model)
	assert.Empty(t, f.request.Language)
	require.NotNil(t, f.request.Inject)
	assert.False(t, *f.request.Inject)
	assert.True(t, f.request.KeepAudio)
}

func TestTranscribeErrors(t *testing.T) {
	_, err := call(t, &fakeDictation{}, "dictation_transcribe", map[string]any{"file": "/no/such.wav"})
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.EqualError(t, err, "file not found: /no/such.wav")

	_, err = call(t, &fakeDictation{}, "dictation_transcribe", map[string]any{})
	assert.EqualError(t, err, "file is required")

	_, err = call(t, &fakeDictation{}, "dictation_transcribe", map[string]any{"file": []any{1}})
	assert.ErrorContains(t, err, "invalid arguments")
}

func TestStatus(t *testing.T) {
	out, err := call(t, &fakeDictation{}, "dictation_status", nil)
	require.NoError(t, err)
	assert.Equal(t, "Not recording.", out)

	f := &fakeDictation{info: &recorder.Info{PID: 42, File: "/rec/a.wav", Elapsed: 12*time.Second + 700*time.Millisecond}}
	out, err = call(t, f, "dictation_status", nil)
	require.NoError(t, err)
	assert.Equal(t, "Recording in progress for 12s.\nFile: /rec/a.wav", out)
}

func TestModels(t *testing.T) {
	f := &fakeDictation{models: []whisper.ModelInfo{
		{Name: "tiny.en"},
		{Name: "base.en", Installed: true, Size: 147951465},
	}}
	out, err := call(t, f, "dictation_models", nil)
	require.NoError(t, err)
	assert.Equal(t, "Available whisper models (active: base.en):\n\n"+
		"  tiny.en - not downloaded\n"+
		"  base.en * - installed (141 MB)", out)
}

func TestModelDownload(t *testing.T) {
	f := &fakeDictation{installed: map[string]bool{"base.en": true}}
	out, err := call(t, f, "dictation_model_download", map[string]any{"model": "base.en"})
	require.NoError(t, err)
	assert.Equal(t, "Model 'base.en' is already downloaded.", out)
	assert.Empty(t, f.downloads)

	f = &fakeDictation{downloadRes: whisper.DownloadResult{Name: "tiny", Path: "/models/ggml-tiny.bin"}}
	out, err = call(t, f, "dictation_model_download", map[string]any{"model": "tiny"})
	require.NoError(t, err)
	assert.Equal(t, "Model 'tiny' downloaded to: /models/ggml-tiny.bin", out)

	_, err = call(t, &fakeDictation{}, "dictation_model_download", nil)
	assert.EqualError(t, err, "model is required")

	_, err = call(t, &fakeDictation{err: whisper.ErrUnknownModel}, "dictation_model_download", map[string]any{"model": "huge"})
	assert.ErrorIs(t, err, whisper.ErrUnknownModel)
}
