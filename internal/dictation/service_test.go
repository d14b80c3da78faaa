package dictation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/dictation/internal/dictation/mocks"
	"github.com/mattjoyce/dictation/internal/events"
	"github.com/mattjoyce/dictation/internal/log"
	"github.com/mattjoyce/dictation/internal/metrics"
	"github.com/mattjoyce/dictation/internal/settings"
	"github.com/mattjoyce/dictation/internal/transcript"
	"github.com/mattjoyce/dictation/internal/whisper"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR")
	os.Exit(m.Run())
}

type harness struct {
	rec      *mocks.MockRecorder
	engine   *mocks.MockSpeechEngine
	injector *mocks.MockTextInjector
	history  *mocks.MockHistoryStore
	prefs    *mocks.MockPreferenceSource
	models   *mocks.MockModelManager
	svc      *Service
	removed  []string
}

func testDefaults() Defaults {
	return Defaults{
		Model:           "base.en",
		Language:        "en",
		Injector:        "wl-paste",
		AutoInject:      true,
		AutoDeleteAudio: true,
		SampleRate:      16000,
		Channels:        1,
	}
}

func newHarness(t *testing.T, defaults Defaults) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	h := &harness{
		rec:      mocks.NewMockRecorder(ctrl),
		engine:   mocks.NewMockSpeechEngine(ctrl),
		injector: mocks.NewMockTextInjector(ctrl),
		history:  mocks.NewMockHistoryStore(ctrl),
		prefs:    mocks.NewMockPreferenceSource(ctrl),
		models:   mocks.NewMockModelManager(ctrl),
	}
	h.svc = NewService(Deps{
		Recorder:    h.rec,
		Engine:      h.engine,
		Injector:    h.injector,
		History:     h.history,
		Preferences: h.prefs,
		Models:      h.models,
		Metrics:     metrics.New(),
	}, defaults)
	h.svc.remove = func(path string) error {
		h.removed = append(h.removed, path)
		return nil
	}
	return h
}

func engineOutput(text string) transcript.EngineOutput {
	return transcript.EngineOutput{
		Text:     " " + text,
		Segments: []transcript.Segment{{Start: 0, End: 900, Text: " " + text}},
		FileSize: 44 + 32000,
	}
}

func ptr[T any](v T) *T { return &v }

func TestTranscribeRunsAllSteps(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testDefaults())

	h.prefs.EXPECT().Get(ctx).Return(settings.Preferences{}, nil)
	h.engine.EXPECT().Transcribe(ctx, "/rec/a.wav", "base.en", "en").Return(engineOutput("hello"), nil)
	h.history.EXPECT().Save(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, res transcript.Result) (string, error) {
		assert.Equal(t, "hello", res.Text)
		assert.Equal(t, int64(1000), res.DurationMs)
		return "id-1", nil
	})
	h.injector.EXPECT().Inject(ctx, "hello").Return(true, nil)
	h.history.EXPECT().MarkInjected(ctx, "id-1").Return(nil)

	o, err := h.svc.Transcribe(ctx, TranscribeRequest{File: "/rec/a.wav"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", o.HistoryID)
	assert.True(t, o.Injected)
	assert.True(t, o.AudioDeleted)
	assert.Equal(t, []string{"/rec/a.wav"}, h.removed)
	assert.Equal(t, []StepOutcome{
		{Step: StepPersist, Status: StepOK},
		{Step: StepInject, Status: StepOK},
		{Step: StepCleanup, Status: StepOK},
	}, o.Steps)
}

func TestTranscribePrecedence(t *testing.T) {
	tests := []struct {
		name         string
		req          TranscribeRequest
		prefs        settings.Preferences
		wantModel    string
		wantLanguage string
	}{
		{
			name:         "config defaults",
			req:          TranscribeRequest{File: "f.wav"},
			wantModel:    "base.en",
			wantLanguage: "en",
		},
		{
			name:         "preference over config",
			req:          TranscribeRequest{File: "f.wav"},
			prefs:        settings.Preferences{Model: ptr("small"), Language: ptr("de")},
			wantModel:    "small",
			wantLanguage: "de",
		},
		{
			name:         "explicit over preference",
			req:          TranscribeRequest{File: "f.wav", Model: "tiny", Language: "fr"},
			prefs:        settings.Preferences{Model: ptr("small"), Language: ptr("de")},
			wantModel:    "tiny",
			wantLanguage: "fr",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			d := testDefaults()
			d.AutoInject = false
			d.AutoDeleteAudio = false
			h := newHarness(t, d)

			h.prefs.EXPECT().Get(ctx).Return(tt.prefs, nil)
			h.engine.EXPECT().Transcribe(ctx, "f.wav", tt.wantModel, tt.wantLanguage).Return(engineOutput("x"), nil)
			h.history.EXPECT().Save(ctx, gomock.Any()).Return("id", nil)

			o, err := h.svc.Transcribe(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, o.Result.Model)
			assert.Equal(t, tt.wantLanguage, o.Result.Language)
		})
	}
}

func TestTranscribeEngineFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testDefaults())

	h.prefs.EXPECT().Get(ctx).Return(settings.Preferences{}, nil)
	h.engine.EXPECT().Transcribe(ctx, "a.wav", "base.en", "en").
		Return(transcript.EngineOutput{}, whisper.ErrModelNotFound)

	o, err := h.svc.Transcribe(ctx, TranscribeRequest{File: "a.wav"})
	assert.Nil(t, o)
	assert.ErrorIs(t, err, ErrTranscriptionFailed)
	assert.ErrorIs(t, err, whisper.ErrModelNotFound)
	assert.Empty(t, h.removed, "audio is kept when transcription fails")
}

func TestTranscribeStepFailuresAreIsolated(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testDefaults())
	h.svc.remove = func(string) error { return errors.New("permission denied") }

	h.prefs.EXPECT().Get(ctx).Return(settings.Preferences{}, errors.New("db locked"))
	h.engine.EXPECT().Transcribe(ctx, "a.wav", "base.en", "en").Return(engineOutput("hi"), nil)
	h.history.EXPECT().Save(ctx, gomock.Any()).Return("", errors.New("disk full"))
	h.injector.EXPECT().Inject(ctx, "hi").Return(false, errors.New("no compositor"))

	o, err := h.svc.Transcribe(ctx, TranscribeRequest{File: "a.wav"})
	require.NoError(t, err)
	assert.Equal(t, "hi", o.Result.Text)
	assert.False(t, o.Injected)
	assert.False(t, o.AudioDeleted)
	for _, step := range []Step{StepPersist, StepInject, StepCleanup} {
		assert.Equal(t, StepFailed, o.StepStatus(step), step)
	}
	assert.Equal(t, "disk full", o.Steps[0].Error)
}

func TestTranscribeInjectionToggles(t *testing.T) {
	tests := []struct {
		name       string
		explicit   *bool
		pref       *bool
		text       string
		wantInject bool
	}{
		{name: "config default on", text: "a", wantInject: true},
		{name: "preference off", pref: ptr(false), text: "a"},
		{name: "explicit on beats preference", explicit: ptr(true), pref: ptr(false), text: "a", wantInject: true},
		{name: "explicit off", explicit: ptr(false), text: "a"},
		{name: "empty text never injected", text: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, testDefaults())

			h.prefs.EXPECT().Get(ctx).Return(settings.Preferences{AutoInject: tt.pref}, nil)
			out := engineOutput(tt.text)
			out.Text = tt.text
			h.engine.EXPECT().Transcribe(ctx, "a.wav", gomock.Any(), gomock.Any()).Return(out, nil)
			h.history.EXPECT().Save(ctx, gomock.Any()).Return("id", nil)
			if tt.wantInject {
				h.injector.EXPECT().Inject(ctx, tt.text).Return(true, nil)
				h.history.EXPECT().MarkInjected(ctx, "id").Return(nil)
			}

			o, err := h.svc.Transcribe(ctx, TranscribeRequest{File: "a.wav", Inject: tt.explicit, KeepAudio: true})
			require.NoError(t, err)
			assert.Equal(t, tt.wantInject, o.Injected)
			assert.Equal(t, StepSkipped, o.StepStatus(StepCleanup))
		})
	}
}

func TestTranscribePreferredInjectorBackend(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testDefaults())
	ctrl := gomock.NewController(t)
	alt := mocks.NewMockTextInjector(ctrl)
	var built string
	h.svc.deps.NewInjector = func(backend string) (TextInjector, error) {
		built = backend
		return alt, nil
	}

	h.prefs.EXPECT().Get(ctx).Return(settings.Preferences{Injector: ptr("wtype"), AutoDeleteAudio: ptr(false)}, nil)
	h.engine.EXPECT().Transcribe(ctx, "a.wav", gomock.Any(), gomock.Any()).Return(engineOutput("typed"), nil)
	h.history.EXPECT().Save(ctx, gomock.Any()).Return("id", nil)
	alt.EXPECT().Inject(ctx, "typed").Return(true, nil)
	h.history.EXPECT().MarkInjected(ctx, "id").Return(nil)

	o, err := h.svc.Transcribe(ctx, TranscribeRequest{File: "a.wav"})
	require.NoError(t, err)
	assert.Equal(t, "wtype", built)
	assert.True(t, o.Injected)
	assert.Empty(t, h.removed)
}

func TestStopRecording(t *testing.T) {
	ctx := context.Background()

	t.Run("idle", func(t *testing.T) {
		h := newHarness(t, testDefaults())
		h.rec.EXPECT().Stop(ctx).Return("", false, nil)

		o, err := h.svc.StopRecording(ctx, StopOptions{})
		require.NoError(t, err)
		assert.Nil(t, o)
	})

	t.Run("captured audio is transcribed", func(t *testing.T) {
		h := newHarness(t, testDefaults())
		h.rec.EXPECT().Stop(ctx).Return("/rec/b.wav", true, nil)
		h.prefs.EXPECT().Get(ctx).Return(settings.Preferences{}, nil)
		h.engine.EXPECT().Transcribe(ctx, "/rec/b.wav", "base.en", "en").Return(engineOutput("done"), nil)
		h.history.EXPECT().Save(ctx, gomock.Any()).Return("id", nil)

		o, err := h.svc.StopRecording(ctx, StopOptions{Inject: ptr(false)})
		require.NoError(t, err)
		require.NotNil(t, o)
		assert.Equal(t, "done", o.Result.Text)
		assert.Equal(t, StepSkipped, o.StepStatus(StepInject))
		assert.Equal(t, []string{"/rec/b.wav"}, h.removed)
	})

	t.Run("guard failure", func(t *testing.T) {
		h := newHarness(t, testDefaults())
		h.rec.EXPECT().Stop(ctx).Return("", false, context.DeadlineExceeded)

		_, err := h.svc.StopRecording(ctx, StopOptions{})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestEffective(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testDefaults())
	h.prefs.EXPECT().Get(ctx).Return(settings.Preferences{Model: ptr("medium"), AutoInject: ptr(false)}, nil)

	assert.Equal(t, Settings{
		Model:           "medium",
		Language:        "en",
		Injector:        "wl-paste",
		AutoInject:      false,
		AutoDeleteAudio: true,
	}, h.svc.Effective(ctx))
}

func TestDownloadModelPassthrough(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testDefaults())
	h.models.EXPECT().Download(ctx, "tiny", gomock.Any()).Return(whisper.DownloadResult{Name: "tiny", Existed: true}, nil)
	h.models.EXPECT().Exists("tiny").Return(true)

	res, err := h.svc.DownloadModel(ctx, "tiny", nil)
	require.NoError(t, err)
	assert.True(t, res.Existed)
	assert.True(t, h.svc.ModelExists("tiny"))
}

func TestRemoveMissingAudioIsSkipped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testDefaults())
	h.svc.remove = os.Remove

	h.prefs.EXPECT().Get(ctx).Return(settings.Preferences{AutoInject: ptr(false)}, nil)
	missing := filepath.Join(t.TempDir(), "gone.wav")
	h.engine.EXPECT().Transcribe(ctx, missing, gomock.Any(), gomock.Any()).Return(engineOutput("x"), nil)
	h.history.EXPECT().Save(ctx, gomock.Any()).Return("id", nil)

	o, err := h.svc.Transcribe(ctx, TranscribeRequest{File: missing})
	require.NoError(t, err)
	assert.Equal(t, StepSkipped, o.StepStatus(StepCleanup))
}

func TestLifecycleEventsArePublished(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testDefaults())
	hub := events.NewHub(16)
	h.svc.deps.Events = hub

	h.rec.EXPECT().Start(ctx).Return("/rec/c.wav", nil)
	h.rec.EXPECT().Stop(ctx).Return("/rec/c.wav", true, nil)
	h.prefs.EXPECT().Get(ctx).Return(settings.Preferences{AutoInject: ptr(false)}, nil)
	h.engine.EXPECT().Transcribe(ctx, "/rec/c.wav", "base.en", "en").Return(engineOutput("events"), nil)
	h.history.EXPECT().Save(ctx, gomock.Any()).Return("id-9", nil)
	h.models.EXPECT().Delete("tiny").Return(true, nil)
	h.models.EXPECT().Delete("small").Return(false, nil)

	_, err := h.svc.StartRecording(ctx)
	require.NoError(t, err)
	_, err = h.svc.StopRecording(ctx, StopOptions{})
	require.NoError(t, err)
	_, err = h.svc.DeleteModel("tiny")
	require.NoError(t, err)
	_, err = h.svc.DeleteModel("small")
	require.NoError(t, err)

	var types []string
	for _, ev := range hub.SnapshotSince(0) {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{
		events.RecordingStarted,
		events.RecordingStopped,
		events.TranscriptionCompleted,
		events.ModelDeleted,
	}, types)
}

func TestEngineFailurePublishesEvent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testDefaults())
	hub := events.NewHub(4)
	h.svc.deps.Events = hub

	h.prefs.EXPECT().Get(ctx).Return(settings.Preferences{}, nil)
	h.engine.EXPECT().Transcribe(ctx, "/rec/d.wav", gomock.Any(), gomock.Any()).Return(transcript.EngineOutput{}, errors.New("boom"))

	_, err := h.svc.Transcribe(ctx, TranscribeRequest{File: "/rec/d.wav"})
	require.Error(t, err)

	got := hub.SnapshotSince(0)
	require.Len(t, got, 1)
	assert.Equal(t, events.TranscriptionFailed, got[0].Type)
	assert.Contains(t, string(got[0].Data), "/rec/d.wav")
}
