package dictation

import (
	"context"

	"github.com/mattjoyce/dictation/internal/history"
	"github.com/mattjoyce/dictation/internal/recorder"
	"github.com/mattjoyce/dictation/internal/settings"
	"github.com/mattjoyce/dictation/internal/transcript"
	"github.com/mattjoyce/dictation/internal/whisper"
)

//go:generate mockgen -destination=mocks/mock_dictation.go -package=mocks github.com/mattjoyce/dictation/internal/dictation Recorder,SpeechEngine,TextInjector,HistoryStore,PreferenceSource,ModelManager

// Recorder controls the single system-wide recording session.
type Recorder interface {
	Start(ctx context.Context) (string, error)
	Stop(ctx context.Context) (string, bool, error)
	IsRecording(ctx context.Context) bool
	Info(ctx context.Context) (*recorder.Info, error)
}

// SpeechEngine turns an audio file into text.
type SpeechEngine interface {
	Transcribe(ctx context.Context, file, model, language string) (transcript.EngineOutput, error)
}

// TextInjector types text into the focused window.
type TextInjector interface {
	Inject(ctx context.Context, text string) (bool, error)
}

// HistoryStore persists completed transcriptions.
type HistoryStore interface {
	Save(ctx context.Context, res transcript.Result) (string, error)
	MarkInjected(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*history.Entry, error)
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

// PreferenceSource supplies stored user preferences.
type PreferenceSource interface {
	Get(ctx context.Context) (settings.Preferences, error)
}

// ModelManager manages local speech model files.
type ModelManager interface {
	List() []whisper.ModelInfo
	Exists(name string) bool
	Download(ctx context.Context, name string, progress whisper.ProgressFunc) (whisper.DownloadResult, error)
	Delete(name string) (bool, error)
}
