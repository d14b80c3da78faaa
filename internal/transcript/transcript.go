// Package transcript holds the values passed between the speech engine, the
// orchestrator and the outer surfaces.
package transcript

import (
	"strings"
	"time"
)

// Segment is one timed span of recognized speech. Start and End are
// milliseconds from the beginning of the audio.
type Segment struct {
	Start int64  `json:"start"`
	End   int64  `json:"end"`
	Text  string `json:"text"`
}

// EngineOutput is what a speech engine returns for one audio file.
type EngineOutput struct {
	Text     string
	Segments []Segment
	FileSize int64
}

// Result is a completed transcription. It is never mutated after creation.
type Result struct {
	Text         string    `json:"text"`
	Segments     []Segment `json:"segments"`
	AudioFile    string    `json:"audio_file"`
	Model        string    `json:"model"`
	Language     string    `json:"language"`
	DurationMs   int64     `json:"duration_ms"`
	ProcessingMs int64     `json:"processing_ms"`
}

// Processing returns the engine wall time as a duration.
func (r Result) Processing() time.Duration {
	return time.Duration(r.ProcessingMs) * time.Millisecond
}

// JoinSegments concatenates segment texts the way the engine reports the full text.
func JoinSegments(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return strings.TrimSpace(b.String())
}

// EstimateDurationMs estimates audio length from a PCM WAV byte count,
// assuming a 44 byte header and 16-bit samples.
func EstimateDurationMs(fileSize int64, sampleRate, channels int) int64 {
	const headerBytes = 44
	bytesPerMs := int64(sampleRate) * int64(channels) * 2 / 1000
	if fileSize <= headerBytes || bytesPerMs <= 0 {
		return 0
	}
	return (fileSize - headerBytes) / bytesPerMs
}
