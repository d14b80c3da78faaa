package whisper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
)

const (
	targetSampleRate = 16000
	targetChannels   = 1
	targetBitDepth   = 16
	pcmFormat        = 1
)

// AudioFormat is what could be learned about an input file without decoding it.
type AudioFormat struct {
	Container  string `json:"container"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	BitDepth   int    `json:"bit_depth,omitempty"`
	PCM        bool   `json:"pcm,omitempty"`
}

// IsTarget reports whether the engine can read the file as is
// (16 kHz mono 16-bit PCM WAV).
func (f AudioFormat) IsTarget() bool {
	return f.Container == "wav" && f.PCM &&
		f.SampleRate == targetSampleRate &&
		f.Channels == targetChannels &&
		f.BitDepth == targetBitDepth
}

// Inspect identifies the container of path and, for WAV, its sample layout.
func Inspect(path string) (AudioFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return AudioFormat{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if dec.IsValidFile() {
		return AudioFormat{
			Container:  "wav",
			SampleRate: int(dec.SampleRate),
			Channels:   int(dec.NumChans),
			BitDepth:   int(dec.BitDepth),
			PCM:        dec.WavAudioFormat == pcmFormat,
		}, nil
	}

	if _, err := f.Seek(0, 0); err != nil {
		return AudioFormat{}, fmt.Errorf("rewind audio: %w", err)
	}
	_, fileType, err := tag.Identify(f)
	if err != nil || fileType == tag.UnknownFileType {
		return AudioFormat{Container: "unknown"}, nil
	}
	return AudioFormat{Container: strings.ToLower(string(fileType))}, nil
}

// convertToTarget transcodes src into a 16 kHz mono s16le WAV at dst with ffmpeg.
func (e *Engine) convertToTarget(ctx context.Context, src, dst string) error {
	args := []string{
		"-nostdin", "-y", "-loglevel", "error",
		"-i", src,
		"-ar", "16000", "-ac", "1", "-acodec", "pcm_s16le",
		dst,
	}
	out, err := e.run(ctx, e.ffmpeg, args...)
	if err != nil {
		return fmt.Errorf("convert audio: %w out: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}
