package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config represents the complete dictation configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Recording RecordingConfig `yaml:"recording"`
	Whisper   WhisperConfig   `yaml:"whisper"`
	Injection InjectionConfig `yaml:"injection"`
	Storage   StorageConfig   `yaml:"storage"`
	API       APIConfig       `yaml:"api,omitempty"`
	MCP       MCPConfig       `yaml:"mcp"`

	// SourcePath is the file the config was loaded from; empty for built-in defaults.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines process-wide settings.
type ServiceConfig struct {
	Name      string `yaml:"name" validate:"required"`
	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=json text"`
	DataDir   string `yaml:"data_dir" validate:"required"`
}

// RecordingConfig controls the external capture process and its lock record.
type RecordingConfig struct {
	// Command is the capture argv. {file}, {rate} and {channels} are substituted.
	Command         []string      `yaml:"command" validate:"min=1"`
	RecordingsPath  string        `yaml:"recordings_path" validate:"required"`
	PIDFile         string        `yaml:"pid_file" validate:"required"`
	LogFile         string        `yaml:"log_file,omitempty"`
	SampleRate      int           `yaml:"sample_rate" validate:"min=8000"`
	Channels        int           `yaml:"channels" validate:"min=1,max=2"`
	MaxDuration     time.Duration `yaml:"max_duration" validate:"gt=0"`
	MinBytes        int64         `yaml:"min_bytes" validate:"min=0"`
	StartGrace      time.Duration `yaml:"start_grace"`
	StopTimeout     time.Duration `yaml:"stop_timeout" validate:"gt=0"`
	PollInterval    time.Duration `yaml:"poll_interval" validate:"gt=0"`
	KillWait        time.Duration `yaml:"kill_wait"`
	AutoDeleteAudio bool          `yaml:"auto_delete_audio"`
}

// WhisperConfig locates the speech engine and its models.
type WhisperConfig struct {
	Binary       string `yaml:"binary" validate:"required"`
	FFmpegBinary string `yaml:"ffmpeg_binary" validate:"required"`
	ModelsPath   string `yaml:"models_path" validate:"required"`
	Model        string `yaml:"model" validate:"required"`
	Language     string `yaml:"language" validate:"required"`
	Threads      int    `yaml:"threads" validate:"min=1"`
	DownloadURL  string `yaml:"download_url" validate:"required,url"`
}

// InjectionConfig selects the desktop text injection backend.
type InjectionConfig struct {
	Backend    string        `yaml:"backend" validate:"oneof=wtype wl-paste ydotool"`
	AutoInject bool          `yaml:"auto_inject"`
	PasteDelay time.Duration `yaml:"paste_delay"`
}

// StorageConfig defines the history and preferences database.
type StorageConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Listen         string   `yaml:"listen" validate:"required"`
	APIKey         string   `yaml:"api_key,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// MCPConfig defines the identity the stdio tool server reports on initialize.
type MCPConfig struct {
	ServerName      string `yaml:"server_name" validate:"required"`
	ServerVersion   string `yaml:"server_version" validate:"required"`
	ProtocolVersion string `yaml:"protocol_version" validate:"required"`
}

// ChecksumManifest represents the .checksums file written by `config lock`.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// Defaults returns a Config with sensible default values.
// Paths left empty are derived from Service.DataDir when defaults are applied.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "dictation",
			LogLevel:  "info",
			LogFormat: "json",
			DataDir:   defaultDataDir(),
		},
		Recording: RecordingConfig{
			Command:         []string{"pw-record", "--format=s16", "--rate={rate}", "--channels={channels}", "{file}"},
			SampleRate:      16000,
			Channels:        1,
			MaxDuration:     300 * time.Second,
			MinBytes:        100,
			StartGrace:      200 * time.Millisecond,
			StopTimeout:     2 * time.Second,
			PollInterval:    50 * time.Millisecond,
			KillWait:        100 * time.Millisecond,
			AutoDeleteAudio: true,
		},
		Whisper: WhisperConfig{
			Binary:       "whisper-cli",
			FFmpegBinary: "ffmpeg",
			Model:        "base.en",
			Language:     "en",
			Threads:      4,
			DownloadURL:  "https://huggingface.co/ggerganov/whisper.cpp/resolve/main",
		},
		Injection: InjectionConfig{
			Backend:    "wl-paste",
			AutoInject: true,
			PasteDelay: 50 * time.Millisecond,
		},
		API: APIConfig{
			Listen: "localhost:8765",
		},
		MCP: MCPConfig{
			ServerName:      "dictation",
			ServerVersion:   "1.0.0",
			ProtocolVersion: "2024-11-05",
		},
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "dictation")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "dictation")
	}
	return filepath.Join(os.TempDir(), "dictation")
}
