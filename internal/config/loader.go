package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ErrNoConfig is returned by DiscoverConfigPath when no config file exists in any standard location.
var ErrNoConfig = errors.New("no config found")

// Load reads and parses configuration from a file.
// A directory path is accepted and resolved to <dir>/config.yaml.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	loadDotEnv(filepath.Dir(absPath))

	if err := verifyConfigHash(absPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := parse([]byte(interpolateEnv(string(data))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", absPath, err)
	}
	cfg.SourcePath = absPath

	return finish(cfg)
}

// LoadOrDefault loads configPath when set, otherwise the first discovered config,
// otherwise the built-in defaults. Environment overrides apply in every case.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath != "" {
		return Load(configPath)
	}
	path, err := DiscoverConfigPath()
	if err == nil {
		return Load(path)
	}
	if !errors.Is(err, ErrNoConfig) {
		return nil, err
	}
	loadDotEnv(".")
	return finish(Defaults())
}

// DiscoverConfigPath finds the config file by checking standard locations.
// Priority order: $DICTATION_CONFIG, ~/.config/dictation/config.yaml, /etc/dictation/config.yaml, ./config.yaml
func DiscoverConfigPath() (string, error) {
	if path := os.Getenv("DICTATION_CONFIG"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("DICTATION_CONFIG points to %s: %w", path, err)
		}
		return path, nil
	}

	candidates := []string{}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "dictation", "config.yaml"))
	}
	candidates = append(candidates, "/etc/dictation/config.yaml", "./config.yaml")

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w (checked: $DICTATION_CONFIG, ~/.config/dictation, /etc/dictation, ./config.yaml)", ErrNoConfig)
}

// parse decodes YAML over the defaults so that omitted keys, including
// booleans that default to true, keep their default values.
func parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func finish(cfg *Config) (*Config, error) {
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg = applyConfigDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadDotEnv(dir string) {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	// godotenv.Load never overrides variables already present in the environment.
	_ = godotenv.Load(path)
}

// applyEnvOverrides applies the DICTATION_* variables on top of the file values.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"DICTATION_MODEL":           &cfg.Whisper.Model,
		"DICTATION_MODELS_PATH":     &cfg.Whisper.ModelsPath,
		"DICTATION_LANGUAGE":        &cfg.Whisper.Language,
		"DICTATION_RECORDINGS_PATH": &cfg.Recording.RecordingsPath,
		"DICTATION_PID_FILE":        &cfg.Recording.PIDFile,
		"DICTATION_INJECTOR":        &cfg.Injection.Backend,
		"DICTATION_DATA_DIR":        &cfg.Service.DataDir,
		"DICTATION_DB_PATH":         &cfg.Storage.Path,
		"DICTATION_LOG_LEVEL":       &cfg.Service.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"DICTATION_AUTO_INJECT":       &cfg.Injection.AutoInject,
		"DICTATION_AUTO_DELETE_AUDIO": &cfg.Recording.AutoDeleteAudio,
	}
	for key, dst := range bools {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: invalid boolean %q", key, v)
		}
		*dst = b
	}

	if v := os.Getenv("DICTATION_THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DICTATION_THREADS: invalid integer %q", v)
		}
		cfg.Whisper.Threads = n
	}

	if v := os.Getenv("DICTATION_MAX_DURATION"); v != "" {
		d, err := parseSecondsOrDuration(v)
		if err != nil {
			return fmt.Errorf("DICTATION_MAX_DURATION: %w", err)
		}
		cfg.Recording.MaxDuration = d
	}

	return nil
}

// parseSecondsOrDuration accepts a bare number of seconds ("300") or a Go duration ("5m").
func parseSecondsOrDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

// applyConfigDefaults fills values left empty and derives paths from the data directory.
func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	cfg.Service.LogLevel = strings.ToLower(cfg.Service.LogLevel)
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.Service.DataDir == "" {
		cfg.Service.DataDir = defaults.Service.DataDir
	}
	cfg.Service.DataDir = expandHome(cfg.Service.DataDir)
	dataDir := cfg.Service.DataDir

	if len(cfg.Recording.Command) == 0 {
		cfg.Recording.Command = defaults.Recording.Command
	}
	if cfg.Recording.RecordingsPath == "" {
		cfg.Recording.RecordingsPath = filepath.Join(dataDir, "recordings")
	}
	if cfg.Recording.PIDFile == "" {
		cfg.Recording.PIDFile = filepath.Join(dataDir, "recording.pid")
	}
	if cfg.Recording.SampleRate == 0 {
		cfg.Recording.SampleRate = defaults.Recording.SampleRate
	}
	if cfg.Recording.Channels == 0 {
		cfg.Recording.Channels = defaults.Recording.Channels
	}
	if cfg.Recording.MaxDuration == 0 {
		cfg.Recording.MaxDuration = defaults.Recording.MaxDuration
	}
	if cfg.Recording.StopTimeout == 0 {
		cfg.Recording.StopTimeout = defaults.Recording.StopTimeout
	}
	if cfg.Recording.PollInterval == 0 {
		cfg.Recording.PollInterval = defaults.Recording.PollInterval
	}
	cfg.Recording.RecordingsPath = expandHome(cfg.Recording.RecordingsPath)
	cfg.Recording.PIDFile = expandHome(cfg.Recording.PIDFile)
	cfg.Recording.LogFile = expandHome(cfg.Recording.LogFile)

	if cfg.Whisper.Binary == "" {
		cfg.Whisper.Binary = defaults.Whisper.Binary
	}
	if cfg.Whisper.FFmpegBinary == "" {
		cfg.Whisper.FFmpegBinary = defaults.Whisper.FFmpegBinary
	}
	if cfg.Whisper.ModelsPath == "" {
		cfg.Whisper.ModelsPath = filepath.Join(dataDir, "models")
	}
	cfg.Whisper.ModelsPath = expandHome(cfg.Whisper.ModelsPath)
	if cfg.Whisper.Model == "" {
		cfg.Whisper.Model = defaults.Whisper.Model
	}
	if cfg.Whisper.Language == "" {
		cfg.Whisper.Language = defaults.Whisper.Language
	}
	if cfg.Whisper.Threads == 0 {
		cfg.Whisper.Threads = defaults.Whisper.Threads
	}
	if cfg.Whisper.DownloadURL == "" {
		cfg.Whisper.DownloadURL = defaults.Whisper.DownloadURL
	}
	cfg.Whisper.DownloadURL = strings.TrimRight(cfg.Whisper.DownloadURL, "/")

	if cfg.Injection.Backend == "" {
		cfg.Injection.Backend = defaults.Injection.Backend
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(dataDir, "dictation.db")
	}
	cfg.Storage.Path = expandHome(cfg.Storage.Path)

	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}

	if cfg.MCP.ServerName == "" {
		cfg.MCP.ServerName = defaults.MCP.ServerName
	}
	if cfg.MCP.ServerVersion == "" {
		cfg.MCP.ServerVersion = defaults.MCP.ServerVersion
	}
	if cfg.MCP.ProtocolVersion == "" {
		cfg.MCP.ProtocolVersion = defaults.MCP.ProtocolVersion
	}

	return cfg
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Unset variables are left in place and rejected by validate.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q check (got %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	hasFile := false
	for _, arg := range cfg.Recording.Command {
		if strings.Contains(arg, "{file}") {
			hasFile = true
			break
		}
	}
	if !hasFile {
		return fmt.Errorf("recording.command must contain a {file} placeholder")
	}

	if cfg.Recording.StopTimeout < cfg.Recording.PollInterval {
		return fmt.Errorf("recording.stop_timeout (%s) must not be shorter than recording.poll_interval (%s)",
			cfg.Recording.StopTimeout, cfg.Recording.PollInterval)
	}

	if envVarPattern.MatchString(cfg.API.APIKey) {
		matches := envVarPattern.FindStringSubmatch(cfg.API.APIKey)
		return fmt.Errorf("api.api_key: environment variable ${%s} is not set", matches[1])
	}

	return nil
}
