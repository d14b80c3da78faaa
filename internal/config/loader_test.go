package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config, dir string)
	}{
		{
			name: "empty file yields defaults under data dir",
			yaml: "service:\n  data_dir: ${TEST_DATA_DIR}\n",
			checkFn: func(t *testing.T, cfg *Config, dir string) {
				assert.Equal(t, "base.en", cfg.Whisper.Model)
				assert.Equal(t, "en", cfg.Whisper.Language)
				assert.Equal(t, 4, cfg.Whisper.Threads)
				assert.Equal(t, 300*time.Second, cfg.Recording.MaxDuration)
				assert.Equal(t, int64(100), cfg.Recording.MinBytes)
				assert.Equal(t, "wl-paste", cfg.Injection.Backend)
				assert.True(t, cfg.Injection.AutoInject)
				assert.True(t, cfg.Recording.AutoDeleteAudio)
				assert.Equal(t, filepath.Join(dir, "recordings"), cfg.Recording.RecordingsPath)
				assert.Equal(t, filepath.Join(dir, "recording.pid"), cfg.Recording.PIDFile)
				assert.Equal(t, filepath.Join(dir, "models"), cfg.Whisper.ModelsPath)
				assert.Equal(t, filepath.Join(dir, "dictation.db"), cfg.Storage.Path)
				assert.Equal(t, "2024-11-05", cfg.MCP.ProtocolVersion)
			},
		},
		{
			name: "explicit values and false booleans survive",
			yaml: `
service:
  data_dir: ${TEST_DATA_DIR}
  log_level: DEBUG
whisper:
  model: small.en
  threads: 8
  download_url: https://example.com/models/
recording:
  max_duration: 45s
  auto_delete_audio: false
injection:
  backend: wtype
  auto_inject: false
`,
			checkFn: func(t *testing.T, cfg *Config, dir string) {
				assert.Equal(t, "debug", cfg.Service.LogLevel)
				assert.Equal(t, "small.en", cfg.Whisper.Model)
				assert.Equal(t, 8, cfg.Whisper.Threads)
				assert.Equal(t, "https://example.com/models", cfg.Whisper.DownloadURL)
				assert.Equal(t, 45*time.Second, cfg.Recording.MaxDuration)
				assert.False(t, cfg.Recording.AutoDeleteAudio)
				assert.Equal(t, "wtype", cfg.Injection.Backend)
				assert.False(t, cfg.Injection.AutoInject)
			},
		},
		{
			name: "DICTATION_ environment overrides win over the file",
			yaml: "service:\n  data_dir: ${TEST_DATA_DIR}\nwhisper:\n  model: tiny\n",
			env: map[string]string{
				"DICTATION_MODEL":             "medium.en",
				"DICTATION_THREADS":           "2",
				"DICTATION_MAX_DURATION":      "120",
				"DICTATION_AUTO_INJECT":       "false",
				"DICTATION_AUTO_DELETE_AUDIO": "0",
				"DICTATION_INJECTOR":          "ydotool",
			},
			checkFn: func(t *testing.T, cfg *Config, dir string) {
				assert.Equal(t, "medium.en", cfg.Whisper.Model)
				assert.Equal(t, 2, cfg.Whisper.Threads)
				assert.Equal(t, 120*time.Second, cfg.Recording.MaxDuration)
				assert.False(t, cfg.Injection.AutoInject)
				assert.False(t, cfg.Recording.AutoDeleteAudio)
				assert.Equal(t, "ydotool", cfg.Injection.Backend)
			},
		},
		{
			name:    "unknown injector rejected",
			yaml:    "service:\n  data_dir: ${TEST_DATA_DIR}\ninjection:\n  backend: xdotool\n",
			wantErr: "Backend",
		},
		{
			name:    "capture command without file placeholder rejected",
			yaml:    "service:\n  data_dir: ${TEST_DATA_DIR}\nrecording:\n  command: [arecord, out.wav]\n",
			wantErr: "{file}",
		},
		{
			name:    "bad threads override rejected",
			yaml:    "service:\n  data_dir: ${TEST_DATA_DIR}\n",
			env:     map[string]string{"DICTATION_THREADS": "many"},
			wantErr: "DICTATION_THREADS",
		},
		{
			name:    "unset api key variable rejected",
			yaml:    "service:\n  data_dir: ${TEST_DATA_DIR}\napi:\n  listen: localhost:1\n  api_key: ${DICTATION_TEST_UNSET_KEY}\n",
			wantErr: "DICTATION_TEST_UNSET_KEY",
		},
		{
			name:    "malformed yaml",
			yaml:    "whisper: [\n",
			wantErr: "failed to parse",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Setenv("TEST_DATA_DIR", dir)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeConfig(t, dir, tt.yaml)

			cfg, err := Load(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, path, cfg.SourcePath)
			if tt.checkFn != nil {
				tt.checkFn(t, cfg, dir)
			}
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_DATA_DIR", dir)
	writeConfig(t, dir, "service:\n  data_dir: ${TEST_DATA_DIR}\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfg.SourcePath)

	_, err = Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config.yaml not found")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_DATA_DIR", dir)
	t.Setenv("DICTATION_LANGUAGE", "")
	require.NoError(t, os.Unsetenv("DICTATION_LANGUAGE"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DICTATION_LANGUAGE=de\n"), 0o600))
	path := writeConfig(t, dir, "service:\n  data_dir: ${TEST_DATA_DIR}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "de", cfg.Whisper.Language)
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_DATA_DIR", dir)
	t.Setenv("DICTATION_LANGUAGE", "fr")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DICTATION_LANGUAGE=de\n"), 0o600))
	path := writeConfig(t, dir, "service:\n  data_dir: ${TEST_DATA_DIR}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fr", cfg.Whisper.Language)
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("DICTATION_CONFIG", "")
	chdir(t, dir)

	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Empty(t, cfg.SourcePath)
	assert.Equal(t, filepath.Join(dir, "data", "dictation"), cfg.Service.DataDir)

	path := writeConfig(t, dir, "whisper:\n  model: tiny\n")
	t.Setenv("DICTATION_CONFIG", path)
	cfg, err = LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, "tiny", cfg.Whisper.Model)
}

func TestDiscoverConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("DICTATION_CONFIG", "")
	chdir(t, t.TempDir())

	if _, err := os.Stat("/etc/dictation/config.yaml"); err == nil {
		t.Skip("system config present")
	}

	_, err := DiscoverConfigPath()
	assert.ErrorIs(t, err, ErrNoConfig)

	userDir := filepath.Join(dir, ".config", "dictation")
	require.NoError(t, os.MkdirAll(userDir, 0o755))
	want := writeConfig(t, userDir, "")

	got, err := DiscoverConfigPath()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	t.Setenv("DICTATION_CONFIG", filepath.Join(dir, "nope.yaml"))
	_, err = DiscoverConfigPath()
	assert.Error(t, err)
}

func TestParseSecondsOrDuration(t *testing.T) {
	d, err := parseSecondsOrDuration("300")
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, d)

	d, err = parseSecondsOrDuration("2m")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	_, err = parseSecondsOrDuration("soon")
	assert.Error(t, err)
}
