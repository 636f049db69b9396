package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func load(t *testing.T, content string) (*Config, *ConfigLoader, error) {
	t.Helper()
	loader, err := NewConfigLoader(writeConfig(t, content))
	require.NoError(t, err)
	cfg, err := loader.Load()
	return cfg, loader, err
}

func TestConfigLoader_Defaults(t *testing.T) {
	cfg, _, err := load(t, "")
	require.NoError(t, err)

	assert.Equal(t, "image", cfg.Session.CaptureMode)
	assert.Equal(t, 30*time.Second, cfg.Session.WaitTimeout)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, 3, cfg.Flow.MaxConsecutiveFailures)
	assert.Equal(t, 0, cfg.Flow.MaxIterations)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1280, cfg.Browser.WindowWidth)
}

func TestConfigLoader_File(t *testing.T) {
	cfg, loader, err := load(t, `
session:
  start_url: https://quiz.example.com/tasks
  capture_mode: text
  wait_timeout: 10s
  selectors:
    question: ".question"
    answer_input: "input.answer"
    submit: "button.submit"
    bookwork_marker: ".bookwork-check"
    bookwork_option: ".bookwork-check .option"
store:
  backend: file
  path: /tmp/answers.json
flow:
  max_iterations: 25
`)
	require.NoError(t, err)
	require.NoError(t, loader.ValidateSession(cfg))

	assert.Equal(t, "https://quiz.example.com/tasks", cfg.Session.StartURL)
	assert.Equal(t, "text", cfg.Session.CaptureMode)
	assert.Equal(t, 10*time.Second, cfg.Session.WaitTimeout)
	assert.Equal(t, ".bookwork-check .option", cfg.Session.Selectors.BookworkOption)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, 25, cfg.Flow.MaxIterations)
}

func TestConfigLoader_EnvOverrides(t *testing.T) {
	t.Setenv("ANSWER_AGENT_STORE_BACKEND", "file")
	t.Setenv("ANSWER_AGENT_FLOW_MAX_ITERATIONS", "7")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, _, err := load(t, "store:\n  backend: sqlite\n")
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, 7, cfg.Flow.MaxIterations)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
}

func TestConfigLoader_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown backend",
			content: "store:\n  backend: redis\n",
			wantErr: "backend",
		},
		{
			name:    "s3 without bucket",
			content: "store:\n  backend: s3\n",
			wantErr: "bucket",
		},
		{
			name:    "failure budget without recovery",
			content: "flow:\n  max_consecutive_failures: 1\n",
			wantErr: "max_consecutive_failures",
		},
		{
			name:    "unknown log format",
			content: "log:\n  format: xml\n",
			wantErr: "format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := load(t, tt.content)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigLoader_ValidateSession(t *testing.T) {
	cfg, loader, err := load(t, "session:\n  capture_mode: video\n")
	require.NoError(t, err)

	err = loader.ValidateSession(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start_url")
	assert.Contains(t, err.Error(), "capture_mode")
	assert.Contains(t, err.Error(), "question")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "agent.log")

	logger, closeLog, err := NewLogger(LogConfig{Level: "debug", Format: "json", File: logFile}, &buf)
	require.NoError(t, err)

	logger.Debug("question captured", "iteration", 1)
	require.NoError(t, closeLog())

	assert.Contains(t, buf.String(), `"msg":"question captured"`)
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "question captured")
}
