package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cacheBookwork, cacheImage, cacheBackend = false, false, ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCacheCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	storePath := filepath.Join(dir, "answers.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  backend: file\n  path: "+storePath+"\n"), 0644))

	out, err := execute(t, "cache", "put", "--config", cfgPath, "What is 2+2?", "Answer: 4")
	require.NoError(t, err)
	assert.Contains(t, out, `"4"`)

	out, err = execute(t, "cache", "put", "--config", cfgPath, "--bookwork", "1A", "3,5 cm")
	require.NoError(t, err)
	assert.Contains(t, out, "bookwork:1A")

	out, err = execute(t, "cache", "get", "--config", cfgPath, "What is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4", strings.TrimSpace(out))

	out, err = execute(t, "cache", "get", "--config", cfgPath, "--bookwork", "1A")
	require.NoError(t, err)
	assert.Equal(t, "3.5", strings.TrimSpace(out))

	exportPath := filepath.Join(dir, "export.json")
	_, err = execute(t, "cache", "export", "--config", cfgPath, exportPath)
	require.NoError(t, err)

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	var records map[string]string
	require.NoError(t, json.Unmarshal(data, &records))
	assert.Equal(t, map[string]string{"What is 2+2?": "4", "bookwork:1A": "3.5"}, records)

	sqlitePath := filepath.Join(dir, "answers.db")
	sqliteCfg := filepath.Join(dir, "sqlite.yaml")
	require.NoError(t, os.WriteFile(sqliteCfg, []byte("store:\n  backend: sqlite\n  path: "+sqlitePath+"\n"), 0644))

	out, err = execute(t, "cache", "import", "--config", sqliteCfg, exportPath)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 answers")

	out, err = execute(t, "cache", "get", "--config", sqliteCfg, "--bookwork", "1A")
	require.NoError(t, err)
	assert.Equal(t, "3.5", strings.TrimSpace(out))
}

func TestCacheGet_ExclusiveFlags(t *testing.T) {
	_, err := execute(t, "cache", "get", "--bookwork", "--image", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}
