package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreenshot_SaveTo(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "questions")
	shot := NewScreenshot([]byte("\x89PNG"))

	require.NoError(t, shot.SaveTo(dir))
	assert.Equal(t, dir, filepath.Dir(shot.Filepath))
	assert.True(t, strings.HasPrefix(filepath.Base(shot.Filepath), "question_"))
	assert.Equal(t, ".png", filepath.Ext(shot.Filepath))

	data, err := os.ReadFile(shot.Filepath)
	require.NoError(t, err)
	assert.Equal(t, shot.Data, data)

	other := NewScreenshot([]byte("\x89PNG"))
	require.NoError(t, other.SaveTo(dir))
	assert.NotEqual(t, shot.Filepath, other.Filepath)
}

func TestJSString(t *testing.T) {
	assert.Equal(t, `".question"`, jsString(".question"))
	assert.Equal(t, `"input[name=\"answer\"]"`, jsString(`input[name="answer"]`))
}

func TestNewPage_Defaults(t *testing.T) {
	p := NewPage(nil, PageConfig{StartURL: "https://quiz.example.com"})
	assert.Equal(t, CaptureImage, p.cfg.CaptureMode)
	assert.NotZero(t, p.cfg.WaitTimeout)
	assert.NotNil(t, p.logger)
}
