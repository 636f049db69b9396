package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Screenshot is a captured image of the question area
type Screenshot struct {
	// Filepath is the local path once saved
	Filepath string
	// Timestamp records when the screenshot was captured
	Timestamp time.Time
	// Data contains the raw PNG image bytes
	Data []byte
}

// NewScreenshot wraps captured PNG bytes
func NewScreenshot(data []byte) *Screenshot {
	return &Screenshot{
		Timestamp: time.Now(),
		Data:      data,
	}
}

// SaveTo writes the screenshot into dir with a unique filename.
// An empty dir uses the system temp directory.
func (s *Screenshot) SaveTo(dir string) error {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create screenshot directory %s: %w", dir, err)
	}

	filename := fmt.Sprintf("question_%s_%s.png",
		s.Timestamp.Format("20060102_150405"),
		uuid.New().String()[:8],
	)
	path := filepath.Join(dir, filename)

	if err := os.WriteFile(path, s.Data, 0644); err != nil {
		return fmt.Errorf("failed to save screenshot to %s: %w", path, err)
	}

	s.Filepath = path
	return nil
}
