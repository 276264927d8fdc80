// Package filenotes stores free-form task notes as one markdown file per
// task id under a base directory.
package filenotes

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Kohei-Wada/taskdog-sub001/internal/common/fileutil"
)

// Store keeps one <id>.md file per task.
type Store struct {
	baseDir string
}

// New creates a notes store rooted at baseDir. The directory is created
// lazily on first write.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Path returns the file backing the given task's notes.
func (s *Store) Path(taskID int) string {
	return filepath.Join(s.baseDir, strconv.Itoa(taskID)+".md")
}

// Read returns the notes content and whether notes exist for the task.
func (s *Store) Read(taskID int) (string, bool, error) {
	data, err := os.ReadFile(s.Path(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read notes for task %d: %w", taskID, err)
	}
	return string(data), true, nil
}

// Write replaces the notes for the task.
func (s *Store) Write(taskID int, content string) error {
	if err := fileutil.EnsureDir(s.baseDir); err != nil {
		return fmt.Errorf("failed to create notes directory: %w", err)
	}
	if err := os.WriteFile(s.Path(taskID), []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write notes for task %d: %w", taskID, err)
	}
	return nil
}

// Delete removes the notes file. Deleting absent notes is not an error.
func (s *Store) Delete(taskID int) error {
	if err := os.Remove(s.Path(taskID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete notes for task %d: %w", taskID, err)
	}
	return nil
}

// Has reports whether the task has stored notes.
func (s *Store) Has(taskID int) bool {
	return fileutil.FileExists(s.Path(taskID))
}
