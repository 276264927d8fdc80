package filenotes

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Kohei-Wada/taskdog-sub001/internal/common/fileutil"
	"github.com/Kohei-Wada/taskdog-sub001/internal/common/logger"
)

// Watcher reports the ids of tasks whose note files change on disk, so
// edits made outside the API still raise notes-updated notifications.
type Watcher struct {
	baseDir   string
	watcher   *fsnotify.Watcher
	events    chan int
	quit      chan struct{}
	closeOnce sync.Once
}

// NewWatcher starts watching baseDir for note file changes. The directory
// is created when missing so the watch can attach.
func NewWatcher(baseDir string) (*Watcher, error) {
	if err := fileutil.EnsureDir(baseDir); err != nil {
		return nil, fmt.Errorf("failed to create notes directory: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create notes watcher: %w", err)
	}
	if err := fw.Add(baseDir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch notes directory %s: %w", baseDir, err)
	}
	return &Watcher{
		baseDir: baseDir,
		watcher: fw,
		events:  make(chan int, 16),
		quit:    make(chan struct{}),
	}, nil
}

// Events delivers the ids of tasks whose notes changed.
func (w *Watcher) Events() <-chan int {
	return w.events
}

// Start blocks, forwarding file events until Stop is called or the
// context is canceled.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case <-w.quit:
			return

		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error(ctx, "Notes watcher error", "err", err)
		}
	}
}

// Stop stops watching the notes directory.
func (w *Watcher) Stop() {
	w.closeOnce.Do(func() {
		close(w.quit)
		_ = w.watcher.Close()
	})
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	switch event.Op {
	case fsnotify.Create, fsnotify.Write, fsnotify.Remove, fsnotify.Rename:
	default:
		// Ignore other events (e.g., Chmod)
		return
	}
	id, ok := taskIDFromPath(event.Name)
	if !ok {
		return
	}
	select {
	case w.events <- id:
	default:
		logger.Warn(ctx, "Notes watcher dropped event", "taskId", id)
	}
}

// taskIDFromPath extracts the task id from a notes file path; only
// <digits>.md names count.
func taskIDFromPath(path string) (int, bool) {
	name, found := strings.CutSuffix(filepath.Base(path), ".md")
	if !found {
		return 0, false
	}
	id, err := strconv.Atoi(name)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
