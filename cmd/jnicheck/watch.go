package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 200 * time.Millisecond

// fileWatcher reports changes to a fixed set of files. It watches their
// directories so that editors replacing a file by rename are seen too.
type fileWatcher struct {
	watcher *fsnotify.Watcher
	targets map[string]bool
	logger  *zap.Logger
}

func newFileWatcher(paths []string, logger *zap.Logger) (*fileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	fw := &fileWatcher{watcher: w, targets: make(map[string]bool), logger: logger}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		fw.targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return fw, nil
}

// Run calls onChange once per burst of changes until ctx is done, then
// closes the watcher.
func (fw *fileWatcher) Run(ctx context.Context, debounce time.Duration, onChange func()) {
	defer func() { _ = fw.watcher.Close() }()

	timer := time.NewTimer(debounce)
	timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !fw.targets[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			fw.logger.Debug("watched file changed",
				zap.String("path", event.Name), zap.String("op", event.Op.String()))
			timer.Reset(debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			onChange()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}
