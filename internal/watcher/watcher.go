// Package watcher watches configuration files for changes.
package watcher

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// FileWatcher watches a single file and invokes a callback when it is
// written or replaced. Editors often rename-and-recreate, so the parent
// directory is watched and events are filtered by name.
type FileWatcher struct {
	path     string
	onChange func()
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// New creates a watcher for path. onChange runs on the watcher goroutine.
func New(path string, onChange func()) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path %q: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %q: %w", filepath.Dir(abs), err)
	}

	return &FileWatcher{
		path:     abs,
		onChange: onChange,
		watcher:  fw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine.
func (w *FileWatcher) Start() {
	go w.loop()
}

func (w *FileWatcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Info().Str("file", w.path).Str("op", event.Op.String()).Msg("Watched file changed")
			w.onChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("File watcher error")
		case <-w.done:
			return
		}
	}
}

// Stop stops the watcher and releases its resources.
func (w *FileWatcher) Stop() {
	close(w.done)
	if err := w.watcher.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close file watcher")
	}
}
