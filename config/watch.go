package config

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow collapses the create-then-write pairs editors emit for a
// single save.
const debounceWindow = 100 * time.Millisecond

// Watcher reports edits to configuration and script files under the watched
// paths. Events carries the changed file names; both channels close on
// Close.
type Watcher struct {
	fs      *fsnotify.Watcher
	Events  chan string
	Errors  chan error
	closeCh chan struct{}
	once    sync.Once
}

// NewWatcher watches the given files or directories.
func NewWatcher(paths ...string) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if err := fs.Add(path); err != nil {
			_ = fs.Close()
			return nil, err
		}
	}

	w := &Watcher{
		fs:      fs,
		Events:  make(chan string, 16),
		Errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Close stops the watcher and closes both channels. Safe to call twice.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.fs.Close()
		close(w.Events)
		close(w.Errors)
	})
	return err
}

func (w *Watcher) run() {
	last := make(map[string]time.Time)
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !watchable(event.Name) {
				continue
			}
			now := time.Now()
			if t, seen := last[event.Name]; seen && now.Sub(t) < debounceWindow {
				continue
			}
			last[event.Name] = now
			w.Events <- event.Name
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.Errors <- err
		case <-w.closeCh:
			return
		}
	}
}

// watchable filters for the file types the sandbox reloads.
func watchable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".tengo":
		return true
	}
	return false
}
