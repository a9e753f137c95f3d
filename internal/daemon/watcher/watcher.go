// Package watcher reloads daemon settings when the settings file changes.
package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses bursts of writes to one event.
const DefaultDebounce = 100 * time.Millisecond

// EventType represents the type of file system event.
type EventType int

// Event types for watched files.
const (
	EventChanged EventType = iota
	EventRemoved
)

func (t EventType) String() string {
	if t == EventRemoved {
		return "removed"
	}
	return "changed"
}

// Event represents a debounced change to a watched file.
type Event struct {
	Type EventType
	Path string
}

// Watcher watches named files inside one directory. The directory is
// watched rather than the files so atomic replace-by-rename is seen.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	dir        string
	files      map[string]bool
	eventsChan chan Event
	done       chan struct{}
	stopOnce   sync.Once
	logger     *zap.Logger
	delay      time.Duration
	debounce   map[string]*time.Timer
	debounceMu sync.Mutex
}

// New creates a watcher for the given file names inside dir.
func New(dir string, names []string, logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	files := make(map[string]bool, len(names))
	for _, n := range names {
		files[n] = true
	}
	return &Watcher{
		fsWatcher:  fsWatcher,
		dir:        filepath.Clean(dir),
		files:      files,
		eventsChan: make(chan Event, 16),
		done:       make(chan struct{}),
		logger:     logger.Named("watcher"),
		delay:      DefaultDebounce,
		debounce:   make(map[string]*time.Timer),
	}, nil
}

// Events returns the channel for receiving events.
func (w *Watcher) Events() <-chan Event {
	return w.eventsChan
}

// Start begins watching.
func (w *Watcher) Start() error {
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return err
	}
	go w.processEvents()
	return nil
}

// Stop stops the watcher. Pending debounced events are dropped.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsWatcher.Close()
		w.debounceMu.Lock()
		for path, t := range w.debounce {
			t.Stop()
			delete(w.debounce, path)
		}
		w.debounceMu.Unlock()
	})
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.files[filepath.Base(event.Name)] || filepath.Dir(event.Name) != w.dir {
		return
	}
	w.logger.Debug("fsnotify", zap.String("op", event.Op.String()), zap.String("path", event.Name))

	// Rename covers atomic writes that replace the target.
	var t EventType
	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
		t = EventChanged
	case event.Op&fsnotify.Remove != 0:
		t = EventRemoved
	default:
		return
	}

	w.debounceEvent(event.Name, func() {
		w.emit(Event{Type: t, Path: event.Name})
	})
}

// debounceEvent debounces events for the same path.
func (w *Watcher) debounceEvent(path string, fn func()) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}
	w.debounce[path] = time.AfterFunc(w.delay, func() {
		w.debounceMu.Lock()
		delete(w.debounce, path)
		w.debounceMu.Unlock()
		fn()
	})
}

func (w *Watcher) emit(e Event) {
	select {
	case <-w.done:
	case w.eventsChan <- e:
	}
}
