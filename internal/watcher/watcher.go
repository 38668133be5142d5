package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/alucardeht/typeline/internal/logger"
)

var log = logger.ForComponent("watcher")

// Watcher recursively watches source roots and delivers debounced batches
// of file events to the registered callback. The runner uses it to drive
// re-checks in watch mode.
type Watcher struct {
	config      WatcherConfig
	fsWatcher   *fsnotify.Watcher
	fsWatcherMu sync.Mutex
	debouncer   *Debouncer
	onBatch     func([]FileEvent)
	roots       []string
	mu          sync.RWMutex
	running     bool
	ctx         context.Context
	cancel      context.CancelFunc
}

func New(config WatcherConfig, onBatch func([]FileEvent)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		config:    config,
		fsWatcher: fsWatcher,
		onBatch:   onBatch,
		roots:     make([]string, 0),
	}

	w.debouncer = NewDebouncer(config.DebounceWindow, config.MaxBatchSize, w.onFlush)

	return w, nil
}

func (w *Watcher) addToWatcher(path string) error {
	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	return w.fsWatcher.Add(path)
}

func (w *Watcher) AddRoot(path string) error {
	log.Info("watching root", "path", path)

	if err := w.addToWatcher(path); err != nil {
		return err
	}

	w.mu.Lock()
	w.roots = append(w.roots, path)
	w.mu.Unlock()

	return w.walkAndAdd(path)
}

func (w *Watcher) walkAndAdd(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		log.Debug("failed to read directory", "path", path, "error", err)
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		fullPath := filepath.Join(path, entry.Name())
		if w.shouldIgnore(fullPath) {
			continue
		}

		if err := w.addToWatcher(fullPath); err != nil {
			log.Debug("failed to watch directory", "path", fullPath, "error", err)
			continue
		}
		w.walkAndAdd(fullPath)
	}

	return nil
}

func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	w.running = true
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	go w.handleEvents()

	return nil
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.cancel()
	w.mu.Unlock()

	w.debouncer.Stop()
	return w.fsWatcher.Close()
}

func (w *Watcher) handleEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			log.Debug("file event", "path", event.Name, "op", event.Op.String())

			// New directories must be added to the watch set before their
			// contents start changing.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !w.shouldIgnore(event.Name) {
						if err := w.addToWatcher(event.Name); err == nil {
							w.walkAndAdd(event.Name)
						}
					}
					continue
				}
			}

			if fileEvent := w.convertEvent(event); fileEvent != nil {
				w.debouncer.Add(*fileEvent)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) convertEvent(event fsnotify.Event) *FileEvent {
	if w.shouldIgnore(event.Name) || !w.matchesExtension(event.Name) {
		return nil
	}

	var eventType EventType

	switch {
	case event.Has(fsnotify.Create):
		eventType = EventCreate
	case event.Has(fsnotify.Write):
		eventType = EventModify
	case event.Has(fsnotify.Remove):
		eventType = EventDelete
	case event.Has(fsnotify.Rename):
		eventType = EventRename
	default:
		return nil
	}

	return &FileEvent{
		Path:      event.Name,
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

func (w *Watcher) onFlush(events []FileEvent) {
	if len(events) == 0 || w.onBatch == nil {
		return
	}

	log.Debug("flushing events", "count", len(events))
	w.onBatch(events)
}

func (w *Watcher) matchesExtension(path string) bool {
	if len(w.config.Extensions) == 0 {
		return true
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.config.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldIgnore(path string) bool {
	basename := filepath.Base(path)

	if !w.config.WatchHidden && strings.HasPrefix(basename, ".") {
		return true
	}

	for _, pattern := range w.config.IgnorePatterns {
		if match, _ := doublestar.Match(pattern, filepath.ToSlash(path)); match {
			return true
		}
	}

	return false
}
