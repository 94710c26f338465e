// Package watch implements the debounced filesystem watcher (C6): one
// fsnotify subscription on the data directory, one cancellable debounce
// timer per filename (never coalesced across files, per spec.md §9), that
// hands each settled file to the Ingestor.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/internal/memory/ingest"
	"github.com/kiosk404/reinsmem/pkg/logger"
)

var log = logger.For("watch")

// state is the Watcher's lifecycle state. Only Stopped and Running are
// modelled; Start and Stop make their transition under w.mu, with no
// separate Starting or Stopping state.
type state int

const (
	stateStopped state = iota
	stateRunning
)

// DeletionHandler is invoked when a watched file disappears. The watcher
// itself never deletes the corresponding record (spec.md §4.4 "Deletion
// handling"); the handler just reports it.
type DeletionHandler func(path string)

// Watcher debounces OS filesystem notifications for one directory and
// ingests settled files.
type Watcher struct {
	dir         string
	debounce    time.Duration
	ingestor    *ingest.Ingestor
	onDeletion  DeletionHandler

	mu      sync.Mutex
	st      state
	fsw     *fsnotify.Watcher
	done    chan struct{}
	timers  map[string]*time.Timer
	timerWG sync.WaitGroup
}

// New constructs a Watcher over dir with the given debounce interval
// (defaulting to spec.md §4.5's 500ms when debounce <= 0).
func New(dir string, debounce time.Duration, ingestor *ingest.Ingestor, onDeletion DeletionHandler) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{dir: dir, debounce: debounce, ingestor: ingestor, onDeletion: onDeletion, timers: map[string]*time.Timer{}}
}

// Start verifies the directory exists, subscribes to it, and begins the
// debounced event loop. Calling Start while already Running is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.st == stateRunning {
		return nil
	}

	info, err := os.Stat(w.dir)
	if err != nil {
		return entity.WrapFile(entity.KindIO, "watch.Start", w.dir, err)
	}
	if !info.IsDir() {
		return entity.New(entity.KindValidation, "watch.Start", w.dir+" is not a directory")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return entity.Wrap(entity.KindIO, "watch.Start", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return entity.WrapFile(entity.KindIO, "watch.Start", w.dir, err)
	}

	w.fsw = fsw
	w.done = make(chan struct{})
	w.st = stateRunning

	go w.loop(ctx, fsw, w.done)
	log.Info("watcher started on %s (debounce=%s)", w.dir, w.debounce)
	return nil
}

// Stop cancels all pending timers and releases the OS watcher. Calling
// Stop while already Stopped is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.st != stateRunning {
		w.mu.Unlock()
		return
	}
	w.st = stateStopped
	close(w.done)
	for name, t := range w.timers {
		if t.Stop() {
			w.timerWG.Done()
		}
		delete(w.timers, name)
	}
	fsw := w.fsw
	w.fsw = nil
	w.mu.Unlock()

	w.timerWG.Wait()
	if fsw != nil {
		_ = fsw.Close()
	}
	log.Info("watcher stopped on %s", w.dir)
}

// Rescan delegates to the Ingestor's ScanDirectory. It is independent of
// the live watch loop and safe to call concurrently with it.
func (w *Watcher) Rescan(ctx context.Context) ingest.ScanReport {
	return w.ingestor.ScanDirectory(ctx, w.dir)
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Error("watcher subscription error: %v", err)
		case <-done:
			return
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if !isTracked(name) {
		return
	}

	w.mu.Lock()
	if w.st != stateRunning {
		w.mu.Unlock()
		return
	}
	if t, ok := w.timers[name]; ok {
		if t.Stop() {
			w.timerWG.Done()
		}
	}
	w.timerWG.Add(1)
	w.timers[name] = time.AfterFunc(w.debounce, func() {
		defer w.timerWG.Done()
		w.fire(ctx, event.Name, name)
	})
	w.mu.Unlock()
}

func (w *Watcher) fire(ctx context.Context, path, name string) {
	w.mu.Lock()
	if w.st != stateRunning {
		w.mu.Unlock()
		return
	}
	delete(w.timers, name)
	w.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		if w.onDeletion != nil {
			w.onDeletion(path)
		}
		return
	}

	if _, err := w.ingestor.IngestFile(ctx, path); err != nil {
		log.Warn("ingest of %s failed: %v", name, err)
	}
}

// isTracked implements spec.md §4.5's filtering rule: only .md files,
// excluding dotfiles/swap-style names and editor/backup suffixes.
func isTracked(name string) bool {
	if !strings.HasSuffix(name, ".md") {
		return false
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") || strings.HasPrefix(name, "#") {
		return false
	}
	stem := strings.TrimSuffix(name, ".md")
	for _, suffix := range []string{".tmp", ".swp", ".swo", ".bak", ".crswap"} {
		if strings.HasSuffix(name, suffix) || strings.HasSuffix(stem, suffix) {
			return false
		}
	}
	return true
}
