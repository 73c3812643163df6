package scan

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 500 * time.Millisecond

// Watcher rehashes files as they change instead of waiting for the next scan.
type Watcher struct {
	scanner        *Scanner
	mu             sync.Mutex
	debounceTimers map[string]*time.Timer
	delay          time.Duration
}

func NewWatcher(scanner *Scanner) *Watcher {
	return &Watcher{
		scanner:        scanner,
		debounceTimers: make(map[string]*time.Timer),
		delay:          debounceDelay,
	}
}

// Run watches the sync folder and its subdirectories until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := w.open()
	if err != nil {
		return err
	}
	return w.loop(ctx, watcher)
}

func (w *Watcher) open() (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := addTree(watcher, w.scanner.cfg.SyncFolder); err != nil {
		watcher.Close()
		return nil, err
	}
	log.Infof("Watching directory: %s", w.scanner.cfg.SyncFolder)
	return watcher, nil
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher) error {
	defer watcher.Close()
	defer w.stopTimers()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, watcher, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("Watcher error:", "err", err)

		case <-ctx.Done():
			return nil
		}
	}
}

func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) handle(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	if IsTemporaryFile(event.Name) {
		return
	}

	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addTree(watcher, event.Name); err != nil {
				log.Errorf("Failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		log.Debugf("File changed: %s", event.Name)
		w.debounce(event.Name, func() { w.rehash(ctx, event.Name) })
	}
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		log.Debugf("File removed: %s", event.Name)
		w.debounce(event.Name, func() { w.forget(event.Name) })
	}
}

// debounce runs fn once events for path have been quiet for the delay.
func (w *Watcher) debounce(path string, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, exists := w.debounceTimers[path]; exists {
		timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(w.delay, func() {
		w.mu.Lock()
		if w.debounceTimers[path] != timer {
			w.mu.Unlock()
			return
		}
		delete(w.debounceTimers, path)
		w.mu.Unlock()
		fn()
	})
	w.debounceTimers[path] = timer
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.debounceTimers {
		timer.Stop()
		delete(w.debounceTimers, path)
	}
}

func (w *Watcher) rehash(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	if _, err := w.scanner.HashFile(ctx, path); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("Failed to hash %s: %v", path, err)
	}
}

func (w *Watcher) forget(path string) {
	// A rename onto the same name or a quick recreate leaves the file in place.
	if _, err := os.Stat(path); err == nil {
		log.Debugf("File %s still exists, skipping deletion", path)
		return
	}
	if err := w.scanner.Forget(path); err != nil {
		log.Errorf("Failed to forget %s: %v", path, err)
	}
}
