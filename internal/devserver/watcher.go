// Package devserver implements the hot-reloading development runners for
// the two application tiers: a process restarter for the API and a static
// live-reloading server for the client.
package devserver

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const debounceWindow = 300 * time.Millisecond

// Watcher watches directory trees and emits a single debounced event per
// burst of file changes.
type Watcher struct {
	fsw      *fsnotify.Watcher
	events   chan string
	exts     map[string]bool
	debounce time.Duration
	logger   *log.Logger
	done     chan struct{}
}

// NewWatcher creates a watcher over the given root directories, recursing
// into subdirectories. Only files with one of the given extensions (e.g.
// ".go") trigger events; an empty list watches everything.
func NewWatcher(roots []string, exts []string, logger *log.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("unable to create file watcher: %w", err)
	}

	if logger == nil {
		logger = log.New()
	}

	w := &Watcher{
		fsw:      fsw,
		events:   make(chan string, 1),
		exts:     make(map[string]bool, len(exts)),
		debounce: debounceWindow,
		logger:   logger,
		done:     make(chan struct{}),
	}
	for _, ext := range exts {
		w.exts[ext] = true
	}

	for _, root := range roots {
		if err := w.addRecursive(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				w.logger.WithField("dir", root).Debug("watch dir does not exist, skipping")
				return filepath.SkipAll
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if name != "." && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		if name == "node_modules" || name == "vendor" {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("unable to watch '%s': %w", path, err)
		}
		return nil
	})
}

// Events returns the channel of debounced change notifications. Each value
// is the path that triggered the burst.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	var (
		timerC  <-chan time.Time
		pending string
	)

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}

			// new directories need to be picked up for recursion
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
					continue
				}
			}

			// each change restarts the debounce window
			pending = event.Name
			timerC = time.After(w.debounce)
		case <-timerC:
			timerC = nil
			select {
			case w.events <- pending:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("file watcher error")
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if len(w.exts) == 0 {
		return true
	}
	return w.exts[filepath.Ext(event.Name)]
}
