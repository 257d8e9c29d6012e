// Package watcher provides debounced file system watching for a dataset tree.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/smripost/internal/log"
)

// Ignorer decides whether a slash-separated path relative to the watched
// root should be skipped. *bidsignore.Matcher satisfies it.
type Ignorer interface {
	Match(rel string) bool
}

// Watcher monitors a dataset tree and signals when its contents change.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	root      string
	ignore    Ignorer
	debounce  time.Duration
	onChange  chan struct{}
	done      chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	Root        string
	DebounceDur time.Duration
	Ignore      Ignorer // optional
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(root string) Config {
	return Config{
		Root:        root,
		DebounceDur: 300 * time.Millisecond,
	}
}

// New creates a new dataset watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		root:      cfg.Root,
		ignore:    cfg.Ignore,
		debounce:  cfg.DebounceDur,
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start adds every non-ignored directory under the root and begins
// watching. The returned channel receives one signal per quiet period that
// followed at least one relevant change.
func (w *Watcher) Start() (<-chan struct{}, error) {
	if err := w.addTree(w.root); err != nil {
		return nil, err
	}

	go w.loop()

	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("watching directory %s: %w", path, err)
		}
		return nil
	})
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending bool
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if !w.isRelevantEvent(event) {
				continue
			}

			// New directories are watched too, so files created inside
			// them later are seen.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						log.Warn(log.CatWatcher, "Failed to watch new directory", "dir", event.Name, "error", err)
					}
				}
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			pending = true

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			if pending {
				// Non-blocking send - drop if channel full
				select {
				case w.onChange <- struct{}{}:
				default:
				}
				pending = false
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn(log.CatWatcher, "Watcher error", "root", w.root, "error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// isRelevantEvent reports whether the event changes the dataset contents.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return !w.ignored(event.Name)
}

func (w *Watcher) ignored(path string) bool {
	if w.ignore == nil {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	return w.ignore.Match(filepath.ToSlash(rel))
}
