package watch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"trb/internal/config"
)

// Watcher observes a workspace root recursively and feeds raw file events
// into an Aggregator. Dependency directories and hidden directories are not
// descended into.
type Watcher struct {
	fsw        *fsnotify.Watcher
	aggregator *Aggregator
	root       string
	skipDirs   map[string]bool
	done       chan struct{}
	errs       chan error
}

// NewWatcher starts watching root and all current subdirectories. New
// directories are picked up as they appear.
func NewWatcher(root string, aggregator *Aggregator) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(config.DefaultSkipDirs))
	for _, d := range config.DefaultSkipDirs {
		skip[d] = true
	}

	w := &Watcher{
		fsw:        fsw,
		aggregator: aggregator,
		root:       filepath.Clean(root),
		skipDirs:   skip,
		done:       make(chan struct{}),
		errs:       make(chan error, 10),
	}

	if err := w.addRecursive(w.root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

// Errors exposes watcher-level errors (overflow, inaccessible directories).
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Close stops event processing.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) || os.IsPermission(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			return nil
		}
		name := info.Name()
		if w.skipDirs[name] || (strings.HasPrefix(name, ".") && path != dir) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			if os.IsPermission(err) {
				return nil
			}
			return err
		}
		return nil
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addRecursive(path); err != nil {
				select {
				case w.errs <- err:
				default:
				}
			}
			return
		}
	}

	switch {
	case event.Has(fsnotify.Create):
		w.aggregator.Notify(OpCreated, path)
	case event.Has(fsnotify.Write):
		w.aggregator.Notify(OpChanged, path)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.aggregator.Notify(OpDeleted, path)
	}
}
