package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the weights document whenever it changes on disk, so
// an operator tuning solver or validator weights mid-batch doesn't need
// to restart the run.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	current Weights
	updates chan Weights
}

// NewWatcher loads path once and starts watching its parent directory
// for changes (editors typically replace-via-rename, which does not
// fire on a direct file watch).
func NewWatcher(path string) (*Watcher, error) {
	w, err := LoadWeights(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	watcher := &Watcher{
		path:    path,
		watcher: fw,
		current: w,
		updates: make(chan Weights, 1),
	}
	go watcher.run()
	return watcher, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			reloaded, err := LoadWeights(w.path)
			if err != nil {
				slog.Warn("weights reload failed, keeping previous values", "path", w.path, "error", err)
				continue
			}
			w.current = reloaded
			select {
			case w.updates <- reloaded:
			default:
				select {
				case <-w.updates:
				default:
				}
				w.updates <- reloaded
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("weights watcher error", "error", err)
		}
	}
}

// Current returns the most recently loaded weights.
func (w *Watcher) Current() Weights {
	return w.current
}

// Updates delivers a value each time the weights file is reloaded. The
// channel is buffered by one; a consumer that doesn't keep up only sees
// the latest version, never a backlog.
func (w *Watcher) Updates() <-chan Weights {
	return w.updates
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
