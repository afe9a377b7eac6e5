package roster

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dawnkeeper/dawnkeeper/internal/logging"
)

// debounce window for editors that write the roster in several events.
const reloadDelay = 500 * time.Millisecond

// Watcher reloads the roster file when it changes on disk and hands the
// fresh credential list to the onChange callback.
type Watcher struct {
	path     string
	logger   *logging.Logger
	onChange func([]Credential)
	onError  func(error)
}

// NewWatcher creates a watcher for the roster at path. onError may be nil.
func NewWatcher(path string, logger *logging.Logger, onChange func([]Credential), onError func(error)) *Watcher {
	return &Watcher{path: path, logger: logger, onChange: onChange, onError: onError}
}

// Start begins watching until ctx is canceled. It watches the parent
// directory so atomic rename-over-replace saves are still observed.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		var pending <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.path) {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					if timer == nil {
						timer = time.NewTimer(reloadDelay)
					} else {
						timer.Reset(reloadDelay)
					}
					pending = timer.C
				}
			case <-pending:
				pending = nil
				w.reload()
			case <-watcher.Errors:
				// Transient watcher errors are recoverable; the next write
				// event still triggers a reload.
			}
		}
	}()

	return nil
}

func (w *Watcher) reload() {
	creds, err := Load(w.path, w.logger)
	if err != nil {
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	w.onChange(creds)
}
