package loader

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/xtxerr/archivist/internal/errors"
	"github.com/xtxerr/archivist/internal/logging"
)

// Watcher reloads a config file whenever it changes.
//
// The parent directory is watched rather than the file, so editors that
// save by renaming a temporary file are still seen.
type Watcher struct {
	path     string
	callback func(*Config, error)
	log      *slog.Logger

	fw   *fsnotify.Watcher
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewWatcher creates a watcher calling callback with every reloaded config
// that passes Validate, or with the error that prevented it.
func NewWatcher(path string, callback func(*Config, error)) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		callback: callback,
		log:      logging.Component("loader"),
		done:     make(chan struct{}),
	}
}

// Start begins watching the config file.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return errors.Wrapf(err, "watch %s", w.path)
	}
	w.fw = fw

	w.wg.Add(1)
	go w.watch()
	w.log.Info("Watching config", "path", w.path)
	return nil
}

// Stop stops watching and waits for a running reload to finish.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.done)
		if w.fw != nil {
			w.fw.Close()
		}
	})
	w.wg.Wait()
}

func (w *Watcher) watch() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err == nil {
		FromEnv(cfg)
		err = Validate(cfg)
	}
	if err != nil {
		w.log.Warn("Config reload failed", "path", w.path, "error", err)
		if w.callback != nil {
			w.callback(nil, err)
		}
		return
	}

	w.log.Info("Config reloaded", "path", w.path, "channels", len(cfg.Channels))
	if w.callback != nil {
		w.callback(cfg, nil)
	}
}
