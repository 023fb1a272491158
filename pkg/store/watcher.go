package store

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DirWatcher notices when the session directory itself is removed or
// renamed out from under a store and fires a callback after a short
// debounce. Composition roots typically pass the registry's Reset so
// the directory is transparently recreated on the next operation.
type DirWatcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	logger   zerolog.Logger
	onGone   func()
	debounce time.Duration
	timer    *time.Timer
	stopCh   chan struct{}
}

// NewDirWatcher watches dir's parent for the disappearance of dir.
func NewDirWatcher(dir string, logger zerolog.Logger, onGone func()) (*DirWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dw := &DirWatcher{
		watcher:  watcher,
		dir:      filepath.Clean(dir),
		logger:   logger,
		onGone:   onGone,
		debounce: 200 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}

	if err := watcher.Add(filepath.Dir(dw.dir)); err != nil {
		watcher.Close()
		return nil, err
	}

	go dw.run()

	return dw, nil
}

// Stop stops the watcher.
func (dw *DirWatcher) Stop() error {
	close(dw.stopCh)
	if dw.timer != nil {
		dw.timer.Stop()
	}
	return dw.watcher.Close()
}

// run processes file system events
func (dw *DirWatcher) run() {
	for {
		select {
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != dw.dir {
				continue
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				dw.logger.Warn().
					Str("dir", dw.dir).
					Str("op", event.Op.String()).
					Msg("Session directory removed")

				dw.scheduleOnGone()
			}

		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			dw.logger.Error().Err(err).Msg("Directory watcher error")

		case <-dw.stopCh:
			return
		}
	}
}

// scheduleOnGone debounces the callback
func (dw *DirWatcher) scheduleOnGone() {
	if dw.timer != nil {
		dw.timer.Stop()
	}

	dw.timer = time.AfterFunc(dw.debounce, func() {
		dw.logger.Debug().Str("dir", dw.dir).Msg("Invalidating directory cache")
		dw.onGone()
	})
}
