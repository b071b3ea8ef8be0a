// Package watcher reloads configuration files when they change on disk.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce coalesces bursts of events (editors write files in several steps).
const DefaultDebounce = 200 * time.Millisecond

// Watcher monitors a directory and calls onChange once a burst of matching
// events has settled. The directory is watched rather than the files so that
// files created after startup are picked up.
type Watcher struct {
	dir      string
	exts     []string
	onChange func()
	watcher  *fsnotify.Watcher
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	running  bool
	debounce time.Duration
}

// New creates a Watcher for dir. Only files with one of exts (e.g. ".yaml")
// trigger onChange; no exts matches every file.
func New(dir string, onChange func(), exts ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		dir:      filepath.Clean(dir),
		exts:     exts,
		onChange: onChange,
		watcher:  fsw,
		ctx:      ctx,
		cancel:   cancel,
		debounce: DefaultDebounce,
	}, nil
}

// SetDebounce overrides the debounce window. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start begins watching. A missing directory is an error.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if _, err := os.Stat(w.dir); err != nil {
		return err
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	w.running = true

	go w.watchLoop()
	return nil
}

// Run starts the watcher and blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return w.Stop()
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) matches(name string) bool {
	if len(w.exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range w.exts {
		if ext == e {
			return true
		}
	}
	return false
}

const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

func (w *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&relevantOps == 0 || !w.matches(event.Name) {
				continue
			}

			log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("Watched file changed")
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.fire)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) fire() {
	if w.ctx.Err() != nil {
		return
	}
	log.Info().Str("dir", w.dir).Msg("Watched directory changed")
	if w.onChange != nil {
		w.onChange()
	}
}
