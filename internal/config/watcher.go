package config

import (
	"crypto/sha256"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceInterval = 150 * time.Millisecond

// Watcher observes the config file for changes and republishes a fresh
// snapshot through Manager on quiescence, per §4.1's debounce/hash-dedup
// algorithm.
type Watcher struct {
	manager  *Manager
	logger   *slog.Logger
	onReload func(*Config)
	fsw      *fsnotify.Watcher
	stopCh   chan struct{}
}

// NewWatcher creates a Watcher for manager's config file. onReload is
// invoked with the freshly-published snapshot after every successful
// reload; it is typically wired to the router's UpdateFromConfig.
func NewWatcher(manager *Manager, logger *slog.Logger, onReload func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(manager.configPath); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		manager:  manager,
		logger:   logger,
		onReload: onReload,
		fsw:      fsw,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start runs the debounce/hash-dedup loop until Stop is called. Intended to
// run in its own goroutine.
func (w *Watcher) Start() {
	var timer *time.Timer
	var timerCh <-chan time.Time

	resetDeadline := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.NewTimer(debounceInterval)
		timerCh = timer.C
	}

	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				resetDeadline()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)

		case <-timerCh:
			timerCh = nil
			w.reloadIfChanged()
		}
	}
}

func (w *Watcher) reloadIfChanged() {
	data, err := os.ReadFile(w.manager.configPath)
	if err != nil {
		w.logger.Error("config watcher: failed to read file", "error", err)
		return
	}

	hash := sha256.Sum256(data)
	if prev := w.manager.lastHash.Load(); prev != nil && *prev == hash {
		return
	}

	cfg, err := w.manager.Load()
	if err != nil {
		w.logger.Error("config watcher: reload failed, keeping previous snapshot", "error", err)
		return
	}

	w.manager.lastHash.Store(&hash)
	w.logger.Info("config reloaded")
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Stop terminates the watch loop and releases the underlying fsnotify
// watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.fsw.Close()
}
