// Package watcher triggers index rebuilds when embedding manifests change on disk.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/manifest"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// RebuildFunc is called once per debounced manifest change.
type RebuildFunc func(modality, model string)

// Watcher watches an embeddings root and invokes a rebuild callback whenever
// a manifest file under it is written. Producers write partition files first
// and the manifest last, so a manifest write marks a complete drop.
type Watcher struct {
	embRoot     string
	onRebuild   RebuildFunc
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the debounce interval.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over embRoot. onRebuild is called with the
// (modality, model) pair whose manifest changed.
func NewWatcher(embRoot string, onRebuild RebuildFunc, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		embRoot:     filepath.Clean(embRoot),
		onRebuild:   onRebuild,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	if w.logger != nil {
		w.logger.Debug("watcher starting", zap.String("root", w.embRoot))
	}
	if err := w.addTreeLocked(w.embRoot); err != nil {
		_ = w.watcher.Close()
		w.watcher = nil
		w.started = false
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	path := ev.Name
	if w.logger != nil {
		w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	}
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		// Modality or model directories can appear after start.
		w.mu.Lock()
		if w.watcher != nil {
			_ = w.addTreeLocked(path)
		}
		w.mu.Unlock()
		return
	}
	if filepath.Base(path) != manifest.ManifestFileName {
		return
	}
	modality, model, ok := w.splitManifestPath(path)
	if !ok {
		return
	}
	w.debounceRebuild(modality, model)
}

// splitManifestPath extracts (modality, model) from
// embRoot/modality/model/manifest.json.
func (w *Watcher) splitManifestPath(path string) (string, string, bool) {
	rel, err := filepath.Rel(w.embRoot, filepath.Clean(path))
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", "", false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) != 3 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (w *Watcher) debounceRebuild(modality, model string) {
	key := modality + "/" + model
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[key]; ok {
		t.Stop()
	}
	t := time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, key)
		logger := w.logger
		w.mu.Unlock()
		if logger != nil {
			logger.Debug("watcher triggering rebuild (debounced)",
				zap.String("modality", modality), zap.String("model", model))
		}
		if w.onRebuild != nil {
			w.onRebuild(modality, model)
		}
	})
	w.debounceMap[key] = t
}

func (w *Watcher) addTreeLocked(root string) error {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(root, 0755); err != nil {
				return err
			}
		} else {
			return err
		}
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for key, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, key)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
