package muxconfig

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vitalvas/routetree/mux"
	"go.uber.org/zap"
)

// DefaultDebounceDelay is the quiet period after the last file event
// before the manifest is reloaded.
const DefaultDebounceDelay = 100 * time.Millisecond

// ErrorCallback is called when a reload fails or the file watcher
// reports an error.
type ErrorCallback func(error)

// Watcher applies a manifest file to a router and re-applies it whenever
// the file changes. A manifest that fails to load or apply is logged and
// the router keeps serving the previous routes.
type Watcher struct {
	path          string
	router        *mux.Router
	catalog       *Catalog
	watcher       *fsnotify.Watcher
	logger        *zap.Logger
	errorCallback ErrorCallback
	debounceDelay time.Duration

	// applyMu serializes reloads triggered by the watch loop and
	// ForceReload.
	applyMu sync.Mutex

	mu        sync.RWMutex
	manifest  *Manifest
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the debounce delay for file changes.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = delay
	}
}

// WithLogger sets the logger for the watcher.
func WithLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithErrorCallback sets the error callback for the watcher.
func WithErrorCallback(callback ErrorCallback) WatcherOption {
	return func(w *Watcher) {
		w.errorCallback = callback
	}
}

// NewWatcher creates a watcher for the manifest at path.
func NewWatcher(path string, router *mux.Router, catalog *Catalog, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:          absPath,
		router:        router,
		catalog:       catalog,
		watcher:       fsWatcher,
		logger:        zap.NewNop(),
		debounceDelay: DefaultDebounceDelay,
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}

	return w, nil
}

// Start applies the manifest and begins watching the file. The initial
// load must succeed.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	if err := w.ForceReload(); err != nil {
		return err
	}

	// The directory is watched so editors that replace the file by rename
	// keep triggering events.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.mu.Lock()
	w.running = true
	w.mu.Unlock()

	w.logger.Info("started watching route manifest",
		zap.String("path", w.path),
	)

	go w.watch(ctx)

	return nil
}

// Stop stops watching and waits for the watch loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.stoppedCh

	return w.watcher.Close()
}

// Manifest returns the last successfully applied manifest.
func (w *Watcher) Manifest() *Manifest {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.manifest
}

// ForceReload loads and applies the manifest immediately.
func (w *Watcher) ForceReload() error {
	w.applyMu.Lock()
	defer w.applyMu.Unlock()

	m, err := Load(w.path)
	if err != nil {
		return err
	}

	if err := Apply(w.router, m, w.catalog); err != nil {
		return err
	}

	w.mu.Lock()
	prev := w.manifest
	w.manifest = m
	w.mu.Unlock()

	w.dropRemoved(prev, m)

	return nil
}

// dropRemoved unregisters domains that the previous manifest declared and
// the current one no longer does. Hosts are compared as registered
// domains, so spellings that normalize to the same host are kept.
func (w *Watcher) dropRemoved(prev, cur *Manifest) {
	if prev == nil {
		return
	}

	reg := w.router.Registry()
	keep := make(map[*mux.Domain]bool, len(cur.Domains))
	for _, dc := range cur.Domains {
		if d, ok := lookupDomain(reg, dc.Host); ok {
			keep[d] = true
		}
	}

	for _, dc := range prev.Domains {
		d, ok := lookupDomain(reg, dc.Host)
		if !ok || keep[d] {
			continue
		}
		if dc.Host == "" {
			d.Replace(mux.NewTree())
		} else {
			reg.Unregister(dc.Host)
		}
		keep[d] = true
		w.logger.Info("domain removed from manifest",
			zap.String("domain", d.Pattern()),
		)
	}
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.stoppedCh)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("route manifest watcher stopped due to context cancellation")
			return

		case <-w.stopCh:
			w.logger.Info("route manifest watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}

			w.logger.Debug("route manifest changed",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()),
			)

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(w.debounceDelay)
			debounceCh = debounceTimer.C

		case <-debounceCh:
			debounceCh = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.fail("route manifest watcher error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) reload() {
	w.logger.Info("reloading route manifest",
		zap.String("path", w.path),
	)

	if err := w.ForceReload(); err != nil {
		w.fail("failed to apply route manifest", err)
		return
	}

	w.logger.Info("route manifest reloaded successfully")
}

func (w *Watcher) fail(msg string, err error) {
	w.logger.Error(msg, zap.Error(err))
	if w.errorCallback != nil {
		w.errorCallback(err)
	}
}
