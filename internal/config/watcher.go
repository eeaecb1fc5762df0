package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vyrodovalexey/faultproxy/internal/observability"
)

// DefaultDebounceDelay is how long the watcher waits after the last
// change before posting a reload request.
const DefaultDebounceDelay = 100 * time.Millisecond

// ErrorCallback is called when the underlying file watcher reports an error.
type ErrorCallback func(error)

// Watcher watches the configuration file and posts a reload request
// whenever it changes. It never parses the file; the consumer of
// Requests does.
type Watcher struct {
	path          string
	fs            *fsnotify.Watcher
	requests      chan struct{}
	onError       ErrorCallback
	logger        observability.Logger
	debounceDelay time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// WatcherOption is a functional option for configuring the watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets how long to wait for writes to settle.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = delay
	}
}

// WithLogger sets the logger for the watcher.
func WithLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithErrorCallback sets the error callback for the watcher.
func WithErrorCallback(callback ErrorCallback) WatcherOption {
	return func(w *Watcher) {
		w.onError = callback
	}
}

// NewWatcher creates a watcher for the configuration file at path.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:          absPath,
		fs:            fs,
		requests:      make(chan struct{}, 1),
		debounceDelay: DefaultDebounceDelay,
		logger:        observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Requests returns the channel on which reload requests are posted.
// At most one request is pending at a time.
func (w *Watcher) Requests() <-chan struct{} {
	return w.requests
}

// Start begins watching until ctx is done or Stop is called. Calling
// Start on a running watcher does nothing.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return nil
	}

	// The directory is watched so that editors which save by renaming a
	// temporary file over the original are still seen.
	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	w.logger.Info("watching configuration file",
		observability.String("path", w.path),
		observability.Duration("debounce", w.debounceDelay),
	)

	go w.loop(ctx)

	return nil
}

// Stop stops watching and releases the file watcher. It is safe to call
// more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.cancel != nil {
		w.cancel()
		<-w.done
	}

	return w.fs.Close()
}

// loop turns file events into debounced reload requests.
func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	debounce := time.NewTimer(w.debounceDelay)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("configuration watcher stopped")
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				w.logger.Debug("configuration file changed",
					observability.String("op", event.Op.String()),
				)
				debounce.Reset(w.debounceDelay)
			}

		case <-debounce.C:
			w.notify()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.handleWatchError(err)
		}
	}
}

// relevant reports whether event changes the content of the watched file.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

// notify posts a reload request unless one is already pending.
func (w *Watcher) notify() {
	select {
	case w.requests <- struct{}{}:
		w.logger.Info("configuration reload requested",
			observability.String("path", w.path),
		)
	default:
	}
}

func (w *Watcher) handleWatchError(err error) {
	w.logger.Error("configuration watcher error", observability.Error(err))
	if w.onError != nil {
		w.onError(err)
	}
}
