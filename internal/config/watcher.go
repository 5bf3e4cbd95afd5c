package config

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"quiettime/internal/prefilter"
)

// Watcher re-reads the config file when it changes on disk and delivers
// the new pre-filter section to subscribers. Only the pre-filter tuning is
// hot-reloadable; everything else requires a restart.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	logger      *zap.Logger
	debounceDur time.Duration
	subscribers []chan prefilter.Config
	pending     bool
	pendingAt   time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher builds a watcher for the config file at path.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		watcher:     fw,
		path:        path,
		logger:      logger,
		debounceDur: 500 * time.Millisecond, // editors fire several writes per save
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Subscribe returns a channel that receives the pre-filter section each
// time the file is successfully re-read. The channel is buffered; a slow
// subscriber drops updates rather than blocking the watcher.
func (w *Watcher) Subscribe() <-chan prefilter.Config {
	ch := make(chan prefilter.Config, 1)
	w.mu.Lock()
	w.subscribers = append(w.subscribers, ch)
	w.mu.Unlock()
	return ch
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.path); err != nil {
		return err
	}
	w.logger.Info("watching config file", zap.String("path", w.path))

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Error("failed to close watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending = true
			w.pendingAt = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watch error", zap.Error(err))

		case <-ticker.C:
			w.flushPending()
		}
	}
}

// flushPending reloads once the debounce window has passed with no further
// writes.
func (w *Watcher) flushPending() {
	w.mu.Lock()
	if !w.pending || time.Since(w.pendingAt) < w.debounceDur {
		w.mu.Unlock()
		return
	}
	w.pending = false
	subs := make([]chan prefilter.Config, len(w.subscribers))
	copy(subs, w.subscribers)
	w.mu.Unlock()

	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous values", zap.Error(err))
		return
	}
	w.logger.Info("config reloaded", zap.String("path", w.path))

	for _, ch := range subs {
		// Replace any undelivered update so the subscriber always reads
		// the latest values.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cfg.PreFilter:
		default:
		}
	}
}
