package prompt

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var (
	// ErrNoPromptDir indicates the store has no override directory to watch.
	ErrNoPromptDir = errors.New("prompt store has no directory configured")

	// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
	ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")
)

// Watcher reloads a Store whenever .txt files in its override directory
// change. Edited prompts take effect on the next render without a restart.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	stop    chan struct{}
	logger  *zap.Logger
}

// NewWatcher creates a watcher for the store's override directory.
func NewWatcher(store *Store) (*Watcher, error) {
	if store.dir == "" {
		return nil, ErrNoPromptDir
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &Watcher{
		store:   store,
		watcher: watcher,
		stop:    make(chan struct{}),
		logger:  store.logger,
	}, nil
}

// Start begins watching the prompt directory in a background goroutine.
// Call Stop to clean up resources.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.store.dir); err != nil {
		return fmt.Errorf("watching prompt directory: %w", err)
	}

	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and cleans up resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		// Already stopped
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("prompt watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".txt") {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	if err := w.store.Reload(); err != nil {
		w.logger.Warn("prompt reload failed",
			zap.String("file", filepath.Base(event.Name)),
			zap.Error(err),
		)
		return
	}
	w.logger.Info("prompt templates reloaded",
		zap.String("file", filepath.Base(event.Name)),
	)
}
