package fs

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"
)

func (a *Adapter) startWatch() error {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	if a.stopWatch != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(a.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", a.path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.stopWatch = cancel
	a.watchDone = done
	a.watcherActive = true

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(done)
		defer a.setWatcherActive(false)
		defer watcher.Close()
		return a.watchLoop(ctx, watcher)
	}, lifecycle.WithErrorHandler(a.reportError))
	return nil
}

func (a *Adapter) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			a.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			a.reportError(err)
		}
	}
}

func (a *Adapter) handleEvent(event fsnotify.Event) {
	if isTempFile(event.Name) || filepath.Dir(event.Name) != filepath.Clean(a.path) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	model, ok := strings.CutSuffix(filepath.Base(event.Name), a.serializer.Ext())
	if !ok || model == "" {
		return
	}
	a.invalidate(model)
	if a.config.Logger != nil {
		a.config.Logger.Debug("fs model changed on disk", "model", model, "op", event.Op.String())
	}
}

func (a *Adapter) reportError(err error) {
	if a.config.ErrorHandler != nil {
		a.config.ErrorHandler(err)
		return
	}
	if a.config.Logger != nil {
		a.config.Logger.Warn("fs watcher error", "error", err)
	}
}

func (a *Adapter) setWatcherActive(active bool) {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	a.watcherActive = active
}
