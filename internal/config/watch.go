package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// WatchPipelineDescriptor watches path for writes/renames and invokes
// onChange with the freshly reloaded descriptor. It runs until ctx is
// canceled. Reload errors are logged and do not stop the watch — an
// operator mid-edit of the descriptor file may leave it briefly invalid.
func WatchPipelineDescriptor(ctx context.Context, path string, log *slog.Logger, onChange func(*PipelineDescriptor)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				desc, err := LoadPipelineDescriptor(path)
				if err != nil {
					log.Warn("pipeline descriptor reload failed", "path", path, "error", err)
					continue
				}
				log.Info("pipeline descriptor reloaded", "path", path, "stages", len(desc.Modules))
				onChange(desc)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("pipeline descriptor watch error", "error", err)
			}
		}
	}()

	return nil
}
