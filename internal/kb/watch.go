package kb

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange whenever the file at path is created, written, renamed
// or removed, including edits made outside this process. The parent directory
// is watched so that a file created after startup is still observed. Watch
// blocks until ctx is done.
func Watch(ctx context.Context, log *slog.Logger, path string, onChange func(op string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	log.Info("watching knowledge base", "path", abs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			var op string
			switch {
			case event.Has(fsnotify.Create):
				op = "create"
			case event.Has(fsnotify.Write):
				op = "write"
			case event.Has(fsnotify.Rename):
				op = "rename"
			case event.Has(fsnotify.Remove):
				op = "remove"
			default:
				continue
			}
			onChange(op)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("knowledge base watcher error", "err", err)
		}
	}
}
