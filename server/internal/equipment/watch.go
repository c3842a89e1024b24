package equipment

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the catalog from path whenever the file is written or
// recreated, until ctx is cancelled. A reload that fails to parse or
// validate is logged and the current entries are kept.
func (c *Catalog) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("equipment: watching catalog", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Atomic saves arrive as Create after a rename.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			c.reload(path)

			// Re-add in case the inode was replaced.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("equipment: watcher error", "err", err)
		}
	}
}

func (c *Catalog) reload(path string) {
	items, err := parseFile(path)
	if err == nil {
		err = c.Replace(items)
	}
	if err != nil {
		slog.Error("equipment: reload failed, keeping previous catalog", "path", path, "err", err)
		return
	}
	slog.Info("equipment: catalog reloaded", "path", path, "count", c.Len())
}
