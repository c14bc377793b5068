package watcher

import (
	"context"

	"go.lsp.dev/uri"
)

// Engine is the part of the anchor engine the watcher drives.
type Engine interface {
	Has(u uri.URI) bool
	AddOrReplace(ctx context.Context, u uri.URI) (bool, error)
	DocumentChanged(u uri.URI) bool
	Delete(u uri.URI)
}

// EngineHandler returns a ChangeHandler that keeps eng in sync with disk.
// Writes to the active document go through its debounce; other files in
// scope are re-indexed immediately when track reports them as wanted.
// Removed and renamed-away files are dropped.
func EngineHandler(eng Engine, track func(u uri.URI) bool) ChangeHandler {
	return func(ctx context.Context, events []ChangeEvent) error {
		var firstErr error
		for _, event := range events {
			u := uri.File(event.Path)

			switch event.Type {
			case EventTypeDeleted, EventTypeRenamed:
				eng.Delete(u)
				continue
			}

			if eng.DocumentChanged(u) {
				continue
			}
			if !eng.Has(u) && (track == nil || !track(u)) {
				continue
			}
			if _, err := eng.AddOrReplace(ctx, u); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
}
