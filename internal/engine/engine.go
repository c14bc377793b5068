// Package engine owns the per-document anchor cache. It keeps every cached
// index consistent with the documents it was parsed from while edits,
// focus changes, closes, deletions and workspace scans arrive concurrently.
//
// Every insertion is stamped with a fresh generation. A parse only replaces
// the entry it was started for when no newer generation has been issued for
// the URI and the cache has not been cleared in the meantime, so a slow
// parse can never overwrite a newer result.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.lsp.dev/uri"

	"github.com/conneroisu/anchorage/internal/anchor"
	"github.com/conneroisu/anchorage/internal/config"
	"github.com/conneroisu/anchorage/internal/debounce"
	"github.com/conneroisu/anchorage/internal/errors"
	"github.com/conneroisu/anchorage/internal/logging"
	"github.com/conneroisu/anchorage/internal/matcher"
	"github.com/conneroisu/anchorage/internal/parser"
	"github.com/conneroisu/anchorage/internal/tags"
	"github.com/conneroisu/anchorage/internal/textsource"
)

// Loader populates the cache for the whole workspace.
type Loader interface {
	Load(ctx context.Context) (int, error)
}

type entry struct {
	index *anchor.Index
	// lastGood is the most recent parsed index, carried across placeholders.
	lastGood   *anchor.Index
	generation uint64
}

// Engine is the anchor cache and its invalidation policy.
type Engine struct {
	source textsource.Source
	logger logging.Logger

	mutex      sync.RWMutex
	cfg        *config.Config
	registry   *tags.Registry
	matcher    *matcher.Matcher
	entries    map[uri.URI]*entry
	generation uint64
	epoch      uint64
	active     uri.URI
	loaded     bool
	scanned    bool
	debouncer  *debounce.Debouncer
	loader     Loader

	subsMutex   sync.Mutex
	subscribers []chan Event
}

// New creates an engine. Rebuild must be called before documents are parsed.
func New(source textsource.Source, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{
		source:  source,
		logger:  logger.WithComponent("engine"),
		cfg:     config.Default(),
		entries: make(map[uri.URI]*entry),
	}
}

// SetLoader installs the workspace loader used by eager rebuilds.
func (e *Engine) SetLoader(l Loader) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.loader = l
}

// Rebuild applies cfg: it recompiles the matcher, clears the cache, replaces
// the debouncer and then either loads the workspace (eager) or parses the
// active document (lazy). On a configuration error the previous matcher and
// cache stay in place and the error is returned.
func (e *Engine) Rebuild(ctx context.Context, cfg *config.Config) error {
	registry, err := cfg.Registry()
	if err != nil {
		cerr := errors.ConfigurationError("tags", err.Error(), nil)
		e.logger.Error(ctx, cerr, "Keeping previous tag configuration")
		return cerr
	}
	m, err := matcher.Compile(registry, cfg.MatcherOptions())
	if err != nil {
		e.logger.Error(ctx, err, "Keeping previous tag configuration")
		return err
	}
	e.logger.Debug(ctx, "Compiled anchor matcher", "expression", m.Describe())

	e.mutex.Lock()
	e.cfg = cfg
	e.registry = registry
	e.matcher = m
	e.clearLocked()
	if e.debouncer != nil {
		e.debouncer.Stop()
	}
	e.debouncer = debounce.New(cfg.ParseDelayDuration())
	eager := cfg.Workspace.Enabled && !cfg.Workspace.LazyLoad && e.loader != nil
	loader := e.loader
	active := e.active
	e.loaded = !eager
	e.scanned = false
	e.mutex.Unlock()

	e.notify(Event{Type: EventRebuilt})

	if eager {
		_, err := loader.Load(ctx)
		e.mutex.Lock()
		e.loaded = true
		e.mutex.Unlock()
		e.notify(Event{Type: EventLoaded})
		if err != nil {
			return fmt.Errorf("loading workspace: %w", err)
		}
		return nil
	}

	if active != "" {
		if _, err := e.AddOrReplace(ctx, active); err != nil {
			return err
		}
	}
	return nil
}

// Config returns the configuration of the last successful rebuild.
func (e *Engine) Config() *config.Config {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.cfg
}

// Registry returns the active tag registry.
func (e *Engine) Registry() *tags.Registry {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.registry
}

// Loaded reports whether the cache may be presented: the lazy rebuild
// finished or the eager workspace load completed.
func (e *Engine) Loaded() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.loaded
}

// Scanned reports whether a workspace scan has populated the cache.
func (e *Engine) Scanned() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.scanned
}

// MarkScanned records that a workspace scan finished.
func (e *Engine) MarkScanned() {
	e.mutex.Lock()
	e.scanned = true
	e.loaded = true
	e.mutex.Unlock()
	e.notify(Event{Type: EventLoaded})
}

// Clear empties the cache. Parses started before the clear are discarded.
func (e *Engine) Clear() {
	e.mutex.Lock()
	e.clearLocked()
	e.mutex.Unlock()
	e.notify(Event{Type: EventChanged})
}

func (e *Engine) clearLocked() {
	e.epoch++
	e.entries = make(map[uri.URI]*entry)
}

// AddOrReplace parses u and stores the result. It reports whether any
// anchor occurrence was found. When the document cannot be read the
// previous entry is kept and the error is returned.
func (e *Engine) AddOrReplace(ctx context.Context, u uri.URI) (bool, error) {
	e.mutex.Lock()
	if e.matcher == nil {
		e.mutex.Unlock()
		return false, errors.NewConfigError(errors.ErrCodeInvalidConfig, "engine has no compiled matcher")
	}

	var previous *entry
	for k, v := range e.entries {
		if k == u || samePath(k, u) {
			if previous == nil || k == u {
				previous = v
			}
			delete(e.entries, k)
		}
	}

	e.generation++
	generation := e.generation
	epoch := e.epoch
	placeholder := &entry{index: anchor.Empty, generation: generation}
	if previous != nil {
		placeholder.lastGood = previous.lastGood
	}
	e.entries[u] = placeholder

	m, registry := e.matcher, e.registry
	opts := parser.Options{URI: string(u), DisplayTagName: e.cfg.Display.TagName}
	e.mutex.Unlock()

	text, err := e.source.Read(ctx, u)
	if err != nil {
		e.mutex.Lock()
		if current, ok := e.entries[u]; ok && current.generation == generation && e.epoch == epoch {
			if previous != nil {
				// Roll back to the previous entry so a parse still in flight
				// for it can land.
				restored := &entry{index: previous.index, lastGood: previous.lastGood, generation: previous.generation}
				if restored.lastGood != nil {
					restored.index = restored.lastGood
				}
				e.entries[u] = restored
			} else {
				delete(e.entries, u)
			}
		}
		e.mutex.Unlock()
		e.logger.Warn(ctx, err, "Unable to read document", "uri", string(u))
		return false, err
	}

	idx, found := parser.ParseSafe(ctx, e.logger, text, m, registry, opts)

	e.mutex.Lock()
	current, ok := e.entries[u]
	stored := ok && current.generation == generation && e.epoch == epoch
	if stored {
		e.entries[u] = &entry{index: idx, lastGood: idx, generation: generation}
	}
	e.mutex.Unlock()

	if stored {
		e.logger.Debug(ctx, "Indexed document", "uri", string(u), "anchors", idx.Len())
		e.notify(Event{Type: EventChanged, URI: u})
	}
	return found, nil
}

// Remove drops the cached entry for u.
func (e *Engine) Remove(u uri.URI) {
	e.mutex.Lock()
	_, ok := e.entries[u]
	delete(e.entries, u)
	e.mutex.Unlock()

	if ok {
		e.notify(Event{Type: EventChanged, URI: u})
	}
}

// Close handles a document closed in the host. Closing the active document
// drops its pending re-parse and leaves no document active. The entry is
// kept when workspace scanning is enabled and a scan has run. It reports
// whether the entry was dropped.
func (e *Engine) Close(u uri.URI) bool {
	e.mutex.Lock()
	retain := e.cfg.Workspace.Enabled && e.scanned
	if u == e.active {
		e.active = ""
		if e.debouncer != nil {
			e.debouncer.Cancel()
		}
	}
	e.mutex.Unlock()

	if retain {
		return false
	}
	e.Remove(u)
	return true
}

// Delete handles a file removed from disk.
func (e *Engine) Delete(u uri.URI) {
	e.Remove(u)
}

// Has reports whether u is cached.
func (e *Engine) Has(u uri.URI) bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	_, ok := e.entries[u]
	return ok
}

// Get returns the cached index of u, or anchor.Empty.
func (e *Engine) Get(u uri.URI) *anchor.Index {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	if ent, ok := e.entries[u]; ok {
		return ent.index
	}
	return anchor.Empty
}

// Active returns the focused document.
func (e *Engine) Active() uri.URI {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.active
}

// Current returns the index of the active document, or anchor.Empty.
func (e *Engine) Current() *anchor.Index {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	if e.active == "" {
		return anchor.Empty
	}
	if ent, ok := e.entries[e.active]; ok {
		return ent.index
	}
	return anchor.Empty
}

// SetActive changes focus to u. A document that is not cached yet is parsed
// immediately.
func (e *Engine) SetActive(ctx context.Context, u uri.URI) error {
	e.mutex.Lock()
	e.active = u
	_, cached := e.entries[u]
	ready := e.matcher != nil
	e.mutex.Unlock()

	e.notify(Event{Type: EventFocus, URI: u})

	if cached || !ready || u == "" {
		return nil
	}
	_, err := e.AddOrReplace(ctx, u)
	return err
}

// DocumentChanged schedules a debounced re-parse of u when it is the active
// document. A burst of changes results in a single parse of the text current
// when the quiet period ends.
func (e *Engine) DocumentChanged(u uri.URI) bool {
	e.mutex.RLock()
	active := e.active
	d := e.debouncer
	e.mutex.RUnlock()

	if u != active || d == nil {
		return false
	}

	d.Trigger(func() {
		ctx := context.Background()
		if _, err := e.AddOrReplace(ctx, u); err != nil {
			e.logger.Warn(ctx, err, "Debounced parse failed", "uri", string(u))
		}
	})
	return true
}

// Snapshot returns a copy of the cache map. The indexes are immutable.
func (e *Engine) Snapshot() map[uri.URI]*anchor.Index {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	out := make(map[uri.URI]*anchor.Index, len(e.entries))
	for u, ent := range e.entries {
		out[u] = ent.index
	}
	return out
}

// URIs returns the cached URIs in order.
func (e *Engine) URIs() []uri.URI {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	out := make([]uri.URI, 0, len(e.entries))
	for u := range e.entries {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Shutdown stops pending parses and closes every subscription.
func (e *Engine) Shutdown() {
	e.mutex.Lock()
	if e.debouncer != nil {
		e.debouncer.Stop()
	}
	e.mutex.Unlock()

	e.subsMutex.Lock()
	defer e.subsMutex.Unlock()
	for _, ch := range e.subscribers {
		close(ch)
	}
	e.subscribers = nil
}

// samePath reports whether two URIs denote the same file.
func samePath(a, b uri.URI) bool {
	pa, errA := textsource.Filename(a)
	pb, errB := textsource.Filename(b)
	if errA != nil || errB != nil {
		return a == b
	}
	pa, pb = filepath.Clean(pa), filepath.Clean(pb)
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		return strings.EqualFold(pa, pb)
	}
	return pa == pb
}
