package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"go.lsp.dev/uri"

	"github.com/conneroisu/anchorage/internal/config"
	"github.com/conneroisu/anchorage/internal/engine"
	"github.com/conneroisu/anchorage/internal/glob"
	"github.com/conneroisu/anchorage/internal/logging"
	"github.com/conneroisu/anchorage/internal/scanner"
	"github.com/conneroisu/anchorage/internal/textsource"
	"github.com/conneroisu/anchorage/internal/views"
	"github.com/conneroisu/anchorage/internal/watcher"
)

// session wires the engine, its text source and the workspace scanner for
// one command invocation.
type session struct {
	cfg     *config.Config
	logger  logging.Logger
	overlay *textsource.Overlay
	engine  *engine.Engine
	scanner *scanner.WorkspaceScanner
}

// newSession builds the engine for cfg. With eager set the scanner is
// installed as the engine's loader, so the rebuild loads the workspace
// unless lazy loading is configured.
func newSession(ctx context.Context, cfg *config.Config, logger logging.Logger, eager bool) (*session, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	overlay := textsource.NewOverlay()
	eng := engine.New(overlay, logger)
	sc := scanner.New(eng, logger)
	if eager {
		eng.SetLoader(sc)
	}

	if err := eng.Rebuild(ctx, cfg); err != nil {
		eng.Shutdown()
		return nil, err
	}

	return &session{
		cfg:     cfg,
		logger:  logger,
		overlay: overlay,
		engine:  eng,
		scanner: sc,
	}, nil
}

func (s *session) Close() {
	s.engine.Shutdown()
}

// loadWorkspace scans the workspace once. Without force it honors the
// enabled and lazy-load settings.
func (s *session) loadWorkspace(ctx context.Context, force bool, progress scanner.ProgressFunc) error {
	if s.engine.Scanned() {
		return nil
	}
	if !force && (!s.cfg.Workspace.Enabled || s.cfg.Workspace.LazyLoad) {
		return nil
	}

	s.scanner.OnProgress(progress)
	if _, err := s.scanner.Load(ctx); err != nil {
		return fmt.Errorf("scanning workspace: %w", err)
	}
	return nil
}

// open focuses the document at path and indexes it.
func (s *session) open(ctx context.Context, path string) (uri.URI, error) {
	u, err := absURI(path)
	if err != nil {
		return "", err
	}
	if err := s.engine.SetActive(ctx, u); err != nil {
		return "", err
	}
	return u, nil
}

// close releases a document opened with open, including any text supplied
// for it. The index stays cached when the workspace has been scanned.
func (s *session) close(u uri.URI) bool {
	s.overlay.Close(u)
	return s.engine.Close(u)
}

func absURI(path string) (uri.URI, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return uri.File(abs), nil
}

func (s *session) workspaceState() views.WorkspaceState {
	return views.WorkspaceState{
		Root:     s.cfg.Workspace.Root,
		Files:    s.engine.Snapshot(),
		Enabled:  s.cfg.Workspace.Enabled,
		LazyLoad: s.cfg.Workspace.LazyLoad,
		Scanned:  s.engine.Scanned(),
		Loaded:   s.engine.Loaded(),
	}
}

// tracks reports whether a file not yet cached should be indexed when it
// changes on disk.
func (s *session) tracks(uri.URI) bool {
	ws := s.cfg.Workspace
	return ws.Enabled && (!ws.LazyLoad || s.engine.Scanned())
}

// watch keeps the cache in sync with the workspace on disk until ctx ends.
func (s *session) watch(ctx context.Context) (*watcher.FileWatcher, error) {
	set, err := glob.NewSet(s.cfg.Workspace.Include, s.cfg.Workspace.Exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace patterns: %w", err)
	}

	fw, err := watcher.NewFileWatcher(s.cfg.Workspace.Root, s.cfg.ParseDelayDuration(), s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.GlobFilter(set))
	fw.AddHandler(watcher.EngineHandler(s.engine, s.tracks))

	if err := fw.AddRecursive(set.Excluded); err != nil {
		fw.Stop()
		return nil, fmt.Errorf("failed to watch workspace: %w", err)
	}
	if err := fw.Start(ctx); err != nil {
		fw.Stop()
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}
	return fw, nil
}
