// Package scanner populates the anchor cache for a whole workspace.
//
// The scanner enumerates candidate files with the configured include and
// exclude globs, clears the cache and indexes the candidates in order. It
// yields briefly after every batch so that interactive work sharing the
// engine is not starved, and stops once the configured number of
// anchor-bearing files has been recorded.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.lsp.dev/uri"

	"github.com/conneroisu/anchorage/internal/config"
	"github.com/conneroisu/anchorage/internal/glob"
	"github.com/conneroisu/anchorage/internal/logging"
)

const (
	// DefaultBatchSize is the number of files indexed between pauses.
	DefaultBatchSize = 10
	// DefaultBatchDelay is the pause taken after each batch.
	DefaultBatchDelay = 5 * time.Millisecond
	// DefaultMaxFileSize skips files larger than this many bytes.
	DefaultMaxFileSize = 1024 * 1024
)

// Indexer is the cache the scanner fills.
type Indexer interface {
	Config() *config.Config
	Clear()
	AddOrReplace(ctx context.Context, u uri.URI) (bool, error)
	MarkScanned()
}

// Progress describes a running scan.
type Progress struct {
	// Found counts files in which anchors were found.
	Found int
	// Processed counts files indexed so far.
	Processed int
	// Total is the number of candidate files.
	Total int
}

// Fraction is Found over Total.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Found) / float64(p.Total)
}

// ProgressFunc receives progress after every indexed file.
type ProgressFunc func(Progress)

// WorkspaceScanner drives an Indexer across the files of a workspace.
type WorkspaceScanner struct {
	// indexer receives every candidate file
	indexer Indexer
	// logger reports skipped files and scan summaries
	logger logging.Logger
	// progress is notified after each file, may be nil
	progress ProgressFunc
	// BatchSize is the number of files indexed between pauses
	BatchSize int
	// BatchDelay is the pause taken after each batch
	BatchDelay time.Duration
	// MaxFileSize skips larger files; zero disables the check
	MaxFileSize int64
}

// New creates a scanner for indexer.
func New(indexer Indexer, logger logging.Logger) *WorkspaceScanner {
	if logger == nil {
		logger = logging.Nop()
	}
	return &WorkspaceScanner{
		indexer:     indexer,
		logger:      logger.WithComponent("scanner"),
		BatchSize:   DefaultBatchSize,
		BatchDelay:  DefaultBatchDelay,
		MaxFileSize: DefaultMaxFileSize,
	}
}

// OnProgress installs a progress callback.
func (s *WorkspaceScanner) OnProgress(fn ProgressFunc) {
	s.progress = fn
}

// Load scans the workspace described by the indexer's configuration.
func (s *WorkspaceScanner) Load(ctx context.Context) (int, error) {
	cfg := s.indexer.Config().Workspace
	return s.Scan(ctx, cfg.Root, cfg.Include, cfg.Exclude, cfg.MaxFiles)
}

// Scan indexes the files under root matching include and not exclude. It
// returns the number of files in which anchors were found. maxFiles caps
// that number; zero means no cap. Per-file failures are logged by the
// indexer and do not stop the scan.
func (s *WorkspaceScanner) Scan(ctx context.Context, root string, include, exclude []string, maxFiles int) (int, error) {
	perf := logging.StartOperation(s.logger, "workspace_scan")

	set, err := glob.NewSet(include, exclude)
	if err != nil {
		return 0, fmt.Errorf("invalid workspace patterns: %w", err)
	}

	candidates, err := set.Enumerate(ctx, root)
	if err != nil {
		return 0, fmt.Errorf("enumerating workspace: %w", err)
	}

	s.indexer.Clear()

	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	progress := Progress{Total: len(candidates)}
	for i, path := range candidates {
		if err := ctx.Err(); err != nil {
			return progress.Found, err
		}

		if i > 0 && i%batchSize == 0 && s.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return progress.Found, ctx.Err()
			case <-time.After(s.BatchDelay):
			}
		}

		if s.tooLarge(path) {
			s.logger.Debug(ctx, "Skipping large file", "path", path)
			continue
		}

		found, err := s.indexer.AddOrReplace(ctx, uri.File(path))
		progress.Processed++
		if err == nil && found {
			progress.Found++
		}
		if s.progress != nil {
			s.progress(progress)
		}

		if maxFiles > 0 && progress.Found >= maxFiles {
			s.logger.Info(ctx, "Workspace scan reached file limit", "max_files", maxFiles)
			break
		}
	}

	s.indexer.MarkScanned()
	perf.End(ctx, "files", progress.Processed, "anchored", progress.Found, "candidates", progress.Total)
	return progress.Found, nil
}

func (s *WorkspaceScanner) tooLarge(path string) bool {
	if s.MaxFileSize <= 0 {
		return false
	}
	info, err := os.Stat(filepath.Clean(path))
	return err == nil && info.Size() > s.MaxFileSize
}
