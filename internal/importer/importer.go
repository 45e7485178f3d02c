package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/excerpts-mcp/internal/parser"
	"github.com/dshills/excerpts-mcp/internal/storage"
	"github.com/dshills/excerpts-mcp/pkg/types"
)

// ErrImportInProgress is returned when an import is already running on the
// same Importer
var ErrImportInProgress = errors.New("an import is already in progress")

const exportFilePerms = 0o644

// Notebook is the store surface the importer writes through
type Notebook interface {
	Tags() *storage.TagRepository
	Excerpts() *storage.ExcerptRepository
	Commit() error
	Rollback() error
}

// Importer coordinates the import pipeline: parse -> resolve tags -> store
type Importer struct {
	parser   *parser.Parser
	notebook Notebook
	logger   *zap.Logger
	now      func() time.Time

	lock ImportLock
}

// Config contains configuration for text imports
type Config struct {
	Workers int // Number of files parsed concurrently (default: runtime.NumCPU())
}

// Statistics contains statistics about an import
type Statistics struct {
	FilesParsed      int           `json:"files_parsed"`
	FilesFailed      int           `json:"files_failed"`
	BlocksSkipped    int           `json:"blocks_skipped"`
	ExcerptsImported int           `json:"excerpts_imported"`
	TagsImported     int           `json:"tags_imported"`
	Duration         time.Duration `json:"duration"`
	ErrorMessages    []string      `json:"errors,omitempty"`
}

// New creates a new Importer writing to notebook
func New(notebook Notebook, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		parser:   parser.New(),
		notebook: notebook,
		logger:   logger,
		now:      time.Now,
	}
}

func (imp *Importer) acquire() error {
	if !imp.lock.TryAcquire() {
		return ErrImportInProgress
	}
	return nil
}

// ImportTextFiles parses the files concurrently, creates any tag named in
// them and stores every parsed excerpt, committing once. Unreadable files
// and blocks without content are reported in the statistics and skipped.
func (imp *Importer) ImportTextFiles(ctx context.Context, paths []string, config *Config) (*Statistics, error) {
	if err := imp.acquire(); err != nil {
		return nil, err
	}
	defer imp.lock.Release()

	workers := runtime.NumCPU()
	if config != nil && config.Workers > 0 {
		workers = config.Workers
	}

	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}
	results := make([]*types.ParseResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	var mu sync.Mutex // Protect stats

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := imp.parser.ParseFile(path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.FilesFailed++
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", path, err))
				imp.logger.Warn("failed to parse file", zap.String("path", path), zap.Error(err))
				return nil
			}
			stats.FilesParsed++
			for _, pe := range result.Errors {
				stats.BlocksSkipped++
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s:%d: %s", pe.File, pe.Line, pe.Message))
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := imp.storeParsed(ctx, results, stats); err != nil {
		_ = imp.notebook.Rollback()
		return nil, err
	}
	if err := imp.notebook.Commit(); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(startTime)
	imp.logger.Info("text import finished",
		zap.Int("files", stats.FilesParsed),
		zap.Int("excerpts", stats.ExcerptsImported),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// storeParsed resolves tag names and writes the excerpts in file order
func (imp *Importer) storeParsed(ctx context.Context, results []*types.ParseResult, stats *Statistics) error {
	var names []string
	var entries []types.ParsedExcerpt
	for _, r := range results {
		if r == nil {
			continue
		}
		names = append(names, r.Tags...)
		entries = append(entries, r.Entries...)
	}
	if len(entries) == 0 {
		return nil
	}

	tagCount, err := imp.notebook.Tags().Count(ctx)
	if err != nil {
		return err
	}
	ids, err := imp.notebook.Tags().EnsureNames(ctx, names)
	if err != nil {
		return fmt.Errorf("failed to resolve tags: %w", err)
	}
	after, err := imp.notebook.Tags().Count(ctx)
	if err != nil {
		return err
	}
	stats.TagsImported = after - tagCount

	excerpts := make([]types.Excerpt, len(entries))
	for i, entry := range entries {
		e := entry.Excerpt
		e.TagIDs = make([]string, 0, len(entry.TagNames))
		for _, name := range entry.TagNames {
			e.TagIDs = append(e.TagIDs, ids[name])
		}
		excerpts[i] = e
	}

	saved, err := imp.notebook.Excerpts().InsertMany(ctx, excerpts)
	if err != nil {
		return fmt.Errorf("failed to store excerpts: %w", err)
	}
	stats.ExcerptsImported = len(saved)
	return nil
}

// ImportJSON reads a snapshot and upserts its tags and excerpts, committing
// once. Records keep their ids, so importing the same snapshot twice is
// idempotent.
func (imp *Importer) ImportJSON(ctx context.Context, r io.Reader) (*Statistics, error) {
	if err := imp.acquire(); err != nil {
		return nil, err
	}
	defer imp.lock.Release()

	startTime := time.Now()
	var snap types.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: invalid snapshot: %v", types.ErrInvalidInput, err)
	}

	if err := imp.storeSnapshot(ctx, &snap); err != nil {
		_ = imp.notebook.Rollback()
		return nil, err
	}
	if err := imp.notebook.Commit(); err != nil {
		return nil, err
	}

	stats := &Statistics{
		TagsImported:     len(snap.Tags),
		ExcerptsImported: len(snap.Excerpts),
		Duration:         time.Since(startTime),
	}
	imp.logger.Info("json import finished",
		zap.Int("tags", stats.TagsImported),
		zap.Int("excerpts", stats.ExcerptsImported))
	return stats, nil
}

func (imp *Importer) storeSnapshot(ctx context.Context, snap *types.Snapshot) error {
	if err := imp.notebook.Tags().UpsertBatch(ctx, snap.Tags); err != nil {
		return fmt.Errorf("failed to store tags: %w", err)
	}
	if _, err := imp.notebook.Excerpts().InsertMany(ctx, snap.Excerpts); err != nil {
		return fmt.Errorf("failed to store excerpts: %w", err)
	}
	return nil
}

// ImportJSONFile imports the snapshot stored at path
func (imp *Importer) ImportJSONFile(ctx context.Context, path string) (*Statistics, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return imp.ImportJSON(ctx, f)
}

// Snapshot collects every tag and excerpt of the notebook
func (imp *Importer) Snapshot(ctx context.Context) (*types.Snapshot, error) {
	tags, err := imp.notebook.Tags().ListOrdered(ctx)
	if err != nil {
		return nil, err
	}
	excerpts, err := imp.notebook.Excerpts().GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return &types.Snapshot{
		Tags:       tags,
		Excerpts:   excerpts,
		ExportDate: imp.now().UTC().Format(types.TimeLayout),
	}, nil
}

// Export writes the notebook snapshot to path. The file is replaced
// atomically, so a crash never leaves a truncated export behind.
func (imp *Importer) Export(ctx context.Context, path string) (*types.Snapshot, error) {
	snap, err := imp.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to write export: %w", err)
	}
	// atomic.WriteFile doesn't set permissions for new files
	if err := os.Chmod(path, exportFilePerms); err != nil {
		return nil, fmt.Errorf("failed to set export permissions: %w", err)
	}
	return snap, nil
}
