package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/excerpts-mcp/internal/validation"
)

// MemoryPath opens a private in-memory notebook
const MemoryPath = ":memory:"

// Store owns the single connection to one notebook file and the transaction
// every repository write joins. The connection is opened on first use.
// A Store is not safe for concurrent use; callers needing concurrency open
// one Store per request.
type Store struct {
	path     string
	key      string
	logger   *zap.Logger
	registry *Registry
	now      func() time.Time

	db     *sql.DB
	tx     *sql.Tx
	closed bool

	rel      *ExcerptTags
	tags     *TagRepository
	excerpts *ExcerptRepository
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithKey overrides the registry key
func WithKey(key string) Option {
	return func(s *Store) {
		s.key = key
	}
}

// WithRegistry registers the store in r instead of the default registry
func WithRegistry(r *Registry) Option {
	return func(s *Store) {
		s.registry = r
	}
}

// WithClock sets the clock used to stamp new excerpts
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a store for the notebook at path without touching the file.
// The store is registered under its key until Close.
func New(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:     path,
		logger:   zap.NewNop(),
		registry: DefaultRegistry(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.key == "" {
		s.key = storeKey(path)
	}

	v := validation.New()
	var err error
	if s.rel, err = NewExcerptTags(s); err != nil {
		return nil, err
	}
	if s.tags, err = NewTagRepository(s, s.rel, v); err != nil {
		return nil, err
	}
	if s.excerpts, err = NewExcerptRepository(s, s.rel, v, s.now); err != nil {
		return nil, err
	}

	if s.registry != nil {
		s.registry.Set(s.key, s)
	}
	return s, nil
}

// Open creates a store and opens its connection immediately
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s, err := New(path, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := s.Querier(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func storeKey(path string) string {
	if path == MemoryPath || path == "" {
		return MemoryPath
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// Path returns the notebook file path
func (s *Store) Path() string {
	return s.path
}

// Key returns the registry key
func (s *Store) Key() string {
	return s.key
}

// Logger returns the store logger
func (s *Store) Logger() *zap.Logger {
	return s.logger
}

// Tags returns the tag repository
func (s *Store) Tags() *TagRepository {
	return s.tags
}

// Excerpts returns the excerpt repository
func (s *Store) Excerpts() *ExcerptRepository {
	return s.excerpts
}

// Querier returns the open transaction, opening the connection and
// beginning a transaction as needed
func (s *Store) Querier(ctx context.Context) (Querier, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	if s.db == nil {
		if err := s.open(ctx); err != nil {
			return nil, err
		}
	}
	if s.tx == nil {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		s.tx = tx
	}
	return s.tx, nil
}

// open connects, migrates the schema and guarantees the default tag
func (s *Store) open(ctx context.Context) error {
	path := s.path
	if path == "" {
		path = MemoryPath
	}
	db, err := openDatabase(path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	s.db = db

	if err := s.initialize(ctx); err != nil {
		_ = s.Rollback()
		_ = db.Close()
		s.db = nil
		return err
	}
	s.logger.Debug("store opened", zap.String("path", path), zap.String("driver", DriverName))
	return nil
}

func (s *Store) initialize(ctx context.Context) error {
	if err := s.tags.ensureDefault(ctx); err != nil {
		return fmt.Errorf("failed to create default tag: %w", err)
	}
	return s.Commit()
}

// Commit makes every pending write durable
func (s *Store) Commit() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.logger.Debug("store committed", zap.String("path", s.path))
	return nil
}

// Rollback discards every pending write
func (s *Store) Rollback() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("failed to rollback: %w", err)
	}
	s.logger.Debug("store rolled back", zap.String("path", s.path))
	return nil
}

// Close commits pending writes, closes the connection and removes the
// store from its registry. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.registry != nil {
		s.registry.Release(s.key, s)
	}
	if s.db == nil {
		return nil
	}

	commitErr := s.Commit()
	if commitErr != nil {
		_ = s.Rollback()
	}
	closeErr := s.db.Close()
	s.db = nil
	s.logger.Debug("store closed", zap.String("path", s.path))
	if commitErr != nil {
		return commitErr
	}
	return closeErr
}

// ResetAll drops every managed table and recreates an empty notebook with
// only the default tag. Pending writes are committed first.
func (s *Store) ResetAll(ctx context.Context) error {
	if _, err := s.Querier(ctx); err != nil {
		return err
	}
	for i := len(managedTables) - 1; i >= 0; i-- {
		t, err := NewTable(s, managedTables[i])
		if err != nil {
			return err
		}
		if err := t.Drop(ctx); err != nil {
			return err
		}
	}
	q, err := s.Querier(ctx)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(schemaVersionTable)); err != nil {
		return fmt.Errorf("failed to drop schema version table: %w", err)
	}
	if err := s.Commit(); err != nil {
		return err
	}

	if err := ApplyMigrations(ctx, s.db); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	if err := s.initialize(ctx); err != nil {
		return err
	}
	s.logger.Info("notebook reset", zap.String("path", s.path))
	return nil
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Single connection: one store, one writer, and in-memory databases
	// stay on the same connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return db, nil
}
