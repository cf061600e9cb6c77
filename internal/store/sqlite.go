package store

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	dbsync "github.com/nhle/accomplishment-tracker/internal/sync"
)

// SQLiteStore implements gateway.Records using a local SQLite database.
// It is the offline backend and the store used by tests.
type SQLiteStore struct {
	db  *sqlx.DB
	hub *changeHub
	log *zap.Logger

	pollInterval time.Duration
	poller       *dbsync.Poller
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the logger used for store diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLiteStore) {
		s.log = l
	}
}

// WithPollInterval makes change feeds also report rows committed by other
// processes, checked every d.
func WithPollInterval(d time.Duration) Option {
	return func(s *SQLiteStore) {
		s.pollInterval = d
	}
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		// Writers in other processes hold the lock briefly; wait instead of
		// failing with SQLITE_BUSY.
		dsn += "?_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:  db,
		hub: newChangeHub(),
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if s.pollInterval > 0 {
		s.poller = dbsync.New(s, s.hub.publish, s.pollInterval, s.log)
		s.poller.Start()
	}

	return s, nil
}

// Close closes all change feeds and the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s.poller != nil {
		s.poller.Stop()
	}
	s.hub.closeAll()
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
		s.log.Debug("applied migration", zap.Int("version", m.version))
	}

	return nil
}
