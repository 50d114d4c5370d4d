package store

import (
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

var dialect = goqu.Dialect("sqlite3")

// Store wraps a single project's SQLite database. All reads and writes
// for samples, parameter definitions and recorded values go through it,
// and it doubles as the VersionProbe for the change detector.
type Store struct {
	db      *sql.DB
	path    string
	project string
}

// Open opens (creating if necessary) the SQLite database for a project
// and ensures its schema exists.
func Open(path, project string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open project database %s: %w", path, err)
	}

	// SQLite writers are serialized; a single connection avoids
	// SQLITE_BUSY churn between the facade and the detector.
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema for %s: %w", path, err)
	}

	log.Debug().Str("project", project).Str("path", path).Msg("Opened project store")

	return &Store{db: db, path: path, project: project}, nil
}

// Project returns the project name this store belongs to
func (s *Store) Project() string {
	return s.project
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
