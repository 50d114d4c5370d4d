package store

import "database/sql"

// Project database schema. sample_param_value is append-only: new
// readings are inserted, never updated in place, which is what makes
// MAX(rowid) a usable change signal.
const projectSchema = `
CREATE TABLE IF NOT EXISTS sample (
	sample_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	prepared_on TEXT NOT NULL,
	author_name TEXT,
	created_at  TEXT NOT NULL,
	deleted_at  TEXT
);

CREATE TABLE IF NOT EXISTS param_def (
	param_id    INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	unit_symbol TEXT,
	group_name  TEXT
);

CREATE TABLE IF NOT EXISTS sample_param_value (
	sample_id   INTEGER NOT NULL REFERENCES sample(sample_id),
	param_id    INTEGER NOT NULL REFERENCES param_def(param_id),
	value       TEXT NOT NULL,
	unit_symbol TEXT,
	recorded_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_spv_sample ON sample_param_value(sample_id);
CREATE INDEX IF NOT EXISTS idx_spv_param ON sample_param_value(param_id);
`

// Registry database schema (one per data directory)
const registrySchema = `
CREATE TABLE IF NOT EXISTS project (
	name          TEXT PRIMARY KEY,
	db_path       TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	created_by    TEXT,
	last_opened   TEXT,
	last_modified TEXT
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT
);
`

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(projectSchema)
	return err
}

func ensureRegistrySchema(db *sql.DB) error {
	_, err := db.Exec(registrySchema)
	return err
}
