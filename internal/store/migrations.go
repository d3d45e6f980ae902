package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hurttlocker/zoonotes/internal/entity"
)

// migrate creates all tables if they don't exist and seeds metadata.
func (s *SQLiteStore) migrate() error {
	bootstrapDone, err := s.isMetaFlagEnabled("schema_bootstrap_complete")
	if err != nil {
		return fmt.Errorf("checking bootstrap state: %w", err)
	}

	if !bootstrapDone {
		if err := s.runBootstrapDDL(); err != nil {
			return err
		}
	}

	if err := s.seedMeta(); err != nil {
		return fmt.Errorf("seeding metadata: %w", err)
	}

	if !bootstrapDone {
		if err := s.setMetaFlag("schema_bootstrap_complete"); err != nil {
			return fmt.Errorf("marking bootstrap complete: %w", err)
		}
	}

	// Schema evolution: enclosure column on animals.
	if err := s.migrateEnclosureColumn(); err != nil {
		return fmt.Errorf("migrating enclosure column: %w", err)
	}

	if err := s.migrateReportIndexes(); err != nil {
		return fmt.Errorf("migrating report indexes: %w", err)
	}

	// New kinds get a config row on every start; existing rows keep their toggle.
	if err := s.seedEntityConfigs(); err != nil {
		return fmt.Errorf("seeding entity configs: %w", err)
	}

	return nil
}

func (s *SQLiteStore) runBootstrapDDL() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS animals (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			species    TEXT NOT NULL,
			age        REAL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(name, species)
		)`,

		`CREATE TABLE IF NOT EXISTS observations (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			animal_id     INTEGER NOT NULL REFERENCES animals(id) ON DELETE CASCADE,
			behavior      TEXT,
			health_status TEXT,
			notes         TEXT NOT NULL DEFAULT '',
			temperature   REAL,
			humidity      REAL,
			audio_file    TEXT NOT NULL DEFAULT '',
			transcription TEXT NOT NULL DEFAULT '',
			timestamp     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_animal ON observations(animal_id)`,

		`CREATE TABLE IF NOT EXISTS measurements (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			animal_id   INTEGER NOT NULL REFERENCES animals(id) ON DELETE CASCADE,
			weight      REAL,
			length      REAL,
			height      REAL,
			temperature REAL,
			age         REAL,
			timestamp   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_animal ON measurements(animal_id)`,

		`CREATE TABLE IF NOT EXISTS feedings (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			animal_id INTEGER NOT NULL REFERENCES animals(id) ON DELETE CASCADE,
			food_type TEXT NOT NULL,
			quantity  REAL,
			notes     TEXT,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedings_animal ON feedings(animal_id)`,

		`CREATE TABLE IF NOT EXISTS entity_configs (
			entity_type TEXT PRIMARY KEY,
			is_active   INTEGER NOT NULL DEFAULT 1,
			priority    INTEGER NOT NULL DEFAULT 0,
			updated_at  TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT
		)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration %q: %w", truncate(stmt, 80), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}

	return nil
}

func (s *SQLiteStore) isMetaFlagEnabled(key string) (bool, error) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='meta'`).Scan(&exists); err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}

	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return value == "true", nil
}

func (s *SQLiteStore) setMetaFlag(key string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, 'true')", key)
	return err
}

func isDuplicateColumnError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}

// migrateEnclosureColumn adds the enclosure column to animals if it doesn't
// exist. Databases created before enclosures were tracked lack it.
func (s *SQLiteStore) migrateEnclosureColumn() error {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info('animals') WHERE name='enclosure'",
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking for enclosure column: %w", err)
	}
	if count > 0 {
		return nil
	}

	if _, err := s.db.Exec(`ALTER TABLE animals ADD COLUMN enclosure TEXT`); err != nil && !isDuplicateColumnError(err) {
		return fmt.Errorf("adding enclosure column: %w", err)
	}
	return nil
}

// migrateReportIndexes adds timestamp indexes used by the daily report.
func (s *SQLiteStore) migrateReportIndexes() error {
	done, err := s.isMetaFlagEnabled("report_indexes_v1")
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_observations_timestamp ON observations(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_timestamp ON measurements(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_feedings_timestamp ON feedings(timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", truncate(stmt, 60), err)
		}
	}
	return s.setMetaFlag("report_indexes_v1")
}

// seedMeta initializes the meta table with defaults if not already set.
func (s *SQLiteStore) seedMeta() error {
	defaults := map[string]string{
		"schema_version": "1",
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}

	for k, v := range defaults {
		_, err := s.db.Exec(
			"INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)", k, v,
		)
		if err != nil {
			return fmt.Errorf("seeding meta key %q: %w", k, err)
		}
	}
	return nil
}

func (s *SQLiteStore) seedEntityConfigs() error {
	now := formatTime(time.Now())
	for i, k := range entity.Kinds() {
		_, err := s.db.Exec(
			"INSERT OR IGNORE INTO entity_configs (entity_type, is_active, priority, updated_at) VALUES (?, 1, ?, ?)",
			string(k), i+1, now,
		)
		if err != nil {
			return fmt.Errorf("seeding entity config %q: %w", k, err)
		}
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
