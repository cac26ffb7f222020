package store

import (
	"database/sql"
	"fmt"
)

const currentSchemaVersion = 2

// RunMigrations applies any pending database migrations
func (s *SQLiteStore) RunMigrations() error {
	version, err := s.getSchemaVersion()
	if err != nil {
		return err
	}

	if version < 2 {
		if err := s.migrateToV2(); err != nil {
			return fmt.Errorf("migration to v2 failed: %w", err)
		}
	}

	return nil
}

// getSchemaVersion returns the current schema version, 1 if not set
func (s *SQLiteStore) getSchemaVersion() (int, error) {
	var tableName string
	err := s.db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='changelogs_schema_version'
	`).Scan(&tableName)

	if err == sql.ErrNoRows {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = s.db.QueryRow("SELECT COALESCE(MAX(version), 1) FROM changelogs_schema_version").Scan(&version)
	if err != nil {
		return 1, nil
	}

	return version, nil
}

// migrateToV2 adds version tracking and the listing index
func (s *SQLiteStore) migrateToV2() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS changelogs_schema_version (
			version INTEGER PRIMARY KEY
		)`,
		`CREATE INDEX IF NOT EXISTS idx_version_entries_position ON version_entries(base, position)`,
		`INSERT OR REPLACE INTO changelogs_schema_version (version) VALUES (2)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, m := range migrations {
		if _, err := tx.Exec(m); err != nil {
			return fmt.Errorf("exec %q: %w", m, err)
		}
	}
	return tx.Commit()
}
