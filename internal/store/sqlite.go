package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kilupskalvis/changelogs/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the SQLite backed Store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new store connection
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Initialize creates the database schema and applies pending migrations.
func (s *SQLiteStore) Initialize() error {
	schema := `
	-- Version entries, one row per (base, id)
	CREATE TABLE IF NOT EXISTS version_entries (
		base TEXT NOT NULL,
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		digest TEXT,
		entry_data JSON NOT NULL,
		PRIMARY KEY (base, id)
	);

	-- Conditional request validators per base
	CREATE TABLE IF NOT EXISTS cache_meta (
		base TEXT PRIMARY KEY,
		etag TEXT,
		last_modified TEXT
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return s.RunMigrations()
}

func insertEntry(tx *sql.Tx, base string, position int, e *models.VersionEntry) error {
	data, err := json.Marshal(stored(e))
	if err != nil {
		return fmt.Errorf("marshal entry %s: %w", e.ID, err)
	}
	_, err = tx.Exec(`
		INSERT INTO version_entries (base, id, position, digest, entry_data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(base, id) DO UPDATE SET
			position = excluded.position,
			digest = excluded.digest,
			entry_data = excluded.entry_data
	`, base, e.ID, position, e.Digest, string(data))
	if err != nil {
		return fmt.Errorf("store entry %s: %w", e.ID, err)
	}
	return nil
}

// ReplaceBase deletes the rows of base and inserts entries.
func (s *SQLiteStore) ReplaceBase(base string, entries []*models.VersionEntry) error {
	entries = dedupe(entries)
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM version_entries WHERE base = ?", base); err != nil {
		return fmt.Errorf("delete base %s: %w", base, err)
	}
	for i, e := range entries {
		if err := insertEntry(tx, base, i, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpsertBase writes changed entries and removes stale ones.
func (s *SQLiteStore) UpsertBase(base string, entries []*models.VersionEntry) (*UpsertStats, error) {
	entries = dedupe(entries)
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	existing := make(map[string]string)
	rows, err := tx.Query("SELECT id, COALESCE(digest, '') FROM version_entries WHERE base = ?", base)
	if err != nil {
		return nil, fmt.Errorf("query base %s: %w", base, err)
	}
	for rows.Next() {
		var id, digest string
		if err := rows.Scan(&id, &digest); err != nil {
			rows.Close()
			return nil, err
		}
		existing[id] = digest
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	stats := &UpsertStats{}
	for i, e := range entries {
		digest, ok := existing[e.ID]
		delete(existing, e.ID)

		if ok && e.Digest != "" && digest == e.Digest {
			stats.Unchanged++
			if _, err := tx.Exec("UPDATE version_entries SET position = ? WHERE base = ? AND id = ? AND position != ?", i, base, e.ID, i); err != nil {
				return nil, fmt.Errorf("update position of %s: %w", e.ID, err)
			}
			continue
		}
		if err := insertEntry(tx, base, i, e); err != nil {
			return nil, err
		}
		stats.Written++
	}

	for id := range existing {
		if _, err := tx.Exec("DELETE FROM version_entries WHERE base = ? AND id = ?", base, id); err != nil {
			return nil, fmt.Errorf("delete entry %s: %w", id, err)
		}
		stats.Removed++
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return stats, nil
}

// ListBase returns the entries of base newest first.
func (s *SQLiteStore) ListBase(base string) ([]*models.VersionEntry, error) {
	rows, err := s.db.Query("SELECT position, entry_data FROM version_entries WHERE base = ? ORDER BY position", base)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []record
	for rows.Next() {
		var (
			r    record
			data string
		)
		if err := rows.Scan(&r.Position, &data); err != nil {
			return nil, err
		}
		r.Entry = &models.VersionEntry{}
		if err := json.Unmarshal([]byte(data), r.Entry); err != nil {
			return nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ordered(records), nil
}

// Bases lists the distinct bases holding entries.
func (s *SQLiteStore) Bases() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT base FROM version_entries ORDER BY base")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bases []string
	for rows.Next() {
		var base string
		if err := rows.Scan(&base); err != nil {
			return nil, err
		}
		bases = append(bases, base)
	}
	return bases, rows.Err()
}

// DeleteBase removes the rows and cache meta of base.
func (s *SQLiteStore) DeleteBase(base string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM version_entries WHERE base = ?", base); err != nil {
		return fmt.Errorf("delete base %s: %w", base, err)
	}
	if _, err := tx.Exec("DELETE FROM cache_meta WHERE base = ?", base); err != nil {
		return fmt.Errorf("delete cache meta of %s: %w", base, err)
	}
	return tx.Commit()
}

// GetCacheMeta returns the stored validators of base, zero if none.
func (s *SQLiteStore) GetCacheMeta(base string) (models.CacheMeta, error) {
	var etag, lastModified sql.NullString
	err := s.db.QueryRow("SELECT etag, last_modified FROM cache_meta WHERE base = ?", base).Scan(&etag, &lastModified)
	if err == sql.ErrNoRows {
		return models.CacheMeta{}, nil
	}
	if err != nil {
		return models.CacheMeta{}, err
	}
	return models.CacheMeta{ETag: etag.String, LastModified: lastModified.String}, nil
}

// SetCacheMeta stores the validators of base.
func (s *SQLiteStore) SetCacheMeta(base string, meta models.CacheMeta) error {
	if meta.IsZero() {
		_, err := s.db.Exec("DELETE FROM cache_meta WHERE base = ?", base)
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO cache_meta (base, etag, last_modified) VALUES (?, ?, ?)
		ON CONFLICT(base) DO UPDATE SET etag = excluded.etag, last_modified = excluded.last_modified
	`, base, meta.ETag, meta.LastModified)
	return err
}
