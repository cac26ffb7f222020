// Package store persists version entries and per-source cache validators.
//
// Entries are grouped by base. Each base keeps the newest-first order in
// which its entries were written. Two backends satisfy the Store interface:
// a bbolt file (the default) and a SQLite database.
package store

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kilupskalvis/changelogs/internal/models"
)

// Supported backends.
const (
	DriverBolt   = "bbolt"
	DriverSQLite = "sqlite"
)

// ErrUnknownDriver is returned by Open for an unsupported backend name.
var ErrUnknownDriver = errors.New("unknown store driver")

// UpsertStats reports what an upsert did.
type UpsertStats struct {
	Written   int
	Unchanged int
	Removed   int
}

// Store is the version entry store.
type Store interface {
	// Initialize prepares the database layout. It is safe to call repeatedly.
	Initialize() error
	// ReplaceBase deletes every entry of base and inserts entries in one transaction.
	ReplaceBase(base string, entries []*models.VersionEntry) error
	// UpsertBase writes entries by id, leaving those with an unchanged digest
	// untouched, and removes ids that are no longer present.
	UpsertBase(base string, entries []*models.VersionEntry) (*UpsertStats, error)
	// ListBase returns the entries of base newest first with Latest set on the first.
	ListBase(base string) ([]*models.VersionEntry, error)
	// Bases lists every base holding entries, sorted.
	Bases() ([]string, error)
	// DeleteBase removes the entries and cache meta of base.
	DeleteBase(base string) error
	GetCacheMeta(base string) (models.CacheMeta, error)
	// SetCacheMeta stores meta for base. A zero meta clears it.
	SetCacheMeta(base string, meta models.CacheMeta) error
	Close() error
}

// Open opens the backend named by driver at path and initializes it.
func Open(driver, path string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case "", DriverBolt:
		st, err = NewBolt(path)
	case DriverSQLite:
		st, err = NewSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Initialize(); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// record is the persisted form of an entry.
type record struct {
	Position int                  `json:"position"`
	Entry    *models.VersionEntry `json:"entry"`
}

// dedupe drops entries whose id was already seen, keeping the first (newest).
func dedupe(entries []*models.VersionEntry) []*models.VersionEntry {
	seen := make(map[string]bool, len(entries))
	out := make([]*models.VersionEntry, 0, len(entries))
	for _, e := range entries {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out
}

// stored returns a copy of e as it is written: latest is derived on read.
func stored(e *models.VersionEntry) *models.VersionEntry {
	cp := *e
	cp.Latest = false
	return &cp
}

// ordered sorts records by position and flags the first entry as latest.
func ordered(records []record) []*models.VersionEntry {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Position < records[j].Position
	})
	entries := make([]*models.VersionEntry, 0, len(records))
	for i, r := range records {
		r.Entry.Latest = i == 0
		entries = append(entries, r.Entry)
	}
	return entries
}
