package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kilupskalvis/changelogs/internal/models"
	bolt "go.etcd.io/bbolt"
)

// Bucket names used by the bbolt store. Entries live in one nested bucket
// per base under bucketEntries, keyed by entry id.
var (
	bucketEntries   = []byte("entries")
	bucketCacheMeta = []byte("cache_meta")
)

// BoltStore is the bbolt backed Store.
type BoltStore struct {
	db *bolt.DB
}

// NewBolt opens or creates a bbolt database at the given path.
func NewBolt(dbPath string) (*BoltStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Initialize creates all required buckets.
func (s *BoltStore) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketEntries, bucketCacheMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

func putRecord(b *bolt.Bucket, position int, e *models.VersionEntry) error {
	data, err := json.Marshal(record{Position: position, Entry: stored(e)})
	if err != nil {
		return fmt.Errorf("marshal entry %s: %w", e.ID, err)
	}
	if err := b.Put([]byte(e.ID), data); err != nil {
		return fmt.Errorf("store entry %s: %w", e.ID, err)
	}
	return nil
}

// ReplaceBase drops the base bucket and rebuilds it from entries.
func (s *BoltStore) ReplaceBase(base string, entries []*models.VersionEntry) error {
	entries = dedupe(entries)
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketEntries)
		if root == nil {
			return fmt.Errorf("entries bucket not found")
		}
		if err := root.DeleteBucket([]byte(base)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("delete base %s: %w", base, err)
		}
		b, err := root.CreateBucket([]byte(base))
		if err != nil {
			return fmt.Errorf("create base %s: %w", base, err)
		}
		for i, e := range entries {
			if err := putRecord(b, i, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertBase writes changed entries and removes stale ones.
func (s *BoltStore) UpsertBase(base string, entries []*models.VersionEntry) (*UpsertStats, error) {
	entries = dedupe(entries)
	stats := &UpsertStats{}
	err := s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketEntries)
		if root == nil {
			return fmt.Errorf("entries bucket not found")
		}
		b, err := root.CreateBucketIfNotExists([]byte(base))
		if err != nil {
			return fmt.Errorf("create base %s: %w", base, err)
		}

		keep := make(map[string]bool, len(entries))
		for i, e := range entries {
			keep[e.ID] = true

			if data := b.Get([]byte(e.ID)); data != nil {
				var existing record
				if err := json.Unmarshal(data, &existing); err != nil {
					return fmt.Errorf("unmarshal entry %s: %w", e.ID, err)
				}
				if e.Digest != "" && existing.Entry != nil && existing.Entry.Digest == e.Digest {
					stats.Unchanged++
					if existing.Position == i {
						continue
					}
					existing.Position = i
					data, err := json.Marshal(existing)
					if err != nil {
						return fmt.Errorf("marshal entry %s: %w", e.ID, err)
					}
					if err := b.Put([]byte(e.ID), data); err != nil {
						return fmt.Errorf("store entry %s: %w", e.ID, err)
					}
					continue
				}
			}

			if err := putRecord(b, i, e); err != nil {
				return err
			}
			stats.Written++
		}

		// Collect first: deleting while iterating a cursor skips keys.
		var stale [][]byte
		if err := b.ForEach(func(k, _ []byte) error {
			if !keep[string(k)] {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("delete entry %s: %w", k, err)
			}
			stats.Removed++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// ListBase returns the entries of base newest first.
func (s *BoltStore) ListBase(base string) ([]*models.VersionEntry, error) {
	var records []record
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketEntries)
		if root == nil {
			return nil
		}
		b := root.Bucket([]byte(base))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var r record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal entry %s: %w", k, err)
			}
			records = append(records, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ordered(records), nil
}

// Bases lists the base buckets.
func (s *BoltStore) Bases() ([]string, error) {
	var bases []string
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketEntries)
		if root == nil {
			return nil
		}
		return root.ForEach(func(k, v []byte) error {
			if v == nil {
				bases = append(bases, string(k))
			}
			return nil
		})
	})
	return bases, err
}

// DeleteBase removes the base bucket and its cache meta.
func (s *BoltStore) DeleteBase(base string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketEntries)
		if root == nil {
			return fmt.Errorf("entries bucket not found")
		}
		if err := root.DeleteBucket([]byte(base)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("delete base %s: %w", base, err)
		}
		meta := tx.Bucket(bucketCacheMeta)
		if meta == nil {
			return fmt.Errorf("cache_meta bucket not found")
		}
		return meta.Delete([]byte(base))
	})
}

// GetCacheMeta returns the stored validators of base, zero if none.
func (s *BoltStore) GetCacheMeta(base string) (models.CacheMeta, error) {
	var meta models.CacheMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCacheMeta)
		if b == nil {
			return nil
		}
		data := b.Get([]byte(base))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &meta)
	})
	return meta, err
}

// SetCacheMeta stores the validators of base.
func (s *BoltStore) SetCacheMeta(base string, meta models.CacheMeta) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCacheMeta)
		if b == nil {
			return fmt.Errorf("cache_meta bucket not found")
		}
		if meta.IsZero() {
			return b.Delete([]byte(base))
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal cache meta: %w", err)
		}
		return b.Put([]byte(base), data)
	})
}
