// Package store persists per-file hash tables in BadgerDB and mirrors them in
// memory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/TypeTerrors/rsum/internal/blocks"
	"github.com/TypeTerrors/rsum/pkg/rsum"
	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v3"
)

// ErrNotFound is returned when no hashes are stored for a path.
var ErrNotFound = errors.New("file hashes not found")

const keyPrefix = "file/"

// FileHashes is everything computed for one file.
type FileHashes struct {
	Path      string         `json:"path"`
	Size      int64          `json:"size"`
	ModTime   time.Time      `json:"mod_time"`
	BlockSize int            `json:"block_size,omitempty"`
	ChunkSize int64          `json:"chunk_size,omitempty"`
	Rsum      rsum.Digest    `json:"rsum"`
	Blocks    []blocks.Block `json:"blocks,omitempty"`
	Chunks    []string       `json:"chunks,omitempty"`
}

type Store struct {
	db    *badger.DB
	mu    sync.RWMutex
	files map[string]FileHashes
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	return open(badger.DefaultOptions(path))
}

// OpenInMemory opens a store that is never written to disk.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts.WithLogger(newBadgerLogger()))
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &Store{
		db:    db,
		files: make(map[string]FileHashes),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func key(path string) []byte {
	return []byte(keyPrefix + path)
}

// Load loads all hashes from BadgerDB into memory.
func (s *Store) Load() error {
	loaded := make(map[string]FileHashes)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			path := strings.TrimPrefix(string(item.Key()), keyPrefix)
			err := item.Value(func(val []byte) error {
				var fh FileHashes
				if err := json.Unmarshal(val, &fh); err != nil {
					return fmt.Errorf("failed to decode hashes for %s: %w", path, err)
				}
				loaded[path] = fh
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.files = loaded
	s.mu.Unlock()

	log.Debugf("Loaded hashes for %d files from DB", len(loaded))
	return nil
}

// Put saves the hashes to both the in-memory map and the database.
func (s *Store) Put(fh FileHashes) error {
	data, err := json.Marshal(fh)
	if err != nil {
		return fmt.Errorf("failed to marshal hashes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(fh.Path), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save hashes to BadgerDB: %w", err)
	}
	s.files[fh.Path] = fh
	return nil
}

// Get checks the in-memory map first and falls back to the database.
func (s *Store) Get(path string) (FileHashes, error) {
	s.mu.RLock()
	fh, ok := s.files[path]
	s.mu.RUnlock()
	if ok {
		return fh, nil
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &fh)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return FileHashes{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return FileHashes{}, fmt.Errorf("failed to get hashes from BadgerDB: %w", err)
	}
	return fh, nil
}

// Delete removes the hashes of a file from memory and the database.
func (s *Store) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.files, path)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(path))
	})
	if err != nil {
		return fmt.Errorf("failed to delete hashes from BadgerDB: %w", err)
	}
	return nil
}

// DeleteTree removes the hashes of dir itself and of every path below it.
// It returns the number of entries removed.
func (s *Store) DeleteTree(dir string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	under := dir + "/"
	var keys [][]byte
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = key(under)
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		keys = append(keys, key(dir))
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete hashes under %s from BadgerDB: %w", dir, err)
	}

	removed := 0
	for path := range s.files {
		if path == dir || strings.HasPrefix(path, under) {
			delete(s.files, path)
			removed++
		}
	}
	return removed, nil
}

// List returns the stored paths in lexical order.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.files))
	for path := range s.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Stale reports whether the stored hashes for path were computed for a
// different size or modification time.
func (s *Store) Stale(path string, info os.FileInfo) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fh, ok := s.files[path]
	if !ok {
		return true
	}
	return fh.Size != info.Size() || !fh.ModTime.Equal(info.ModTime())
}
