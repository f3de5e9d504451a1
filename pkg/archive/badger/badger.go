// Package badger is the embedded-KV archive backend. One key per
// device/period partition, JSON-encoded records, Snappy compression.
// Suited to deployments where the archive outgrows flat CSV files.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/sensordash/sensordash/pkg/archive"
)

const keyPrefix = "partition/"

// Store implements archive.Store using BadgerDB.
type Store struct {
	db *badger.DB
}

// Config holds BadgerDB configuration.
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool
}

// New opens a BadgerDB archive store. The pipeline is a short-lived
// batch process, so memory options stay conservative.
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(16 * 1024 * 1024).
		WithNumMemtables(2).
		WithNumCompactors(1).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Load reads one partition. A decode failure maps to
// ErrCorruptPartition so the merger's recovery path applies here too.
func (s *Store) Load(ctx context.Context, ref archive.Ref) ([]archive.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []archive.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(ref))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return archive.ErrNoPartition
			}
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &records); err != nil {
				return fmt.Errorf("%w: %v", archive.ErrCorruptPartition, err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Save replaces one partition.
func (s *Store) Save(ctx context.Context, ref archive.Ref, records []archive.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode partition: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(makeKey(ref), value)
	})
}

// List enumerates partitions by prefix scan.
func (s *Store) List(ctx context.Context) ([]archive.Ref, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var refs []archive.Ref
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if ref, ok := parseKey(it.Item().Key()); ok {
				refs = append(refs, ref)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// Close shuts down BadgerDB cleanly.
func (s *Store) Close() error {
	return s.db.Close()
}

// makeKey builds the partition key. The period segment comes first
// after the device so a device's partitions iterate in period order.
func makeKey(ref archive.Ref) []byte {
	return []byte(keyPrefix + ref.DeviceID + "/" + ref.Period)
}

func parseKey(key []byte) (archive.Ref, bool) {
	rest := strings.TrimPrefix(string(key), keyPrefix)
	i := strings.LastIndex(rest, "/")
	if i < 0 {
		return archive.Ref{}, false
	}
	return archive.Ref{DeviceID: rest[:i], Period: rest[i+1:]}, true
}
