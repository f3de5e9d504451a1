// Package memory is the in-memory archive backend. History is lost on
// exit; useful for tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/sensordash/sensordash/pkg/archive"
)

// Store keeps partitions in a map guarded by a mutex.
type Store struct {
	partitions map[archive.Ref][]archive.Record
	corrupt    map[archive.Ref]bool
	mu         sync.RWMutex
}

// New creates an empty in-memory archive store.
func New() *Store {
	return &Store{
		partitions: make(map[archive.Ref][]archive.Record),
		corrupt:    make(map[archive.Ref]bool),
	}
}

// Load returns a copy of the partition's records.
func (s *Store) Load(ctx context.Context, ref archive.Ref) ([]archive.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.corrupt[ref] {
		return nil, archive.ErrCorruptPartition
	}
	records, ok := s.partitions[ref]
	if !ok {
		return nil, archive.ErrNoPartition
	}
	return cloneRecords(records), nil
}

// Save replaces the partition.
func (s *Store) Save(ctx context.Context, ref archive.Ref, records []archive.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.partitions[ref] = cloneRecords(records)
	delete(s.corrupt, ref)
	return nil
}

// cloneRecords copies the slice and each record's fields map so callers
// can mutate their records without touching stored history. The file
// backends get the same isolation for free from serialization.
func cloneRecords(records []archive.Record) []archive.Record {
	out := make([]archive.Record, len(records))
	copy(out, records)
	for i := range out {
		fields := make(map[string]string, len(out[i].Fields))
		for k, v := range out[i].Fields {
			fields[k] = v
		}
		out[i].Fields = fields
	}
	return out
}

// List enumerates stored partitions in deterministic order.
func (s *Store) List(ctx context.Context) ([]archive.Ref, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	refs := make([]archive.Ref, 0, len(s.partitions))
	for ref := range s.partitions {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].DeviceID != refs[j].DeviceID {
			return refs[i].DeviceID < refs[j].DeviceID
		}
		return refs[i].Period < refs[j].Period
	})
	return refs, nil
}

// Close is a no-op for memory storage.
func (s *Store) Close() error {
	return nil
}

// MarkCorrupt makes the next Load of ref fail with ErrCorruptPartition.
// Test hook for the merger's recovery path.
func (s *Store) MarkCorrupt(ref archive.Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrupt[ref] = true
}
