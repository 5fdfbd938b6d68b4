// Package memory provides an in-process backend.Backend built on B-trees.
//
// It keeps rows ordered the way a column store would, so range scans are
// B-tree range iterations. Intended for tests and ephemeral files.
package memory

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/google/btree"
	"github.com/google/uuid"
	"github.com/hupe1980/segfile/backend"
)

const degree = 32

type segmentRow struct {
	scope   string
	id      uuid.UUID
	segment uint32
	data    []byte
}

func lessSegment(a, b segmentRow) bool {
	if c := strings.Compare(a.scope, b.scope); c != 0 {
		return c < 0
	}
	if c := bytes.Compare(a.id[:], b.id[:]); c != 0 {
		return c < 0
	}
	return a.segment < b.segment
}

type indexRow struct {
	scope string
	name  string
	id    uuid.UUID
}

func lessIndex(a, b indexRow) bool {
	if a.scope != b.scope {
		return a.scope < b.scope
	}
	return a.name < b.name
}

// Store is an in-memory backend.Backend.
// Thread-safe for concurrent reads and writes.
type Store struct {
	mu       sync.RWMutex
	segments *btree.BTreeG[segmentRow]
	index    *btree.BTreeG[indexRow]
}

var (
	_ backend.Backend  = (*Store)(nil)
	_ backend.IDLister = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		segments: btree.NewG(degree, lessSegment),
		index:    btree.NewG(degree, lessIndex),
	}
}

// PutSegment implements backend.Backend.
func (s *Store) PutSegment(ctx context.Context, scope string, id uuid.UUID, segment uint32, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Copy to prevent external mutation
	copied := make([]byte, len(data))
	copy(copied, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.segments.ReplaceOrInsert(segmentRow{scope: scope, id: id, segment: segment, data: copied})
	return nil
}

// ScanSegments implements backend.Backend.
func (s *Store) ScanSegments(ctx context.Context, scope string, id uuid.UUID, from, to uint32) ([]backend.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	segs := []backend.Segment{}
	if from > to {
		return segs, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	pivot := segmentRow{scope: scope, id: id, segment: from}
	s.segments.AscendGreaterOrEqual(pivot, func(row segmentRow) bool {
		if row.scope != scope || row.id != id || row.segment > to {
			return false
		}
		data := make([]byte, len(row.data))
		copy(data, row.data)
		segs = append(segs, backend.Segment{Number: row.segment, Data: data})
		return true
	})
	return segs, nil
}

// PutIndex implements backend.Backend.
func (s *Store) PutIndex(ctx context.Context, scope, name string, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.index.ReplaceOrInsert(indexRow{scope: scope, name: name, id: id})
	return nil
}

// LookupIndex implements backend.Backend.
func (s *Store) LookupIndex(ctx context.Context, scope, name string) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.index.Get(indexRow{scope: scope, name: name})
	if !ok {
		return uuid.Nil, backend.NotFoundError(scope, name)
	}
	return row.id, nil
}

// ListIndex implements backend.Backend.
func (s *Store) ListIndex(ctx context.Context, scope string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	s.index.AscendGreaterOrEqual(indexRow{scope: scope}, func(row indexRow) bool {
		if row.scope != scope {
			return false
		}
		names = append(names, row.name)
		return true
	})
	return names, nil
}

// ListIDs implements backend.IDLister.
func (s *Store) ListIDs(ctx context.Context, scope string) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []uuid.UUID
	s.segments.AscendGreaterOrEqual(segmentRow{scope: scope}, func(row segmentRow) bool {
		if row.scope != scope {
			return false
		}
		// Rows of one id are adjacent.
		if len(ids) == 0 || ids[len(ids)-1] != row.id {
			ids = append(ids, row.id)
		}
		return true
	})
	return ids, nil
}

// Len returns the number of segment rows across all scopes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.segments.Len()
}
