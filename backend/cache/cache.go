// Package cache provides a backend.Backend decorator that caches segment scans.
//
// Content segments are written once and then only read, so scan results are
// cached by (scope, id, from, to). Writes to a file invalidate its entries.
// Index operations pass through uncached because the index is last-writer-wins.
package cache

import (
	"context"

	"github.com/google/uuid"
	"github.com/hupe1980/segfile/backend"
)

// DefaultCapacity is the cache capacity used when none is given.
const DefaultCapacity = 64 << 20

// Store wraps a Backend and caches ScanSegments results.
type Store struct {
	inner backend.Backend
	lru   *LRU
}

var (
	_ backend.Backend   = (*Store)(nil)
	_ backend.Unwrapper = (*Store)(nil)
)

// New creates a caching decorator. capacity defaults to DefaultCapacity if <= 0.
func New(inner backend.Backend, capacity int64) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		inner: inner,
		lru:   NewLRU(capacity),
	}
}

// Unwrap returns the decorated backend.
func (s *Store) Unwrap() backend.Backend {
	return s.inner
}

// Stats returns cache hit and miss counters.
func (s *Store) Stats() (hits, misses int64) {
	return s.lru.Stats()
}

func cloneSegments(segs []backend.Segment) []backend.Segment {
	out := make([]backend.Segment, len(segs))
	for i, seg := range segs {
		data := make([]byte, len(seg.Data))
		copy(data, seg.Data)
		out[i] = backend.Segment{Number: seg.Number, Data: data}
	}
	return out
}

// PutSegment implements backend.Backend.
func (s *Store) PutSegment(ctx context.Context, scope string, id uuid.UUID, segment uint32, data []byte) error {
	// Invalidate cache entries for this file
	s.lru.Invalidate(func(key Key) bool {
		return key.Scope == scope && key.ID == id && backend.InRange(segment, key.From, key.To)
	})
	return s.inner.PutSegment(ctx, scope, id, segment, data)
}

// ScanSegments implements backend.Backend.
func (s *Store) ScanSegments(ctx context.Context, scope string, id uuid.UUID, from, to uint32) ([]backend.Segment, error) {
	key := Key{Scope: scope, ID: id, From: from, To: to}
	if segs, ok := s.lru.Get(key); ok {
		return cloneSegments(segs), nil
	}

	segs, err := s.inner.ScanSegments(ctx, scope, id, from, to)
	if err != nil {
		return nil, err
	}

	// Empty results are not cached: the rows may simply not be written yet.
	if len(segs) > 0 {
		s.lru.Set(key, cloneSegments(segs))
	}
	return segs, nil
}

// PutIndex implements backend.Backend.
func (s *Store) PutIndex(ctx context.Context, scope, name string, id uuid.UUID) error {
	return s.inner.PutIndex(ctx, scope, name, id)
}

// LookupIndex implements backend.Backend.
func (s *Store) LookupIndex(ctx context.Context, scope, name string) (uuid.UUID, error) {
	return s.inner.LookupIndex(ctx, scope, name)
}

// ListIndex implements backend.Backend.
func (s *Store) ListIndex(ctx context.Context, scope string) ([]string, error) {
	return s.inner.ListIndex(ctx, scope)
}
