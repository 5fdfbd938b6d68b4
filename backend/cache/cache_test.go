package cache

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/hupe1980/segfile/backend"
	"github.com/hupe1980/segfile/backend/backendtest"
	"github.com/hupe1980/segfile/backend/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingBackend counts scans reaching the inner backend.
type countingBackend struct {
	backend.Backend
	scans int
}

func (c *countingBackend) ScanSegments(ctx context.Context, scope string, id uuid.UUID, from, to uint32) ([]backend.Segment, error) {
	c.scans++
	return c.Backend.ScanSegments(ctx, scope, id, from, to)
}

func TestStore_Conformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) backend.Backend {
		return New(memory.New(), 0)
	})
}

func TestStore_CachesScans(t *testing.T) {
	inner := &countingBackend{Backend: memory.New()}
	s := New(inner, 1<<20)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, s.PutSegment(ctx, "s", id, 1, []byte("data")))

	for i := 0; i < 3; i++ {
		segs, err := s.ScanSegments(ctx, "s", id, 1, 1)
		require.NoError(t, err)
		require.Len(t, segs, 1)
		assert.Equal(t, []byte("data"), segs[0].Data)
	}

	assert.Equal(t, 1, inner.scans)
	hits, misses := s.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := New(memory.New(), 1<<20)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, s.PutSegment(ctx, "s", id, 1, []byte("data")))

	segs, err := s.ScanSegments(ctx, "s", id, 1, 1)
	require.NoError(t, err)
	segs[0].Data[0] = 'X'

	segs, err = s.ScanSegments(ctx, "s", id, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), segs[0].Data)
}

func TestStore_PutInvalidates(t *testing.T) {
	inner := &countingBackend{Backend: memory.New()}
	s := New(inner, 1<<20)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, s.PutSegment(ctx, "s", id, 1, []byte("a")))
	_, err := s.ScanSegments(ctx, "s", id, 0, 10)
	require.NoError(t, err)

	require.NoError(t, s.PutSegment(ctx, "s", id, 2, []byte("b")))

	segs, err := s.ScanSegments(ctx, "s", id, 0, 10)
	require.NoError(t, err)
	assert.Len(t, segs, 2)
	assert.Equal(t, 2, inner.scans)
}

func TestStore_EmptyScansNotCached(t *testing.T) {
	inner := &countingBackend{Backend: memory.New()}
	s := New(inner, 1<<20)
	ctx := context.Background()
	id := uuid.New()

	for i := 0; i < 2; i++ {
		segs, err := s.ScanSegments(ctx, "s", id, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, segs)
	}
	assert.Equal(t, 2, inner.scans)
}

func TestLRU_Evicts(t *testing.T) {
	c := NewLRU(100)
	seg := func(n int) []backend.Segment {
		return []backend.Segment{{Number: 1, Data: make([]byte, n)}}
	}

	c.Set(Key{Scope: "a"}, seg(40))
	c.Set(Key{Scope: "b"}, seg(40))
	assert.Equal(t, 2, c.Len())

	// Touch "a" so "b" is the eviction candidate.
	_, ok := c.Get(Key{Scope: "a"})
	require.True(t, ok)

	c.Set(Key{Scope: "c"}, seg(40))
	assert.Equal(t, 2, c.Len())

	_, ok = c.Get(Key{Scope: "b"})
	assert.False(t, ok)
	_, ok = c.Get(Key{Scope: "a"})
	assert.True(t, ok)
	assert.LessOrEqual(t, c.Size(), int64(100))

	// Larger than capacity is never cached.
	c.Set(Key{Scope: "huge"}, seg(200))
	_, ok = c.Get(Key{Scope: "huge"})
	assert.False(t, ok)
}

func TestLRU_Invalidate(t *testing.T) {
	c := NewLRU(1 << 10)
	id := uuid.New()

	c.Set(Key{Scope: "s", ID: id, From: 0, To: 0}, []backend.Segment{{Number: 0}})
	c.Set(Key{Scope: "s", ID: uuid.New(), From: 0, To: 0}, []backend.Segment{{Number: 0}})

	c.Invalidate(func(k Key) bool { return k.ID == id })
	assert.Equal(t, 1, c.Len())
}

func TestStore_Unwrap(t *testing.T) {
	inner := memory.New()
	s := New(inner, 0)
	assert.Same(t, inner, s.Unwrap())

	_, ok := backend.AsIDLister(s)
	assert.True(t, ok)
}
