// Package backendtest provides a conformance suite for backend.Backend
// implementations.
package backendtest

import (
	"bytes"
	"context"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/hupe1980/segfile/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty backend for one subtest.
type Factory func(t *testing.T) backend.Backend

// Run exercises the full backend contract against backends made by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Helper()

	t.Run("ScanOrdered", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		id := uuid.New()

		// Written out of order on purpose.
		for _, n := range []uint32{3, 0, 2, 1, 10} {
			require.NoError(t, b.PutSegment(ctx, "s", id, n, []byte{byte(n)}))
		}

		segs, err := b.ScanSegments(ctx, "s", id, 0, 100)
		require.NoError(t, err)
		require.Len(t, segs, 5)

		var got []uint32
		for _, s := range segs {
			got = append(got, s.Number)
			assert.Equal(t, []byte{byte(s.Number)}, s.Data)
		}
		assert.Equal(t, []uint32{0, 1, 2, 3, 10}, got)
	})

	t.Run("ScanInclusiveBounds", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		id := uuid.New()

		for n := uint32(0); n < 6; n++ {
			require.NoError(t, b.PutSegment(ctx, "s", id, n, []byte("x")))
		}

		segs, err := b.ScanSegments(ctx, "s", id, 2, 4)
		require.NoError(t, err)
		require.Len(t, segs, 3)
		assert.Equal(t, uint32(2), segs[0].Number)
		assert.Equal(t, uint32(4), segs[2].Number)

		segs, err = b.ScanSegments(ctx, "s", id, 0, 0)
		require.NoError(t, err)
		require.Len(t, segs, 1)
		assert.Equal(t, uint32(0), segs[0].Number)
	})

	t.Run("ScanEmpty", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		segs, err := b.ScanSegments(ctx, "s", uuid.New(), 0, 0)
		require.NoError(t, err)
		assert.Empty(t, segs)
	})

	t.Run("ScanIsolation", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		a, c := uuid.New(), uuid.New()

		require.NoError(t, b.PutSegment(ctx, "s1", a, 1, []byte("a1")))
		require.NoError(t, b.PutSegment(ctx, "s1", c, 1, []byte("c1")))
		require.NoError(t, b.PutSegment(ctx, "s2", a, 1, []byte("a2")))

		segs, err := b.ScanSegments(ctx, "s1", a, 0, 10)
		require.NoError(t, err)
		require.Len(t, segs, 1)
		assert.Equal(t, []byte("a1"), segs[0].Data)

		segs, err = b.ScanSegments(ctx, "s2", a, 0, 10)
		require.NoError(t, err)
		require.Len(t, segs, 1)
		assert.Equal(t, []byte("a2"), segs[0].Data)
	})

	t.Run("EmptyPayload", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		id := uuid.New()

		require.NoError(t, b.PutSegment(ctx, "s", id, 1, nil))

		segs, err := b.ScanSegments(ctx, "s", id, 1, 1)
		require.NoError(t, err)
		require.Len(t, segs, 1)
		assert.Empty(t, segs[0].Data)
	})

	t.Run("PutDoesNotRetainBuffer", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		id := uuid.New()

		buf := []byte("original")
		require.NoError(t, b.PutSegment(ctx, "s", id, 1, buf))
		copy(buf, "mutated!")

		segs, err := b.ScanSegments(ctx, "s", id, 1, 1)
		require.NoError(t, err)
		require.Len(t, segs, 1)
		assert.Equal(t, []byte("original"), segs[0].Data)
	})

	t.Run("Overwrite", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		id := uuid.New()

		require.NoError(t, b.PutSegment(ctx, "s", id, 0, []byte("old")))
		require.NoError(t, b.PutSegment(ctx, "s", id, 0, []byte("new")))

		segs, err := b.ScanSegments(ctx, "s", id, 0, 0)
		require.NoError(t, err)
		require.Len(t, segs, 1)
		assert.Equal(t, []byte("new"), segs[0].Data)
	})

	t.Run("LargePayload", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		id := uuid.New()

		data := bytes.Repeat([]byte{0xAB}, 4096)
		require.NoError(t, b.PutSegment(ctx, "s", id, 1, data))

		segs, err := b.ScanSegments(ctx, "s", id, 1, 1)
		require.NoError(t, err)
		require.Len(t, segs, 1)
		assert.Equal(t, data, segs[0].Data)
	})

	t.Run("IndexLookup", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		id := uuid.New()

		_, err := b.LookupIndex(ctx, "s", "missing")
		assert.ErrorIs(t, err, backend.ErrNotFound)

		require.NoError(t, b.PutIndex(ctx, "s", "file", id))

		got, err := b.LookupIndex(ctx, "s", "file")
		require.NoError(t, err)
		assert.Equal(t, id, got)

		_, err = b.LookupIndex(ctx, "other", "file")
		assert.ErrorIs(t, err, backend.ErrNotFound)
	})

	t.Run("IndexLastWriterWins", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		first, second := uuid.New(), uuid.New()

		require.NoError(t, b.PutIndex(ctx, "s", "file", first))
		require.NoError(t, b.PutIndex(ctx, "s", "file", second))

		got, err := b.LookupIndex(ctx, "s", "file")
		require.NoError(t, err)
		assert.Equal(t, second, got)

		names, err := b.ListIndex(ctx, "s")
		require.NoError(t, err)
		assert.Equal(t, []string{"file"}, names)
	})

	t.Run("ListIndex", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		names, err := b.ListIndex(ctx, "s")
		require.NoError(t, err)
		assert.Empty(t, names)

		for _, name := range []string{"b", "a", "dir/c"} {
			require.NoError(t, b.PutIndex(ctx, "s", name, uuid.New()))
		}
		require.NoError(t, b.PutIndex(ctx, "s2", "z", uuid.New()))

		names, err = b.ListIndex(ctx, "s")
		require.NoError(t, err)
		sort.Strings(names)
		assert.Equal(t, []string{"a", "b", "dir/c"}, names)
	})

	t.Run("NestedScopes", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		id := uuid.New()

		require.NoError(t, b.PutIndex(ctx, "a/index", "secret", id))
		require.NoError(t, b.PutSegment(ctx, "a/segments", id, 1, []byte("d")))

		names, err := b.ListIndex(ctx, "a")
		require.NoError(t, err)
		assert.Empty(t, names)

		_, err = b.LookupIndex(ctx, "a", "index/secret")
		assert.ErrorIs(t, err, backend.ErrNotFound)

		segs, err := b.ScanSegments(ctx, "a", id, 0, 10)
		require.NoError(t, err)
		assert.Empty(t, segs)

		if lister, ok := backend.AsIDLister(b); ok {
			ids, err := lister.ListIDs(ctx, "a")
			require.NoError(t, err)
			assert.Empty(t, ids)
		}

		names, err = b.ListIndex(ctx, "a/index")
		require.NoError(t, err)
		assert.Equal(t, []string{"secret"}, names)
	})

	t.Run("EscapedNames", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		want := []string{"", "100%", "_x", "a b", "a/b/"}

		for _, name := range want {
			require.NoError(t, b.PutIndex(ctx, "s", name, uuid.New()))
		}

		names, err := b.ListIndex(ctx, "s")
		require.NoError(t, err)
		sort.Strings(names)
		assert.Equal(t, want, names)

		for _, name := range want {
			_, err := b.LookupIndex(ctx, "s", name)
			assert.NoError(t, err, "name %q", name)
		}
	})

	t.Run("ListIDs", func(t *testing.T) {
		b := newBackend(t)
		lister, ok := backend.AsIDLister(b)
		if !ok {
			t.Skip("backend does not implement IDLister")
		}
		ctx := context.Background()
		a, c := uuid.New(), uuid.New()

		require.NoError(t, b.PutSegment(ctx, "s", a, 0, []byte("m")))
		require.NoError(t, b.PutSegment(ctx, "s", a, 1, []byte("d")))
		require.NoError(t, b.PutSegment(ctx, "s", c, 1, []byte("d")))
		require.NoError(t, b.PutSegment(ctx, "other", uuid.New(), 1, []byte("d")))

		ids, err := lister.ListIDs(ctx, "s")
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{a, c}, ids)
	})
}
