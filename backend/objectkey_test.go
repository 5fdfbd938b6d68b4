package backend

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestObjectLayout(t *testing.T) {
	id := uuid.MustParse("0b6c7f5e-8c1e-4a55-9d3c-1f2e3d4c5b6a")

	t.Run("NoPrefix", func(t *testing.T) {
		l := ObjectLayout{}
		assert.Equal(t, "_docs/segments/0b6c7f5e-8c1e-4a55-9d3c-1f2e3d4c5b6a/0000000007", l.SegmentKey("docs", id, 7))
		assert.Equal(t, "_docs/index/_greeting", l.IndexKey("docs", "greeting"))
	})

	t.Run("Prefix", func(t *testing.T) {
		l := ObjectLayout{Prefix: "root/"}
		assert.Equal(t, "root/_docs/index/_a%2Fb", l.IndexKey("docs", "a/b"))

		name, ok := l.ParseIndexKey("docs", "root/_docs/index/_a%2Fb")
		assert.True(t, ok)
		assert.Equal(t, "a/b", name)
	})

	t.Run("ScopesDoNotNest", func(t *testing.T) {
		l := ObjectLayout{}
		nested := l.IndexKey("a/index", "secret")

		assert.False(t, strings.HasPrefix(nested, l.IndexPrefix("a")))
		assert.False(t, strings.HasPrefix(l.SegmentKey("a/segments", id, 1), l.SegmentsPrefix("a")))

		_, ok := l.ParseIndexKey("a", "_a/index/_index/_secret")
		assert.False(t, ok)
	})

	t.Run("EmptyElements", func(t *testing.T) {
		l := ObjectLayout{}
		assert.Equal(t, "_/index/_", l.IndexKey("", ""))

		name, ok := l.ParseIndexKey("", l.IndexKey("", ""))
		assert.True(t, ok)
		assert.Equal(t, "", name)

		_, ok = l.ParseIndexKey("s", "_s/index/")
		assert.False(t, ok)
	})

	t.Run("EscapedRoundTrip", func(t *testing.T) {
		l := ObjectLayout{Prefix: "p"}
		for _, name := range []string{"100%", "a b", "_x", "../up", "ü"} {
			got, ok := l.ParseIndexKey("s", l.IndexKey("s", name))
			assert.True(t, ok, name)
			assert.Equal(t, name, got)
		}

		_, ok := l.ParseIndexKey("s", "p/_s/index/_bad%zz")
		assert.False(t, ok)
	})

	t.Run("ParseSegmentKey", func(t *testing.T) {
		l := ObjectLayout{Prefix: "p"}
		n, ok := l.ParseSegmentKey("s", id, l.SegmentKey("s", id, 4294967295))
		assert.True(t, ok)
		assert.Equal(t, uint32(4294967295), n)

		_, ok = l.ParseSegmentKey("s", id, "p/_s/segments/other/0000000001")
		assert.False(t, ok)
	})

	t.Run("ParseFileID", func(t *testing.T) {
		l := ObjectLayout{}
		got, ok := l.ParseFileID("s", l.SegmentKey("s", id, 0))
		assert.True(t, ok)
		assert.Equal(t, id, got)

		_, ok = l.ParseFileID("s", "_s/segments/not-a-uuid/0000000000")
		assert.False(t, ok)
	})

	t.Run("SegmentKeysSortLikeNumbers", func(t *testing.T) {
		l := ObjectLayout{}
		assert.Less(t, l.SegmentKey("s", id, 9), l.SegmentKey("s", id, 10))
	})
}
