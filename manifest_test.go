package segfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifest_Encoding(t *testing.T) {
	m := Manifest{Length: 10000, SegmentCount: 4}

	data, err := m.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0, 0, 0, 0, 0, 0, 0x27, 0x10,
		0, 0, 0, 4,
	}, data)

	var decoded Manifest
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, m, decoded)
	assert.Equal(t, uint32(3), decoded.ContentSegments())
}

func TestManifest_UnmarshalRejectsSize(t *testing.T) {
	var m Manifest
	for _, size := range []int{0, 11, 13} {
		err := m.UnmarshalBinary(make([]byte, size))
		assert.ErrorIs(t, err, ErrCorruptManifest, "size %d", size)
	}
}

func TestManifest_ContentSegments(t *testing.T) {
	assert.Equal(t, uint32(0), Manifest{}.ContentSegments())
	assert.Equal(t, uint32(1), Manifest{SegmentCount: 2}.ContentSegments())
}
