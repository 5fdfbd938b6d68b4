package segfile

import (
	"encoding/binary"
	"fmt"
)

// ManifestSize is the encoded size of a manifest.
//
// Format (big-endian):
//
//	Length (8 bytes)       - total content bytes
//	SegmentCount (4 bytes) - content segments + 1
const ManifestSize = 12

// Manifest is the metadata record stored as segment 0.
type Manifest struct {
	// Length is the total byte length of the file content.
	Length uint64
	// SegmentCount is the stored counter, one more than the number of
	// content segments. Existing files depend on this exact value.
	SegmentCount uint32
}

// ContentSegments returns the number of content segments the manifest covers.
func (m Manifest) ContentSegments() uint32 {
	if m.SegmentCount == 0 {
		return 0
	}
	return m.SegmentCount - 1
}

// MarshalBinary encodes the manifest into its 12-byte form.
func (m Manifest) MarshalBinary() ([]byte, error) {
	buf := make([]byte, ManifestSize)
	binary.BigEndian.PutUint64(buf[0:8], m.Length)
	binary.BigEndian.PutUint32(buf[8:12], m.SegmentCount)
	return buf, nil
}

// UnmarshalBinary decodes a 12-byte manifest.
func (m *Manifest) UnmarshalBinary(data []byte) error {
	if len(data) != ManifestSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrCorruptManifest, ManifestSize, len(data))
	}
	m.Length = binary.BigEndian.Uint64(data[0:8])
	m.SegmentCount = binary.BigEndian.Uint32(data[8:12])
	return nil
}
